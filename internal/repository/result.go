package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const (
	resultKeyPrefix = "game:"
	historyKey      = "games:history"
	playedKey       = "games:played"

	// HistoryLimit caps the number of ids kept in the history list.
	HistoryLimit = 1000
)

type ResultRepository interface {
	Save(ctx context.Context, result entity.GameResult) error
	GetByID(ctx context.Context, id string) (*entity.GameResult, error)
	List(ctx context.Context, limit int) ([]entity.GameResult, error)
	Count(ctx context.Context) (int64, error)
}

type dbResult struct {
	client *redis.Client
}

func NewResultRepository(client *redis.Client) ResultRepository {
	return &dbResult{
		client: client,
	}
}

// Save stores the result, pushes it onto the history and bumps the played counter in one transaction.
func (that *dbResult) Save(ctx context.Context, result entity.GameResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not marshal game result: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, resultKeyPrefix+result.ID, resultJSON, 0)
		pipe.LPush(ctx, historyKey, result.ID)
		pipe.LTrim(ctx, historyKey, 0, HistoryLimit-1)
		pipe.Incr(ctx, playedKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save game result: %w", err)
	}

	return nil
}

func (that *dbResult) GetByID(ctx context.Context, id string) (*entity.GameResult, error) {
	response, err := that.client.Get(ctx, resultKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game result by id: %w", err)
	}

	var result entity.GameResult
	if err = json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game result: %w", err)
	}

	return &result, nil
}

// List returns up to limit results, newest first.
func (that *dbResult) List(ctx context.Context, limit int) ([]entity.GameResult, error) {
	if limit <= 0 {
		return []entity.GameResult{}, nil
	}

	ids, err := that.client.LRange(ctx, historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read game history: %w", err)
	}

	results := make([]entity.GameResult, 0, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, resultKeyPrefix+id)
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game results: %w", err)
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var result entity.GameResult
		if err = json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game result: %w", err)
		}

		results = append(results, result)
	}

	return results, nil
}

func (that *dbResult) Count(ctx context.Context) (int64, error) {
	count, err := that.client.Get(ctx, playedKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to get games played: %w", err)
	}

	return count, nil
}
