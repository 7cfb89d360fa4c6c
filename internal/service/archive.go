package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const flushTimeout = 5 * time.Second

type ArchiveService interface {
	// Archive queues a finished game without blocking; results are dropped when the queue is full.
	Archive(result entity.GameResult)
	// Run saves queued results until ctx is done, then flushes what is left.
	Run(ctx context.Context)

	History(ctx context.Context, limit int) ([]entity.GameResult, error)
	GamesPlayed(ctx context.Context) (int64, error)
}

type resultRepo interface {
	Save(ctx context.Context, result entity.GameResult) error
	List(ctx context.Context, limit int) ([]entity.GameResult, error)
	Count(ctx context.Context) (int64, error)
}

type dropCounter interface {
	ArchiveDropped()
}

type archiveService struct {
	logger     *slog.Logger
	resultRepo resultRepo
	drops      dropCounter
	queue      chan entity.GameResult
}

func NewArchiveService(logger *slog.Logger, resultRepo resultRepo, drops dropCounter, buffer int) ArchiveService {
	return &archiveService{
		logger:     logger.With("component", "archive"),
		resultRepo: resultRepo,
		drops:      drops,
		queue:      make(chan entity.GameResult, buffer),
	}
}

func (that *archiveService) Archive(result entity.GameResult) {
	select {
	case that.queue <- result:
	default:
		that.logger.Warn("archive queue is full, dropping result", "game_id", result.ID)
		if that.drops != nil {
			that.drops.ArchiveDropped()
		}
	}
}

func (that *archiveService) Run(ctx context.Context) {
	log := that.logger.With("method", "Run")

	for {
		select {
		case result := <-that.queue:
			that.save(ctx, result)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			flushed := that.flush(flushCtx)
			cancel()

			log.Info("archive stopped", "flushed", flushed)
			return
		}
	}
}

func (that *archiveService) flush(ctx context.Context) int {
	flushed := 0

	for {
		select {
		case result := <-that.queue:
			that.save(ctx, result)
			flushed++
		default:
			return flushed
		}
	}
}

func (that *archiveService) save(ctx context.Context, result entity.GameResult) {
	if err := that.resultRepo.Save(ctx, result); err != nil {
		that.logger.Error("failed to archive game result", "game_id", result.ID, "error", err)
		return
	}

	that.logger.Debug("game result archived", "game_id", result.ID)
}

func (that *archiveService) History(ctx context.Context, limit int) ([]entity.GameResult, error) {
	results, err := that.resultRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve game history: %w", err)
	}

	return results, nil
}

func (that *archiveService) GamesPlayed(ctx context.Context) (int64, error) {
	count, err := that.resultRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve games played: %w", err)
	}

	return count, nil
}
