package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/session"
)

const shutdownTimeout = 5 * time.Second

type snapshotter interface {
	Snapshot() session.Snapshot
}

type archive interface {
	History(ctx context.Context, limit int) ([]entity.GameResult, error)
	GamesPlayed(ctx context.Context) (int64, error)
}

type Server struct {
	logger      *slog.Logger
	coordinator snapshotter
	metrics     http.Handler
	archive     archive
}

type Option func(*Server)

// WithArchive enables /games and adds the archived total to /stats.
func WithArchive(archive archive) Option {
	return func(that *Server) {
		that.archive = archive
	}
}

func New(logger *slog.Logger, coordinator snapshotter, metrics http.Handler, opts ...Option) *Server {
	server := &Server{
		logger:      logger.With("component", "rest"),
		coordinator: coordinator,
		metrics:     metrics,
	}

	for _, opt := range opts {
		opt(server)
	}

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", pingHandler)
	mux.HandleFunc("GET /stats", that.statsHandler)
	mux.HandleFunc("GET /games", that.gamesHandler)
	mux.Handle("GET /metrics", that.metrics)

	return mux
}

// Start - serves HTTP on port until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	log := that.logger.With("method", "Start")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down HTTP server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
