package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-arena/internal/config"
	"github.com/rocketscienceinc/tictactoe-arena/internal/metrics"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
	"github.com/rocketscienceinc/tictactoe-arena/internal/session"
	"github.com/rocketscienceinc/tictactoe-arena/internal/worker"
	"github.com/rocketscienceinc/tictactoe-arena/transport/rest"
	"github.com/rocketscienceinc/tictactoe-arena/transport/tcp"
	"github.com/rocketscienceinc/tictactoe-arena/transport/websocket"
)

// RunApp - runs the application until a signal arrives or a server fails.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	collectors := metrics.New()

	coordinatorOpts := []session.Option{session.WithMetrics(collectors)}
	restOpts := []rest.Option{}

	// background jobs; waited for before redis is closed
	var background sync.WaitGroup

	if conf.Redis.Enabled {
		redisStorage, err := storage.New(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		archive := service.NewArchiveService(logger, repository.NewResultRepository(redisStorage), collectors, conf.ArchiveBuffer)

		background.Add(1)
		go func() {
			defer background.Done()
			archive.Run(ctx)
		}()

		coordinatorOpts = append(coordinatorOpts, session.WithArchiver(archive))
		restOpts = append(restOpts, rest.WithArchive(archive))

		log.Info("Game archive enabled", "addr", conf.Redis.GetRedisAddr())
	}

	defer background.Wait()

	coordinator := session.NewCoordinator(logger, conf.MaxClients, coordinatorOpts...)
	defer coordinator.Shutdown()

	connWorker := worker.New(logger, coordinator, conf.MailboxSize, worker.WithMetrics(collectors))

	errCh := make(chan error, 3)

	run := func(name, port string, start func(context.Context, string) error) {
		background.Add(1)
		go func() {
			defer background.Done()

			log.Info("Starting server", "server", name, "port", port)
			if err := start(ctx, port); err != nil {
				log.Error("Server error", "server", name, "error", err)
				errCh <- fmt.Errorf("%s server error: %w", name, err)
			}
		}()
	}

	run("HTTP", conf.HTTPPort, rest.New(logger, coordinator, collectors.Handler(), restOpts...).Start)
	run("TCP", conf.SocketPort, tcp.New(logger, connWorker).Start)
	run("WebSocket", conf.WebSocketPort, websocket.New(logger, connWorker).Start)

	select {
	case err := <-errCh:
		cancel()
		coordinator.Shutdown()
		return err
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		coordinator.Shutdown()
		return nil
	}
}
