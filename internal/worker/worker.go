package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-arena/internal/session"
)

// Conn is one framed client connection. Close must be safe to call more than once
// and must unblock a pending ReadLine.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

type coordinator interface {
	Join(name string, outbox session.Outbox) error
	Move(name string, cell int) error
	Leave(name string) error
	Chat(name, text string) error
}

type observer interface {
	ConnectionOpened()
	ConnectionClosed()
	ObserveCommand(command string, duration time.Duration)
}

var errLeft = errors.New("identity left")

type handler func(log *slog.Logger, name string, command protocol.Command) error

// Worker serves connections for one coordinator. It is safe for concurrent use.
type Worker struct {
	logger      *slog.Logger
	coordinator coordinator
	metrics     observer
	mailboxSize int

	handlers map[protocol.CommandType]handler
}

type Option func(*Worker)

func WithMetrics(metrics observer) Option {
	return func(that *Worker) {
		that.metrics = metrics
	}
}

func New(logger *slog.Logger, coordinator coordinator, mailboxSize int, opts ...Option) *Worker {
	worker := &Worker{
		logger:      logger.With("component", "worker"),
		coordinator: coordinator,
		metrics:     nopObserver{},
		mailboxSize: mailboxSize,

		handlers: make(map[protocol.CommandType]handler),
	}

	worker.handlers[protocol.CommandJoin] = worker.handleJoinAgain
	worker.handlers[protocol.CommandMove] = worker.handleMove
	worker.handlers[protocol.CommandLeave] = worker.handleLeave
	worker.handlers[protocol.CommandChat] = worker.handleChat

	for _, opt := range opts {
		opt(worker)
	}

	return worker
}

// Serve runs conn until the identity leaves, the connection is lost or ctx is done.
// It always closes conn.
func (that *Worker) Serve(ctx context.Context, conn Conn) {
	log := that.logger.With("method", "Serve", "conn_id", pkg.GenerateConnectionID(), "remote", conn.RemoteAddr())

	that.metrics.ConnectionOpened()
	defer that.metrics.ConnectionClosed()

	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	name, mailbox, ok := that.handshake(log, conn)
	if !ok {
		return
	}

	log = log.With("name", name)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		that.writeLoop(log, conn, mailbox)
	}()

	that.readLoop(log, conn, name)

	if err := that.coordinator.Leave(name); err != nil && !errors.Is(err, apperror.ErrUnknownIdentity) {
		log.Error("failed to leave", "error", err)
	}

	<-writerDone

	log.Info("connection finished")
}

// handshake waits for a JOIN. Anything else before it is logged and ignored.
func (that *Worker) handshake(log *slog.Logger, conn Conn) (string, *session.Mailbox, bool) {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			log.Info("connection lost before join", "error", fmt.Errorf("%w: %w", apperror.ErrConnectionLost, err))
			return "", nil, false
		}

		command, err := protocol.ParseCommand(line)
		if err != nil {
			log.Warn("invalid command", "line", line, "error", err)
			continue
		}

		if command.Type != protocol.CommandJoin {
			log.Warn("command before join ignored", "command", string(command.Type))
			continue
		}

		mailbox := session.NewMailbox(that.mailboxSize)

		if err = that.coordinator.Join(command.Name, mailbox); err != nil {
			that.reject(log, conn, err)
			return "", nil, false
		}

		return command.Name, mailbox, true
	}
}

func (that *Worker) reject(log *slog.Logger, conn Conn, err error) {
	var text string

	switch {
	case errors.Is(err, apperror.ErrNameCollision):
		text = protocol.TextNameTaken
	case errors.Is(err, apperror.ErrCapacityExceeded):
		text = protocol.TextServerFull
	case errors.Is(err, apperror.ErrServerShutdown):
		text = protocol.TextServerShutdown
	default:
		log.Error("join failed", "error", err)
		return
	}

	log.Warn("join rejected", "error", err)

	if writeErr := conn.WriteLine(protocol.Message(text).String()); writeErr != nil {
		log.Warn("failed to send rejection", "error", writeErr)
	}
}

func (that *Worker) readLoop(log *slog.Logger, conn Conn, name string) {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			log.Info("connection lost", "error", fmt.Errorf("%w: %w", apperror.ErrConnectionLost, err))
			return
		}

		command, err := protocol.ParseCommand(line)
		if err != nil {
			log.Warn("invalid command", "line", line, "error", err)
			continue
		}

		started := time.Now()
		err = that.handlers[command.Type](log, name, command)
		that.metrics.ObserveCommand(string(command.Type), time.Since(started))

		switch {
		case errors.Is(err, errLeft):
			return
		case errors.Is(err, apperror.ErrUnknownIdentity):
			log.Info("identity is no longer registered")
			return
		case err != nil:
			log.Error("failed to handle command", "command", string(command.Type), "error", err)
		}
	}
}

// writeLoop drains the mailbox until the coordinator closes it, then closes conn.
func (that *Worker) writeLoop(log *slog.Logger, conn Conn, mailbox *session.Mailbox) {
	defer conn.Close()

	for notification := range mailbox.Notifications() {
		if err := conn.WriteLine(notification.String()); err != nil {
			log.Warn("failed to write notification", "error", err)
			return
		}
	}
}

func (that *Worker) handleJoinAgain(log *slog.Logger, _ string, command protocol.Command) error {
	log.Warn("already joined, JOIN ignored", "requested", command.Name)
	return nil
}

func (that *Worker) handleMove(log *slog.Logger, name string, command protocol.Command) error {
	err := that.coordinator.Move(name, command.Cell)
	if errors.Is(err, apperror.ErrInvalidMove) {
		log.Debug("move rejected", "cell", command.Cell, "error", err)
		return nil
	}

	return err
}

func (that *Worker) handleLeave(_ *slog.Logger, name string, _ protocol.Command) error {
	if err := that.coordinator.Leave(name); err != nil {
		return err
	}

	return errLeft
}

func (that *Worker) handleChat(_ *slog.Logger, name string, command protocol.Command) error {
	return that.coordinator.Chat(name, command.Text)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()                    {}
func (nopObserver) ConnectionClosed()                    {}
func (nopObserver) ObserveCommand(string, time.Duration) {}
