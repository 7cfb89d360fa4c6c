package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/worker"
)

const (
	maxLineLength = 1024
	writeTimeout  = 10 * time.Second
)

type connHandler interface {
	Serve(ctx context.Context, conn worker.Conn)
}

// Server accepts newline-framed text connections and hands each one to a worker.
type Server struct {
	logger  *slog.Logger
	handler connHandler

	wg sync.WaitGroup
}

func New(logger *slog.Logger, handler connHandler) *Server {
	return &Server{
		logger:  logger.With("component", "tcp"),
		handler: handler,
	}
}

// Start - listens on port and serves until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return that.Serve(ctx, listener)
}

// Serve accepts on listener until ctx is done, then waits for open connections to finish.
func (that *Server) Serve(ctx context.Context, listener net.Listener) error {
	log := that.logger.With("method", "Serve", "addr", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		_ = listener.Close()
	})
	defer stop()

	log.Info("accepting connections")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				that.wg.Wait()
				log.Info("listener closed")
				return nil
			}

			return fmt.Errorf("failed to accept connection: %w", err)
		}

		that.wg.Add(1)
		go func() {
			defer that.wg.Done()
			that.handler.Serve(ctx, newLineConn(conn))
		}()
	}
}

type lineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner

	writeMu sync.Mutex
	once    sync.Once
}

func newLineConn(conn net.Conn) *lineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)

	return &lineConn{
		conn:    conn,
		scanner: scanner,
	}
}

func (that *lineConn) ReadLine() (string, error) {
	if !that.scanner.Scan() {
		if err := that.scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read line: %w", err)
		}

		return "", io.EOF
	}

	return strings.TrimRight(that.scanner.Text(), "\r"), nil
}

func (that *lineConn) WriteLine(line string) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if _, err := that.conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}

	return nil
}

func (that *lineConn) Close() error {
	var err error

	that.once.Do(func() {
		err = that.conn.Close()
	})

	return err
}

func (that *lineConn) RemoteAddr() string {
	return that.conn.RemoteAddr().String()
}
