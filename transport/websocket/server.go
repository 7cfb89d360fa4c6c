package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-arena/internal/worker"
)

const (
	writeTimeout    = 10 * time.Second
	maxMessageSize  = 1024
	shutdownTimeout = 5 * time.Second
)

type connHandler interface {
	Serve(ctx context.Context, conn worker.Conn)
}

// Server upgrades /ws requests and hands each connection to a worker.
// One text message carries one command or notification.
type Server struct {
	logger   *slog.Logger
	handler  connHandler
	upgrader websocket.Upgrader

	wg sync.WaitGroup
}

func New(logger *slog.Logger, handler connHandler) *Server {
	return &Server{
		logger:  logger.With("component", "websocket"),
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the /ws endpoint; connections it accepts live until ctx is done.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server and blocks until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	log := that.logger.With("method", "Start")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// hijacked connections are not tracked by http.Server
	that.wg.Wait()

	return nil
}

func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)

	that.wg.Add(1)
	defer that.wg.Done()

	that.handler.Serve(ctx, &wsConn{conn: conn})
}

type wsConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

// ReadLine returns the next text message; other message types are skipped.
func (that *wsConn) ReadLine() (string, error) {
	for {
		messageType, data, err := that.conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("failed to read message: %w", err)
		}

		if messageType == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func (that *wsConn) WriteLine(line string) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := that.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *wsConn) Close() error {
	var err error

	that.once.Do(func() {
		deadline := time.Now().Add(time.Second)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = that.conn.WriteControl(websocket.CloseMessage, message, deadline)

		err = that.conn.Close()
	})

	return err
}

func (that *wsConn) RemoteAddr() string {
	return that.conn.RemoteAddr().String()
}
