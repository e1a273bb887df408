package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pixelpond/tictactoe-rooms/internal/service"
	"github.com/pixelpond/tictactoe-rooms/internal/usecase"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 30 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Server - the WebSocket transport. Each connection gets its own session id
// and MatchSession; all outgoing messages go through a per-connection writer
// lock since emits can come from the pub/sub goroutine.
type Server struct {
	logger     *slog.Logger
	rooms      service.RoomService
	roomAccess usecase.RoomAccess
	bot        service.BotService
	thinkDelay time.Duration

	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, rooms service.RoomService, roomAccess usecase.RoomAccess, bot service.BotService, thinkDelay time.Duration) *Server {
	return &Server{
		logger:     logger.With("component", "websocketServer"),
		rooms:      rooms,
		roomAccess: roomAccess,
		bot:        bot,
		thinkDelay: thinkDelay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start - starts the WebSocket server and shuts it down when the context is
// canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.handleConnection(ctx, w, r)
	})

	// no read timeout, websocket connections are long-lived
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}

		return nil
	}
}

func (that *Server) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log = log.With("session", sessionID)
	log.Info("WebSocket connection established")

	var writeMu sync.Mutex
	emit := func(action string, payload any) {
		writeMu.Lock()
		defer writeMu.Unlock()

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(Message{Action: action, Payload: mustMarshal(payload)}); err != nil {
			log.Error("failed to write message", "error", err)
		}
	}

	session := usecase.NewMatchSession(that.logger, sessionID, that.rooms, that.roomAccess, that.bot, that.thinkDelay, emit)

	// transport-level disconnection commits the armed deferred writes
	defer session.Close(ctx)

	emit(ActionConnect, ConnectedPayload{SessionID: sessionID})

	for {
		var message Message
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("connection closed unexpectedly", "error", err)
			}
			return
		}

		if err := that.dispatch(ctx, session, emit, &message); err != nil {
			emit(ActionError, ErrorPayload{Error: err.Error()})
		}
	}
}
