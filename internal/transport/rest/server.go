package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixelpond/tictactoe-rooms/internal/apperror"
	"github.com/pixelpond/tictactoe-rooms/internal/repository"
	"github.com/pixelpond/tictactoe-rooms/internal/service"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Server - read-only REST surface: health check, point reads of rooms and
// the recent match history. All mutations go through the WebSocket transport.
type Server struct {
	logger  *slog.Logger
	rooms   service.RoomService
	history repository.HistoryRepository
}

func New(logger *slog.Logger, rooms service.RoomService, history repository.HistoryRepository) *Server {
	return &Server{
		logger:  logger.With("component", "restServer"),
		rooms:   rooms,
		history: history,
	}
}

func (that *Server) Start(ctx context.Context, port string) error {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", that.handlePing)

	api := router.Group("/api")
	api.GET("/rooms/:code", that.handleGetRoom)
	api.GET("/history", that.handleHistory)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
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

func (that *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (that *Server) handleGetRoom(c *gin.Context) {
	room, err := that.rooms.Get(c.Request.Context(), c.Param("code"))

	switch {
	case err == nil:
		c.JSON(http.StatusOK, room)
	case errors.Is(err, apperror.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room code"})
	case errors.Is(err, apperror.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	default:
		that.logger.Error("failed to get room", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (that *Server) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	records, err := that.history.Recent(c.Request.Context(), limit)
	if err != nil {
		that.logger.Error("failed to read history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": records})
}
