package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pixelpond/tictactoe-rooms/internal/apperror"
	"github.com/pixelpond/tictactoe-rooms/internal/entity"
	"github.com/pixelpond/tictactoe-rooms/internal/pkg"
)

const defaultDisplayName = "Player"

// RoomService fronts the room repository with the caller-side concerns the
// transports share: display-name defaulting, code validation before any
// network call, and the best-effort history record on finished matches.
type RoomService interface {
	Create(ctx context.Context, sessionID, displayName string) (*entity.Room, error)
	Join(ctx context.Context, sessionID, code, displayName string) (*entity.Room, error)
	Leave(ctx context.Context, code string, isPlayer1 bool)
	Get(ctx context.Context, code string) (*entity.Room, error)
	RecordResult(ctx context.Context, room *entity.Room)
}

type roomRepo interface {
	CreateRoom(ctx context.Context, sessionID, displayName string) (*entity.Room, error)
	JoinRoom(ctx context.Context, sessionID, code, displayName string) (*entity.Room, error)
	LeaveRoom(ctx context.Context, code string, isPlayer1 bool)
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
}

type historyRepo interface {
	Record(ctx context.Context, record *entity.MatchRecord) error
}

type roomService struct {
	logger   *slog.Logger
	roomRepo roomRepo
	history  historyRepo
}

func NewRoomService(logger *slog.Logger, roomRepo roomRepo, history historyRepo) RoomService {
	return &roomService{
		logger:   logger.With("component", "roomService"),
		roomRepo: roomRepo,
		history:  history,
	}
}

func (that *roomService) Create(ctx context.Context, sessionID, displayName string) (*entity.Room, error) {
	room, err := that.roomRepo.CreateRoom(ctx, sessionID, cleanName(displayName))
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

func (that *roomService) Join(ctx context.Context, sessionID, code, displayName string) (*entity.Room, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	room, err := that.roomRepo.JoinRoom(ctx, sessionID, normalized, cleanName(displayName))
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	return room, nil
}

func (that *roomService) Leave(ctx context.Context, code string, isPlayer1 bool) {
	that.roomRepo.LeaveRoom(ctx, code, isPlayer1)
}

func (that *roomService) Get(ctx context.Context, code string) (*entity.Room, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	room, err := that.roomRepo.GetByCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

// RecordResult - best-effort: a history failure must never block gameplay.
func (that *roomService) RecordResult(ctx context.Context, room *entity.Room) {
	log := that.logger.With("method", "RecordResult", "room", room.Code)

	if that.history == nil || room.Winner == "" {
		return
	}

	record := &entity.MatchRecord{
		RoomCode:   room.Code,
		Winner:     room.Winner,
		PlayerX:    room.Players.Player1.Name,
		PlayerO:    room.Players.Player2.Name,
		FinishedAt: time.Now().UTC(),
	}

	if err := that.history.Record(ctx, record); err != nil {
		log.Error("failed to record match result", "error", err)
	}
}

// NormalizeCode - caller-side validation: uppercases and checks shape before
// any network call.
func NormalizeCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	if len(normalized) != pkg.RoomCodeLength {
		return "", apperror.ErrInvalidCode
	}

	for _, r := range normalized {
		if !strings.ContainsRune(pkg.RoomCodeAlphabet, r) {
			return "", apperror.ErrInvalidCode
		}
	}

	return normalized, nil
}

func cleanName(displayName string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return defaultDisplayName
	}

	return name
}
