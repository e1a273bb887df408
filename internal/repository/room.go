package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixelpond/tictactoe-rooms/internal/apperror"
	"github.com/pixelpond/tictactoe-rooms/internal/entity"
	"github.com/pixelpond/tictactoe-rooms/internal/pkg"
)

// RoomRepository owns the room lifecycle against the shared store: creation,
// join, leave, move pushes and the per-room change subscription. Every write
// is an unconditional overwrite of the whole document (last-writer-wins),
// except the join which runs as an optimistic transaction on the room key.
type RoomRepository interface {
	CreateRoom(ctx context.Context, sessionID, displayName string) (*entity.Room, error)
	JoinRoom(ctx context.Context, sessionID, code, displayName string) (*entity.Room, error)
	LeaveRoom(ctx context.Context, code string, isPlayer1 bool)
	UpdateGameState(ctx context.Context, code string, board [9]string, nextTurn, winner string) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	Subscribe(ctx context.Context, code string, onChange func(*entity.Room)) (func(), error)

	ArmDisconnect(sessionID, code string, isPlayer1 bool)
	FireDisconnects(ctx context.Context, sessionID string)
}

type disconnectHook struct {
	code      string
	isPlayer1 bool
}

type dbRoom struct {
	logger *slog.Logger
	client *redis.Client

	mu    sync.Mutex
	hooks map[string][]disconnectHook
}

func NewRoomRepository(logger *slog.Logger, client *redis.Client) RoomRepository {
	return &dbRoom{
		logger: logger.With("component", "roomRepository"),
		client: client,
		hooks:  make(map[string][]disconnectHook),
	}
}

func roomKey(code string) string {
	return "room:" + code
}

func roomChannel(code string) string {
	return "room:events:" + code
}

func (that *dbRoom) CreateRoom(ctx context.Context, sessionID, displayName string) (*entity.Room, error) {
	if that.client == nil {
		return nil, apperror.ErrStorageUnavailable
	}

	// No collision check against existing rooms: a pre-existing room with
	// the same code is overwritten.
	code := pkg.GenerateRoomCode()
	room := entity.NewRoom(code, displayName)

	if err := that.save(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	that.ArmDisconnect(sessionID, code, true)

	return room, nil
}

func (that *dbRoom) JoinRoom(ctx context.Context, sessionID, code, displayName string) (*entity.Room, error) {
	if that.client == nil {
		return nil, apperror.ErrStorageUnavailable
	}

	key := roomKey(code)

	var joined *entity.Room

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return apperror.ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get room: %w", err)
		}

		var room entity.Room
		if err = json.Unmarshal([]byte(raw), &room); err != nil {
			return fmt.Errorf("failed to unmarshal room: %w", err)
		}

		if room.Players.Player2.Joined {
			return apperror.ErrRoomFull
		}

		room.Players.Player2 = entity.PlayerSlot{Name: displayName, Symbol: entity.PlayerO, Joined: true}
		room.Status = entity.StatusPlaying

		payload, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("failed to marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to commit join: %w", err)
		}

		joined = &room

		return nil
	}, key)
	if err != nil {
		return nil, err
	}

	that.publish(ctx, joined)
	that.ArmDisconnect(sessionID, code, false)

	return joined, nil
}

// LeaveRoom - flips the leaving player's joined flag. Idempotent and
// fire-and-forget: storage errors are logged, never returned.
func (that *dbRoom) LeaveRoom(ctx context.Context, code string, isPlayer1 bool) {
	log := that.logger.With("method", "LeaveRoom", "code", code)

	if that.client == nil {
		return
	}

	room, err := that.GetByCode(ctx, code)
	if err != nil {
		log.Error("failed to get room", "error", err)
		return
	}

	if isPlayer1 {
		room.Players.Player1.Joined = false
	} else {
		room.Players.Player2.Joined = false
	}

	if err = that.save(ctx, room); err != nil {
		log.Error("failed to update room", "error", err)
	}
}

// UpdateGameState - the sole mutation path for in-progress moves. A
// non-empty winner additionally finishes the match; an empty winner clears
// a previous result so either participant can reset the shared match.
// The proposed board is trusted as-is, legality is the caller's job.
func (that *dbRoom) UpdateGameState(ctx context.Context, code string, board [9]string, nextTurn, winner string) error {
	if that.client == nil {
		return apperror.ErrStorageUnavailable
	}

	room, err := that.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}

	room.Board = board
	room.CurrentTurn = nextTurn
	room.LastMoveTimestamp = time.Now().UnixMilli()

	if winner != "" {
		room.Winner = winner
		room.Status = entity.StatusFinished
	} else {
		room.Winner = ""
		room.Status = entity.StatusPlaying
	}

	if err = that.save(ctx, room); err != nil {
		return fmt.Errorf("failed to update game state: %w", err)
	}

	return nil
}

func (that *dbRoom) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	if that.client == nil {
		return nil, apperror.ErrStorageUnavailable
	}

	raw, err := that.client.Get(ctx, roomKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(raw), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

// Subscribe - attaches a push listener delivering the full room document on
// every change, starting with the current snapshot if the room exists.
// When the store is unavailable an inert unsubscribe is returned so callers
// never need to handle a failed subscribe. The returned unsubscribe is safe
// to call more than once.
func (that *dbRoom) Subscribe(ctx context.Context, code string, onChange func(*entity.Room)) (func(), error) {
	log := that.logger.With("method", "Subscribe", "code", code)

	if that.client == nil {
		return func() {}, nil
	}

	pubsub := that.client.Subscribe(ctx, roomChannel(code))

	if room, err := that.GetByCode(ctx, code); err == nil {
		onChange(room)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var room entity.Room
			if err := json.Unmarshal([]byte(msg.Payload), &room); err != nil {
				log.Error("failed to unmarshal snapshot", "error", err)
				continue
			}
			onChange(&room)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				log.Error("failed to close subscription", "error", err)
			}
		})
	}

	return unsubscribe, nil
}

// ArmDisconnect - registers a deferred write: when the session's transport
// connection drops, the player's joined flag flips to false without further
// client action.
func (that *dbRoom) ArmDisconnect(sessionID, code string, isPlayer1 bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.hooks[sessionID] = append(that.hooks[sessionID], disconnectHook{code: code, isPlayer1: isPlayer1})
}

// FireDisconnects - commits the session's deferred writes. Each armed hook
// fires exactly once.
func (that *dbRoom) FireDisconnects(ctx context.Context, sessionID string) {
	that.mu.Lock()
	hooks := that.hooks[sessionID]
	delete(that.hooks, sessionID)
	that.mu.Unlock()

	for _, hook := range hooks {
		that.LeaveRoom(ctx, hook.code, hook.isPlayer1)
	}
}

func (that *dbRoom) save(ctx context.Context, room *entity.Room) error {
	payload, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	if err = that.client.Set(ctx, roomKey(room.Code), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	if err = that.client.Publish(ctx, roomChannel(room.Code), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	return nil
}

func (that *dbRoom) publish(ctx context.Context, room *entity.Room) {
	payload, err := json.Marshal(room)
	if err != nil {
		that.logger.Error("failed to marshal room", "error", err)
		return
	}

	if err = that.client.Publish(ctx, roomChannel(room.Code), payload).Err(); err != nil {
		that.logger.Error("failed to publish snapshot", "error", err)
	}
}
