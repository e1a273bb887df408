package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelpond/tictactoe-rooms/internal/apperror"
	"github.com/pixelpond/tictactoe-rooms/internal/entity"
	"github.com/pixelpond/tictactoe-rooms/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRooms struct {
	room    *entity.Room
	joinErr error
	leaves  int
	records []*entity.Room
}

func (that *fakeRooms) Create(_ context.Context, _, _ string) (*entity.Room, error) {
	return that.room, nil
}

func (that *fakeRooms) Join(_ context.Context, _, _, _ string) (*entity.Room, error) {
	if that.joinErr != nil {
		return nil, that.joinErr
	}
	return that.room, nil
}

func (that *fakeRooms) Leave(context.Context, string, bool) { that.leaves++ }

func (that *fakeRooms) Get(context.Context, string) (*entity.Room, error) {
	return that.room, nil
}

func (that *fakeRooms) RecordResult(_ context.Context, room *entity.Room) {
	that.records = append(that.records, room)
}

type fakeAccess struct {
	mu           sync.Mutex
	pushes       int
	onChange     func(*entity.Room)
	unsubscribed int
	fired        int
}

func (that *fakeAccess) UpdateGameState(context.Context, string, [9]string, string, string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.pushes++
	return nil
}

func (that *fakeAccess) Subscribe(_ context.Context, _ string, onChange func(*entity.Room)) (func(), error) {
	that.onChange = onChange
	return func() { that.unsubscribed++ }, nil
}

func (that *fakeAccess) FireDisconnects(context.Context, string) {
	that.fired++
}

type emitted struct {
	action  string
	payload any
}

type emitRecorder struct {
	mu     sync.Mutex
	events []emitted
}

func (that *emitRecorder) emit(action string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.events = append(that.events, emitted{action: action, payload: payload})
}

func (that *emitRecorder) actions() []string {
	that.mu.Lock()
	defer that.mu.Unlock()
	actions := make([]string, 0, len(that.events))
	for _, event := range that.events {
		actions = append(actions, event.action)
	}
	return actions
}

func (that *emitRecorder) last(action string) (StatePayload, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()
	for i := len(that.events) - 1; i >= 0; i-- {
		if that.events[i].action == action {
			payload, ok := that.events[i].payload.(StatePayload)
			return payload, ok
		}
	}
	return StatePayload{}, false
}

func newSession(rooms *fakeRooms, access *fakeAccess) (*MatchSession, *emitRecorder) {
	recorder := &emitRecorder{}
	session := NewMatchSession(testLogger(), "session-a", rooms, access, service.NewBotService(), 0, recorder.emit)
	return session, recorder
}

func TestMatchSession_StartLocal(t *testing.T) {
	session, recorder := newSession(&fakeRooms{}, &fakeAccess{})

	session.StartLocal()

	state, ok := recorder.last(ActionState)
	require.True(t, ok)
	require.Equal(t, "local", state.Mode)
	require.Equal(t, entity.PlayerX, state.Turn)
}

func TestMatchSession_LocalMoveFlow(t *testing.T) {
	ctx := context.Background()
	session, recorder := newSession(&fakeRooms{}, &fakeAccess{})

	session.StartLocal()

	require.NoError(t, session.Move(ctx, 0))
	require.ErrorIs(t, session.Move(ctx, 0), apperror.ErrCellOccupied)

	state, ok := recorder.last(ActionState)
	require.True(t, ok)
	require.Equal(t, entity.PlayerX, state.Board[0])
	require.Equal(t, entity.PlayerO, state.Turn)
}

func TestMatchSession_CreateRoom(t *testing.T) {
	ctx := context.Background()

	rooms := &fakeRooms{room: entity.NewRoom("AB2C", "Alice")}
	access := &fakeAccess{}
	session, recorder := newSession(rooms, access)

	require.NoError(t, session.CreateRoom(ctx, "Alice"))

	// Then: the shareable code is emitted and the synchronizer is attached
	require.Contains(t, recorder.actions(), ActionRoomCreated)
	require.NotNil(t, access.onChange)

	state, ok := recorder.last(ActionState)
	require.True(t, ok)
	require.Equal(t, "online", state.Mode)
	require.Equal(t, entity.PlayerX, state.Symbol)
	require.Equal(t, "AB2C", state.RoomCode)
}

func TestMatchSession_OpponentJoinedSignal(t *testing.T) {
	ctx := context.Background()

	rooms := &fakeRooms{room: entity.NewRoom("AB2C", "Alice")}
	access := &fakeAccess{}
	session, recorder := newSession(rooms, access)

	require.NoError(t, session.CreateRoom(ctx, "Alice"))

	// When: a snapshot shows the opponent joined
	joined := entity.NewRoom("AB2C", "Alice")
	joined.Players.Player2 = entity.PlayerSlot{Name: "Bob", Symbol: entity.PlayerO, Joined: true}
	joined.Status = entity.StatusPlaying
	access.onChange(joined)
	access.onChange(joined)

	// Then: the one-shot transition fired exactly once
	count := 0
	for _, action := range recorder.actions() {
		if action == ActionOpponentJoined {
			count++
		}
	}
	require.Equal(t, 1, count)

	// Then: the state now carries the opponent
	state, ok := recorder.last(ActionState)
	require.True(t, ok)
	require.Equal(t, "Bob", state.OpponentName)
	require.True(t, state.OpponentConnected)
}

func TestMatchSession_OnlineMovePushes(t *testing.T) {
	ctx := context.Background()

	rooms := &fakeRooms{room: entity.NewRoom("AB2C", "Alice")}
	access := &fakeAccess{}
	session, _ := newSession(rooms, access)

	require.NoError(t, session.CreateRoom(ctx, "Alice"))

	// Given: the opponent is connected and it's X's turn
	joined := entity.NewRoom("AB2C", "Alice")
	joined.Players.Player2 = entity.PlayerSlot{Name: "Bob", Symbol: entity.PlayerO, Joined: true}
	joined.Status = entity.StatusPlaying
	access.onChange(joined)

	// When: the host moves
	require.NoError(t, session.Move(ctx, 4))

	// Then: the move was pushed to the room
	assert.Equal(t, 1, access.pushes)

	// When: it is no longer this client's turn
	err := session.Move(ctx, 5)

	// Then: the move is gated with no push
	require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	assert.Equal(t, 1, access.pushes)
}

func TestMatchSession_RecordsFinishedMatchOnce(t *testing.T) {
	ctx := context.Background()

	rooms := &fakeRooms{room: entity.NewRoom("AB2C", "Alice")}
	access := &fakeAccess{}
	session, _ := newSession(rooms, access)

	require.NoError(t, session.CreateRoom(ctx, "Alice"))

	// When: snapshots deliver a finished match more than once
	finished := entity.NewRoom("AB2C", "Alice")
	finished.Players.Player2 = entity.PlayerSlot{Name: "Bob", Symbol: entity.PlayerO, Joined: true}
	finished.Board = [9]string{entity.PlayerX, entity.PlayerX, entity.PlayerX, entity.PlayerO, entity.PlayerO}
	finished.Winner = entity.PlayerX
	finished.Status = entity.StatusFinished
	access.onChange(finished)
	access.onChange(finished)

	// Then: exactly one history record
	require.Len(t, rooms.records, 1)
	assert.Equal(t, entity.PlayerX, rooms.records[0].Winner)
}

func TestMatchSession_LeaveRoom(t *testing.T) {
	ctx := context.Background()

	rooms := &fakeRooms{room: entity.NewRoom("AB2C", "Alice")}
	access := &fakeAccess{}
	session, _ := newSession(rooms, access)

	require.NoError(t, session.CreateRoom(ctx, "Alice"))

	session.LeaveRoom(ctx)

	// Then: the player left and the subscription detached
	require.Equal(t, 1, rooms.leaves)
	require.Equal(t, 1, access.unsubscribed)

	// leaving again is a no-op
	session.LeaveRoom(ctx)
	require.Equal(t, 1, rooms.leaves)
}

func TestMatchSession_CloseFiresDisconnectsOnce(t *testing.T) {
	ctx := context.Background()

	rooms := &fakeRooms{room: entity.NewRoom("AB2C", "Alice")}
	access := &fakeAccess{}
	session, _ := newSession(rooms, access)

	require.NoError(t, session.CreateRoom(ctx, "Alice"))

	session.Close(ctx)
	session.Close(ctx)

	require.Equal(t, 1, access.fired)
	require.Equal(t, 1, access.unsubscribed)
}
