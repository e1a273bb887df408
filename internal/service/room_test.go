package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelpond/tictactoe-rooms/internal/apperror"
	"github.com/pixelpond/tictactoe-rooms/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRoomRepo struct {
	createdName string
	joinedCode  string
	joinedName  string
	leaveCalls  int
	room        *entity.Room
	err         error
}

func (that *fakeRoomRepo) CreateRoom(_ context.Context, _, displayName string) (*entity.Room, error) {
	that.createdName = displayName
	return that.room, that.err
}

func (that *fakeRoomRepo) JoinRoom(_ context.Context, _, code, displayName string) (*entity.Room, error) {
	that.joinedCode = code
	that.joinedName = displayName
	return that.room, that.err
}

func (that *fakeRoomRepo) LeaveRoom(context.Context, string, bool) {
	that.leaveCalls++
}

func (that *fakeRoomRepo) GetByCode(context.Context, string) (*entity.Room, error) {
	return that.room, that.err
}

type fakeHistory struct {
	records []*entity.MatchRecord
	err     error
}

func (that *fakeHistory) Record(_ context.Context, record *entity.MatchRecord) error {
	that.records = append(that.records, record)
	return that.err
}

func TestNormalizeCode(t *testing.T) {
	t.Run("Lowercase and whitespace are normalized", func(t *testing.T) {
		code, err := NormalizeCode("  ab2c ")
		require.NoError(t, err)
		assert.Equal(t, "AB2C", code)
	})

	t.Run("Wrong length is rejected before any network call", func(t *testing.T) {
		for _, code := range []string{"", "ABC", "AB2CD"} {
			_, err := NormalizeCode(code)
			require.ErrorIs(t, err, apperror.ErrInvalidCode, "code %q", code)
		}
	})

	t.Run("Characters outside the alphabet are rejected", func(t *testing.T) {
		for _, code := range []string{"AB0C", "AB1C", "ABOC", "ABIC", "AB?C"} {
			_, err := NormalizeCode(code)
			require.ErrorIs(t, err, apperror.ErrInvalidCode, "code %q", code)
		}
	})
}

func TestRoomService_Create(t *testing.T) {
	ctx := context.Background()

	repo := &fakeRoomRepo{room: entity.NewRoom("AB2C", "Alice")}
	svc := NewRoomService(testLogger(), repo, nil)

	// When: creating with a blank display name
	room, err := svc.Create(ctx, "session-a", "   ")
	require.NoError(t, err)

	// Then: the name falls back to the default
	require.Equal(t, "Player", repo.createdName)
	require.Equal(t, "AB2C", room.Code)
}

func TestRoomService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("Invalid code never reaches the repository", func(t *testing.T) {
		repo := &fakeRoomRepo{}
		svc := NewRoomService(testLogger(), repo, nil)

		_, err := svc.Join(ctx, "session-b", "nope", "Bob")

		require.ErrorIs(t, err, apperror.ErrInvalidCode)
		assert.Empty(t, repo.joinedCode)
	})

	t.Run("Valid code is normalized and forwarded", func(t *testing.T) {
		repo := &fakeRoomRepo{room: entity.NewRoom("AB2C", "Alice")}
		svc := NewRoomService(testLogger(), repo, nil)

		_, err := svc.Join(ctx, "session-b", "ab2c", "Bob")

		require.NoError(t, err)
		assert.Equal(t, "AB2C", repo.joinedCode)
		assert.Equal(t, "Bob", repo.joinedName)
	})

	t.Run("Repository errors pass through", func(t *testing.T) {
		repo := &fakeRoomRepo{err: apperror.ErrRoomFull}
		svc := NewRoomService(testLogger(), repo, nil)

		_, err := svc.Join(ctx, "session-b", "AB2C", "Bob")

		require.ErrorIs(t, err, apperror.ErrRoomFull)
	})
}

func TestRoomService_RecordResult(t *testing.T) {
	ctx := context.Background()

	t.Run("Finished match is recorded", func(t *testing.T) {
		history := &fakeHistory{}
		svc := NewRoomService(testLogger(), &fakeRoomRepo{}, history)

		room := entity.NewRoom("AB2C", "Alice")
		room.Players.Player2.Name = "Bob"
		room.Winner = entity.PlayerX
		room.Status = entity.StatusFinished

		svc.RecordResult(ctx, room)

		require.Len(t, history.records, 1)
		assert.Equal(t, "AB2C", history.records[0].RoomCode)
		assert.Equal(t, entity.PlayerX, history.records[0].Winner)
		assert.Equal(t, "Alice", history.records[0].PlayerX)
		assert.Equal(t, "Bob", history.records[0].PlayerO)
	})

	t.Run("Unfinished match is skipped", func(t *testing.T) {
		history := &fakeHistory{}
		svc := NewRoomService(testLogger(), &fakeRoomRepo{}, history)

		svc.RecordResult(ctx, entity.NewRoom("AB2C", "Alice"))

		assert.Empty(t, history.records)
	})

	t.Run("History failure never propagates", func(t *testing.T) {
		history := &fakeHistory{err: errors.New("disk full")}
		svc := NewRoomService(testLogger(), &fakeRoomRepo{}, history)

		room := entity.NewRoom("AB2C", "Alice")
		room.Winner = entity.WinnerDraw

		// no panic, no error surface
		svc.RecordResult(ctx, room)
	})
}
