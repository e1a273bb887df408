package roomsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pixelpond/tictactoe-rooms/internal/entity"
)

// View - the typed projection of a room snapshot for one client.
type View struct {
	Status            string
	Board             [9]string
	Turn              string
	Winner            string
	WinningLine       *[3]int
	OpponentName      string
	OpponentConnected bool
}

// Listener receives the signals the view layer needs. OnOpponentJoined fires
// exactly once per subscription lifetime; the connectivity pair may fire any
// number of times while the match is unfinished.
type Listener interface {
	OnSnapshot(view View)
	OnOpponentJoined()
	OnOpponentDisconnected()
	OnOpponentReconnected()
}

type subscriber interface {
	Subscribe(ctx context.Context, code string, onChange func(*entity.Room)) (func(), error)
}

// Synchronizer converts the stream of raw room snapshots into local match
// state for exactly one client. The symbol is assigned once at create/join
// time and never changes.
type Synchronizer struct {
	logger   *slog.Logger
	symbol   string
	listener Listener

	mu           sync.Mutex
	view         View
	joinLatched  bool
	opponentLost bool

	unsubscribe func()
	detachOnce  sync.Once
}

func New(logger *slog.Logger, symbol string, listener Listener) *Synchronizer {
	return &Synchronizer{
		logger:   logger.With("component", "roomSynchronizer"),
		symbol:   symbol,
		listener: listener,
	}
}

// Attach - subscribes to the room's change stream. Must be paired with
// exactly one Detach; extra Detach calls are safe no-ops.
func (that *Synchronizer) Attach(ctx context.Context, rooms subscriber, code string) error {
	unsubscribe, err := rooms.Subscribe(ctx, code, that.handleSnapshot)
	if err != nil {
		return fmt.Errorf("failed to subscribe to room: %w", err)
	}

	that.mu.Lock()
	that.unsubscribe = unsubscribe
	that.mu.Unlock()

	return nil
}

func (that *Synchronizer) Detach() {
	that.detachOnce.Do(func() {
		that.mu.Lock()
		unsubscribe := that.unsubscribe
		that.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
	})
}

func (that *Synchronizer) View() View {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.view
}

func (that *Synchronizer) handleSnapshot(room *entity.Room) {
	opponent := room.OpponentOf(that.symbol)

	view := View{
		Status:            room.Status,
		Board:             room.Board,
		Turn:              room.CurrentTurn,
		Winner:            room.Winner,
		OpponentName:      opponent.Name,
		OpponentConnected: opponent.Joined,
	}

	// the winning line is not transmitted over the wire, only the terminal
	// symbol is; recompute it from the snapshot's board
	if room.Winner != "" && room.Winner != entity.WinnerDraw {
		if line, ok := entity.WinningLine(room.Board); ok {
			view.WinningLine = &line
		}
	}

	that.mu.Lock()
	that.view = view

	justJoined := false
	if !that.joinLatched && opponent.Joined {
		// one-shot latch, set before signaling so redelivered snapshots
		// cannot re-fire the transition
		that.joinLatched = true
		justJoined = true
	}

	lost := false
	regained := false
	switch {
	case !that.opponentLost && !opponent.Joined && that.joinLatched && !room.IsFinished():
		that.opponentLost = true
		lost = true
	case that.opponentLost && opponent.Joined:
		that.opponentLost = false
		regained = true
	case that.opponentLost && room.IsFinished():
		that.opponentLost = false
	}
	that.mu.Unlock()

	that.listener.OnSnapshot(view)

	if justJoined {
		that.listener.OnOpponentJoined()
	}
	if lost {
		that.listener.OnOpponentDisconnected()
	}
	if regained {
		that.listener.OnOpponentReconnected()
	}
}
