package tictactoe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixelpond/tictactoe-rooms/internal/apperror"
	"github.com/pixelpond/tictactoe-rooms/internal/entity"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeBot    Mode = "bot"
	ModeOnline Mode = "online"
)

var ErrInvalidCell = errors.New("invalid cell index")

// statePusher - the repository surface the controller needs in online mode.
type statePusher interface {
	UpdateGameState(ctx context.Context, code string, board [9]string, nextTurn, winner string) error
}

// moveChooser - the externally supplied AI move selection.
type moveChooser interface {
	ChooseMove(board [9]string, symbol, difficulty string) (int, error)
}

// State - the controller's local view of one match.
type State struct {
	Board       [9]string
	Turn        string
	Winner      string
	WinningLine *[3]int
}

// Controller owns "whose turn is it" for one match. The state machine is
// identical across local, bot and online modes; online mode additionally
// gates moves on the client's own symbol and the opponent's connectivity,
// and pushes every applied move to the room repository.
type Controller struct {
	logger *slog.Logger
	mode   Mode

	mu          sync.Mutex
	board       [9]string
	turn        string
	winner      string
	winningLine *[3]int

	// online
	roomCode          string
	mySymbol          string
	opponentConnected bool
	pusher            statePusher

	// bot
	chooser    moveChooser
	botSymbol  string
	difficulty string
	thinkDelay time.Duration
}

func NewLocalController(logger *slog.Logger) *Controller {
	return &Controller{
		logger: logger.With("component", "matchController", "mode", ModeLocal),
		mode:   ModeLocal,
		turn:   entity.PlayerX,
	}
}

// NewBotController - the human always holds X, the bot answers as O through
// the same move path after a fixed think delay.
func NewBotController(logger *slog.Logger, chooser moveChooser, difficulty string, thinkDelay time.Duration) *Controller {
	return &Controller{
		logger:     logger.With("component", "matchController", "mode", ModeBot),
		mode:       ModeBot,
		turn:       entity.PlayerX,
		chooser:    chooser,
		botSymbol:  entity.PlayerO,
		difficulty: difficulty,
		thinkDelay: thinkDelay,
	}
}

func NewOnlineController(logger *slog.Logger, pusher statePusher, roomCode, mySymbol string) *Controller {
	return &Controller{
		logger:   logger.With("component", "matchController", "mode", ModeOnline, "room", roomCode),
		mode:     ModeOnline,
		turn:     entity.PlayerX,
		roomCode: roomCode,
		mySymbol: mySymbol,
		pusher:   pusher,
	}
}

func (that *Controller) Mode() Mode {
	return that.mode
}

func (that *Controller) Symbol() string {
	return that.mySymbol
}

// AttemptMove - places the current mover's symbol at the cell if the move is
// legal, evaluates the terminal condition and alternates the turn. In online
// mode the result is applied locally first and then pushed; the next
// snapshot is expected to confirm it.
func (that *Controller) AttemptMove(ctx context.Context, cell int) error {
	that.mu.Lock()

	if cell < 0 || cell >= len(that.board) {
		that.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidCell, cell)
	}

	if that.winner != "" {
		that.mu.Unlock()
		return apperror.ErrMatchFinished
	}

	if that.board[cell] != entity.EmptyCell {
		that.mu.Unlock()
		return apperror.ErrCellOccupied
	}

	if that.mode == ModeOnline {
		if that.turn != that.mySymbol {
			that.mu.Unlock()
			return apperror.ErrNotYourTurn
		}
		if !that.opponentConnected {
			that.mu.Unlock()
			return apperror.ErrOpponentDisconnected
		}
	}

	that.board[cell] = that.turn
	that.evaluateLocked()

	board, turn, winner := that.board, that.turn, that.winner
	scheduleBot := that.mode == ModeBot && that.winner == "" && that.turn == that.botSymbol
	that.mu.Unlock()

	if that.mode == ModeOnline {
		that.push(ctx, board, turn, winner)
	}

	if scheduleBot {
		that.scheduleBotMove(ctx)
	}

	return nil
}

// SetOpponentConnected - online mode only: moves are rejected while the
// opponent is away.
func (that *Controller) SetOpponentConnected(connected bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.opponentConnected = connected
}

// ApplySnapshot - ingests the authoritative board, turn and winner projected
// from a room snapshot. The last snapshot wins over any local state.
func (that *Controller) ApplySnapshot(board [9]string, turn, winner string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.board = board
	that.turn = turn
	that.winner = winner
	that.winningLine = nil

	if winner != "" && winner != entity.WinnerDraw {
		if line, ok := entity.WinningLine(board); ok {
			that.winningLine = &line
		}
	}
}

// Reset - restores the initial state. Online mode pushes the reset as a
// normal state update: either participant may unilaterally restart the
// shared match.
func (that *Controller) Reset(ctx context.Context) error {
	that.mu.Lock()
	that.board = [9]string{}
	that.turn = entity.PlayerX
	that.winner = ""
	that.winningLine = nil
	board, turn := that.board, that.turn
	that.mu.Unlock()

	if that.mode == ModeOnline {
		if err := that.pusher.UpdateGameState(ctx, that.roomCode, board, turn, ""); err != nil {
			return fmt.Errorf("failed to push reset: %w", err)
		}
	}

	return nil
}

func (that *Controller) State() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	state := State{
		Board:  that.board,
		Turn:   that.turn,
		Winner: that.winner,
	}
	if that.winningLine != nil {
		line := *that.winningLine
		state.WinningLine = &line
	}

	return state
}

func (that *Controller) evaluateLocked() {
	switch winner := entity.DetermineWinner(that.board); winner {
	case entity.PlayerX, entity.PlayerO:
		that.winner = winner
		if line, ok := entity.WinningLine(that.board); ok {
			that.winningLine = &line
		}
	case entity.WinnerDraw:
		that.winner = entity.WinnerDraw
	default:
		that.turn = entity.ToggleSymbol(that.turn)
	}
}

// push - move-push failures are not surfaced: the design relies on the next
// snapshot for convergence.
func (that *Controller) push(ctx context.Context, board [9]string, turn, winner string) {
	if err := that.pusher.UpdateGameState(ctx, that.roomCode, board, turn, winner); err != nil {
		that.logger.Error("failed to push game state", "error", err)
	}
}

func (that *Controller) scheduleBotMove(ctx context.Context) {
	time.AfterFunc(that.thinkDelay, func() {
		that.mu.Lock()
		if that.winner != "" || that.turn != that.botSymbol {
			that.mu.Unlock()
			return
		}
		board := that.board
		that.mu.Unlock()

		cell, err := that.chooser.ChooseMove(board, that.botSymbol, that.difficulty)
		if err != nil {
			that.logger.Error("bot failed to choose a move", "error", err)
			return
		}

		// the bot is just another mover, not a special code path
		if err = that.AttemptMove(ctx, cell); err != nil {
			that.logger.Error("bot failed to make turn", "error", err)
		}
	})
}
