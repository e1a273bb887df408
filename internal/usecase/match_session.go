package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixelpond/tictactoe-rooms/internal/apperror"
	"github.com/pixelpond/tictactoe-rooms/internal/entity"
	"github.com/pixelpond/tictactoe-rooms/internal/roomsync"
	"github.com/pixelpond/tictactoe-rooms/internal/service"
	"github.com/pixelpond/tictactoe-rooms/internal/tictactoe"
)

// Emitted actions, pushed to the client through the transport.
const (
	ActionState                = "game:state"
	ActionRoomCreated          = "room:created"
	ActionOpponentJoined       = "room:opponent_joined"
	ActionOpponentDisconnected = "room:opponent_disconnected"
	ActionOpponentReconnected  = "room:opponent_reconnected"
)

// StatePayload - the full match view pushed to the client on every change.
type StatePayload struct {
	Mode              string    `json:"mode"`
	RoomCode          string    `json:"room_code,omitempty"`
	Symbol            string    `json:"symbol,omitempty"`
	Board             [9]string `json:"board"`
	Turn              string    `json:"turn"`
	Winner            string    `json:"winner,omitempty"`
	WinningLine       *[3]int   `json:"winning_line,omitempty"`
	OpponentName      string    `json:"opponent_name,omitempty"`
	OpponentConnected bool      `json:"opponent_connected"`
}

type RoomCreatedPayload struct {
	RoomCode string `json:"room_code"`
}

type roomStatePusher interface {
	UpdateGameState(ctx context.Context, code string, board [9]string, nextTurn, winner string) error
}

type roomSubscriber interface {
	Subscribe(ctx context.Context, code string, onChange func(*entity.Room)) (func(), error)
}

type disconnectRegistry interface {
	FireDisconnects(ctx context.Context, sessionID string)
}

// RoomAccess - everything a session needs from the repository beyond the
// validated RoomService surface.
type RoomAccess interface {
	roomStatePusher
	roomSubscriber
	disconnectRegistry
}

// MatchSession orchestrates one connected client: it owns the match
// controller, the room synchronizer and the session identity, and forwards
// state and room signals to the transport through the emit callback.
type MatchSession struct {
	logger     *slog.Logger
	sessionID  string
	rooms      service.RoomService
	roomAccess RoomAccess
	bot        service.BotService
	thinkDelay time.Duration
	emit       func(action string, payload any)

	mu             sync.Mutex
	controller     *tictactoe.Controller
	synchronizer   *roomsync.Synchronizer
	roomCode       string
	isPlayer1      bool
	lastRoom       *entity.Room
	resultRecorded bool
	closeOnce      sync.Once
}

func NewMatchSession(
	logger *slog.Logger,
	sessionID string,
	rooms service.RoomService,
	roomAccess RoomAccess,
	bot service.BotService,
	thinkDelay time.Duration,
	emit func(action string, payload any),
) *MatchSession {
	return &MatchSession{
		logger:     logger.With("component", "matchSession", "session", sessionID),
		sessionID:  sessionID,
		rooms:      rooms,
		roomAccess: roomAccess,
		bot:        bot,
		thinkDelay: thinkDelay,
		emit:       emit,
	}
}

// StartLocal - same-device match, local state is the single source of truth.
func (that *MatchSession) StartLocal() {
	that.mu.Lock()
	that.teardownLocked()
	that.controller = tictactoe.NewLocalController(that.logger)
	that.mu.Unlock()

	that.emitState()
}

// StartBot - single-player match against the automated opponent.
func (that *MatchSession) StartBot(difficulty string) {
	if difficulty != service.DifficultyHard {
		difficulty = service.DifficultyEasy
	}

	that.mu.Lock()
	that.teardownLocked()
	that.controller = tictactoe.NewBotController(that.logger, that.bot, difficulty, that.thinkDelay)
	that.mu.Unlock()

	that.emitState()
}

// CreateRoom - creates an online room; this client holds X and waits in the
// lobby until the synchronizer signals the opponent joined.
func (that *MatchSession) CreateRoom(ctx context.Context, displayName string) error {
	room, err := that.rooms.Create(ctx, that.sessionID, displayName)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if err = that.enterRoom(ctx, room, entity.PlayerX); err != nil {
		return err
	}

	that.emit(ActionRoomCreated, RoomCreatedPayload{RoomCode: room.Code})
	that.emitState()

	return nil
}

// JoinRoom - joins an existing room as O.
func (that *MatchSession) JoinRoom(ctx context.Context, code, displayName string) error {
	room, err := that.rooms.Join(ctx, that.sessionID, code, displayName)
	if err != nil {
		return err
	}

	if err = that.enterRoom(ctx, room, entity.PlayerO); err != nil {
		return err
	}

	that.emitState()

	return nil
}

// Move - applies a move through the controller; in online mode the
// controller pushes the result to the room.
func (that *MatchSession) Move(ctx context.Context, cell int) error {
	controller := that.currentController()
	if controller == nil {
		return apperror.ErrNoActiveMatch
	}

	if err := controller.AttemptMove(ctx, cell); err != nil {
		return err
	}

	that.emitState()

	return nil
}

// PlayAgain - resets the match; online resets are unilateral pushes.
func (that *MatchSession) PlayAgain(ctx context.Context) error {
	controller := that.currentController()
	if controller == nil {
		return apperror.ErrNoActiveMatch
	}

	if err := controller.Reset(ctx); err != nil {
		return err
	}

	that.mu.Lock()
	that.resultRecorded = false
	that.mu.Unlock()

	that.emitState()

	return nil
}

// LeaveRoom - explicit leave: flips this player's joined flag and detaches
// the synchronizer.
func (that *MatchSession) LeaveRoom(ctx context.Context) {
	that.mu.Lock()
	code := that.roomCode
	isPlayer1 := that.isPlayer1
	that.teardownLocked()
	that.mu.Unlock()

	if code == "" {
		return
	}

	that.rooms.Leave(ctx, code, isPlayer1)
}

// Close - transport-level disconnection: fires the armed deferred writes and
// detaches. Safe to call more than once.
func (that *MatchSession) Close(ctx context.Context) {
	that.closeOnce.Do(func() {
		that.mu.Lock()
		that.teardownLocked()
		that.mu.Unlock()

		that.roomAccess.FireDisconnects(ctx, that.sessionID)
	})
}

// OnSnapshot implements roomsync.Listener.
func (that *MatchSession) OnSnapshot(view roomsync.View) {
	controller := that.currentController()
	if controller == nil {
		return
	}

	controller.ApplySnapshot(view.Board, view.Turn, view.Winner)
	controller.SetOpponentConnected(view.OpponentConnected)

	that.emitState()
}

// OnOpponentJoined implements roomsync.Listener; fires exactly once per
// subscription, moving the client out of the lobby.
func (that *MatchSession) OnOpponentJoined() {
	that.emit(ActionOpponentJoined, that.statePayload())

	that.recordIfFinished()
}

// OnOpponentDisconnected implements roomsync.Listener.
func (that *MatchSession) OnOpponentDisconnected() {
	that.emit(ActionOpponentDisconnected, that.statePayload())
}

// OnOpponentReconnected implements roomsync.Listener.
func (that *MatchSession) OnOpponentReconnected() {
	that.emit(ActionOpponentReconnected, that.statePayload())
}

func (that *MatchSession) enterRoom(ctx context.Context, room *entity.Room, symbol string) error {
	synchronizer := roomsync.New(that.logger, symbol, that)

	that.mu.Lock()
	that.teardownLocked()
	that.controller = tictactoe.NewOnlineController(that.logger, that.roomAccess, room.Code, symbol)
	that.controller.SetOpponentConnected(room.OpponentOf(symbol).Joined)
	that.synchronizer = synchronizer
	that.roomCode = room.Code
	that.isPlayer1 = symbol == entity.PlayerX
	that.lastRoom = room
	that.mu.Unlock()

	if err := synchronizer.Attach(ctx, that.roomAccess, room.Code); err != nil {
		return fmt.Errorf("failed to attach synchronizer: %w", err)
	}

	return nil
}

func (that *MatchSession) teardownLocked() {
	if that.synchronizer != nil {
		that.synchronizer.Detach()
		that.synchronizer = nil
	}
	that.controller = nil
	that.roomCode = ""
	that.lastRoom = nil
	that.resultRecorded = false
}

func (that *MatchSession) currentController() *tictactoe.Controller {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.controller
}

func (that *MatchSession) emitState() {
	that.emit(ActionState, that.statePayload())

	that.recordIfFinished()
}

func (that *MatchSession) statePayload() StatePayload {
	that.mu.Lock()
	controller := that.controller
	code := that.roomCode
	synchronizer := that.synchronizer
	that.mu.Unlock()

	if controller == nil {
		return StatePayload{}
	}

	state := controller.State()
	payload := StatePayload{
		Mode:        string(controller.Mode()),
		RoomCode:    code,
		Symbol:      controller.Symbol(),
		Board:       state.Board,
		Turn:        state.Turn,
		Winner:      state.Winner,
		WinningLine: state.WinningLine,
	}

	if synchronizer != nil {
		view := synchronizer.View()
		payload.OpponentName = view.OpponentName
		payload.OpponentConnected = view.OpponentConnected
	}

	return payload
}

// recordIfFinished - writes the history record when an online match reaches
// a terminal state. The synchronizer's view carries the authoritative room
// status, so only the player1 side records to avoid double entries.
func (that *MatchSession) recordIfFinished() {
	that.mu.Lock()
	controller := that.controller
	synchronizer := that.synchronizer
	code := that.roomCode
	isPlayer1 := that.isPlayer1
	lastRoom := that.lastRoom
	recorded := that.resultRecorded
	that.mu.Unlock()

	if recorded || controller == nil || synchronizer == nil || !isPlayer1 || lastRoom == nil {
		return
	}

	state := controller.State()
	if state.Winner == "" {
		return
	}

	that.mu.Lock()
	that.resultRecorded = true
	that.mu.Unlock()

	view := synchronizer.View()
	room := &entity.Room{
		Code:   code,
		Status: entity.StatusFinished,
		Winner: state.Winner,
		Board:  state.Board,
		Players: entity.Players{
			Player1: lastRoom.Players.Player1,
			Player2: entity.PlayerSlot{Name: view.OpponentName, Symbol: entity.PlayerO, Joined: view.OpponentConnected},
		},
	}

	that.rooms.RecordResult(context.Background(), room)
}
