package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pixelpond/tictactoe-rooms/internal/apperror"
	"github.com/pixelpond/tictactoe-rooms/internal/tictactoe"
	"github.com/pixelpond/tictactoe-rooms/internal/usecase"
)

var errUnknownAction = errors.New("unknown action")

func (that *Server) dispatch(ctx context.Context, session *usecase.MatchSession, emit func(string, any), message *Message) error {
	switch message.Action {
	case ActionConnect:
		// session id was already sent on connect
		return nil
	case ActionNewGame:
		return that.handleNewGame(session, message)
	case ActionCreate:
		return that.handleCreateRoom(ctx, session, message)
	case ActionJoin:
		return that.handleJoinRoom(ctx, session, emit, message)
	case ActionLeave:
		session.LeaveRoom(ctx)
		return nil
	case ActionMove:
		return that.handleMove(ctx, session, message)
	case ActionPlayAgain:
		return session.PlayAgain(ctx)
	default:
		return fmt.Errorf("%w: %s", errUnknownAction, message.Action)
	}
}

func (that *Server) handleNewGame(session *usecase.MatchSession, message *Message) error {
	var payload NewGamePayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	switch tictactoe.Mode(payload.Mode) {
	case tictactoe.ModeBot:
		session.StartBot(payload.Difficulty)
	case tictactoe.ModeLocal:
		session.StartLocal()
	default:
		return fmt.Errorf("%w: mode %q", errUnknownAction, payload.Mode)
	}

	return nil
}

func (that *Server) handleCreateRoom(ctx context.Context, session *usecase.MatchSession, message *Message) error {
	var payload CreateRoomPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := session.CreateRoom(ctx, payload.Name); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

// handleJoinRoom - a missing and a full room are indistinguishable at this
// boundary, both answer joined=false.
func (that *Server) handleJoinRoom(ctx context.Context, session *usecase.MatchSession, emit func(string, any), message *Message) error {
	var payload JoinRoomPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	err := session.JoinRoom(ctx, payload.Code, payload.Name)
	switch {
	case err == nil:
		emit(ActionJoin, JoinResultPayload{Joined: true})
		return nil
	case errors.Is(err, apperror.ErrRoomNotFound), errors.Is(err, apperror.ErrRoomFull):
		emit(ActionJoin, JoinResultPayload{Joined: false})
		return nil
	default:
		return fmt.Errorf("failed to join room: %w", err)
	}
}

func (that *Server) handleMove(ctx context.Context, session *usecase.MatchSession, message *Message) error {
	var payload MovePayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := session.Move(ctx, payload.Cell); err != nil {
		return fmt.Errorf("failed to make move: %w", err)
	}

	return nil
}
