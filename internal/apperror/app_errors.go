package apperror

import "errors"

var (
	ErrStorageUnavailable = errors.New("storage is not available")

	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is already full")
	ErrInvalidCode  = errors.New("invalid room code")

	ErrCellOccupied         = errors.New("cell is already occupied")
	ErrNotYourTurn          = errors.New("it's not your turn")
	ErrMatchFinished        = errors.New("match is already finished")
	ErrOpponentDisconnected = errors.New("opponent is disconnected")
	ErrNoActiveMatch        = errors.New("no active match")
)
