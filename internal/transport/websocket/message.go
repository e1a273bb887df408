package websocket

import "encoding/json"

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client actions.
const (
	ActionConnect   = "connect"
	ActionNewGame   = "game:new"
	ActionMove      = "game:move"
	ActionPlayAgain = "game:again"
	ActionCreate    = "room:create"
	ActionJoin      = "room:join"
	ActionLeave     = "room:leave"
)

const ActionError = "error"

type ConnectedPayload struct {
	SessionID string `json:"session_id"`
}

type NewGamePayload struct {
	Mode       string `json:"mode"`
	Difficulty string `json:"difficulty,omitempty"`
}

type CreateRoomPayload struct {
	Name string `json:"name"`
}

type JoinRoomPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type MovePayload struct {
	Cell int `json:"cell"`
}

type JoinResultPayload struct {
	Joined bool `json:"joined"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
