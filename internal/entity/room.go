package entity

import "time"

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	PlayerX    = "X"
	PlayerO    = "O"
	WinnerDraw = "draw"

	EmptyCell = ""
)

// WinCombos - the 8 fixed winning lines: 3 rows, 3 columns, 2 diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

type PlayerSlot struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Joined bool   `json:"joined"`
}

type Players struct {
	Player1 PlayerSlot `json:"player1"`
	Player2 PlayerSlot `json:"player2"`
}

// Room - the shared document representing one online match's full state.
// Both clients of a match read and write it concurrently; the latest
// snapshot is authoritative.
type Room struct {
	Code              string    `json:"code"`
	Status            string    `json:"status"`
	Players           Players   `json:"players"`
	Board             [9]string `json:"board"`
	CurrentTurn       string    `json:"currentTurn"`
	Winner            string    `json:"winner,omitempty"`
	LastMoveTimestamp int64     `json:"lastMoveTimestamp"`
}

// NewRoom - builds the initial room document: host occupies player1 with X,
// player2 empty, empty board, X to move.
func NewRoom(code, hostName string) *Room {
	return &Room{
		Code:   code,
		Status: StatusWaiting,
		Players: Players{
			Player1: PlayerSlot{Name: hostName, Symbol: PlayerX, Joined: true},
			Player2: PlayerSlot{Symbol: PlayerO},
		},
		CurrentTurn:       PlayerX,
		LastMoveTimestamp: time.Now().UnixMilli(),
	}
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

// OpponentOf - returns the slot opposite to the given symbol.
func (that *Room) OpponentOf(symbol string) PlayerSlot {
	if symbol == PlayerX {
		return that.Players.Player2
	}
	return that.Players.Player1
}

// DetermineWinner - scans the board for a terminal result. Returns the
// winning symbol, WinnerDraw on a full board without one, or empty while
// the match is still in progress.
func DetermineWinner(board [9]string) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	for _, cell := range board {
		if cell == EmptyCell {
			return ""
		}
	}

	return WinnerDraw
}

// WinningLine - recomputes the winning triple from a board. The line is not
// part of the shared document, only the terminal symbol is, so observers
// derive it locally for highlighting.
func WinningLine(board [9]string) ([3]int, bool) {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return combo, true
		}
	}

	return [3]int{}, false
}

func ToggleSymbol(symbol string) string {
	if symbol == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// MatchRecord - a finished match as kept in the history log.
type MatchRecord struct {
	RoomCode   string    `json:"room_code"`
	Winner     string    `json:"winner"`
	PlayerX    string    `json:"player_x"`
	PlayerO    string    `json:"player_o"`
	FinishedAt time.Time `json:"finished_at"`
}
