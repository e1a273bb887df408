package service

import (
	"errors"
	"math/rand"

	"github.com/pixelpond/tictactoe-rooms/internal/entity"
)

const (
	DifficultyEasy = "easy"
	DifficultyHard = "hard"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// BotService - the automated opponent's move selection. Pure over the board:
// the match controller treats it as just another mover.
type BotService interface {
	ChooseMove(board [9]string, symbol, difficulty string) (int, error)
}

type botService struct{}

func NewBotService() BotService {
	return &botService{}
}

func (that *botService) ChooseMove(board [9]string, symbol, difficulty string) (int, error) {
	available := availableCells(board)
	if len(available) == 0 {
		return 0, ErrNoAvailableMoves
	}

	if difficulty == DifficultyHard {
		return that.chooseHard(board, symbol, available), nil
	}

	return available[rand.Intn(len(available))], nil //nolint:gosec // not a security concern
}

// chooseHard - win if possible, block the opponent's win, otherwise prefer
// center, corners, edges.
func (that *botService) chooseHard(board [9]string, symbol string, available []int) int {
	if cell, ok := completingCell(board, symbol); ok {
		return cell
	}

	if cell, ok := completingCell(board, entity.ToggleSymbol(symbol)); ok {
		return cell
	}

	const center = 4
	if board[center] == entity.EmptyCell {
		return center
	}

	corners := shuffled([]int{0, 2, 6, 8})
	for _, cell := range corners {
		if board[cell] == entity.EmptyCell {
			return cell
		}
	}

	return available[rand.Intn(len(available))] //nolint:gosec // not a security concern
}

// completingCell - finds a cell that completes a line for the symbol.
func completingCell(board [9]string, symbol string) (int, bool) {
	for _, combo := range entity.WinCombos {
		count := 0
		empty := -1
		for _, cell := range combo {
			switch board[cell] {
			case symbol:
				count++
			case entity.EmptyCell:
				empty = cell
			}
		}
		if count == 2 && empty >= 0 {
			return empty, true
		}
	}

	return 0, false
}

func availableCells(board [9]string) []int {
	cells := make([]int, 0, len(board))
	for i, cell := range board {
		if cell == entity.EmptyCell {
			cells = append(cells, i)
		}
	}

	return cells
}

func shuffled(cells []int) []int {
	rand.Shuffle(len(cells), func(i, j int) {
		cells[i], cells[j] = cells[j], cells[i]
	})

	return cells
}
