package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

// Symbol is the mark a player puts on the board.
type Symbol string

const (
	SymbolNone Symbol = ""
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
)

// Opponent returns the other symbol.
func (that Symbol) Opponent() Symbol {
	switch that {
	case SymbolX:
		return SymbolO
	case SymbolO:
		return SymbolX
	default:
		return SymbolNone
	}
}

func (that Symbol) IsValid() bool {
	return that == SymbolX || that == SymbolO
}

const (
	FirstCell = 1
	LastCell  = 9
	CellCount = 9
)

// WinCombos are the 8 lines of the board in evaluation order: rows, columns, diagonals.
// Cells are numbered 1..9 left to right, top to bottom.
var WinCombos = [8][3]int{
	{1, 2, 3},
	{4, 5, 6},
	{7, 8, 9},
	{1, 4, 7},
	{2, 5, 8},
	{3, 6, 9},
	{1, 5, 9},
	{3, 5, 7},
}

// Board is the 3x3 grid. The zero value is an empty board.
type Board struct {
	cells [CellCount]Symbol
}

func NewBoard() Board {
	return Board{}
}

// Set puts symbol into cell (1..9).
func (that *Board) Set(cell int, symbol Symbol) error {
	if cell < FirstCell || cell > LastCell {
		return fmt.Errorf("%w: cell %d", apperror.ErrOutOfRange, cell)
	}

	if !symbol.IsValid() {
		return fmt.Errorf("unknown symbol %q", symbol)
	}

	if that.cells[cell-1] != SymbolNone {
		return fmt.Errorf("%w: cell %d", apperror.ErrCellOccupied, cell)
	}

	that.cells[cell-1] = symbol

	return nil
}

// Get returns the symbol in cell, SymbolNone for an empty or unknown cell.
func (that *Board) Get(cell int) Symbol {
	if cell < FirstCell || cell > LastCell {
		return SymbolNone
	}

	return that.cells[cell-1]
}

func (that *Board) IsFull() bool {
	for _, cell := range that.cells {
		if cell == SymbolNone {
			return false
		}
	}

	return true
}

// Filled returns the number of occupied cells.
func (that *Board) Filled() int {
	count := 0
	for _, cell := range that.cells {
		if cell != SymbolNone {
			count++
		}
	}

	return count
}

// Evaluate derives the outcome from the current cells.
func (that *Board) Evaluate() Outcome {
	for _, combo := range WinCombos {
		a, b, c := that.Get(combo[0]), that.Get(combo[1]), that.Get(combo[2])
		if a != SymbolNone && a == b && b == c {
			return Won(a)
		}
	}

	if that.IsFull() {
		return Draw()
	}

	return InProgress()
}

// String renders the board as 9 characters in cell order; an empty cell shows its number.
func (that Board) String() string {
	var builder strings.Builder

	for i, cell := range that.cells {
		if cell == SymbolNone {
			builder.WriteString(strconv.Itoa(i + 1))
			continue
		}
		builder.WriteString(string(cell))
	}

	return builder.String()
}

// ParseBoard is the inverse of Board.String.
func ParseBoard(repr string) (Board, error) {
	var board Board

	if len(repr) != CellCount {
		return board, fmt.Errorf("board must have %d cells, got %d", CellCount, len(repr))
	}

	for i := range repr {
		switch Symbol(repr[i : i+1]) {
		case SymbolX:
			board.cells[i] = SymbolX
		case SymbolO:
			board.cells[i] = SymbolO
		default:
			if repr[i] != byte('1'+i) {
				return board, fmt.Errorf("unexpected character %q at cell %d", repr[i], i+1)
			}
		}
	}

	return board, nil
}
