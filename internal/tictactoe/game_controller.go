package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

// symbolResolver maps a connected identity to the symbol it plays.
type symbolResolver interface {
	SymbolOf(name string) (entity.Symbol, error)
}

// Engine owns the board and the turn pointer of one game.
// A new Engine is created for every game; boards are never reused.
type Engine struct {
	roles   symbolResolver
	board   entity.Board
	turn    entity.Symbol
	moves   int
	outcome entity.Outcome
}

func NewEngine(roles symbolResolver) *Engine {
	return &Engine{
		roles:   roles,
		board:   entity.NewBoard(),
		turn:    entity.SymbolX,
		outcome: entity.InProgress(),
	}
}

// ApplyMove validates and applies a move of identity into cell.
// On error nothing changes; the error wraps apperror.ErrInvalidMove and the cause.
func (that *Engine) ApplyMove(identity string, cell int) (entity.Outcome, error) {
	if that.outcome.IsTerminal() {
		return that.outcome, invalid(apperror.ErrGameFinished)
	}

	symbol, err := that.roles.SymbolOf(identity)
	if err != nil {
		return that.outcome, invalid(err)
	}

	if !symbol.IsValid() {
		return that.outcome, invalid(apperror.ErrNotAPlayer)
	}

	if symbol != that.turn {
		return that.outcome, invalid(apperror.ErrNotYourTurn)
	}

	if err = that.board.Set(cell, symbol); err != nil {
		return that.outcome, invalid(err)
	}

	that.moves++
	that.outcome = that.board.Evaluate()

	if !that.outcome.IsTerminal() {
		that.turn = that.turn.Opponent()
	}

	return that.outcome, nil
}

func invalid(cause error) error {
	return fmt.Errorf("%w: %w", apperror.ErrInvalidMove, cause)
}

// Board returns a copy of the current board.
func (that *Engine) Board() entity.Board {
	return that.board
}

// Turn is the symbol that must move next.
func (that *Engine) Turn() entity.Symbol {
	return that.turn
}

func (that *Engine) Moves() int {
	return that.moves
}

func (that *Engine) Outcome() entity.Outcome {
	return that.outcome
}
