package apperror

import "errors"

var (
	ErrInvalidCommand   = errors.New("invalid command")
	ErrInvalidMove      = errors.New("invalid move")
	ErrOutOfRange       = errors.New("cell is out of range")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrNotAPlayer       = errors.New("identity is not a player")
	ErrGameFinished     = errors.New("game is already finished")
	ErrNoActiveGame     = errors.New("no active game")
	ErrUnknownIdentity  = errors.New("unknown identity")
	ErrNameCollision    = errors.New("username already taken")
	ErrCapacityExceeded = errors.New("server is full")
	ErrConnectionLost   = errors.New("connection lost")
	ErrServerShutdown   = errors.New("server is shutting down")
	ErrNotFound         = errors.New("not found")
)
