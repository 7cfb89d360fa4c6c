package entity

import "time"

type Role int

const (
	RoleSpectator Role = iota
	RolePlayer
)

func (that Role) String() string {
	if that == RolePlayer {
		return "player"
	}

	return "spectator"
}

// Participant is a read-only view of a connected identity.
type Participant struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Symbol Symbol `json:"symbol,omitempty"`
}

// GameResult is the archived record of one finished game.
type GameResult struct {
	ID         string            `json:"id"`
	Number     int               `json:"number"`
	Players    map[Symbol]string `json:"players"`
	Outcome    string            `json:"outcome"`
	Winner     string            `json:"winner,omitempty"`
	Moves      int               `json:"moves"`
	Board      string            `json:"board"`
	FinishedAt time.Time         `json:"finished_at"`
}
