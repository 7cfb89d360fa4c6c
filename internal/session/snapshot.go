package session

import "github.com/rocketscienceinc/tictactoe-arena/internal/entity"

type GameSnapshot struct {
	ID     string        `json:"id"`
	Number int           `json:"number"`
	Board  string        `json:"board"`
	Turn   entity.Symbol `json:"turn"`
	Moves  int           `json:"moves"`
}

// Snapshot is a consistent read-only view of the coordinator.
type Snapshot struct {
	GamesPlayed  int                  `json:"games_played"`
	Game         *GameSnapshot        `json:"game,omitempty"`
	Participants []entity.Participant `json:"participants"`
}

func (that *Coordinator) Snapshot() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	snapshot := Snapshot{
		GamesPlayed:  that.gamesPlayed,
		Participants: make([]entity.Participant, 0, that.registry.Len()),
	}

	if that.game != nil {
		snapshot.Game = &GameSnapshot{
			ID:     that.game.id,
			Number: that.game.number,
			Board:  that.game.engine.Board().String(),
			Turn:   that.game.engine.Turn(),
			Moves:  that.game.engine.Moves(),
		}
	}

	for _, member := range that.registry.All() {
		snapshot.Participants = append(snapshot.Participants, entity.Participant{
			Name:   member.Name,
			Role:   member.Role.String(),
			Symbol: member.Symbol,
		})
	}

	return snapshot
}
