package registry

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const MaxPlayers = 2

// Member is one connected identity.
type Member struct {
	Name   string
	Role   entity.Role
	Symbol entity.Symbol
}

func (that *Member) IsPlayer() bool {
	return that.Role == entity.RolePlayer
}

// Registry tracks players and spectators. It is not safe for concurrent use;
// the session coordinator serializes all access.
type Registry struct {
	capacity   int
	members    map[string]*Member
	players    []string
	spectators Queue
}

func New(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		members:  make(map[string]*Member),
	}
}

// Add admits a new identity: as a player while fewer than two players are
// connected, as a queued spectator otherwise.
func (that *Registry) Add(name string) (*Member, error) {
	if _, ok := that.members[name]; ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrNameCollision, name)
	}

	if that.capacity > 0 && len(that.members) >= that.capacity {
		return nil, fmt.Errorf("%w: %d clients", apperror.ErrCapacityExceeded, that.capacity)
	}

	member := &Member{Name: name}

	if len(that.players) < MaxPlayers {
		member.Role = entity.RolePlayer
		that.players = append(that.players, name)
	} else {
		member.Role = entity.RoleSpectator
		that.spectators.Push(name)
	}

	that.members[name] = member

	return member, nil
}

// Remove forgets an identity and returns what it was.
func (that *Registry) Remove(name string) (*Member, error) {
	member, err := that.Get(name)
	if err != nil {
		return nil, err
	}

	delete(that.members, name)

	if member.IsPlayer() {
		for i, player := range that.players {
			if player == name {
				that.players = append(that.players[:i:i], that.players[i+1:]...)
				break
			}
		}
	} else {
		that.spectators.Remove(name)
	}

	return member, nil
}

// Promote turns the head spectator into a player holding symbol.
func (that *Registry) Promote(symbol entity.Symbol) (*Member, bool) {
	if len(that.players) >= MaxPlayers {
		return nil, false
	}

	name, ok := that.spectators.Pop()
	if !ok {
		return nil, false
	}

	member := that.members[name]
	member.Role = entity.RolePlayer
	member.Symbol = symbol
	that.players = append(that.players, name)

	return member, true
}

func (that *Registry) Get(name string) (*Member, error) {
	member, ok := that.members[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownIdentity, name)
	}

	return member, nil
}

// SymbolOf returns the symbol of a player, SymbolNone for a spectator.
func (that *Registry) SymbolOf(name string) (entity.Symbol, error) {
	member, err := that.Get(name)
	if err != nil {
		return entity.SymbolNone, err
	}

	return member.Symbol, nil
}

// AssignSymbols gives the first player in join order first and the second player second.
func (that *Registry) AssignSymbols(first, second entity.Symbol) error {
	if len(that.players) != MaxPlayers {
		return fmt.Errorf("need %d players, have %d", MaxPlayers, len(that.players))
	}

	that.members[that.players[0]].Symbol = first
	that.members[that.players[1]].Symbol = second

	return nil
}

func (that *Registry) ClearSymbols() {
	for _, name := range that.players {
		that.members[name].Symbol = entity.SymbolNone
	}
}

// PlayerBySymbol finds the player holding symbol.
func (that *Registry) PlayerBySymbol(symbol entity.Symbol) (*Member, bool) {
	for _, name := range that.players {
		if member := that.members[name]; member.Symbol == symbol {
			return member, true
		}
	}

	return nil, false
}

// Players returns the players in join order.
func (that *Registry) Players() []*Member {
	players := make([]*Member, 0, len(that.players))
	for _, name := range that.players {
		players = append(players, that.members[name])
	}

	return players
}

// Spectators returns the spectators in promotion order.
func (that *Registry) Spectators() []*Member {
	names := that.spectators.Items()

	spectators := make([]*Member, 0, len(names))
	for _, name := range names {
		spectators = append(spectators, that.members[name])
	}

	return spectators
}

// All returns players first, then spectators.
func (that *Registry) All() []*Member {
	return append(that.Players(), that.Spectators()...)
}

func (that *Registry) PlayerCount() int {
	return len(that.players)
}

func (that *Registry) SpectatorCount() int {
	return that.spectators.Len()
}

func (that *Registry) Len() int {
	return len(that.members)
}
