package session

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an Outbox that keeps every notification as its wire text.
type recorder struct {
	mu     sync.Mutex
	lines  []string
	refuse bool
	closed bool
}

func (that *recorder) Deliver(notification protocol.Notification) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.refuse || that.closed {
		return false
	}

	that.lines = append(that.lines, notification.String())

	return true
}

func (that *recorder) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
}

// take returns everything received since the previous call.
func (that *recorder) take() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	lines := that.lines
	that.lines = nil

	return lines
}

type archive struct {
	results []entity.GameResult
}

func (that *archive) Archive(result entity.GameResult) {
	that.results = append(that.results, result)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// firstIsX makes the first player in join order X.
func firstIsX() bool { return true }

type fixture struct {
	*Coordinator
	t       *testing.T
	clients map[string]*recorder
	archive *archive
}

func newFixture(t *testing.T, coin func() bool) *fixture {
	t.Helper()

	results := &archive{}

	return &fixture{
		Coordinator: NewCoordinator(testLogger(), 0, WithCoin(coin), WithArchiver(results)),
		t:           t,
		clients:     make(map[string]*recorder),
		archive:     results,
	}
}

func (that *fixture) join(names ...string) {
	that.t.Helper()

	for _, name := range names {
		client := &recorder{}
		require.NoError(that.t, that.Join(name, client))
		that.clients[name] = client
	}
}

func (that *fixture) move(name string, cell int) {
	that.t.Helper()

	require.NoError(that.t, that.Move(name, cell))
}

func (that *fixture) drain() {
	for _, client := range that.clients {
		client.take()
	}
}

func (that *fixture) take(name string) []string {
	return that.clients[name].take()
}

func TestCoordinator_Start(t *testing.T) {
	t.Run("Second player starts the game, X holder moves first", func(t *testing.T) {
		// Given: alice is waiting
		f := newFixture(t, firstIsX)
		f.join("alice")
		assert.Equal(t, []string{
			"MESSAGE Connected to the server",
			"MESSAGE You are a player",
			"MESSAGE Waiting for an opponent",
		}, f.take("alice"))

		// When: bob joins
		f.join("bob")

		// Then: symbols, the empty board and turn notifications are sent in order
		assert.Equal(t, []string{
			"SYMBOL X",
			"BOARD 123456789",
			"YOUR_TURN",
		}, f.take("alice"))
		assert.Equal(t, []string{
			"MESSAGE Connected to the server",
			"MESSAGE You are a player",
			"SYMBOL O",
			"BOARD 123456789",
			"OPPONENT_TURN alice",
		}, f.take("bob"))

		snapshot := f.Snapshot()
		require.NotNil(t, snapshot.Game)
		assert.Equal(t, "123456789", snapshot.Game.Board)
		assert.Equal(t, entity.SymbolX, snapshot.Game.Turn)
	})

	t.Run("Second player may get X", func(t *testing.T) {
		f := newFixture(t, func() bool { return false })
		f.join("alice", "bob")

		assert.Equal(t, []string{"SYMBOL O", "BOARD 123456789", "OPPONENT_TURN bob"}, f.take("alice")[3:])
		assert.Equal(t, []string{"SYMBOL X", "BOARD 123456789", "YOUR_TURN"}, f.take("bob")[2:])
	})

	t.Run("Third identity becomes a spectator and sees the board", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice", "bob")
		f.move("alice", 5)
		f.drain()

		f.join("carol")

		assert.Equal(t, []string{
			"MESSAGE Connected to the server",
			"MESSAGE You are a spectator",
			"BOARD 1234X6789",
			"MESSAGE It's bob's turn",
		}, f.take("carol"))
		assert.Empty(t, f.take("alice"))
		assert.Empty(t, f.take("bob"))
	})
}

func TestCoordinator_JoinRejected(t *testing.T) {
	t.Run("Name collision", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice")

		err := f.Join("alice", &recorder{})

		require.ErrorIs(t, err, apperror.ErrNameCollision)
		assert.Len(t, f.Snapshot().Participants, 1)
	})

	t.Run("Capacity exceeded", func(t *testing.T) {
		coordinator := NewCoordinator(testLogger(), 4, WithCoin(firstIsX))
		for i := range 4 {
			require.NoError(t, coordinator.Join(fmt.Sprintf("p%d", i), &recorder{}))
		}

		rejected := &recorder{}
		err := coordinator.Join("late", rejected)

		require.ErrorIs(t, err, apperror.ErrCapacityExceeded)
		assert.Empty(t, rejected.take())
	})
}

func TestCoordinator_Move(t *testing.T) {
	t.Run("Valid move broadcasts the board before turn notifications", func(t *testing.T) {
		// Given: a running game with a spectator
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol")
		f.drain()

		// When: the X holder plays the centre
		f.move("alice", 5)

		// Then: everyone sees the board first, then whose turn it is
		assert.Equal(t, []string{"BOARD 1234X6789", "VALID_MOVE", "OPPONENT_TURN bob"}, f.take("alice"))
		assert.Equal(t, []string{"BOARD 1234X6789", "YOUR_TURN"}, f.take("bob"))
		assert.Equal(t, []string{"BOARD 1234X6789", "MESSAGE It's bob's turn"}, f.take("carol"))
	})

	t.Run("Occupied cell is reported to the sender only", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol")
		f.move("alice", 5)
		f.drain()

		err := f.Move("bob", 5)

		require.ErrorIs(t, err, apperror.ErrInvalidMove)
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.Equal(t, []string{"INVALID_MOVE"}, f.take("bob"))
		assert.Empty(t, f.take("alice"))
		assert.Empty(t, f.take("carol"))
		assert.Equal(t, "1234X6789", f.Snapshot().Game.Board)
	})

	t.Run("Out of turn move is invalid", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice", "bob")
		f.drain()

		err := f.Move("bob", 1)

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, []string{"INVALID_MOVE"}, f.take("bob"))
		assert.Equal(t, "123456789", f.Snapshot().Game.Board)
	})

	t.Run("Spectators cannot move", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol")
		f.drain()

		err := f.Move("carol", 1)

		require.ErrorIs(t, err, apperror.ErrNotAPlayer)
		assert.Equal(t, []string{"INVALID_MOVE"}, f.take("carol"))
	})

	t.Run("Move without a game is invalid", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice")
		f.drain()

		err := f.Move("alice", 1)

		require.ErrorIs(t, err, apperror.ErrNoActiveGame)
		assert.Equal(t, []string{"INVALID_MOVE"}, f.take("alice"))
	})

	t.Run("Unknown identity", func(t *testing.T) {
		f := newFixture(t, firstIsX)

		err := f.Move("ghost", 1)

		require.ErrorIs(t, err, apperror.ErrUnknownIdentity)
	})
}

func TestCoordinator_Outcome(t *testing.T) {
	t.Run("Win notifies both players and restarts", func(t *testing.T) {
		// Given: X holds 1 and 2, O holds 4 and 5
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol")
		f.move("alice", 1)
		f.move("bob", 4)
		f.move("alice", 2)
		f.move("bob", 5)
		f.drain()

		// When: X completes the top row
		f.move("alice", 3)

		// Then: outcome, then a fresh game with new symbols
		assert.Equal(t, []string{
			"BOARD XXXOO6789", "VALID_MOVE", "WIN",
			"SYMBOL X", "BOARD 123456789", "YOUR_TURN",
		}, f.take("alice"))
		assert.Equal(t, []string{
			"BOARD XXXOO6789", "LOSS",
			"SYMBOL O", "BOARD 123456789", "OPPONENT_TURN alice",
		}, f.take("bob"))
		assert.Equal(t, []string{
			"BOARD XXXOO6789", "MESSAGE alice won!",
			"BOARD 123456789", "MESSAGE It's alice's turn",
		}, f.take("carol"))

		snapshot := f.Snapshot()
		assert.Equal(t, 1, snapshot.GamesPlayed)
		require.NotNil(t, snapshot.Game)
		assert.Equal(t, 2, snapshot.Game.Number)
		assert.Zero(t, snapshot.Game.Moves)

		require.Len(t, f.archive.results, 1)
		result := f.archive.results[0]
		assert.Equal(t, "won", result.Outcome)
		assert.Equal(t, "alice", result.Winner)
		assert.Equal(t, 5, result.Moves)
		assert.Equal(t, map[entity.Symbol]string{entity.SymbolX: "alice", entity.SymbolO: "bob"}, result.Players)
	})

	t.Run("Draw notifies both players and restarts", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol")

		// X O X / X O O / O X X
		for i, cell := range []int{1, 2, 3, 5, 4, 6, 8, 7} {
			if i%2 == 0 {
				f.move("alice", cell)
			} else {
				f.move("bob", cell)
			}
		}
		f.drain()

		f.move("alice", 9)

		assert.Equal(t, []string{"BOARD XOXXOOOXX", "VALID_MOVE", "DRAW"}, f.take("alice")[:3])
		assert.Equal(t, []string{"BOARD XOXXOOOXX", "DRAW"}, f.take("bob")[:2])
		assert.Equal(t, []string{"BOARD XOXXOOOXX", "MESSAGE It's a draw."}, f.take("carol")[:2])
		assert.Equal(t, 1, f.Snapshot().GamesPlayed)
		assert.Equal(t, "draw", f.archive.results[0].Outcome)
		assert.Empty(t, f.archive.results[0].Winner)
	})
}

func TestCoordinator_Leave(t *testing.T) {
	t.Run("Spectator is promoted into the departed seat when it was that seat's turn", func(t *testing.T) {
		// Given: alice (X) to move, carol and dave watching
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol", "dave")
		f.drain()

		// When: alice disconnects
		require.NoError(t, f.Leave("alice"))

		// Then: carol takes X and the turn
		assert.Equal(t, []string{
			"MESSAGE Player alice has disconnected and/or left the game.",
			"BOARD 123456789",
			"SYMBOL X",
			"MESSAGE You are joining the game as an opponent!",
			"MESSAGE Opponent alice is now replaced by carol",
			"YOUR_TURN",
		}, f.take("carol"))
		assert.Equal(t, []string{
			"MESSAGE Player alice has disconnected and/or left the game.",
			"MESSAGE Opponent alice is now replaced by carol",
			"OPPONENT_TURN carol",
		}, f.take("bob"))
		assert.Equal(t, []string{
			"MESSAGE Player alice has disconnected and/or left the game.",
			"MESSAGE Opponent alice is now replaced by carol",
			"MESSAGE It's carol's turn",
		}, f.take("dave"))
		assert.True(t, f.clients["alice"].closed)

		// And: carol can move as X
		f.move("carol", 1)
		assert.Equal(t, "X23456789", f.Snapshot().Game.Board)
	})

	t.Run("Promoted player keeps the board and waits when it is not its turn", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol")
		f.move("alice", 5)
		f.drain()

		require.NoError(t, f.Leave("alice"))

		assert.Equal(t, []string{
			"MESSAGE Player alice has disconnected and/or left the game.",
			"BOARD 1234X6789",
			"SYMBOL X",
			"MESSAGE You are joining the game as an opponent!",
			"MESSAGE Opponent alice is now replaced by carol",
			"OPPONENT_TURN bob",
		}, f.take("carol"))
		assert.Equal(t, []string{
			"MESSAGE Player alice has disconnected and/or left the game.",
			"MESSAGE Opponent alice is now replaced by carol",
		}, f.take("bob"))

		snapshot := f.Snapshot()
		assert.Equal(t, "1234X6789", snapshot.Game.Board)
		assert.Equal(t, 1, snapshot.Game.Moves)

		f.move("bob", 1)
		f.move("carol", 9)
		assert.Equal(t, "O234X678X", f.Snapshot().Game.Board)
	})

	t.Run("No spectator left discards the game", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice", "bob")
		f.move("alice", 5)
		f.drain()

		require.NoError(t, f.Leave("alice"))

		assert.Equal(t, []string{
			"MESSAGE Player alice has disconnected and/or left the game.",
			"MESSAGE There are no available replacements. The game is over.",
			"MESSAGE Waiting for an opponent",
		}, f.take("bob"))
		assert.Nil(t, f.Snapshot().Game)

		// And: the next identity starts a fresh game with bob
		f.join("erin")
		snapshot := f.Snapshot()
		require.NotNil(t, snapshot.Game)
		assert.Equal(t, "123456789", snapshot.Game.Board)
		assert.Equal(t, 0, snapshot.GamesPlayed)
	})

	t.Run("Spectator leaving changes nothing else", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol")
		f.drain()

		require.NoError(t, f.Leave("carol"))

		assert.Empty(t, f.take("alice"))
		assert.Empty(t, f.take("bob"))
		assert.Len(t, f.Snapshot().Participants, 2)
	})

	t.Run("Lone player leaving", func(t *testing.T) {
		f := newFixture(t, firstIsX)
		f.join("alice")

		require.NoError(t, f.Leave("alice"))

		assert.Empty(t, f.Snapshot().Participants)
	})

	t.Run("Unknown identity is reported", func(t *testing.T) {
		f := newFixture(t, firstIsX)

		require.ErrorIs(t, f.Leave("ghost"), apperror.ErrUnknownIdentity)
	})
}

func TestCoordinator_FailedSend(t *testing.T) {
	t.Run("Refusing player is evicted and replaced", func(t *testing.T) {
		// Given: bob stops accepting notifications
		f := newFixture(t, firstIsX)
		f.join("alice", "bob", "carol")
		f.drain()
		f.clients["bob"].refuse = true

		// When: alice moves and bob cannot be notified
		f.move("alice", 5)

		// Then: bob is treated as having left and carol plays O
		snapshot := f.Snapshot()
		names := make([]string, 0, len(snapshot.Participants))
		for _, participant := range snapshot.Participants {
			names = append(names, participant.Name)
		}
		assert.Equal(t, []string{"alice", "carol"}, names)
		assert.True(t, f.clients["bob"].closed)

		assert.Equal(t, []string{
			"BOARD 1234X6789",
			"MESSAGE It's bob's turn",
			"MESSAGE Player bob has disconnected and/or left the game.",
			"BOARD 1234X6789",
			"SYMBOL O",
			"MESSAGE You are joining the game as an opponent!",
			"MESSAGE Opponent bob is now replaced by carol",
			"YOUR_TURN",
		}, f.take("carol"))

		f.move("carol", 1)
	})

	t.Run("Full mailbox counts as a failed send", func(t *testing.T) {
		coordinator := NewCoordinator(testLogger(), 0, WithCoin(firstIsX))
		alice := NewMailbox(64)
		bob := NewMailbox(1)

		require.NoError(t, coordinator.Join("alice", alice))
		require.NoError(t, coordinator.Join("bob", bob))

		snapshot := coordinator.Snapshot()
		require.Len(t, snapshot.Participants, 1)
		assert.Equal(t, "alice", snapshot.Participants[0].Name)
		assert.Nil(t, snapshot.Game)
	})
}

func TestCoordinator_Chat(t *testing.T) {
	f := newFixture(t, firstIsX)
	f.join("alice", "bob", "carol")
	f.drain()

	require.NoError(t, f.Chat("carol", "good luck"))

	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Equal(t, []string{"MESSAGE carol: good luck"}, f.take(name))
	}

	require.ErrorIs(t, f.Chat("ghost", "boo"), apperror.ErrUnknownIdentity)
}

func TestCoordinator_Shutdown(t *testing.T) {
	f := newFixture(t, firstIsX)
	f.join("alice", "bob", "carol")
	f.drain()

	f.Shutdown()

	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Equal(t, []string{"MESSAGE Server has disconnected."}, f.take(name))
		assert.True(t, f.clients[name].closed)
	}

	require.ErrorIs(t, f.Join("dave", &recorder{}), apperror.ErrServerShutdown)
	assert.Empty(t, f.Snapshot().Participants)

	f.Shutdown()
}

func TestCoordinator_SymbolFairness(t *testing.T) {
	const trials = 10000

	aliceX := 0
	for range trials {
		coordinator := NewCoordinator(testLogger(), 0)
		require.NoError(t, coordinator.Join("alice", &recorder{}))
		require.NoError(t, coordinator.Join("bob", &recorder{}))

		symbols := map[string]entity.Symbol{}
		for _, participant := range coordinator.Snapshot().Participants {
			symbols[participant.Name] = participant.Symbol
		}
		require.NotEqual(t, symbols["alice"], symbols["bob"])

		if symbols["alice"] == entity.SymbolX {
			aliceX++
		}
	}

	ratio := float64(aliceX) / trials
	assert.InDelta(t, 0.5, ratio, 0.02)
}

func TestCoordinator_Concurrency(t *testing.T) {
	t.Run("Concurrent joins seat exactly two players", func(t *testing.T) {
		coordinator := NewCoordinator(testLogger(), 0)

		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, coordinator.Join(fmt.Sprintf("p%d", i), &recorder{}))
			}()
		}
		wg.Wait()

		players := map[entity.Symbol]int{}
		for _, participant := range coordinator.Snapshot().Participants {
			if participant.Role == entity.RolePlayer.String() {
				players[participant.Symbol]++
			}
		}

		assert.Equal(t, map[entity.Symbol]int{entity.SymbolX: 1, entity.SymbolO: 1}, players)
	})

	t.Run("Concurrent moves and leaves keep the invariants", func(t *testing.T) {
		coordinator := NewCoordinator(testLogger(), 0)
		names := []string{"a", "b", "c", "d", "e", "f"}
		for _, name := range names {
			require.NoError(t, coordinator.Join(name, &recorder{}))
		}

		var wg sync.WaitGroup
		for i, name := range names {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for cell := 1; cell <= 9; cell++ {
					_ = coordinator.Move(name, cell)
				}
				if i%2 == 0 {
					_ = coordinator.Leave(name)
				}
			}()
		}
		wg.Wait()

		snapshot := coordinator.Snapshot()
		players := 0
		for _, participant := range snapshot.Participants {
			if participant.Role == entity.RolePlayer.String() {
				players++
			}
		}

		assert.Len(t, snapshot.Participants, 3)
		if snapshot.Game != nil {
			assert.Equal(t, 2, players)
		} else {
			assert.LessOrEqual(t, players, 1)
		}
	})
}
