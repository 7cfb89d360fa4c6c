package session

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-arena/internal/registry"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

// Archiver receives finished games. Archive is called with the coordinator
// locked and must not block.
type Archiver interface {
	Archive(result entity.GameResult)
}

type metrics interface {
	SetRoster(players, spectators int)
	GameStarted()
	GameFinished(outcome entity.Outcome)
	MoveApplied()
	MoveRejected()
	Promoted()
}

type game struct {
	id        string
	number    int
	engine    *tictactoe.Engine
	startedAt time.Time
}

// Coordinator owns the role registry and the current game. Every transition
// runs under one mutex; notifications are queued into mailboxes in event order
// while the lock is held, and written to the network by the workers.
type Coordinator struct {
	logger *slog.Logger

	mu          sync.Mutex
	registry    *registry.Registry
	outboxes    map[string]Outbox
	game        *game
	gamesPlayed int
	closed      bool

	// identities whose mailbox refused a notification during the current transition
	dropped     map[string]struct{}
	droppedList []string

	coin     func() bool
	archiver Archiver
	metrics  metrics
}

type Option func(*Coordinator)

// WithCoin replaces the fair coin used for symbol assignment; true gives X to
// the first player in join order.
func WithCoin(coin func() bool) Option {
	return func(that *Coordinator) {
		that.coin = coin
	}
}

func WithArchiver(archiver Archiver) Option {
	return func(that *Coordinator) {
		that.archiver = archiver
	}
}

func WithMetrics(metrics metrics) Option {
	return func(that *Coordinator) {
		that.metrics = metrics
	}
}

// NewCoordinator creates a coordinator admitting at most maxClients identities (0 = unlimited).
func NewCoordinator(logger *slog.Logger, maxClients int, opts ...Option) *Coordinator {
	coordinator := &Coordinator{
		logger:   logger.With("component", "coordinator"),
		registry: registry.New(maxClients),
		outboxes: make(map[string]Outbox),
		dropped:  make(map[string]struct{}),
		coin: func() bool {
			return rand.IntN(2) == 0 //nolint: gosec // fairness, not secrecy
		},
		archiver: nopArchiver{},
		metrics:  nopMetrics{},
	}

	for _, opt := range opts {
		opt(coordinator)
	}

	return coordinator
}

// Join admits name with its outbox. The outbox is not used when an error is returned.
func (that *Coordinator) Join(name string, outbox Outbox) error {
	log := that.logger.With("method", "Join", "name", name)

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return apperror.ErrServerShutdown
	}

	member, err := that.registry.Add(name)
	if err != nil {
		log.Warn("join rejected", "error", err)
		return fmt.Errorf("failed to join: %w", err)
	}

	that.outboxes[name] = outbox
	that.send(name, protocol.Message(protocol.TextConnected))

	log.Info("identity joined", "role", member.Role.String())

	if member.IsPlayer() {
		that.send(name, protocol.Message(protocol.TextYouArePlayer))

		if that.game == nil && that.registry.PlayerCount() == registry.MaxPlayers {
			that.startGame()
		} else {
			that.send(name, protocol.Message(protocol.TextWaiting))
		}
	} else {
		that.send(name, protocol.Message(protocol.TextYouAreSpectator))

		if that.game != nil {
			that.send(name, protocol.Board(that.game.engine.Board()))
			if mover, ok := that.registry.PlayerBySymbol(that.game.engine.Turn()); ok {
				that.send(name, protocol.Message(protocol.TurnText(mover.Name)))
			}
		}
	}

	that.settle()

	return nil
}

// Move applies a move for name. Invalid moves are answered with INVALID_MOVE to
// the sender only and reported as an error wrapping apperror.ErrInvalidMove.
func (that *Coordinator) Move(name string, cell int) error {
	log := that.logger.With("method", "Move", "name", name, "cell", cell)

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, err := that.registry.Get(name); err != nil {
		return err
	}

	if that.game == nil {
		that.send(name, protocol.InvalidMove())
		that.metrics.MoveRejected()
		that.settle()
		return fmt.Errorf("%w: %w", apperror.ErrInvalidMove, apperror.ErrNoActiveGame)
	}

	engine := that.game.engine

	outcome, err := engine.ApplyMove(name, cell)
	if err != nil {
		log.Warn("invalid move", "error", err)
		that.send(name, protocol.InvalidMove())
		that.metrics.MoveRejected()
		that.settle()
		return err
	}

	log.Info("move applied", "board", engine.Board().String(), "outcome", outcome.String())
	that.metrics.MoveApplied()

	that.broadcast(protocol.Board(engine.Board()))
	that.send(name, protocol.ValidMove())

	if outcome.IsTerminal() {
		that.finishGame(outcome)
	} else {
		that.announceTurn()
	}

	that.settle()

	return nil
}

// Leave removes name; a departing player is replaced by the head spectator when
// there is one, otherwise the game is discarded.
func (that *Coordinator) Leave(name string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.leave(name); err != nil {
		return err
	}

	that.settle()

	return nil
}

// Chat relays text from name to every connected identity.
func (that *Coordinator) Chat(name, text string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, err := that.registry.Get(name); err != nil {
		return err
	}

	that.broadcast(protocol.Message(protocol.ChatText(name, text)))
	that.settle()

	return nil
}

// Shutdown tells everyone the server is going away and closes all mailboxes.
// Later joins fail with apperror.ErrServerShutdown.
func (that *Coordinator) Shutdown() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	that.closed = true
	that.broadcast(protocol.Message(protocol.TextServerShutdown))

	for _, member := range that.registry.All() {
		if _, err := that.registry.Remove(member.Name); err != nil {
			that.logger.Error("failed to remove member on shutdown", "name", member.Name, "error", err)
		}
	}

	for name, outbox := range that.outboxes {
		outbox.Close()
		delete(that.outboxes, name)
	}

	that.game = nil
	that.resetDropped()
	that.metrics.SetRoster(0, 0)

	that.logger.Info("coordinator shut down", "games_played", that.gamesPlayed)
}

func (that *Coordinator) leave(name string) error {
	log := that.logger.With("method", "leave", "name", name)

	member, err := that.registry.Remove(name)
	if err != nil {
		return err
	}

	if outbox, ok := that.outboxes[name]; ok {
		outbox.Close()
		delete(that.outboxes, name)
	}

	log.Info("identity left", "role", member.Role.String())

	if !member.IsPlayer() || that.game == nil {
		return nil
	}

	that.broadcast(protocol.Message(protocol.LeftText(name)))

	promoted, ok := that.registry.Promote(member.Symbol)
	if !ok {
		log.Info("no replacement available, game discarded", "game_id", that.game.id)

		that.broadcast(protocol.Message(protocol.TextNoReplacement))
		that.game = nil
		that.registry.ClearSymbols()

		for _, player := range that.registry.Players() {
			that.send(player.Name, protocol.Message(protocol.TextWaiting))
		}

		return nil
	}

	log.Info("spectator promoted", "promoted", promoted.Name, "symbol", string(member.Symbol))
	that.metrics.Promoted()

	engine := that.game.engine

	that.send(promoted.Name, protocol.Board(engine.Board()))
	that.send(promoted.Name, protocol.Symbol(member.Symbol))
	that.send(promoted.Name, protocol.Message(protocol.TextPromoted))
	that.broadcast(protocol.Message(protocol.ReplacedText(name, promoted.Name)))

	if engine.Turn() == member.Symbol {
		that.announceTurn()
	} else if other, found := that.registry.PlayerBySymbol(engine.Turn()); found {
		that.send(promoted.Name, protocol.OpponentTurn(other.Name))
	}

	return nil
}

func (that *Coordinator) startGame() {
	first, second := entity.SymbolX, entity.SymbolO
	if !that.coin() {
		first, second = second, first
	}

	if err := that.registry.AssignSymbols(first, second); err != nil {
		that.logger.Error("failed to assign symbols", "error", err)
		return
	}

	that.game = &game{
		id:        pkg.GenerateGameID(),
		number:    that.gamesPlayed + 1,
		engine:    tictactoe.NewEngine(that.registry),
		startedAt: time.Now(),
	}

	players := that.registry.Players()

	that.logger.Info("game started",
		"game_id", that.game.id,
		"number", that.game.number,
		"first", players[0].Name,
		"first_symbol", string(players[0].Symbol),
		"second", players[1].Name,
		"second_symbol", string(players[1].Symbol),
	)
	that.metrics.GameStarted()

	for _, player := range players {
		that.send(player.Name, protocol.Symbol(player.Symbol))
	}

	that.broadcast(protocol.Board(that.game.engine.Board()))
	that.announceTurn()
}

// announceTurn tells the mover, the waiting player and every spectator whose turn it is.
func (that *Coordinator) announceTurn() {
	turn := that.game.engine.Turn()

	mover, ok := that.registry.PlayerBySymbol(turn)
	if !ok {
		that.logger.Error("no player holds the turn", "symbol", string(turn))
		return
	}

	that.send(mover.Name, protocol.YourTurn())

	if other, found := that.registry.PlayerBySymbol(turn.Opponent()); found {
		that.send(other.Name, protocol.OpponentTurn(mover.Name))
	}

	for _, spectator := range that.registry.Spectators() {
		that.send(spectator.Name, protocol.Message(protocol.TurnText(mover.Name)))
	}
}

func (that *Coordinator) finishGame(outcome entity.Outcome) {
	current := that.game
	engine := current.engine

	result := entity.GameResult{
		ID:         current.id,
		Number:     current.number,
		Players:    make(map[entity.Symbol]string, registry.MaxPlayers),
		Outcome:    outcome.Kind.String(),
		Moves:      engine.Moves(),
		Board:      engine.Board().String(),
		FinishedAt: time.Now(),
	}

	for _, player := range that.registry.Players() {
		result.Players[player.Symbol] = player.Name
	}

	if outcome.Kind == entity.OutcomeWon {
		winner, _ := that.registry.PlayerBySymbol(outcome.Winner)
		loser, _ := that.registry.PlayerBySymbol(outcome.Winner.Opponent())
		result.Winner = winner.Name

		that.send(winner.Name, protocol.Win())
		that.send(loser.Name, protocol.Loss())

		for _, spectator := range that.registry.Spectators() {
			that.send(spectator.Name, protocol.Message(protocol.WonText(winner.Name)))
		}
	} else {
		for _, player := range that.registry.Players() {
			that.send(player.Name, protocol.Draw())
		}

		for _, spectator := range that.registry.Spectators() {
			that.send(spectator.Name, protocol.Message(protocol.TextDraw))
		}
	}

	that.gamesPlayed++
	that.game = nil
	that.registry.ClearSymbols()

	that.logger.Info("game finished",
		"game_id", result.ID,
		"outcome", outcome.String(),
		"winner", result.Winner,
		"moves", result.Moves,
		"games_played", that.gamesPlayed,
		"duration", time.Since(current.startedAt).String(),
	)
	that.metrics.GameFinished(outcome)
	that.archiver.Archive(result)

	if that.registry.PlayerCount() == registry.MaxPlayers {
		that.startGame()
	}
}

// send queues n for name. A refused notification marks name for eviction and
// suppresses the rest of its notifications.
func (that *Coordinator) send(name string, notification protocol.Notification) {
	if _, ok := that.dropped[name]; ok {
		return
	}

	outbox, ok := that.outboxes[name]
	if !ok {
		return
	}

	if !outbox.Deliver(notification) {
		that.dropped[name] = struct{}{}
		that.droppedList = append(that.droppedList, name)
	}
}

// broadcast queues n for players first, then spectators in queue order.
func (that *Coordinator) broadcast(notification protocol.Notification) {
	for _, member := range that.registry.All() {
		that.send(member.Name, notification)
	}
}

// settle evicts identities whose mailbox refused a notification, treating each
// as a Leave, until no more sends fail. It also refreshes roster metrics.
func (that *Coordinator) settle() {
	for len(that.droppedList) > 0 {
		name := that.droppedList[0]
		that.droppedList = that.droppedList[1:]

		if _, err := that.registry.Get(name); err != nil {
			continue
		}

		that.logger.Warn("evicting identity after failed send", "name", name)

		if err := that.leave(name); err != nil {
			that.logger.Error("failed to evict identity", "name", name, "error", err)
		}
	}

	that.resetDropped()
	that.metrics.SetRoster(that.registry.PlayerCount(), that.registry.SpectatorCount())
}

func (that *Coordinator) resetDropped() {
	clear(that.dropped)
	that.droppedList = that.droppedList[:0]
}

type nopArchiver struct{}

func (nopArchiver) Archive(entity.GameResult) {}

type nopMetrics struct{}

func (nopMetrics) SetRoster(int, int)          {}
func (nopMetrics) GameStarted()                {}
func (nopMetrics) GameFinished(entity.Outcome) {}
func (nopMetrics) MoveApplied()                {}
func (nopMetrics) MoveRejected()               {}
func (nopMetrics) Promoted()                   {}
