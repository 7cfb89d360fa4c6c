package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const namespace = "tictactoe"

// Metrics records coordinator and connection activity on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	players       prometheus.Gauge
	spectators    prometheus.Gauge
	connections   prometheus.Gauge
	gamesStarted  prometheus.Counter
	gamesFinished *prometheus.CounterVec
	moves         *prometheus.CounterVec
	promotions    prometheus.Counter
	archiveDrops  prometheus.Counter
	commandTime   *prometheus.HistogramVec
}

func New() *Metrics {
	that := &Metrics{
		registry: prometheus.NewRegistry(),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players",
			Help:      "Number of seated players",
		}),
		spectators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spectators",
			Help:      "Number of queued spectators",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open client connections",
		}),
		gamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Total number of games started",
		}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Total number of games that reached an outcome",
		}, []string{"outcome"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Total number of MOVE commands by result",
		}, []string{"result"}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_total",
			Help:      "Total number of spectators promoted to player",
		}),
		archiveDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_dropped_total",
			Help:      "Total number of game results not archived because the buffer was full",
		}),
		commandTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"command"}),
	}

	that.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		that.players,
		that.spectators,
		that.connections,
		that.gamesStarted,
		that.gamesFinished,
		that.moves,
		that.promotions,
		that.archiveDrops,
		that.commandTime,
	)

	return that
}

// Handler serves the registry in the Prometheus exposition format.
func (that *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(that.registry, promhttp.HandlerOpts{Registry: that.registry})
}

func (that *Metrics) SetRoster(players, spectators int) {
	that.players.Set(float64(players))
	that.spectators.Set(float64(spectators))
}

func (that *Metrics) GameStarted() {
	that.gamesStarted.Inc()
}

func (that *Metrics) GameFinished(outcome entity.Outcome) {
	that.gamesFinished.WithLabelValues(outcome.Kind.String()).Inc()
}

func (that *Metrics) MoveApplied() {
	that.moves.WithLabelValues("valid").Inc()
}

func (that *Metrics) MoveRejected() {
	that.moves.WithLabelValues("invalid").Inc()
}

func (that *Metrics) Promoted() {
	that.promotions.Inc()
}

func (that *Metrics) ArchiveDropped() {
	that.archiveDrops.Inc()
}

func (that *Metrics) ConnectionOpened() {
	that.connections.Inc()
}

func (that *Metrics) ConnectionClosed() {
	that.connections.Dec()
}

func (that *Metrics) ObserveCommand(command string, duration time.Duration) {
	that.commandTime.WithLabelValues(command).Observe(duration.Seconds())
}
