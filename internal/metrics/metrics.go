package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the collectors exported by the game service.
type Metrics struct {
	Registry *prometheus.Registry

	RoundsTotal       prometheus.Counter
	CrashMultiplier   prometheus.Histogram
	CurrentMultiplier prometheus.Gauge
	BetsPlaced        prometheus.Counter
	CashOuts          prometheus.Counter
	Rejected          *prometheus.CounterVec
	StaleTimerFires   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RoundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_rounds_total",
			Help: "Total rounds that reached the crashed phase",
		}),
		CrashMultiplier: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crash_multiplier",
			Help:    "Distribution of crash points",
			Buckets: []float64{1.1, 1.5, 2, 3, 5, 10, 25, 100},
		}),
		CurrentMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crash_current_multiplier",
			Help: "Multiplier of the round in progress",
		}),
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_bets_placed_total",
			Help: "Total accepted bets",
		}),
		CashOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_cashouts_total",
			Help: "Total successful cash-outs",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crash_rejected_actions_total",
			Help: "Rejected bet and cash-out requests by reason",
		}, []string{"action", "reason"}),
		StaleTimerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_stale_timer_fires_total",
			Help: "Scheduled tasks that fired after being superseded",
		}),
	}

	m.Registry.MustRegister(
		m.RoundsTotal,
		m.CrashMultiplier,
		m.CurrentMultiplier,
		m.BetsPlaced,
		m.CashOuts,
		m.Rejected,
		m.StaleTimerFires,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
