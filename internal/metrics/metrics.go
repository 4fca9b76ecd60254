package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ActiveSessionCounter returns the number of non-archived call sessions.
type ActiveSessionCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// SessionStateCounter returns session counts grouped by state.
type SessionStateCounter interface {
	CountByState(ctx context.Context) (map[string]int64, error)
}

// OutcomeCounter returns completed-call counts grouped by outcome.
type OutcomeCounter interface {
	CountByOutcome(ctx context.Context) (map[string]int64, error)
}

// CacheStatsProvider exposes audio cache hit and miss counters.
type CacheStatsProvider interface {
	Hits() uint64
	Misses() uint64
}

// BreakerStateProvider exposes a named circuit breaker's current state.
type BreakerStateProvider interface {
	BreakerState() string
}

// Collector is a prometheus.Collector that gathers call engine metrics at
// scrape time.
type Collector struct {
	sessions  ActiveSessionCounter
	states    SessionStateCounter
	outcomes  OutcomeCounter
	cache     CacheStatsProvider
	breakers  map[string]BreakerStateProvider
	startTime time.Time

	// Metric descriptors.
	activeSessionsDesc *prometheus.Desc
	sessionStateDesc   *prometheus.Desc
	outcomesDesc       *prometheus.Desc
	cacheHitsDesc      *prometheus.Desc
	cacheMissesDesc    *prometheus.Desc
	breakerStateDesc   *prometheus.Desc
	uptimeDesc         *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if
// unavailable; breakers maps a collaborator name to its breaker.
func NewCollector(
	sessions ActiveSessionCounter,
	states SessionStateCounter,
	outcomes OutcomeCounter,
	cache CacheStatsProvider,
	breakers map[string]BreakerStateProvider,
	startTime time.Time,
) *Collector {
	return &Collector{
		sessions:  sessions,
		states:    states,
		outcomes:  outcomes,
		cache:     cache,
		breakers:  breakers,
		startTime: startTime,

		activeSessionsDesc: prometheus.NewDesc(
			"callengine_active_sessions",
			"Number of call sessions not yet archived",
			nil, nil,
		),
		sessionStateDesc: prometheus.NewDesc(
			"callengine_sessions",
			"Number of call sessions by state",
			[]string{"state"}, nil,
		),
		outcomesDesc: prometheus.NewDesc(
			"callengine_call_outcomes_total",
			"Total number of finished calls by outcome",
			[]string{"outcome"}, nil,
		),
		cacheHitsDesc: prometheus.NewDesc(
			"callengine_audio_cache_hits_total",
			"Total audio cache hits",
			nil, nil,
		),
		cacheMissesDesc: prometheus.NewDesc(
			"callengine_audio_cache_misses_total",
			"Total audio cache misses",
			nil, nil,
		),
		breakerStateDesc: prometheus.NewDesc(
			"callengine_breaker_open",
			"Circuit breaker state per collaborator (1=open, 0=closed or half-open)",
			[]string{"collaborator", "state"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"callengine_uptime_seconds",
			"Time since the server started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSessionsDesc
	ch <- c.sessionStateDesc
	ch <- c.outcomesDesc
	ch <- c.cacheHitsDesc
	ch <- c.cacheMissesDesc
	ch <- c.breakerStateDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.sessions != nil {
		count, err := c.sessions.CountActive(ctx)
		if err != nil {
			slog.Error("metrics: failed to count active sessions", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.activeSessionsDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	if c.states != nil {
		counts, err := c.states.CountByState(ctx)
		if err != nil {
			slog.Error("metrics: failed to count sessions by state", "error", err)
		} else {
			for state, n := range counts {
				ch <- prometheus.MustNewConstMetric(
					c.sessionStateDesc, prometheus.GaugeValue,
					float64(n), state,
				)
			}
		}
	}

	if c.outcomes != nil {
		counts, err := c.outcomes.CountByOutcome(ctx)
		if err != nil {
			slog.Error("metrics: failed to count call outcomes", "error", err)
		} else {
			for outcome, n := range counts {
				ch <- prometheus.MustNewConstMetric(
					c.outcomesDesc, prometheus.CounterValue,
					float64(n), outcome,
				)
			}
		}
	}

	if c.cache != nil {
		ch <- prometheus.MustNewConstMetric(
			c.cacheHitsDesc, prometheus.CounterValue,
			float64(c.cache.Hits()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.cacheMissesDesc, prometheus.CounterValue,
			float64(c.cache.Misses()),
		)
	}

	for name, b := range c.breakers {
		if b == nil {
			continue
		}
		state := b.BreakerState()
		val := 0.0
		if state == "open" {
			val = 1.0
		}
		ch <- prometheus.MustNewConstMetric(
			c.breakerStateDesc, prometheus.GaugeValue, val,
			name, state,
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
