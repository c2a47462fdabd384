// Package metrics provides Prometheus metrics for the trading engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// EngineMetrics collects and exposes engine-wide Prometheus metrics.
type EngineMetrics struct {
	mu       sync.RWMutex
	registry *prometheus.Registry

	// Score feed metrics
	ScoreEventsTotal    *prometheus.CounterVec
	ScoreEventsDropped  *prometheus.CounterVec
	FeedProviderLatency *prometheus.HistogramVec
	FeedConsensus       *prometheus.HistogramVec

	// Decision engine metrics
	DecisionsTotal  *prometheus.CounterVec
	DecisionEdgeBps *prometheus.HistogramVec
	KellyFraction   *prometheus.HistogramVec
	ShiftMagnitude  *prometheus.HistogramVec

	// Order metrics
	OrdersTotal   *prometheus.CounterVec
	OrderDuration *prometheus.HistogramVec
	OrderSize     *prometheus.HistogramVec

	// Position metrics
	OpenPositions  *prometheus.GaugeVec
	PositionValue  *prometheus.GaugeVec
	UnrealizedPnL  *prometheus.GaugeVec
	RealizedPnL    *prometheus.CounterVec
	PositionCloses *prometheus.CounterVec

	// Risk book metrics
	RiskRejectionsTotal *prometheus.CounterVec
	EventExposure       *prometheus.GaugeVec
	SportExposure       *prometheus.GaugeVec
	DayPnL              *prometheus.GaugeVec
	CircuitTripped      *prometheus.GaugeVec

	// Feed-health metrics
	FeedHealthScore    *prometheus.GaugeVec
	FeedHealthPaused   *prometheus.GaugeVec
	FeedFallbackRate   *prometheus.GaugeVec

	// Calibration metrics
	CalibrationFitsTotal  *prometheus.CounterVec
	CalibrationPromotions *prometheus.CounterVec
	CalibrationLogLoss    *prometheus.GaugeVec
	CalibrationBrier      *prometheus.GaugeVec
}

// NewEngineMetrics creates a new metrics collector with its own registry.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	em := &EngineMetrics{
		registry: registry,

		ScoreEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_score_events_total",
				Help: "Total number of score events ingested",
			},
			[]string{"sport", "kind"},
		),
		ScoreEventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_score_events_dropped_total",
				Help: "Total number of score events dropped, by reason",
			},
			[]string{"sport", "reason"},
		),
		FeedProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scorebot_feed_provider_latency_seconds",
				Help:    "Provider-to-receive latency for score events",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"provider"},
		),
		FeedConsensus: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scorebot_feed_consensus_providers",
				Help:    "Number of providers corroborating a score event within the dedup window",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
			[]string{"sport"},
		),

		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_decisions_total",
				Help: "Total number of Decision Engine evaluations, by terminal reason",
			},
			[]string{"sport", "reason"},
		),
		DecisionEdgeBps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scorebot_decision_edge_bps",
				Help:    "Net edge at decision time in basis points",
				Buckets: []float64{0, 25, 50, 100, 150, 200, 300, 500, 1000},
			},
			[]string{"sport", "side"},
		),
		KellyFraction: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scorebot_kelly_fraction",
				Help:    "Fractional-Kelly stake as a proportion of balance",
				Buckets: prometheus.LinearBuckets(0, 0.02, 11),
			},
			[]string{"sport"},
		),
		ShiftMagnitude: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scorebot_probability_shift",
				Help:    "Absolute calibrated win-probability shift that triggered an evaluation",
				Buckets: prometheus.LinearBuckets(0, 0.01, 11),
			},
			[]string{"sport"},
		),

		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_orders_total",
				Help: "Total number of orders placed, by side and status",
			},
			[]string{"side", "status"},
		),
		OrderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scorebot_order_duration_seconds",
				Help:    "Time from order placement to fill or rejection",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"side"},
		),
		OrderSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scorebot_order_size_usd",
				Help:    "Order stake size in USD",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
			[]string{"side"},
		),

		OpenPositions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_open_positions",
				Help: "Current number of open positions",
			},
			[]string{"sport"},
		),
		PositionValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_position_value_usd",
				Help: "Current mark-to-market value of an open position",
			},
			[]string{"market_id", "sport"},
		),
		UnrealizedPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_unrealized_pnl_usd",
				Help: "Unrealized P&L of an open position in USD",
			},
			[]string{"market_id", "sport"},
		),
		RealizedPnL: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_realized_pnl_usd",
				Help: "Realized net P&L in USD, cumulative (can decrease via labeled deltas)",
			},
			[]string{"sport"},
		),
		PositionCloses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_position_closes_total",
				Help: "Total number of position closes, by exit reason",
			},
			[]string{"sport", "reason"},
		),

		RiskRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_risk_rejections_total",
				Help: "Total number of Risk Book rejections, by reason",
			},
			[]string{"reason"},
		),
		EventExposure: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_event_exposure_usd",
				Help: "Current correlation-weighted exposure for an event",
			},
			[]string{"event_id"},
		),
		SportExposure: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_sport_exposure_usd",
				Help: "Current correlation-weighted exposure for a sport",
			},
			[]string{"sport"},
		),
		DayPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_day_realized_pnl_usd",
				Help: "Realized P&L since the last UTC midnight rollover",
			},
			[]string{},
		),
		CircuitTripped: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_circuit_tripped",
				Help: "Whether the Risk Book's daily circuit breaker is tripped (1=yes, 0=no)",
			},
			[]string{},
		),

		FeedHealthScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_feed_health_score",
				Help: "Current EWMA-derived feed-quality score in [0,1]",
			},
			[]string{},
		),
		FeedHealthPaused: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_feed_health_paused",
				Help: "Whether new position entries are currently paused for feed degradation (1=yes, 0=no)",
			},
			[]string{},
		),
		FeedFallbackRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_feed_rest_fallback_rate",
				Help: "Current EWMA rate of REST-fallback quote fetches",
			},
			[]string{},
		),

		CalibrationFitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_calibration_fits_total",
				Help: "Total number of Platt-scaling fit attempts",
			},
			[]string{"sport"},
		),
		CalibrationPromotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scorebot_calibration_promotions_total",
				Help: "Total number of Platt-scaling fits promoted to production",
			},
			[]string{"sport"},
		),
		CalibrationLogLoss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_calibration_log_loss",
				Help: "Most recent validation-fold log-loss, before/after calibration",
			},
			[]string{"sport", "stage"},
		),
		CalibrationBrier: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scorebot_calibration_brier_score",
				Help: "Most recent validation-fold Brier score, before/after calibration",
			},
			[]string{"sport", "stage"},
		),
	}

	em.registerAll()
	return em
}

func (em *EngineMetrics) registerAll() {
	em.registry.MustRegister(
		em.ScoreEventsTotal, em.ScoreEventsDropped, em.FeedProviderLatency, em.FeedConsensus,
		em.DecisionsTotal, em.DecisionEdgeBps, em.KellyFraction, em.ShiftMagnitude,
		em.OrdersTotal, em.OrderDuration, em.OrderSize,
		em.OpenPositions, em.PositionValue, em.UnrealizedPnL, em.RealizedPnL, em.PositionCloses,
		em.RiskRejectionsTotal, em.EventExposure, em.SportExposure, em.DayPnL, em.CircuitTripped,
		em.FeedHealthScore, em.FeedHealthPaused, em.FeedFallbackRate,
		em.CalibrationFitsTotal, em.CalibrationPromotions, em.CalibrationLogLoss, em.CalibrationBrier,
	)
}

// Registry returns the Prometheus registry backing this collector.
func (em *EngineMetrics) Registry() *prometheus.Registry {
	return em.registry
}

// --- Helper methods for recording metrics ---

func (em *EngineMetrics) RecordScoreEvent(sport, kind string) {
	em.ScoreEventsTotal.WithLabelValues(sport, kind).Inc()
}

func (em *EngineMetrics) RecordScoreEventDropped(sport, reason string) {
	em.ScoreEventsDropped.WithLabelValues(sport, reason).Inc()
}

func (em *EngineMetrics) RecordDecision(sport, reason string) {
	em.DecisionsTotal.WithLabelValues(sport, reason).Inc()
}

func (em *EngineMetrics) RecordOrder(side, status string, sizeUSD float64) {
	em.OrdersTotal.WithLabelValues(side, status).Inc()
	if sizeUSD > 0 {
		em.OrderSize.WithLabelValues(side).Observe(sizeUSD)
	}
}

func (em *EngineMetrics) RecordOrderFill(side string, durationSec float64) {
	em.OrderDuration.WithLabelValues(side).Observe(durationSec)
}

func (em *EngineMetrics) UpdatePosition(marketID, sport string, valueUSD, unrealizedPnL float64) {
	em.PositionValue.WithLabelValues(marketID, sport).Set(valueUSD)
	em.UnrealizedPnL.WithLabelValues(marketID, sport).Set(unrealizedPnL)
}

func (em *EngineMetrics) RecordPositionClose(sport, reason string, realizedPnLUSD float64) {
	em.PositionCloses.WithLabelValues(sport, reason).Inc()
	em.RealizedPnL.WithLabelValues(sport).Add(realizedPnLUSD)
}

func (em *EngineMetrics) SetOpenPositions(sport string, count int) {
	em.OpenPositions.WithLabelValues(sport).Set(float64(count))
}

func (em *EngineMetrics) RecordRiskRejection(reason string) {
	em.RiskRejectionsTotal.WithLabelValues(reason).Inc()
}

func (em *EngineMetrics) UpdateRiskBook(dayPnLUSD float64, circuitTripped bool) {
	em.DayPnL.WithLabelValues().Set(dayPnLUSD)
	if circuitTripped {
		em.CircuitTripped.WithLabelValues().Set(1)
	} else {
		em.CircuitTripped.WithLabelValues().Set(0)
	}
}

func (em *EngineMetrics) UpdateFeedHealth(score float64, paused bool, fallbackRate float64) {
	em.FeedHealthScore.WithLabelValues().Set(score)
	em.FeedFallbackRate.WithLabelValues().Set(fallbackRate)
	if paused {
		em.FeedHealthPaused.WithLabelValues().Set(1)
	} else {
		em.FeedHealthPaused.WithLabelValues().Set(0)
	}
}

func (em *EngineMetrics) RecordCalibrationFit(sport string, promoted bool, llBefore, llAfter, brBefore, brAfter float64) {
	em.CalibrationFitsTotal.WithLabelValues(sport).Inc()
	if promoted {
		em.CalibrationPromotions.WithLabelValues(sport).Inc()
	}
	em.CalibrationLogLoss.WithLabelValues(sport, "before").Set(llBefore)
	em.CalibrationLogLoss.WithLabelValues(sport, "after").Set(llAfter)
	em.CalibrationBrier.WithLabelValues(sport, "before").Set(brBefore)
	em.CalibrationBrier.WithLabelValues(sport, "after").Set(brAfter)
}

// DecimalToFloat64 safely converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

var defaultMetrics *EngineMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *EngineMetrics {
	once.Do(func() {
		defaultMetrics = NewEngineMetrics()
	})
	return defaultMetrics
}
