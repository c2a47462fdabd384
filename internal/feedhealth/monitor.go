// Package feedhealth implements spec.md §4.5: EWMA-based feed-quality
// scoring that adaptively tightens Decision Engine gates and trips a
// pause-new-entries circuit breaker when the feed degrades for a
// sustained period.
package feedhealth

import (
	"sync"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	one = decimal.NewFromInt(1)
)

// Monitor tracks feed quality via two EWMAs — the REST-fallback rate and
// the WS quote age — and derives a [0,1] quality score from both.
type Monitor struct {
	alpha          decimal.Decimal
	pauseThreshold decimal.Decimal
	cooldown       time.Duration
	sustainWindow  time.Duration

	// maxWSAgeForScoreMS normalizes ewma_ws_age_ms into [0,1] for scoring;
	// an EWMA age at or above this value scores as fully degraded.
	maxWSAgeForScoreMS decimal.Decimal

	mu sync.Mutex

	ewmaFallbackRate decimal.Decimal
	ewmaWSAgeMS      decimal.Decimal
	score            decimal.Decimal

	belowThresholdSince time.Time
	belowThreshold      bool

	pauseNewEntries bool
	pausedSince     time.Time
}

// New returns a Monitor with alpha as the EWMA smoothing factor, pauseThreshold
// as the quality floor, cooldown as the pause duration once tripped, and
// sustainWindow as how long quality must stay below threshold before tripping.
func New(alpha, pauseThreshold decimal.Decimal, cooldown, sustainWindow time.Duration) *Monitor {
	return &Monitor{
		alpha:              alpha,
		pauseThreshold:     pauseThreshold,
		cooldown:           cooldown,
		sustainWindow:      sustainWindow,
		maxWSAgeForScoreMS: decimal.NewFromInt(10000),
		score:              one,
	}
}

// Observe records one Position/Quote-fetch outcome: isRest reports whether
// the quote came from REST fallback rather than WS, and wsAgeMS is the
// WS quote's age at the time of use (0 when the fetch itself was REST).
func (m *Monitor) Observe(isRest bool, wsAgeMS int64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	indicator := decimal.Zero
	if isRest {
		indicator = one
	}
	m.ewmaFallbackRate = m.alpha.Mul(indicator).Add(one.Sub(m.alpha).Mul(m.ewmaFallbackRate))

	age := decimal.NewFromInt(wsAgeMS)
	m.ewmaWSAgeMS = m.alpha.Mul(age).Add(one.Sub(m.alpha).Mul(m.ewmaWSAgeMS))

	m.recompute(now)
}

// recompute derives the quality score from both EWMAs and evaluates the
// pause/cooldown state machine. Must be called with mu held.
func (m *Monitor) recompute(now time.Time) {
	ageRatio := m.ewmaWSAgeMS.Div(m.maxWSAgeForScoreMS)
	if ageRatio.GreaterThan(one) {
		ageRatio = one
	}
	// Quality is a decreasing function of both EWMAs: the fallback rate
	// and normalized age contribute equally, each in [0,1].
	degradation := m.ewmaFallbackRate.Add(ageRatio).Div(decimal.NewFromInt(2))
	m.score = one.Sub(degradation)
	if m.score.IsNegative() {
		m.score = decimal.Zero
	}

	if m.score.LessThan(m.pauseThreshold) {
		if !m.belowThreshold {
			m.belowThreshold = true
			m.belowThresholdSince = now
		}
		if !m.pauseNewEntries && now.Sub(m.belowThresholdSince) >= m.sustainWindow {
			m.pauseNewEntries = true
			m.pausedSince = now
		}
	} else {
		m.belowThreshold = false
	}

	if m.pauseNewEntries && now.Sub(m.pausedSince) >= m.cooldown && !m.score.LessThan(m.pauseThreshold) {
		m.pauseNewEntries = false
	}
}

// Snapshot returns the current feed-health state for persistence/telemetry.
func (m *Monitor) Snapshot() domain.FeedHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.FeedHealth{
		EWMAFallbackRate: m.ewmaFallbackRate,
		EWMAWSAgeMS:      m.ewmaWSAgeMS,
		Score:            m.score,
		PauseNewEntries:  m.pauseNewEntries,
		PausedSince:      m.pausedSince,
	}
}

// Score returns the current [0,1] feed-quality score.
func (m *Monitor) Score() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.score
}

// PauseNewEntries reports whether new entries should currently be blocked.
func (m *Monitor) PauseNewEntries() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseNewEntries
}

// AdaptiveMinEdge raises min_edge as quality degrades, per spec.md §4.5's
// "min_edge (raised)" gate-tightening rule and SPEC_FULL's linear curve
// (min_edge_eff = min_edge + (1-q)*min_edge_feed_penalty).
func (m *Monitor) AdaptiveMinEdge(baseMinEdge, penalty decimal.Decimal) decimal.Decimal {
	q := m.Score()
	return baseMinEdge.Add(one.Sub(q).Mul(penalty))
}

// AdaptiveMaxDivergence lowers the allowed WS/REST quote divergence as
// quality degrades, scaling the configured ceiling by the quality score.
func (m *Monitor) AdaptiveMaxDivergence(baseMaxDivergence decimal.Decimal) decimal.Decimal {
	q := m.Score()
	return baseMaxDivergence.Mul(q)
}

// AdaptiveShiftThreshold raises the probability-shift gate's threshold as
// quality degrades, scaling it by (2 - quality score): unchanged at full
// quality, doubled at zero quality.
func (m *Monitor) AdaptiveShiftThreshold(baseThreshold decimal.Decimal) decimal.Decimal {
	q := m.Score()
	if q.IsZero() {
		return baseThreshold.Mul(decimal.NewFromInt(2)) // fully degraded: double as a ceiling, not unbounded
	}
	scale := decimal.NewFromInt(2).Sub(q) // q=1 -> scale=1 (no change); q=0 -> scale=2
	return baseThreshold.Mul(scale)
}
