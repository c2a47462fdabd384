// Package position implements spec.md §4.7: the Position Manager. It
// owns every open Position exclusively, runs on a fixed cadence, and
// evaluates exit rules in priority order. PnL accounting is adapted from
// pkg/trader/paper/engine.go's executeFill/updatePositionWithPnL (realized
// PnL on close, cost-aware rather than gross).
package position

import (
	"context"
	"sync"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/internal/feedhealth"
	"github.com/oddsignal/scorebot/internal/market"
	"github.com/oddsignal/scorebot/internal/quote"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CloseNotifier is called whenever a position closes, so the Risk Book and
// balance ledger can be updated outside this package.
type CloseNotifier func(pos domain.Position)

// Manager owns every open domain.Position and evaluates exit rules on a
// fixed cadence, per spec.md §4.7.
type Manager struct {
	quotes      *quote.Source
	venue       market.Venue
	feedHealth  *feedhealth.Monitor
	tickEvery   time.Duration
	maxAge      time.Duration
	flattenAfterBadFeed time.Duration
	flattenThreshold    decimal.Decimal
	log         *zap.Logger
	onClose     CloseNotifier

	mu        sync.Mutex
	open      map[string]*domain.Position
	badFeedSince map[string]time.Time
}

// New returns a Manager ticking every tickEvery, flattening positions
// older than maxAge, and flattening on sustained feed degradation: once
// the feed-health score stays below flattenThreshold for
// flattenAfterBadFeed, per spec.md §4.7's own threshold, distinct from
// the §4.5 pause-new-entries threshold the Decision Engine gates on.
func New(quotes *quote.Source, venue market.Venue, feedHealth *feedhealth.Monitor, tickEvery, maxAge, flattenAfterBadFeed time.Duration, flattenThreshold decimal.Decimal, log *zap.Logger, onClose CloseNotifier) *Manager {
	return &Manager{
		quotes: quotes, venue: venue, feedHealth: feedHealth,
		tickEvery: tickEvery, maxAge: maxAge, flattenAfterBadFeed: flattenAfterBadFeed,
		flattenThreshold: flattenThreshold,
		log: log, onClose: onClose,
		open:         make(map[string]*domain.Position),
		badFeedSince: make(map[string]time.Time),
	}
}

// Open registers a newly-filled position for ongoing management.
func (m *Manager) Open(pos *domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open[pos.ID] = pos
}

// Positions returns a snapshot of every currently-open position.
func (m *Manager) Positions() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.open))
	for _, p := range m.open {
		out = append(out, *p)
	}
	return out
}

// Run ticks every m.tickEvery, evaluating exit rules for every open
// position, until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.evaluateOne(ctx, id)
	}
}

// evaluateOne applies spec.md §4.7's exit ladder in priority order — the
// first matching rule wins: stop-loss, take-profit, feed-degradation,
// max-age, then (lowest priority) market-resolved. Market status is
// fetched up front since it's needed either way, but only acted on last,
// so a resolved market never overrides a stop/take that already fired
// this tick.
func (m *Manager) evaluateOne(ctx context.Context, id string) {
	m.mu.Lock()
	pos, ok := m.open[id]
	m.mu.Unlock()
	if !ok {
		return
	}

	now := time.Now()

	status, outcome, statusErr := m.venue.GetMarketStatus(ctx, pos.MarketID)
	resolved := statusErr == nil && status == domain.MarketResolved

	q, err := m.quotes.Get(ctx, pos.TokenID)
	if err != nil {
		if m.log != nil {
			m.log.Warn("quote fetch failed during position tick", zap.String("position_id", pos.ID), zap.Error(err))
		}
		if resolved {
			m.closeResolved(pos, outcome)
		}
		return
	}
	if q.Source == domain.QuoteSourceWS {
		pos.WSQuoteCount++
	} else {
		pos.RESTQuoteCount++
	}
	mark := q.Mid

	if m.feedHealth != nil {
		isRest := q.Source == domain.QuoteSourceREST
		m.feedHealth.Observe(isRest, q.AgeMS(now), now)
	}

	switch {
	case mark.LessThanOrEqual(pos.StopPrice):
		m.close(pos, mark, domain.ReasonStopLoss)
		return
	case mark.GreaterThanOrEqual(pos.TakePrice):
		m.close(pos, mark, domain.ReasonTakeProfit)
		return
	}

	if m.feedHealthDegraded() {
		m.mu.Lock()
		since, tracked := m.badFeedSince[pos.ID]
		if !tracked {
			m.badFeedSince[pos.ID] = now
			since = now
		}
		m.mu.Unlock()
		if now.Sub(since) >= m.flattenAfterBadFeed {
			m.close(pos, mark, domain.ReasonFeedDegradation)
			return
		}
	} else {
		m.mu.Lock()
		delete(m.badFeedSince, pos.ID)
		m.mu.Unlock()
	}

	if now.Sub(pos.OpenedAt) >= m.maxAge {
		m.close(pos, mark, domain.ReasonMaxAge)
		return
	}

	if resolved {
		m.closeResolved(pos, outcome)
	}
}

func (m *Manager) closeResolved(pos *domain.Position, outcome domain.Outcome) {
	resolutionPrice := decimal.Zero
	won := (outcome == domain.OutcomeYes && pos.Side == domain.SideYes) ||
		(outcome == domain.OutcomeNo && pos.Side == domain.SideNo)
	if won {
		resolutionPrice = decimal.NewFromInt(1)
	}
	m.close(pos, resolutionPrice, domain.ReasonMarketResolved)
}

// feedHealthDegraded reports whether the feed-health score has fallen
// below this manager's own flatten threshold — spec.md §4.7's flatten
// rule, kept distinct from the Monitor's internal §4.5 pause-new-entries
// threshold (which gates new entries, not existing ones).
func (m *Manager) feedHealthDegraded() bool {
	if m.feedHealth == nil {
		return false
	}
	return m.feedHealth.Score().LessThan(m.flattenThreshold)
}

// close computes cost-aware realized PnL and removes the position from
// management, per spec.md §4.7 step 4:
// realized_gross = (exit_price - entry_price) * entry_size,
// realized_net = realized_gross - round_trip_costs.
func (m *Manager) close(pos *domain.Position, exitPrice decimal.Decimal, reason domain.CloseReason) {
	realizedGross := exitPrice.Sub(pos.EntryPrice).Mul(pos.EntrySize)
	costs := roundTripCosts(pos.EntrySize, pos.EntryPrice, exitPrice)
	realizedNet := realizedGross.Sub(costs)

	pos.State = domain.PositionClosed
	pos.ExitPrice = exitPrice
	pos.ExitReason = reason
	pos.RealizedNetPnL = realizedNet
	pos.ClosedAt = time.Now()

	m.mu.Lock()
	delete(m.open, pos.ID)
	delete(m.badFeedSince, pos.ID)
	m.mu.Unlock()

	if m.onClose != nil {
		m.onClose(*pos)
	}
}

// roundTripCosts approximates entry+exit slippage as a fixed basis-point
// charge on notional at both legs, in the absence of a live fee schedule
// (the dry-run venue charges none explicitly, but a round-trip cost is
// still modeled so realized PnL isn't systematically optimistic).
func roundTripCosts(size, entryPrice, exitPrice decimal.Decimal) decimal.Decimal {
	bps := decimal.NewFromFloat(0.001) // 10bps on each leg's notional
	entryNotional := size.Mul(entryPrice)
	exitNotional := size.Mul(exitPrice)
	return entryNotional.Add(exitNotional).Mul(bps)
}
