// Package risk implements spec.md §4.8: the Risk Book. It tracks exposure
// by event, sport, team, and day, and enforces configured budgets before a
// new position is admitted.
package risk

import (
	"sync"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

// RejectReason identifies which budget a proposed stake would violate.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectPerEventCap      RejectReason = "per_event_cap"
	RejectPerSportCap      RejectReason = "per_sport_cap"
	RejectPerTeamCap       RejectReason = "per_team_cap"
	RejectPerDayDrawdown   RejectReason = "per_day_drawdown"
	RejectPerDayTradeCount RejectReason = "per_day_trade_count"
	RejectMaxPositionsEvent RejectReason = "max_positions_per_event"
	RejectDuplicateMarket  RejectReason = "duplicate_market"
)

// Proposal is a candidate position awaiting risk admission.
type Proposal struct {
	MarketID string
	EventID  string
	Sport    domain.Sport
	League   string
	Team     string
	Stake    decimal.Decimal
}

// Book tracks open positions and realized PnL for exposure accounting and
// enforces the configured RiskBudget on every proposed entry.
type Book struct {
	budget      domain.RiskBudget
	correlation Correlation
	clock       func() time.Time

	mu               sync.Mutex
	open             map[string]openExposure // position id -> exposure
	openByMarket     map[string]struct{}
	dayStart         time.Time
	dayRealizedPnL   decimal.Decimal
	dayTradeCount    int
	circuitTripped   bool
}

type openExposure struct {
	MarketID string
	EventID  string
	Sport    domain.Sport
	League   string
	Team     string
	Stake    decimal.Decimal
}

// New returns a Book enforcing budget, using correlation for team/sport
// exposure weighting. clock defaults to time.Now when nil.
func New(budget domain.RiskBudget, correlation Correlation, clock func() time.Time) *Book {
	if clock == nil {
		clock = time.Now
	}
	return &Book{
		budget:       budget,
		correlation:  correlation,
		clock:        clock,
		open:         make(map[string]openExposure),
		openByMarket: make(map[string]struct{}),
		dayStart:     dayBoundary(clock()),
	}
}

func dayBoundary(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// rolloverIfNeeded resets the day-scoped counters at UTC midnight. Must be
// called with mu held.
func (b *Book) rolloverIfNeeded() {
	now := dayBoundary(b.clock())
	if now.After(b.dayStart) {
		b.dayStart = now
		b.dayRealizedPnL = decimal.Zero
		b.dayTradeCount = 0
		b.circuitTripped = false
	}
}

// Admit evaluates a proposed position against every configured budget and
// the duplicate-market invariant, returning the first violated reason (or
// RejectNone if the stake is admissible).
func (b *Book) Admit(p Proposal) RejectReason {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverIfNeeded()

	if b.circuitTripped {
		return RejectPerDayDrawdown
	}
	if b.budget.PerDayTradeCap > 0 && b.dayTradeCount >= b.budget.PerDayTradeCap {
		return RejectPerDayTradeCount
	}
	if _, dup := b.openByMarket[p.MarketID]; dup {
		return RejectDuplicateMarket
	}

	var eventCount int
	var sportStake, teamExposure decimal.Decimal
	for _, o := range b.open {
		if o.EventID == p.EventID {
			eventCount++
		}
		if o.Sport == p.Sport {
			sportStake = sportStake.Add(o.Stake)
		}
		coef := b.correlation.Coefficient(
			Exposure{Sport: string(o.Sport), League: o.League, Team: o.Team},
			Exposure{Sport: string(p.Sport), League: p.League, Team: p.Team},
		)
		teamExposure = teamExposure.Add(o.Stake.Mul(coef))
	}

	if b.budget.MaxPositionsPerEvent > 0 && eventCount >= b.budget.MaxPositionsPerEvent {
		return RejectMaxPositionsEvent
	}
	if !b.budget.PerEventCap.IsZero() && b.eventStake(p.EventID).Add(p.Stake).GreaterThan(b.budget.PerEventCap) {
		return RejectPerEventCap
	}
	if !b.budget.PerSportCap.IsZero() && sportStake.Add(p.Stake).GreaterThan(b.budget.PerSportCap) {
		return RejectPerSportCap
	}
	if !b.budget.PerTeamCap.IsZero() && teamExposure.Add(p.Stake).GreaterThan(b.budget.PerTeamCap) {
		return RejectPerTeamCap
	}

	return RejectNone
}

func (b *Book) eventStake(eventID string) decimal.Decimal {
	total := decimal.Zero
	for _, o := range b.open {
		if o.EventID == eventID {
			total = total.Add(o.Stake)
		}
	}
	return total
}

// RecordOpen registers a newly-opened position's exposure. Call only after
// Admit has returned RejectNone for the same proposal and the order filled.
func (b *Book) RecordOpen(positionID string, p Proposal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverIfNeeded()

	b.open[positionID] = openExposure{
		MarketID: p.MarketID,
		EventID:  p.EventID,
		Sport:    p.Sport,
		League:   p.League,
		Team:     p.Team,
		Stake:    p.Stake,
	}
	b.openByMarket[p.MarketID] = struct{}{}
	b.dayTradeCount++
}

// RecordClose releases a position's exposure and applies its realized PnL
// to the day's drawdown accounting, tripping the circuit breaker if the
// configured drawdown cap is now exceeded.
func (b *Book) RecordClose(positionID string, realizedNetPnL decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverIfNeeded()

	if o, ok := b.open[positionID]; ok {
		delete(b.openByMarket, o.MarketID)
		delete(b.open, positionID)
	}
	b.dayRealizedPnL = b.dayRealizedPnL.Add(realizedNetPnL)

	if !b.budget.PerDayDrawdownCap.IsZero() && b.dayRealizedPnL.IsNegative() &&
		b.dayRealizedPnL.Abs().GreaterThanOrEqual(b.budget.PerDayDrawdownCap) {
		b.circuitTripped = true
	}
}

// DayPnL returns realized PnL accrued so far within the current UTC day.
func (b *Book) DayPnL() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverIfNeeded()
	return b.dayRealizedPnL
}

// CircuitTripped reports whether the day-drawdown circuit breaker is open.
func (b *Book) CircuitTripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverIfNeeded()
	return b.circuitTripped
}
