// Package domain defines the core data model shared by every component of
// the trading engine: fixtures, score events, markets, quotes, positions,
// risk budgets, and feed-health state. All monetary and probability values
// use shopspring/decimal rather than float64.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sport identifies a supported sport.
type Sport string

const (
	SportSoccer Sport = "soccer"
	SportNFL    Sport = "nfl"
	SportNBA    Sport = "nba"
	SportMLB    Sport = "mlb"
	SportNHL    Sport = "nhl"
	SportTennis Sport = "tennis"
)

// GameState is a sport-specific snapshot of an in-progress fixture.
// Only the fields relevant to a given sport are populated; consumers must
// check Sport before interpreting them.
type GameState struct {
	// Soccer / NHL (goal-based)
	HomeGoals int
	AwayGoals int
	MinuteOrPeriod int // soccer: match minute; NHL: elapsed seconds within game

	// NFL / NBA (points + clock)
	HomePoints       int
	AwayPoints       int
	Quarter          int
	SecondsRemaining int
	PossessionHome   bool

	// MLB
	HomeRuns  int
	AwayRuns  int
	Inning    int
	TopOfInning bool
	Outs      int

	// Tennis
	HomeSets    int
	AwaySets    int
	HomeGames   int
	AwayGames   int
	ServerHome  bool

	ObservedAt time.Time
}

// Fixture is a live or recently-live game being tracked.
type Fixture struct {
	ID            string
	Sport         Sport
	League        string // e.g. "Premier League"; empty if the provider doesn't report one
	HomeTeam      string
	AwayTeam      string
	State         GameState
	LastObserved  time.Time
	ProviderVotes map[string]GameState // provider name -> last reported state
}

// ScoreEventKind classifies a score delta.
type ScoreEventKind string

const (
	EventGoalHome        ScoreEventKind = "goal_home"
	EventGoalAway        ScoreEventKind = "goal_away"
	EventTouchdownHome   ScoreEventKind = "touchdown_home"
	EventTouchdownAway   ScoreEventKind = "touchdown_away"
	EventFieldGoalHome   ScoreEventKind = "field_goal_home"
	EventFieldGoalAway   ScoreEventKind = "field_goal_away"
	EventBasketHome      ScoreEventKind = "basket_home"
	EventBasketAway      ScoreEventKind = "basket_away"
	EventRunHome         ScoreEventKind = "run_home"
	EventRunAway         ScoreEventKind = "run_away"
	EventPeriodEnd       ScoreEventKind = "period_end"
	EventScoreCorrection ScoreEventKind = "score_correction"
)

// ScoreEvent is a record of a detected score delta. Every field is fixed at
// creation except Consensus, which the aggregator keeps incrementing for as
// long as the event stays in its dedup window even after publishing it to
// consumers — read and write it with the sync/atomic Int32 functions.
type ScoreEvent struct {
	ID             string
	FixtureID      string
	Sport          Sport
	Kind           ScoreEventKind
	PointValue     int // e.g. 3 for a 3-pointer, 7 for TD+XP
	PrevState      GameState
	NewState       GameState
	EventTimestamp time.Time // local receive time — see DESIGN.md open question 5
	ProviderTS     time.Time // provider-reported time, diagnostics only
	Provider       string
	Consensus      int32 // count of providers corroborating within dedup window; atomic
}

// MarketStatus is the lifecycle state of a venue market.
type MarketStatus string

const (
	MarketActive   MarketStatus = "active"
	MarketClosed   MarketStatus = "closed"
	MarketResolved MarketStatus = "resolved"
)

// Outcome is the resolved winner side, valid only when Status == MarketResolved.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// Market is a binary winner market tied to a fixture.
type Market struct {
	ID         string
	FixtureID  string
	YesTokenID string
	NoTokenID  string
	YesIsHome  bool
	Liquidity  decimal.Decimal
	Status     MarketStatus
	Outcome    Outcome // only meaningful when Status == MarketResolved
	CachedAt   time.Time
}

// QuoteSourceKind records where a quote came from.
type QuoteSourceKind string

const (
	QuoteSourceWS   QuoteSourceKind = "ws"
	QuoteSourceREST QuoteSourceKind = "rest"
)

// Quote is a best-bid/ask snapshot for a single token.
type Quote struct {
	TokenID     string
	BestBid     decimal.Decimal
	BestAsk     decimal.Decimal
	Mid         decimal.Decimal
	BidSize     decimal.Decimal
	AskSize     decimal.Decimal
	Source      QuoteSourceKind
	ObservedAt  time.Time
}

// AgeMS returns the quote's age in milliseconds relative to now.
func (q Quote) AgeMS(now time.Time) int64 {
	return now.Sub(q.ObservedAt).Milliseconds()
}

// PositionSide is the side of a binary market a position holds.
type PositionSide string

const (
	SideYes PositionSide = "yes"
	SideNo  PositionSide = "no"
)

// PositionState is the lifecycle stage of a Position.
type PositionState string

const (
	PositionOpen    PositionState = "open"
	PositionClosing PositionState = "closing"
	PositionClosed  PositionState = "closed"
)

// CloseReason records why a position was closed.
type CloseReason string

const (
	ReasonStopLoss        CloseReason = "stop_loss"
	ReasonTakeProfit      CloseReason = "take_profit"
	ReasonFeedDegradation CloseReason = "feed_degradation"
	ReasonMaxAge          CloseReason = "max_age"
	ReasonMarketResolved  CloseReason = "market_resolved"
)

// Position is a single open or closed bet on one market.
type Position struct {
	ID         string
	MarketID   string
	TokenID    string
	Side       PositionSide
	Stake      decimal.Decimal
	EntryPrice decimal.Decimal
	EntrySize  decimal.Decimal
	StopPrice  decimal.Decimal
	TakePrice  decimal.Decimal
	OpenedAt   time.Time

	EntryQuoteSource QuoteSourceKind
	EntryQuoteAgeMS  int64
	EntryRawProb     decimal.Decimal
	EntryCalibProb   decimal.Decimal

	WSQuoteCount   int
	RESTQuoteCount int

	State PositionState

	ExitPrice      decimal.Decimal
	ExitReason     CloseReason
	RealizedNetPnL decimal.Decimal
	ClosedAt       time.Time

	// Sport/Team are denormalized from the fixture at entry time for
	// correlation and risk-budget accounting after the fixture is pruned.
	Sport    Sport
	League   string
	EventID  string
	HomeTeam string
	AwayTeam string
	BetTeam  string
}

// RiskBudget holds the per-scope caps enforced by the Risk Book.
type RiskBudget struct {
	PerEventCap        decimal.Decimal
	PerSportCap        decimal.Decimal
	PerTeamCap         decimal.Decimal
	PerDayDrawdownCap  decimal.Decimal
	PerDayTradeCap     int
	MaxPositionsPerEvent int
}

// FeedHealth is the current EWMA-derived feed-quality state.
type FeedHealth struct {
	EWMAFallbackRate decimal.Decimal
	EWMAWSAgeMS      decimal.Decimal
	Score            decimal.Decimal // [0,1], derived
	PauseNewEntries  bool
	PausedSince      time.Time
}
