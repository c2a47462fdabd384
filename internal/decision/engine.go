// Package decision implements spec.md §4.6: the Decision Engine pipeline
// that turns a ScoreEvent into either a dropped-with-reason outcome or a
// filled Position. VWAP/Kelly formulas are ported from
// pkg/polymarket/sportsbridge/edge.go's EdgeCalculator (re-derived to
// match spec.md §4.6's exact formulas, not copied verbatim).
package decision

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oddsignal/scorebot/internal/config"
	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/internal/feedhealth"
	"github.com/oddsignal/scorebot/internal/market"
	"github.com/oddsignal/scorebot/internal/probmodel"
	"github.com/oddsignal/scorebot/internal/quote"
	"github.com/oddsignal/scorebot/internal/risk"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	one  = decimal.NewFromInt(1)
	zero = decimal.Zero
)

// PositionIntent is the engine's decision to open a position; the caller
// (the orchestrator) is responsible for persisting it as a domain.Position
// once the order fill is confirmed.
type PositionIntent struct {
	MarketID   string
	TokenID    string
	Side       domain.PositionSide
	Price      decimal.Decimal
	Size       decimal.Decimal
	Stake      decimal.Decimal
	RawProb    decimal.Decimal
	CalibProb  decimal.Decimal
	QuoteSource domain.QuoteSourceKind
	QuoteAgeMS int64

	// RiskProposal is the admitted exposure the engine checked against the
	// Risk Book. The caller must call riskBook.RecordOpen with this and the
	// final position ID once the position is created, so RecordOpen and the
	// later RecordClose key on the same ID.
	RiskProposal risk.Proposal
}

// Fixtures abstracts the Score Feed's owned fixture map, queried by the
// engine to fetch a fixture's current team names for market resolution.
type Fixtures interface {
	Fixture(id string) (domain.Fixture, bool)
}

// Balance abstracts available cash for Kelly sizing and risk admission.
type Balance interface {
	Available() decimal.Decimal
}

// Engine runs spec.md §4.6's ten-step pipeline for each incoming ScoreEvent.
type Engine struct {
	cfg         *config.Config
	calibrator  *probmodel.Calibrator
	fixtures    Fixtures
	resolver    *market.Resolver
	quotes      *quote.Source
	venue       market.Venue
	riskBook    *risk.Book
	feedHealth  *feedhealth.Monitor
	balance     Balance
	log         *zap.Logger
}

// New wires the Decision Engine's dependencies.
func New(
	cfg *config.Config,
	calibrator *probmodel.Calibrator,
	fixtures Fixtures,
	resolver *market.Resolver,
	quotes *quote.Source,
	venue market.Venue,
	riskBook *risk.Book,
	feedHealth *feedhealth.Monitor,
	balance Balance,
	log *zap.Logger,
) *Engine {
	return &Engine{
		cfg: cfg, calibrator: calibrator, fixtures: fixtures, resolver: resolver,
		quotes: quotes, venue: venue, riskBook: riskBook, feedHealth: feedHealth,
		balance: balance, log: log,
	}
}

// Evaluate runs the full pipeline for one ScoreEvent and, if every gate
// passes, places the order and returns the resulting PositionIntent.
func (e *Engine) Evaluate(ctx context.Context, ev *domain.ScoreEvent) Outcome {
	// Step 1: filter.
	if ev.Kind == domain.EventScoreCorrection {
		return Outcome{Reason: ReasonScoreCorrection}
	}
	if e.feedHealth != nil && e.feedHealth.PauseNewEntries() {
		return Outcome{Reason: ReasonPausedNewEntries}
	}
	if time.Since(ev.EventTimestamp) > e.cfg.MaxEventAge {
		return Outcome{Reason: ReasonEventTooOld}
	}

	// Supplemented latency-alpha pre-gate (SPEC_FULL.md §4.1.a), age half:
	// skip events too old to act on profitably regardless of price. The
	// priced-in-ratio half runs after quotes are available, once the
	// market's current price can be compared against the model's move.
	if e.cfg.LatencyAlphaGateEnabled {
		ageMS := time.Since(ev.EventTimestamp).Milliseconds()
		if ageMS > e.cfg.LatencyMaxScoreAgeMS {
			return Outcome{Reason: ReasonLatencyAlphaExhausted}
		}
	}

	// Step 2: probability shift.
	sport := ev.Sport
	pBefore := e.calibrator.Calibrated(sport, ev.PrevState)
	pAfter := e.calibrator.Calibrated(sport, ev.NewState)
	shift := pAfter.Sub(pBefore).Abs()

	threshold, ok := e.cfg.ShiftThreshold[string(sport)]
	if !ok {
		threshold = decimal.NewFromFloat(0.05)
	}
	if e.feedHealth != nil {
		threshold = e.feedHealth.AdaptiveShiftThreshold(threshold)
	}
	if atomic.LoadInt32(&ev.Consensus) <= 1 {
		threshold = threshold.Mul(e.cfg.WeakConsensusFactor)
	}
	if shift.LessThan(threshold) {
		return Outcome{Reason: ReasonShiftBelowThreshold}
	}

	// Step 3: resolve market.
	fx, ok := e.fixtures.Fixture(ev.FixtureID)
	if !ok {
		return Outcome{Reason: ReasonMarketNotFound}
	}
	mkt, found, err := e.resolver.Resolve(ctx, ev.FixtureID, fx.HomeTeam, fx.AwayTeam)
	if err != nil || !found || mkt.Status != domain.MarketActive {
		return Outcome{Reason: ReasonMarketNotFound}
	}

	pYesBefore := pBefore
	pYesAfter := pAfter
	if !mkt.YesIsHome {
		pYesBefore = one.Sub(pBefore)
		pYesAfter = one.Sub(pAfter)
	}
	pNoAfter := one.Sub(pYesAfter)

	// Step 4: quotes + divergence gate.
	yesPreferred, yesCross, err := e.quotes.GetWithDivergenceCheck(ctx, mkt.YesTokenID)
	if err != nil {
		return Outcome{Reason: ReasonQuoteUnavailable}
	}
	noPreferred, noCross, err := e.quotes.GetWithDivergenceCheck(ctx, mkt.NoTokenID)
	if err != nil {
		return Outcome{Reason: ReasonQuoteUnavailable}
	}

	// Latency-alpha pre-gate, priced-in half: reject once the market's
	// current mid has already absorbed more than LatencyMaxPricedInRatio
	// of the model's implied move, since little tradeable edge remains.
	if e.cfg.LatencyAlphaGateEnabled {
		if pricedIn := pricedInRatio(pYesBefore, pYesAfter, yesPreferred.Mid); pricedIn.GreaterThan(e.cfg.LatencyMaxPricedInRatio) {
			return Outcome{Reason: ReasonLatencyAlphaExhausted}
		}
	}

	maxDivergence := e.cfg.MaxEntryQuoteDivergence
	if e.feedHealth != nil {
		maxDivergence = e.feedHealth.AdaptiveMaxDivergence(maxDivergence)
	}
	if divergence(yesPreferred, yesCross).GreaterThan(maxDivergence) ||
		divergence(noPreferred, noCross).GreaterThan(maxDivergence) {
		return Outcome{Reason: ReasonQuoteDivergence}
	}

	// Step 5: edge.
	edgeYes := pYesAfter.Div(yesPreferred.BestAsk).Sub(one)
	edgeNo := pNoAfter.Div(noPreferred.BestAsk).Sub(one)

	side := domain.SideYes
	p := pYesAfter
	chosenQuote := yesPreferred
	edge := edgeYes
	if edgeNo.GreaterThan(edgeYes) || (edgeNo.Equal(edgeYes) && noPreferred.AskSize.GreaterThan(yesPreferred.AskSize)) {
		side = domain.SideNo
		p = pNoAfter
		chosenQuote = noPreferred
		edge = edgeNo
	}
	price := chosenQuote.BestAsk
	if price.LessThanOrEqual(zero) || price.GreaterThanOrEqual(one) {
		return Outcome{Reason: ReasonQuoteUnavailable}
	}

	// Step 6: net edge.
	costs := expectedCosts(chosenQuote)
	netEdge := edge.Sub(costs)
	minEdge := e.cfg.MinEdge
	if e.feedHealth != nil {
		minEdge = e.feedHealth.AdaptiveMinEdge(e.cfg.MinEdge, e.cfg.MinEdgeFeedPenalty)
	}
	if netEdge.LessThan(minEdge) {
		return Outcome{Reason: ReasonNetEdgeBelowMin}
	}

	// Step 7: sizing (fractional Kelly).
	available := e.balance.Available()
	stake := kellyStake(p, price, e.cfg.KellyFraction, available)
	minStake := decimal.NewFromInt(1)
	if stake.LessThan(minStake) {
		return Outcome{Reason: ReasonStakeTooSmall}
	}
	if stake.GreaterThan(available) {
		return Outcome{Reason: ReasonStakeExceedsBalance}
	}

	// Step 8: risk checks.
	proposal := risk.Proposal{
		MarketID: mkt.ID,
		EventID:  ev.FixtureID,
		Sport:    sport,
		League:   fx.League,
		Team:     betTeam(side, mkt.YesIsHome, fx.HomeTeam, fx.AwayTeam),
		Stake:    stake,
	}
	// Step 9: duplicate check is evaluated inside risk.Admit (it rejects on
	// an already-open position for this market id before checking budgets),
	// so steps 8 and 9 share one call; only the reported reason differs.
	if reason := e.riskBook.Admit(proposal); reason != risk.RejectNone {
		if reason == risk.RejectDuplicateMarket {
			return Outcome{Reason: ReasonDuplicatePosition}
		}
		return Outcome{Reason: ReasonRiskRejected}
	}

	// Step 10: order placement.
	tokenID := mkt.YesTokenID
	if side == domain.SideNo {
		tokenID = mkt.NoTokenID
	}
	size := stake.Div(price)
	result, err := e.venue.PlaceOrder(ctx, mkt.ID, tokenID, side, price, size)
	if err != nil {
		return Outcome{Reason: ReasonOrderPlacementFailed}
	}

	intent := &PositionIntent{
		MarketID:    mkt.ID,
		TokenID:     tokenID,
		Side:        side,
		Price:       result.FilledPrice,
		Size:        result.FilledSize,
		Stake:       result.FilledPrice.Mul(result.FilledSize),
		RawProb:     rawProbFor(side, mkt.YesIsHome, e.calibrator.RawOnly(sport, ev.NewState)),
		CalibProb:   p,
		QuoteSource: chosenQuote.Source,
		QuoteAgeMS:  chosenQuote.AgeMS(time.Now()),
		RiskProposal: proposal,
	}

	return Outcome{Reason: ReasonNone, Position: intent}
}

// pricedInRatio measures how much of the model's implied probability move
// (pBefore -> pAfter) the market's current mid price already reflects. A
// ratio near 0 means the market hasn't moved yet; near or above 1 means
// the edge is already gone. A near-zero model move can't be meaningfully
// priced in, so it reports zero rather than dividing by a tiny number.
func pricedInRatio(pBefore, pAfter, marketMid decimal.Decimal) decimal.Decimal {
	move := pAfter.Sub(pBefore)
	if move.Abs().LessThan(decimal.NewFromFloat(0.001)) {
		return zero
	}
	return marketMid.Sub(pBefore).Div(move)
}

func divergence(a, b domain.Quote) decimal.Decimal {
	return a.Mid.Sub(b.Mid).Abs()
}

// expectedCosts approximates half-spread + slippage + fees per spec.md
// §4.6 step 6. Fees are assumed zero (dry-run default venue); slippage is
// approximated by half the bid/ask spread scaled by an illiquidity factor
// when ask size is thin.
func expectedCosts(q domain.Quote) decimal.Decimal {
	spread := q.BestAsk.Sub(q.BestBid)
	if spread.IsNegative() {
		spread = zero
	}
	halfSpread := spread.Div(decimal.NewFromInt(2))

	slippage := zero
	thinBook := decimal.NewFromInt(50)
	if q.AskSize.GreaterThan(zero) && q.AskSize.LessThan(thinBook) {
		slippage = halfSpread.Mul(thinBook.Sub(q.AskSize)).Div(thinBook)
	}
	return halfSpread.Add(slippage)
}

// kellyStake computes fractional-Kelly stake sizing per spec.md §4.6 step 7:
// f* = max(0, (p*(1/price) - 1) / (1/price - 1)) * kellyFraction,
// stake = min(available_balance*f*, available_balance). A stake under $1 is
// returned as is, not raised to $1; Evaluate rejects it.
func kellyStake(p, price, kellyFraction, available decimal.Decimal) decimal.Decimal {
	if price.LessThanOrEqual(zero) || price.GreaterThanOrEqual(one) {
		return zero
	}
	inversePrice := one.Div(price)
	denom := inversePrice.Sub(one)
	if denom.LessThanOrEqual(zero) {
		return zero
	}
	fStar := p.Mul(inversePrice).Sub(one).Div(denom)
	if fStar.IsNegative() {
		fStar = zero
	}
	fStar = fStar.Mul(kellyFraction)

	stake := available.Mul(fStar)
	if stake.GreaterThan(available) {
		stake = available
	}
	return stake
}

func betTeam(side domain.PositionSide, yesIsHome bool, homeTeam, awayTeam string) string {
	yesTeam, noTeam := homeTeam, awayTeam
	if !yesIsHome {
		yesTeam, noTeam = awayTeam, homeTeam
	}
	if side == domain.SideYes {
		return yesTeam
	}
	return noTeam
}

func rawProbFor(side domain.PositionSide, yesIsHome bool, rawPHome decimal.Decimal) decimal.Decimal {
	rawYes := rawPHome
	if !yesIsHome {
		rawYes = one.Sub(rawPHome)
	}
	if side == domain.SideYes {
		return rawYes
	}
	return one.Sub(rawYes)
}
