package decision

import (
	"context"
	"testing"
	"time"

	"github.com/oddsignal/scorebot/internal/config"
	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/internal/feedhealth"
	"github.com/oddsignal/scorebot/internal/market"
	"github.com/oddsignal/scorebot/internal/probmodel"
	"github.com/oddsignal/scorebot/internal/quote"
	"github.com/oddsignal/scorebot/internal/risk"
	"github.com/shopspring/decimal"
)

type fakeFixtures struct {
	fx domain.Fixture
}

func (f *fakeFixtures) Fixture(id string) (domain.Fixture, bool) { return f.fx, true }

type fakeBalance struct{ avail decimal.Decimal }

func (b *fakeBalance) Available() decimal.Decimal { return b.avail }

type fakeVenue struct {
	markets []domain.Market
}

func (f *fakeVenue) SearchMarkets(ctx context.Context, query string) ([]domain.Market, error) {
	return f.markets, nil
}
func (f *fakeVenue) GetOrderbook(ctx context.Context, tokenID string) (market.OrderbookSnapshot, error) {
	return market.OrderbookSnapshot{
		BestBid: decimal.NewFromFloat(0.49), BestAsk: decimal.NewFromFloat(0.50),
		SizeBid: decimal.NewFromInt(500), SizeAsk: decimal.NewFromInt(500),
	}, nil
}
func (f *fakeVenue) SubscribeQuotes(ctx context.Context, tokenID string) (<-chan domain.Quote, error) {
	return nil, nil
}
func (f *fakeVenue) PlaceOrder(ctx context.Context, marketID, tokenID string, side domain.PositionSide, price, size decimal.Decimal) (market.OrderResult, error) {
	return market.OrderResult{FilledPrice: price, FilledSize: size}, nil
}
func (f *fakeVenue) GetMarketStatus(ctx context.Context, marketID string) (domain.MarketStatus, domain.Outcome, error) {
	return domain.MarketActive, "", nil
}

func baseConfig() *config.Config {
	return &config.Config{
		MinEdge:                 decimal.NewFromFloat(0.01),
		MinEdgeFeedPenalty:      decimal.NewFromFloat(0.10),
		KellyFraction:           decimal.NewFromFloat(0.25),
		MaxEntryQuoteDivergence: decimal.NewFromFloat(0.5),
		MaxEventAge:             time.Minute,
		WeakConsensusFactor:     decimal.NewFromFloat(1.5),
		ShiftThreshold: map[string]decimal.Decimal{
			"nba": decimal.NewFromFloat(0.015),
		},
	}
}

func setupEngine(t *testing.T, mkt domain.Market) *Engine {
	eng, _ := setupEngineCfg(t, mkt, baseConfig())
	return eng
}

func setupEngineCfg(t *testing.T, mkt domain.Market, cfg *config.Config) (*Engine, *quote.Source) {
	calibrator := probmodel.NewCalibrator()
	fixtures := &fakeFixtures{fx: domain.Fixture{ID: "fx1", Sport: domain.SportNBA, HomeTeam: "Lakers", AwayTeam: "Celtics"}}
	venue := &fakeVenue{markets: []domain.Market{mkt}}
	resolver := market.NewResolver(venue, time.Minute, nil)
	rest := venue
	qs := quote.New(rest, 2500*time.Millisecond, nil)
	budget := domain.RiskBudget{PerEventCap: decimal.NewFromInt(1000), PerSportCap: decimal.NewFromInt(1000), PerTeamCap: decimal.NewFromInt(1000), PerDayTradeCap: 100, MaxPositionsPerEvent: 5}
	book := risk.New(budget, risk.NewCorrelation(decimal.NewFromFloat(0.7), decimal.NewFromFloat(0.35), decimal.NewFromFloat(0.2)), nil)
	fh := feedhealth.New(decimal.NewFromFloat(0.2), decimal.NewFromFloat(0.35), 5*time.Minute, time.Minute)
	bal := &fakeBalance{avail: decimal.NewFromInt(500)}

	return New(cfg, calibrator, fixtures, resolver, qs, venue, book, fh, bal, nil), qs
}

// closeGameState is a near-end-of-regulation NBA state pair used to force a
// large probability shift: the model's late-game coefficient is steepest
// when little time remains, so a small point swing produces a big shift.
func closeGameState() (prev, next domain.GameState) {
	prev = domain.GameState{HomePoints: 90, AwayPoints: 90, Quarter: 4, SecondsRemaining: 30}
	next = domain.GameState{HomePoints: 93, AwayPoints: 90, Quarter: 4, SecondsRemaining: 25}
	return prev, next
}

func TestEvaluateDropsScoreCorrection(t *testing.T) {
	eng := setupEngine(t, domain.Market{ID: "m1", FixtureID: "fx1", YesTokenID: "y1", NoTokenID: "n1", Status: domain.MarketActive, YesIsHome: true})
	ev := &domain.ScoreEvent{Kind: domain.EventScoreCorrection, FixtureID: "fx1", Sport: domain.SportNBA, EventTimestamp: time.Now(), Consensus: 1}

	out := eng.Evaluate(context.Background(), ev)
	if out.Reason != ReasonScoreCorrection {
		t.Fatalf("expected score_correction drop, got %q", out.Reason)
	}
}

func TestEvaluateDropsStaleEvent(t *testing.T) {
	eng := setupEngine(t, domain.Market{ID: "m1", FixtureID: "fx1", YesTokenID: "y1", NoTokenID: "n1", Status: domain.MarketActive, YesIsHome: true})
	ev := &domain.ScoreEvent{Kind: domain.EventBasketHome, FixtureID: "fx1", Sport: domain.SportNBA, EventTimestamp: time.Now().Add(-5 * time.Minute), Consensus: 2}

	out := eng.Evaluate(context.Background(), ev)
	if out.Reason != ReasonEventTooOld {
		t.Fatalf("expected event_too_old drop, got %q", out.Reason)
	}
}

func TestEvaluateDropsBelowShiftThreshold(t *testing.T) {
	eng := setupEngine(t, domain.Market{ID: "m1", FixtureID: "fx1", YesTokenID: "y1", NoTokenID: "n1", Status: domain.MarketActive, YesIsHome: true})
	state := domain.GameState{HomePoints: 50, AwayPoints: 50, Quarter: 1, SecondsRemaining: 600}
	ev := &domain.ScoreEvent{
		Kind: domain.EventBasketHome, FixtureID: "fx1", Sport: domain.SportNBA,
		PrevState: state, NewState: state, // identical state -> zero shift
		EventTimestamp: time.Now(), Consensus: 2,
	}

	out := eng.Evaluate(context.Background(), ev)
	if out.Reason != ReasonShiftBelowThreshold {
		t.Fatalf("expected shift_below_threshold drop, got %q", out.Reason)
	}
}

func TestEvaluateDropsMarketNotFound(t *testing.T) {
	eng := setupEngine(t, domain.Market{ID: "unrelated", Status: domain.MarketActive})
	prev, next := closeGameState()
	ev := &domain.ScoreEvent{
		Kind: domain.EventBasketHome, FixtureID: "fx1", Sport: domain.SportNBA,
		PrevState: prev, NewState: next, EventTimestamp: time.Now(), Consensus: 2,
	}

	out := eng.Evaluate(context.Background(), ev)
	if out.Reason != ReasonMarketNotFound {
		t.Fatalf("expected market_not_found drop, got %q", out.Reason)
	}
}

func TestEvaluateOpensPositionOnStrongEdge(t *testing.T) {
	cfg := baseConfig()
	cfg.StopLossFraction = decimal.NewFromFloat(0.50)
	cfg.TakeProfitFraction = decimal.NewFromFloat(0.30)
	mkt := domain.Market{ID: "m1", FixtureID: "fx1", YesTokenID: "y1", NoTokenID: "n1", Status: domain.MarketActive, YesIsHome: true}
	eng, _ := setupEngineCfg(t, mkt, cfg)

	prev, next := closeGameState()
	ev := &domain.ScoreEvent{
		Kind: domain.EventBasketHome, FixtureID: "fx1", Sport: domain.SportNBA,
		PrevState: prev, NewState: next, EventTimestamp: time.Now(), Consensus: 2,
	}

	out := eng.Evaluate(context.Background(), ev)
	if out.Reason != ReasonNone || out.Position == nil {
		t.Fatalf("expected a position to open, got reason %q, position %+v", out.Reason, out.Position)
	}
	pos := out.Position
	if pos.Side != domain.SideYes {
		t.Fatalf("expected the home-favoring side (yes, since yes_is_home=true), got %s", pos.Side)
	}
	if !pos.Stake.Equal(pos.Price.Mul(pos.Size)) {
		t.Fatalf("expected stake = entry_size * entry_price, got stake=%s price=%s size=%s", pos.Stake, pos.Price, pos.Size)
	}

	stop := pos.Price.Mul(one.Sub(cfg.StopLossFraction))
	take := pos.Price.Mul(one.Add(cfg.TakeProfitFraction))
	maxTake := decimal.NewFromFloat(0.99)
	if take.GreaterThan(maxTake) {
		take = maxTake
	}
	if !stop.LessThan(pos.Price) || !pos.Price.LessThan(take) || take.GreaterThan(maxTake) {
		t.Fatalf("expected stop < entry < take <= 0.99, got stop=%s entry=%s take=%s", stop, pos.Price, take)
	}
}

func TestEvaluateDropsOnWSRESTDivergence(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxEntryQuoteDivergence = decimal.NewFromFloat(0.04)
	mkt := domain.Market{ID: "m1", FixtureID: "fx1", YesTokenID: "y1", NoTokenID: "n1", Status: domain.MarketActive, YesIsHome: true}
	eng, qs := setupEngineCfg(t, mkt, cfg)

	// fakeVenue's REST mid is fixed at 0.495; a WS mid of 0.62 diverges by
	// 0.125, comfortably past the 0.04 threshold, so the trade is rejected
	// before sizing.
	qs.UpdateWS("y1", domain.Quote{
		TokenID: "y1", BestBid: decimal.NewFromFloat(0.60), BestAsk: decimal.NewFromFloat(0.64),
		Mid: decimal.NewFromFloat(0.62), BidSize: decimal.NewFromInt(500), AskSize: decimal.NewFromInt(500),
		ObservedAt: time.Now(),
	})

	prev, next := closeGameState()
	ev := &domain.ScoreEvent{
		Kind: domain.EventBasketHome, FixtureID: "fx1", Sport: domain.SportNBA,
		PrevState: prev, NewState: next, EventTimestamp: time.Now(), Consensus: 2,
	}

	out := eng.Evaluate(context.Background(), ev)
	if out.Reason != ReasonQuoteDivergence {
		t.Fatalf("expected quote_divergence drop, got %q", out.Reason)
	}
}

func TestEvaluateSwapsSideWhenYesIsAway(t *testing.T) {
	cfg := baseConfig()
	mkt := domain.Market{ID: "m1", FixtureID: "fx1", YesTokenID: "y1", NoTokenID: "n1", Status: domain.MarketActive, YesIsHome: false}
	eng, _ := setupEngineCfg(t, mkt, cfg)

	// The home side gains a strong lead, but yes_is_home is false here, so
	// the model's edge should land on the No side (which tracks home).
	prev, next := closeGameState()
	ev := &domain.ScoreEvent{
		Kind: domain.EventBasketHome, FixtureID: "fx1", Sport: domain.SportNBA,
		PrevState: prev, NewState: next, EventTimestamp: time.Now(), Consensus: 2,
	}

	out := eng.Evaluate(context.Background(), ev)
	if out.Reason != ReasonNone || out.Position == nil {
		t.Fatalf("expected a position to open, got reason %q, position %+v", out.Reason, out.Position)
	}
	if out.Position.Side != domain.SideNo {
		t.Fatalf("expected side=no when yes_is_home=false and home is favored, got %s", out.Position.Side)
	}
	if out.Position.TokenID != mkt.NoTokenID {
		t.Fatalf("expected the no token to be traded, got %s", out.Position.TokenID)
	}
}
