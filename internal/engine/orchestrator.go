// Package engine wires spec.md §5's long-lived tasks into a single
// running process: score-feed polling, the Decision Engine consumer, the
// Position Manager tick loop, the Calibration Trainer's longer timer, and
// the dashboard's HTTP/WS surface. It owns no trading logic of its own —
// every decision, sizing, and exit rule lives in the package it wires —
// generalized from pkg/trader/orchestrator/orchestrator.go's Stage enum
// and ticker-driven loops (here, spec.md §5's fixed task list replaces
// the teacher's LLM-forecaster stage list).
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oddsignal/scorebot/internal/account"
	"github.com/oddsignal/scorebot/internal/calibration"
	"github.com/oddsignal/scorebot/internal/config"
	"github.com/oddsignal/scorebot/internal/dashboard"
	"github.com/oddsignal/scorebot/internal/decision"
	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/internal/feedhealth"
	"github.com/oddsignal/scorebot/internal/market"
	"github.com/oddsignal/scorebot/internal/metrics"
	"github.com/oddsignal/scorebot/internal/position"
	"github.com/oddsignal/scorebot/internal/probmodel"
	"github.com/oddsignal/scorebot/internal/quote"
	"github.com/oddsignal/scorebot/internal/risk"
	"github.com/oddsignal/scorebot/internal/scorefeed"
	"github.com/oddsignal/scorebot/internal/store"

	"github.com/oddsignal/scorebot/pkg/polymarket/clob"
	"github.com/oddsignal/scorebot/pkg/polymarket/gamma"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine is the fully-wired trading system. Construct it with New, then
// call Run.
type Engine struct {
	cfg *config.Config
	log *zap.Logger

	store       store.Store
	venue       market.Venue
	polyVenue   *market.PolymarketVenue
	resolver    *market.Resolver
	quotes      *quote.Source
	calibrator  *probmodel.Calibrator
	feedHealth  *feedhealth.Monitor
	riskBook    *risk.Book
	ledger      *account.Ledger
	aggregator  *scorefeed.Aggregator
	decisionEng *decision.Engine
	posManager  *position.Manager
	trainer     *calibration.Trainer
	metrics     *metrics.EngineMetrics
	hub         *dashboard.Hub
	dashSrv     *dashboard.Server

	subMu sync.Mutex
	subCancel map[string]context.CancelFunc
}

// New wires every component from cfg. providers supplies the Score
// Provider implementations to poll (spec.md §6); pass at least one.
func New(cfg *config.Config, log *zap.Logger, st store.Store, providers []scorefeed.Provider) (*Engine, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("engine: at least one score provider is required")
	}

	calibrator := probmodel.NewCalibrator()

	gammaClient := gamma.NewClient(gammaOpts(cfg)...)
	clobClient := clob.NewClient(clobOpts(cfg)...)

	var wsClient *clob.WSClient
	if cfg.PolymarketWSURL != "" {
		wsCfg := clob.DefaultWSConfig()
		wsCfg.URL = cfg.PolymarketWSURL
		wsClient = clob.NewWSClient(wsCfg)
	}

	polyVenue := market.NewPolymarketVenue(gammaClient, clobClient, wsClient, log)

	var venue market.Venue = polyVenue
	if cfg.DryRun {
		venue = market.NewDryRunVenue(polyVenue)
	}

	resolver := market.NewResolver(venue, cfg.CacheTTL, log)
	quotes := quote.New(venue, cfg.WSPriceMaxAge, log)

	feedHealth := feedhealth.New(cfg.FeedHealthAlpha, cfg.FeedHealthPauseThreshold, cfg.FeedHealthCooldown, cfg.FeedHealthSustainWindow)

	correlation := risk.NewCorrelation(cfg.CorrelationSameTeam, cfg.CorrelationSameLeague, cfg.CorrelationSameSport)
	budget := domain.RiskBudget{
		PerEventCap: cfg.PerEventCap, PerSportCap: cfg.PerSportCap, PerTeamCap: cfg.PerTeamCap,
		PerDayDrawdownCap: cfg.PerDayDrawdownCap, PerDayTradeCap: cfg.PerDayTradeCap,
		MaxPositionsPerEvent: cfg.MaxPositionsPerEvent,
	}
	riskBook := risk.New(budget, correlation, nil)

	ledger := account.New(cfg.InitialBalance)

	aggregator := scorefeed.New(providers, cfg.Sports, cfg.PollInterval, log,
		scorefeed.WithDedupWindow(cfg.DedupWindow),
		scorefeed.WithStaleTTL(cfg.StaleFixtureTTL),
	)

	decisionEng := decision.New(cfg, calibrator, aggregator, resolver, quotes, venue, riskBook, feedHealth, ledger, log)

	em := metrics.NewEngineMetrics()

	e := &Engine{
		cfg: cfg, log: log, store: st,
		venue: venue, polyVenue: polyVenue, resolver: resolver, quotes: quotes,
		calibrator: calibrator, feedHealth: feedHealth, riskBook: riskBook, ledger: ledger,
		aggregator: aggregator, decisionEng: decisionEng, metrics: em,
		subCancel: make(map[string]context.CancelFunc),
	}

	e.posManager = position.New(quotes, venue, feedHealth, cfg.PollInterval, cfg.MaxPositionAge, cfg.FlattenAfterBadFeed, cfg.FeedHealthFlattenThreshold, log, e.onPositionClose)

	e.trainer = calibration.New(
		trainerPositionSource{st}, trainerDiagnosticsSink{st}, calibrator,
		cfg.CalibrationInterval, cfg.ScoreEventRetention, cfg.CalibrationMinSamples,
		cfg.CalibrationMinImprovement.InexactFloat64(), log,
	)

	e.hub = dashboard.NewHub(log)
	e.dashSrv = dashboard.New(cfg.HTTPAddr, e.hub,
		e.posManager, dashboardBalance{ledger}, feedHealth, dashboardRisk{riskBook},
		dashboardCalibration{st}, log,
	)

	return e, nil
}

func gammaOpts(cfg *config.Config) []gamma.ClientOption {
	var opts []gamma.ClientOption
	if cfg.PolymarketGammaURL != "" {
		opts = append(opts, gamma.WithBaseURL(cfg.PolymarketGammaURL))
	}
	return opts
}

func clobOpts(cfg *config.Config) []clob.ClientOption {
	var opts []clob.ClientOption
	if cfg.PolymarketCLOBURL != "" {
		opts = append(opts, clob.WithCLOBBaseURL(cfg.PolymarketCLOBURL))
	}
	return opts
}

// Run starts every long-lived task named in spec.md §5 and blocks until
// ctx is cancelled. Open positions are not auto-flattened on shutdown
// (spec.md §5's cancellation semantics); they resume under management on
// the next start once persisted state is reloaded.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.restoreOpenPositions(ctx); err != nil {
		return fmt.Errorf("restore open positions: %w", err)
	}

	if err := e.polyVenue.Connect(ctx); err != nil {
		e.log.Warn("polymarket websocket connect failed, quotes will fall back to REST", zap.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(5)

	go func() { defer wg.Done(); e.aggregator.Run(ctx) }()
	go func() { defer wg.Done(); e.consumeScoreEvents(ctx) }()
	go func() { defer wg.Done(); e.posManager.Run(ctx) }()
	go func() { defer wg.Done(); e.trainer.Run(ctx) }()
	go func() { defer wg.Done(); e.hub.Run(ctx.Done()) }()

	wg.Wait()
	return nil
}

// DashboardServer exposes the wired dashboard server for cmd/scoreboted
// to run alongside Run (kept separate since Run's WaitGroup governs
// trading-loop shutdown, not the HTTP listener).
func (e *Engine) DashboardServer() *dashboard.Server { return e.dashSrv }

// Metrics exposes the wired Prometheus collector for the /metrics handler.
func (e *Engine) Metrics() *metrics.EngineMetrics { return e.metrics }

// consumeScoreEvents is the single Decision Engine consumer task draining
// the bounded queue serially, per spec.md §5's ordering requirement.
func (e *Engine) consumeScoreEvents(ctx context.Context) {
	events := e.aggregator.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.handleScoreEvent(ctx, ev)
		}
	}
}

func (e *Engine) handleScoreEvent(ctx context.Context, ev *domain.ScoreEvent) {
	e.metrics.RecordScoreEvent(string(ev.Sport), string(ev.Kind))
	if e.store != nil {
		// Consensus keeps changing atomically after publish, so copy it
		// explicitly rather than dereferencing ev wholesale.
		persisted := *ev
		persisted.Consensus = atomic.LoadInt32(&ev.Consensus)
		if err := e.store.InsertScoreEvent(ctx, persisted); err != nil {
			e.log.Warn("persist score event failed", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}

	outcome := e.decisionEng.Evaluate(ctx, ev)
	if outcome.Reason != "" {
		e.metrics.RecordScoreEventDropped(string(ev.Sport), string(outcome.Reason))
		e.hub.BroadcastDecision(map[string]interface{}{"event_id": ev.ID, "reason": string(outcome.Reason)})
		return
	}
	if outcome.Position == nil {
		return
	}

	e.openPosition(ctx, ev, outcome.Position)
}

func (e *Engine) openPosition(ctx context.Context, ev *domain.ScoreEvent, intent *decision.PositionIntent) {
	stopFrac := e.cfg.StopLossFraction
	takeFrac := e.cfg.TakeProfitFraction
	maxTake := decimal.NewFromFloat(0.99)

	stop := intent.Price.Mul(decimal.NewFromInt(1).Sub(stopFrac))
	take := intent.Price.Mul(decimal.NewFromInt(1).Add(takeFrac))
	if take.GreaterThan(maxTake) {
		take = maxTake
	}

	pos := &domain.Position{
		ID: newPositionID(), MarketID: intent.MarketID, TokenID: intent.TokenID,
		Side: intent.Side, Stake: intent.Stake, EntryPrice: intent.Price, EntrySize: intent.Size,
		StopPrice: stop, TakePrice: take, OpenedAt: time.Now(),
		EntryQuoteSource: intent.QuoteSource, EntryQuoteAgeMS: intent.QuoteAgeMS,
		EntryRawProb: intent.RawProb, EntryCalibProb: intent.CalibProb,
		State: domain.PositionOpen,
		Sport: intent.RiskProposal.Sport, League: intent.RiskProposal.League,
		EventID: intent.RiskProposal.EventID, BetTeam: intent.RiskProposal.Team,
	}

	// RecordOpen and the eventual RecordClose (onPositionClose) must key on
	// the same position ID or the risk book's exposure entry never clears.
	e.riskBook.RecordOpen(pos.ID, intent.RiskProposal)

	e.ledger.Reserve(pos.Stake)
	e.posManager.Open(pos)
	e.subscribeQuotes(ctx, pos.TokenID)

	if e.store != nil {
		if err := e.store.InsertPosition(ctx, *pos); err != nil {
			e.log.Error("persist opened position failed", zap.String("position_id", pos.ID), zap.Error(err))
		}
	}

	sizeUSD, _ := pos.Stake.Float64()
	e.metrics.RecordOrder(string(pos.Side), "filled", sizeUSD)
	e.metrics.RecordDecision(string(ev.Sport), "opened")
	e.hub.BroadcastPosition(pos)
}

// subscribeQuotes adds a WS subscription for tokenID's live quote stream,
// per spec.md §5's "supervisor that adds/removes subscriptions as
// positions open/close". Failure to subscribe is tolerated; quote.Source
// falls back to REST.
func (e *Engine) subscribeQuotes(ctx context.Context, tokenID string) {
	e.subMu.Lock()
	if _, ok := e.subCancel[tokenID]; ok {
		e.subMu.Unlock()
		return
	}
	subCtx, cancel := context.WithCancel(ctx)
	e.subCancel[tokenID] = cancel
	e.subMu.Unlock()

	ch, err := e.venue.SubscribeQuotes(subCtx, tokenID)
	if err != nil {
		e.log.Debug("quote subscription unavailable, falling back to REST", zap.String("token_id", tokenID), zap.Error(err))
		cancel()
		e.subMu.Lock()
		delete(e.subCancel, tokenID)
		e.subMu.Unlock()
		return
	}

	go func() {
		for q := range ch {
			e.quotes.UpdateWS(tokenID, q)
		}
	}()
}

func (e *Engine) unsubscribeQuotes(tokenID string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if cancel, ok := e.subCancel[tokenID]; ok {
		cancel()
		delete(e.subCancel, tokenID)
	}
}

// onPositionClose is the Position Manager's CloseNotifier: it settles the
// ledger, releases risk exposure, persists the terminal state, and drops
// the token's quote subscription.
func (e *Engine) onPositionClose(pos domain.Position) {
	e.ledger.Settle(pos.Stake, pos.RealizedNetPnL)
	e.riskBook.RecordClose(pos.ID, pos.RealizedNetPnL)
	e.unsubscribeQuotes(pos.TokenID)

	if e.store != nil {
		ctx := context.Background()
		if err := e.store.UpdatePosition(ctx, pos); err != nil {
			e.log.Error("persist closed position failed", zap.String("position_id", pos.ID), zap.Error(err))
		}
		if err := e.store.RecordBalance(ctx, e.ledger.Balance(), pos.ClosedAt); err != nil {
			e.log.Warn("record balance failed", zap.Error(err))
		}
	}

	pnl, _ := pos.RealizedNetPnL.Float64()
	e.metrics.RecordPositionClose(string(pos.Sport), string(pos.ExitReason), pnl)
	e.hub.BroadcastPosition(pos)
	e.hub.BroadcastBalance(map[string]interface{}{"balance": e.ledger.Balance()})
}

// restoreOpenPositions reloads positions left open from a prior run into
// the Position Manager, per spec.md §5: "open positions are not
// auto-flattened; they are left to be managed on next start."
func (e *Engine) restoreOpenPositions(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	open, err := e.store.OpenPositions(ctx)
	if err != nil {
		return err
	}
	for i := range open {
		p := open[i]
		e.posManager.Open(&p)
		e.subscribeQuotes(ctx, p.TokenID)
	}
	if len(open) > 0 {
		e.log.Info("restored open positions from prior run", zap.Int("count", len(open)))
	}
	return nil
}

func newPositionID() string {
	return fmt.Sprintf("pos_%d", time.Now().UnixNano())
}

// --- small adapters between store.Store's broader interface and the
// narrower ones internal/calibration and internal/dashboard depend on,
// per spec.md §5's "encapsulate in explicit context" guidance: no
// component imports store directly except this wiring layer.

type trainerPositionSource struct{ st store.Store }

func (t trainerPositionSource) ClosedPositions(ctx context.Context, sport domain.Sport, since time.Time) ([]domain.Position, error) {
	return t.st.ClosedPositions(ctx, sport, since)
}

type trainerDiagnosticsSink struct{ st store.Store }

func (t trainerDiagnosticsSink) RecordCalibrationFit(ctx context.Context, sport domain.Sport, result calibration.FitResult, promoted bool, sampleCount int, at time.Time) error {
	return t.st.RecordCalibrationFit(ctx, sport, result, promoted, sampleCount, at)
}

type dashboardBalance struct{ ledger *account.Ledger }

func (d dashboardBalance) Available() decimal.Decimal    { return d.ledger.Available() }
func (d dashboardBalance) DrawdownPct() decimal.Decimal  { return d.ledger.DrawdownPct() }

type dashboardRisk struct{ book *risk.Book }

func (d dashboardRisk) DayPnL() decimal.Decimal { return d.book.DayPnL() }
func (d dashboardRisk) CircuitTripped() bool    { return d.book.CircuitTripped() }

type dashboardCalibration struct{ st store.Store }

func (d dashboardCalibration) LatestCalibrationFits(ctx context.Context, sport domain.Sport, limit int) ([]dashboard.CalibrationRow, error) {
	diags, err := d.st.LatestCalibrationFits(ctx, sport, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]dashboard.CalibrationRow, 0, len(diags))
	for _, dg := range diags {
		rows = append(rows, dashboard.CalibrationRow{
			Sport: dg.Sport, A: dg.A, B: dg.B,
			LogLossBefore: dg.LogLossBefore, LogLossAfter: dg.LogLossAfter,
			BrierBefore: dg.BrierBefore, BrierAfter: dg.BrierAfter,
			Promoted: dg.Promoted, SampleCount: dg.SampleCount, FittedAt: dg.FittedAt,
		})
	}
	return rows, nil
}
