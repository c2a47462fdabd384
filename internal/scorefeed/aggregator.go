package scorefeed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oddsignal/scorebot/internal/domain"
	"go.uber.org/zap"
)

const defaultQueueCapacity = 1024

// Stats tracks the aggregator's operational counters, surfaced by the
// dashboard and fed into feed-health telemetry.
type Stats struct {
	mu               sync.Mutex
	EventsEmitted    int64
	DuplicatesFolded int64
	QueueOverflows   int64
	FixturesPruned   int64
	ProviderErrors   map[string]int64
}

func newStats() *Stats {
	return &Stats{ProviderErrors: make(map[string]int64)}
}

func (s *Stats) incProviderError(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProviderErrors[name]++
}

// dedupKey identifies a (fixture, kind, new-state) triple for the
// dedup window, per spec.md §3's ScoreEvent persistence invariant.
type dedupKey struct {
	fixtureID string
	kind      domain.ScoreEventKind
	homeGoals, awayGoals     int
	homePoints, awayPoints   int
	homeRuns, awayRuns       int
	quarterOrInning          int
}

func keyFor(fixtureID string, kind domain.ScoreEventKind, s domain.GameState) dedupKey {
	return dedupKey{
		fixtureID:    fixtureID,
		kind:         kind,
		homeGoals:    s.HomeGoals,
		awayGoals:    s.AwayGoals,
		homePoints:   s.HomePoints,
		awayPoints:   s.AwayPoints,
		homeRuns:     s.HomeRuns,
		awayRuns:     s.AwayRuns,
		quarterOrInning: s.Quarter + s.Inning,
	}
}

type dedupEntry struct {
	event     *domain.ScoreEvent
	expiresAt time.Time
}

// Aggregator implements the Score Feed Aggregator. It owns the fixture
// snapshot map exclusively (spec.md §5: "Fixture snapshot map: owned by
// Score Feed; no external mutation") and publishes into a bounded,
// oldest-drop channel that the Decision Engine drains.
type Aggregator struct {
	providers    []Provider
	pollInterval time.Duration
	perCallTimeout time.Duration
	dedupWindow  time.Duration
	staleTTL     time.Duration
	sports       []domain.Sport

	log *zap.Logger

	mu       sync.Mutex
	fixtures map[string]*domain.Fixture
	dedup    map[dedupKey]*dedupEntry

	out   chan *domain.ScoreEvent
	stats *Stats
}

// Option configures an Aggregator, following the teacher's functional-
// options client-constructor idiom.
type Option func(*Aggregator)

func WithDedupWindow(d time.Duration) Option { return func(a *Aggregator) { a.dedupWindow = d } }
func WithStaleTTL(d time.Duration) Option    { return func(a *Aggregator) { a.staleTTL = d } }
func WithPerCallTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.perCallTimeout = d }
}
func WithQueueCapacity(n int) Option {
	return func(a *Aggregator) { a.out = make(chan *domain.ScoreEvent, n) }
}

// New creates an Aggregator polling the given providers for the given
// sports every pollInterval.
func New(providers []Provider, sports []domain.Sport, pollInterval time.Duration, log *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers:      providers,
		pollInterval:   pollInterval,
		perCallTimeout: 3 * time.Second,
		dedupWindow:    8 * time.Second,
		staleTTL:       4 * time.Hour,
		sports:         sports,
		log:            log,
		fixtures:       make(map[string]*domain.Fixture),
		dedup:          make(map[dedupKey]*dedupEntry),
		out:            make(chan *domain.ScoreEvent, defaultQueueCapacity),
		stats:          newStats(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Events returns the consumer-facing channel of emitted ScoreEvents.
func (a *Aggregator) Events() <-chan *domain.ScoreEvent { return a.out }

// Stats returns a snapshot of operational counters.
func (a *Aggregator) Stats() Stats {
	a.stats.mu.Lock()
	defer a.stats.mu.Unlock()
	cp := Stats{
		EventsEmitted:    a.stats.EventsEmitted,
		DuplicatesFolded: a.stats.DuplicatesFolded,
		QueueOverflows:   a.stats.QueueOverflows,
		FixturesPruned:   a.stats.FixturesPruned,
		ProviderErrors:   make(map[string]int64, len(a.stats.ProviderErrors)),
	}
	for k, v := range a.stats.ProviderErrors {
		cp.ProviderErrors[k] = v
	}
	return cp
}

// Run starts the poll loop, one merge pass per tick, and the pruning loop.
// It blocks until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		a.pollLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		a.pruneLoop(ctx)
	}()

	wg.Wait()
}

func (a *Aggregator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pollOnce(ctx)
		}
	}
}

// pollOnce queries every provider concurrently (one goroutine per
// provider, per spec.md §5's "N provider poll tasks") and merges all
// results through a single goroutine so per-fixture event ordering is
// well-defined (spec.md §5 ordering requirement).
func (a *Aggregator) pollOnce(ctx context.Context) {
	type result struct {
		provider string
		snaps    []FixtureSnapshot
		err      error
	}

	results := make(chan result, len(a.providers))
	var wg sync.WaitGroup
	for _, p := range a.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, a.perCallTimeout)
			defer cancel()
			snaps, err := p.ListLive(callCtx, a.sports)
			results <- result{provider: p.Name(), snaps: snaps, err: err}
		}(p)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.err != nil {
			a.stats.incProviderError(r.provider)
			if a.log != nil {
				a.log.Warn("provider poll failed", zap.String("provider", r.provider), zap.Error(r.err))
			}
			continue // tolerated if at least one other provider succeeds
		}
		for _, snap := range r.snaps {
			a.merge(r.provider, snap)
		}
	}
}

// merge diffs one provider's snapshot against the stored fixture state,
// classifies and emits events for positive deltas, and de-duplicates
// against the rolling window.
func (a *Aggregator) merge(provider string, snap FixtureSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()

	fx, exists := a.fixtures[snap.FixtureID]
	if !exists {
		fx = &domain.Fixture{
			ID:            snap.FixtureID,
			Sport:         snap.Sport,
			League:        snap.League,
			HomeTeam:      snap.HomeTeam,
			AwayTeam:      snap.AwayTeam,
			State:         snap.State,
			LastObserved:  now,
			ProviderVotes: map[string]domain.GameState{provider: snap.State},
		}
		a.fixtures[snap.FixtureID] = fx
		return // first observation establishes the baseline, no deltas yet
	}

	prevVote, hadVote := fx.ProviderVotes[provider]
	fx.ProviderVotes[provider] = snap.State
	fx.LastObserved = now
	if !hadVote {
		prevVote = fx.State
	}

	deltas := classify(snap.Sport, prevVote, snap.State)
	for _, d := range deltas {
		a.emitOrFold(fx, d, prevVote, snap.State, provider, snap.ProviderTS, now)
	}

	// Replace the canonical fixture state with this observation
	// unconditionally, even if it is behind the stored state (last-writer-
	// wins at the fixture level; the per-provider vote map preserves
	// per-provider history for dedup/consensus purposes).
	fx.State = snap.State
}

func (a *Aggregator) emitOrFold(fx *domain.Fixture, d delta, prev, new domain.GameState, provider string, providerTS, now time.Time) {
	key := keyFor(fx.ID, d.kind, new)

	if entry, ok := a.dedup[key]; ok && now.Before(entry.expiresAt) {
		// entry.event may already be published to a.out and read
		// concurrently by a consumer, so this must be an atomic increment
		// rather than a plain field mutation.
		atomic.AddInt32(&entry.event.Consensus, 1)
		a.stats.mu.Lock()
		a.stats.DuplicatesFolded++
		a.stats.mu.Unlock()
		return
	}

	ev := &domain.ScoreEvent{
		ID:             uuid.New().String(),
		FixtureID:      fx.ID,
		Sport:          fx.Sport,
		Kind:           d.kind,
		PointValue:     d.pointValue,
		PrevState:      prev,
		NewState:       new,
		EventTimestamp: now, // local receive time, per DESIGN.md open question 5
		ProviderTS:     providerTS,
		Provider:       provider,
		Consensus:      1,
	}
	a.dedup[key] = &dedupEntry{event: ev, expiresAt: now.Add(a.dedupWindow)}

	a.publish(ev)
}

func (a *Aggregator) publish(ev *domain.ScoreEvent) {
	select {
	case a.out <- ev:
		a.stats.mu.Lock()
		a.stats.EventsEmitted++
		a.stats.mu.Unlock()
	default:
		// Bounded queue overflow: drop the oldest unread event and retry,
		// per spec.md §4.2/§5's oldest-drop backpressure policy.
		select {
		case <-a.out:
			a.stats.mu.Lock()
			a.stats.QueueOverflows++
			a.stats.mu.Unlock()
		default:
		}
		select {
		case a.out <- ev:
			a.stats.mu.Lock()
			a.stats.EventsEmitted++
			a.stats.mu.Unlock()
		default:
			// Extremely unlikely race with another producer refilling the
			// slot; drop this event rather than block the merge goroutine.
			a.stats.mu.Lock()
			a.stats.QueueOverflows++
			a.stats.mu.Unlock()
		}
	}
}

func (a *Aggregator) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(a.staleTTL / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pruneStale()
		}
	}
}

func (a *Aggregator) pruneStale() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	for id, fx := range a.fixtures {
		if now.Sub(fx.LastObserved) > a.staleTTL {
			delete(a.fixtures, id)
			a.stats.mu.Lock()
			a.stats.FixturesPruned++
			a.stats.mu.Unlock()
		}
	}
	for k, entry := range a.dedup {
		if now.After(entry.expiresAt) {
			delete(a.dedup, k)
		}
	}
}

// Fixture returns a copy of the currently-tracked fixture, if any.
func (a *Aggregator) Fixture(id string) (domain.Fixture, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fx, ok := a.fixtures[id]
	if !ok {
		return domain.Fixture{}, false
	}
	cp := *fx
	return cp, true
}
