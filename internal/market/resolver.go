package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"go.uber.org/zap"
)

type resolvedEntry struct {
	market    domain.Market
	found     bool
	expiresAt time.Time
}

// Resolver implements spec.md §4.3: given a fixture, finds the active
// binary winner market for it, inferring which side is "yes" by matching
// team names against the market's description. Results are cached with a
// TTL so repeated Decision Engine ticks for the same fixture do not
// re-query the venue every cycle.
type Resolver struct {
	venue Venue
	ttl   time.Duration
	log   *zap.Logger

	mu    sync.Mutex
	cache map[string]*resolvedEntry // fixtureID -> cached resolution
}

// NewResolver returns a Resolver backed by venue, caching results for ttl.
func NewResolver(venue Venue, ttl time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{
		venue: venue,
		ttl:   ttl,
		log:   log,
		cache: make(map[string]*resolvedEntry),
	}
}

// Resolve returns the binary winner market for the given fixture, or
// ok=false if none could be found. A market tagged with the fixture id is
// returned even when already resolved; callers check its Status.
func (r *Resolver) Resolve(ctx context.Context, fixtureID, homeTeam, awayTeam string) (domain.Market, bool, error) {
	r.mu.Lock()
	if entry, ok := r.cache[fixtureID]; ok && time.Now().Before(entry.expiresAt) {
		m, found := entry.market, entry.found
		r.mu.Unlock()
		return m, found, nil
	}
	r.mu.Unlock()

	query := fmt.Sprintf("%s vs %s", homeTeam, awayTeam)
	candidates, err := r.venue.SearchMarkets(ctx, query)
	if err != nil {
		return domain.Market{}, false, fmt.Errorf("resolve market for fixture %s: %w", fixtureID, err)
	}

	market, found := r.pickWinnerMarket(candidates, fixtureID, homeTeam, awayTeam)
	r.mu.Lock()
	r.cache[fixtureID] = &resolvedEntry{market: market, found: found, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	if !found && r.log != nil {
		r.log.Debug("no winner market found", zap.String("fixture_id", fixtureID), zap.String("query", query))
	}
	return market, found, nil
}

// pickWinnerMarket filters candidates down to the fixture's binary winner
// market and infers YesIsHome by matching the home team's name. A market
// already tagged with a FixtureID is trusted outright; otherwise the
// winner-market title heuristics and team-name match decide it.
func (r *Resolver) pickWinnerMarket(candidates []domain.Market, fixtureID, homeTeam, awayTeam string) (domain.Market, bool) {
	for _, m := range candidates {
		if m.Status != domain.MarketActive && m.Status != domain.MarketResolved {
			continue
		}
		if isNonWinnerMarketTitle(m.ID) {
			continue
		}
		if m.FixtureID == fixtureID {
			return r.withInferredSide(m, homeTeam, awayTeam), true
		}
	}
	// No exact fixture-id tag available from the venue; fall back to a
	// title-based match against the home/away team names.
	for _, m := range candidates {
		if m.Status != domain.MarketActive {
			continue
		}
		if isNonWinnerMarketTitle(m.ID) {
			continue
		}
		if teamNameMatches(homeTeam, m.ID) || teamNameMatches(awayTeam, m.ID) {
			return r.withInferredSide(m, homeTeam, awayTeam), true
		}
	}
	return domain.Market{}, false
}

func (r *Resolver) withInferredSide(m domain.Market, homeTeam, awayTeam string) domain.Market {
	if teamNameMatches(homeTeam, m.ID) && !teamNameMatches(awayTeam, m.ID) {
		m.YesIsHome = true
	}
	return m
}
