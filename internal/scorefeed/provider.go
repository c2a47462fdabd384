// Package scorefeed implements spec.md §4.2: the Score Feed Aggregator.
// It polls one or more score providers in parallel, diffs each fixture
// against its last-seen snapshot, classifies and de-duplicates deltas, and
// emits typed domain.ScoreEvent values into a bounded queue.
package scorefeed

import (
	"context"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
)

// FixtureSnapshot is one provider's view of a single live fixture at poll time.
type FixtureSnapshot struct {
	FixtureID  string
	Sport      domain.Sport
	League     string
	HomeTeam   string
	AwayTeam   string
	State      domain.GameState
	ProviderTS time.Time
}

// Provider is the Score Provider external interface of spec.md §6:
// list_live(sport_set) -> [{fixture_id, sport, home, away, state, provider_ts}].
// Implementations may return a partial result; errors must not crash the
// feed (spec.md §4.2 failure semantics).
type Provider interface {
	Name() string
	ListLive(ctx context.Context, sports []domain.Sport) ([]FixtureSnapshot, error)
}
