package scorefeed

import (
	"context"
	"testing"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
)

type fakeProvider struct {
	name  string
	snaps []FixtureSnapshot
	err   error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) ListLive(ctx context.Context, sports []domain.Sport) ([]FixtureSnapshot, error) {
	return f.snaps, f.err
}

func TestDuplicateAcrossProvidersFoldsToOneEventWithConsensus(t *testing.T) {
	// Scenario 3 from spec.md §8: providers A and B both report goal_home
	// at (1->2) within the dedup window. Expect one ScoreEvent, consensus=2.
	base := domain.GameState{HomeGoals: 1, AwayGoals: 0, MinuteOrPeriod: 10}
	updated := domain.GameState{HomeGoals: 2, AwayGoals: 0, MinuteOrPeriod: 11}

	providerA := &fakeProvider{name: "A", snaps: []FixtureSnapshot{{FixtureID: "fx1", Sport: domain.SportSoccer, State: base}}}
	providerB := &fakeProvider{name: "B", snaps: []FixtureSnapshot{{FixtureID: "fx1", Sport: domain.SportSoccer, State: base}}}

	agg := New([]Provider{providerA, providerB}, []domain.Sport{domain.SportSoccer}, time.Hour, nil, WithDedupWindow(8*time.Second))

	// First poll establishes the baseline for both providers.
	agg.pollOnce(context.Background())

	providerA.snaps[0].State = updated
	providerB.snaps[0].State = updated
	agg.pollOnce(context.Background())

	select {
	case ev := <-agg.Events():
		if ev.Consensus != 2 {
			t.Fatalf("expected consensus=2, got %d", ev.Consensus)
		}
	default:
		t.Fatal("expected exactly one emitted event")
	}

	select {
	case ev := <-agg.Events():
		t.Fatalf("expected no second event, got %+v", ev)
	default:
	}
}

func TestScoreCorrectionDropsNegativeDelta(t *testing.T) {
	base := domain.GameState{HomeGoals: 2, AwayGoals: 1, MinuteOrPeriod: 40}
	corrected := domain.GameState{HomeGoals: 1, AwayGoals: 1, MinuteOrPeriod: 41}

	provider := &fakeProvider{name: "A", snaps: []FixtureSnapshot{{FixtureID: "fx2", Sport: domain.SportSoccer, State: base}}}
	agg := New([]Provider{provider}, []domain.Sport{domain.SportSoccer}, time.Hour, nil)

	agg.pollOnce(context.Background())
	provider.snaps[0].State = corrected
	agg.pollOnce(context.Background())

	select {
	case ev := <-agg.Events():
		if ev.Kind != domain.EventScoreCorrection {
			t.Fatalf("expected score_correction, got %s", ev.Kind)
		}
	default:
		t.Fatal("expected a score_correction event")
	}
}

func TestProviderErrorToleratedWhenOthersSucceed(t *testing.T) {
	failing := &fakeProvider{name: "bad", err: context.DeadlineExceeded}
	ok := &fakeProvider{name: "good", snaps: []FixtureSnapshot{{FixtureID: "fx3", Sport: domain.SportNBA}}}

	agg := New([]Provider{failing, ok}, []domain.Sport{domain.SportNBA}, time.Hour, nil)
	agg.pollOnce(context.Background())

	stats := agg.Stats()
	if stats.ProviderErrors["bad"] != 1 {
		t.Fatalf("expected one recorded provider error, got %+v", stats.ProviderErrors)
	}
	if _, ok := agg.Fixture("fx3"); !ok {
		t.Fatalf("expected fixture from the healthy provider to be tracked")
	}
}
