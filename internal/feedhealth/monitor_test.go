package feedhealth

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestScoreStartsAtOne(t *testing.T) {
	m := New(decimal.NewFromFloat(0.2), decimal.NewFromFloat(0.5), time.Minute, 30*time.Second)
	if !m.Score().Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected initial score 1, got %s", m.Score())
	}
}

func TestRepeatedFallbacksDegradeScore(t *testing.T) {
	m := New(decimal.NewFromFloat(0.3), decimal.NewFromFloat(0.5), time.Minute, 30*time.Second)
	now := time.Now()
	for i := 0; i < 20; i++ {
		m.Observe(true, 5000, now)
	}
	if m.Score().GreaterThan(decimal.NewFromFloat(0.3)) {
		t.Fatalf("expected degraded score after repeated fallbacks, got %s", m.Score())
	}
}

func TestPauseTripsAfterSustainedDegradation(t *testing.T) {
	m := New(decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.9), 10*time.Second, 5*time.Second)
	now := time.Now()
	m.Observe(true, 9000, now)
	if m.PauseNewEntries() {
		t.Fatal("should not pause immediately")
	}
	later := now.Add(6 * time.Second)
	m.Observe(true, 9000, later)
	if !m.PauseNewEntries() {
		t.Fatal("expected pause after sustained degradation window elapses")
	}
}

func TestAdaptiveMinEdgeRisesAsQualityDrops(t *testing.T) {
	m := New(decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.9), time.Minute, 5*time.Second)
	m.Observe(true, 9000, time.Now())
	base := decimal.NewFromFloat(0.05)
	penalty := decimal.NewFromFloat(0.10)
	eff := m.AdaptiveMinEdge(base, penalty)
	if !eff.GreaterThan(base) {
		t.Fatalf("expected adaptive min_edge to exceed base, got %s vs base %s", eff, base)
	}
}
