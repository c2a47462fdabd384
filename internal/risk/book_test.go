package risk

import (
	"testing"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestAdmitRejectsDuplicateMarket(t *testing.T) {
	budget := domain.RiskBudget{PerEventCap: dec(1000), PerSportCap: dec(1000), PerTeamCap: dec(1000), PerDayTradeCap: 100}
	b := New(budget, NewCorrelation(dec(0.7), dec(0.35), dec(0.2)), nil)

	b.RecordOpen("p1", Proposal{MarketID: "m1", EventID: "e1", Sport: domain.SportNBA, Team: "Lakers", Stake: dec(10)})

	reason := b.Admit(Proposal{MarketID: "m1", EventID: "e1", Sport: domain.SportNBA, Team: "Lakers", Stake: dec(5)})
	if reason != RejectDuplicateMarket {
		t.Fatalf("expected duplicate rejection, got %q", reason)
	}
}

func TestAdmitRejectsOverPerTeamCapWithCorrelation(t *testing.T) {
	budget := domain.RiskBudget{PerTeamCap: dec(15)}
	b := New(budget, NewCorrelation(dec(0.7), dec(0.35), dec(0.2)), nil)

	b.RecordOpen("p1", Proposal{MarketID: "m1", EventID: "e1", Sport: domain.SportNBA, Team: "Lakers", Stake: dec(10)})

	// Same team correlation=1.0: 10*1.0 + 8 = 18 > 15 cap.
	reason := b.Admit(Proposal{MarketID: "m2", EventID: "e2", Sport: domain.SportNBA, Team: "Lakers", Stake: dec(8)})
	if reason != RejectPerTeamCap {
		t.Fatalf("expected per-team-cap rejection, got %q", reason)
	}
}

func TestAdmitAllowsWhenUnderAllCaps(t *testing.T) {
	budget := domain.RiskBudget{PerEventCap: dec(100), PerSportCap: dec(100), PerTeamCap: dec(100), PerDayTradeCap: 100}
	b := New(budget, NewCorrelation(dec(0.7), dec(0.35), dec(0.2)), nil)

	reason := b.Admit(Proposal{MarketID: "m1", EventID: "e1", Sport: domain.SportNBA, Team: "Lakers", Stake: dec(10)})
	if reason != RejectNone {
		t.Fatalf("expected admission, got rejection %q", reason)
	}
}

func TestCircuitTripsOnDayDrawdown(t *testing.T) {
	budget := domain.RiskBudget{PerDayDrawdownCap: dec(20)}
	now := time.Now()
	b := New(budget, NewCorrelation(dec(0.7), dec(0.35), dec(0.2)), func() time.Time { return now })

	b.RecordOpen("p1", Proposal{MarketID: "m1", EventID: "e1", Sport: domain.SportNBA, Team: "Lakers", Stake: dec(10)})
	b.RecordClose("p1", dec(-25))

	if !b.CircuitTripped() {
		t.Fatal("expected circuit breaker to trip after drawdown exceeds cap")
	}

	reason := b.Admit(Proposal{MarketID: "m2", EventID: "e2", Sport: domain.SportMLB, Team: "Yankees", Stake: dec(1)})
	if reason != RejectPerDayDrawdown {
		t.Fatalf("expected all new entries vetoed after circuit trip, got %q", reason)
	}
}

func TestMaxPositionsPerEventEnforced(t *testing.T) {
	budget := domain.RiskBudget{MaxPositionsPerEvent: 1}
	b := New(budget, NewCorrelation(dec(0.7), dec(0.35), dec(0.2)), nil)

	b.RecordOpen("p1", Proposal{MarketID: "m1", EventID: "e1", Sport: domain.SportNBA, Team: "Lakers", Stake: dec(10)})

	reason := b.Admit(Proposal{MarketID: "m2", EventID: "e1", Sport: domain.SportNBA, Team: "Celtics", Stake: dec(5)})
	if reason != RejectMaxPositionsEvent {
		t.Fatalf("expected max-positions-per-event rejection, got %q", reason)
	}
}
