package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewEngineMetricsRegistersWithoutPanicking(t *testing.T) {
	em := NewEngineMetrics()
	if em.Registry() == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	em := NewEngineMetrics()
	em.RecordScoreEvent("nba", "basket_home")
	em.RecordScoreEventDropped("nba", "shift_below_threshold")
	em.RecordDecision("nba", "none")
	em.RecordOrder("yes", "filled", 25.0)
	em.RecordOrderFill("yes", 0.2)
	em.UpdatePosition("m1", "nba", 30.0, 5.0)
	em.RecordPositionClose("nba", "take_profit", 5.0)
	em.SetOpenPositions("nba", 2)
	em.RecordRiskRejection("per_team_cap")
	em.UpdateRiskBook(-3.5, false)
	em.UpdateFeedHealth(0.9, false, 0.05)
	em.RecordCalibrationFit("nba", true, 0.6, 0.55, 0.22, 0.19)
}

func TestDecimalToFloat64(t *testing.T) {
	d := decimal.NewFromFloat(12.5)
	if DecimalToFloat64(d) != 12.5 {
		t.Fatalf("expected 12.5, got %f", DecimalToFloat64(d))
	}
}

func TestDefaultReturnsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Fatal("expected Default() to return the same instance")
	}
}
