package account

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestReserveAndSettleTrackBalance(t *testing.T) {
	l := New(decimal.NewFromInt(100))

	l.Reserve(decimal.NewFromInt(20))
	if !l.Available().Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected 80 after reserve, got %s", l.Available())
	}

	l.Settle(decimal.NewFromInt(20), decimal.NewFromInt(5))
	if !l.Available().Equal(decimal.NewFromInt(105)) {
		t.Fatalf("expected 105 after settle with profit, got %s", l.Available())
	}
}

func TestSettleWithLoss(t *testing.T) {
	l := New(decimal.NewFromInt(100))
	l.Reserve(decimal.NewFromInt(20))
	l.Settle(decimal.NewFromInt(20), decimal.NewFromInt(-8))
	if !l.Available().Equal(decimal.NewFromInt(92)) {
		t.Fatalf("expected 92 after settle with loss, got %s", l.Available())
	}
}

func TestDrawdownPct(t *testing.T) {
	l := New(decimal.NewFromInt(100))
	if !l.DrawdownPct().IsZero() {
		t.Fatal("expected zero drawdown at start")
	}
	l.Reserve(decimal.NewFromInt(20))
	l.Settle(decimal.NewFromInt(20), decimal.NewFromInt(-30))
	if !l.DrawdownPct().Equal(decimal.NewFromFloat(0.30)) {
		t.Fatalf("expected 0.30 drawdown, got %s", l.DrawdownPct())
	}
}
