package position

import (
	"context"
	"testing"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/internal/market"
	"github.com/oddsignal/scorebot/internal/quote"
	"github.com/shopspring/decimal"
)

type fakeVenue struct {
	bid, ask decimal.Decimal
	status   domain.MarketStatus
	outcome  domain.Outcome
}

func (f *fakeVenue) SearchMarkets(ctx context.Context, q string) ([]domain.Market, error) { return nil, nil }
func (f *fakeVenue) GetOrderbook(ctx context.Context, tokenID string) (market.OrderbookSnapshot, error) {
	return market.OrderbookSnapshot{BestBid: f.bid, BestAsk: f.ask, SizeBid: decimal.NewFromInt(100), SizeAsk: decimal.NewFromInt(100)}, nil
}
func (f *fakeVenue) SubscribeQuotes(ctx context.Context, tokenID string) (<-chan domain.Quote, error) {
	return nil, nil
}
func (f *fakeVenue) PlaceOrder(ctx context.Context, marketID, tokenID string, side domain.PositionSide, price, size decimal.Decimal) (market.OrderResult, error) {
	return market.OrderResult{}, nil
}
func (f *fakeVenue) GetMarketStatus(ctx context.Context, marketID string) (domain.MarketStatus, domain.Outcome, error) {
	return f.status, f.outcome, nil
}

func newTestPosition(entry, stop, take decimal.Decimal) *domain.Position {
	return &domain.Position{
		ID: "p1", MarketID: "m1", TokenID: "tok1", Side: domain.SideYes,
		EntryPrice: entry, EntrySize: decimal.NewFromInt(20),
		StopPrice: stop, TakePrice: take, OpenedAt: time.Now(), State: domain.PositionOpen,
	}
}

func TestEvaluateClosesOnStopLoss(t *testing.T) {
	venue := &fakeVenue{bid: decimal.NewFromFloat(0.20), ask: decimal.NewFromFloat(0.22), status: domain.MarketActive}
	qs := quote.New(venue, 2500*time.Millisecond, nil)
	var closed *domain.Position
	m := New(qs, venue, nil, time.Second, time.Hour, time.Minute, decimal.NewFromFloat(0.20), nil, func(p domain.Position) { closed = &p })

	pos := newTestPosition(decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.25), decimal.NewFromFloat(0.90))
	m.Open(pos)
	m.evaluateOne(context.Background(), "p1")

	if closed == nil {
		t.Fatal("expected position to close")
	}
	if closed.ExitReason != domain.ReasonStopLoss {
		t.Fatalf("expected stop_loss exit, got %s", closed.ExitReason)
	}
}

func TestEvaluateClosesOnTakeProfit(t *testing.T) {
	venue := &fakeVenue{bid: decimal.NewFromFloat(0.92), ask: decimal.NewFromFloat(0.94), status: domain.MarketActive}
	qs := quote.New(venue, 2500*time.Millisecond, nil)
	var closed *domain.Position
	m := New(qs, venue, nil, time.Second, time.Hour, time.Minute, decimal.NewFromFloat(0.20), nil, func(p domain.Position) { closed = &p })

	pos := newTestPosition(decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.25), decimal.NewFromFloat(0.90))
	m.Open(pos)
	m.evaluateOne(context.Background(), "p1")

	if closed == nil || closed.ExitReason != domain.ReasonTakeProfit {
		t.Fatalf("expected take_profit exit, got %+v", closed)
	}
}

func TestEvaluateClosesOnMarketResolved(t *testing.T) {
	venue := &fakeVenue{bid: decimal.NewFromFloat(0.5), ask: decimal.NewFromFloat(0.5), status: domain.MarketResolved, outcome: domain.OutcomeYes}
	qs := quote.New(venue, 2500*time.Millisecond, nil)
	var closed *domain.Position
	m := New(qs, venue, nil, time.Second, time.Hour, time.Minute, decimal.NewFromFloat(0.20), nil, func(p domain.Position) { closed = &p })

	pos := newTestPosition(decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.25), decimal.NewFromFloat(0.90))
	m.Open(pos)
	m.evaluateOne(context.Background(), "p1")

	if closed == nil || closed.ExitReason != domain.ReasonMarketResolved {
		t.Fatalf("expected market_resolved exit, got %+v", closed)
	}
	if !closed.ExitPrice.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected resolution price 1 for winning YES side, got %s", closed.ExitPrice)
	}
}

func TestEvaluateNoExitWhenWithinBand(t *testing.T) {
	venue := &fakeVenue{bid: decimal.NewFromFloat(0.55), ask: decimal.NewFromFloat(0.57), status: domain.MarketActive}
	qs := quote.New(venue, 2500*time.Millisecond, nil)
	var closed *domain.Position
	m := New(qs, venue, nil, time.Second, time.Hour, time.Minute, decimal.NewFromFloat(0.20), nil, func(p domain.Position) { closed = &p })

	pos := newTestPosition(decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.25), decimal.NewFromFloat(0.90))
	m.Open(pos)
	m.evaluateOne(context.Background(), "p1")

	if closed != nil {
		t.Fatalf("expected position to remain open, got close %+v", closed)
	}
}
