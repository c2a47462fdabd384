package market

import (
	"context"
	"testing"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

type fakeVenue struct {
	markets []domain.Market
	calls   int
}

func (f *fakeVenue) SearchMarkets(ctx context.Context, query string) ([]domain.Market, error) {
	f.calls++
	return f.markets, nil
}
func (f *fakeVenue) GetOrderbook(ctx context.Context, tokenID string) (OrderbookSnapshot, error) {
	return OrderbookSnapshot{}, nil
}
func (f *fakeVenue) SubscribeQuotes(ctx context.Context, tokenID string) (<-chan domain.Quote, error) {
	return nil, nil
}
func (f *fakeVenue) PlaceOrder(ctx context.Context, marketID, tokenID string, side domain.PositionSide, price, size decimal.Decimal) (OrderResult, error) {
	return OrderResult{}, nil
}
func (f *fakeVenue) GetMarketStatus(ctx context.Context, marketID string) (domain.MarketStatus, domain.Outcome, error) {
	return domain.MarketActive, "", nil
}

func TestResolverMatchesByFixtureID(t *testing.T) {
	venue := &fakeVenue{markets: []domain.Market{
		{ID: "m1", FixtureID: "fx1", Status: domain.MarketActive},
	}}
	r := NewResolver(venue, time.Minute, nil)

	m, found, err := r.Resolve(context.Background(), "fx1", "Lakers", "Celtics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || m.ID != "m1" {
		t.Fatalf("expected to resolve m1, got %+v found=%v", m, found)
	}
}

func TestResolverCachesWithinTTL(t *testing.T) {
	venue := &fakeVenue{markets: []domain.Market{
		{ID: "m1", FixtureID: "fx1", Status: domain.MarketActive},
	}}
	r := NewResolver(venue, time.Minute, nil)

	if _, _, err := r.Resolve(context.Background(), "fx1", "Lakers", "Celtics"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Resolve(context.Background(), "fx1", "Lakers", "Celtics"); err != nil {
		t.Fatal(err)
	}
	if venue.calls != 1 {
		t.Fatalf("expected cached second lookup, venue called %d times", venue.calls)
	}
}

func TestResolverNoMatchReturnsNotFound(t *testing.T) {
	venue := &fakeVenue{markets: []domain.Market{
		{ID: "unrelated", Status: domain.MarketActive},
	}}
	r := NewResolver(venue, time.Minute, nil)

	_, found, err := r.Resolve(context.Background(), "fx9", "Lakers", "Celtics")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected no match")
	}
}
