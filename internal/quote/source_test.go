package quote

import (
	"context"
	"testing"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/internal/market"
	"github.com/shopspring/decimal"
)

type fakeREST struct {
	snap market.OrderbookSnapshot
	err  error
	n    int
}

func (f *fakeREST) GetOrderbook(ctx context.Context, tokenID string) (market.OrderbookSnapshot, error) {
	f.n++
	return f.snap, f.err
}

func TestGetPrefersFreshWSQuote(t *testing.T) {
	rest := &fakeREST{snap: market.OrderbookSnapshot{
		BestBid: decimal.NewFromFloat(0.40), BestAsk: decimal.NewFromFloat(0.42),
	}}
	src := New(rest, 2500*time.Millisecond, nil)
	src.UpdateWS("tok1", domain.Quote{
		TokenID: "tok1", BestBid: decimal.NewFromFloat(0.50), BestAsk: decimal.NewFromFloat(0.51),
		ObservedAt: time.Now(),
	})

	q, err := src.Get(context.Background(), "tok1")
	if err != nil {
		t.Fatal(err)
	}
	if q.Source != domain.QuoteSourceWS {
		t.Fatalf("expected WS quote, got %s", q.Source)
	}
	if rest.n != 0 {
		t.Fatalf("expected no REST fallback call, got %d", rest.n)
	}
}

func TestGetFallsBackToRESTWhenWSStale(t *testing.T) {
	rest := &fakeREST{snap: market.OrderbookSnapshot{
		BestBid: decimal.NewFromFloat(0.40), BestAsk: decimal.NewFromFloat(0.42),
	}}
	src := New(rest, 2500*time.Millisecond, nil)
	src.UpdateWS("tok1", domain.Quote{
		TokenID: "tok1", BestBid: decimal.NewFromFloat(0.50), BestAsk: decimal.NewFromFloat(0.51),
		ObservedAt: time.Now().Add(-10 * time.Second),
	})

	q, err := src.Get(context.Background(), "tok1")
	if err != nil {
		t.Fatal(err)
	}
	if q.Source != domain.QuoteSourceREST {
		t.Fatalf("expected REST fallback, got %s", q.Source)
	}
}

func TestGetWithDivergenceCheckUsesBothSourcesWhenWSFresh(t *testing.T) {
	rest := &fakeREST{snap: market.OrderbookSnapshot{
		BestBid: decimal.NewFromFloat(0.30), BestAsk: decimal.NewFromFloat(0.32),
	}}
	src := New(rest, 2500*time.Millisecond, nil)
	src.UpdateWS("tok1", domain.Quote{
		TokenID: "tok1", BestBid: decimal.NewFromFloat(0.50), BestAsk: decimal.NewFromFloat(0.51),
		ObservedAt: time.Now(),
	})

	preferred, crossCheck, err := src.GetWithDivergenceCheck(context.Background(), "tok1")
	if err != nil {
		t.Fatal(err)
	}
	if preferred.Source != domain.QuoteSourceWS {
		t.Fatalf("expected preferred=WS, got %s", preferred.Source)
	}
	if crossCheck.Source != domain.QuoteSourceREST {
		t.Fatalf("expected crossCheck=REST, got %s", crossCheck.Source)
	}
	if !preferred.Mid.Equal(decimal.NewFromFloat(0.505)) {
		t.Fatalf("unexpected preferred mid: %s", preferred.Mid)
	}
}
