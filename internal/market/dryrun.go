package market

import (
	"context"
	"fmt"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

// DryRunVenue decorates a Venue so that PlaceOrder never mutates the real
// venue: it synthesizes a fill at the displayed ask/bid, per spec.md §6
// "Dry-run mode". All other methods pass through unchanged, so quote
// fetching, market discovery, and status checks still reflect live data —
// only the order-placement side effect is virtualized. Adapted from the
// fill-synthesis shape of pkg/trader/paper/engine.go's tryFillSimple.
type DryRunVenue struct {
	inner Venue
}

// NewDryRunVenue wraps inner so that order placement is simulated.
func NewDryRunVenue(inner Venue) *DryRunVenue {
	return &DryRunVenue{inner: inner}
}

func (d *DryRunVenue) SearchMarkets(ctx context.Context, query string) ([]domain.Market, error) {
	return d.inner.SearchMarkets(ctx, query)
}

func (d *DryRunVenue) GetOrderbook(ctx context.Context, tokenID string) (OrderbookSnapshot, error) {
	return d.inner.GetOrderbook(ctx, tokenID)
}

func (d *DryRunVenue) SubscribeQuotes(ctx context.Context, tokenID string) (<-chan domain.Quote, error) {
	return d.inner.SubscribeQuotes(ctx, tokenID)
}

func (d *DryRunVenue) GetMarketStatus(ctx context.Context, marketID string) (domain.MarketStatus, domain.Outcome, error) {
	return d.inner.GetMarketStatus(ctx, marketID)
}

// PlaceOrder synthesizes a fill at the requested price with the full
// requested size — the "displayed ask" the Decision Engine already chose
// when it computed edge — and charges no fee, matching spec.md §6's
// "synthesize a fill at the displayed ask; no venue mutation occurs".
func (d *DryRunVenue) PlaceOrder(ctx context.Context, marketID, tokenID string, side domain.PositionSide, price, size decimal.Decimal) (OrderResult, error) {
	if price.LessThanOrEqual(decimal.Zero) || size.LessThanOrEqual(decimal.Zero) {
		return OrderResult{}, fmt.Errorf("dry-run order rejected: non-positive price/size")
	}
	return OrderResult{
		FilledPrice: price,
		FilledSize:  size,
		Fees:        decimal.Zero,
	}, nil
}
