// Package market implements spec.md §4.3 (Market Resolver) and the
// Prediction Market Venue external interface of spec.md §6.
package market

import (
	"context"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

// OrderbookSnapshot is the venue's get_orderbook(token) response.
type OrderbookSnapshot struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
	SizeBid decimal.Decimal
	SizeAsk decimal.Decimal
}

// OrderResult is the venue's place_order response; partial fills are
// represented by FilledSize < the requested size.
type OrderResult struct {
	FilledPrice decimal.Decimal
	FilledSize  decimal.Decimal
	Fees        decimal.Decimal
}

// Venue is the Prediction Market Venue external contract of spec.md §6.
type Venue interface {
	SearchMarkets(ctx context.Context, query string) ([]domain.Market, error)
	GetOrderbook(ctx context.Context, tokenID string) (OrderbookSnapshot, error)
	SubscribeQuotes(ctx context.Context, tokenID string) (<-chan domain.Quote, error)
	PlaceOrder(ctx context.Context, marketID, tokenID string, side domain.PositionSide, price, size decimal.Decimal) (OrderResult, error)
	GetMarketStatus(ctx context.Context, marketID string) (domain.MarketStatus, domain.Outcome, error)
}
