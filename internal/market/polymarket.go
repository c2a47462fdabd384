package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/pkg/polymarket/clob"
	"github.com/oddsignal/scorebot/pkg/polymarket/gamma"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PolymarketVenue implements Venue against the real Polymarket stack:
// Gamma for market discovery, CLOB for orderbook/market status and the
// market-channel WebSocket for live quote streaming. Order placement is
// unsupported here: there is no signing wallet, so PlaceOrder always
// returns an error. Orders fill only when this type is wrapped in
// DryRunVenue (dry-run mode); with dry-run off every order fails.
type PolymarketVenue struct {
	gamma *gamma.Client
	clob  *clob.Client
	ws    *clob.WSClient
	log   *zap.Logger

	mu   sync.Mutex
	subs map[string]chan domain.Quote
}

// NewPolymarketVenue wires a PolymarketVenue from already-constructed
// Gamma and CLOB clients. ws may be nil, in which case SubscribeQuotes
// returns an error and no WS quotes are streamed.
func NewPolymarketVenue(gammaClient *gamma.Client, clobClient *clob.Client, ws *clob.WSClient, log *zap.Logger) *PolymarketVenue {
	v := &PolymarketVenue{
		gamma: gammaClient,
		clob:  clobClient,
		ws:    ws,
		log:   log,
		subs:  make(map[string]chan domain.Quote),
	}
	if ws != nil {
		ws.SetBookUpdateHandler(v.onBookUpdate)
	}
	return v
}

// Connect establishes the underlying market-data WebSocket connection.
// SubscribeQuotes pushes no updates until this succeeds.
func (v *PolymarketVenue) Connect(ctx context.Context) error {
	if v.ws == nil {
		return nil
	}
	return v.ws.Connect(ctx)
}

// SearchMarkets queries Gamma's tradeable markets and returns those whose
// question text contains query (case-insensitive), the way the Resolver
// expects: candidates carry enough of the original title in ID for the
// team-name heuristic to work.
func (v *PolymarketVenue) SearchMarkets(ctx context.Context, query string) ([]domain.Market, error) {
	candidates, err := v.gamma.ListTradeableMarkets(ctx, 100, 0)
	if err != nil {
		return nil, fmt.Errorf("search markets %q: %w", query, err)
	}

	needle := strings.ToLower(query)
	out := make([]domain.Market, 0, 4)
	for _, m := range candidates {
		if !strings.Contains(strings.ToLower(m.Question), needle) {
			continue
		}
		out = append(out, fromGammaMarket(m))
	}
	return out, nil
}

func fromGammaMarket(m gamma.Market) domain.Market {
	ids := m.ClobTokenIDs()
	var yesToken, noToken string
	if len(ids) >= 2 {
		yesToken, noToken = ids[0], ids[1]
	}

	status := domain.MarketClosed
	if m.IsTradeable() {
		status = domain.MarketActive
	} else if m.Closed {
		status = domain.MarketResolved
	}

	return domain.Market{
		ID:         m.Question,
		YesTokenID: yesToken,
		NoTokenID:  noToken,
		Liquidity:  decimal.NewFromFloat(float64(m.Liquidity)),
		Status:     status,
		CachedAt:   time.Now(),
	}
}

// GetOrderbook fetches the CLOB orderbook for tokenID and reduces it to
// the Venue contract's best-of-book snapshot.
func (v *PolymarketVenue) GetOrderbook(ctx context.Context, tokenID string) (OrderbookSnapshot, error) {
	book, err := v.clob.GetOrderBook(ctx, tokenID)
	if err != nil {
		return OrderbookSnapshot{}, fmt.Errorf("get orderbook %s: %w", tokenID, err)
	}

	var snap OrderbookSnapshot
	if len(book.Bids) > 0 {
		snap.BestBid, snap.SizeBid = parsePriceLevel(book.Bids[0])
	}
	if len(book.Asks) > 0 {
		snap.BestAsk, snap.SizeAsk = parsePriceLevel(book.Asks[0])
	}
	return snap, nil
}

func parsePriceLevel(level clob.PriceLevel) (price, size decimal.Decimal) {
	price, _ = decimal.NewFromString(level.Price)
	size, _ = decimal.NewFromString(level.Size)
	return price, size
}

// GetMarketStatus reports a market's lifecycle state and, once resolved,
// which token paid out.
func (v *PolymarketVenue) GetMarketStatus(ctx context.Context, marketID string) (domain.MarketStatus, domain.Outcome, error) {
	info, err := v.clob.GetMarket(ctx, marketID)
	if err != nil {
		return "", "", fmt.Errorf("get market status %s: %w", marketID, err)
	}

	if !info.Closed {
		return domain.MarketActive, "", nil
	}
	for i, tok := range info.Tokens {
		if tok.Winner && i < 2 {
			if i == 0 {
				return domain.MarketResolved, domain.OutcomeYes, nil
			}
			return domain.MarketResolved, domain.OutcomeNo, nil
		}
	}
	return domain.MarketResolved, "", nil
}

// PlaceOrder is unsupported on the real venue: order signing was dropped
// along with the wallet dependency, so orders fill only in dry-run mode,
// where DryRunVenue synthesizes them without calling this method.
func (v *PolymarketVenue) PlaceOrder(ctx context.Context, marketID, tokenID string, side domain.PositionSide, price, size decimal.Decimal) (OrderResult, error) {
	return OrderResult{}, fmt.Errorf("live order placement not supported; wrap this venue in DryRunVenue")
}

// SubscribeQuotes subscribes to the CLOB market-channel WebSocket for
// tokenID and translates book-update frames into domain.Quote values.
// The returned channel is closed when ctx is cancelled.
func (v *PolymarketVenue) SubscribeQuotes(ctx context.Context, tokenID string) (<-chan domain.Quote, error) {
	if v.ws == nil {
		return nil, fmt.Errorf("subscribe quotes %s: no websocket client configured", tokenID)
	}

	out := make(chan domain.Quote, 64)
	v.mu.Lock()
	v.subs[tokenID] = out
	v.mu.Unlock()

	if err := v.ws.SubscribeToAssets(tokenID); err != nil {
		v.mu.Lock()
		delete(v.subs, tokenID)
		v.mu.Unlock()
		close(out)
		return nil, fmt.Errorf("subscribe quotes %s: %w", tokenID, err)
	}

	go func() {
		<-ctx.Done()
		v.ws.UnsubscribeFromAssets(tokenID)
		v.mu.Lock()
		delete(v.subs, tokenID)
		close(out)
		v.mu.Unlock()
	}()

	return out, nil
}

func (v *PolymarketVenue) onBookUpdate(e clob.BookUpdateEvent) {
	v.mu.Lock()
	out, ok := v.subs[e.AssetID]
	v.mu.Unlock()
	if !ok {
		return
	}

	q := domain.Quote{
		TokenID:    e.AssetID,
		Source:     domain.QuoteSourceWS,
		ObservedAt: time.Now(),
	}
	if len(e.Bids) > 0 {
		q.BestBid, q.BidSize = parsePriceLevel(e.Bids[0])
	}
	if len(e.Asks) > 0 {
		q.BestAsk, q.AskSize = parsePriceLevel(e.Asks[0])
	}
	if !q.BestBid.IsZero() && !q.BestAsk.IsZero() {
		q.Mid = q.BestBid.Add(q.BestAsk).Div(decimal.NewFromInt(2))
	}

	select {
	case out <- q:
	default:
		if v.log != nil {
			v.log.Warn("dropped quote update, subscriber channel full", zap.String("token_id", e.AssetID))
		}
	}
}
