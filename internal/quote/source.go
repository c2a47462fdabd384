// Package quote implements spec.md §4.4 (Quote Source): it prefers a
// fresh WS quote over a REST fallback, and supports the Decision Engine's
// WS/REST divergence cross-check.
package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/internal/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var decimalTwo = decimal.NewFromInt(2)

// RESTFetcher fetches a one-shot orderbook snapshot over REST, used both
// as the fallback path and for WS divergence cross-checks.
type RESTFetcher interface {
	GetOrderbook(ctx context.Context, tokenID string) (market.OrderbookSnapshot, error)
}

type wsEntry struct {
	quote domain.Quote
}

// Source tracks the latest WS quote per token (updated by a subscription
// goroutine elsewhere) and falls back to REST when the WS quote is stale
// or absent, per spec.md §4.4's "prefer WS if age_ms <= WS_PRICE_MAX_AGE_MS
// else REST" rule.
type Source struct {
	rest        RESTFetcher
	maxWSAgeMS  int64
	log         *zap.Logger

	mu sync.RWMutex
	ws map[string]wsEntry
}

// New returns a Source backed by rest for fallback, treating WS quotes
// older than maxWSAge as stale.
func New(rest RESTFetcher, maxWSAge time.Duration, log *zap.Logger) *Source {
	return &Source{
		rest:       rest,
		maxWSAgeMS: maxWSAge.Milliseconds(),
		log:        log,
		ws:         make(map[string]wsEntry),
	}
}

// UpdateWS records the latest WS-pushed quote for tokenID. Called by the
// venue's quote-subscription hub as new book updates arrive.
func (s *Source) UpdateWS(tokenID string, q domain.Quote) {
	q.Source = domain.QuoteSourceWS
	if q.Mid.IsZero() {
		q.Mid = q.BestBid.Add(q.BestAsk).Div(decimalTwo)
	}
	s.mu.Lock()
	s.ws[tokenID] = wsEntry{quote: q}
	s.mu.Unlock()
}

// Get returns the best available quote for tokenID: the WS quote if it is
// fresh enough, otherwise a REST snapshot.
func (s *Source) Get(ctx context.Context, tokenID string) (domain.Quote, error) {
	now := time.Now()
	s.mu.RLock()
	entry, ok := s.ws[tokenID]
	s.mu.RUnlock()

	if ok && entry.quote.AgeMS(now) <= s.maxWSAgeMS {
		return entry.quote, nil
	}

	return s.fetchREST(ctx, tokenID, now)
}

// GetWithDivergenceCheck returns the preferred (WS) quote along with a
// REST cross-check fetched right after it, for the Decision Engine's
// MAX_ENTRY_QUOTE_DIVERGENCE gate. If no WS quote is fresh, both values
// are the same REST fetch and divergence is reported as zero.
func (s *Source) GetWithDivergenceCheck(ctx context.Context, tokenID string) (preferred, crossCheck domain.Quote, err error) {
	now := time.Now()
	s.mu.RLock()
	entry, ok := s.ws[tokenID]
	s.mu.RUnlock()

	if !ok || entry.quote.AgeMS(now) > s.maxWSAgeMS {
		rest, err := s.fetchREST(ctx, tokenID, now)
		if err != nil {
			return domain.Quote{}, domain.Quote{}, err
		}
		return rest, rest, nil
	}

	rest, err := s.fetchREST(ctx, tokenID, now)
	if err != nil {
		if s.log != nil {
			s.log.Warn("REST cross-check failed, proceeding on WS quote alone",
				zap.String("token_id", tokenID), zap.Error(err))
		}
		return entry.quote, entry.quote, nil
	}
	return entry.quote, rest, nil
}

func (s *Source) fetchREST(ctx context.Context, tokenID string, now time.Time) (domain.Quote, error) {
	book, err := s.rest.GetOrderbook(ctx, tokenID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("fetch REST orderbook for %s: %w", tokenID, err)
	}
	mid := book.BestBid.Add(book.BestAsk).Div(decimalTwo)
	return domain.Quote{
		TokenID:    tokenID,
		BestBid:    book.BestBid,
		BestAsk:    book.BestAsk,
		Mid:        mid,
		BidSize:    book.SizeBid,
		AskSize:    book.SizeAsk,
		Source:     domain.QuoteSourceREST,
		ObservedAt: now,
	}, nil
}
