package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Client is a CLOB API client restricted to the public, unauthenticated
// surface: orderbooks, prices, and market info. The order-signing and L2
// account methods the upstream client exposed required an EIP-712 wallet
// and are not used by anything in this module — this engine's order
// placement runs through market.Venue/market.DryRunVenue, not this type.
type Client struct {
	baseURL    string
	chainID    int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithCLOBBaseURL sets a custom base URL.
func WithCLOBBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithChainID sets the chain ID.
func WithChainID(chainID int) ClientOption {
	return func(c *Client) {
		c.chainID = chainID
	}
}

// WithCLOBHTTPClient sets a custom HTTP client.
func WithCLOBHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a CLOB client for public (unauthenticated) operations:
// reading orderbooks, prices, and market data.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		chainID: ChainIDPolygon,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetOrderBook fetches the orderbook for a token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*OrderBookSummary, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var book OrderBookSummary
	if err := c.get(ctx, "/book", params, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// GetPrice fetches the current price for a token.
func (c *Client) GetPrice(ctx context.Context, tokenID string) (string, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var result struct {
		Price string `json:"price"`
	}
	if err := c.get(ctx, "/price", params, &result); err != nil {
		return "", err
	}
	return result.Price, nil
}

// GetMidpoint fetches the midpoint price for a token.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (string, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var result struct {
		Mid string `json:"mid"`
	}
	if err := c.get(ctx, "/midpoint", params, &result); err != nil {
		return "", err
	}
	return result.Mid, nil
}

// GetSpread fetches the bid-ask spread for a token.
func (c *Client) GetSpread(ctx context.Context, tokenID string) (bid, ask string, err error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var result struct {
		Bid string `json:"bid"`
		Ask string `json:"ask"`
	}
	if err := c.get(ctx, "/spread", params, &result); err != nil {
		return "", "", err
	}
	return result.Bid, result.Ask, nil
}

// PriceHistoryPoint represents a single point in price history.
type PriceHistoryPoint struct {
	Timestamp int64   `json:"t"` // Unix timestamp (seconds)
	Price     float64 `json:"p"` // Price at that time
}

// PriceHistoryResponse is the response from prices-history endpoint.
type PriceHistoryResponse struct {
	History []PriceHistoryPoint `json:"history"`
}

// GetPriceHistory fetches historical prices for a token.
// startTs, endTs: Unix timestamps in seconds (0 = no limit)
// fidelity: minimum granularity in minutes (e.g., 1, 5, 60)
func (c *Client) GetPriceHistory(ctx context.Context, tokenID string, startTs, endTs int64, fidelity int) ([]PriceHistoryPoint, error) {
	params := url.Values{}
	params.Set("market", tokenID)
	if startTs > 0 {
		params.Set("startTs", strconv.FormatInt(startTs, 10))
	}
	if endTs > 0 {
		params.Set("endTs", strconv.FormatInt(endTs, 10))
	}
	if fidelity > 0 {
		params.Set("fidelity", strconv.Itoa(fidelity))
	}

	var result PriceHistoryResponse
	if err := c.get(ctx, "/prices-history", params, &result); err != nil {
		return nil, err
	}
	return result.History, nil
}

// GetMarket fetches market info by condition ID.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*MarketInfo, error) {
	var market MarketInfo
	if err := c.get(ctx, "/markets/"+conditionID, nil, &market); err != nil {
		return nil, err
	}
	return &market, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
