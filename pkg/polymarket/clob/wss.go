package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oddsignal/scorebot/pkg/wss"
)

// --- WebSocket Message Types ---

// WSMessageType is the type of WebSocket message on the market channel.
type WSMessageType string

const (
	WSTypePriceChange    WSMessageType = "price_change"
	WSTypeBookUpdate     WSMessageType = "book"
	WSTypeTradeEvent     WSMessageType = "last_trade_price"
	WSTypeTickSizeChange WSMessageType = "tick_size_change"
)

// WSMessage is a generic WebSocket message.
type WSMessage struct {
	Type   string `json:"event_type"`
	Asset  string `json:"asset_id,omitempty"`
	Market string `json:"market,omitempty"`
}

// PriceChangeEvent is emitted when a token's price changes.
type PriceChangeEvent struct {
	AssetID  string `json:"asset_id"`
	Price    string `json:"price"`
	OldPrice string `json:"old_price,omitempty"`
}

// BookUpdateEvent is emitted when the orderbook changes.
type BookUpdateEvent struct {
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Hash      string       `json:"hash"`
	Timestamp string       `json:"timestamp"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

// TradeEvent is emitted when a trade occurs on the market.
type TradeEvent struct {
	ID        string    `json:"id"`
	Market    string    `json:"market"`
	AssetID   string    `json:"asset_id"`
	Side      OrderSide `json:"side"`
	Price     string    `json:"price"`
	Size      string    `json:"size"`
	Timestamp int64     `json:"timestamp,string"`
}

type subscribeMsg struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
	Markets []string `json:"markets,omitempty"`
}

// WSClient is a WebSocket client for Polymarket CLOB market-channel data:
// price changes, book updates, trades. The user channel (order/fill
// updates, which requires API credentials) has no caller in this module
// and was dropped along with order signing.
type WSClient struct {
	client *wss.Client
	url    string

	handlers WSHandlers

	mu         sync.RWMutex
	assetSubs  map[string]bool
	marketSubs map[string]bool
}

// WSHandlers contains callback functions for market-channel events.
type WSHandlers struct {
	OnPriceChange func(PriceChangeEvent)
	OnBookUpdate  func(BookUpdateEvent)
	OnTrade       func(TradeEvent)

	OnConnect    func()
	OnDisconnect func(err error)
	OnError      func(err error)
}

// WSConfig holds WebSocket client configuration.
type WSConfig struct {
	URL      string
	Handlers WSHandlers

	ReconnectEnabled  bool
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
}

// DefaultWSConfig returns default configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		URL:               DefaultWSSURL,
		ReconnectEnabled:  true,
		ReconnectMinDelay: 1 * time.Second,
		ReconnectMaxDelay: 30 * time.Second,
	}
}

// NewWSClient creates a new Polymarket market-channel WebSocket client.
func NewWSClient(config WSConfig) *WSClient {
	wsConfig := wss.Config{
		URL:                  config.URL,
		ReconnectEnabled:     config.ReconnectEnabled,
		ReconnectMinDelay:    config.ReconnectMinDelay,
		ReconnectMaxDelay:    config.ReconnectMaxDelay,
		ReconnectMaxAttempts: 0,
		HeartbeatInterval:    30 * time.Second,
		HeartbeatTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReadTimeout:          60 * time.Second,
		ReadBufferSize:       8192,
		WriteBufferSize:      4096,
	}

	wsc := &WSClient{
		url:        config.URL,
		handlers:   config.Handlers,
		assetSubs:  make(map[string]bool),
		marketSubs: make(map[string]bool),
	}

	handlers := wss.Handlers{
		OnConnect: func() {
			wsc.onConnect()
			if wsc.handlers.OnConnect != nil {
				wsc.handlers.OnConnect()
			}
		},
		OnDisconnect: func(err error) {
			if wsc.handlers.OnDisconnect != nil {
				wsc.handlers.OnDisconnect(err)
			}
		},
		OnMessage: func(msgType int, data []byte) {
			wsc.handleMessage(data)
		},
		OnError: func(err error) {
			if wsc.handlers.OnError != nil {
				wsc.handlers.OnError(err)
			}
		},
	}

	wsc.client = wss.NewClient(wsConfig, handlers)
	return wsc
}

// Connect connects to the WebSocket server.
func (w *WSClient) Connect(ctx context.Context) error {
	return w.client.Connect(ctx)
}

// Close closes the WebSocket connection.
func (w *WSClient) Close() error {
	return w.client.Close()
}

// IsConnected returns true if connected.
func (w *WSClient) IsConnected() bool {
	return w.client.IsConnected()
}

// SetBookUpdateHandler replaces the book-update callback. Call before
// Connect; callers that need book updates routed to per-token
// subscribers (see market.PolymarketVenue) set this once at wiring time.
func (w *WSClient) SetBookUpdateHandler(fn func(BookUpdateEvent)) {
	w.handlers.OnBookUpdate = fn
}

// SubscribeToAssets subscribes to price/book updates for the given asset IDs.
func (w *WSClient) SubscribeToAssets(assetIDs ...string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	msg := subscribeMsg{Type: "subscribe", Channel: "market", Assets: assetIDs}
	if err := w.client.SendJSON(msg); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	w.mu.Lock()
	for _, id := range assetIDs {
		w.assetSubs[id] = true
	}
	w.mu.Unlock()
	return nil
}

// UnsubscribeFromAssets unsubscribes from the given asset IDs.
func (w *WSClient) UnsubscribeFromAssets(assetIDs ...string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	msg := subscribeMsg{Type: "unsubscribe", Channel: "market", Assets: assetIDs}
	if err := w.client.SendJSON(msg); err != nil {
		return fmt.Errorf("unsubscribe failed: %w", err)
	}

	w.mu.Lock()
	for _, id := range assetIDs {
		delete(w.assetSubs, id)
	}
	w.mu.Unlock()
	return nil
}

func (w *WSClient) onConnect() {
	w.mu.RLock()
	assets := make([]string, 0, len(w.assetSubs))
	for id := range w.assetSubs {
		assets = append(assets, id)
	}
	w.mu.RUnlock()

	if len(assets) > 0 {
		w.SubscribeToAssets(assets...)
	}
}

func (w *WSClient) handleMessage(data []byte) {
	if len(data) > 0 && data[0] == '[' {
		var messages []json.RawMessage
		if err := json.Unmarshal(data, &messages); err == nil {
			for _, msg := range messages {
				w.handleSingleMessage(msg)
			}
			return
		}
	}
	w.handleSingleMessage(data)
}

func (w *WSClient) handleSingleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch WSMessageType(strings.ToLower(msg.Type)) {
	case WSTypePriceChange:
		if w.handlers.OnPriceChange != nil {
			var event PriceChangeEvent
			if json.Unmarshal(data, &event) == nil {
				w.handlers.OnPriceChange(event)
			}
		}
	case WSTypeBookUpdate:
		if w.handlers.OnBookUpdate != nil {
			var event BookUpdateEvent
			if json.Unmarshal(data, &event) == nil {
				w.handlers.OnBookUpdate(event)
			}
		}
	case WSTypeTradeEvent:
		if w.handlers.OnTrade != nil {
			var event TradeEvent
			if json.Unmarshal(data, &event) == nil {
				w.handlers.OnTrade(event)
			}
		}
	}
}
