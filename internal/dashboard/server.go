package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

// PositionSource exposes the Position Manager's current book.
type PositionSource interface {
	Positions() []domain.Position
}

// BalanceSource exposes the account ledger's current balance.
type BalanceSource interface {
	Available() decimal.Decimal
	DrawdownPct() decimal.Decimal
}

// FeedHealthSource exposes the Feed-Health Monitor's current snapshot.
type FeedHealthSource interface {
	Snapshot() domain.FeedHealth
}

// RiskSource exposes the Risk Book's daily state.
type RiskSource interface {
	DayPnL() decimal.Decimal
	CircuitTripped() bool
}

// CalibrationSource exposes recent calibration fit diagnostics.
type CalibrationSource interface {
	LatestCalibrationFits(ctx context.Context, sport domain.Sport, limit int) ([]CalibrationRow, error)
}

// CalibrationRow is the dashboard-facing projection of a stored fit attempt.
type CalibrationRow struct {
	Sport         domain.Sport `json:"sport"`
	A, B          float64      `json:"a_b"`
	LogLossBefore float64      `json:"log_loss_before"`
	LogLossAfter  float64      `json:"log_loss_after"`
	BrierBefore   float64      `json:"brier_before"`
	BrierAfter    float64      `json:"brier_after"`
	Promoted      bool         `json:"promoted"`
	SampleCount   int          `json:"sample_count"`
	FittedAt      time.Time    `json:"fitted_at"`
}

// Server wires the read-only dashboard REST surface plus the WebSocket
// push hub, following cmd/agentd/main.go's startHTTP mux/handler shape.
// The Prometheus handler is supplied by the caller (promhttp.HandlerFor
// wrapping the metrics registry) so this package doesn't need to depend
// on the metrics package's concrete registry type.
type Server struct {
	addr string
	log  *zap.Logger

	positions   PositionSource
	balance     BalanceSource
	feedHealth  FeedHealthSource
	risk        RiskSource
	calibration CalibrationSource

	hub *Hub
}

// New wires a dashboard Server. Any source may be nil; its endpoint then
// reports {"error": "unavailable"} instead of panicking.
func New(addr string, hub *Hub, positions PositionSource, balance BalanceSource, feedHealth FeedHealthSource, risk RiskSource, calibration CalibrationSource, log *zap.Logger) *Server {
	return &Server{
		addr: addr, log: log, hub: hub,
		positions: positions, balance: balance, feedHealth: feedHealth,
		risk: risk, calibration: calibration,
	}
}

// Mux builds the HTTP handler tree. Exposed separately from Run so tests
// can exercise handlers without binding a socket.
func (s *Server) Mux(promHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		if s.positions == nil {
			writeUnavailable(w)
			return
		}
		writeJSON(w, s.positions.Positions())
	})

	mux.HandleFunc("/balance", func(w http.ResponseWriter, r *http.Request) {
		if s.balance == nil {
			writeUnavailable(w)
			return
		}
		writeJSON(w, map[string]interface{}{
			"available":    s.balance.Available(),
			"drawdown_pct": s.balance.DrawdownPct(),
		})
	})

	mux.HandleFunc("/feed-health", func(w http.ResponseWriter, r *http.Request) {
		if s.feedHealth == nil {
			writeUnavailable(w)
			return
		}
		writeJSON(w, s.feedHealth.Snapshot())
	})

	mux.HandleFunc("/risk", func(w http.ResponseWriter, r *http.Request) {
		if s.risk == nil {
			writeUnavailable(w)
			return
		}
		writeJSON(w, map[string]interface{}{
			"day_pnl":         s.risk.DayPnL(),
			"circuit_tripped": s.risk.CircuitTripped(),
		})
	})

	mux.HandleFunc("/calibration", func(w http.ResponseWriter, r *http.Request) {
		if s.calibration == nil {
			writeUnavailable(w)
			return
		}
		sport := domain.Sport(r.URL.Query().Get("sport"))
		if sport == "" {
			sport = domain.SportSoccer
		}
		rows, err := s.calibration.LatestCalibrationFits(r.Context(), sport, 20)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, rows)
	})

	if promHandler != nil {
		mux.Handle("/metrics", promHandler)
	}

	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.ServeWS)
	}

	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, promHandler http.Handler) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Mux(promHandler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, map[string]string{"error": "unavailable"})
}
