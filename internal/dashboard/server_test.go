package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

type fakePositions struct{ positions []domain.Position }

func (f fakePositions) Positions() []domain.Position { return f.positions }

type fakeBalance struct{ available, drawdown decimal.Decimal }

func (f fakeBalance) Available() decimal.Decimal   { return f.available }
func (f fakeBalance) DrawdownPct() decimal.Decimal { return f.drawdown }

type fakeFeedHealth struct{ snap domain.FeedHealth }

func (f fakeFeedHealth) Snapshot() domain.FeedHealth { return f.snap }

type fakeRisk struct {
	dayPnL   decimal.Decimal
	tripped  bool
}

func (f fakeRisk) DayPnL() decimal.Decimal { return f.dayPnL }
func (f fakeRisk) CircuitTripped() bool    { return f.tripped }

type fakeCalibration struct{ rows []CalibrationRow }

func (f fakeCalibration) LatestCalibrationFits(ctx context.Context, sport domain.Sport, limit int) ([]CalibrationRow, error) {
	return f.rows, nil
}

func TestHealthEndpointReturnsOK(t *testing.T) {
	s := New(":0", nil, nil, nil, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Mux(nil).ServeHTTP(rr, req)

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok, got %v", body)
	}
}

func TestPositionsEndpointReturnsUnavailableWhenNilSource(t *testing.T) {
	s := New(":0", nil, nil, nil, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	s.Mux(nil).ServeHTTP(rr, req)

	var body map[string]string
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["error"] != "unavailable" {
		t.Fatalf("expected unavailable error, got %v", body)
	}
}

func TestPositionsEndpointReturnsPositions(t *testing.T) {
	src := fakePositions{positions: []domain.Position{{ID: "p1", Sport: domain.SportNBA}}}
	s := New(":0", nil, src, nil, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	s.Mux(nil).ServeHTTP(rr, req)

	var body []domain.Position
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0].ID != "p1" {
		t.Fatalf("expected one position p1, got %+v", body)
	}
}

func TestBalanceEndpointReturnsAvailableAndDrawdown(t *testing.T) {
	bal := fakeBalance{available: decimal.NewFromInt(90), drawdown: decimal.NewFromFloat(0.1)}
	s := New(":0", nil, nil, bal, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	s.Mux(nil).ServeHTTP(rr, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["available"] != "90" {
		t.Fatalf("expected available 90, got %v", body["available"])
	}
}

func TestFeedHealthEndpointReturnsSnapshot(t *testing.T) {
	fh := fakeFeedHealth{snap: domain.FeedHealth{Score: decimal.NewFromFloat(0.8), PauseNewEntries: false}}
	s := New(":0", nil, nil, nil, fh, nil, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/feed-health", nil)
	s.Mux(nil).ServeHTTP(rr, req)

	var body domain.FeedHealth
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Score.Equal(decimal.NewFromFloat(0.8)) {
		t.Fatalf("expected score 0.8, got %s", body.Score)
	}
}

func TestCalibrationEndpointReturnsRows(t *testing.T) {
	cal := fakeCalibration{rows: []CalibrationRow{{Sport: domain.SportNBA, Promoted: true, SampleCount: 50}}}
	s := New(":0", nil, nil, nil, nil, nil, cal, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/calibration?sport=nba", nil)
	s.Mux(nil).ServeHTTP(rr, req)

	var body []CalibrationRow
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || !body[0].Promoted {
		t.Fatalf("expected one promoted row, got %+v", body)
	}
}

func TestRiskEndpointReflectsCircuitState(t *testing.T) {
	rk := fakeRisk{dayPnL: decimal.NewFromInt(-5), tripped: true}
	s := New(":0", nil, nil, nil, nil, rk, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risk", nil)
	s.Mux(nil).ServeHTTP(rr, req)

	var body map[string]interface{}
	json.Unmarshal(rr.Body.Bytes(), &body)
	if tripped, _ := body["circuit_tripped"].(bool); !tripped {
		t.Fatalf("expected circuit_tripped true, got %v", body)
	}
}
