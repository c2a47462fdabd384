package scorefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oddsignal/scorebot/internal/domain"
)

func TestHTTPProviderListLive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/live" {
			t.Errorf("expected path /live, got %s", r.URL.Path)
		}
		if got := r.URL.Query()["sport"]; len(got) != 2 {
			t.Errorf("expected 2 sport params, got %v", got)
		}

		snapshots := []wireSnapshot{
			{
				FixtureID: "fx1", Sport: "nba", League: "NBA", Home: "Lakers", Away: "Celtics",
				State:      wireState{HomePoints: 40, AwayPoints: 38, Quarter: 2},
				ProviderTS: 1700000000000,
			},
			{
				// malformed row, tolerated per §4.2 failure semantics.
				FixtureID: "", Sport: "nba",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshots)
	}))
	defer server.Close()

	p := NewHTTPProvider("test-provider", server.URL, WithProviderRateLimit(100, 10))

	out, err := p.ListLive(context.Background(), []domain.Sport{domain.SportNBA, domain.SportNFL})
	if err != nil {
		t.Fatalf("ListLive failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 tolerated snapshot, got %d", len(out))
	}
	if out[0].FixtureID != "fx1" || out[0].HomeTeam != "Lakers" {
		t.Errorf("unexpected snapshot: %+v", out[0])
	}
	if out[0].State.HomePoints != 40 || out[0].State.Quarter != 2 {
		t.Errorf("wire state not mapped correctly: %+v", out[0].State)
	}
}

func TestHTTPProviderListLiveAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	p := NewHTTPProvider("test-provider", server.URL)

	_, err := p.ListLive(context.Background(), []domain.Sport{domain.SportSoccer})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestHTTPProviderName(t *testing.T) {
	p := NewHTTPProvider("provider-a", "http://example.invalid")
	if p.Name() != "provider-a" {
		t.Errorf("expected provider-a, got %s", p.Name())
	}
}
