package scorefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"golang.org/x/time/rate"
)

// wireSnapshot is the JSON shape a score provider's list_live endpoint
// returns, per spec.md §6: "list_live(sport_set) -> [{fixture_id, sport,
// home, away, state, provider_ts}]". Providers are out of scope in detail
// (spec.md §1); this is one concrete implementation of the contract,
// grounded in pkg/polymarket/gamma/client.go's rate-limited HTTP-client
// shape rather than any specific vendor's schema.
type wireSnapshot struct {
	FixtureID  string    `json:"fixture_id"`
	Sport      string    `json:"sport"`
	League     string    `json:"league"`
	Home       string    `json:"home"`
	Away       string    `json:"away"`
	State      wireState `json:"state"`
	ProviderTS int64     `json:"provider_ts"` // unix millis
}

type wireState struct {
	HomeGoals        int  `json:"home_goals"`
	AwayGoals        int  `json:"away_goals"`
	MinuteOrPeriod   int  `json:"minute_or_period"`
	HomePoints       int  `json:"home_points"`
	AwayPoints       int  `json:"away_points"`
	Quarter          int  `json:"quarter"`
	SecondsRemaining int  `json:"seconds_remaining"`
	PossessionHome   bool `json:"possession_home"`
	HomeRuns         int  `json:"home_runs"`
	AwayRuns         int  `json:"away_runs"`
	Inning           int  `json:"inning"`
	TopOfInning      bool `json:"top_of_inning"`
	Outs             int  `json:"outs"`
	HomeSets         int  `json:"home_sets"`
	AwaySets         int  `json:"away_sets"`
	HomeGames        int  `json:"home_games"`
	AwayGames        int  `json:"away_games"`
	ServerHome       bool `json:"server_home"`
}

func (s wireState) toDomain() domain.GameState {
	return domain.GameState{
		HomeGoals: s.HomeGoals, AwayGoals: s.AwayGoals, MinuteOrPeriod: s.MinuteOrPeriod,
		HomePoints: s.HomePoints, AwayPoints: s.AwayPoints, Quarter: s.Quarter,
		SecondsRemaining: s.SecondsRemaining, PossessionHome: s.PossessionHome,
		HomeRuns: s.HomeRuns, AwayRuns: s.AwayRuns, Inning: s.Inning,
		TopOfInning: s.TopOfInning, Outs: s.Outs,
		HomeSets: s.HomeSets, AwaySets: s.AwaySets,
		HomeGames: s.HomeGames, AwayGames: s.AwayGames, ServerHome: s.ServerHome,
	}
}

// HTTPProvider implements the Score Provider external interface of
// spec.md §6 against a REST endpoint returning a JSON array of
// wireSnapshot values. It tolerates partial results and never crashes the
// feed on a single bad fixture (spec.md §4.2 failure semantics).
type HTTPProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// HTTPProviderOption configures an HTTPProvider, following
// pkg/polymarket/gamma/client.go's functional-options idiom.
type HTTPProviderOption func(*HTTPProvider)

func WithProviderHTTPClient(c *http.Client) HTTPProviderOption {
	return func(p *HTTPProvider) { p.httpClient = c }
}

func WithProviderRateLimit(rps float64, burst int) HTTPProviderOption {
	return func(p *HTTPProvider) { p.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewHTTPProvider returns a Provider named name, polling baseURL+"/live".
func NewHTTPProvider(name, baseURL string, opts ...HTTPProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPProvider) Name() string { return p.name }

// ListLive fetches every live fixture for the given sports. A malformed
// or missing individual field degrades that fixture rather than failing
// the whole call; an HTTP or decode failure fails the whole call, which
// the aggregator tolerates as long as another provider succeeds.
func (p *HTTPProvider) ListLive(ctx context.Context, sports []domain.Sport) ([]FixtureSnapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", p.name, err)
	}

	params := url.Values{}
	for _, s := range sports {
		params.Add("sport", string(s))
	}
	u := p.baseURL + "/live"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: api error %d: %s", p.name, resp.StatusCode, string(body))
	}

	var wire []wireSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.name, err)
	}

	out := make([]FixtureSnapshot, 0, len(wire))
	for _, w := range wire {
		if w.FixtureID == "" || w.Sport == "" {
			continue // partial/malformed row, tolerated
		}
		out = append(out, FixtureSnapshot{
			FixtureID:  w.FixtureID,
			Sport:      domain.Sport(w.Sport),
			League:     w.League,
			HomeTeam:   w.Home,
			AwayTeam:   w.Away,
			State:      w.State.toDomain(),
			ProviderTS: time.UnixMilli(w.ProviderTS),
		})
	}
	return out, nil
}
