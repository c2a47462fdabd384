// Package config loads the engine's runtime configuration from environment
// variables, following the plain os.Getenv-plus-typed-defaults shape used
// throughout the example pack (no config library appears anywhere in it).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Config holds every overridable parameter named in spec.md §6, plus the
// supplemented latency-alpha and per-event budget fields from DESIGN.md.
type Config struct {
	DryRun bool

	InitialBalance    decimal.Decimal
	KellyFraction     decimal.Decimal
	StopLossFraction  decimal.Decimal
	TakeProfitFraction decimal.Decimal
	MinEdge           decimal.Decimal
	MinEdgeFeedPenalty decimal.Decimal // DESIGN.md open question 2

	PollInterval     time.Duration
	DedupWindow      time.Duration // default 8s — see DESIGN.md open question 7
	StaleFixtureTTL  time.Duration

	MaxEntryQuoteDivergence decimal.Decimal // default 0.04 — see DESIGN.md open question 6
	WSPriceMaxAge           time.Duration
	MaxPositionAge          time.Duration
	MaxEventAge             time.Duration

	ShiftThreshold map[string]decimal.Decimal // per-sport, spec.md §4.6 step 2
	WeakConsensusFactor decimal.Decimal

	FlattenAfterBadFeed time.Duration

	// Risk Book caps (spec.md §4.8, §6)
	PerEventCap          decimal.Decimal
	PerSportCap          decimal.Decimal
	PerTeamCap           decimal.Decimal
	PerDayDrawdownCap    decimal.Decimal
	PerDayTradeCap       int
	MaxPositionsPerEvent int // supplemented, DESIGN.md open question 8

	// Correlation tiers, DESIGN.md open question 4
	CorrelationSameTeam  decimal.Decimal
	CorrelationSameLeague decimal.Decimal
	CorrelationSameSport decimal.Decimal

	// Feed-health
	FeedHealthAlpha     decimal.Decimal
	FeedHealthPauseThreshold decimal.Decimal
	FeedHealthCooldown  time.Duration
	FeedHealthSustainWindow time.Duration
	// FeedHealthFlattenThreshold is the Position Manager's own §4.7 flatten
	// threshold, distinct from FeedHealthPauseThreshold (§4.5, gates new
	// entries only).
	FeedHealthFlattenThreshold decimal.Decimal

	// Latency-alpha pre-gate, SPEC_FULL.md §4.1.a
	LatencyAlphaGateEnabled   bool
	LatencyMaxScoreAgeMS      int64
	LatencyMaxPricedInRatio   decimal.Decimal

	// Retention
	ScoreEventRetention time.Duration
	BalanceRetention    time.Duration

	// Calibration trainer
	CalibrationInterval  time.Duration
	CalibrationMinSamples int
	CalibrationMinImprovement decimal.Decimal

	// Persistence / cache
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	// HTTP / dashboard
	HTTPAddr string

	ServiceName string
	Environment string

	// External collaborators (spec.md §6 contracts; concrete endpoints
	// are ours to choose since the clients themselves are out of scope)
	ScoreProviderURLs []string // comma-separated SCORE_PROVIDER_URLS env var
	PolymarketGammaURL string
	PolymarketCLOBURL  string
	PolymarketWSURL    string

	Sports []domain.Sport
}

// Load builds a Config from environment variables, falling back to
// spec.md's stated defaults (and the DESIGN.md-resolved values where
// spec.md and original_source disagree).
func Load() (*Config, error) {
	c := &Config{
		DryRun: getBool("DRY_RUN", true),

		InitialBalance:     getDecimal("INITIAL_BALANCE", "100.0"),
		KellyFraction:      getDecimal("KELLY_FRACTION", "0.25"),
		StopLossFraction:   getDecimal("STOP_LOSS_FRACTION", "0.50"),
		TakeProfitFraction: getDecimal("TAKE_PROFIT_FRACTION", "0.30"),
		MinEdge:            getDecimal("MIN_EDGE", "0.05"),
		MinEdgeFeedPenalty: getDecimal("MIN_EDGE_FEED_PENALTY", "0.10"),

		PollInterval:    getDuration("POLL_INTERVAL_SECS", 5*time.Second),
		DedupWindow:     getDurationMS("DEDUP_WINDOW_MS", 8000*time.Millisecond),
		StaleFixtureTTL: getDuration("STALE_FIXTURE_TTL_SECS", 4*time.Hour),

		MaxEntryQuoteDivergence: getDecimal("MAX_ENTRY_QUOTE_DIVERGENCE", "0.04"),
		WSPriceMaxAge:           getDurationMS("WS_PRICE_MAX_AGE_MS", 2500*time.Millisecond),
		MaxPositionAge:          getDuration("MAX_POSITION_AGE_SECS", 2*time.Hour),
		MaxEventAge:             getDuration("MAX_EVENT_AGE_SECS", 30*time.Second),

		WeakConsensusFactor: getDecimal("WEAK_CONSENSUS_FACTOR", "1.5"),
		FlattenAfterBadFeed: getDuration("FLATTEN_AFTER_BAD_FEED_SECS", 120*time.Second),

		PerEventCap:          getDecimal("PER_EVENT_CAP", "30"),
		PerSportCap:          getDecimal("PER_SPORT_CAP", "60"),
		PerTeamCap:           getDecimal("PER_TEAM_CAP", "40"),
		PerDayDrawdownCap:    getDecimal("PER_DAY_DRAWDOWN_CAP", "25"),
		PerDayTradeCap:       getInt("PER_DAY_TRADE_CAP", 100),
		MaxPositionsPerEvent: getInt("MAX_POSITIONS_PER_EVENT", 2),

		CorrelationSameTeam:   getDecimal("CORRELATION_SAME_TEAM", "0.70"),
		CorrelationSameLeague: getDecimal("CORRELATION_SAME_LEAGUE", "0.35"),
		CorrelationSameSport:  getDecimal("CORRELATION_SAME_SPORT", "0.20"),

		FeedHealthAlpha:          getDecimal("FEED_HEALTH_ALPHA", "0.2"),
		FeedHealthPauseThreshold: getDecimal("FEED_HEALTH_PAUSE_THRESHOLD", "0.35"),
		FeedHealthCooldown:       getDuration("FEED_HEALTH_COOLDOWN_SECS", 5*time.Minute),
		FeedHealthSustainWindow:  getDuration("FEED_HEALTH_SUSTAIN_SECS", 60*time.Second),
		FeedHealthFlattenThreshold: getDecimal("FEED_HEALTH_FLATTEN_THRESHOLD", "0.20"),

		LatencyAlphaGateEnabled: getBool("LATENCY_ALPHA_GATE_ENABLED", true),
		LatencyMaxScoreAgeMS:    getInt64("LATENCY_MAX_SCORE_AGE_MS", 4000),
		LatencyMaxPricedInRatio: getDecimal("LATENCY_MAX_PRICED_IN_RATIO", "0.80"),

		ScoreEventRetention: time.Duration(getInt("SCORE_EVENT_RETENTION_DAYS", 14)) * 24 * time.Hour,
		BalanceRetention:    time.Duration(getInt("BALANCE_RETENTION_DAYS", 30)) * 24 * time.Hour,

		CalibrationInterval:       getDuration("CALIBRATION_INTERVAL_SECS", time.Hour),
		CalibrationMinSamples:     getInt("CALIBRATION_MIN_SAMPLES", 40),
		CalibrationMinImprovement: getDecimal("CALIBRATION_MIN_IMPROVEMENT", "0.01"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CacheTTL:    getDuration("CACHE_TTL_SECS", 30*time.Second),

		HTTPAddr: getString("HTTP_ADDR", ":8090"),

		ServiceName: getString("SERVICE_NAME", "scorebot"),
		Environment: getString("ENVIRONMENT", "development"),

		ScoreProviderURLs:  getStringSlice("SCORE_PROVIDER_URLS", nil),
		PolymarketGammaURL: getString("POLYMARKET_GAMMA_URL", ""),
		PolymarketCLOBURL:  getString("POLYMARKET_CLOB_URL", ""),
		PolymarketWSURL:    getString("POLYMARKET_WS_URL", ""),

		Sports: getSports("SPORTS", []domain.Sport{
			domain.SportSoccer, domain.SportNFL, domain.SportNBA,
			domain.SportMLB, domain.SportNHL, domain.SportTennis,
		}),
	}

	c.ShiftThreshold = map[string]decimal.Decimal{
		"soccer": getDecimal("SHIFT_THRESHOLD_SOCCER", "0.04"),
		"nfl":    getDecimal("SHIFT_THRESHOLD_NFL", "0.03"),
		"nba":    getDecimal("SHIFT_THRESHOLD_NBA", "0.015"),
		"mlb":    getDecimal("SHIFT_THRESHOLD_MLB", "0.025"),
		"nhl":    getDecimal("SHIFT_THRESHOLD_NHL", "0.025"),
		"tennis": getDecimal("SHIFT_THRESHOLD_TENNIS", "0.05"),
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Validate range-checks the loaded configuration, in the spirit of
// original_source/src/config.rs's validate() method.
func (c *Config) Validate() error {
	zero := decimal.Zero
	one := decimal.NewFromInt(1)

	checks := []struct {
		name string
		v    decimal.Decimal
	}{
		{"KellyFraction", c.KellyFraction},
		{"StopLossFraction", c.StopLossFraction},
		{"TakeProfitFraction", c.TakeProfitFraction},
		{"MinEdge", c.MinEdge},
		{"MaxEntryQuoteDivergence", c.MaxEntryQuoteDivergence},
	}
	for _, chk := range checks {
		if chk.v.LessThan(zero) || chk.v.GreaterThan(one) {
			return fmt.Errorf("%s must be in [0,1], got %s", chk.name, chk.v)
		}
	}
	if c.InitialBalance.LessThanOrEqual(zero) {
		return fmt.Errorf("InitialBalance must be positive")
	}
	if c.PerDayTradeCap <= 0 {
		return fmt.Errorf("PerDayTradeCap must be positive")
	}
	if c.MaxPositionsPerEvent <= 0 {
		return fmt.Errorf("MaxPositionsPerEvent must be positive")
	}
	if c.PollInterval <= 0 || c.DedupWindow <= 0 {
		return fmt.Errorf("PollInterval and DedupWindow must be positive")
	}
	return nil
}

func getStringSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getSports(key string, def []domain.Sport) []domain.Sport {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]domain.Sport, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, domain.Sport(p))
		}
	}
	return out
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getDecimal(key, def string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		d, _ = decimal.NewFromString(def)
	}
	return d
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(secs) * time.Second
}

func getDurationMS(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
