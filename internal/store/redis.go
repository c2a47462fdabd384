package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/oddsignal/scorebot/internal/calibration"
	"github.com/oddsignal/scorebot/internal/domain"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache over fixtures and markets, the two lookups the Decision Engine and
// Position Manager hit on every tick. Writes go to the primary store and
// then refresh the cached copy; reads check Redis first then fall back to
// primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore wraps primary with a Redis read-through cache.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

// --- Write-through ---

func (s *CachedStore) UpsertFixture(ctx context.Context, fx domain.Fixture) error {
	if err := s.primary.UpsertFixture(ctx, fx); err != nil {
		return err
	}
	s.cacheFixture(ctx, fx)
	return nil
}

func (s *CachedStore) UpsertMarket(ctx context.Context, m domain.Market) error {
	if err := s.primary.UpsertMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

// --- Read-through ---

func (s *CachedStore) GetFixture(ctx context.Context, id string) (domain.Fixture, bool, error) {
	data, err := s.rdb.Get(ctx, fixtureKey(id)).Bytes()
	if err == nil {
		var fx domain.Fixture
		if json.Unmarshal(data, &fx) == nil {
			return fx, true, nil
		}
	}

	fx, ok, err := s.primary.GetFixture(ctx, id)
	if err != nil || !ok {
		return fx, ok, err
	}
	s.cacheFixture(ctx, fx)
	return fx, true, nil
}

func (s *CachedStore) GetMarket(ctx context.Context, id string) (domain.Market, bool, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m domain.Market
		if json.Unmarshal(data, &m) == nil {
			return m, true, nil
		}
	}

	m, ok, err := s.primary.GetMarket(ctx, id)
	if err != nil || !ok {
		return m, ok, err
	}
	s.cacheMarket(ctx, m)
	return m, true, nil
}

// --- Passthrough ---

func (s *CachedStore) InsertScoreEvent(ctx context.Context, ev domain.ScoreEvent) error {
	return s.primary.InsertScoreEvent(ctx, ev)
}

func (s *CachedStore) ScoreEventsSince(ctx context.Context, fixtureID string, since time.Time) ([]domain.ScoreEvent, error) {
	return s.primary.ScoreEventsSince(ctx, fixtureID, since)
}

func (s *CachedStore) InsertPosition(ctx context.Context, p domain.Position) error {
	return s.primary.InsertPosition(ctx, p)
}

func (s *CachedStore) UpdatePosition(ctx context.Context, p domain.Position) error {
	return s.primary.UpdatePosition(ctx, p)
}

func (s *CachedStore) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	return s.primary.OpenPositions(ctx)
}

func (s *CachedStore) ClosedPositions(ctx context.Context, sport domain.Sport, since time.Time) ([]domain.Position, error) {
	return s.primary.ClosedPositions(ctx, sport, since)
}

func (s *CachedStore) RecordBalance(ctx context.Context, balance decimal.Decimal, at time.Time) error {
	return s.primary.RecordBalance(ctx, balance, at)
}

func (s *CachedStore) LatestBalance(ctx context.Context) (decimal.Decimal, bool, error) {
	return s.primary.LatestBalance(ctx)
}

func (s *CachedStore) RecordCalibrationFit(ctx context.Context, sport domain.Sport, result calibration.FitResult, promoted bool, sampleCount int, at time.Time) error {
	return s.primary.RecordCalibrationFit(ctx, sport, result, promoted, sampleCount, at)
}

func (s *CachedStore) LatestCalibrationFits(ctx context.Context, sport domain.Sport, limit int) ([]CalibrationDiagnostic, error) {
	return s.primary.LatestCalibrationFits(ctx, sport, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cacheFixture(ctx context.Context, fx domain.Fixture) {
	if data, err := json.Marshal(fx); err == nil {
		s.rdb.Set(ctx, fixtureKey(fx.ID), data, s.ttl)
	}
}

func (s *CachedStore) cacheMarket(ctx context.Context, m domain.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func fixtureKey(id string) string { return fmt.Sprintf("fixture:%s", id) }
func marketKey(id string) string  { return fmt.Sprintf("market:%s", id) }
