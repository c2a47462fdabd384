package store

import (
	"context"
	"sync"
	"time"

	"github.com/oddsignal/scorebot/internal/calibration"
	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store, used by tests and local/dry-run
// deployments that don't need durability.
type MemoryStore struct {
	mu sync.Mutex

	fixtures    map[string]domain.Fixture
	scoreEvents map[string][]domain.ScoreEvent // keyed by fixture id
	markets     map[string]domain.Market
	positions   map[string]domain.Position
	balances    []balanceRow
	diagnostics map[domain.Sport][]CalibrationDiagnostic
}

type balanceRow struct {
	amount decimal.Decimal
	at     time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fixtures:    make(map[string]domain.Fixture),
		scoreEvents: make(map[string][]domain.ScoreEvent),
		markets:     make(map[string]domain.Market),
		positions:   make(map[string]domain.Position),
		diagnostics: make(map[domain.Sport][]CalibrationDiagnostic),
	}
}

func (s *MemoryStore) UpsertFixture(ctx context.Context, fx domain.Fixture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures[fx.ID] = fx
	return nil
}

func (s *MemoryStore) GetFixture(ctx context.Context, id string) (domain.Fixture, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fx, ok := s.fixtures[id]
	return fx, ok, nil
}

func (s *MemoryStore) InsertScoreEvent(ctx context.Context, ev domain.ScoreEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreEvents[ev.FixtureID] = append(s.scoreEvents[ev.FixtureID], ev)
	return nil
}

func (s *MemoryStore) ScoreEventsSince(ctx context.Context, fixtureID string, since time.Time) ([]domain.ScoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScoreEvent
	for _, ev := range s.scoreEvents[fixtureID] {
		if ev.EventTimestamp.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertMarket(ctx context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *MemoryStore) GetMarket(ctx context.Context, id string) (domain.Market, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	return m, ok, nil
}

func (s *MemoryStore) InsertPosition(ctx context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.ID] = p
	return nil
}

func (s *MemoryStore) UpdatePosition(ctx context.Context, p domain.Position) error {
	return s.InsertPosition(ctx, p)
}

func (s *MemoryStore) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, p := range s.positions {
		if p.State != domain.PositionClosed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ClosedPositions(ctx context.Context, sport domain.Sport, since time.Time) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, p := range s.positions {
		if p.State == domain.PositionClosed && p.Sport == sport && p.ClosedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordBalance(ctx context.Context, balance decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = append(s.balances, balanceRow{amount: balance, at: at})
	return nil
}

func (s *MemoryStore) LatestBalance(ctx context.Context) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.balances) == 0 {
		return decimal.Zero, false, nil
	}
	latest := s.balances[0]
	for _, b := range s.balances[1:] {
		if b.at.After(latest.at) {
			latest = b
		}
	}
	return latest.amount, true, nil
}

func (s *MemoryStore) RecordCalibrationFit(ctx context.Context, sport domain.Sport, result calibration.FitResult, promoted bool, sampleCount int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics[sport] = append(s.diagnostics[sport], CalibrationDiagnostic{
		Sport: sport, A: result.Coefficients.A, B: result.Coefficients.B,
		LogLossBefore: result.Metrics.LogLossBefore, LogLossAfter: result.Metrics.LogLossAfter,
		BrierBefore: result.Metrics.BrierBefore, BrierAfter: result.Metrics.BrierAfter,
		Promoted: promoted, SampleCount: sampleCount, FittedAt: at,
	})
	return nil
}

func (s *MemoryStore) LatestCalibrationFits(ctx context.Context, sport domain.Sport, limit int) ([]CalibrationDiagnostic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.diagnostics[sport]
	if len(rows) <= limit {
		return append([]CalibrationDiagnostic(nil), rows...), nil
	}
	return append([]CalibrationDiagnostic(nil), rows[len(rows)-limit:]...), nil
}
