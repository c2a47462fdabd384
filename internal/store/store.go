// Package store defines the persistence interface for the trading engine.
// PostgreSQL is the source of truth; Redis provides a read-through cache
// layer; an in-memory implementation backs tests and local/dry-run use.
package store

import (
	"context"
	"time"

	"github.com/oddsignal/scorebot/internal/calibration"
	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is the persistence interface spec.md §6 names as "durable state":
// fixtures, score events, markets, positions, balance history, and model
// calibrations.
type Store interface {
	UpsertFixture(ctx context.Context, fx domain.Fixture) error
	GetFixture(ctx context.Context, id string) (domain.Fixture, bool, error)

	InsertScoreEvent(ctx context.Context, ev domain.ScoreEvent) error
	ScoreEventsSince(ctx context.Context, fixtureID string, since time.Time) ([]domain.ScoreEvent, error)

	UpsertMarket(ctx context.Context, m domain.Market) error
	GetMarket(ctx context.Context, id string) (domain.Market, bool, error)

	InsertPosition(ctx context.Context, p domain.Position) error
	UpdatePosition(ctx context.Context, p domain.Position) error
	OpenPositions(ctx context.Context) ([]domain.Position, error)
	ClosedPositions(ctx context.Context, sport domain.Sport, since time.Time) ([]domain.Position, error)

	RecordBalance(ctx context.Context, balance decimal.Decimal, at time.Time) error
	LatestBalance(ctx context.Context) (decimal.Decimal, bool, error)

	RecordCalibrationFit(ctx context.Context, sport domain.Sport, result calibration.FitResult, promoted bool, sampleCount int, at time.Time) error
	LatestCalibrationFits(ctx context.Context, sport domain.Sport, limit int) ([]CalibrationDiagnostic, error)
}

// CalibrationDiagnostic is one persisted fit attempt, per spec.md §4.9 step 5.
type CalibrationDiagnostic struct {
	Sport       domain.Sport
	A, B        float64
	LogLossBefore, LogLossAfter float64
	BrierBefore, BrierAfter     float64
	Promoted    bool
	SampleCount int
	FittedAt    time.Time
}
