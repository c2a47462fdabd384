package calibration

import (
	"context"
	"sort"
	"time"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/oddsignal/scorebot/internal/probmodel"
	"go.uber.org/zap"
)

// ResolvedPositionSource supplies closed positions within a training
// window, decoupling the trainer from the concrete store implementation.
type ResolvedPositionSource interface {
	ClosedPositions(ctx context.Context, sport domain.Sport, since time.Time) ([]domain.Position, error)
}

// DiagnosticsSink persists one row per fit attempt, promoted or not, per
// spec.md §4.9 step 5.
type DiagnosticsSink interface {
	RecordCalibrationFit(ctx context.Context, sport domain.Sport, result FitResult, promoted bool, sampleCount int, at time.Time) error
}

// Trainer periodically refits each sport's Platt coefficients from
// resolved-outcome history and promotes them only on measured out-of-
// sample improvement, per spec.md §4.9.
type Trainer struct {
	positions   ResolvedPositionSource
	diagnostics DiagnosticsSink
	calibrator  *probmodel.Calibrator

	interval       time.Duration
	trainingWindow time.Duration
	minSamples     int
	minImprovement float64

	log *zap.Logger
}

// New returns a Trainer that refits every interval over a trainingWindow
// of resolved-outcome history, promoting a sport's coefficients only if
// both log-loss and Brier score improve by minImprovement and the sample
// count is at least minSamples.
func New(positions ResolvedPositionSource, diagnostics DiagnosticsSink, calibrator *probmodel.Calibrator, interval, trainingWindow time.Duration, minSamples int, minImprovement float64, log *zap.Logger) *Trainer {
	return &Trainer{
		positions: positions, diagnostics: diagnostics, calibrator: calibrator,
		interval: interval, trainingWindow: trainingWindow,
		minSamples: minSamples, minImprovement: minImprovement, log: log,
	}
}

var trainedSports = []domain.Sport{
	domain.SportSoccer, domain.SportNFL, domain.SportNBA,
	domain.SportMLB, domain.SportNHL, domain.SportTennis,
}

// Run ticks every t.interval, retraining every sport, until ctx is cancelled.
func (t *Trainer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.retrainAll(ctx)
		}
	}
}

func (t *Trainer) retrainAll(ctx context.Context) {
	for _, sport := range trainedSports {
		if err := t.retrainOne(ctx, sport); err != nil && t.log != nil {
			t.log.Warn("calibration retrain failed", zap.String("sport", string(sport)), zap.Error(err))
		}
	}
}

func (t *Trainer) retrainOne(ctx context.Context, sport domain.Sport) error {
	since := time.Now().Add(-t.trainingWindow)
	closed, err := t.positions.ClosedPositions(ctx, sport, since)
	if err != nil {
		return err
	}
	// Only a market-resolved close carries a known win/loss label; stop,
	// take-profit, feed-degradation, and max-age exits don't, per spec.md
	// §4.9 step 1.
	resolved := resolvedOnly(closed)
	if len(resolved) < t.minSamples {
		return nil
	}

	train, validate := timeOrderedSplit(resolved)
	trainSamples := toSamples(train)
	if len(trainSamples) < minSamplesForFit {
		return nil
	}

	result := Fit(trainSamples, 500, 0.2, 1e-3)
	if result == nil {
		return nil
	}

	// Evaluate on the held-out validation fold, not the training fold,
	// per spec.md §4.9 step 3's "evaluate ... on validation".
	validateSamples := toSamples(validate)
	result.Metrics = evaluateOnValidation(result.Coefficients, validateSamples)

	promoted := false
	llImprovement := result.Metrics.LogLossBefore - result.Metrics.LogLossAfter
	brImprovement := result.Metrics.BrierBefore - result.Metrics.BrierAfter
	if len(validateSamples) > 0 && llImprovement >= t.minImprovement && brImprovement >= t.minImprovement {
		t.calibrator.Promote(sport, probmodel.PlattCoefficients{A: result.Coefficients.A, B: result.Coefficients.B})
		promoted = true
	}

	if t.diagnostics != nil {
		if err := t.diagnostics.RecordCalibrationFit(ctx, sport, *result, promoted, len(resolved), time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// resolvedOnly filters to positions closed by market resolution — the only
// exit reason with a known bet-side win/loss outcome.
func resolvedOnly(closed []domain.Position) []domain.Position {
	out := make([]domain.Position, 0, len(closed))
	for _, p := range closed {
		if p.ExitReason == domain.ReasonMarketResolved {
			out = append(out, p)
		}
	}
	return out
}

// timeOrderedSplit partitions closed positions into time-ordered train
// (first 70%) and validation (last 30%) folds, per spec.md §4.9 step 2.
func timeOrderedSplit(closed []domain.Position) (train, validate []domain.Position) {
	sorted := make([]domain.Position, len(closed))
	copy(sorted, closed)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ClosedAt.Before(sorted[j].ClosedAt) })

	cut := int(float64(len(sorted)) * 0.7)
	return sorted[:cut], sorted[cut:]
}

func toSamples(positions []domain.Position) []Sample {
	samples := make([]Sample, 0, len(positions))
	for _, p := range positions {
		rawF, _ := p.EntryRawProb.Float64()
		outcome := 0.0
		if won(p) {
			outcome = 1.0
		}
		samples = append(samples, Sample{RawProb: rawF, Outcome: outcome})
	}
	return samples
}

// won reports whether the bet side won a resolved position. ExitPrice is 1
// for a winning resolution and 0 for a losing one (see position.Manager's
// close-on-resolution logic), so this simplifies to a threshold check.
func won(p domain.Position) bool {
	return p.ExitPrice.GreaterThan(p.EntryPrice)
}

func evaluateOnValidation(coef Coefficients, validate []Sample) Metrics {
	if len(validate) == 0 {
		return Metrics{}
	}
	n := float64(len(validate))
	var llBefore, llAfter, brBefore, brAfter float64
	for _, s := range validate {
		before := clampProb(s.RawProb)
		after := coef.Apply(s.RawProb)
		llBefore += logLoss(before, s.Outcome)
		llAfter += logLoss(after, s.Outcome)
		brBefore += (before - s.Outcome) * (before - s.Outcome)
		brAfter += (after - s.Outcome) * (after - s.Outcome)
	}
	return Metrics{
		LogLossBefore: llBefore / n, LogLossAfter: llAfter / n,
		BrierBefore: brBefore / n, BrierAfter: brAfter / n,
	}
}
