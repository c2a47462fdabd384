package probmodel

import (
	"sync"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

// PlattCoefficients is a single sport's (a,b) logistic correction,
// p_cal = sigmoid(a*logit(p_raw) + b). Identity is a=1, b=0.
type PlattCoefficients struct {
	A float64
	B float64
}

// Identity returns the no-op calibration used until a sport is promoted.
func Identity() PlattCoefficients {
	return PlattCoefficients{A: 1, B: 0}
}

// Apply runs the Platt correction on a raw probability and re-clamps to
// [MinProb, MaxProb] per spec.md §4.1.
func (c PlattCoefficients) Apply(pRaw float64) float64 {
	x := c.A*logit(pRaw) + c.B
	return clamp(sigmoid(x))
}

// Calibrator holds the live coefficients for every sport, safe for
// concurrent reads from the Decision Engine and writes from the
// Calibration Trainer.
type Calibrator struct {
	mu    sync.RWMutex
	coefs map[domain.Sport]PlattCoefficients
}

// NewCalibrator returns a Calibrator with identity coefficients for every
// sport, matching spec.md §4.1's "until a retrain promotes new ones".
func NewCalibrator() *Calibrator {
	return &Calibrator{
		coefs: map[domain.Sport]PlattCoefficients{
			domain.SportSoccer: Identity(),
			domain.SportNFL:    Identity(),
			domain.SportNBA:    Identity(),
			domain.SportMLB:    Identity(),
			domain.SportNHL:    Identity(),
			domain.SportTennis: Identity(),
		},
	}
}

// Calibrated returns the calibrated win probability for a sport/state pair.
func (c *Calibrator) Calibrated(sport domain.Sport, state domain.GameState) decimal.Decimal {
	raw := PHomeWins(sport, state)
	rawF, _ := raw.Float64()

	c.mu.RLock()
	coef, ok := c.coefs[sport]
	c.mu.RUnlock()
	if !ok {
		coef = Identity()
	}
	return decimal.NewFromFloat(coef.Apply(rawF))
}

// RawOnly returns the uncalibrated model probability, used by callers that
// need to record entry telemetry distinguishing raw from calibrated p.
func (c *Calibrator) RawOnly(sport domain.Sport, state domain.GameState) decimal.Decimal {
	return PHomeWins(sport, state)
}

// Promote installs new coefficients for a sport, used by the Calibration
// Trainer after a fit passes its promotion gate (spec.md §4.9 step 4).
func (c *Calibrator) Promote(sport domain.Sport, coef PlattCoefficients) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coefs[sport] = coef
}

// Coefficients returns the currently-active coefficients for a sport.
func (c *Calibrator) Coefficients(sport domain.Sport) PlattCoefficients {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if coef, ok := c.coefs[sport]; ok {
		return coef
	}
	return Identity()
}
