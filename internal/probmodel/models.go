// Package probmodel implements the per-sport win-probability models of
// spec.md §4.1: pure functions mapping game state to the home side's win
// probability, clamped to [0.03, 0.97], plus the Platt-scaling Calibrator
// that sits on top of them. Formulas are re-expressed in Go from
// original_source/src/bot/win_probability.rs, not translated line for line.
package probmodel

import (
	"math"

	"github.com/oddsignal/scorebot/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// MinProb and MaxProb bound every model's raw output per spec.md §3/§4.1.
	MinProb = 0.03
	MaxProb = 0.97

	// HomeAdvantage is a constant additive logit boost applied across the
	// logistic-family models, grounded on original_source's HOME_ADVANTAGE.
	HomeAdvantage = 0.035
)

func clamp(p float64) float64 {
	if p < MinProb {
		return MinProb
	}
	if p > MaxProb {
		return MaxProb
	}
	return p
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func logit(p float64) float64 {
	if p <= 0 {
		p = 1e-9
	}
	if p >= 1 {
		p = 1 - 1e-9
	}
	return math.Log(p / (1 - p))
}

// PHomeWins dispatches to the model for the given sport tag, returning the
// home side's raw (uncalibrated) win probability.
func PHomeWins(sport domain.Sport, state domain.GameState) decimal.Decimal {
	var p float64
	switch sport {
	case domain.SportSoccer:
		p = soccerPHome(state)
	case domain.SportNFL:
		p = nflPHome(state)
	case domain.SportNBA:
		p = nbaPHome(state)
	case domain.SportMLB:
		p = mlbPHome(state)
	case domain.SportNHL:
		p = nhlPHome(state)
	case domain.SportTennis:
		p = tennisPHome(state)
	default:
		p = fallbackPHome(scoreDiffFor(sport, state))
	}
	return decimal.NewFromFloat(clamp(p))
}

// scoreDiffFor extracts a home-minus-away differential for the known
// sports. PHomeWins calls it only for unrecognized sports, for which it
// returns 0, so the fallback model always sees a level score.
func scoreDiffFor(sport domain.Sport, s domain.GameState) int {
	switch sport {
	case domain.SportSoccer, domain.SportNHL:
		return s.HomeGoals - s.AwayGoals
	case domain.SportNFL, domain.SportNBA:
		return s.HomePoints - s.AwayPoints
	case domain.SportMLB:
		return s.HomeRuns - s.AwayRuns
	default:
		return 0
	}
}

// fallbackPHome is the shallow-slope logistic used for unrecognized sports,
// per spec.md §4.1 "Fallback".
func fallbackPHome(scoreDiff int) float64 {
	const shallowSlope = 0.12
	return sigmoid(shallowSlope*float64(scoreDiff) + HomeAdvantage)
}
