package probmodel

import (
	"github.com/oddsignal/scorebot/internal/domain"
)

// clutchCoefficient grows as remaining time shrinks, giving a steeper
// late-game slope per spec.md §4.1's NFL/NBA/NHL description. progress is
// in [0,1] where 1 means the clock has fully run out.
func clutchCoefficient(base, lateBoost, progress float64) float64 {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return base + lateBoost*progress
}

const (
	nflRegulationSeconds = 60 * 60 // 4x15min quarters
	nbaRegulationSeconds = 48 * 60
	nhlRegulationSeconds = 60 * 60
)

// nflPHome: logistic in (score_diff, time_remaining, possession).
func nflPHome(s domain.GameState) float64 {
	diff := float64(s.HomePoints - s.AwayPoints)
	elapsed := nflRegulationSeconds - s.SecondsRemaining
	progress := float64(elapsed) / float64(nflRegulationSeconds)
	coef := clutchCoefficient(0.018, 0.11, progress)

	possBoost := 0.0
	if s.PossessionHome {
		possBoost = 0.08
	} else {
		possBoost = -0.04
	}
	return sigmoid(coef*diff + HomeAdvantage + possBoost)
}

// nbaPHome: logistic in (score_diff, seconds_remaining), steeper late-game slope.
func nbaPHome(s domain.GameState) float64 {
	diff := float64(s.HomePoints - s.AwayPoints)
	elapsed := nbaRegulationSeconds - s.SecondsRemaining
	progress := float64(elapsed) / float64(nbaRegulationSeconds)
	coef := clutchCoefficient(0.05, 0.55, progress)
	return sigmoid(coef*diff + HomeAdvantage)
}

// nhlPHome: logistic in (goal_diff, period, seconds_remaining).
func nhlPHome(s domain.GameState) float64 {
	diff := float64(s.HomeGoals - s.AwayGoals)
	elapsed := nhlRegulationSeconds - s.SecondsRemaining
	progress := float64(elapsed) / float64(nhlRegulationSeconds)
	coef := clutchCoefficient(0.30, 1.2, progress)
	return sigmoid(coef*diff + HomeAdvantage)
}

// mlbPHome: logistic in (run_diff, inning_half_index, outs), adjusted for
// batting team by a logit offset of 0.01 per out: toward home while the
// away team bats, toward away while the home team bats. The run-diff
// coefficient does not depend on which team is batting.
func mlbPHome(s domain.GameState) float64 {
	diff := float64(s.HomeRuns - s.AwayRuns)

	inning := s.Inning
	if inning < 1 {
		inning = 1
	}
	halfIndex := float64(inning-1)*2 + boolToFloat(!s.TopOfInning) // bottom halves advance progress further
	totalHalves := 17.0                                           // 9 innings * 2 - 1 (no bottom of 9th if home leads)
	progress := halfIndex / totalHalves

	coef := clutchCoefficient(0.12, 0.9, progress)

	outsAdj := float64(s.Outs) * 0.01
	battingAdj := 0.0
	if s.TopOfInning {
		// away team batting: extra outs slightly favor home (defense)
		battingAdj = outsAdj
	} else {
		battingAdj = -outsAdj
	}

	return sigmoid(coef*diff + HomeAdvantage + battingAdj)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
