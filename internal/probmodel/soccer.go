package probmodel

import (
	"math"

	"github.com/oddsignal/scorebot/internal/domain"
)

// soccerTable holds win-probability values keyed by (goalDiffIndex,
// minuteBucket), goalDiffIndex in [0,8] for clipped diff [-4,4], minute
// bucket in [0,9] for 10-minute bins over a 90-minute match. Each value
// blends a logistic in goal difference (including HomeAdvantage) toward the
// outcome implied by the sign of the goal difference as the match
// approaches minute 90; a level score at kickoff sits at about 0.51.
var soccerTable = buildSoccerTable()

func buildSoccerTable() [9][10]float64 {
	var t [9][10]float64
	for diffIdx := 0; diffIdx < 9; diffIdx++ {
		diff := float64(diffIdx - 4) // -4..4
		for bucket := 0; bucket < 10; bucket++ {
			// progress in [0,1]: how far through the match we are.
			progress := float64(bucket) / 9.0
			// Base probability from a mild logistic in goal difference.
			base := sigmoid(0.85*diff + HomeAdvantage)
			// As the match progresses, probability is pulled toward the
			// certain outcome implied by sign(diff): 1 if diff>0, 0 if
			// diff<0, 0.5 if diff==0.
			var certain float64
			switch {
			case diff > 0:
				certain = 1.0
			case diff < 0:
				certain = 0.0
			default:
				certain = 0.5
			}
			t[diffIdx][bucket] = base*(1-progress) + certain*progress
		}
	}
	return t
}

func clampDiffIndex(diff int) int {
	idx := diff + 4
	if idx < 0 {
		return 0
	}
	if idx > 8 {
		return 8
	}
	return idx
}

func minuteBucket(minute int) int {
	b := minute / 10
	if b < 0 {
		return 0
	}
	if b > 9 {
		return 9
	}
	return b
}

// soccerPHome implements spec.md §4.1's soccer table lookup with linear
// interpolation between adjacent minute buckets (goal difference is not
// interpolated).
func soccerPHome(s domain.GameState) float64 {
	diff := s.HomeGoals - s.AwayGoals
	di := clampDiffIndex(diff)

	minute := s.MinuteOrPeriod
	if minute < 0 {
		minute = 0
	}
	if minute > 90 {
		minute = 90
	}

	bLow := minuteBucket(minute)
	bHigh := bLow
	if bLow < 9 {
		bHigh = bLow + 1
	}
	lowMinute := float64(bLow * 10)
	frac := 0.0
	if bHigh != bLow {
		frac = (float64(minute) - lowMinute) / 10.0
	}

	pLow := soccerTable[di][bLow]
	pHigh := soccerTable[di][bHigh]
	return pLow + (pHigh-pLow)*math.Max(0, math.Min(1, frac))
}
