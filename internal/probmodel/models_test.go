package probmodel

import (
	"testing"

	"github.com/oddsignal/scorebot/internal/domain"
)

func TestPHomeWinsAlwaysClamped(t *testing.T) {
	cases := []struct {
		name  string
		sport domain.Sport
		state domain.GameState
	}{
		{"soccer blowout", domain.SportSoccer, domain.GameState{HomeGoals: 9, AwayGoals: 0, MinuteOrPeriod: 89}},
		{"soccer away blowout", domain.SportSoccer, domain.GameState{HomeGoals: 0, AwayGoals: 9, MinuteOrPeriod: 89}},
		{"nba buzzer beater deficit", domain.SportNBA, domain.GameState{HomePoints: 80, AwayPoints: 140, SecondsRemaining: 1}},
		{"nfl kneel down lead", domain.SportNFL, domain.GameState{HomePoints: 99, AwayPoints: 0, SecondsRemaining: 1}},
		{"mlb runaway", domain.SportMLB, domain.GameState{HomeRuns: 20, AwayRuns: 0, Inning: 9, TopOfInning: false, Outs: 2}},
		{"nhl shutout", domain.SportNHL, domain.GameState{HomeGoals: 0, AwayGoals: 10, SecondsRemaining: 5}},
		{"tennis match point", domain.SportTennis, domain.GameState{HomeSets: 1, AwaySets: 0, HomeGames: 5, AwayGames: 0, ServerHome: true}},
		{"unknown sport falls back", domain.Sport("curling"), domain.GameState{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PHomeWins(tc.sport, tc.state)
			f, _ := p.Float64()
			if f < MinProb || f > MaxProb {
				t.Fatalf("p=%v out of [%v,%v]", f, MinProb, MaxProb)
			}
		})
	}
}

func TestSoccerPHomeMonotoneInGoalDiff(t *testing.T) {
	minute := 60
	prevDiff := -1.0
	for diff := -4; diff <= 4; diff++ {
		p := soccerPHome(domain.GameState{HomeGoals: 4 + diff, AwayGoals: 4, MinuteOrPeriod: minute})
		if p < prevDiff {
			t.Fatalf("expected monotone non-decreasing in goal diff, got p=%v after prev=%v at diff=%d", p, prevDiff, diff)
		}
		prevDiff = p
	}
}

func TestNBALateGameMoreSensitiveThanEarlyGame(t *testing.T) {
	early := nbaPHome(domain.GameState{HomePoints: 50, AwayPoints: 48, SecondsRemaining: 2800})
	earlyBigger := nbaPHome(domain.GameState{HomePoints: 54, AwayPoints: 48, SecondsRemaining: 2800})

	late := nbaPHome(domain.GameState{HomePoints: 98, AwayPoints: 97, SecondsRemaining: 30})
	lateBigger := nbaPHome(domain.GameState{HomePoints: 101, AwayPoints: 97, SecondsRemaining: 25})

	earlyDelta := earlyBigger - early
	lateDelta := lateBigger - late

	if lateDelta <= earlyDelta {
		t.Fatalf("expected late-game probability shift (%v) to exceed early-game shift (%v) for a similar score swing", lateDelta, earlyDelta)
	}
}

func TestCalibratorIdentityByDefault(t *testing.T) {
	c := NewCalibrator()
	state := domain.GameState{HomeGoals: 1, AwayGoals: 0, MinuteOrPeriod: 10}
	raw := PHomeWins(domain.SportSoccer, state)
	cal := c.Calibrated(domain.SportSoccer, state)
	if !raw.Equal(cal) {
		t.Fatalf("expected identity calibration, raw=%v cal=%v", raw, cal)
	}
}

func TestCalibratorPromote(t *testing.T) {
	c := NewCalibrator()
	c.Promote(domain.SportNBA, PlattCoefficients{A: 1.2, B: -0.1})

	got := c.Coefficients(domain.SportNBA)
	if got.A != 1.2 || got.B != -0.1 {
		t.Fatalf("promotion did not stick: %+v", got)
	}

	// Other sports remain identity.
	other := c.Coefficients(domain.SportMLB)
	if other != Identity() {
		t.Fatalf("expected MLB to remain identity, got %+v", other)
	}
}

func TestTennisMatchPointNearOne(t *testing.T) {
	p := tennisPHome(domain.GameState{HomeSets: 1, AwaySets: 0, HomeGames: 5, AwayGames: 0, ServerHome: true})
	if p < 0.6 {
		t.Fatalf("expected strong home favorite near a dominant match point, got %v", p)
	}
}
