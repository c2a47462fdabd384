package probmodel

import "github.com/oddsignal/scorebot/internal/domain"

// tennisPHome implements spec.md §4.1's tennis model: a mapping from
// (sets won, current-set games, server) to a tree of set-win
// probabilities. pHoldServe is the probability the server holds the
// current game; pSetGivenServeProb turns that into a set win probability
// via a simplified (non-tiebreak-aware) linear approximation, and the
// outer layer composes set win probability into a match win probability
// given sets already won by each side. Matches are treated as best-of-3
// (setsToWin is fixed at 2); best-of-5 is not modeled.
func tennisPHome(s domain.GameState) float64 {
	const pHoldServe = 0.65 // baseline probability the server wins a given game

	pServerWinsSet := pSetGivenServeProb(pHoldServe, s.HomeGames, s.AwayGames, s.ServerHome)
	// pServerWinsSet is the probability the CURRENT SERVER wins the set,
	// regardless of which side that is; the branch below converts it back
	// into a home-side probability.

	var pHomeWinsSet float64
	if s.ServerHome {
		pHomeWinsSet = pServerWinsSet
	} else {
		pHomeWinsSet = 1 - pServerWinsSet
	}

	setsToWin := 2 // best-of-3
	return pMatchGivenSetProb(pHomeWinsSet, s.HomeSets, s.AwaySets, setsToWin)
}

// pSetGivenServeProb approximates the probability the current server wins
// the current set, given the game score and a flat per-game hold
// probability. This is a coarse closed-form stand-in for the full
// game-by-game Markov chain: it treats the game-score lead as a linear
// nudge on top of the serve-hold baseline, clamped to a sane range.
func pSetGivenServeProb(pHoldServe float64, homeGames, awayGames int, serverIsHome bool) float64 {
	var lead int
	if serverIsHome {
		lead = homeGames - awayGames
	} else {
		lead = awayGames - homeGames
	}
	p := pHoldServe + 0.05*float64(lead)
	if p < 0.05 {
		p = 0.05
	}
	if p > 0.95 {
		p = 0.95
	}
	return p
}

// pMatchGivenSetProb composes a per-set win probability into a match win
// probability given sets already won, via the standard best-of-N negative
// binomial race: the home side needs (setsToWin - homeSets) more set wins
// before the away side gets (setsToWin - awaySets) more.
func pMatchGivenSetProb(pSet float64, homeSets, awaySets, setsToWin int) float64 {
	needHome := setsToWin - homeSets
	needAway := setsToWin - awaySets
	if needHome <= 0 {
		return 1
	}
	if needAway <= 0 {
		return 0
	}

	// Dynamic programming over a race to needHome vs needAway wins.
	dp := make([][]float64, needHome+1)
	for i := range dp {
		dp[i] = make([]float64, needAway+1)
	}
	for j := 0; j <= needAway; j++ {
		dp[0][j] = 1 // home already reached target
	}
	for i := 1; i <= needHome; i++ {
		dp[i][0] = 0 // away already reached target
	}
	for i := 1; i <= needHome; i++ {
		for j := 1; j <= needAway; j++ {
			dp[i][j] = pSet*dp[i-1][j] + (1-pSet)*dp[i][j-1]
		}
	}
	return dp[needHome][needAway]
}
