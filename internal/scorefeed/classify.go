package scorefeed

import "github.com/oddsignal/scorebot/internal/domain"

// delta holds a classified score event candidate before it is wrapped into
// a full domain.ScoreEvent.
type delta struct {
	kind       domain.ScoreEventKind
	pointValue int
}

// classify compares prev and new state for one fixture and returns the
// score event kind(s) implied by the transition, per spec.md §4.2: "emits
// a typed ScoreEvent for each positive delta... classifies the event kind
// from the delta magnitudes and per-sport scoring atoms". A negative delta
// on either side yields score_correction regardless of sport.
func classify(sport domain.Sport, prev, new domain.GameState) []delta {
	switch sport {
	case domain.SportSoccer:
		return classifyGoalBased(prev.HomeGoals, new.HomeGoals, prev.AwayGoals, new.AwayGoals,
			domain.EventGoalHome, domain.EventGoalAway, 1)
	case domain.SportNHL:
		return classifyGoalBased(prev.HomeGoals, new.HomeGoals, prev.AwayGoals, new.AwayGoals,
			domain.EventGoalHome, domain.EventGoalAway, 1)
	case domain.SportMLB:
		return classifyGoalBased(prev.HomeRuns, new.HomeRuns, prev.AwayRuns, new.AwayRuns,
			domain.EventRunHome, domain.EventRunAway, 1)
	case domain.SportNFL:
		return classifyNFL(prev, new)
	case domain.SportNBA:
		return classifyNBA(prev, new)
	case domain.SportTennis:
		return nil // tennis games/sets are tracked as state, not discrete score events
	default:
		return nil
	}
}

// classifyGoalBased handles the soccer/NHL/MLB shape: a single running
// counter per side where each +1 is one scoring atom.
func classifyGoalBased(prevHome, newHome, prevAway, newAway int, homeKind, awayKind domain.ScoreEventKind, pointsPerAtom int) []delta {
	var out []delta
	if newHome < prevHome || newAway < prevAway {
		out = append(out, delta{kind: domain.EventScoreCorrection})
		return out
	}
	for i := prevHome; i < newHome; i++ {
		out = append(out, delta{kind: homeKind, pointValue: pointsPerAtom})
	}
	for i := prevAway; i < newAway; i++ {
		out = append(out, delta{kind: awayKind, pointValue: pointsPerAtom})
	}
	return out
}

// classifyNFL classifies the home/away point delta into touchdown+xp (7),
// touchdown without xp (6), field goal (3), safety (2, reported as a
// field-goal event), or treats any other magnitude as a generic
// touchdown-equivalent event per spec.md §4.2's example
// ("NFL delta of exactly 7 -> touchdown_+xp, 6 -> touchdown_no_xp, 3 ->
// field_goal").
func classifyNFL(prev, new domain.GameState) []delta {
	homeDelta := new.HomePoints - prev.HomePoints
	awayDelta := new.AwayPoints - prev.AwayPoints

	if homeDelta < 0 || awayDelta < 0 {
		return []delta{{kind: domain.EventScoreCorrection}}
	}

	var out []delta
	if d := nflAtom(homeDelta, domain.EventTouchdownHome, domain.EventFieldGoalHome); d != nil {
		out = append(out, *d)
	}
	if d := nflAtom(awayDelta, domain.EventTouchdownAway, domain.EventFieldGoalAway); d != nil {
		out = append(out, *d)
	}
	return out
}

func nflAtom(pointDelta int, tdKind, fgKind domain.ScoreEventKind) *delta {
	switch pointDelta {
	case 0:
		return nil
	case 3:
		return &delta{kind: fgKind, pointValue: 3}
	case 6:
		return &delta{kind: tdKind, pointValue: 6}
	case 7:
		return &delta{kind: tdKind, pointValue: 7}
	case 8:
		return &delta{kind: tdKind, pointValue: 8} // TD + 2pt conversion
	case 2:
		return &delta{kind: fgKind, pointValue: 2} // safety, reuses field-goal-sized event
	default:
		return &delta{kind: tdKind, pointValue: pointDelta}
	}
}

// classifyNBA emits one basket event per side with the raw point delta as
// PointValue (spec.md's "basket_home/away with point value").
func classifyNBA(prev, new domain.GameState) []delta {
	homeDelta := new.HomePoints - prev.HomePoints
	awayDelta := new.AwayPoints - prev.AwayPoints

	if homeDelta < 0 || awayDelta < 0 {
		return []delta{{kind: domain.EventScoreCorrection}}
	}

	var out []delta
	if homeDelta > 0 {
		out = append(out, delta{kind: domain.EventBasketHome, pointValue: homeDelta})
	}
	if awayDelta > 0 {
		out = append(out, delta{kind: domain.EventBasketAway, pointValue: awayDelta})
	}
	return out
}
