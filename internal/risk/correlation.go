package risk

import "github.com/shopspring/decimal"

// Correlation computes the tiered static pairwise correlation coefficient
// between two positions, resolving spec.md §3/§4.8's correlation-matrix
// open question as concrete same_team/same_league/same_sport coefficients
// (grounded in original_source/src/config.rs's correlation_same_league /
// max_league_exposure_fraction fields) rather than a literal team x team
// matrix.
type Correlation struct {
	SameTeam   decimal.Decimal
	SameLeague decimal.Decimal
	SameSport  decimal.Decimal
}

// NewCorrelation returns a Correlation using the configured tier coefficients.
func NewCorrelation(sameTeam, sameLeague, sameSport decimal.Decimal) Correlation {
	return Correlation{SameTeam: sameTeam, SameLeague: sameLeague, SameSport: sameSport}
}

// Exposure describes one side of a correlation comparison.
type Exposure struct {
	Sport  string
	League string
	Team   string
}

// Coefficient returns the correlation between two distinct open positions
// a and b (a proposed position's correlation with its own stake is not
// computed through this path — risk.Book.Admit adds that directly). A
// shared team is the tightest tier, then shared league, then shared sport.
func (c Correlation) Coefficient(a, b Exposure) decimal.Decimal {
	if a.Team != "" && a.Team == b.Team {
		return c.SameTeam
	}
	if a.League != "" && a.League == b.League {
		return c.SameLeague
	}
	if a.Sport == b.Sport {
		return c.SameSport
	}
	return decimal.Zero
}
