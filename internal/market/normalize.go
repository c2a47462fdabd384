package market

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeTeamName strips diacritics and punctuation and lower-cases a
// team name so that provider-reported names (which vary in accenting and
// abbreviation) can be matched against venue market descriptions. Adapted
// from pkg/polymarket/sports/teams.go's team-name normalization, trimmed
// down to the transform chain itself (the donor file's team-directory
// fetch/cache logic is Polymarket-sports-API specific and has no
// counterpart here).
func normalizeTeamName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, name)
	if err != nil {
		ascii = name
	}
	ascii = strings.ToLower(ascii)

	var b strings.Builder
	lastWasSpace := false
	for _, r := range ascii {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '.':
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// teamNameMatches reports whether candidate plausibly refers to team,
// allowing for the candidate containing the team name as a substring
// (venue descriptions often read "Will the Lakers win?" rather than the
// bare team name).
func teamNameMatches(team, candidate string) bool {
	t := normalizeTeamName(team)
	c := normalizeTeamName(candidate)
	if t == "" || c == "" {
		return false
	}
	return strings.Contains(c, t) || strings.Contains(t, c)
}

// nonWinnerTitlePatterns are substrings identifying markets that are not a
// fixture's binary winner market, per spec.md §4.3: spread, over/under,
// player/team props, and quarter/half/period winner markets.
var nonWinnerTitlePatterns = []string{
	"spread", "handicap",
	"over/under", "over under", "o/u", "total points", "total goals", "totals",
	"prop", "props",
	"quarter winner", "1st quarter", "2nd quarter", "3rd quarter", "4th quarter",
	"first quarter", "second quarter", "third quarter", "fourth quarter",
	"half winner", "1st half", "2nd half", "first half", "second half",
	"margin of victory", "correct score", "to score", "race to",
}

// isNonWinnerMarketTitle reports whether title matches a derivative-market
// pattern rather than the fixture's plain binary winner market.
func isNonWinnerMarketTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, pattern := range nonWinnerTitlePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
