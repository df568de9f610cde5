package report

import (
	"fmt"
	"strings"
)

// TierScheme selects how leads are grouped.
type TierScheme string

const (
	// SchemeScore bands leads by score.
	SchemeScore TierScheme = "score"
	// SchemeContent groups leads by what the headline announces.
	SchemeContent TierScheme = "content"
)

func ParseTierScheme(s string) (TierScheme, error) {
	switch TierScheme(s) {
	case SchemeScore, SchemeContent:
		return TierScheme(s), nil
	}
	return "", fmt.Errorf("unknown tier scheme %q (want %q or %q)", s, SchemeScore, SchemeContent)
}

// Tier labels. The last label of each scheme catches everything else.
const (
	TierA         = "Tier A"
	TierB         = "Tier B"
	TierC         = "Tier C"
	TierWatchlist = "Watchlist"
	TierBaseline  = "Baseline"
)

// Order lists the tiers of s from most to least important.
func (s TierScheme) Order() []string {
	if s == SchemeContent {
		return []string{TierA, TierB, TierC, TierBaseline}
	}
	return []string{TierA, TierB, TierC, TierWatchlist}
}

// ScoreTier bands a 0..100 score.
func ScoreTier(score int) string {
	switch {
	case score >= 85:
		return TierA
	case score >= 70:
		return TierB
	case score >= 55:
		return TierC
	default:
		return TierWatchlist
	}
}

var contentTiers = []struct {
	tier     string
	keywords []string
}{
	{TierA, []string{"inaugural", "debut"}},
	{TierB, []string{"expansion", "auction"}},
	{TierC, []string{"sponsorship", "valuation"}},
}

// ContentTier picks a tier from the headline's wording.
func ContentTier(title string) string {
	t := strings.ToLower(title)
	for _, ct := range contentTiers {
		for _, k := range ct.keywords {
			if strings.Contains(t, k) {
				return ct.tier
			}
		}
	}
	return TierBaseline
}
