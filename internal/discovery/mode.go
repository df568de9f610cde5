package discovery

import (
	"fmt"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scoring"
)

// Mode bounds one run.
type Mode struct {
	Name string
	// LookbackDays restricts the search window; 0 means no restriction.
	LookbackDays     int
	MaxItemsPerQuery int
	MaxLeads         int
}

// DailyMode is the routine scheduled run.
func DailyMode() Mode {
	return Mode{Name: "daily", LookbackDays: 0, MaxItemsPerQuery: 3, MaxLeads: 5}
}

// ArchiveMode is the bootstrap run over the last days of news.
func ArchiveMode(days int) Mode {
	if days <= 0 {
		days = 90
	}
	return Mode{Name: "archive", LookbackDays: days, MaxItemsPerQuery: 30, MaxLeads: 9999}
}

// SeenPolicy decides which links enter the seen ledger after a run.
type SeenPolicy string

const (
	// SeenScanned records every link that was looked at.
	SeenScanned SeenPolicy = "scanned"
	// SeenAdmitted records only links that became leads.
	SeenAdmitted SeenPolicy = "admitted"
)

func ParseSeenPolicy(s string) (SeenPolicy, error) {
	switch SeenPolicy(s) {
	case SeenScanned, SeenAdmitted:
		return SeenPolicy(s), nil
	}
	return "", fmt.Errorf("unknown seen policy %q (want %q or %q)", s, SeenScanned, SeenAdmitted)
}

// Query is one search with the category its items are scored under.
type Query struct {
	Text     string `yaml:"query"`
	Category string `yaml:"category"`
}

// DefaultQueries are the stock searches for sports and advertising leads.
func DefaultQueries() []Query {
	return []Query{
		{Text: `"Sports Authority of India" tender`, Category: scoring.CategorySports},
		{Text: `"BCCI" partner announced`, Category: scoring.CategorySports},
		{Text: `"IPL" sponsorship`, Category: scoring.CategorySports},
		{Text: `"won creative mandate" India`, Category: scoring.CategoryAds},
		{Text: `"appointed" "Creative Director" India`, Category: scoring.CategoryAds},
		{Text: `"campaign launch" TVC India`, Category: scoring.CategoryAds},
	}
}
