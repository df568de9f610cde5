package scoring

import (
	"fmt"
	"sort"
)

// Policy selects how the engine admits headlines.
type Policy string

const (
	// HardGate admits a headline only if every configured gate passes.
	HardGate Policy = "hard-gate"
	// Additive admits a headline whose bucket score reaches the threshold.
	Additive Policy = "additive"
)

// ParsePolicy maps a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case HardGate, Additive:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown scoring policy %q (want %q or %q)", s, HardGate, Additive)
}

// Bucket is a named keyword group worth Weight points when any keyword
// matches. A bucket with Categories only counts for items in one of them.
type Bucket struct {
	Keywords   []string `yaml:"keywords"`
	Weight     int      `yaml:"weight"`
	Categories []string `yaml:"categories,omitempty"`
}

// Gates are the keyword sets used by the hard-gate chain. Empty Commercial
// or RequiredCategory disables that gate.
type Gates struct {
	Structure        []string `yaml:"structure"`
	Lifecycle        []string `yaml:"lifecycle"`
	Noise            []string `yaml:"noise"`
	Commercial       []string `yaml:"commercial,omitempty"`
	RequiredCategory []string `yaml:"requiredCategory,omitempty"`
}

// Rules is the full keyword table. Treat it as read-only once handed to an
// engine.
type Rules struct {
	Buckets map[string]Bucket `yaml:"buckets"`
	Gates   Gates             `yaml:"gates"`
}

// BucketNames returns bucket names in a stable order.
func (r Rules) BucketNames() []string {
	names := make([]string, 0, len(r.Buckets))
	for name := range r.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects tables the engine cannot score monotonically.
func (r Rules) Validate() error {
	for name, b := range r.Buckets {
		if b.Weight < 0 {
			return fmt.Errorf("bucket %q: weight must not be negative (got %d)", name, b.Weight)
		}
		if len(b.Keywords) == 0 {
			return fmt.Errorf("bucket %q: no keywords", name)
		}
	}
	return nil
}

// DefaultRules is the table tuned for sports and advertising leads in India.
func DefaultRules() Rules {
	return Rules{
		Buckets: map[string]Bucket{
			"tender": {
				Keywords: []string{"tender", "rfp", "bid", "contract", "auction"},
				Weight:   30,
			},
			"win": {
				Keywords: []string{"won", "wins", "bags", "secures", "lands"},
				Weight:   25,
			},
			"appoint": {
				Keywords: []string{"appointed", "names", "hires"},
				Weight:   20,
			},
			"partner": {
				Keywords: []string{"partner", "collaboration", "sponsor"},
				Weight:   15,
			},
			"launch": {
				Keywords: []string{"launch", "unveil", "announce", "inaugural", "debut"},
				Weight:   15,
			},
			"region": {
				Keywords: []string{"india", "mumbai", "delhi", "bengaluru", "kolkata", "chennai", "hyderabad"},
				Weight:   5,
			},
			"sport": {
				Keywords:   []string{"bcci", "ipl", "t20", "franchise", "premier league"},
				Weight:     10,
				Categories: []string{CategorySports},
			},
		},
		Gates: Gates{
			Structure: []string{"league", "auction", "tender", "franchise", "tournament", "championship", "mandate", "agency"},
			Lifecycle: []string{"launch", "expansion", "inaugural", "debut", "announce", "new season", "unveil", "appointed", "wins", "bags"},
			Noise: []string{
				"vs", "preview", "live score", "live updates", "highlights", "prediction",
				"fantasy", "dream11", "match report", "scorecard", "playing xi",
			},
		},
	}
}

// Category labels attached to queries.
const (
	CategorySports = "sports"
	CategoryAds    = "ads"
)
