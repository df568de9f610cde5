package scoring

import (
	"fmt"
	"regexp"
	"strings"
)

// Input is what the engine looks at for one headline.
type Input struct {
	Title    string
	Category string
	Summary  string
}

// Verdict is the admission decision for one headline.
type Verdict struct {
	Passed bool
	// Gate names the gate that rejected the headline, empty when Passed.
	Gate    string
	Score   int
	Matched []string
}

// Options tune an Engine.
type Options struct {
	Policy     Policy
	Base       int
	Threshold  int
	UseSummary bool
}

// Engine applies a Rules table. It holds no mutable state, so one engine can
// be shared across goroutines.
type Engine struct {
	rules   Rules
	opts    Options
	matcher *matcher
}

// NewEngine validates rules and compiles its keywords.
func NewEngine(rules Rules, opts Options) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if opts.Policy == "" {
		opts.Policy = Additive
	}
	if _, err := ParsePolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if opts.Base < 0 || opts.Base > 100 {
		return nil, fmt.Errorf("base score must be within 0..100 (got %d)", opts.Base)
	}

	m := newMatcher()
	for _, b := range rules.Buckets {
		m.compile(b.Keywords)
	}
	g := rules.Gates
	for _, set := range [][]string{g.Structure, g.Lifecycle, g.Noise, g.Commercial, g.RequiredCategory} {
		m.compile(set)
	}

	return &Engine{rules: rules, opts: opts, matcher: m}, nil
}

// Policy returns the admission policy in use.
func (e *Engine) Policy() Policy { return e.opts.Policy }

func (e *Engine) text(in Input) string {
	t := in.Title
	if e.opts.UseSummary && in.Summary != "" {
		t += " " + in.Summary
	}
	return strings.ToLower(t)
}

// Filter runs the gate chain for the hard-gate policy, or the noise gate
// alone for the additive policy. The first failing gate stops the chain.
func (e *Engine) Filter(in Input) Verdict {
	text := e.text(in)
	g := e.rules.Gates

	if e.opts.Policy == Additive {
		if e.matcher.any(text, g.Noise) {
			return Verdict{Gate: "noise"}
		}
		return Verdict{Passed: true}
	}

	if !e.matcher.any(text, g.Structure) {
		return Verdict{Gate: "structure"}
	}
	if !e.matcher.any(text, g.Lifecycle) {
		return Verdict{Gate: "lifecycle"}
	}
	if e.matcher.any(text, g.Noise) {
		return Verdict{Gate: "noise"}
	}
	if len(g.Commercial) > 0 && !e.matcher.any(text, g.Commercial) {
		return Verdict{Gate: "commercial"}
	}
	if len(g.RequiredCategory) > 0 && !e.matcher.any(text, g.RequiredCategory) {
		return Verdict{Gate: "category"}
	}
	return Verdict{Passed: true}
}

// Score adds the weight of each matched bucket to the base and clamps the
// result to [base, 100]. It is pure.
func (e *Engine) Score(in Input) (int, []string) {
	text := e.text(in)
	score := e.opts.Base
	var matched []string

	for _, name := range e.rules.BucketNames() {
		b := e.rules.Buckets[name]
		if len(b.Categories) > 0 && !hasCategory(b.Categories, in.Category) {
			continue
		}
		if e.matcher.any(text, b.Keywords) {
			score += b.Weight
			matched = append(matched, name)
		}
	}

	if score > 100 {
		score = 100
	}
	if score < e.opts.Base {
		score = e.opts.Base
	}
	return score, matched
}

// Admits reports whether score clears the additive threshold. Under the
// hard-gate policy the gates already decided, so any score is admitted.
func (e *Engine) Admits(score int) bool {
	if e.opts.Policy == HardGate {
		return true
	}
	return score >= e.opts.Threshold
}

// Evaluate runs Filter, Score and Admits in one call.
func (e *Engine) Evaluate(in Input) Verdict {
	v := e.Filter(in)
	if !v.Passed {
		return v
	}
	v.Score, v.Matched = e.Score(in)
	if !e.Admits(v.Score) {
		v.Passed = false
		v.Gate = "threshold"
	}
	return v
}

func hasCategory(cats []string, c string) bool {
	for _, x := range cats {
		if strings.EqualFold(x, c) {
			return true
		}
	}
	return false
}

// matcher distinguishes phrases and short words so "vs" does not match
// "canvas". Keywords with spaces match as substrings, keywords of up to three
// characters match as whole words, longer ones as substrings.
type matcher struct {
	words map[string]*regexp.Regexp
}

func newMatcher() *matcher {
	return &matcher{words: make(map[string]*regexp.Regexp)}
}

func (m *matcher) compile(keywords []string) {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.Contains(k, " ") || len(k) > 3 {
			continue
		}
		if _, ok := m.words[k]; !ok {
			m.words[k] = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		}
	}
}

func (m *matcher) any(text string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}

		if strings.Contains(k, " ") || len(k) > 3 {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}

		re, ok := m.words[k]
		if !ok {
			re = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		}
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
