// Package dedup detects near-duplicate headlines: fuzzy similarity within a
// run, and order-independent title signatures across runs.
package dedup

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultSimilarity is the ratio above which two titles count as similar.
const DefaultSimilarity = 0.85

// DefaultSignatureTokens is how many sorted tokens make up a signature.
const DefaultSignatureTokens = 4

// minTokenLen drops short words from signatures and entity checks.
const minTokenLen = 3

// DefaultStopWords are generic news words that say nothing about which
// brand, league or body a headline is about.
var DefaultStopWords = []string{
	"the", "and", "for", "with", "from", "into", "over", "after", "ahead", "amid",
	"its", "his", "her", "their", "this", "that", "will", "has", "have", "are", "was",
	"new", "set", "sets", "gets", "all", "now", "out", "off", "more", "first",
	"india", "indian", "news", "report", "reports", "says", "said", "today", "latest",
	"launch", "launches", "launched", "announce", "announces", "announced",
	"unveil", "unveils", "unveiled", "campaign", "campaigns",
	"season", "team", "teams", "ipl",
}

// StopWords is a lookup set built from a word list.
type StopWords map[string]struct{}

// NewStopWords lower-cases words into a set.
func NewStopWords(words []string) StopWords {
	s := make(StopWords, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s[w] = struct{}{}
		}
	}
	return s
}

func (s StopWords) has(w string) bool {
	_, ok := s[w]
	return ok
}

// Tokenize lower-cases s and splits it on anything that is not a letter or
// a digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Significant returns the distinct tokens of s that are long enough and not
// stop words, in first-seen order.
func (s StopWords) Significant(title string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(title) {
		if utf8.RuneCountInString(tok) < minTokenLen || s.has(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Similarity is the SequenceMatcher ratio of the lower-cased titles,
// compared rune by rune.
func Similarity(a, b string) float64 {
	ra := runes(strings.ToLower(a))
	rb := runes(strings.ToLower(b))
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	return difflib.NewMatcher(ra, rb).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// SharesEntity reports whether a and b have at least one significant token
// in common.
func (s StopWords) SharesEntity(a, b string) bool {
	wa := s.Significant(a)
	if len(wa) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(wa))
	for _, w := range wa {
		set[w] = struct{}{}
	}
	for _, w := range s.Significant(b) {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// Signer builds title signatures.
type Signer struct {
	stop   StopWords
	tokens int
}

// NewSigner uses the first n sorted significant tokens; n <= 0 means
// DefaultSignatureTokens.
func NewSigner(stop StopWords, n int) *Signer {
	if n <= 0 {
		n = DefaultSignatureTokens
	}
	return &Signer{stop: stop, tokens: n}
}

// Signature sorts the significant tokens of title, keeps the first n and
// joins them with "-". Word order in the title does not matter. Titles with
// no significant tokens have an empty signature.
func (s *Signer) Signature(title string) string {
	toks := s.stop.Significant(title)
	sort.Strings(toks)
	if len(toks) > s.tokens {
		toks = toks[:s.tokens]
	}
	return strings.Join(toks, "-")
}

// RunWindow remembers the titles seen during one run and flags fuzzy
// duplicates among them. It is not safe for concurrent use.
type RunWindow struct {
	stop      StopWords
	threshold float64
	titles    []string
}

// NewRunWindow returns an empty window; threshold <= 0 means
// DefaultSimilarity.
func NewRunWindow(stop StopWords, threshold float64) *RunWindow {
	if threshold <= 0 {
		threshold = DefaultSimilarity
	}
	return &RunWindow{stop: stop, threshold: threshold}
}

// IsDuplicate reports whether title is a near-duplicate of an earlier title
// in the window. Similarity alone is not enough: the two titles must also
// share a significant token.
func (w *RunWindow) IsDuplicate(title string) (bool, string) {
	for _, prev := range w.titles {
		if Similarity(title, prev) > w.threshold && w.stop.SharesEntity(title, prev) {
			return true, prev
		}
	}
	return false, ""
}

// Add records title in the window.
func (w *RunWindow) Add(title string) {
	w.titles = append(w.titles, title)
}

// Len returns the number of titles in the window.
func (w *RunWindow) Len() int { return len(w.titles) }
