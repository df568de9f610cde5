package report

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize keeps messages under Telegram's 4096 character limit.
const DefaultChunkSize = 3500

// Chunk splits text into pieces of at most size runes, breaking at line
// ends where possible. Lines longer than size are cut.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if s := strings.TrimRight(cur.String(), "\n"); strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		n = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		ln := utf8.RuneCountInString(line)
		if n+ln <= size {
			cur.WriteString(line)
			n += ln
			continue
		}
		flush()

		for ln > size {
			r := []rune(line)
			chunks = append(chunks, string(r[:size]))
			line = string(r[size:])
			ln -= size
		}
		cur.WriteString(line)
		n = ln
	}
	flush()

	return chunks
}
