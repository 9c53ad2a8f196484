// Package hashtag detects, extracts and ranks #tags while a note is being
// edited.
//
// The package is split into pure functions (Detect, Extract, Rank) and a small
// owned-state object, Session, that debounces the search query and tracks the
// keyboard selection for a suggestion popup. Offsets are always rune offsets
// into the text, never byte offsets.
package hashtag

import (
	"strings"
	"unicode"
)

// Match is the in-progress tag token under the cursor.
type Match struct {
	Text     string `json:"text"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Complete bool   `json:"isComplete"`
}

// Detect reports whether cursor sits inside an unfinished #tag and returns the
// token when it does. Start points at the '#', Text is everything between the
// '#' and the cursor, End is the next whitespace at or after the cursor.
func Detect(text string, cursor int) *Match {
	runes := []rune(text)
	if cursor < 0 || cursor > len(runes) {
		return nil
	}

	hash := -1
	for i := cursor - 1; i >= 0; i-- {
		if runes[i] == '#' {
			hash = i
			break
		}
	}
	if hash < 0 {
		return nil
	}
	// foo#bar is not a tag.
	if hash > 0 && isWordRune(runes[hash-1]) {
		return nil
	}

	candidate := runes[hash+1 : cursor]
	for _, r := range candidate {
		if r == '#' || unicode.IsSpace(r) {
			return nil
		}
	}

	end := len(runes)
	for i := cursor; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) {
			end = i
			break
		}
	}

	return &Match{
		Text:  string(candidate),
		Start: hash,
		End:   end,
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Query returns the trimmed search text for m, or "" for a nil match.
func (m *Match) Query() string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Text)
}

// Apply replaces the token covered by m with "#tag " and returns the new text
// together with the cursor position right after the inserted space.
func Apply(text string, m Match, tag string) (string, int) {
	runes := []rune(text)
	start, end := m.Start, m.End
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start > end {
		start = end
	}
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")

	insert := []rune("#" + tag + " ")
	rest := runes[end:]
	// Avoid doubling the separator when the token already ends in whitespace.
	if len(rest) > 0 && unicode.IsSpace(rest[0]) {
		insert = insert[:len(insert)-1]
	}

	out := make([]rune, 0, len(runes)-(end-start)+len(insert))
	out = append(out, runes[:start]...)
	out = append(out, insert...)
	cursor := len(out)
	if len(rest) > 0 && unicode.IsSpace(rest[0]) {
		cursor++
	}
	out = append(out, rest...)
	return string(out), cursor
}
