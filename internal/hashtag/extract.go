package hashtag

import (
	"regexp"
	"unicode/utf8"
)

// Tag is a syntactically complete hashtag found in a text. End is exclusive
// and Text excludes the leading '#'.
type Tag struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

var tagRe = regexp.MustCompile(`#(\p{L}[\p{L}\p{N}_-]*)`)

// Extract returns every complete hashtag in text, left to right, without
// overlaps.
func Extract(text string) []Tag {
	locs := tagRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]Tag, 0, len(locs))
	// Byte offsets from the regexp are converted to rune offsets incrementally.
	bytePos, runePos := 0, 0
	for _, loc := range locs {
		runePos += utf8.RuneCountInString(text[bytePos:loc[0]])
		start := runePos
		runePos += utf8.RuneCountInString(text[loc[0]:loc[1]])
		bytePos = loc[1]
		out = append(out, Tag{
			Text:  text[loc[2]:loc[3]],
			Start: start,
			End:   runePos,
		})
	}
	return out
}

// Names returns the distinct tag names in text in first-seen order.
func Names(text string) []string {
	tags := Extract(text)
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t.Text]; ok {
			continue
		}
		seen[t.Text] = struct{}{}
		out = append(out, t.Text)
	}
	return out
}
