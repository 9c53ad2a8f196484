package index

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"hashnote/internal/hashtag"
)

const (
	LinkKindWiki     = "wikilink"
	LinkKindMarkdown = "mdlink"
)

type Link struct {
	Ref    string
	Kind   string
	LineNo int
	Line   string
}

type Metadata struct {
	ID    string
	Title string
	Tags  []string
	Links []Link
}

var (
	wikiLinkRe   = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	mdLinkRe     = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	inlineCodeRe = regexp.MustCompile("`[^`]*`")
	urlRe        = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)
)

// ParseContent pulls the indexable metadata out of a markdown note: the
// frontmatter id and title, hashtags outside code, and links to other notes.
func ParseContent(input string) Metadata {
	fm, body := ParseFrontmatter(input)
	meta := Metadata{
		ID:    strings.TrimSpace(fm.ID),
		Title: strings.TrimSpace(fm.Title),
	}
	if meta.Title == "" {
		meta.Title = parseTitle(body)
	}

	seen := map[string]struct{}{}
	addTag := func(tag string) {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		meta.Tags = append(meta.Tags, tag)
	}
	for _, t := range fm.Tags {
		addTag(t)
	}
	for _, line := range nonCodeLines(body) {
		for _, t := range lineTags(line) {
			addTag(t)
		}
	}

	lines := strings.Split(body, "\n")
	inFence := false
	for n, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			continue
		}
		if inFence || isIndentedCodeLine(line) {
			continue
		}
		for _, m := range wikiLinkRe.FindAllStringSubmatch(line, -1) {
			if ref := WikiTarget(m[1]); ref != "" {
				meta.Links = append(meta.Links, Link{Ref: ref, Kind: LinkKindWiki, LineNo: n + 1, Line: line})
			}
		}
		for _, m := range mdLinkRe.FindAllStringSubmatch(line, -1) {
			if ref := markdownTarget(m[1]); ref != "" {
				meta.Links = append(meta.Links, Link{Ref: ref, Kind: LinkKindMarkdown, LineNo: n + 1, Line: line})
			}
		}
	}
	return meta
}

// lineTags returns the hashtags of one line of prose. Inline code, link
// targets and URLs are blanked first, and a '#' glued to a word ("C#sharp")
// does not start a tag.
func lineTags(line string) []string {
	blank := func(s string) string { return strings.Repeat(" ", len(s)) }
	line = inlineCodeRe.ReplaceAllStringFunc(line, blank)
	line = urlRe.ReplaceAllStringFunc(line, blank)
	line = mdLinkRe.ReplaceAllStringFunc(line, func(s string) string {
		if i := strings.Index(s, "]("); i >= 0 {
			return s[:i+1] + blank(s[i+1:])
		}
		return s
	})

	runes := []rune(line)
	var out []string
	for _, t := range hashtag.Extract(line) {
		if t.Start > 0 {
			prev := runes[t.Start-1]
			if unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '&' {
				continue
			}
		}
		out = append(out, t.Text)
	}
	return out
}

// WikiTarget is the note reference inside [[...]]: the part before any
// "|label" or "#heading".
func WikiTarget(raw string) string {
	ref := raw
	if i := strings.Index(ref, "|"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	return strings.TrimSpace(ref)
}

// markdownTarget keeps relative links to other markdown notes and drops
// external URLs, anchors and attachments.
func markdownTarget(raw string) string {
	raw = strings.TrimSpace(strings.Trim(raw, "<>"))
	if raw == "" || strings.HasPrefix(raw, "#") {
		return ""
	}
	if u, err := url.Parse(raw); err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	if i := strings.IndexAny(raw, "#?"); i >= 0 {
		raw = raw[:i]
	}
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	if !strings.EqualFold(path.Ext(raw), ".md") {
		return ""
	}
	return raw
}

func isFenceLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func nonCodeLines(body string) []string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if isIndentedCodeLine(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func isIndentedCodeLine(line string) bool {
	if line == "" {
		return false
	}
	spaces := 0
	for _, r := range line {
		if r == ' ' {
			spaces++
			continue
		}
		if r == '\t' {
			return true
		}
		break
	}
	return spaces >= 4
}

func parseTitle(body string) string {
	for _, line := range nonCodeLines(body) {
		if level, text, ok := parseATXHeading(line); ok && level == 1 {
			return text
		}
	}
	return ""
}

func parseATXHeading(line string) (int, string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return 0, "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || len(trimmed) == level {
		return 0, "", false
	}
	if trimmed[level] != ' ' && trimmed[level] != '\t' {
		return 0, "", false
	}
	text := trimATXHeadingClosingHashes(trimmed[level:])
	if text == "" {
		return 0, "", false
	}
	return level, text, true
}

func trimATXHeadingClosingHashes(text string) string {
	text = strings.TrimSpace(text)
	i := len(text) - 1
	for i >= 0 && text[i] == '#' {
		i--
	}
	if i < len(text)-1 {
		if i < 0 {
			return ""
		}
		if text[i] == ' ' || text[i] == '\t' {
			text = strings.TrimRight(text[:i], " \t")
		}
	}
	return strings.TrimSpace(text)
}
