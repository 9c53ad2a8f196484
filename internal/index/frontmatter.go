package index

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Frontmatter struct {
	ID      string  `yaml:"id"`
	Title   string  `yaml:"title"`
	Tags    tagList `yaml:"tags"`
	Created string  `yaml:"created"`
	Updated string  `yaml:"updated"`
}

// tagList accepts both `tags: [a, b]` and `tags: a, b`.
type tagList []string

func (t *tagList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*t = cleanTags(items)
	case yaml.ScalarNode:
		*t = cleanTags(strings.FieldsFunc(node.Value, func(r rune) bool {
			return r == ',' || r == ' '
		}))
	}
	return nil
}

func cleanTags(items []string) []string {
	var out []string
	for _, item := range items {
		item = strings.TrimPrefix(strings.TrimSpace(item), "#")
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseFrontmatter decodes the leading YAML block of a note and returns it
// together with the body that follows. A missing or malformed block yields a
// zero Frontmatter.
func ParseFrontmatter(input string) (Frontmatter, string) {
	lines, body, ok := splitFrontmatterLines(input)
	if !ok {
		return Frontmatter{}, input
	}
	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &fm); err != nil {
		slog.Debug("frontmatter decode failed", "err", err)
		return Frontmatter{}, body
	}
	return fm, body
}

func StripFrontmatter(input string) string {
	_, body, ok := splitFrontmatterLines(input)
	if !ok {
		return input
	}
	return body
}

// EnsureFrontmatter stamps id, created and updated into the note's
// frontmatter, creating the block when missing. Unknown keys and their
// formatting are kept. It returns the new content and the note id.
func EnsureFrontmatter(content string, now time.Time) (string, string) {
	nowStr := now.UTC().Format(time.RFC3339)
	fmLines, body, ok := splitFrontmatterLines(content)
	if !ok {
		id := uuid.NewString()
		fm := []string{
			"---",
			"id: " + id,
			"created: " + nowStr,
			"updated: " + nowStr,
			"---",
		}
		if body == "" {
			return strings.Join(fm, "\n") + "\n", id
		}
		return strings.Join(fm, "\n") + "\n\n" + body, id
	}

	lineIdx := map[string]int{}
	for i, line := range fmLines {
		if isIndentedLine(line) {
			continue
		}
		key, _ := parseFrontmatterLine(line)
		if key == "" {
			continue
		}
		key = strings.ToLower(key)
		if _, exists := lineIdx[key]; !exists {
			lineIdx[key] = i
		}
	}

	idVal := valueOrEmpty(fmLines, lineIdx, "id")
	if idVal == "" {
		idVal = uuid.NewString()
	}
	createdVal := valueOrEmpty(fmLines, lineIdx, "created")
	if createdVal == "" {
		createdVal = nowStr
	}

	setFrontmatterLine(&fmLines, lineIdx, "id", idVal)
	setFrontmatterLine(&fmLines, lineIdx, "created", createdVal)
	setFrontmatterLine(&fmLines, lineIdx, "updated", nowStr)

	fmBlock := "---\n" + strings.Join(fmLines, "\n") + "\n---"
	if body == "" {
		return fmBlock + "\n", idVal
	}
	return fmBlock + "\n" + body, idVal
}

// SetFrontmatterValue sets a single scalar key, quoting the value as YAML.
func SetFrontmatterValue(content, key, value string) string {
	fmLines, body, ok := splitFrontmatterLines(content)
	if !ok {
		fmLines = nil
		body = content
	}
	lineIdx := map[string]int{}
	for i, line := range fmLines {
		if k, _ := parseFrontmatterLine(line); k != "" && !isIndentedLine(line) {
			lineIdx[strings.ToLower(k)] = i
		}
	}
	setFrontmatterLine(&fmLines, lineIdx, key, yamlScalar(value))
	fmBlock := "---\n" + strings.Join(fmLines, "\n") + "\n---"
	if body == "" {
		return fmBlock + "\n"
	}
	if !ok {
		return fmBlock + "\n\n" + body
	}
	return fmBlock + "\n" + body
}

func yamlScalar(v string) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return v
	}
	return strings.TrimSpace(string(out))
}

func splitFrontmatterLines(input string) ([]string, string, bool) {
	lines := strings.Split(input, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, input, false
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, input, false
	}
	return lines[1:end], strings.Join(lines[end+1:], "\n"), true
}

func parseFrontmatterLine(line string) (string, string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", ""
	}
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func valueOrEmpty(lines []string, idx map[string]int, key string) string {
	pos, ok := idx[key]
	if !ok || pos < 0 || pos >= len(lines) {
		return ""
	}
	_, val := parseFrontmatterLine(lines[pos])
	return strings.TrimSpace(strings.Trim(val, "\"'"))
}

func setFrontmatterLine(lines *[]string, idx map[string]int, key, val string) {
	line := key + ": " + val
	if pos, ok := idx[key]; ok && pos >= 0 && pos < len(*lines) {
		(*lines)[pos] = line
		return
	}
	*lines = append(*lines, line)
	idx[key] = len(*lines) - 1
}

func isIndentedLine(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}
