package index

import (
	"strings"
	"testing"
	"time"
)

func TestEnsureFrontmatterAddsFields(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	out, id := EnsureFrontmatter("# Title\n\nBody", now)

	fmLines, body, ok := splitFrontmatterLines(out)
	if !ok {
		t.Fatalf("expected frontmatter")
	}
	if !strings.Contains(body, "# Title") {
		t.Fatalf("expected body to include title")
	}

	fm := fmLineMap(fmLines)
	if fm["id"] == "" || fm["id"] != id {
		t.Fatalf("expected id %q to be set, got %q", id, fm["id"])
	}
	if fm["created"] != now.Format(time.RFC3339) {
		t.Fatalf("expected created to be %s, got %s", now.Format(time.RFC3339), fm["created"])
	}
	if fm["updated"] != now.Format(time.RFC3339) {
		t.Fatalf("expected updated to be %s, got %s", now.Format(time.RFC3339), fm["updated"])
	}
}

func TestEnsureFrontmatterPreservesIDAndCreated(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	input := strings.Join([]string{
		"---",
		"id: abc-123",
		"created: 2020-01-01T00:00:00Z",
		"updated: 2020-01-02T00:00:00Z",
		"tags:",
		"  - work",
		"---",
		"# Title",
	}, "\n")

	out, id := EnsureFrontmatter(input, now)
	if id != "abc-123" {
		t.Fatalf("expected id to be preserved, got %s", id)
	}
	fmLines, _, ok := splitFrontmatterLines(out)
	if !ok {
		t.Fatalf("expected frontmatter")
	}
	fm := fmLineMap(fmLines)
	if fm["created"] != "2020-01-01T00:00:00Z" {
		t.Fatalf("expected created to be preserved, got %s", fm["created"])
	}
	if fm["updated"] != now.Format(time.RFC3339) {
		t.Fatalf("expected updated to be bumped, got %s", fm["updated"])
	}
	if !strings.Contains(out, "  - work") {
		t.Fatalf("expected nested tags to survive:\n%s", out)
	}
}

func TestParseFrontmatterTags(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"sequence", "---\ntags: [work, \"#life\"]\n---\nbody", []string{"work", "life"}},
		{"block sequence", "---\ntags:\n  - a\n  - b\n---\n", []string{"a", "b"}},
		{"scalar", "---\ntags: a, b c\n---\n", []string{"a", "b", "c"}},
		{"none", "no frontmatter", nil},
		{"malformed", "---\ntags: [a\n---\n", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fm, _ := ParseFrontmatter(tc.input)
			if strings.Join(fm.Tags, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("tags = %v, want %v", fm.Tags, tc.want)
			}
		})
	}
}

func TestSetFrontmatterValueQuotes(t *testing.T) {
	out := SetFrontmatterValue("body", "title", "a: b")
	fm, body := ParseFrontmatter(out)
	if fm.Title != "a: b" {
		t.Fatalf("title = %q\n%s", fm.Title, out)
	}
	if strings.TrimSpace(body) != "body" {
		t.Fatalf("body = %q", body)
	}

	out = SetFrontmatterValue(out, "title", "plain")
	if fm, _ := ParseFrontmatter(out); fm.Title != "plain" {
		t.Fatalf("title not replaced:\n%s", out)
	}
}

func fmLineMap(lines []string) map[string]string {
	out := map[string]string{}
	for _, line := range lines {
		key, val := parseFrontmatterLine(line)
		if key == "" || isIndentedLine(line) {
			continue
		}
		out[strings.ToLower(key)] = strings.Trim(val, "\"")
	}
	return out
}
