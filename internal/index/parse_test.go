package index

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseContentTagsSkipCode(t *testing.T) {
	input := strings.Join([]string{
		"---",
		"tags: [planning]",
		"---",
		"# Weekly #review",
		"",
		"Tasks #work and #life-goals done.",
		"Inline `#notatag` and C#sharp stay out.",
		"See [x](https://example.com/#anchor) and https://e.com/#frag too.",
		"",
		"```",
		"#hidden",
		"```",
		"    #indented",
		"again #work",
	}, "\n")

	meta := ParseContent(input)
	want := []string{"planning", "review", "work", "life-goals"}
	if !reflect.DeepEqual(meta.Tags, want) {
		t.Fatalf("tags = %v, want %v", meta.Tags, want)
	}
	if meta.Title != "Weekly #review" {
		t.Fatalf("title = %q", meta.Title)
	}
}

func TestParseContentTitleFromFrontmatter(t *testing.T) {
	meta := ParseContent("---\nid: n1\ntitle: \"From FM\"\n---\n# Heading\n")
	if meta.Title != "From FM" || meta.ID != "n1" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestParseContentLinks(t *testing.T) {
	input := strings.Join([]string{
		"# Links",
		"See [[Other Note|alias]] and [[target#Section]].",
		"Also [rel](sub/page.md#top) and [ext](https://x.dev/a.md) and [img](pic.png).",
		"```",
		"[[in code]]",
		"```",
	}, "\n")
	meta := ParseContent(input)

	var got []string
	for _, l := range meta.Links {
		got = append(got, l.Kind+":"+l.Ref)
	}
	want := []string{"wikilink:Other Note", "wikilink:target", "mdlink:sub/page.md"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
	if meta.Links[0].LineNo != 2 {
		t.Fatalf("line no = %d", meta.Links[0].LineNo)
	}
}

func TestResolveLinkRef(t *testing.T) {
	cases := []struct {
		from string
		link Link
		want string
	}{
		{"a/b.md", Link{Ref: "c.md", Kind: LinkKindMarkdown}, "a/c.md"},
		{"a/b.md", Link{Ref: "../c.md", Kind: LinkKindMarkdown}, "c.md"},
		{"b.md", Link{Ref: "../../c.md", Kind: LinkKindMarkdown}, "c.md"},
		{"a/b.md", Link{Ref: "/x/c.md", Kind: LinkKindMarkdown}, "x/c.md"},
		{"a/b.md", Link{Ref: "Some Title", Kind: LinkKindWiki}, "Some Title"},
	}
	for _, tc := range cases {
		if got := resolveLinkRef(tc.from, tc.link); got != tc.want {
			t.Fatalf("resolveLinkRef(%q, %q) = %q, want %q", tc.from, tc.link.Ref, got, tc.want)
		}
	}
}

func TestSplitOwnerPath(t *testing.T) {
	owner, rel, err := splitOwnerPath("alice/notes/sub/a.md")
	if err != nil || owner != "alice" || rel != "sub/a.md" {
		t.Fatalf("got %q %q %v", owner, rel, err)
	}
	for _, bad := range []string{"", "alice/a.md", "alice/other/a.md", "../x/notes/a.md", `a\notes\b.md`} {
		if _, _, err := splitOwnerPath(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
