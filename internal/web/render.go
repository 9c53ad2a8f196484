package web

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"hashnote/internal/hashtag"
	"hashnote/internal/index"
)

var (
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(newCodeBlockRenderer("github"), 100)),
		),
	)
	wikiLinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
)

// codeBlockRenderer highlights fenced code with chroma using CSS classes; the
// stylesheet comes from highlightCSS.
type codeBlockRenderer struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

func newCodeBlockRenderer(style string) *codeBlockRenderer {
	return &codeBlockRenderer{
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
		style:     styles.Get(style),
	}
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeBlockRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(string(n.Language(source)))
	if lexer == nil {
		lexer = lexers.Analyse(code.String())
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, err
	}
	if err := r.formatter.Format(w, r.style, it); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}

func highlightCSS() string {
	var b strings.Builder
	r := newCodeBlockRenderer("github")
	if err := r.formatter.WriteCSS(&b, r.style); err != nil {
		return ""
	}
	return b.String()
}

// renderMarkdown turns a note into HTML. Wiki links whose target resolves get
// linked to /notes/{id}; hashtags link to the tag listing.
func renderMarkdown(data []byte, resolve func(ref string) string) (string, error) {
	body := linkify(index.StripFrontmatter(string(data)), resolve)
	var b strings.Builder
	if err := mdRenderer.Convert([]byte(body), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// linkify rewrites [[wiki links]] and #tags into markdown links, leaving
// fenced code and inline code spans alone.
func linkify(body string, resolve func(ref string) string) string {
	lines := strings.Split(body, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			continue
		}
		// Even segments are outside backticks.
		parts := strings.Split(line, "`")
		for j := 0; j < len(parts); j += 2 {
			parts[j] = linkifyTags(linkifyWiki(parts[j], resolve))
		}
		lines[i] = strings.Join(parts, "`")
	}
	return strings.Join(lines, "\n")
}

func linkifyWiki(s string, resolve func(ref string) string) string {
	return wikiLinkRe.ReplaceAllStringFunc(s, func(m string) string {
		raw := m[2 : len(m)-2]
		ref := index.WikiTarget(raw)
		label := ref
		if i := strings.Index(raw, "|"); i >= 0 {
			label = strings.TrimSpace(raw[i+1:])
		}
		id := ""
		if resolve != nil && ref != "" {
			id = resolve(ref)
		}
		if id == "" {
			return "*" + escapeLinkText(label) + "*"
		}
		return "[" + escapeLinkText(label) + "](/notes/" + url.PathEscape(id) + ")"
	})
}

func linkifyTags(s string) string {
	tags := hashtag.Extract(s)
	if len(tags) == 0 {
		return s
	}
	runes := []rune(s)
	var b strings.Builder
	last := 0
	for _, t := range tags {
		if t.Start > 0 && !tagBoundary(runes[t.Start-1]) {
			continue
		}
		b.WriteString(string(runes[last:t.Start]))
		b.WriteString("[\\#" + t.Text + "](/?tag=" + url.QueryEscape(t.Text) + ")")
		last = t.End
	}
	b.WriteString(string(runes[last:]))
	return b.String()
}

func tagBoundary(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(",;:!?\"'*_~>", r)
}

func escapeLinkText(s string) string {
	r := strings.NewReplacer(`[`, `\[`, `]`, `\]`, `*`, `\*`)
	if !utf8.ValidString(s) {
		return ""
	}
	return r.Replace(s)
}
