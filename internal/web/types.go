package web

import (
	"html/template"

	"hashnote/internal/index"
)

type ViewData struct {
	Title           string
	User            string
	ContentTemplate string
	ContentHTML     template.HTML
	HighlightCSS    string

	Note         index.Note
	RenderedHTML template.HTML
	Backlinks    []index.Backlink

	Tag         string
	RecentNotes []index.NoteSummary
	Tags        []index.TagSummary
}
