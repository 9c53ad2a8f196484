package hashtag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	got := Extract("Tasks #work and #life-goals done")
	assert.Equal(t, []Tag{
		{Text: "work", Start: 6, End: 11},
		{Text: "life-goals", Start: 16, End: 27},
	}, got)
}

func TestExtractRules(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"leading digit rejected", "#1st #2nd", nil},
		{"underscore and digits", "#snake_case2 done", []string{"snake_case2"}},
		{"unicode letters", "#café #日本", []string{"café", "日本"}},
		{"adjacent", "#a#b", []string{"a", "b"}},
		{"stops at punctuation", "see #todo.", []string{"todo"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for _, tag := range Extract(tt.text) {
				names = append(names, tag.Text)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestExtractRuneOffsets(t *testing.T) {
	text := "ünï #tëst"
	tags := Extract(text)
	if assert.Len(t, tags, 1) {
		runes := []rune(text)
		assert.Equal(t, "#tëst", string(runes[tags[0].Start:tags[0].End]))
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"go", "rust"}, Names("#go #rust #go"))
}
