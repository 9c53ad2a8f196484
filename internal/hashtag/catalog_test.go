package hashtag

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogMatchesRank(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"go", "golang", "Go", "gopher", "algo", "ergo", "test", "testing",
		"contest", "Test", "work", "homework", "worklog", "w", "café", "Café", "cafe"}
	var tags []TagStat
	for _, w := range words {
		tags = append(tags, TagStat{Tag: w, Count: rng.Intn(4)})
	}
	for i := 0; i < 30; i++ {
		tags = append(tags, TagStat{Tag: fmt.Sprintf("go-%d", i), Count: rng.Intn(10)})
	}

	c := NewCatalog(tags)
	require.Equal(t, len(tags), c.Len())
	queries := []string{"", " ", "g", "go", "GO", "o", "test", "es", "work", "w", "caf", "café",
		"go-1", "-", "zzz"}
	for _, q := range queries {
		assert.Equal(t, Rank(q, tags), c.Rank(q), "query %q", q)
	}
}

func TestCatalogNil(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Tags())
	assert.Equal(t, []string{}, c.Rank("go"))
	assert.Equal(t, []string{}, NewCatalog(nil).Rank(""))
}

func TestCatalogCopiesInput(t *testing.T) {
	tags := stats("go", 1)
	c := NewCatalog(tags)
	tags[0].Tag = "rust"
	assert.Equal(t, []string{"go"}, c.Rank("go"))

	out := c.Tags()
	out[0].Tag = "zig"
	assert.Equal(t, "go", c.Tags()[0].Tag)
}
