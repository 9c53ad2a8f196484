package hashtag

import (
	"strings"

	"github.com/tchap/go-patricia/v2/patricia"
)

// Catalog is an immutable snapshot of the known tags with a prefix trie over
// their lower-cased names. It ranks exactly like Rank but answers the prefix
// part of a query from a subtree walk instead of a full scan.
type Catalog struct {
	tags  []TagStat
	lower []string
	trie  *patricia.Trie
}

// NewCatalog indexes tags. The slice is copied; input order is kept for tie
// breaking.
func NewCatalog(tags []TagStat) *Catalog {
	c := &Catalog{
		tags:  make([]TagStat, len(tags)),
		lower: make([]string, len(tags)),
		trie:  patricia.NewTrie(),
	}
	copy(c.tags, tags)
	for i, t := range c.tags {
		key := strings.ToLower(t.Tag)
		c.lower[i] = key
		if item := c.trie.Get(patricia.Prefix(key)); item != nil {
			// Tags differing only in case share a key.
			c.trie.Set(patricia.Prefix(key), append(item.([]int), i))
			continue
		}
		c.trie.Insert(patricia.Prefix(key), []int{i})
	}
	return c
}

// Len returns the number of tags in the snapshot.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tags)
}

// Tags returns a copy of the snapshot.
func (c *Catalog) Tags() []TagStat {
	if c == nil {
		return nil
	}
	out := make([]TagStat, len(c.tags))
	copy(out, c.tags)
	return out
}

// Rank returns the suggestions for query against this snapshot.
func (c *Catalog) Rank(query string) []string {
	if c == nil || len(c.tags) == 0 {
		return []string{}
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return topByCount(c.tags, MaxSuggestions)
	}

	cands := make([]candidate, 0, 16)
	_ = c.trie.VisitSubtree(patricia.Prefix(q), func(_ patricia.Prefix, item patricia.Item) error {
		for _, pos := range item.([]int) {
			cands = append(cands, candidate{
				tag:   c.tags[pos].Tag,
				count: c.tags[pos].Count,
				pos:   pos,
				group: matchGroup(c.lower[pos], q),
			})
		}
		return nil
	})
	for pos, lower := range c.lower {
		if strings.HasPrefix(lower, q) || !strings.Contains(lower, q) {
			continue
		}
		cands = append(cands, candidate{
			tag:   c.tags[pos].Tag,
			count: c.tags[pos].Count,
			pos:   pos,
			group: groupContains,
		})
	}
	return rankCandidates(cands, MaxSuggestions)
}
