package hashtag

import (
	"sort"
	"strings"
)

// MaxSuggestions caps every suggestion list.
const MaxSuggestions = 8

// TagStat is how often a tag is used across the user's notes.
type TagStat struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Rank orders candidate tags for query. With an empty query it returns the
// most used tags. Otherwise it keeps tags containing query (case-insensitive),
// puts tags starting with query first, an exact match ahead of the other
// prefix matches, then sorts by usage count. Remaining ties keep the order of
// tags, which callers get alphabetically from the index.
func Rank(query string, tags []TagStat) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return topByCount(tags, MaxSuggestions)
	}

	cands := make([]candidate, 0, len(tags))
	for i, t := range tags {
		lower := strings.ToLower(t.Tag)
		if !strings.Contains(lower, q) {
			continue
		}
		cands = append(cands, candidate{
			tag:   t.Tag,
			count: t.Count,
			pos:   i,
			group: matchGroup(lower, q),
		})
	}
	return rankCandidates(cands, MaxSuggestions)
}

// Groups sort before counts: an exact match leads even when a longer prefix
// match is used more often, and count order applies within each group.
const (
	groupExact = iota
	groupPrefix
	groupContains
)

type candidate struct {
	tag   string
	count int
	pos   int
	group int
}

func matchGroup(lower, q string) int {
	switch {
	case lower == q:
		return groupExact
	case strings.HasPrefix(lower, q):
		return groupPrefix
	default:
		return groupContains
	}
}

func rankCandidates(cands []candidate, limit int) []string {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.group != b.group {
			return a.group < b.group
		}
		if a.count != b.count {
			return a.count > b.count
		}
		return a.pos < b.pos
	})
	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.tag
	}
	return out
}

func topByCount(tags []TagStat, limit int) []string {
	sorted := make([]TagStat, len(tags))
	copy(sorted, tags)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]string, len(sorted))
	for i, t := range sorted {
		out[i] = t.Tag
	}
	return out
}
