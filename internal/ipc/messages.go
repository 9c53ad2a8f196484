/*
Package ipc serves hashtag autocomplete to editors over stdin/stdout.

Every frame is one msgpack map. Clients send requests carrying an id and an
op; the server answers each with exactly one frame echoing the id.

	{"id": "1", "op": "tags", "tags": [{"t": "work", "n": 4}, {"t": "home", "n": 2}]}
	{"id": "2", "op": "input", "text": "Plan #wo", "cursor": 8}
	{"id": "3", "op": "key", "key": "down"}
	{"id": "4", "op": "accept", "text": "Plan #wo", "cursor": 8}

Input only moves the active match; the query catches up after the debounce
interval. When it does, the server pushes an unsolicited frame without an id:

	{"op": "results", "q": "wo", "r": ["work"], "s": 0}

Failed requests get an error frame:

	{"id": "5", "e": "unknown op: frob", "c": 400}
*/
package ipc

import "hashnote/internal/hashtag"

const (
	OpTags    = "tags"
	OpInput   = "input"
	OpKey     = "key"
	OpSelect  = "select"
	OpAccept  = "accept"
	OpExtract = "extract"
	OpState   = "state"
	OpHealth  = "health"

	opReady   = "ready"
	opResults = "results"
)

// Request is the union of every client frame; which fields matter depends on Op.
type Request struct {
	ID     string    `msgpack:"id"`
	Op     string    `msgpack:"op"`
	Text   string    `msgpack:"text,omitempty"`
	Cursor int       `msgpack:"cursor,omitempty"`
	Key    string    `msgpack:"key,omitempty"`
	Index  int       `msgpack:"index,omitempty"`
	Tags   []TagStat `msgpack:"tags,omitempty"`
}

// TagStat is a tag and its usage count.
type TagStat struct {
	Tag   string `msgpack:"t"`
	Count int    `msgpack:"n"`
}

// Match mirrors hashtag.Match on the wire.
type Match struct {
	Text     string `msgpack:"text"`
	Start    int    `msgpack:"start"`
	End      int    `msgpack:"end"`
	Complete bool   `msgpack:"complete"`
}

// StateResponse answers tags, input, key, select and state.
type StateResponse struct {
	ID        string   `msgpack:"id"`
	Active    *Match   `msgpack:"a"`
	Query     string   `msgpack:"q"`
	Results   []string `msgpack:"r"`
	Selected  int      `msgpack:"s"`
	Searching bool     `msgpack:"b"`
	Handled   bool     `msgpack:"h,omitempty"`
	TimeTaken int64    `msgpack:"t"`
}

// AcceptResponse carries the edited text. OK is false when nothing was
// selectable; Text and Cursor then echo the request.
type AcceptResponse struct {
	ID     string `msgpack:"id"`
	OK     bool   `msgpack:"ok"`
	Tag    string `msgpack:"tag,omitempty"`
	Text   string `msgpack:"text"`
	Cursor int    `msgpack:"cursor"`
}

// ExtractedTag is a complete hashtag with rune offsets.
type ExtractedTag struct {
	Text  string `msgpack:"text"`
	Start int    `msgpack:"start"`
	End   int    `msgpack:"end"`
}

type ExtractResponse struct {
	ID    string         `msgpack:"id"`
	Tags  []ExtractedTag `msgpack:"tags"`
	Count int            `msgpack:"c"`
}

// ResultsFrame is pushed when a debounced query commits.
type ResultsFrame struct {
	Op       string   `msgpack:"op"`
	Query    string   `msgpack:"q"`
	Results  []string `msgpack:"r"`
	Selected int      `msgpack:"s"`
}

// StatusFrame is the ready banner and the health answer.
type StatusFrame struct {
	ID     string `msgpack:"id,omitempty"`
	Op     string `msgpack:"op,omitempty"`
	Status string `msgpack:"status"`
}

// ErrorFrame reports a failed request.
type ErrorFrame struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}

func toTagStats(in []TagStat) []hashtag.TagStat {
	out := make([]hashtag.TagStat, 0, len(in))
	for _, t := range in {
		out = append(out, hashtag.TagStat{Tag: t.Tag, Count: t.Count})
	}
	return out
}

func fromMatch(m *hashtag.Match) *Match {
	if m == nil {
		return nil
	}
	return &Match{Text: m.Text, Start: m.Start, End: m.End, Complete: m.Complete}
}
