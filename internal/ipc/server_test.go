package ipc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"hashnote/internal/hashtag"
)

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) hashtag.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// frames drains everything written so far, one raw message per frame.
func (b *lockedBuffer) frames(t *testing.T) []msgpack.RawMessage {
	t.Helper()
	b.mu.Lock()
	data := append([]byte(nil), b.buf.Bytes()...)
	b.buf.Reset()
	b.mu.Unlock()

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	var out []msgpack.RawMessage
	for {
		raw, err := dec.DecodeRaw()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, raw)
	}
}

func decodeFrame[T any](t *testing.T, raw msgpack.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, msgpack.Unmarshal(raw, &v))
	return v
}

func encodeRequests(t *testing.T, reqs ...any) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range reqs {
		data, err := msgpack.Marshal(r)
		require.NoError(t, err)
		buf.Write(data)
	}
	return &buf
}

func newTestServer(t *testing.T, in io.Reader) (*Server, *lockedBuffer, *manualScheduler) {
	t.Helper()
	out := &lockedBuffer{}
	sched := &manualScheduler{}
	if in == nil {
		in = bytes.NewReader(nil)
	}
	return NewServer(in, out, WithScheduler(sched)), out, sched
}

var testTags = []TagStat{{Tag: "work", Count: 5}, {Tag: "workout", Count: 2}, {Tag: "home", Count: 3}}

func TestServeDebouncePushesResults(t *testing.T) {
	in := encodeRequests(t,
		Request{ID: "1", Op: OpTags, Tags: testTags},
		Request{ID: "2", Op: OpInput, Text: "Plan #wor", Cursor: 9},
	)
	srv, out, sched := newTestServer(t, in)
	require.NoError(t, srv.Serve(context.Background()))

	frames := out.frames(t)
	require.Len(t, frames, 3)
	ready := decodeFrame[StatusFrame](t, frames[0])
	assert.Equal(t, "ready", ready.Status)

	tags := decodeFrame[StateResponse](t, frames[1])
	assert.Equal(t, "1", tags.ID)
	assert.Equal(t, []string{"work", "home", "workout"}, tags.Results)

	input := decodeFrame[StateResponse](t, frames[2])
	assert.Equal(t, "2", input.ID)
	require.NotNil(t, input.Active)
	assert.Equal(t, Match{Text: "wor", Start: 5, End: 9}, *input.Active)
	assert.True(t, input.Searching)
	assert.Equal(t, "", input.Query)

	sched.fire()
	frames = out.frames(t)
	require.Len(t, frames, 1)
	res := decodeFrame[ResultsFrame](t, frames[0])
	assert.Equal(t, "results", res.Op)
	assert.Equal(t, "wor", res.Query)
	assert.Equal(t, []string{"work", "workout"}, res.Results)
}

func TestStaleTimerPushesNothing(t *testing.T) {
	srv, out, sched := newTestServer(t, nil)
	srv.handle(Request{ID: "1", Op: OpTags, Tags: testTags})
	srv.handle(Request{ID: "2", Op: OpInput, Text: "#w", Cursor: 2})
	stale := sched.timers[0].f
	srv.handle(Request{ID: "3", Op: OpInput, Text: "#wo", Cursor: 3})
	out.frames(t)

	stale()
	assert.Empty(t, out.frames(t))
}

func TestStaleTimerAfterSameQueryPushesNothing(t *testing.T) {
	srv, out, sched := newTestServer(t, nil)
	srv.handle(Request{ID: "1", Op: OpTags, Tags: testTags})
	srv.handle(Request{ID: "2", Op: OpInput, Text: "#wo", Cursor: 3})
	sched.fire()
	srv.handle(Request{ID: "3", Op: OpInput, Text: "#w", Cursor: 2})
	stale := sched.timers[len(sched.timers)-1].f
	// Back to the committed query: nothing is scheduled and the match stays.
	srv.handle(Request{ID: "4", Op: OpInput, Text: "#wo", Cursor: 3})
	frames := out.frames(t)
	st := decodeFrame[StateResponse](t, frames[len(frames)-1])
	require.NotNil(t, st.Active)
	assert.False(t, st.Searching)

	stale()
	assert.Empty(t, out.frames(t))
}

func TestInputCursorOutsideTextClearsMatch(t *testing.T) {
	for _, cursor := range []int{99, -1} {
		srv, out, sched := newTestServer(t, nil)
		srv.handle(Request{ID: "1", Op: OpTags, Tags: testTags})
		srv.handle(Request{ID: "2", Op: OpInput, Text: "Hello #wor", Cursor: 10})
		srv.handle(Request{ID: "3", Op: OpInput, Text: "Hello", Cursor: cursor})
		frames := out.frames(t)
		require.Len(t, frames, 3)
		st := decodeFrame[StateResponse](t, frames[2])
		assert.Equal(t, "3", st.ID)
		assert.Nil(t, st.Active)
		assert.False(t, st.Searching)
		assert.Empty(t, st.Query)

		sched.fire()
		assert.Empty(t, out.frames(t))
	}
}

func TestKeyNavigationAndAccept(t *testing.T) {
	srv, out, sched := newTestServer(t, nil)
	text := "Plan #wo"
	srv.handle(Request{ID: "1", Op: OpTags, Tags: testTags})
	srv.handle(Request{ID: "2", Op: OpInput, Text: text, Cursor: 8})
	sched.fire()
	out.frames(t)

	srv.handle(Request{ID: "3", Op: OpKey, Key: "ArrowDown"})
	frames := out.frames(t)
	require.Len(t, frames, 1)
	st := decodeFrame[StateResponse](t, frames[0])
	assert.True(t, st.Handled)
	assert.Equal(t, 1, st.Selected)

	srv.handle(Request{ID: "4", Op: OpAccept, Text: text, Cursor: 8})
	frames = out.frames(t)
	require.Len(t, frames, 1)
	acc := decodeFrame[AcceptResponse](t, frames[0])
	assert.True(t, acc.OK)
	assert.Equal(t, "workout", acc.Tag)
	assert.Equal(t, "Plan #workout ", acc.Text)
	assert.Equal(t, 14, acc.Cursor)

	srv.handle(Request{ID: "5", Op: OpState})
	st = decodeFrame[StateResponse](t, out.frames(t)[0])
	assert.Nil(t, st.Active)
	assert.Equal(t, "", st.Query)
}

func TestAcceptWithoutSuggestion(t *testing.T) {
	srv, out, _ := newTestServer(t, nil)
	srv.handle(Request{ID: "1", Op: OpAccept, Text: "no tags", Cursor: 3})
	acc := decodeFrame[AcceptResponse](t, out.frames(t)[0])
	assert.False(t, acc.OK)
	assert.Equal(t, "no tags", acc.Text)
	assert.Equal(t, 3, acc.Cursor)
}

func TestKeyIgnoredWhenInactive(t *testing.T) {
	srv, out, _ := newTestServer(t, nil)
	srv.handle(Request{ID: "1", Op: OpKey, Key: "enter"})
	st := decodeFrame[StateResponse](t, out.frames(t)[0])
	assert.False(t, st.Handled)
}

func TestSelectClamps(t *testing.T) {
	srv, out, _ := newTestServer(t, nil)
	srv.handle(Request{ID: "1", Op: OpTags, Tags: testTags})
	srv.handle(Request{ID: "2", Op: OpSelect, Index: 9})
	frames := out.frames(t)
	require.Len(t, frames, 2)
	st := decodeFrame[StateResponse](t, frames[1])
	assert.Equal(t, 2, st.Selected)
}

func TestExtract(t *testing.T) {
	srv, out, _ := newTestServer(t, nil)
	srv.handle(Request{ID: "x", Op: OpExtract, Text: "über #café and #todo-list."})
	res := decodeFrame[ExtractResponse](t, out.frames(t)[0])
	assert.Equal(t, "x", res.ID)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []ExtractedTag{
		{Text: "café", Start: 5, End: 10},
		{Text: "todo-list", Start: 15, End: 25},
	}, res.Tags)
}

func TestErrors(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"unknown op", Request{ID: "1", Op: "frob"}},
		{"missing op", Request{ID: "2"}},
		{"bad key", Request{ID: "3", Op: OpKey, Key: "space"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, out, _ := newTestServer(t, nil)
			srv.handle(tc.req)
			frames := out.frames(t)
			require.Len(t, frames, 1)
			e := decodeFrame[ErrorFrame](t, frames[0])
			assert.Equal(t, tc.req.ID, e.ID)
			assert.Equal(t, 400, e.Code)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestServeSkipsMalformedFrame(t *testing.T) {
	in := encodeRequests(t, "not a map", Request{ID: "h", Op: OpHealth})
	srv, out, _ := newTestServer(t, in)
	require.NoError(t, srv.Serve(context.Background()))

	frames := out.frames(t)
	require.Len(t, frames, 3)
	e := decodeFrame[ErrorFrame](t, frames[1])
	assert.Equal(t, 400, e.Code)
	health := decodeFrame[StatusFrame](t, frames[2])
	assert.Equal(t, "h", health.ID)
	assert.Equal(t, "ok", health.Status)
}

func TestServeTruncatedInput(t *testing.T) {
	data, err := msgpack.Marshal(Request{ID: "1", Op: OpState})
	require.NoError(t, err)
	srv, _, _ := newTestServer(t, bytes.NewReader(data[:len(data)-2]))
	assert.Error(t, srv.Serve(context.Background()))
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv, _, _ := newTestServer(t, encodeRequests(t, Request{ID: "1", Op: OpState}))
	assert.ErrorIs(t, srv.Serve(ctx), context.Canceled)
}

func TestSeededTags(t *testing.T) {
	out := &lockedBuffer{}
	srv := NewServer(bytes.NewReader(nil), out, WithTags([]hashtag.TagStat{{Tag: "go", Count: 1}}), WithDebounce(time.Hour))
	srv.handle(Request{ID: "1", Op: OpState})
	st := decodeFrame[StateResponse](t, out.frames(t)[0])
	assert.Equal(t, []string{"go"}, st.Results)
}
