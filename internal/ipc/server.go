package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"hashnote/internal/hashtag"
)

const (
	codeBadRequest = 400
	codeInternal   = 500
)

// Server owns one autocomplete session and answers requests read from r.
type Server struct {
	r    io.Reader
	w    io.Writer
	wmu  sync.Mutex
	sess *hashtag.Session
}

type settings struct {
	debounce time.Duration
	sched    hashtag.Scheduler
	tags     []hashtag.TagStat
}

// Option configures a Server.
type Option func(*settings)

func WithDebounce(d time.Duration) Option {
	return func(s *settings) { s.debounce = d }
}

// WithScheduler replaces the debounce timer source.
func WithScheduler(sched hashtag.Scheduler) Option {
	return func(s *settings) { s.sched = sched }
}

// WithTags seeds the tag snapshot before the client sends one.
func WithTags(tags []hashtag.TagStat) Option {
	return func(s *settings) { s.tags = tags }
}

func NewServer(r io.Reader, w io.Writer, opts ...Option) *Server {
	var set settings
	for _, opt := range opts {
		opt(&set)
	}
	s := &Server{r: r, w: w}
	s.sess = hashtag.NewSession(
		hashtag.WithDebounce(set.debounce),
		hashtag.WithScheduler(set.sched),
		hashtag.WithTags(set.tags),
		hashtag.WithOnCommit(s.pushResults),
	)
	return s
}

// Serve announces readiness, then handles frames until r is exhausted or ctx
// is done. A clean end of input returns nil.
func (s *Server) Serve(ctx context.Context) error {
	defer s.sess.Close()
	slog.Debug("ipc server starting")
	s.send(StatusFrame{Op: opReady, Status: "ready"})

	dec := msgpack.NewDecoder(s.r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := dec.DecodeRaw()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			slog.Error("read frame", "err", err)
			return fmt.Errorf("read frame: %w", err)
		}
		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			slog.Debug("bad frame", "err", err)
			s.send(ErrorFrame{Error: "invalid request frame", Code: codeBadRequest})
			continue
		}
		s.handle(req)
	}
}

func (s *Server) handle(req Request) {
	start := time.Now()
	switch req.Op {
	case OpHealth:
		s.send(StatusFrame{ID: req.ID, Status: "ok"})
	case OpState:
		s.sendState(req.ID, false, start)
	case OpTags:
		s.sess.SetTags(toTagStats(req.Tags))
		s.sendState(req.ID, false, start)
	case OpInput:
		// A cursor outside the text detects nothing and clears the match.
		s.sess.SetActiveHashtag(hashtag.Detect(req.Text, req.Cursor))
		s.sendState(req.ID, false, start)
	case OpKey:
		k := hashtag.ParseKey(req.Key)
		if k == hashtag.KeyNone {
			s.sendError(req.ID, fmt.Sprintf("unknown key: %q", req.Key), codeBadRequest)
			return
		}
		s.sendState(req.ID, s.sess.HandleKey(k), start)
	case OpSelect:
		s.sess.SetSelectedIndex(req.Index)
		s.sendState(req.ID, false, start)
	case OpAccept:
		s.accept(req)
	case OpExtract:
		tags := hashtag.Extract(req.Text)
		out := make([]ExtractedTag, 0, len(tags))
		for _, t := range tags {
			out = append(out, ExtractedTag{Text: t.Text, Start: t.Start, End: t.End})
		}
		s.send(ExtractResponse{ID: req.ID, Tags: out, Count: len(out)})
	case "":
		s.sendError(req.ID, "missing op", codeBadRequest)
	default:
		s.sendError(req.ID, "unknown op: "+req.Op, codeBadRequest)
	}
}

func (s *Server) accept(req Request) {
	tag, m, ok := s.sess.Accept()
	if !ok {
		s.send(AcceptResponse{ID: req.ID, Text: req.Text, Cursor: req.Cursor})
		return
	}
	text, cursor := hashtag.Apply(req.Text, m, tag)
	s.send(AcceptResponse{ID: req.ID, OK: true, Tag: tag, Text: text, Cursor: cursor})
}

func (s *Server) sendState(id string, handled bool, start time.Time) {
	st := s.sess.State()
	s.send(StateResponse{
		ID:        id,
		Active:    fromMatch(st.Active),
		Query:     st.Query,
		Results:   st.Results,
		Selected:  st.Selected,
		Searching: st.Searching,
		Handled:   handled,
		TimeTaken: time.Since(start).Microseconds(),
	})
}

// pushResults sends the results of a debounce commit to the client unasked.
func (s *Server) pushResults(st hashtag.State) {
	s.send(ResultsFrame{Op: opResults, Query: st.Query, Results: st.Results, Selected: st.Selected})
}

func (s *Server) sendError(id, msg string, code int) {
	s.send(ErrorFrame{ID: id, Error: msg, Code: code})
}

// send writes one frame. Timer goroutines share the writer with the request
// loop.
func (s *Server) send(v any) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		slog.Error("marshal frame", "err", err)
		data, _ = msgpack.Marshal(ErrorFrame{Error: "internal error", Code: codeInternal})
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		slog.Error("write frame", "err", err)
	}
}
