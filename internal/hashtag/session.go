package hashtag

import (
	"sync"
	"time"
)

// DefaultDebounce is how long the active match must stay unchanged before it
// becomes the search query.
const DefaultDebounce = 200 * time.Millisecond

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. time.AfterFunc is the default.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// State is a point-in-time copy of a Session.
type State struct {
	Active    *Match   `json:"activeHashtag"`
	Query     string   `json:"query"`
	Results   []string `json:"searchResults"`
	Selected  int      `json:"selectedIndex"`
	Searching bool     `json:"isSearching"`
}

// Session owns the autocomplete state of one editor: the active match, the
// debounced query, the ranked results and the selected index. It is only
// changed through its methods and is safe for concurrent use, since the
// debounce fires on a timer goroutine.
type Session struct {
	mu       sync.Mutex
	delay    time.Duration
	sched    Scheduler
	catalog  *Catalog
	active   *Match
	query    string
	results  []string
	selected int
	pending  Timer
	gen      uint64
	onChange func(State)
	onCommit func(State)
}

// Option configures a Session.
type Option func(*Session)

// WithDebounce overrides DefaultDebounce. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithScheduler replaces the timer source, mainly for tests.
func WithScheduler(sched Scheduler) Option {
	return func(s *Session) {
		if sched != nil {
			s.sched = sched
		}
	}
}

// WithTags seeds the tag snapshot.
func WithTags(tags []TagStat) Option {
	return func(s *Session) {
		s.catalog = NewCatalog(tags)
	}
}

// WithOnCommit calls fn after a debounce commit has replaced the query. A
// timer that was superseded before it could commit does not call fn.
func WithOnCommit(fn func(State)) Option {
	return func(s *Session) {
		s.onCommit = fn
	}
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		delay: DefaultDebounce,
		sched: clockScheduler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = NewCatalog(nil)
	}
	s.recomputeLocked()
	return s
}

// OnChange registers fn to be called with the new state after every change.
// fn runs without the session lock held and may call back into the session.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetActiveHashtag records the match under the cursor, or clears it with nil.
// A non-empty query is committed after the debounce interval; every call
// before then restarts the wait. An empty query is applied immediately.
func (s *Session) SetActiveHashtag(m *Match) {
	s.mu.Lock()
	s.cancelLocked()
	if m == nil {
		s.active = nil
	} else {
		cp := *m
		s.active = &cp
	}

	q := m.Query()
	switch {
	case q == "":
		s.setQueryLocked("")
	case q != s.query:
		s.gen++
		gen := s.gen
		s.pending = s.sched.AfterFunc(s.delay, func() { s.commit(gen, q) })
	}
	s.emitLocked()
}

// SetSelectedIndex moves the selection, clamped to the current results.
func (s *Session) SetSelectedIndex(i int) {
	s.mu.Lock()
	switch {
	case len(s.results) == 0 || i < 0:
		i = 0
	case i >= len(s.results):
		i = len(s.results) - 1
	}
	s.selected = i
	s.emitLocked()
}

// SetTags replaces the tag snapshot and re-ranks the current query.
func (s *Session) SetTags(tags []TagStat) {
	s.SetCatalog(NewCatalog(tags))
}

// SetCatalog replaces the tag snapshot with an already built catalog.
func (s *Session) SetCatalog(c *Catalog) {
	s.mu.Lock()
	if c == nil {
		c = NewCatalog(nil)
	}
	s.catalog = c
	s.recomputeLocked()
	s.emitLocked()
}

// HandleKey applies a navigation key. It returns true when the key was
// consumed and the caller should suppress its default handling. Nothing is
// consumed without an active match and at least one suggestion.
//
// Enter and Tab are consumed but leave the state alone; the caller follows up
// with Accept.
func (s *Session) HandleKey(k Key) bool {
	s.mu.Lock()
	n := len(s.results)
	if s.active == nil || n == 0 {
		s.mu.Unlock()
		return false
	}
	switch k {
	case KeyDown:
		s.selected = (s.selected + 1) % n
	case KeyUp:
		s.selected = (s.selected - 1 + n) % n
	case KeyEscape:
		s.cancelLocked()
		s.active = nil
		s.setQueryLocked("")
		s.selected = 0
	case KeyEnter, KeyTab:
		s.mu.Unlock()
		return true
	default:
		s.mu.Unlock()
		return false
	}
	s.emitLocked()
	return true
}

// Accept takes the selected suggestion and the match it should replace, then
// returns the session to the inactive state.
func (s *Session) Accept() (string, Match, bool) {
	s.mu.Lock()
	if s.active == nil || len(s.results) == 0 {
		s.mu.Unlock()
		return "", Match{}, false
	}
	tag := s.results[s.selected]
	m := *s.active
	s.cancelLocked()
	s.active = nil
	s.setQueryLocked("")
	s.selected = 0
	s.emitLocked()
	return tag, m, true
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Active() *Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	cp := *s.active
	return &cp
}

func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

func (s *Session) Results() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.results...)
}

func (s *Session) SelectedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) Searching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Close drops any pending commit.
func (s *Session) Close() {
	s.mu.Lock()
	s.cancelLocked()
	s.mu.Unlock()
}

func (s *Session) commit(gen uint64, q string) {
	s.mu.Lock()
	// A superseded timer can still fire if Stop lost the race.
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.setQueryLocked(q)
	committed := s.onCommit
	st := s.snapshotLocked()
	s.emitLocked()
	if committed != nil {
		committed(st)
	}
}

func (s *Session) cancelLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.gen++
}

func (s *Session) setQueryLocked(q string) {
	if q == s.query {
		return
	}
	s.query = q
	s.recomputeLocked()
}

func (s *Session) recomputeLocked() {
	s.results = s.catalog.Rank(s.query)
	s.selected = 0
}

func (s *Session) snapshotLocked() State {
	st := State{
		Query:     s.query,
		Results:   append([]string{}, s.results...),
		Selected:  s.selected,
		Searching: s.pending != nil,
	}
	if s.active != nil {
		cp := *s.active
		st.Active = &cp
	}
	return st
}

// emitLocked releases the lock and notifies the observer.
func (s *Session) emitLocked() {
	fn := s.onChange
	st := s.snapshotLocked()
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
