// Package tui is a terminal quick-note editor with hashtag suggestions.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"hashnote/internal/hashtag"
	"hashnote/internal/notes"
)

const (
	saveTimeout   = 10 * time.Second
	maxTitleRunes = 60
	charLimit     = 1000
)

// Store is the part of notes.Service the editor needs.
type Store interface {
	Create(ctx context.Context, owner, title, body string) (notes.Note, error)
	TagStats(ctx context.Context, owner string) ([]hashtag.TagStat, error)
}

// stateMsg wakes the program after the session changed off the update loop,
// which is what a debounce commit does.
type stateMsg struct{}

type tagsMsg struct{ tags []hashtag.TagStat }

type savedMsg struct {
	note notes.Note
	tags []hashtag.TagStat
}

type errMsg struct{ err error }

// Model is the bubbletea model for one capture session.
type Model struct {
	store   Store
	owner   string
	input   textinput.Model
	sess    *hashtag.Session
	changes chan struct{}
	status  string
	err     error
	saved   []notes.Note
}

// Option configures a Model.
type Option func(*options)

type options struct {
	session []hashtag.Option
}

// WithSessionOptions passes options through to the hashtag session.
func WithSessionOptions(opts ...hashtag.Option) Option {
	return func(o *options) { o.session = append(o.session, opts...) }
}

func NewModel(store Store, owner string, opts ...Option) Model {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ti := textinput.New()
	ti.Placeholder = "Write a note, #tag it"
	ti.Prompt = "> "
	ti.CharLimit = charLimit
	ti.Focus()

	m := Model{
		store:   store,
		owner:   owner,
		input:   ti,
		sess:    hashtag.NewSession(o.session...),
		changes: make(chan struct{}, 1),
	}
	changes := m.changes
	m.sess.OnChange(func(hashtag.State) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadTags(), m.waitForChange())
}

// Saved lists the notes created in this session, oldest first.
func (m Model) Saved() []notes.Note {
	return m.saved
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case stateMsg:
		return m, m.waitForChange()
	case tagsMsg:
		m.sess.SetTags(msg.tags)
		return m, nil
	case savedMsg:
		m.saved = append(m.saved, msg.note)
		m.status = "saved " + msg.note.Path
		m.err = nil
		m.input.Reset()
		m.sess.SetActiveHashtag(nil)
		if msg.tags != nil {
			m.sess.SetTags(msg.tags)
		}
		return m, nil
	case errMsg:
		m.err = msg.err
		m.status = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.sess.Close()
		return m, tea.Quit
	case "ctrl+s":
		return m, m.save()
	}

	if k := hashtag.ParseKey(msg.String()); k != hashtag.KeyNone {
		if m.sess.HandleKey(k) {
			if k == hashtag.KeyEnter || k == hashtag.KeyTab {
				m.accept()
			}
			return m, nil
		}
		switch k {
		case hashtag.KeyEscape:
			m.sess.Close()
			return m, tea.Quit
		case hashtag.KeyEnter:
			return m, m.save()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.sess.SetActiveHashtag(hashtag.Detect(m.input.Value(), m.input.Position()))
	return m, cmd
}

func (m *Model) accept() {
	tag, match, ok := m.sess.Accept()
	if !ok {
		return
	}
	text, cursor := hashtag.Apply(m.input.Value(), match, tag)
	m.input.SetValue(text)
	m.input.SetCursor(cursor)
}

func (m Model) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		<-changes
		return stateMsg{}
	}
}

func (m Model) loadTags() tea.Cmd {
	store, owner := m.store, m.owner
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		tags, err := store.TagStats(ctx, owner)
		if err != nil {
			return errMsg{err}
		}
		return tagsMsg{tags}
	}
}

func (m Model) save() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	store, owner := m.store, m.owner
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		n, err := store.Create(ctx, owner, titleFor(text), text+"\n")
		if err != nil {
			return errMsg{err}
		}
		// A failed refresh keeps the old snapshot; the note itself is saved.
		tags, _ := store.TagStats(ctx, owner)
		return savedMsg{note: n, tags: tags}
	}
}

// titleFor derives a note title from the text with its hashtags removed.
func titleFor(text string) string {
	runes := []rune(text)
	var b strings.Builder
	prev := 0
	for _, t := range hashtag.Extract(text) {
		b.WriteString(string(runes[prev:t.Start]))
		b.WriteByte(' ')
		prev = t.End
	}
	b.WriteString(string(runes[prev:]))

	title := strings.Join(strings.Fields(b.String()), " ")
	if r := []rune(title); len(r) > maxTitleRunes {
		title = strings.TrimSpace(string(r[:maxTitleRunes]))
	}
	if title == "" {
		return "Quick note"
	}
	return title
}
