package tui

import "strings"

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("hashnote · quick note"))
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	b.WriteByte('\n')

	if popup := m.popup(); popup != "" {
		b.WriteString(popup)
		b.WriteByte('\n')
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteByte('\n')
	case m.status != "":
		b.WriteString(successStyle.Render(m.status))
		b.WriteByte('\n')
	}

	b.WriteString(helpStyle.Render("enter/ctrl+s save · ↑/↓ pick tag · tab accept · esc quit"))
	return b.String()
}

func (m Model) popup() string {
	st := m.sess.State()
	if st.Active == nil {
		return ""
	}
	if st.Searching && len(st.Results) == 0 {
		return popupStyle.Render(mutedStyle.Render("searching…"))
	}
	if len(st.Results) == 0 {
		return ""
	}
	lines := make([]string, len(st.Results))
	for i, tag := range st.Results {
		if i == st.Selected {
			lines[i] = selectedStyle.Render("› #" + tag)
		} else {
			lines[i] = normalStyle.Render("  #" + tag)
		}
	}
	return popupStyle.Render(strings.Join(lines, "\n"))
}
