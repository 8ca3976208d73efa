package tui

import (
	"fmt"
	"strings"
)

// View renders the UI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("Postboard · %d threads", len(m.threads))))
	b.WriteString("\n\n")

	switch {
	case m.mode == ModeHelp:
		b.WriteString(m.helpView())
	case m.loading && len(m.rows) == 0:
		b.WriteString(RowStyle.Render("Loading..."))
	case len(m.rows) == 0:
		b.WriteString(RowStyle.Render("No posts yet. Press n to write one."))
	default:
		b.WriteString(m.rowsView())
	}
	b.WriteString("\n")

	if m.mode == ModeNewPost || m.mode == ModeReply {
		b.WriteString(ModalStyle.Render(m.input.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.statusView())
	return b.String()
}

func (m Model) rowsView() string {
	// keep the cursor inside the visible window
	visible := len(m.rows)
	if m.height > 8 {
		visible = m.height - 8
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.rows) {
		end = len(m.rows)
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	var lines []string
	for i := start; i < end; i++ {
		r := m.rows[i]
		t := r.thread

		marker := "•"
		if len(t.Children) > 0 {
			marker = "▾"
			if m.collapsed[t.ID] {
				marker = "▸"
			}
		}

		title := truncate(t.Title, max(10, width-40-2*r.depth))
		line := fmt.Sprintf("%s%s %s %s %s",
			strings.Repeat("  ", r.depth),
			marker,
			title,
			AuthorStyle.Render("@"+t.Author.Username),
			MetaStyle.Render(age(t.Created, m.now())))
		if m.collapsed[t.ID] {
			line += MetaStyle.Render(fmt.Sprintf(" (+%d)", t.Count()-1))
		}

		if i == m.cursor {
			lines = append(lines, RowSelectedStyle.Render(line))
		} else {
			lines = append(lines, RowStyle.Render(line))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) helpView() string {
	var lines []string
	for _, k := range keys.all() {
		h := k.Help()
		lines = append(lines, fmt.Sprintf("  %-8s %s", h.Key, h.Desc))
	}
	return HelpStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) statusView() string {
	switch {
	case m.err != nil:
		return StatusBarStyle.Render(ErrorStyle.Render(m.err.Error()))
	case m.message != "":
		return StatusBarStyle.Render(MessageStyle.Render(m.message))
	case m.mode == ModeNewPost || m.mode == ModeReply:
		return StatusBarStyle.Render("enter submit · esc cancel")
	default:
		return StatusBarStyle.Render("n new · r reply · d delete · R refresh · ? help · q quit")
	}
}
