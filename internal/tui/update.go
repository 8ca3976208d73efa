package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/postboard/internal/logger"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case threadsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			logger.Error("Failed to load threads", logger.F("error", msg.err))
			m.err = msg.err
			return m, nil
		}
		m.threads = msg.threads
		m.rebuild()
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.message = msg.message
		m.loading = true
		return m, m.load()

	case tea.KeyMsg:
		if m.mode == ModeNewPost || m.mode == ModeReply {
			return m.updateInput(msg)
		}
		return m.updateNormal(msg)
	}

	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}

	if m.mode == ModeHelp {
		m.mode = ModeNormal
		return m, nil
	}

	m.message = ""
	sel := m.selected()

	switch {
	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.Toggle):
		if sel != nil && len(sel.Children) > 0 {
			m.collapsed[sel.ID] = !m.collapsed[sel.ID]
			m.rebuild()
		}

	case key.Matches(msg, keys.Expand):
		if sel != nil && m.collapsed[sel.ID] {
			delete(m.collapsed, sel.ID)
			m.rebuild()
		}

	case key.Matches(msg, keys.Collapse):
		if sel == nil {
			break
		}
		if len(sel.Children) > 0 && !m.collapsed[sel.ID] {
			m.collapsed[sel.ID] = true
			m.rebuild()
			break
		}
		m.cursor = m.parentRow(m.cursor)

	case key.Matches(msg, keys.New):
		m.startInput(ModeNewPost, "Title of the new post")
		return m, textinput.Blink

	case key.Matches(msg, keys.Reply):
		if sel != nil {
			m.startInput(ModeReply, "Reply to "+truncate(sel.Title, 40))
			return m, textinput.Blink
		}

	case key.Matches(msg, keys.Delete):
		if sel != nil {
			return m, m.deletePost(sel.ID)
		}

	case key.Matches(msg, keys.Refresh):
		m.loading = true
		return m, m.load()
	}

	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil

	case key.Matches(msg, keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		mode := m.mode
		m.mode = ModeNormal
		m.input.Blur()

		if mode == ModeReply {
			parent := m.selected()
			if parent == nil {
				return m, nil
			}
			return m, m.createPost("re: "+parent.Title, text, parent.ID)
		}
		return m, m.createPost(text, text, "")
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) startInput(mode Mode, placeholder string) {
	m.mode = mode
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.Focus()
}

// parentRow finds the closest row above i that is one level shallower
func (m Model) parentRow(i int) int {
	if i <= 0 || i >= len(m.rows) {
		return i
	}
	depth := m.rows[i].depth
	for j := i - 1; j >= 0; j-- {
		if m.rows[j].depth < depth {
			return j
		}
	}
	return i
}

func (m Model) createPost(title, content, parent string) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		p, err := src.CreatePost(title, content, parent)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{message: "Posted " + shortID(p.ID)}
	}
}

func (m Model) deletePost(id string) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		if err := src.DeletePost(id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{message: "Deleted " + shortID(id)}
	}
}
