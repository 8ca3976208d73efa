package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/postboard/internal/logger"
	"github.com/existflow/postboard/internal/model"
)

// Source is the API surface the browser needs
type Source interface {
	ListPosts(depth, limit int) ([]*model.Thread, error)
	CreatePost(title, content, parent string) (*model.Post, error)
	DeletePost(id string) error
}

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeNewPost
	ModeReply
	ModeHelp
)

// Model is the thread browser
type Model struct {
	src   Source
	depth int
	limit int
	now   func() time.Time

	threads   []*model.Thread
	collapsed map[string]bool
	rows      []row

	// UI state
	width   int
	height  int
	mode    Mode
	cursor  int
	loading bool

	input textinput.Model

	message string
	err     error
}

type threadsLoadedMsg struct {
	threads []*model.Thread
	err     error
}

type actionDoneMsg struct {
	message string
	err     error
}

// NewModel creates a browser over the caller's threads, fetched with the
// given tree bounds.
func NewModel(src Source, depth, limit int) Model {
	logger.Info("Initializing thread browser", logger.F("depth", depth), logger.F("limit", limit))

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 60

	return Model{
		src:       src,
		depth:     depth,
		limit:     limit,
		now:       time.Now,
		collapsed: make(map[string]bool),
		input:     ti,
		loading:   true,
	}
}

// Init loads the first page of threads
func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	src, depth, limit := m.src, m.depth, m.limit
	return func() tea.Msg {
		threads, err := src.ListPosts(depth, limit)
		return threadsLoadedMsg{threads: threads, err: err}
	}
}

func (m *Model) rebuild() {
	m.rows = flatten(m.threads, m.collapsed)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() *model.Thread {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].thread
}
