package ui

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spindle/internal/binder"
)

// ViewState represents the current view in the picker.
type ViewState int

const (
	FileListView ViewState = iota
	CandidateListView
	SummaryView
)

// Model represents the match picker state.
type Model struct {
	view       ViewState
	selections []binder.SelectionNeeded
	fileList   list.Model
	candidates list.Model
	current    int // Index into selections while choosing candidates

	chosen    map[string]string // file path -> track URI
	skipped   map[string]bool
	confirmed bool

	width  int
	height int
	help   help.Model
	keys   keyMap
}

// NewModel creates a picker over the files that need a manual decision.
func NewModel(selections []binder.SelectionNeeded) *Model {
	m := &Model{
		view:       FileListView,
		selections: selections,
		chosen:     make(map[string]string),
		skipped:    make(map[string]bool),
		help:       help.New(),
		keys:       newKeyMap(),
	}

	items := make([]list.Item, len(selections))
	for i, sel := range selections {
		items[i] = fileItem{selection: sel}
	}
	m.fileList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.fileList.Title = "Files Needing A Match"
	return m
}

// Selections returns the confirmed file-to-track choices. Empty until the
// user confirms the summary view.
func (m *Model) Selections() map[string]string {
	if !m.confirmed {
		return map[string]string{}
	}
	return m.chosen
}

// Confirmed reports whether the user accepted their choices.
func (m *Model) Confirmed() bool {
	return m.confirmed
}

// Init implements tea.Model. All data is preloaded, so there is nothing to do.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the picker state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.fileList.SetSize(msg.Width-4, msg.Height-8)
		if m.candidates.Width() != 0 {
			m.candidates.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case FileListView:
			return m.handleFileListKeys(msg)
		case CandidateListView:
			return m.handleCandidateKeys(msg)
		case SummaryView:
			return m.handleSummaryKeys(msg)
		}
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case FileListView:
		return m.renderFileList()
	case CandidateListView:
		return m.renderCandidates()
	case SummaryView:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) handleFileListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		m.view = SummaryView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		idx := m.fileList.Index()
		if idx < 0 || idx >= len(m.selections) {
			return m, nil
		}
		m.current = idx
		m.openCandidates(m.selections[idx])
		return m, nil
	}

	var cmd tea.Cmd
	m.fileList, cmd = m.fileList.Update(msg)
	return m, cmd
}

func (m *Model) handleCandidateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sel := m.selections[m.current]

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = FileListView
		return m, nil
	case key.Matches(msg, m.keys.skip):
		delete(m.chosen, sel.FilePath)
		m.skipped[sel.FilePath] = true
		m.refreshFileItem(m.current)
		m.view = FileListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.candidates.SelectedItem().(candidateItem); ok {
			m.chosen[sel.FilePath] = item.candidate.Track.URI
			delete(m.skipped, sel.FilePath)
			m.refreshFileItem(m.current)
			m.view = FileListView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.candidates, cmd = m.candidates.Update(msg)
	return m, cmd
}

func (m *Model) handleSummaryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		m.confirmed = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = FileListView
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case FileListView:
		m.fileList, cmd = m.fileList.Update(msg)
	case CandidateListView:
		m.candidates, cmd = m.candidates.Update(msg)
	}
	return m, cmd
}

// openCandidates builds the candidate list for one file.
func (m *Model) openCandidates(sel binder.SelectionNeeded) {
	items := make([]list.Item, len(sel.Candidates))
	for i, c := range sel.Candidates {
		items[i] = candidateItem{candidate: c}
	}
	m.candidates = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.candidates.Title = fmt.Sprintf("Matches for '%s'", filepath.Base(sel.FilePath))
	m.candidates.SetSize(m.width-4, m.height-8)
	m.view = CandidateListView
}

// refreshFileItem re-renders one file row after its decision changed.
func (m *Model) refreshFileItem(idx int) {
	sel := m.selections[idx]
	item := fileItem{selection: sel, skipped: m.skipped[sel.FilePath]}
	if uri, ok := m.chosen[sel.FilePath]; ok {
		for _, c := range sel.Candidates {
			if c.Track.URI == uri {
				item.chosen = fmt.Sprintf("%s - %s", c.Track.Artists, c.Track.Title)
				break
			}
		}
	}
	m.fileList.SetItem(idx, item)
}

func (m *Model) renderFileList() string {
	doneKey := key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "review"))
	helpKeys := []key.Binding{m.keys.enter, doneKey, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.fileList.View(), helpView)
}

func (m *Model) renderCandidates() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.skip, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.candidates.View(), helpView)
}

func (m *Model) renderSummary() string {
	title := styles.title.Render("Apply These Bindings?")

	body := fmt.Sprintf("\nChosen: %d\nSkipped: %d\nUndecided: %d\n",
		len(m.chosen), len(m.skipped), len(m.selections)-len(m.chosen)-len(m.skipped))

	for _, sel := range m.selections {
		uri, ok := m.chosen[sel.FilePath]
		if !ok {
			continue
		}
		body += fmt.Sprintf("\n  %s → %s", filepath.Base(sel.FilePath), uri)
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s\n\n%s", title, body, helpView)
}

// Run starts the picker and blocks until the user quits or confirms,
// returning the confirmed selections.
func Run(selections []binder.SelectionNeeded) (map[string]string, error) {
	model := NewModel(selections)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return nil, fmt.Errorf("match picker failed: %w", err)
	}
	return model.Selections(), nil
}
