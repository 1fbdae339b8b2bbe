package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/refsync/refsync/internal/sync"
)

// kindTitle renders an item kind as a display label ("Record", "Pdf").
var kindTitle = cases.Title(language.English)

// ConflictAction represents the action to perform after conflict resolution.
type ConflictAction int

const (
	// ConflictActionNone means no action was taken (user quit).
	ConflictActionNone ConflictAction = iota
	// ConflictActionResolve means the user resolved conflicts and wants to apply.
	ConflictActionResolve
	// ConflictActionCancel means the user cancelled.
	ConflictActionCancel
)

// ConflictListResult contains the result of the conflict resolution interaction.
type ConflictListResult struct {
	Action      ConflictAction
	Resolutions map[string]sync.Resolution
}

// conflictPhase represents the current phase of conflict resolution.
type conflictPhase int

const (
	phaseList conflictPhase = iota
	phaseDetail
)

// conflictKeyMap defines the key bindings for conflict resolution.
type conflictKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Local    key.Binding
	Remote   key.Binding
	Both     key.Binding
	All      key.Binding
	Confirm  key.Binding
	Back     key.Binding
	Help     key.Binding
	Quit     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

func defaultConflictKeyMap() conflictKeyMap {
	return conflictKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "view details"),
		),
		Local: key.NewBinding(
			key.WithKeys("l", "1"),
			key.WithHelp("l/1", "use local"),
		),
		Remote: key.NewBinding(
			key.WithKeys("r", "2"),
			key.WithHelp("r/2", "use remote"),
		),
		Both: key.NewBinding(
			key.WithKeys("o", "3"),
			key.WithHelp("o/3", "keep both"),
		),
		All: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "apply current choice to all"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "apply resolutions"),
		),
		Back: key.NewBinding(
			key.WithKeys("b", "esc"),
			key.WithHelp("b/esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "page down"),
		),
	}
}

// ConflictListModel is the BubbleTea model for conflict resolution.
type ConflictListModel struct {
	conflicts   []*sync.Conflict
	resolutions map[string]sync.Resolution
	table       table.Model
	viewport    viewport.Model
	keys        conflictKeyMap
	result      ConflictListResult
	phase       conflictPhase
	cursor      int
	showHelp    bool
	confirmMode bool
	width       int
	height      int
	quitting    bool
	ready       bool
}

// Styles for the conflict resolution TUI.
var conflictStyles = struct {
	Title        lipgloss.Style
	Help         lipgloss.Style
	Status       lipgloss.Style
	LocalValue   lipgloss.Style
	RemoteValue  lipgloss.Style
	FieldName    lipgloss.Style
	Info         lipgloss.Style
	Resolved     lipgloss.Style
	Confirm      lipgloss.Style
	SectionTitle lipgloss.Style
}{
	Title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:         lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Status:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
	LocalValue:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	RemoteValue:  lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	FieldName:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	Info:         lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Italic(true),
	Resolved:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Confirm:      lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Padding(0, 1),
	SectionTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(1, 0),
}

// NewConflictListModel creates a new conflict resolution model.
func NewConflictListModel(conflicts []*sync.Conflict) ConflictListModel {
	resolutions := make(map[string]sync.Resolution)

	columns := []table.Column{
		{Title: "Status", Width: 6},
		{Title: "Kind", Width: 8},
		{Title: "Key", Width: 30},
		{Title: "Differs", Width: 24},
		{Title: "Resolution", Width: 12},
	}

	rows := make([]table.Row, len(conflicts))
	for i, c := range conflicts {
		rows[i] = buildConflictRow(c, "")
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ConflictListModel{
		conflicts:   conflicts,
		resolutions: resolutions,
		table:       t,
		keys:        defaultConflictKeyMap(),
		phase:       phaseList,
	}
}

func buildConflictRow(c *sync.Conflict, resolution string) table.Row {
	status := "○"
	if resolution != "" {
		status = "✓"
	}

	resStr := "-"
	if resolution != "" {
		resStr = resolution
	}

	return table.Row{
		status,
		kindTitle.String(string(c.Kind)),
		truncateText(c.Key, 30),
		truncateText(strings.Join(c.FieldNames(), ", "), 24),
		resStr,
	}
}

// Init implements tea.Model.
func (m ConflictListModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ConflictListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseList:
		return m.updateList(msg)
	case phaseDetail:
		return m.updateDetail(msg)
	}
	return m, nil
}

func (m ConflictListModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		newHeight := max(msg.Height-10, 5)
		m.table.SetHeight(newHeight)

	case tea.KeyMsg:
		// Handle confirmation mode first
		if m.confirmMode {
			switch msg.String() {
			case "y", "Y":
				m.result = ConflictListResult{
					Action:      ConflictActionResolve,
					Resolutions: m.resolutions,
				}
				m.quitting = true
				return m, tea.Quit
			case "n", "N", "esc":
				m.confirmMode = false
				return m, nil
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.result = ConflictListResult{Action: ConflictActionCancel}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Select):
			if len(m.conflicts) > 0 {
				m.cursor = m.table.Cursor()
				m.phase = phaseDetail
				m.ready = false
				return m, nil
			}

		case key.Matches(msg, m.keys.Local):
			m.resolveCurrentConflict(sync.ResolutionUseLocal)
			return m, nil

		case key.Matches(msg, m.keys.Remote):
			m.resolveCurrentConflict(sync.ResolutionUseRemote)
			return m, nil

		case key.Matches(msg, m.keys.Both):
			m.resolveCurrentConflict(sync.ResolutionKeepBoth)
			return m, nil

		case key.Matches(msg, m.keys.All):
			m.applyCurrentToAll()
			return m, nil

		case key.Matches(msg, m.keys.Confirm):
			if m.allResolved() {
				m.confirmMode = true
				return m, nil
			}

		case key.Matches(msg, m.keys.Back):
			m.result = ConflictListResult{Action: ConflictActionCancel}
			m.quitting = true
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ConflictListModel) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 6
		footerHeight := 4
		viewportHeight := max(msg.Height-headerHeight-footerHeight, 5)

		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, viewportHeight)
			m.viewport.SetContent(m.buildDetailContent())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = viewportHeight
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.result = ConflictListResult{Action: ConflictActionCancel}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			m.phase = phaseList
			return m, nil

		case key.Matches(msg, m.keys.Local):
			m.resolveConflictAt(m.cursor, sync.ResolutionUseLocal)
			m.viewport.SetContent(m.buildDetailContent())
			return m, nil

		case key.Matches(msg, m.keys.Remote):
			m.resolveConflictAt(m.cursor, sync.ResolutionUseRemote)
			m.viewport.SetContent(m.buildDetailContent())
			return m, nil

		case key.Matches(msg, m.keys.Both):
			m.resolveConflictAt(m.cursor, sync.ResolutionKeepBoth)
			m.viewport.SetContent(m.buildDetailContent())
			return m, nil
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *ConflictListModel) resolveCurrentConflict(resolution sync.Resolution) {
	m.resolveConflictAt(m.table.Cursor(), resolution)
}

func (m *ConflictListModel) resolveConflictAt(idx int, resolution sync.Resolution) {
	if idx < 0 || idx >= len(m.conflicts) {
		return
	}

	c := m.conflicts[idx]
	m.resolutions[c.ID()] = resolution

	m.updateTableRow(idx)
}

// applyCurrentToAll spreads the cursor row's resolution over every conflict
// that has none yet. A no-op when the cursor row is itself unresolved.
func (m *ConflictListModel) applyCurrentToAll() {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.conflicts) {
		return
	}
	res, ok := m.resolutions[m.conflicts[idx].ID()]
	if !ok {
		return
	}
	for i, c := range m.conflicts {
		if _, done := m.resolutions[c.ID()]; !done {
			m.resolutions[c.ID()] = res
			m.updateTableRow(i)
		}
	}
}

func (m *ConflictListModel) updateTableRow(idx int) {
	if idx < 0 || idx >= len(m.conflicts) {
		return
	}

	c := m.conflicts[idx]
	resolution := ""
	if res, ok := m.resolutions[c.ID()]; ok {
		resolution = string(res)
	}

	rows := m.table.Rows()
	if idx < len(rows) {
		rows[idx] = buildConflictRow(c, resolution)
		m.table.SetRows(rows)
	}
}

func (m ConflictListModel) allResolved() bool {
	for _, c := range m.conflicts {
		if _, ok := m.resolutions[c.ID()]; !ok {
			return false
		}
	}
	return len(m.conflicts) > 0
}

func (m ConflictListModel) buildDetailContent() string {
	if m.cursor < 0 || m.cursor >= len(m.conflicts) {
		return "No conflict selected"
	}

	c := m.conflicts[m.cursor]
	var b strings.Builder

	b.WriteString(conflictStyles.SectionTitle.Render("Conflict Details"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Key:  %s\n", c.Key))
	b.WriteString(fmt.Sprintf("  Kind: %s\n", c.Kind))

	if res, ok := m.resolutions[c.ID()]; ok {
		b.WriteString("\n")
		b.WriteString(conflictStyles.Resolved.Render(fmt.Sprintf("  Resolution: %s", res)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(conflictStyles.SectionTitle.Render("Diverging Fields"))
	b.WriteString("\n")

	width := max(m.width-12, 40)
	for _, name := range c.FieldNames() {
		diff := c.FieldDiffs[name]
		b.WriteString(conflictStyles.FieldName.Render(name))
		b.WriteString("\n")
		b.WriteString("  local:  ")
		b.WriteString(conflictStyles.LocalValue.Render(wrapText(diff.Local, width)))
		b.WriteString("\n")
		b.WriteString("  remote: ")
		b.WriteString(conflictStyles.RemoteValue.Render(wrapText(diff.Remote, width)))
		b.WriteString("\n\n")
	}

	b.WriteString(conflictStyles.Info.Render("Press: l=local, r=remote, o=keep both, b=back"))

	return b.String()
}

// View implements tea.Model.
func (m ConflictListModel) View() string {
	if m.quitting {
		return ""
	}

	switch m.phase {
	case phaseDetail:
		return m.viewDetail()
	default:
		return m.viewList()
	}
}

func (m ConflictListModel) viewList() string {
	var b strings.Builder

	title := conflictStyles.Title.Render("⚠️  Resolve Conflicts")
	b.WriteString(title)
	b.WriteString("\n\n")

	info := conflictStyles.Info.Render("Select a resolution for each conflict before applying")
	b.WriteString(info)
	b.WriteString("\n\n")

	if m.confirmMode {
		b.WriteString(m.table.View())
		b.WriteString("\n\n")
		confirmMsg := fmt.Sprintf("Apply %d resolution(s)? (y/n)", len(m.resolutions))
		b.WriteString(conflictStyles.Confirm.Render(confirmMsg))
		return b.String()
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")

	resolved := len(m.resolutions)
	total := len(m.conflicts)
	status := fmt.Sprintf("%d/%d resolved", resolved, total)
	if resolved == total && total > 0 {
		status += " • Press y to apply"
	}
	b.WriteString(conflictStyles.Status.Render(status))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.renderFullHelp())
	} else {
		b.WriteString(m.renderShortHelp())
	}

	return b.String()
}

func (m ConflictListModel) viewDetail() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	key := ""
	if m.cursor >= 0 && m.cursor < len(m.conflicts) {
		key = m.conflicts[m.cursor].Key
	}
	title := conflictStyles.Title.Render(fmt.Sprintf("📄 Conflict: %s", key))
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	scrollPercent := int(m.viewport.ScrollPercent() * 100)
	b.WriteString(conflictStyles.Status.Render(fmt.Sprintf("Scroll: %d%%", scrollPercent)))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.renderDetailHelp())
	} else {
		b.WriteString(m.renderDetailShortHelp())
	}

	return b.String()
}

func (m ConflictListModel) renderShortHelp() string {
	keys := []string{
		"↑/↓ navigate",
		"enter details",
		"l local",
		"r remote",
		"o both",
		"a all",
		"? help",
		"q quit",
	}
	return conflictStyles.Help.Render(strings.Join(keys, " • "))
}

func (m ConflictListModel) renderFullHelp() string {
	help := `Navigation:
  ↑/k      Move up
  ↓/j      Move down
  Enter    View conflict details

Resolution:
  l/1      Use local version
  r/2      Use remote version
  o/3      Keep both versions
  a        Apply cursor row's choice to all unresolved

Actions:
  y        Apply all resolutions
  b/Esc    Cancel sync

General:
  ?        Toggle full help
  q        Quit without applying`
	return conflictStyles.Help.Render(help)
}

func (m ConflictListModel) renderDetailShortHelp() string {
	keys := []string{
		"↑/↓ scroll",
		"l local",
		"r remote",
		"o both",
		"b back",
		"? help",
	}
	return conflictStyles.Help.Render(strings.Join(keys, " • "))
}

func (m ConflictListModel) renderDetailHelp() string {
	help := `Navigation:
  ↑/k      Scroll up
  ↓/j      Scroll down
  PgUp     Page up
  PgDown   Page down

Resolution:
  l/1      Use local version
  r/2      Use remote version
  o/3      Keep both versions

Actions:
  b/Esc    Go back to list

General:
  ?        Toggle full help
  q        Quit without applying`
	return conflictStyles.Help.Render(help)
}

// Result returns the result of the user interaction.
func (m ConflictListModel) Result() ConflictListResult {
	return m.result
}

// RunConflictList runs the interactive conflict resolution and returns the result.
func RunConflictList(conflicts []*sync.Conflict) (ConflictListResult, error) {
	if len(conflicts) == 0 {
		return ConflictListResult{}, nil
	}

	mdl := NewConflictListModel(conflicts)
	finalModel, err := tea.NewProgram(mdl, tea.WithAltScreen()).Run()
	if err != nil {
		return ConflictListResult{}, err
	}

	if m, ok := finalModel.(ConflictListModel); ok {
		return m.Result(), nil
	}

	return ConflictListResult{}, nil
}
