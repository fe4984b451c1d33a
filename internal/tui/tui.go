// Package tui provides a Bubble Tea browser for one annotated track.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/partline/internal/interaction"
	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/timeline"
	"github.com/fakeyudi/partline/internal/track"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	selectedBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	partialBadge  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	cursorRowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabTrack tabID = iota
	tabDetails
	tabJournal
	tabCount
)

var tabNames = [tabCount]string{"Track", "Details", "Journal"}

// pollInterval is how often the view checks for writes from other processes.
const pollInterval = time.Second

type pollMsg time.Time

// ── Model ────────────────────

// Model is the root Bubble Tea model for the track browser.
type Model struct {
	track     *track.Track
	session   *session.Session
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool

	cursor    int
	highlight *timeline.Range
	status    string
	err       error

	// OnChange is called after every persisted edit so the caller can
	// journal it.
	OnChange func(op, detail string)
}

// New creates a browser over tr. s supplies the notes and journal shown on
// the Journal tab and may be nil.
func New(tr *track.Track, s *session.Session) Model {
	m := Model{track: tr, session: s}
	if s != nil && s.Cursor < tr.Len() {
		m.cursor = s.Cursor
	}
	_ = tr.Hover(m.cursor)
	return m
}

// Cursor returns the index of the hovered partition.
func (m Model) Cursor() int { return m.cursor }

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return pollTick() }

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "up", "k":
			m.moveCursor(m.cursor - 1)
		case "down", "j":
			m.moveCursor(m.cursor + 1)
		case "n":
			if p, ok := m.track.At(m.cursor); ok {
				if i, _, found := m.track.Next(p.Start); found {
					m.moveCursor(i)
				} else {
					m.status = "no later partition"
				}
			}
		case "p":
			if p, ok := m.track.At(m.cursor); ok {
				if i, _, found := m.track.Previous(p.End); found {
					m.moveCursor(i)
				} else {
					m.status = "no earlier partition"
				}
			}
		case " ", "enter":
			m.err = m.track.ToggleSelect(m.cursor)
		case "esc":
			m.track.ClearSelection()
		case "r":
			if m.track.Release() {
				m.status = "selection dismissed"
			}
		case "c":
			m.cutAtMidpoint()
		case "f":
			m.toggleHighlight()
		default:
			var cmd tea.Cmd
			m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
			return m, cmd
		}
		m.refresh()
		return m, nil

	case pollMsg:
		reloaded, err := m.track.Poll(context.Background())
		if err != nil {
			m.err = err
		}
		if reloaded {
			m.status = "reloaded external changes"
			m.clampCursor()
			m.refresh()
		}
		return m, pollTick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  partline  " + m.track.Filter().ContextID())

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ↑/↓ move  n/p jump  space select  c cut  f focus  r release  q quit"
	right := m.status
	if m.err != nil {
		right = errorStyle.Render(m.err.Error())
	}
	pad := m.width - lipgloss.Width(hint) - lipgloss.Width(right) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + right)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Actions ─────────────────────────────────

func (m *Model) moveCursor(i int) {
	if i < 0 || i >= m.track.Len() {
		return
	}
	m.cursor = i
	m.status = ""
	m.err = m.track.Hover(i)
}

func (m *Model) clampCursor() {
	if m.cursor >= m.track.Len() {
		m.cursor = m.track.Len() - 1
	}
	_ = m.track.Hover(m.cursor)
}

func (m *Model) cutAtMidpoint() {
	p, ok := m.track.At(m.cursor)
	if !ok {
		return
	}
	mid := timeline.FromMillis((p.Start.UnixMilli() + p.End.UnixMilli()) / 2)
	if err := m.track.Cut(context.Background(), m.cursor, mid); err != nil {
		m.err = err
		return
	}
	detail := fmt.Sprintf("partition %d at %s", m.cursor, timeline.FormatInstant(mid))
	m.status = "cut " + detail
	if m.OnChange != nil {
		m.OnChange("cut", detail)
	}
	m.clampCursor()
}

func (m *Model) toggleHighlight() {
	if m.highlight != nil {
		m.highlight = nil
		m.track.Highlight(nil)
		return
	}
	p, ok := m.track.At(m.cursor)
	if !ok {
		return
	}
	r := timeline.Range{Start: p.Start, End: p.End}
	m.highlight = &r
	m.track.Highlight(&r)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	for i := tabID(0); i < tabCount; i++ {
		m.viewports[i].SetContent(m.renderTab(i))
	}
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabTrack:
		return m.renderTrack()
	case tabDetails:
		return m.renderDetails()
	case tabJournal:
		return m.renderJournal()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderTrack() string {
	parts := m.track.Partitions()
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("%s  (%d partitions)", m.track.Range(), len(parts))))
	sb.WriteString("  " + renderBar(parts, m.track.Range(), m.width-4) + "\n\n")

	for i, p := range parts {
		ts := timeStyle.Render(fmt.Sprintf("%8s → %-8s", offset(m.track.Range(), p.Start), offset(m.track.Range(), p.End)))
		swatch := lipgloss.NewStyle().Background(lipgloss.Color(string(p.Color))).Render("  ")
		title := p.Label.Title
		if title == "" {
			title = dimStyle.Render("(untitled)")
		}
		if p.Interaction.Hover == interaction.HoverDeemphasized {
			title = dimStyle.Render(p.Label.Title)
		}
		row := fmt.Sprintf("  %3d  %s %s  %s %s", i, swatch, ts, badge(p.Interaction.Selection), title)
		if i == m.cursor {
			row = cursorRowStyle.Width(m.width - 2).Render(row)
		}
		sb.WriteString(row + "\n")
	}
	return sb.String()
}

func (m *Model) renderDetails() string {
	var sb strings.Builder
	p, ok := m.track.At(m.cursor)
	if !ok {
		return heading("No partition")
	}
	sb.WriteString(heading(fmt.Sprintf("Partition %d", m.cursor)))
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-12s", label)) + "  " + value + "\n")
	}
	row("ID:", fmt.Sprintf("%d", p.ID))
	row("Start:", timeline.FormatInstant(p.Start))
	row("End:", timeline.FormatInstant(p.End))
	row("Duration:", p.Duration().String())
	row("Title:", p.Label.Title)
	row("Subtitle:", p.Label.Subtitle)
	row("Category:", p.Category.String())
	row("Color:", lipgloss.NewStyle().Foreground(lipgloss.Color(string(p.Color))).Render(string(p.Color)))
	if p.Label.Body != "" {
		sb.WriteString(heading("Notes"))
		sb.WriteString("  " + p.Label.Body + "\n")
	}
	if sel := m.track.SelectedIndices(); len(sel) > 0 {
		sb.WriteString(heading("Selection"))
		sb.WriteString(fmt.Sprintf("  %v\n", sel))
	}
	return sb.String()
}

func (m *Model) renderJournal() string {
	var sb strings.Builder
	if m.session == nil {
		sb.WriteString(heading("Journal"))
		sb.WriteString(dimStyle.Render("  (no active session)") + "\n")
		return sb.String()
	}
	sb.WriteString(heading(fmt.Sprintf("Notes (%d)", len(m.session.Notes))))
	for _, n := range m.session.Notes {
		sb.WriteString(fmt.Sprintf("  %s  %s\n", timeStyle.Render(n.Timestamp.Format("15:04:05")), n.Message))
	}
	sb.WriteString(heading(fmt.Sprintf("Changes (%d)", len(m.session.Journal))))
	if len(m.session.Journal) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
	}
	for _, e := range m.session.Journal {
		sb.WriteString(fmt.Sprintf("  %s  %-6s  %s\n", timeStyle.Render(e.Timestamp.Format("15:04:05")), e.Op, e.Detail))
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// renderBar draws the track as a single row of width cells, each colored by
// the partition that owns the cell's midpoint.
func renderBar(parts []partition.Partition, rng timeline.Range, width int) string {
	if width < 1 || len(parts) == 0 {
		return ""
	}
	total := rng.Duration()
	var sb strings.Builder
	j := 0
	for cell := 0; cell < width; cell++ {
		at := rng.Start.Add(time.Duration((float64(cell) + 0.5) / float64(width) * float64(total)))
		for j < len(parts)-1 && !at.Before(parts[j].End) {
			j++
		}
		p := parts[j]
		style := lipgloss.NewStyle().Background(lipgloss.Color(string(p.Color)))
		ch := " "
		switch {
		case p.Interaction.Selection == interaction.Selected:
			ch = "▀"
		case p.Interaction.Hover == interaction.HoverEmphasized:
			ch = "▔"
		case p.Interaction.Hover == interaction.HoverDeemphasized:
			style = style.Faint(true)
			ch = "░"
		}
		sb.WriteString(style.Render(ch))
	}
	return sb.String()
}

func badge(s interaction.Selection) string {
	switch s {
	case interaction.Selected:
		return selectedBadge.Render("●")
	case interaction.PartiallySelected:
		return partialBadge.Render("◐")
	}
	return dimStyle.Render("○")
}

// offset formats t relative to the start of rng.
func offset(rng timeline.Range, t time.Time) string {
	return t.Sub(rng.Start).Round(time.Millisecond).String()
}

// Run starts the browser and returns the final model state.
func Run(m Model) (Model, error) {
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		return fm, err
	}
	return m, err
}
