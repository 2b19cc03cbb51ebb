package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tree-sitter/tree-sitter-simplex/internal/parser"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
	hasError    bool
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

// ResultsMsg delivers a fresh batch of parse results to the dashboard.
type ResultsMsg struct {
	Results []parser.Result
}

type Model struct {
	list       list.Model
	spinner    spinner.Model
	results    []parser.Result
	errorCount int
	lastUpdate time.Time
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case ResultsMsg:
		m.results = msg.Results
		m.lastUpdate = time.Now()
		m.errorCount = 0

		items := []list.Item{}
		for _, r := range m.results {
			if r.HasError {
				m.errorCount++
			}
			items = append(items, item{
				title: fmt.Sprintf("%s (%s)", r.Path, r.Grammar),
				desc: fmt.Sprintf("%s root, %d nodes, %s",
					r.RootKind, r.NodeCount, r.Duration.Round(time.Microsecond)),
				hasError: r.HasError,
			})
		}
		m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d files",
		m.lastUpdate.Format("15:04:05"), len(m.results)))

	var summary string
	if m.errorCount == 0 {
		summary = successStyle.Render("all trees clean")
	} else {
		summary = errorStyle.Render(fmt.Sprintf("%d trees with syntax errors", m.errorCount))
	}

	header := fmt.Sprintf("%s\n%s %s | %s\n", titleStyle("Simplex Grammar Host"), m.spinner.View(), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func NewModel() Model {
	// Sized for a standard terminal until the first WindowSizeMsg arrives.
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 80, 24)
	l.Title = "Parse Results"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		list:    l,
		spinner: s,
	}
}
