package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/mason/report"
)

// InspectModel is a Bubble Tea model for batch report views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_batch":
		content = m.renderInspectBatch()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectBatch() string {
	data, ok := m.data.(*report.BatchReport)
	if !ok {
		return "Invalid data type for inspect_batch"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Batch Report"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Batch ID", data.BatchID},
		{"Version", data.Version},
		{"Started At", data.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration", fmt.Sprintf("%dms", data.DurationMs)},
		{"Bundles", fmt.Sprintf("%d", len(data.Bundles))},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render(row[0]+":"),
			ValueStyle.Render(row[1])))
	}

	if data.Metrics != nil {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Metrics"))
		b.WriteString("\n")
		counts := [][2]string{
			{"Exported", fmt.Sprintf("%d", data.Metrics.BundlesExported)},
			{"Copied", fmt.Sprintf("%d", data.Metrics.BundlesCopied)},
			{"Skipped", fmt.Sprintf("%d", data.Metrics.BundlesSkippedDL+data.Metrics.BundlesSkippedVal)},
			{"Textures", fmt.Sprintf("%d", data.Metrics.TexturesResolved)},
		}
		for _, c := range counts {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(c[0]+":"),
				CountStyle.Render(c[1])))
		}
	}

	if len(data.Bundles) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Bundles"))
		b.WriteString("\n")
		for _, entry := range data.Bundles {
			status := StatusStyle(string(entry.Status)).Render(string(entry.Status))
			name := entry.ModelStem
			if name == "" {
				name = entry.URL
			}
			b.WriteString(fmt.Sprintf("  %s  %s", status, ValueStyle.Render(name)))
			if entry.Message != "" {
				b.WriteString("  " + HelpStyle.Render(entry.Message))
			}
			b.WriteString("\n")
		}
	}

	return BoxStyle.Render(b.String())
}

// RunInspectTUI starts the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}
