package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/picklover/InteYara/dotnet"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectCategory modelState = iota
	stateShowCategory
)

type category struct {
	name  string
	items []string
}

type interactiveModel struct {
	err        error
	filename   string
	report     *dotnet.Report
	categories []category
	selected   int
	state      modelState
	filter     textinput.Model
}

type loadedMsg struct {
	err    error
	report *dotnet.Report
}

func newInteractiveModel(filename string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.Width = 40
	return &interactiveModel{
		filename: filename,
		state:    stateSelectCategory,
		filter:   ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadReport
}

func (m *interactiveModel) loadReport() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	rep, err := dotnet.ExtractBytes(data)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{report: rep}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateShowCategory && m.filter.Focused() {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc", "enter":
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectCategory && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectCategory && m.selected < len(m.categories)-1 {
				m.selected++
			}

		case "enter":
			if m.state == stateSelectCategory && len(m.categories) > 0 {
				m.state = stateShowCategory
			}

		case "/":
			if m.state == stateShowCategory {
				m.filter.Focus()
				return m, textinput.Blink
			}

		case "esc":
			if m.state == stateShowCategory {
				m.state = stateSelectCategory
				m.filter.SetValue("")
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.report = msg.report
		m.categories = buildCategories(msg.report)
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.report == nil {
		return "Loading report..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("dotnetdump"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if !m.report.IsDotNet {
		b.WriteString("Not a .NET assembly.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelectCategory:
		b.WriteString("Select a category:\n\n")
		for i, c := range m.categories {
			line := fmt.Sprintf("%s (%d)", c.name, len(c.items))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateShowCategory:
		c := m.categories[m.selected]
		b.WriteString(titleStyle.Render(c.name))
		b.WriteString("\n\n")

		needle := strings.ToLower(m.filter.Value())
		shown := 0
		for _, it := range c.items {
			if needle != "" && !strings.Contains(strings.ToLower(it), needle) {
				continue
			}
			b.WriteString("  " + itemStyle.Render(it) + "\n")
			shown++
		}
		if shown == 0 {
			b.WriteString(helpStyle.Render("  (nothing matches)") + "\n")
		}

		b.WriteString("\n")
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("/ filter • esc back • q quit"))
	}

	return b.String()
}

// buildCategories flattens the report into browsable string lists. Only
// facts the extractor actually produced get a category.
func buildCategories(rep *dotnet.Report) []category {
	var cats []category

	var overview []string
	if rep.Version != nil {
		overview = append(overview, "version: "+*rep.Version)
	}
	if rep.ModuleName != nil {
		overview = append(overview, "module name: "+*rep.ModuleName)
	}
	if rep.TypeLib != nil {
		overview = append(overview, "typelib: "+*rep.TypeLib)
	}
	if rep.Assembly != nil {
		overview = append(overview, "assembly: "+formatAssembly(rep.Assembly))
	}
	cats = append(cats, category{name: "Overview", items: overview})

	if rep.Streams != nil {
		var items []string
		for _, s := range rep.Streams {
			items = append(items, fmt.Sprintf("%s offset %#x size %d", s.Name, s.Offset, s.Size))
		}
		cats = append(cats, category{name: "Streams", items: items})
	}
	if rep.GUIDs != nil {
		cats = append(cats, category{name: "GUIDs", items: rep.GUIDs})
	}
	if rep.AssemblyRefs != nil {
		var items []string
		for _, r := range rep.AssemblyRefs {
			items = append(items, formatAssemblyRef(r))
		}
		cats = append(cats, category{name: "Assembly refs", items: items})
	}
	if rep.Resources != nil {
		var items []string
		for _, r := range rep.Resources {
			name := "(unnamed)"
			if r.Name != nil {
				name = *r.Name
			}
			items = append(items, fmt.Sprintf("%s offset %#x length %d", name, r.Offset, r.Length))
		}
		cats = append(cats, category{name: "Resources", items: items})
	}
	if rep.ModuleRefs != nil {
		cats = append(cats, category{name: "Module refs", items: rep.ModuleRefs})
	}
	if rep.UserStrings != nil {
		var items []string
		for _, s := range rep.UserStrings {
			items = append(items, decodeUTF16(s))
		}
		cats = append(cats, category{name: "User strings", items: items})
	}
	if rep.Constants != nil {
		cats = append(cats, category{name: "Constants", items: rep.Constants})
	}
	if rep.FieldOffsets != nil {
		var items []string
		for _, off := range rep.FieldOffsets {
			items = append(items, fmt.Sprintf("%#x", off))
		}
		cats = append(cats, category{name: "Field offsets", items: items})
	}

	return cats
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newInteractiveModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
