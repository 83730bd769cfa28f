package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/k6ui/internal/history"
)

var (
	listTitleStyle    = lipgloss.NewStyle().MarginLeft(2).Bold(true)
	itemStyle         = lipgloss.NewStyle().PaddingLeft(4)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("170"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1).MarginLeft(2)
)

type runItem struct {
	run *history.Run
}

func (i runItem) FilterValue() string {
	return i.run.Config.TargetURL + " " + string(i.run.Status)
}

func (i runItem) Title() string {
	return fmt.Sprintf("#%d %s %s %s [%s]",
		i.run.ID,
		i.run.StartedAt.Format("2006-01-02 15:04"),
		i.run.Config.Method,
		i.run.Config.TargetURL,
		i.run.Status)
}

func (i runItem) Description() string { return "" }

type selectorModel struct {
	list     list.Model
	choice   int64
	quitting bool
}

func (m selectorModel) Init() tea.Cmd {
	return nil
}

func (m selectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.choice = 0
			return m, tea.Quit

		case "enter":
			if i, ok := m.list.SelectedItem().(runItem); ok {
				m.choice = i.run.ID
			}
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m selectorModel) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("↑/↓: navigate • /: filter • enter: select • q/ctrl+c: cancel")
	return fmt.Sprintf("%s\n\n%s", m.list.View(), help)
}

// SelectRun shows an interactive list of runs and returns the chosen ID.
func SelectRun(runs []*history.Run) (int64, error) {
	if len(runs) == 0 {
		return 0, fmt.Errorf("no runs recorded yet")
	}

	items := make([]list.Item, 0, len(runs))
	for _, r := range runs {
		items = append(items, runItem{run: r})
	}

	const defaultWidth = 100
	const listHeight = 14

	l := list.New(items, itemDelegate{}, defaultWidth, listHeight)
	l.Title = "Select a run"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = listTitleStyle

	p := tea.NewProgram(selectorModel{list: l})
	finalModel, err := p.Run()
	if err != nil {
		return 0, fmt.Errorf("error running selector: %w", err)
	}

	result := finalModel.(selectorModel)
	if result.choice == 0 {
		return 0, fmt.Errorf("selection cancelled")
	}

	return result.choice, nil
}

// itemDelegate is a custom list item delegate
type itemDelegate struct{}

func (d itemDelegate) Height() int                             { return 1 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(runItem)
	if !ok {
		return
	}

	str := i.Title()

	fn := itemStyle.Render
	if index == m.Index() {
		fn = func(s ...string) string {
			return selectedItemStyle.Render("> " + strings.Join(s, " "))
		}
	}

	fmt.Fprint(w, fn(str))
}
