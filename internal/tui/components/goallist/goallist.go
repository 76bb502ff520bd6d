package goallist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/tally/internal/models"
)

type ToggleGoalMsg struct {
	Goal models.Goal
}

type RefreshMsg struct{}

type Item struct {
	State models.TodayState
}

func (i Item) Title() string {
	if i.State.Completed {
		return "✓ " + i.State.Goal.Name
	}
	return "○ " + i.State.Goal.Name
}

func (i Item) Description() string {
	if i.State.Completed {
		return "done today"
	}
	return "not done yet"
}

func (i Item) FilterValue() string { return i.State.Goal.Name }

type KeyMap struct {
	Toggle  key.Binding
	Refresh key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "toggle"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(today []models.TodayState, width, height int) Model {
	l := list.New(items(today), list.NewDefaultDelegate(), width, height)
	l.Title = "Today"
	l.SetShowTitle(false)
	l.SetShowHelp(false) // help is rendered by the root model
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)

	return Model{list: l, keys: DefaultKeyMap()}
}

// SetGoals replaces the items and keeps the cursor where it was.
func (m *Model) SetGoals(today []models.TodayState) {
	m.list.SetItems(items(today))
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}

func (m Model) Keys() KeyMap {
	return m.keys
}

func (m Model) Selected() (models.TodayState, bool) {
	i, ok := m.list.SelectedItem().(Item)
	return i.State, ok
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Toggle):
			if st, ok := m.Selected(); ok {
				return m, func() tea.Msg { return ToggleGoalMsg{Goal: st.Goal} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, func() tea.Msg { return RefreshMsg{} }
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return "\n  No goals for today.\n  Press 'r' to refresh."
	}
	return m.list.View()
}

func items(today []models.TodayState) []list.Item {
	out := make([]list.Item, len(today))
	for i, st := range today {
		out[i] = Item{State: st}
	}
	return out
}
