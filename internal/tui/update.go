package tui

import (
	"context"
	stderrors "errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/tally/internal/dashboard"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/tui/components/goallist"
)

// header and footer lines around the goal list
const chromeHeight = 8

type refreshDoneMsg struct {
	err error
}

type toggleDoneMsg struct {
	goalID string
	err    error
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.subs.waitSession(), m.subs.waitSnapshot()}
	if m.state == StateDashboard {
		cmds = append(cmds, m.refresh())
	} else {
		cmds = append(cmds, m.form.Init())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.goals.SetSize(msg.Width-4, max(msg.Height-chromeHeight, 3))

	case sessionMsg:
		var cmd tea.Cmd
		m, cmd = m.applySession(msg.authenticated)
		return m, tea.Batch(cmd, m.subs.waitSession())

	case snapshotMsg:
		m.applySnapshot(msg.snap)
		return m, m.subs.waitSnapshot()

	case authDoneMsg:
		return m.handleAuthDone(msg)

	case refreshDoneMsg:
		m.stale = stderrors.Is(msg.err, dashboard.ErrStale)
		m.status = ""
		if msg.err != nil && !m.stale {
			m.status = errors.Message(msg.err)
		}
		return m, nil

	case toggleDoneMsg:
		m.status = ""
		if msg.err != nil {
			m.status = errors.Message(msg.err)
		}
		return m, nil

	case goallist.ToggleGoalMsg:
		return m, m.toggle(msg.Goal)

	case goallist.RefreshMsg:
		return m, m.refresh()
	}

	if m.state == StateAuth {
		return m.updateAuth(msg)
	}
	return m.updateDashboard(msg)
}

// applySession switches screens when the credential appears or goes away.
func (m Model) applySession(authenticated bool) (Model, tea.Cmd) {
	switch {
	case authenticated && m.state != StateDashboard:
		m.state = StateDashboard
		m.status = ""
		return m, m.refresh()
	case !authenticated && m.state != StateAuth:
		m.state = StateAuth
		m.status = ""
		m.stale = false
		m.resetAuthForm(false, "")
		return m, m.form.Init()
	}
	return m, nil
}

// applySnapshot keeps the newest published snapshot.
func (m *Model) applySnapshot(snap models.Snapshot) {
	if snap.Version <= m.snap.Version {
		return
	}
	m.snap = snap
	m.goals.SetGoals(snap.Today)
}

func (m Model) updateDashboard(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Logout):
			s := m.session
			return m, func() tea.Msg {
				s.Logout()
				return nil
			}
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.goals, cmd = m.goals.Update(msg)
	return m, cmd
}

func (m Model) refresh() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		return refreshDoneMsg{err: e.RefreshAll(context.Background())}
	}
}

func (m Model) toggle(goal models.Goal) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		return toggleDoneMsg{goalID: goal.ID, err: e.ToggleToday(context.Background(), goal)}
	}
}
