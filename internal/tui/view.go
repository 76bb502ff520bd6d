package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.state == StateAuth {
		return docStyle.Render(m.viewAuth())
	}
	return docStyle.Render(m.viewDashboard())
}

func (m Model) viewAuth() string {
	title, other := "Sign in", "create an account"
	if m.authForm.Register {
		title, other = "Create an account", "sign in instead"
	}

	parts := []string{titleStyle.Render(constants.AppName + " · " + title), "", m.form.View()}
	if m.submitting {
		parts = append(parts, mutedStyle.Render("Contacting server..."))
	}
	if m.status != "" {
		parts = append(parts, errorStyle.Render(m.status))
	}
	parts = append(parts, mutedStyle.Render("ctrl+r: "+other))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewDashboard() string {
	footer := fmt.Sprintf("%d remaining", m.snap.RemainingCount())
	if m.stale {
		footer += mutedStyle.Render("  · offline, " + constants.MsgStale)
	}

	parts := []string{
		titleStyle.Render(constants.AppName),
		renderCounters(m.snap),
		m.goals.View(),
		footer,
	}
	if m.status != "" {
		parts = append(parts, errorStyle.Render(m.status))
	}
	parts = append(parts, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderCounters shows month, week and day counters side by side.
func renderCounters(s models.Snapshot) string {
	counters := make([]string, 0, len(models.Windows))
	for i := len(models.Windows) - 1; i >= 0; i-- {
		w := models.Windows[i]
		counters = append(counters, counterStyle.Render(models.FormatCounter(s.StatsFor(w), w)))
	}
	return strings.Join(counters, " ")
}
