package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

type authDoneMsg struct {
	err error
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func newAuthForm(fm *AuthFormModel) *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Email").
			Value(&fm.Email).
			Validate(notEmpty("email")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&fm.Password).
			Validate(notEmpty("password")),
	}
	if fm.Register {
		fields = append(fields,
			huh.NewInput().
				Title("First name").
				Value(&fm.FirstName),
			huh.NewInput().
				Title("Last name").
				Value(&fm.LastName),
			huh.NewInput().
				Title("Username").
				Description("Leave empty to derive it from your name or email").
				Value(&fm.Username),
		)
	}
	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeDracula())
}

func (m Model) updateAuth(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.submitting {
			return m, nil
		}
		if key.Matches(msg, m.keys.SwitchMode) {
			m.resetAuthForm(!m.authForm.Register, m.authForm.Email)
			m.status = ""
			return m, m.form.Init()
		}
	}
	if m.submitting {
		return m, nil
	}

	var cmds []tea.Cmd
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	cmds = append(cmds, cmd)

	switch m.form.State {
	case huh.StateCompleted:
		m.submitting = true
		m.status = ""
		cmds = append(cmds, m.submit(*m.authForm))
	case huh.StateAborted:
		m.quitting = true
		return m, tea.Quit
	}
	return m, tea.Batch(cmds...)
}

// submit sends the form in the background. A success shows up as a
// session notification; authDoneMsg only reports the outcome.
func (m Model) submit(fm AuthFormModel) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		ctx := context.Background()
		if !fm.Register {
			return authDoneMsg{err: s.Login(ctx, fm.Email, fm.Password)}
		}

		username := strings.TrimSpace(fm.Username)
		if username == "" {
			username = models.DefaultUsername(fm.FirstName, fm.Email)
		}
		err := s.Register(ctx, models.Profile{
			Email:     fm.Email,
			Username:  username,
			FirstName: fm.FirstName,
			LastName:  fm.LastName,
			Password:  fm.Password,
		})
		return authDoneMsg{err: errors.WithMessage(err, constants.MsgRegisterFailed)}
	}
}

func (m Model) handleAuthDone(msg authDoneMsg) (Model, tea.Cmd) {
	m.submitting = false
	if msg.err == nil {
		return m, nil
	}
	m.status = errors.Message(msg.err)
	m.resetAuthForm(m.authForm.Register, m.authForm.Email)
	return m, m.form.Init()
}
