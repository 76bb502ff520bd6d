package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/tui/components/goallist"
)

type SessionState int

const (
	StateAuth SessionState = iota
	StateDashboard
)

// Session is the part of the session manager the TUI drives.
type Session interface {
	Authenticated() bool
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, profile models.Profile) error
	Logout()
	Subscribe(fn func(authenticated bool)) (unsubscribe func())
}

// Engine is the part of the dashboard engine the TUI drives.
type Engine interface {
	Snapshot() models.Snapshot
	Subscribe(fn func(models.Snapshot)) (unsubscribe func())
	RefreshAll(ctx context.Context) error
	ToggleToday(ctx context.Context, goal models.Goal) error
}

type AuthFormModel struct {
	Register  bool
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

type Model struct {
	session Session
	engine  Engine
	subs    *subscriptions

	state    SessionState
	keys     KeyMap
	help     help.Model
	form     *huh.Form
	authForm *AuthFormModel
	goals    goallist.Model
	snap     models.Snapshot

	status     string // last failure shown under the current screen
	stale      bool
	submitting bool
	quitting   bool
	width      int
	height     int
}

// New builds the root model. The initial screen follows the session's
// current state; later switches follow its notifications.
func New(s Session, e Engine) Model {
	snap := e.Snapshot()
	m := Model{
		session: s,
		engine:  e,
		subs:    subscribe(s, e),
		state:   StateAuth,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		goals:   goallist.New(snap.Today, 0, 0),
		snap:    snap,
	}
	if s.Authenticated() {
		m.state = StateDashboard
	} else {
		m.resetAuthForm(false, "")
	}
	return m
}

// Close stops the session and engine subscriptions and releases any
// command still waiting on them.
func (m Model) Close() {
	m.subs.close()
}

func (m Model) State() SessionState {
	return m.state
}

func (m *Model) resetAuthForm(register bool, email string) {
	m.authForm = &AuthFormModel{Register: register, Email: email}
	m.form = newAuthForm(m.authForm)
}
