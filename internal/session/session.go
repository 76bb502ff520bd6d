package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
)

// ErrAuthenticationFailed is returned when login or register is rejected,
// unreachable, or answers with a body that has no token.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Config configures how the manager reaches the auth endpoints.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Manager owns the bearer credential. It is the only component that reads
// or writes it; everything else asks it to stamp requests.
type Manager struct {
	cfg   Config
	store keyring.Store

	mu        sync.RWMutex
	token     string
	observers map[int]func(authenticated bool)
	nextID    int
}

// New creates a manager and loads any stored credential. A missing or
// unavailable keyring leaves the session signed out.
func New(cfg Config, store keyring.Store) *Manager {
	m := &Manager{
		cfg:       cfg,
		store:     store,
		observers: make(map[int]func(bool)),
	}

	token, err := store.Get()
	switch {
	case err == nil:
		m.token = token
		logger.Debug("loaded stored credential")
	case errors.Is(err, keyring.ErrNotFound):
		logger.Debug("no stored credential")
	default:
		logger.Warn("could not read credential store", "error", err)
	}
	return m
}

// Login exchanges email and password for a credential. On failure the
// previous credential is kept.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	return m.authenticate(ctx, constants.PathLogin, models.LoginRequest{Email: email, Password: password})
}

// Register creates an account and signs in with the returned credential.
func (m *Manager) Register(ctx context.Context, profile models.Profile) error {
	return m.authenticate(ctx, constants.PathRegister, profile)
}

func (m *Manager) authenticate(ctx context.Context, path string, body any) error {
	var resp models.AuthResponse
	if err := api.PostJSON(ctx, m.cfg.HTTPClient, m.cfg.BaseURL, path, body, &resp); err != nil {
		logger.Info("authentication rejected", "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if resp.Token == "" {
		logger.Info("authentication response without token", "path", path)
		return fmt.Errorf("%w: empty token", ErrAuthenticationFailed)
	}

	m.setToken(resp.Token)
	return nil
}

// Logout forgets the credential. Calling it while signed out does nothing.
func (m *Manager) Logout() {
	m.mu.RLock()
	signedIn := m.token != ""
	m.mu.RUnlock()

	if !signedIn {
		return
	}
	m.setToken("")
}

// AttachCredential adds the bearer token to req. Without a credential the
// request is left as is and the server is expected to reject it.
func (m *Manager) AttachCredential(req *http.Request) {
	token, ok := m.Token()
	if !ok {
		return
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
}

func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

func (m *Manager) Authenticated() bool {
	_, ok := m.Token()
	return ok
}

// Subscribe registers fn to be called after every credential change.
// The returned func removes it.
func (m *Manager) Subscribe(fn func(authenticated bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// setToken replaces the in-memory credential, then persists it. The
// in-memory value wins for this process even if persisting fails.
func (m *Manager) setToken(token string) {
	m.mu.Lock()
	m.token = token
	observers := make([]func(bool), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	if token != "" {
		_ = m.save(token)
	} else {
		_ = m.remove()
	}

	for _, fn := range observers {
		fn(token != "")
	}
}

func (m *Manager) save(token string) bool {
	if err := m.store.Set(token); err != nil {
		logger.Warn("credential not persisted; sign-in will not survive a restart", "error", err)
		return false
	}
	return true
}

func (m *Manager) remove() bool {
	err := m.store.Delete()
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logger.Warn("credential not removed from keyring", "error", err)
		return false
	}
	return true
}
