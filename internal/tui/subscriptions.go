package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/tally/internal/models"
)

type sessionMsg struct {
	authenticated bool
}

type snapshotMsg struct {
	snap models.Snapshot
}

// latest holds the newest value published from another goroutine until
// Update picks it up. Publishers never block on the UI.
type latest[T any] struct {
	mu    sync.Mutex
	val   T
	newer func(cur, next T) bool
	ready chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newLatest[T any](newer func(cur, next T) bool) *latest[T] {
	return &latest[T]{
		newer: newer,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (l *latest[T]) put(v T) {
	l.mu.Lock()
	if l.newer != nil && !l.newer(l.val, v) {
		l.mu.Unlock()
		return
	}
	l.val = v
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// wait blocks until a value is ready. It reports false once the mailbox
// is closed.
func (l *latest[T]) wait() (T, bool) {
	select {
	case <-l.ready:
	case <-l.done:
		var zero T
		return zero, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.val, true
}

func (l *latest[T]) close() {
	l.once.Do(func() { close(l.done) })
}

// subscriptions bridges session and engine notifications into tea messages.
type subscriptions struct {
	session  *latest[bool]
	snapshot *latest[models.Snapshot]
	cancel   []func()
}

func subscribe(s Session, e Engine) *subscriptions {
	subs := &subscriptions{
		session: newLatest[bool](nil),
		snapshot: newLatest(func(cur, next models.Snapshot) bool {
			return next.Version > cur.Version
		}),
	}
	subs.cancel = append(subs.cancel,
		s.Subscribe(subs.session.put),
		e.Subscribe(subs.snapshot.put),
	)
	return subs
}

func (s *subscriptions) waitSession() tea.Cmd {
	return func() tea.Msg {
		authenticated, ok := s.session.wait()
		if !ok {
			return nil
		}
		return sessionMsg{authenticated: authenticated}
	}
}

func (s *subscriptions) waitSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := s.snapshot.wait()
		if !ok {
			return nil
		}
		return snapshotMsg{snap: snap}
	}
}

// close detaches from the session and engine and releases pending waits.
func (s *subscriptions) close() {
	for _, cancel := range s.cancel {
		cancel()
	}
	s.cancel = nil
	s.session.close()
	s.snapshot.close()
}
