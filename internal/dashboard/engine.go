package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
)

var (
	// ErrStale is returned by RefreshAll when neither the combined endpoint
	// nor the fallback produced data. The published snapshot is unchanged.
	ErrStale = errors.New("dashboard not refreshed")
	// ErrToggleInFlight is returned when a toggle for the same goal has not
	// finished yet.
	ErrToggleInFlight = errors.New("toggle already in flight")
)

// Source is the remote side of the dashboard.
type Source interface {
	Dashboard(ctx context.Context) (models.Dashboard, error)
	Stats(ctx context.Context, window models.Window) (models.Stats, error)
	Today(ctx context.Context) ([]models.TodayState, error)
	SetCompleted(ctx context.Context, goalID string, completed bool) error
}

// Engine keeps the published dashboard snapshot in line with the server.
//
// Every fetch takes a stamp when it is issued and is applied only if no
// newer fetch has been applied, so an old response that lands late cannot
// overwrite newer server state. Optimistic flips take no stamp. They are
// tracked per goal and laid over any fetch issued before the goal's
// mutation was confirmed.
type Engine struct {
	src Source
	now func() time.Time

	mu        sync.Mutex
	snap      models.Snapshot
	issued    uint64
	fetched   uint64 // newest applied fetch
	inFlight  map[string]*pending
	observers map[int]func(models.Snapshot)
	nextID    int
}

// pending is an unconfirmed toggle.
type pending struct {
	target bool
	// base is the server's flag as of the newest applied fetch, or the
	// pre-toggle flag if none has been applied since the flip.
	base bool
	// reconcile stamps the fetch issued after the mutation succeeded.
	// Fetches older than it do not reflect the mutation.
	reconcile uint64
}

func New(src Source) *Engine {
	return &Engine{
		src:       src,
		now:       time.Now,
		inFlight:  make(map[string]*pending),
		observers: make(map[int]func(models.Snapshot)),
	}
}

// Snapshot returns a copy of the published state.
func (e *Engine) Snapshot() models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone()
}

// Subscribe registers fn to receive every published snapshot. fn runs on
// the publishing goroutine, outside the engine lock; deliveries from
// concurrent operations may arrive out of order, so compare Version.
func (e *Engine) Subscribe(fn func(models.Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.observers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

// RefreshAll fetches the combined dashboard and, if that fails, the four
// individual resources. Published state changes only when a complete set
// of data arrived.
func (e *Engine) RefreshAll(ctx context.Context) error {
	stamp := e.stamp()

	d, err := e.src.Dashboard(ctx)
	if err == nil {
		e.commit(stamp, models.SnapshotFrom(d, e.now()))
		return nil
	}
	logger.Debug("combined dashboard unavailable, falling back", "error", err)

	snap, err := e.fallback(ctx)
	if err != nil {
		logger.Info("dashboard refresh failed, keeping last known data", "error", err)
		return fmt.Errorf("%w: %v", ErrStale, err)
	}
	e.commit(stamp, snap)
	return nil
}

// fallback issues the four requests in parallel and waits for all of them.
// One failure does not cancel the others.
func (e *Engine) fallback(ctx context.Context) (models.Snapshot, error) {
	var g errgroup.Group
	var day, week, month models.Stats
	var today []models.TodayState

	g.Go(func() (err error) { day, err = e.src.Stats(ctx, models.WindowDay); return })
	g.Go(func() (err error) { week, err = e.src.Stats(ctx, models.WindowWeek); return })
	g.Go(func() (err error) { month, err = e.src.Stats(ctx, models.WindowMonth); return })
	g.Go(func() (err error) { today, err = e.src.Today(ctx); return })

	if err := g.Wait(); err != nil {
		return models.Snapshot{}, err
	}
	return models.NewSnapshot(day, week, month, today, e.now()), nil
}

// ToggleToday flips today's completion of goal. The flip is published
// before any request is sent; the server's dashboard replaces it once the
// mutation succeeds, and it is rolled back if the mutation or the follow-up
// fetch fails.
func (e *Engine) ToggleToday(ctx context.Context, goal models.Goal) error {
	e.mu.Lock()
	if _, busy := e.inFlight[goal.ID]; busy {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrToggleInFlight, goal.ID)
	}

	idx := e.indexLocked(goal.ID)
	wasCompleted := idx >= 0 && e.snap.Today[idx].Completed
	p := &pending{target: !wasCompleted, base: wasCompleted, reconcile: math.MaxUint64}
	e.inFlight[goal.ID] = p
	if idx >= 0 {
		e.snap.Today[idx].Completed = p.target
	}
	publish := e.publishLocked(idx >= 0)
	e.mu.Unlock()
	publish()

	defer func() {
		e.mu.Lock()
		e.releaseLocked(goal.ID, p)
		e.mu.Unlock()
	}()

	err := e.src.SetCompleted(ctx, goal.ID, p.target)
	if err == nil {
		e.mu.Lock()
		e.issued++
		stamp := e.issued
		p.reconcile = stamp
		e.mu.Unlock()

		var d models.Dashboard
		if d, err = e.src.Dashboard(ctx); err == nil {
			e.commit(stamp, models.SnapshotFrom(d, e.now()))
			return nil
		}
	}

	logger.Info("toggle failed, rolling back", "goal", goal.ID, "error", err)
	e.rollback(goal.ID, p)
	return fmt.Errorf("toggle %s: %w", goal.ID, err)
}

// rollback drops the overlay for goalID and shows the server's last known
// flag for it.
func (e *Engine) rollback(goalID string, p *pending) {
	e.mu.Lock()
	e.releaseLocked(goalID, p)
	changed := false
	if idx := e.indexLocked(goalID); idx >= 0 && e.snap.Today[idx].Completed != p.base {
		e.snap.Today[idx].Completed = p.base
		changed = true
	}
	publish := e.publishLocked(changed)
	e.mu.Unlock()
	publish()
}

// releaseLocked drops p unless a newer toggle of the goal replaced it.
func (e *Engine) releaseLocked(goalID string, p *pending) {
	if e.inFlight[goalID] == p {
		delete(e.inFlight, goalID)
	}
}

func (e *Engine) stamp() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.issued++
	return e.issued
}

// commit replaces the whole snapshot if stamp is the newest applied fetch
// so far. Goals with an unconfirmed toggle keep their optimistic flag unless
// the fetch was issued after the mutation succeeded.
func (e *Engine) commit(stamp uint64, snap models.Snapshot) bool {
	e.mu.Lock()
	if fetched := e.fetched; stamp <= fetched {
		e.mu.Unlock()
		logger.Debug("discarding stale dashboard response", "stamp", stamp, "fetched", fetched)
		return false
	}
	e.fetched = stamp
	for id, p := range e.inFlight {
		i := snap.Index(id)
		if i < 0 {
			continue
		}
		p.base = snap.Today[i].Completed
		if stamp < p.reconcile {
			snap.Today[i].Completed = p.target
		}
	}
	snap.Version = e.snap.Version
	e.snap = snap
	publish := e.publishLocked(true)
	e.mu.Unlock()
	publish()
	return true
}

// publishLocked bumps the version and returns a func that notifies
// observers; call it after releasing the lock.
func (e *Engine) publishLocked(changed bool) func() {
	if !changed {
		return func() {}
	}
	e.snap.Version++
	snap := e.snap.Clone()
	observers := make([]func(models.Snapshot), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	return func() {
		for _, fn := range observers {
			fn(snap.Clone())
		}
	}
}

func (e *Engine) indexLocked(goalID string) int {
	return e.snap.Index(goalID)
}
