package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/apitest"
	"github.com/julianstephens/tally/internal/models"
)

var (
	run     = models.Goal{ID: "g1", Name: "Run"}
	read    = models.Goal{ID: "g2", Name: "Read"}
	stretch = models.Goal{ID: "g3", Name: "Stretch"}
)

func setupEngine(t *testing.T) (*Engine, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer("tok")
	t.Cleanup(srv.Close)

	srv.SetStats(models.Stats{Window: models.WindowDay, Completed: 1, Total: 2})
	srv.SetStats(models.Stats{Window: models.WindowWeek, Completed: 6, Total: 14})
	srv.SetStats(models.Stats{Window: models.WindowMonth, Completed: 30, Total: 60})
	srv.SetToday([]models.TodayState{
		{Goal: run, Completed: false},
		{Goal: read, Completed: true},
	})

	return New(api.New(srv.URL, srv.Client(), nil)), srv
}

func loaded(t *testing.T, e *Engine, srv *apitest.Server) {
	t.Helper()
	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	srv.Reset()
}

func completed(t *testing.T, s models.Snapshot, goalID string) bool {
	t.Helper()
	st, ok := s.Lookup(goalID)
	if !ok {
		t.Fatalf("goal %s missing from snapshot", goalID)
	}
	return st.Completed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

var ignoreBookkeeping = cmpopts.IgnoreFields(models.Snapshot{}, "UpdatedAt", "Version")

func TestRefreshAllCombined(t *testing.T) {
	e, srv := setupEngine(t)

	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	got := e.Snapshot()
	want := models.NewSnapshot(
		models.Stats{Window: models.WindowDay, Completed: 1, Total: 2},
		models.Stats{Window: models.WindowWeek, Completed: 6, Total: 14},
		models.Stats{Window: models.WindowMonth, Completed: 30, Total: 60},
		[]models.TodayState{{Goal: run}, {Goal: read, Completed: true}},
		time.Time{},
	)
	if diff := cmp.Diff(want, got, ignoreBookkeeping); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if len(srv.Requests()) != 1 {
		t.Errorf("requests = %+v, want only the combined fetch", srv.Requests())
	}
}

func TestRefreshAllFallback(t *testing.T) {
	e, srv := setupEngine(t)
	srv.Fail(http.MethodGet, "/api/dashboard", http.StatusInternalServerError)
	srv.SetStats(models.Stats{Window: models.WindowDay, Completed: 2, Total: 3})

	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	reqs := srv.Requests()
	if len(reqs) != 5 {
		t.Fatalf("got %d requests, want 1 combined + 4 fallback: %+v", len(reqs), reqs)
	}
	for _, uri := range []string{
		"/api/stats?window=day",
		"/api/stats?window=week",
		"/api/stats?window=month",
		"/api/goals/today",
	} {
		if srv.Count(http.MethodGet, uri) != 1 {
			t.Errorf("expected exactly one GET %s", uri)
		}
	}

	want := models.Stats{Window: models.WindowDay, Completed: 2, Total: 3}
	if diff := cmp.Diff(&want, e.Snapshot().StatsDay); diff != "" {
		t.Errorf("StatsDay mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshAllFallbackAllOrNothing(t *testing.T) {
	for _, path := range []string{"/api/stats", "/api/goals/today"} {
		t.Run(path, func(t *testing.T) {
			e, srv := setupEngine(t)
			loaded(t, e, srv)
			before := e.Snapshot()

			// New server values that must not leak into the published state.
			srv.SetStats(models.Stats{Window: models.WindowDay, Completed: 9, Total: 9})
			srv.SetToday([]models.TodayState{{Goal: stretch, Completed: true}})
			srv.Fail(http.MethodGet, "/api/dashboard", http.StatusBadGateway)
			srv.Fail(http.MethodGet, path, http.StatusServiceUnavailable)

			err := e.RefreshAll(context.Background())
			if !errors.Is(err, ErrStale) {
				t.Fatalf("RefreshAll() error = %v, want ErrStale", err)
			}
			if diff := cmp.Diff(before, e.Snapshot()); diff != "" {
				t.Errorf("published state changed (-before +after):\n%s", diff)
			}
			if n := len(srv.Requests()); n != 5 {
				t.Errorf("got %d requests, want all four fallback requests to complete", n)
			}
		})
	}
}

func TestFallbackSingleFailureKeepsState(t *testing.T) {
	src := &fakeSource{
		dashboard: func(context.Context, int) (models.Dashboard, error) {
			return models.Dashboard{}, errors.New("502")
		},
		stats: func(_ context.Context, w models.Window) (models.Stats, error) {
			if w == models.WindowMonth {
				return models.Stats{}, errors.New("month unavailable")
			}
			return models.Stats{Window: w, Completed: 1, Total: 1}, nil
		},
	}
	e := New(src)

	if err := e.RefreshAll(context.Background()); !errors.Is(err, ErrStale) {
		t.Fatalf("RefreshAll() error = %v, want ErrStale", err)
	}
	if e.Snapshot().Loaded {
		t.Error("snapshot should stay unloaded when one fallback request fails")
	}
	if got := src.calls(); got != 4 {
		t.Errorf("fallback calls = %d, want 4", got)
	}
}

func TestToggleOptimisticThenReconcile(t *testing.T) {
	e, srv := setupEngine(t)
	loaded(t, e, srv)
	release := srv.Hold(http.MethodPost, "/api/goals/g1/complete")

	done := make(chan error, 1)
	go func() { done <- e.ToggleToday(context.Background(), run) }()

	// Flipped before the mutation has answered.
	waitFor(t, func() bool { return completed(t, e.Snapshot(), "g1") })
	if stats := e.Snapshot().StatsDay; stats.Completed != 1 {
		t.Errorf("optimistic flip touched stats: %+v", stats)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("ToggleToday() error = %v", err)
	}

	snap := e.Snapshot()
	if !completed(t, snap, "g1") {
		t.Error("g1 should be completed after reconcile")
	}
	// Counters come from the server's recompute, not from the client.
	want := models.Stats{Window: models.WindowDay, Completed: 2, Total: 2}
	if diff := cmp.Diff(&want, snap.StatsDay); diff != "" {
		t.Errorf("StatsDay mismatch (-want +got):\n%s", diff)
	}
	if srv.Count(http.MethodPost, "/api/goals/g1/complete") != 1 {
		t.Errorf("requests = %+v", srv.Requests())
	}
	if srv.Count(http.MethodGet, "/api/dashboard") != 1 {
		t.Error("expected one reconcile fetch")
	}
}

func TestToggleCompletedGoalDeletes(t *testing.T) {
	e, srv := setupEngine(t)
	loaded(t, e, srv)

	if err := e.ToggleToday(context.Background(), read); err != nil {
		t.Fatalf("ToggleToday() error = %v", err)
	}
	if srv.Count(http.MethodDelete, "/api/goals/g2/complete") != 1 {
		t.Errorf("requests = %+v, want DELETE", srv.Requests())
	}
	if completed(t, e.Snapshot(), "g2") {
		t.Error("g2 should be cleared")
	}
}

func TestToggleMutationFailureRollsBack(t *testing.T) {
	e, srv := setupEngine(t)
	loaded(t, e, srv)
	statsBefore := e.Snapshot().StatsDay
	srv.Fail(http.MethodPost, "/api/goals/g1/complete", http.StatusServiceUnavailable)

	var mu sync.Mutex
	var flags []bool
	unsubscribe := e.Subscribe(func(s models.Snapshot) {
		st, _ := s.Lookup("g1")
		mu.Lock()
		flags = append(flags, st.Completed)
		mu.Unlock()
	})
	defer unsubscribe()

	err := e.ToggleToday(context.Background(), run)
	if !errors.Is(err, api.ErrServer) {
		t.Fatalf("ToggleToday() error = %v, want ErrServer", err)
	}

	snap := e.Snapshot()
	if completed(t, snap, "g1") {
		t.Error("g1 should be rolled back to incomplete")
	}
	if diff := cmp.Diff(statsBefore, snap.StatsDay); diff != "" {
		t.Errorf("stats changed (-before +after):\n%s", diff)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]bool{true, false}, flags); diff != "" {
		t.Errorf("published flags mismatch (-want +got):\n%s", diff)
	}
	if srv.Count(http.MethodGet, "/api/dashboard") != 0 {
		t.Error("no reconcile fetch expected after a failed mutation")
	}
}

func TestToggleReconcileFailureRollsBack(t *testing.T) {
	e, srv := setupEngine(t)
	loaded(t, e, srv)
	srv.Fail(http.MethodGet, "/api/dashboard", http.StatusInternalServerError)

	if err := e.ToggleToday(context.Background(), run); err == nil {
		t.Fatal("ToggleToday() should fail when the reconcile fetch fails")
	}
	if completed(t, e.Snapshot(), "g1") {
		t.Error("g1 should be rolled back")
	}
}

func TestToggleUnknownGoalStillPosts(t *testing.T) {
	e, srv := setupEngine(t)
	loaded(t, e, srv)
	before := e.Snapshot()

	ghost := models.Goal{ID: "ghost", Name: "Ghost"}
	err := e.ToggleToday(context.Background(), ghost)
	if err == nil {
		t.Fatal("server has no such goal, toggle should fail")
	}
	if srv.Count(http.MethodPost, "/api/goals/ghost/complete") != 1 {
		t.Errorf("requests = %+v, want one POST", srv.Requests())
	}
	if diff := cmp.Diff(before, e.Snapshot()); diff != "" {
		t.Errorf("snapshot changed (-before +after):\n%s", diff)
	}
}

func TestToggleSameGoalInFlight(t *testing.T) {
	e, srv := setupEngine(t)
	loaded(t, e, srv)
	release := srv.Hold(http.MethodPost, "/api/goals/g1/complete")

	done := make(chan error, 1)
	go func() { done <- e.ToggleToday(context.Background(), run) }()
	waitFor(t, func() bool { return completed(t, e.Snapshot(), "g1") })

	err := e.ToggleToday(context.Background(), run)
	if !errors.Is(err, ErrToggleInFlight) {
		t.Errorf("second ToggleToday() error = %v, want ErrToggleInFlight", err)
	}
	if !completed(t, e.Snapshot(), "g1") {
		t.Error("rejected toggle must not touch state")
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("first ToggleToday() error = %v", err)
	}

	// Guard is released once the first toggle finishes.
	if err := e.ToggleToday(context.Background(), run); err != nil {
		t.Errorf("third ToggleToday() error = %v", err)
	}
	if srv.Count(http.MethodPost, "/api/goals/g1/complete") != 1 ||
		srv.Count(http.MethodDelete, "/api/goals/g1/complete") != 1 {
		t.Errorf("requests = %+v", srv.Requests())
	}
}

func TestToggleDifferentGoalsRollBackIndependently(t *testing.T) {
	holdB := make(chan struct{})
	src := &fakeSource{
		dashboard: func(context.Context, int) (models.Dashboard, error) {
			return models.Dashboard{Today: []models.TodayState{{Goal: run}, {Goal: stretch}}}, nil
		},
		setCompleted: func(ctx context.Context, goalID string, _ bool) error {
			if goalID == stretch.ID {
				<-holdB
				return nil
			}
			return errors.New("503")
		},
	}
	e := New(src)
	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.onDashboard(func(context.Context, int) (models.Dashboard, error) {
		return models.Dashboard{Today: []models.TodayState{{Goal: run}, {Goal: stretch, Completed: true}}}, nil
	})

	doneB := make(chan error, 1)
	go func() { doneB <- e.ToggleToday(context.Background(), stretch) }()
	waitFor(t, func() bool { return completed(t, e.Snapshot(), "g3") })

	if err := e.ToggleToday(context.Background(), run); err == nil {
		t.Fatal("toggle of g1 should fail")
	}
	snap := e.Snapshot()
	if completed(t, snap, "g1") {
		t.Error("g1 should be rolled back even though g3's flip is newer")
	}
	if !completed(t, snap, "g3") {
		t.Error("g3's optimistic flip should survive g1's rollback")
	}

	close(holdB)
	if err := <-doneB; err != nil {
		t.Fatalf("toggle g3 error = %v", err)
	}
	if !completed(t, e.Snapshot(), "g3") {
		t.Error("g3 should be completed after reconcile")
	}
}

func TestStaleRefreshDiscarded(t *testing.T) {
	firstIssued := make(chan struct{})
	releaseFirst := make(chan struct{})
	src := &fakeSource{
		dashboard: func(_ context.Context, call int) (models.Dashboard, error) {
			if call == 1 {
				close(firstIssued)
				<-releaseFirst
				return models.Dashboard{StatsDay: models.Stats{Window: models.WindowDay, Completed: 1, Total: 5}}, nil
			}
			return models.Dashboard{StatsDay: models.Stats{Window: models.WindowDay, Completed: 4, Total: 5}}, nil
		},
	}
	e := New(src)

	done := make(chan error, 1)
	go func() { done <- e.RefreshAll(context.Background()) }()
	<-firstIssued

	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(releaseFirst)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if got := e.Snapshot().StatsDay.Completed; got != 4 {
		t.Errorf("StatsDay.Completed = %d, want 4 from the newer refresh", got)
	}
}

func TestRefreshOlderThanReconcileIsDiscarded(t *testing.T) {
	issued := make(chan struct{})
	release := make(chan struct{})
	src := &fakeSource{
		dashboard: func(_ context.Context, call int) (models.Dashboard, error) {
			switch call {
			case 1:
				return models.Dashboard{Today: []models.TodayState{{Goal: run}}}, nil
			case 2:
				close(issued)
				<-release
				return models.Dashboard{Today: []models.TodayState{{Goal: run}}}, nil
			}
			return models.Dashboard{Today: []models.TodayState{{Goal: run, Completed: true}}}, nil
		},
		setCompleted: func(context.Context, string, bool) error { return nil },
	}
	e := New(src)
	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.RefreshAll(context.Background()) }()
	<-issued

	if err := e.ToggleToday(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-done

	if !completed(t, e.Snapshot(), "g1") {
		t.Error("a refresh issued before the reconcile fetch overwrote newer state")
	}
}

func TestReconcileSurvivesOtherGoalRollback(t *testing.T) {
	e, srv := setupEngine(t)
	loaded(t, e, srv)
	release := srv.Hold(http.MethodGet, "/api/dashboard")
	defer release()
	srv.Fail(http.MethodDelete, "/api/goals/g2/complete", http.StatusServiceUnavailable)

	done := make(chan error, 1)
	go func() { done <- e.ToggleToday(context.Background(), run) }()
	// g1's mutation went through and its reconcile fetch is waiting.
	waitFor(t, func() bool { return srv.Count(http.MethodGet, "/api/dashboard") == 1 })

	if err := e.ToggleToday(context.Background(), read); err == nil {
		t.Fatal("toggle of g2 should fail")
	}
	if !completed(t, e.Snapshot(), "g2") {
		t.Error("g2 should be rolled back to completed")
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("toggle g1 error = %v", err)
	}

	snap := e.Snapshot()
	want := models.Stats{Window: models.WindowDay, Completed: 2, Total: 2}
	if diff := cmp.Diff(&want, snap.StatsDay); diff != "" {
		t.Errorf("confirmed stats not applied (-want +got):\n%s", diff)
	}
	if !completed(t, snap, "g1") || !completed(t, snap, "g2") {
		t.Errorf("today = %+v, want g1 and g2 completed", snap.Today)
	}
}

func TestRefreshBeforeFailedToggleIsApplied(t *testing.T) {
	issued := make(chan struct{})
	release := make(chan struct{})
	src := &fakeSource{
		dashboard: func(_ context.Context, call int) (models.Dashboard, error) {
			if call == 1 {
				return models.Dashboard{Today: []models.TodayState{{Goal: run}}}, nil
			}
			close(issued)
			<-release
			return models.Dashboard{
				StatsDay: models.Stats{Window: models.WindowDay, Completed: 3, Total: 5},
				Today:    []models.TodayState{{Goal: run}},
			}, nil
		},
		setCompleted: func(context.Context, string, bool) error { return errors.New("503") },
	}
	e := New(src)
	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.RefreshAll(context.Background()) }()
	<-issued

	if err := e.ToggleToday(context.Background(), run); err == nil {
		t.Fatal("toggle should fail")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	snap := e.Snapshot()
	if got := snap.StatsDay.Completed; got != 3 {
		t.Errorf("StatsDay.Completed = %d, want 3 from the refresh", got)
	}
	if completed(t, snap, "g1") {
		t.Error("g1 should not be completed")
	}
}

func TestRefreshDuringToggleKeepsFlip(t *testing.T) {
	inMutation := make(chan struct{})
	releaseMutation := make(chan struct{})
	src := &fakeSource{
		dashboard: func(_ context.Context, call int) (models.Dashboard, error) {
			switch call {
			case 1:
				return models.Dashboard{Today: []models.TodayState{{Goal: run}}}, nil
			case 2:
				return models.Dashboard{
					StatsDay: models.Stats{Window: models.WindowDay, Completed: 0, Total: 7},
					Today:    []models.TodayState{{Goal: run}},
				}, nil
			}
			return models.Dashboard{
				StatsDay: models.Stats{Window: models.WindowDay, Completed: 1, Total: 7},
				Today:    []models.TodayState{{Goal: run, Completed: true}},
			}, nil
		},
		setCompleted: func(context.Context, string, bool) error {
			close(inMutation)
			<-releaseMutation
			return nil
		},
	}
	e := New(src)
	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.ToggleToday(context.Background(), run) }()
	<-inMutation

	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := e.Snapshot()
	if snap.StatsDay.Total != 7 {
		t.Errorf("StatsDay = %+v, want the refreshed stats", snap.StatsDay)
	}
	if !completed(t, snap, "g1") {
		t.Error("refresh erased the unconfirmed flip")
	}

	close(releaseMutation)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := e.Snapshot().StatsDay.Completed; got != 1 {
		t.Errorf("StatsDay.Completed = %d, want 1 after reconcile", got)
	}
}

func TestRefreshAllWrongShapeFallsBack(t *testing.T) {
	e, srv := setupEngine(t)
	srv.Respond(http.MethodGet, "/api/dashboard", `{"message":"maintenance"}`)
	srv.SetStats(models.Stats{Window: models.WindowDay, Completed: 2, Total: 3})

	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	if n := len(srv.Requests()); n != 5 {
		t.Fatalf("got %d requests, want 1 combined + 4 fallback", n)
	}

	snap := e.Snapshot()
	want := models.Stats{Window: models.WindowDay, Completed: 2, Total: 3}
	if diff := cmp.Diff(&want, snap.StatsDay); diff != "" {
		t.Errorf("StatsDay mismatch (-want +got):\n%s", diff)
	}
	if len(snap.Today) != 2 {
		t.Errorf("today = %+v, want the fallback list", snap.Today)
	}
}

func TestSubscribeVersions(t *testing.T) {
	e, srv := setupEngine(t)

	var mu sync.Mutex
	var versions []uint64
	unsubscribe := e.Subscribe(func(s models.Snapshot) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	})

	loaded(t, e, srv)
	if err := e.ToggleToday(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	_ = e.RefreshAll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(versions) != 3 {
		t.Fatalf("versions = %v, want refresh + flip + reconcile", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("versions not increasing: %v", versions)
		}
	}
}

type fakeSource struct {
	mu           sync.Mutex
	dashCalls    int
	fallbacks    int
	dashboard    func(ctx context.Context, call int) (models.Dashboard, error)
	stats        func(ctx context.Context, w models.Window) (models.Stats, error)
	setCompleted func(ctx context.Context, goalID string, completed bool) error
}

func (f *fakeSource) onDashboard(fn func(context.Context, int) (models.Dashboard, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dashboard = fn
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fallbacks
}

func (f *fakeSource) Dashboard(ctx context.Context) (models.Dashboard, error) {
	f.mu.Lock()
	f.dashCalls++
	call, fn := f.dashCalls, f.dashboard
	f.mu.Unlock()
	return fn(ctx, call)
}

func (f *fakeSource) Stats(ctx context.Context, w models.Window) (models.Stats, error) {
	f.mu.Lock()
	f.fallbacks++
	fn := f.stats
	f.mu.Unlock()
	if fn == nil {
		return models.Stats{}, errors.New("no stats")
	}
	return fn(ctx, w)
}

func (f *fakeSource) Today(ctx context.Context) ([]models.TodayState, error) {
	f.mu.Lock()
	f.fallbacks++
	f.mu.Unlock()
	return []models.TodayState{{Goal: run}}, nil
}

func (f *fakeSource) SetCompleted(ctx context.Context, goalID string, completed bool) error {
	f.mu.Lock()
	fn := f.setCompleted
	f.mu.Unlock()
	if fn == nil {
		return errors.New("no mutation")
	}
	return fn(ctx, goalID, completed)
}
