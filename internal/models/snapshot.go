package models

import "time"

// Snapshot is the published dashboard state. All four data fields are
// replaced together on every confirmed sync.
type Snapshot struct {
	StatsDay   *Stats
	StatsWeek  *Stats
	StatsMonth *Stats
	Today      []TodayState

	// Loaded is false until the first confirmed sync.
	Loaded    bool
	UpdatedAt time.Time
	// Version increases with every publication; observers drop anything
	// older than what they already hold.
	Version uint64
}

// SnapshotFrom builds a snapshot from a combined dashboard response.
func SnapshotFrom(d Dashboard, at time.Time) Snapshot {
	return NewSnapshot(d.StatsDay, d.StatsWeek, d.StatsMonth, d.Today, at)
}

func NewSnapshot(day, week, month Stats, today []TodayState, at time.Time) Snapshot {
	return Snapshot{
		StatsDay:   &day,
		StatsWeek:  &week,
		StatsMonth: &month,
		Today:      cloneToday(today),
		Loaded:     true,
		UpdatedAt:  at,
	}
}

// Dashboard converts the snapshot back to the wire shape. Missing stats
// become zero values.
func (s Snapshot) Dashboard() Dashboard {
	d := Dashboard{Today: cloneToday(s.Today)}
	if s.StatsDay != nil {
		d.StatsDay = *s.StatsDay
	}
	if s.StatsWeek != nil {
		d.StatsWeek = *s.StatsWeek
	}
	if s.StatsMonth != nil {
		d.StatsMonth = *s.StatsMonth
	}
	if d.Today == nil {
		d.Today = []TodayState{}
	}
	return d
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.StatsDay = cloneStats(s.StatsDay)
	out.StatsWeek = cloneStats(s.StatsWeek)
	out.StatsMonth = cloneStats(s.StatsMonth)
	out.Today = cloneToday(s.Today)
	return out
}

// StatsFor returns the stats of a window, or nil if not loaded.
func (s Snapshot) StatsFor(w Window) *Stats {
	switch w {
	case WindowDay:
		return s.StatsDay
	case WindowWeek:
		return s.StatsWeek
	case WindowMonth:
		return s.StatsMonth
	}
	return nil
}

// Index returns the position of a goal in Today, or -1.
func (s Snapshot) Index(goalID string) int {
	for i, st := range s.Today {
		if st.Goal.ID == goalID {
			return i
		}
	}
	return -1
}

// Lookup finds the today state of a goal.
func (s Snapshot) Lookup(goalID string) (TodayState, bool) {
	if i := s.Index(goalID); i >= 0 {
		return s.Today[i], true
	}
	return TodayState{}, false
}

func (s Snapshot) Goals() []Goal {
	goals := make([]Goal, len(s.Today))
	for i, st := range s.Today {
		goals[i] = st.Goal
	}
	return goals
}

func (s Snapshot) CompletedCount() int {
	n := 0
	for _, st := range s.Today {
		if st.Completed {
			n++
		}
	}
	return n
}

func (s Snapshot) RemainingCount() int {
	return max(len(s.Today)-s.CompletedCount(), 0)
}

func cloneStats(s *Stats) *Stats {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneToday(in []TodayState) []TodayState {
	if in == nil {
		return nil
	}
	out := make([]TodayState, len(in))
	copy(out, in)
	return out
}
