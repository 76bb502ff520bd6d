package models

import "fmt"

// Window is a statistics aggregation window
type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// Windows lists the windows in display order
var Windows = []Window{WindowDay, WindowWeek, WindowMonth}

// Suffix is the single-letter label used next to a counter
func (w Window) Suffix() string {
	switch w {
	case WindowDay:
		return "d"
	case WindowWeek:
		return "w"
	case WindowMonth:
		return "m"
	default:
		return "?"
	}
}

// Goal is a habit definition owned by the server
type Goal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TodayState is a goal and whether it has been completed today
type TodayState struct {
	Goal      Goal `json:"goal"`
	Completed bool `json:"completed"`
}

// Stats is a server-computed completion count for one window
type Stats struct {
	Window    Window `json:"window"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// FormatCounter renders st as "completed/total" followed by the window
// suffix, or dashes while the stats have not loaded.
func FormatCounter(st *Stats, w Window) string {
	if st == nil {
		return "-/-" + w.Suffix()
	}
	return fmt.Sprintf("%d/%d%s", st.Completed, st.Total, w.Suffix())
}

// Dashboard is the body of the combined dashboard endpoint
type Dashboard struct {
	StatsDay   Stats        `json:"stats_day"`
	StatsWeek  Stats        `json:"stats_week"`
	StatsMonth Stats        `json:"stats_month"`
	Today      []TodayState `json:"today"`
}
