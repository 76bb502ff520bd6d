package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is returned when a response body lacks a required key.
var ErrMissingField = errors.New("missing required field")

// requireKeys fails unless every key is present and not null.
func requireKeys(data []byte, keys ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || string(raw) == "null" {
			return fmt.Errorf("%w: %q", ErrMissingField, k)
		}
	}
	return nil
}

func (g *Goal) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "id", "name"); err != nil {
		return fmt.Errorf("goal: %w", err)
	}
	type plain Goal
	return json.Unmarshal(data, (*plain)(g))
}

func (s *TodayState) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "goal", "completed"); err != nil {
		return fmt.Errorf("today state: %w", err)
	}
	type plain TodayState
	return json.Unmarshal(data, (*plain)(s))
}

func (s *Stats) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "window", "completed", "total"); err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	type plain Stats
	return json.Unmarshal(data, (*plain)(s))
}

func (d *Dashboard) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "stats_day", "stats_week", "stats_month", "today"); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	type plain Dashboard
	return json.Unmarshal(data, (*plain)(d))
}
