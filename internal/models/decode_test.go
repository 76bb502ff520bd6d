package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeRequiresKeys(t *testing.T) {
	const stats = `{"window":"day","completed":1,"total":2}`
	const today = `[{"goal":{"id":"g1","name":"Run"},"completed":true}]`

	tests := []struct {
		name    string
		body    string
		into    any
		wantErr bool
	}{
		{name: "complete dashboard", body: `{"stats_day":` + stats + `,"stats_week":` + stats + `,"stats_month":` + stats + `,"today":` + today + `}`, into: &Dashboard{}},
		{name: "empty today list", body: `{"stats_day":` + stats + `,"stats_week":` + stats + `,"stats_month":` + stats + `,"today":[]}`, into: &Dashboard{}},
		{name: "maintenance message", body: `{"message":"maintenance"}`, into: &Dashboard{}, wantErr: true},
		{name: "dashboard without today", body: `{"stats_day":` + stats + `,"stats_week":` + stats + `,"stats_month":` + stats + `}`, into: &Dashboard{}, wantErr: true},
		{name: "null stats", body: `{"stats_day":null,"stats_week":` + stats + `,"stats_month":` + stats + `,"today":[]}`, into: &Dashboard{}, wantErr: true},
		{name: "stats without total", body: `{"window":"day","completed":1}`, into: &Stats{}, wantErr: true},
		{name: "zero stats", body: `{"window":"week","completed":0,"total":0}`, into: &Stats{}},
		{name: "today item without completed", body: `[{"goal":{"id":"g1","name":"Run"}}]`, into: &[]TodayState{}, wantErr: true},
		{name: "goal without name", body: `[{"goal":{"id":"g1"},"completed":false}]`, into: &[]TodayState{}, wantErr: true},
		{name: "not an object", body: `[]`, into: &Stats{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := json.Unmarshal([]byte(tt.body), tt.into)
			if tt.wantErr && err == nil {
				t.Fatalf("Unmarshal(%s) succeeded, want error", tt.body)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.body, err)
			}
		})
	}
}

func TestDecodeMissingFieldSentinel(t *testing.T) {
	var d Dashboard
	err := json.Unmarshal([]byte(`{"message":"maintenance"}`), &d)
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("error = %v, want ErrMissingField", err)
	}
}
