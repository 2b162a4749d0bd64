// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/storage"
)

func mustRules(t *testing.T, raw string) *Rules {
	t.Helper()
	var r Rules
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal rules: %v", err)
	}
	return &r
}

func actionKeys(actions []Action) []string {
	keys := make([]string, 0, len(actions))
	for _, a := range actions {
		keys = append(keys, a.Type+":"+a.Command)
	}
	return keys
}

func equalKeys(got []Action, want ...string) bool {
	keys := actionKeys(got)
	if len(keys) != len(want) {
		return false
	}
	for i := range keys {
		if keys[i] != want[i] {
			return false
		}
	}
	return true
}

func TestForEventMatchNamePatterns(t *testing.T) {
	r := mustRules(t, `{
		"on_event": {
			"matchStarted": [
				{"match_name": "Q*", "fields": {"all": [{"type": "audio", "command": "qual"}]}},
				{"match_name": "*", "fields": {"all": [{"type": "video", "command": "any"}]}},
				{"fields": {"all": [{"type": "lighting", "command": "default"}]}}
			]
		}
	}`)

	tests := []struct {
		name      string
		matchName string
		want      []string
	}{
		{"qualification name", "Q12", []string{"audio:qual", "video:any", "lighting:default"}},
		{"final name", "F1", []string{"video:any", "lighting:default"}},
		{"no match name only star", "", []string{"video:any", "lighting:default"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ForEvent(Query{Key: "matchStarted", MatchName: tt.matchName})
			if !equalKeys(got, tt.want...) {
				t.Errorf("ForEvent() = %v, want %v", actionKeys(got), tt.want)
			}
		})
	}
}

func TestForEventPayloadFilter(t *testing.T) {
	r := mustRules(t, `{
		"on_event": {
			"audienceDisplayChanged": [
				{"payload_filter": {"display": "SCORE", "mode": 2},
				 "fields": {"all": [{"type": "lighting", "command": "score"}]}}
			]
		}
	}`)

	tests := []struct {
		name    string
		payload map[string]any
		want    int
	}{
		{"exact match", map[string]any{"display": "SCORE", "mode": float64(2), "extra": true}, 1},
		{"value mismatch", map[string]any{"display": "INTRO", "mode": float64(2)}, 0},
		{"missing key", map[string]any{"display": "SCORE"}, 0},
		{"no payload", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ForEvent(Query{Key: "audienceDisplayChanged", MatchName: "Q1", Payload: tt.payload})
			if len(got) != tt.want {
				t.Errorf("ForEvent() returned %d actions, want %d", len(got), tt.want)
			}
		})
	}
}

func TestForEventFieldRouting(t *testing.T) {
	r := mustRules(t, `{
		"on_event": {
			"fieldActivated": [
				{"fields": {
					"all": [{"type": "lighting", "command": "house"}],
					"2": [{"type": "video", "command": "cut-two"}]
				}}
			]
		}
	}`)

	t.Run("field with dedicated actions", func(t *testing.T) {
		got := r.ForEvent(Query{Key: "fieldActivated", FieldID: 2, MatchName: "Q1"})
		if !equalKeys(got, "lighting:house", "video:cut-two") {
			t.Errorf("ForEvent() = %v", actionKeys(got))
		}
	})
	t.Run("field without dedicated actions", func(t *testing.T) {
		got := r.ForEvent(Query{Key: "fieldActivated", FieldID: 3, MatchName: "Q1"})
		if !equalKeys(got, "lighting:house") {
			t.Errorf("ForEvent() = %v", actionKeys(got))
		}
	})
	t.Run("no field gets only all", func(t *testing.T) {
		got := r.ForEvent(Query{Key: "fieldActivated", MatchName: "Q1"})
		if !equalKeys(got, "lighting:house") {
			t.Errorf("ForEvent() = %v", actionKeys(got))
		}
	})
}

func TestResolvePriorityContest(t *testing.T) {
	r := mustRules(t, `{
		"on_event": {
			"matchStarted": [
				{"fields": {"all": [
					{"type": "audio", "command": "low", "priority": 1},
					{"type": "audio", "command": "high-a", "priority": 5},
					{"type": "lighting", "command": "only"}
				]}},
				{"fields": {"all": [
					{"type": "audio", "command": "high-b", "priority": 5}
				]}}
			]
		}
	}`)

	got := r.ForEvent(Query{Key: "matchStarted", MatchName: "Q1"})
	if !equalKeys(got, "audio:high-a", "audio:high-b", "lighting:only") {
		t.Errorf("ForEvent() = %v, want ties at max priority per type", actionKeys(got))
	}
}

func TestResolveDropsUntypedActions(t *testing.T) {
	r := mustRules(t, `{
		"on_event": {
			"matchStarted": [
				{"fields": {"all": [
					{"command": "orphan"},
					{"type": "audio", "command": "kept"}
				]}}
			]
		}
	}`)

	got := r.ForEvent(Query{Key: "matchStarted", MatchName: "Q1"})
	if !equalKeys(got, "audio:kept") {
		t.Errorf("ForEvent() = %v, want only typed actions", actionKeys(got))
	}
}

func TestForTransition(t *testing.T) {
	r := mustRules(t, `{
		"on_state_change": {
			"queued->active": [
				{"fields": {"all": [{"type": "video", "command": "live"}]}}
			]
		}
	}`)

	if got := r.ForTransition(Query{Key: "queued->active", MatchName: "Q1"}); !equalKeys(got, "video:live") {
		t.Errorf("ForTransition() = %v", actionKeys(got))
	}
	if got := r.ForTransition(Query{Key: "active->finish", MatchName: "Q1"}); len(got) != 0 {
		t.Errorf("ForTransition() on unknown key = %v, want none", actionKeys(got))
	}
}

func TestResolveReturnsIndependentCopies(t *testing.T) {
	r := mustRules(t, `{
		"on_event": {
			"matchStarted": [
				{"fields": {"all": [
					{"type": "audio", "command": "play", "metadata": {"volume": 80}, "playlist": "quals"}
				]}}
			]
		}
	}`)

	first := r.ForEvent(Query{Key: "matchStarted", MatchName: "Q1"})
	if len(first) != 1 {
		t.Fatalf("ForEvent() returned %d actions, want 1", len(first))
	}
	first[0].Metadata["volume"] = 0
	first[0].Params["playlist"] = "mutated"

	second := r.ForEvent(Query{Key: "matchStarted", MatchName: "Q1"})
	if second[0].Metadata["volume"] != float64(80) {
		t.Errorf("metadata leaked between resolves: %v", second[0].Metadata)
	}
	if got, _ := second[0].Param("playlist"); got != "quals" {
		t.Errorf("params leaked between resolves: %v", second[0].Params)
	}
}

func TestActionJSONRoundTrip(t *testing.T) {
	raw := `{"type": "lighting", "command": "go", "priority": 2,
		"metadata": {"fade": 1.5}, "preset_id": "match-start", "osc_value": 0.8}`

	var a Action
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal action: %v", err)
	}
	if a.Type != TypeLighting || a.Command != "go" || a.Priority != 2 {
		t.Errorf("envelope = %q %q %d", a.Type, a.Command, a.Priority)
	}
	if a.Metadata["fade"] != 1.5 {
		t.Errorf("metadata = %v", a.Metadata)
	}
	if got, _ := a.Param("preset_id"); got != "match-start" {
		t.Errorf("preset_id param = %q", got)
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal action: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"type", "command", "priority", "metadata", "preset_id", "osc_value"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("re-encoded action missing %q", key)
		}
	}
}

func TestFromStore(t *testing.T) {
	t.Run("missing file yields empty rules", func(t *testing.T) {
		files, err := storage.NewStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		r := FromStore(files)
		if got := r.ForEvent(Query{Key: "matchStarted", MatchName: "Q1"}); len(got) != 0 {
			t.Errorf("empty rules resolved %v", actionKeys(got))
		}
	})

	t.Run("malformed file yields empty rules", func(t *testing.T) {
		dir := t.TempDir()
		files, err := storage.NewStore(dir)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, storage.ActionsKey), []byte("{broken"), 0o644); err != nil {
			t.Fatal(err)
		}
		r := FromStore(files)
		if got := r.ForEvent(Query{Key: "matchStarted", MatchName: "Q1"}); len(got) != 0 {
			t.Errorf("malformed rules resolved %v", actionKeys(got))
		}
	})

	t.Run("valid file resolves", func(t *testing.T) {
		dir := t.TempDir()
		files, err := storage.NewStore(dir)
		if err != nil {
			t.Fatal(err)
		}
		raw := `{"on_event": {"matchStarted": [{"fields": {"all": [{"type": "audio", "command": "play"}]}}]}}`
		if err := os.WriteFile(filepath.Join(dir, storage.ActionsKey), []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
		r := FromStore(files)
		if got := r.ForEvent(Query{Key: "matchStarted", MatchName: "Q1"}); !equalKeys(got, "audio:play") {
			t.Errorf("ForEvent() = %v", actionKeys(got))
		}
	})
}
