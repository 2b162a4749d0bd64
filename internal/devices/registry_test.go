// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package devices

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/audit"
	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/events"
	"github.com/marionlk/stagehand/internal/fieldstate"
	"github.com/marionlk/stagehand/internal/rules"
)

type fakeController struct {
	typ      string
	err      error
	executed []rules.Action
}

func (f *fakeController) Type() string { return f.typ }

func (f *fakeController) Execute(_ context.Context, a rules.Action) error {
	f.executed = append(f.executed, a)
	return f.err
}

type fakeStates map[int]fieldstate.FieldState

func (f fakeStates) Get(fieldID int) fieldstate.FieldState { return f[fieldID] }

func newTestRegistry(t *testing.T, states StateReader) (*Registry, *fakeController, func() []audit.Entry) {
	t.Helper()

	dir := t.TempDir()
	trail, err := audit.Open(dir)
	if err != nil {
		t.Fatalf("audit.Open() error = %v", err)
	}

	show := config.DefaultShow()
	show.FieldToCamera = map[string]string{"2": "4"}

	reg := NewRegistry(show, states, trail)
	ctrl := &fakeController{typ: config.CategoryAudio}
	reg.Register(ctrl)

	entries := func() []audit.Entry {
		if err := trail.Close(); err != nil {
			t.Fatalf("trail.Close() error = %v", err)
		}

		f, err := os.Open(filepath.Join(dir, audit.FileName))
		if err != nil {
			t.Fatalf("open audit log: %v", err)
		}
		defer f.Close()

		var out []audit.Entry
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var e audit.Entry
			if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
				t.Fatalf("decode audit line: %v", err)
			}
			out = append(out, e)
		}
		return out
	}

	return reg, ctrl, entries
}

func TestDispatchSendsToController(t *testing.T) {
	reg, ctrl, entries := newTestRegistry(t, nil)

	event := events.New(events.TypeMatchStarted, nil)
	reg.Dispatch(context.Background(), rules.Action{Type: "audio", Command: "play"}, event)

	if len(ctrl.executed) != 1 {
		t.Fatalf("executed %d actions, want 1", len(ctrl.executed))
	}

	got := entries()
	if len(got) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(got))
	}
	if got[0].Status != audit.StatusDispatched || got[0].Outcome != audit.OutcomeSuccess {
		t.Errorf("audit entry = %+v, want dispatched/success", got[0])
	}
	if got[0].ActionID != "audio:play" {
		t.Errorf("audit action_id = %q, want audio:play", got[0].ActionID)
	}
	if got[0].EventID != event.ID {
		t.Errorf("audit event_id = %q, want %q", got[0].EventID, event.ID)
	}
}

func TestDispatchPausedCategory(t *testing.T) {
	reg, ctrl, entries := newTestRegistry(t, nil)
	reg.SetPaused("audio", true)

	reg.Dispatch(context.Background(), rules.Action{Type: "audio", Command: "play"}, nil)

	if len(ctrl.executed) != 0 {
		t.Fatalf("executed %d actions, want 0", len(ctrl.executed))
	}

	got := entries()
	if len(got) != 1 || got[0].Status != audit.StatusSkippedPaused {
		t.Fatalf("audit entries = %+v, want one skipped_paused", got)
	}
}

func TestDispatchNoController(t *testing.T) {
	reg, _, entries := newTestRegistry(t, nil)

	reg.Dispatch(context.Background(), rules.Action{Type: "lighting", Command: "blackout"}, nil)

	got := entries()
	if len(got) != 1 || got[0].Status != audit.StatusSkippedNoController {
		t.Fatalf("audit entries = %+v, want one skipped_no_controller", got)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	reg, ctrl, entries := newTestRegistry(t, nil)

	reg.Dispatch(context.Background(), rules.Action{Type: "pyro", Command: "fire"}, nil)
	reg.Dispatch(context.Background(), rules.Action{Command: "fire"}, nil)

	if len(ctrl.executed) != 0 {
		t.Fatalf("executed %d actions, want 0", len(ctrl.executed))
	}
	if got := entries(); len(got) != 0 {
		t.Fatalf("audit entries = %+v, want none", got)
	}
}

func TestDispatchControllerError(t *testing.T) {
	reg, ctrl, entries := newTestRegistry(t, nil)
	ctrl.err = errors.New("device offline")

	reg.Dispatch(context.Background(), rules.Action{Type: "audio", Command: "play"}, nil)

	got := entries()
	if len(got) != 1 || got[0].Status != audit.StatusFailed {
		t.Fatalf("audit entries = %+v, want one failed", got)
	}
	if got[0].Outcome != "device offline" {
		t.Errorf("audit outcome = %q, want device offline", got[0].Outcome)
	}
}

func TestDispatchEnrichesTrackNumber(t *testing.T) {
	states := fakeStates{3: {FieldID: 3, State: fieldstate.StateActive, MatchName: "Q12"}}
	reg, ctrl, _ := newTestRegistry(t, states)

	event := events.NewFieldEvent(events.TypeMatchStarted, 3, nil)
	reg.Dispatch(context.Background(), rules.Action{
		Type:    "audio",
		Command: "play_playlist_track",
		Params:  map[string]any{"playlist": "hype"},
	}, event)

	if len(ctrl.executed) != 1 {
		t.Fatalf("executed %d actions, want 1", len(ctrl.executed))
	}
	if got := ctrl.executed[0].Metadata["track_number"]; got != 12 {
		t.Errorf("track_number = %v, want 12", got)
	}
}

func TestDispatchNoTrackNumberWithoutField(t *testing.T) {
	states := fakeStates{3: {FieldID: 3, MatchName: "Q12"}}
	reg, ctrl, _ := newTestRegistry(t, states)

	reg.Dispatch(context.Background(), rules.Action{
		Type:    "audio",
		Command: "play_playlist_track",
	}, events.New(events.TypeManualAction, nil))

	if len(ctrl.executed) != 1 {
		t.Fatalf("executed %d actions, want 1", len(ctrl.executed))
	}
	if _, ok := ctrl.executed[0].Metadata["track_number"]; ok {
		t.Error("track_number should not be set without a field")
	}
}

func TestDispatchNoTrackNumberWithoutMatchName(t *testing.T) {
	states := fakeStates{3: {FieldID: 3, State: fieldstate.StateStandby}}
	reg, ctrl, _ := newTestRegistry(t, states)

	event := events.NewFieldEvent(events.TypeMatchStarted, 3, nil)
	reg.Dispatch(context.Background(), rules.Action{
		Type:    "audio",
		Command: "play_playlist_track",
	}, event)

	if len(ctrl.executed) != 1 {
		t.Fatalf("executed %d actions, want 1", len(ctrl.executed))
	}
	if _, ok := ctrl.executed[0].Metadata["track_number"]; ok {
		t.Error("track_number should not be set without a match name")
	}
}

func TestDispatchFillsCameraFromField(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	video := &fakeController{typ: config.CategoryVideo}
	reg.Register(video)

	event := events.NewFieldEvent(events.TypeFieldActivated, 2, nil)
	reg.Dispatch(context.Background(), rules.Action{
		Type:    "video",
		Command: "switch_camera",
	}, event)

	if len(video.executed) != 1 {
		t.Fatalf("executed %d actions, want 1", len(video.executed))
	}
	if got := video.executed[0].Params["camera_id"]; got != "4" {
		t.Errorf("camera_id = %v, want 4", got)
	}
}

func TestDispatchKeepsExplicitCamera(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	video := &fakeController{typ: config.CategoryVideo}
	reg.Register(video)

	event := events.NewFieldEvent(events.TypeFieldActivated, 2, nil)
	reg.Dispatch(context.Background(), rules.Action{
		Type:    "video",
		Command: "switch_camera",
		Params:  map[string]any{"camera_id": "9"},
	}, event)

	if got := video.executed[0].Params["camera_id"]; got != "9" {
		t.Errorf("camera_id = %v, want the rule's explicit 9", got)
	}
}

func TestDispatchDropsVideoWithoutCamera(t *testing.T) {
	reg, _, entries := newTestRegistry(t, nil)
	video := &fakeController{typ: config.CategoryVideo}
	reg.Register(video)

	// Field 7 has no camera mapping.
	event := events.NewFieldEvent(events.TypeFieldActivated, 7, nil)
	reg.Dispatch(context.Background(), rules.Action{
		Type:    "video",
		Command: "switch_camera",
	}, event)

	if len(video.executed) != 0 {
		t.Fatalf("executed %d actions, want 0", len(video.executed))
	}

	got := entries()
	if len(got) != 1 || got[0].Status != audit.StatusFailed || got[0].Outcome != "no camera_id" {
		t.Fatalf("audit entries = %+v, want one failed/no camera_id", got)
	}
}

func TestDispatchDoesNotMutateAction(t *testing.T) {
	states := fakeStates{3: {FieldID: 3, MatchName: "Q12"}}
	reg, _, _ := newTestRegistry(t, states)

	action := rules.Action{
		Type:    "audio",
		Command: "play_playlist_track",
		Params:  map[string]any{"playlist": "hype"},
	}

	event := events.NewFieldEvent(events.TypeMatchStarted, 3, nil)
	reg.Dispatch(context.Background(), action, event)

	if action.Metadata != nil {
		t.Errorf("caller's action gained metadata %v", action.Metadata)
	}
}

func TestTrackNumber(t *testing.T) {
	tests := []struct {
		name  string
		want  int
		found bool
	}{
		{"Q12", 12, true},
		{"F1", 1, true},
		{"R16 3", 3, true},
		{"SF 2-1", 1, true},
		{"Practice", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := TrackNumber(tt.name)
		if ok != tt.found || got != tt.want {
			t.Errorf("TrackNumber(%q) = (%d, %v), want (%d, %v)", tt.name, got, ok, tt.want, tt.found)
		}
	}
}
