// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package processor

import (
	"context"
	"reflect"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/devices"
	"github.com/marionlk/stagehand/internal/events"
	"github.com/marionlk/stagehand/internal/fieldstate"
	"github.com/marionlk/stagehand/internal/rules"
	"github.com/marionlk/stagehand/internal/storage"
)

type captureController struct {
	typ      string
	executed []rules.Action
}

func (c *captureController) Type() string { return c.typ }

func (c *captureController) Execute(_ context.Context, a rules.Action) error {
	c.executed = append(c.executed, a)
	return nil
}

type testRig struct {
	proc     *Processor
	files    *storage.Store
	fields   *fieldstate.Store
	audio    *captureController
	video    *captureController
	lighting *captureController
}

func newTestRig(t *testing.T, ruleSet *rules.Rules) *testRig {
	t.Helper()

	files, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("storage.NewStore() error = %v", err)
	}
	fields := fieldstate.NewStore(files)

	show := config.DefaultShow()
	show.FieldToCamera = map[string]string{"1": "1", "2": "2"}
	reg := devices.NewRegistry(show, fields, nil)

	rig := &testRig{
		proc:     nil,
		files:    files,
		fields:   fields,
		audio:    &captureController{typ: config.CategoryAudio},
		video:    &captureController{typ: config.CategoryVideo},
		lighting: &captureController{typ: config.CategoryLighting},
	}
	reg.Register(rig.audio)
	reg.Register(rig.video)
	reg.Register(rig.lighting)

	if ruleSet == nil {
		ruleSet = &rules.Rules{}
	}
	rig.proc = New(files, fields, ruleSet, reg, nil)
	return rig
}

func (r *testRig) process(t *testing.T, event *events.Event) {
	t.Helper()
	if err := r.proc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process(%s) error = %v", event.Type, err)
	}
}

func TestProcessMatchLifecycle(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.process(t, events.NewFieldEvent(events.TypeFieldMatchAssigned, 1, map[string]any{
		"match": map[string]any{"round": "QUAL", "match": float64(1), "division": float64(1)},
	}))

	state := rig.fields.Get(1)
	if state.State != fieldstate.StateQueued {
		t.Errorf("after assignment state = %q, want queued", state.State)
	}
	if state.MatchName != "Q1" {
		t.Errorf("match name = %q, want Q1", state.MatchName)
	}
	if state.MatchRef == nil || state.MatchRef.Division != 1 || state.MatchRef.Match != 1 {
		t.Errorf("match ref = %+v, want division 1 match 1", state.MatchRef)
	}

	rig.process(t, events.NewFieldEvent(events.TypeFieldActivated, 1, nil))
	if got := rig.fields.Get(1).State; got != fieldstate.StateActive {
		t.Errorf("after activation state = %q, want active", got)
	}

	rig.process(t, events.NewFieldEvent(events.TypeMatchStarted, 1, nil))
	if got := rig.fields.Get(1).State; got != fieldstate.StateActive {
		t.Errorf("after start state = %q, want active", got)
	}

	rig.process(t, events.NewFieldEvent(events.TypeMatchStopped, 1, nil))
	if got := rig.fields.Get(1).State; got != fieldstate.StateFinish {
		t.Errorf("after stop state = %q, want finish", got)
	}

	// The next stateless event returns a finished field to standby.
	rig.process(t, events.NewFieldEvent(events.TypeAudienceDisplayChanged, 1, nil))
	if got := rig.fields.Get(1).State; got != fieldstate.StateStandby {
		t.Errorf("after display change state = %q, want standby", got)
	}

	// The match name survives the full cycle.
	if got := rig.fields.Get(1).MatchName; got != "Q1" {
		t.Errorf("match name after cycle = %q, want Q1", got)
	}
}

func TestProcessEventWithoutFieldSkipsState(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.process(t, events.New(events.TypeMatchStarted, nil))

	if states := rig.fields.States(); len(states) != 0 {
		t.Errorf("persisted %d field records, want 0", len(states))
	}
}

func TestProcessStateChangeActions(t *testing.T) {
	ruleSet := &rules.Rules{
		OnStateChange: map[string][]rules.Group{
			"queued->active": {{
				Fields: map[string][]rules.Action{
					"all": {{Type: "lighting", Command: "run_macro", Params: map[string]any{"macro": "match_on"}}},
				},
			}},
		},
	}
	rig := newTestRig(t, ruleSet)

	rig.process(t, events.NewFieldEvent(events.TypeFieldMatchAssigned, 1, map[string]any{
		"match": map[string]any{"round": "QUAL", "match": float64(4)},
	}))
	if len(rig.lighting.executed) != 0 {
		t.Fatalf("standby->queued fired %d lighting actions, want 0", len(rig.lighting.executed))
	}

	rig.process(t, events.NewFieldEvent(events.TypeFieldActivated, 1, nil))
	if len(rig.lighting.executed) != 1 {
		t.Fatalf("queued->active fired %d lighting actions, want 1", len(rig.lighting.executed))
	}

	// Re-activating an already active field changes nothing and fires
	// nothing.
	rig.process(t, events.NewFieldEvent(events.TypeFieldActivated, 1, nil))
	if len(rig.lighting.executed) != 1 {
		t.Fatalf("repeat activation fired %d lighting actions, want 1", len(rig.lighting.executed))
	}
}

func TestProcessOnEventActions(t *testing.T) {
	ruleSet := &rules.Rules{
		OnEvent: map[string][]rules.Group{
			"matchStarted": {{
				MatchName: "Q*",
				Fields: map[string][]rules.Action{
					"all": {{Type: "audio", Command: "play_sound", Params: map[string]any{"sound": "start"}}},
				},
			}},
		},
	}
	rig := newTestRig(t, ruleSet)

	rig.process(t, events.NewFieldEvent(events.TypeFieldMatchAssigned, 2, map[string]any{
		"match": map[string]any{"round": "QUAL", "match": float64(9)},
	}))
	rig.process(t, events.NewFieldEvent(events.TypeMatchStarted, 2, nil))

	if len(rig.audio.executed) != 1 {
		t.Fatalf("fired %d audio actions, want 1", len(rig.audio.executed))
	}
	if got, _ := rig.audio.executed[0].Param("sound"); got != "start" {
		t.Errorf("sound param = %q, want start", got)
	}
}

func TestProcessPayloadMatchNameTakesPrecedence(t *testing.T) {
	ruleSet := &rules.Rules{
		OnEvent: map[string][]rules.Group{
			"matchStarted": {{
				MatchName: "F*",
				Fields: map[string][]rules.Action{
					"all": {{Type: "audio", Command: "play_sound"}},
				},
			}},
		},
	}
	rig := newTestRig(t, ruleSet)

	// The stored name is a qualifier, but the event says finals.
	rig.process(t, events.NewFieldEvent(events.TypeFieldMatchAssigned, 1, map[string]any{
		"match": map[string]any{"round": "QUAL", "match": float64(10)},
	}))
	rig.process(t, events.NewFieldEvent(events.TypeMatchStarted, 1, map[string]any{
		"match": map[string]any{"round": "TOP_N", "match": float64(2)},
	}))

	if len(rig.audio.executed) != 1 {
		t.Fatalf("fired %d audio actions, want 1", len(rig.audio.executed))
	}
}

func TestProcessAudienceDisplayAttribution(t *testing.T) {
	ruleSet := &rules.Rules{
		OnEvent: map[string][]rules.Group{
			"audienceDisplayChanged": {{
				Fields: map[string][]rules.Action{
					"2": {{Type: "video", Command: "switch_camera"}},
				},
			}},
		},
	}
	rig := newTestRig(t, ruleSet)

	// Field 2 is the active one.
	rig.process(t, events.NewFieldEvent(events.TypeFieldActivated, 2, nil))

	// Display event arrives with no field at all.
	rig.process(t, events.New(events.TypeAudienceDisplayChanged, map[string]any{"display": "IN_MATCH"}))

	if len(rig.video.executed) != 1 {
		t.Fatalf("fired %d video actions, want 1", len(rig.video.executed))
	}
	if got := rig.video.executed[0].Params["camera_id"]; got != "2" {
		t.Errorf("camera_id = %v, want 2 from the attributed field", got)
	}
}

func TestProcessAudienceDisplayNoActiveField(t *testing.T) {
	ruleSet := &rules.Rules{
		OnEvent: map[string][]rules.Group{
			"audienceDisplayChanged": {{
				Fields: map[string][]rules.Action{
					"2": {{Type: "video", Command: "switch_camera"}},
				},
			}},
		},
	}
	rig := newTestRig(t, ruleSet)

	rig.process(t, events.New(events.TypeAudienceDisplayChanged, nil))

	if len(rig.video.executed) != 0 {
		t.Fatalf("fired %d video actions, want 0 with no active field", len(rig.video.executed))
	}
}

func TestProcessMatchScheduled(t *testing.T) {
	rig := newTestRig(t, nil)

	payload := map[string]any{
		"matches": []any{
			map[string]any{"name": "Q1", "field": float64(1)},
		},
	}
	rig.process(t, events.New(events.TypeMatchScheduled, payload))

	var got map[string]any
	found, err := rig.files.Load(storage.ScheduledMatchKey, &got)
	if err != nil || !found {
		t.Fatalf("Load scheduled matches = (%v, %v)", found, err)
	}
	if !reflect.DeepEqual(got, payload) {
		t.Errorf("scheduled matches = %v, want verbatim payload %v", got, payload)
	}
}

func TestProcessManualPopup(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.process(t, events.New(events.TypeManualPopup, map[string]any{
		"id":      "popup-1",
		"title":   "Notice",
		"message": "Pits close at 6",
	}))
	rig.process(t, events.New(events.TypeManualPopup, map[string]any{
		"title": "No id on this one",
	}))

	var popups []map[string]any
	found, err := rig.files.Load(storage.PopupsKey, &popups)
	if err != nil || !found {
		t.Fatalf("Load popups = (%v, %v)", found, err)
	}
	if len(popups) != 2 {
		t.Fatalf("stored %d popups, want 2", len(popups))
	}
	if popups[0]["id"] != "popup-1" {
		t.Errorf("first popup id = %v, want popup-1", popups[0]["id"])
	}
	if id, _ := popups[1]["id"].(string); id == "" {
		t.Error("second popup should have a generated id")
	}
}

func TestProcessManualAction(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.process(t, events.New(events.TypeManualAction, map[string]any{
		"type":    "lighting",
		"command": "blackout",
	}))

	if len(rig.lighting.executed) != 1 {
		t.Fatalf("fired %d lighting actions, want 1", len(rig.lighting.executed))
	}
	if rig.lighting.executed[0].Command != "blackout" {
		t.Errorf("command = %q, want blackout", rig.lighting.executed[0].Command)
	}

	// Manual actions must not touch field state.
	if states := rig.fields.States(); len(states) != 0 {
		t.Errorf("persisted %d field records, want 0", len(states))
	}
}

func TestHandleDropsUndecodableMessage(t *testing.T) {
	rig := newTestRig(t, nil)

	msg := message.NewMessage("junk", []byte("{not json"))
	if err := rig.proc.Handle(msg); err != nil {
		t.Fatalf("Handle() error = %v, want nil (drop)", err)
	}
}

func TestHandleProcessesQueuedEvent(t *testing.T) {
	ruleSet := &rules.Rules{
		OnEvent: map[string][]rules.Group{
			"matchStarted": {{
				Fields: map[string][]rules.Action{
					"all": {{Type: "audio", Command: "play_sound"}},
				},
			}},
		},
	}
	rig := newTestRig(t, ruleSet)

	event := events.NewFieldEvent(events.TypeMatchStarted, 1, nil)
	data, err := events.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if err := rig.proc.Handle(message.NewMessage(event.ID, data)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(rig.audio.executed) != 1 {
		t.Fatalf("fired %d audio actions, want 1", len(rig.audio.executed))
	}
	if got := rig.fields.Get(1).State; got != fieldstate.StateActive {
		t.Errorf("field state = %q, want active", got)
	}
}
