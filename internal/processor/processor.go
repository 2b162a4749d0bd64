// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package processor consumes the inbound event queue and turns each event
// into field state updates and device actions. Events are handled one at
// a time in arrival order; a failed event is logged, audited and dropped,
// never redelivered, because replaying a cue would fire show devices
// twice.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"

	"github.com/marionlk/stagehand/internal/audit"
	"github.com/marionlk/stagehand/internal/bus"
	"github.com/marionlk/stagehand/internal/devices"
	"github.com/marionlk/stagehand/internal/events"
	"github.com/marionlk/stagehand/internal/fieldstate"
	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/metrics"
	"github.com/marionlk/stagehand/internal/rules"
	"github.com/marionlk/stagehand/internal/storage"
)

// Processor owns the event handling pipeline: display-event attribution,
// special event short-circuits, the field state machine, and rule-driven
// action dispatch.
type Processor struct {
	files    *storage.Store
	fields   *fieldstate.Store
	rules    *rules.Rules
	registry *devices.Registry
	trail    *audit.Trail
}

// New wires a processor. The audit trail may be nil.
func New(files *storage.Store, fields *fieldstate.Store, ruleSet *rules.Rules, registry *devices.Registry, trail *audit.Trail) *Processor {
	return &Processor{
		files:    files,
		fields:   fields,
		rules:    ruleSet,
		registry: registry,
		trail:    trail,
	}
}

// NewRouter builds the message router that feeds the processor from the
// event bus. A single handler keeps events strictly ordered.
func NewRouter(b *bus.Bus, proc *Processor) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 15 * time.Second,
	}, b.Logger())
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	router.AddNoPublisherHandler("event-processor", bus.TopicEvents, b.Subscriber(), proc.Handle)

	return router, nil
}

// Handle is the queue consumer. It always acks: an event that cannot be
// processed is recorded and dropped.
func (p *Processor) Handle(msg *message.Message) error {
	event, err := events.Unmarshal(msg.Payload)
	if err != nil {
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable event")
		metrics.RecordEventFailed()
		return nil
	}

	start := time.Now()
	if err := p.Process(msg.Context(), event); err != nil {
		logging.Error().Err(err).
			Str("event_id", event.ID).
			Str("type", event.Type).
			Msg("Error processing event")
		metrics.RecordEventFailed()
		p.recordError(event, err)
		return nil
	}

	metrics.RecordEventProcessed(event.Type, time.Since(start))
	return nil
}

// Process runs one event through the full pipeline.
func (p *Processor) Process(ctx context.Context, event *events.Event) error {
	logging.Info().
		Str("event_id", event.ID).
		Str("type", event.Type).
		Msg("Processing event")

	p.attributeDisplayEvent(event)

	handled, err := p.handleSpecialEvent(ctx, event)
	if handled || err != nil {
		return err
	}

	transition := p.updateFieldState(event)
	p.triggerActions(ctx, event, transition)
	return nil
}

// attributeDisplayEvent assigns an audience display event that arrived
// without a field to the currently active field, so display-driven rules
// can still match per-field groups.
func (p *Processor) attributeDisplayEvent(event *events.Event) {
	if event.Type != events.TypeAudienceDisplayChanged {
		return
	}
	if id, ok := event.FieldID(); ok && id != 0 {
		return
	}

	if id, ok := p.fields.ActiveField(); ok && id != 0 {
		event.Field = &id
		logging.Info().Int("field_id", id).Msg("Attributed audience display event to active field")
	}
}

// handleSpecialEvent short-circuits the operator-originated event types
// that bypass the field state machine.
func (p *Processor) handleSpecialEvent(ctx context.Context, event *events.Event) (bool, error) {
	switch event.Type {
	case events.TypeMatchScheduled:
		logging.Info().Str("event_id", event.ID).Msg("Handling scheduled match update")
		if err := p.files.Save(storage.ScheduledMatchKey, event.Payload); err != nil {
			return true, fmt.Errorf("write scheduled matches: %w", err)
		}
		return true, nil

	case events.TypeManualPopup:
		logging.Info().Str("event_id", event.ID).Msg("Handling manual popup")
		if err := p.appendPopup(event.Payload); err != nil {
			return true, fmt.Errorf("append popup: %w", err)
		}
		return true, nil

	case events.TypeManualAction:
		logging.Info().Str("event_id", event.ID).Msg("Handling manual action")
		action, err := rules.ActionFromMap(event.Payload)
		if err != nil {
			return true, fmt.Errorf("decode manual action: %w", err)
		}
		p.registry.Dispatch(ctx, action, nil)
		return true, nil
	}

	return false, nil
}

// appendPopup adds one popup to the stored list, generating an id when
// the payload lacks one.
func (p *Processor) appendPopup(payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	if id, _ := payload["id"].(string); id == "" {
		payload["id"] = uuid.New().String()
	}

	var popups []map[string]any
	err := p.files.Update(storage.PopupsKey, &popups, func(loaded bool) error {
		if !loaded {
			popups = nil
		}
		popups = append(popups, payload)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.SetPopupsActive(len(popups))
	return nil
}

// eventStates maps match control events onto the field state they drive a
// field into. An empty value leaves the state alone.
var eventStates = map[string]string{
	events.TypeFieldMatchAssigned: fieldstate.StateQueued,
	events.TypeFieldActivated:     fieldstate.StateActive,
	events.TypeMatchStarted:       fieldstate.StateActive,
	events.TypeMatchStopped:       fieldstate.StateFinish,
}

// nextState resolves the state an event moves a field into. A field left
// in finish returns to standby on the next event that carries no state of
// its own.
func nextState(eventType, current string) string {
	if eventType == events.TypeMatchStarted {
		return fieldstate.StateActive
	}

	next := eventStates[eventType]
	if current == fieldstate.StateFinish && next == "" {
		return fieldstate.StateStandby
	}
	return next
}

// updateFieldState applies the event to its field's persisted record and
// returns the transition, nil when nothing changed or the event carries
// no field.
func (p *Processor) updateFieldState(event *events.Event) *fieldstate.Transition {
	fieldID, ok := event.FieldID()
	if !ok || fieldID == 0 {
		logging.Info().Str("event_id", event.ID).Msg("Event has no field, skipping state update")
		return nil
	}

	tr, err := p.fields.Update(fieldID, event.Timestamp, func(state *fieldstate.FieldState) bool {
		dirty := false

		if event.Type == events.TypeFieldMatchAssigned {
			if name := FormatMatchName(event.Payload["match"]); name != state.MatchName {
				state.MatchName = name
				dirty = true
			}
			if ref := matchRefFromPayload(event.Payload); ref != nil && !ref.Equal(state.MatchRef) {
				state.MatchRef = ref
				dirty = true
			}
		}

		if next := nextState(event.Type, state.State); next != "" && next != state.State {
			state.State = next
			dirty = true
			logging.Info().Int("field_id", fieldID).Str("state", next).Msg("Updated field state")
		}

		return dirty
	})
	if err != nil {
		logging.Error().Err(err).Int("field_id", fieldID).Msg("Persisting field state")
	}

	if tr != nil && tr.Old != tr.New {
		metrics.RecordFieldTransition(tr.Old, tr.New)
	}
	return tr
}

// matchRefFromPayload captures the scheduled-match descriptor from a
// match assignment payload, nil when the payload carries no tuple.
func matchRefFromPayload(payload map[string]any) *fieldstate.MatchRef {
	m, ok := payload["match"].(map[string]any)
	if !ok {
		return nil
	}

	ref := &fieldstate.MatchRef{}
	if n, ok := intFrom(m["division"]); ok {
		ref.Division = n
	} else if n, ok := intFrom(payload["division"]); ok {
		ref.Division = n
	}
	if s, ok := m["round"].(string); ok {
		ref.Round = s
	}
	if n, ok := intFrom(m["match"]); ok {
		ref.Match = n
	}

	if ref.Division == 0 && ref.Round == "" && ref.Match == 0 {
		return nil
	}
	return ref
}

func intFrom(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// triggerActions resolves and dispatches the actions for the event itself
// and for any state transition it caused. Rules keyed on the event see
// the payload; rules keyed on the transition do not.
func (p *Processor) triggerActions(ctx context.Context, event *events.Event, tr *fieldstate.Transition) {
	fieldID, hasField := event.FieldID()
	if !hasField {
		fieldID = 0
	}

	matchName := ""
	if fieldID != 0 {
		matchName = p.fields.Get(fieldID).MatchName
	}

	// A match name in the event payload takes precedence over the
	// stored one.
	if raw, ok := event.Payload["match"]; ok {
		if name := FormatMatchName(raw); name != "" {
			matchName = name
		}
	}

	actions := p.rules.ForEvent(rules.Query{
		Key:       event.Type,
		FieldID:   fieldID,
		MatchName: matchName,
		Payload:   event.Payload,
	})

	if tr != nil && tr.Old != "" && tr.New != "" && tr.Old != tr.New {
		actions = append(actions, p.rules.ForTransition(rules.Query{
			Key:       tr.Old + "->" + tr.New,
			FieldID:   fieldID,
			MatchName: matchName,
		})...)
	}

	if len(actions) > 0 {
		logging.Info().
			Int("count", len(actions)).
			Str("type", event.Type).
			Int("field_id", fieldID).
			Str("match", matchName).
			Msg("Found actions to run")
	}

	for _, action := range actions {
		p.registry.Dispatch(ctx, action, event)
	}
}

func (p *Processor) recordError(event *events.Event, err error) {
	if p.trail == nil {
		return
	}
	p.trail.Record(audit.Entry{
		EventID: event.ID,
		Status:  audit.StatusError,
		Outcome: err.Error(),
	})
}
