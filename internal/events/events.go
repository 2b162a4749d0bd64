// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package events defines the immutable event value flowing through the
// pipeline, from the upstream connector (or an operator injection) to the
// processor.
package events

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Match-state event types emitted by the tournament server.
const (
	// TypeFieldMatchAssigned queues a match on a field.
	TypeFieldMatchAssigned = "fieldMatchAssigned"
	// TypeFieldActivated marks a field as the live one.
	TypeFieldActivated = "fieldActivated"
	// TypeMatchStarted reports the match clock starting.
	TypeMatchStarted = "matchStarted"
	// TypeMatchStopped reports the match clock stopping.
	TypeMatchStopped = "matchStopped"
	// TypeAudienceDisplayChanged reports an audience display flip.
	TypeAudienceDisplayChanged = "audienceDisplayChanged"
)

// Operator-originated event types that bypass the state machine.
const (
	// TypeMatchScheduled replaces the displayed upcoming-match data.
	TypeMatchScheduled = "match_scheduled"
	// TypeManualPopup appends a popup without scheduler involvement.
	TypeManualPopup = "manual_popup"
	// TypeManualAction dispatches a device action without rule lookup.
	TypeManualAction = "manual_action"
)

// Event is one unit of work on the inbound queue. Immutable once created;
// consumed exactly once by the processor.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Field     *int           `json:"field,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New creates an event with a fresh id and UTC timestamp.
func New(eventType string, payload map[string]any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewFieldEvent creates an event attributed to a field.
func NewFieldEvent(eventType string, field int, payload map[string]any) *Event {
	e := New(eventType, payload)
	e.Field = &field
	return e
}

// FromWire decodes a raw tournament-server message into an Event. The
// event type comes from the "type" key, the field number from "fieldID"
// when present, and the whole decoded message is preserved as the payload.
func FromWire(data []byte) (*Event, error) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &ValidationError{Field: "payload", Message: "undecodable message"}
	}

	eventType, ok := msg["type"].(string)
	if !ok || eventType == "" {
		return nil, &ValidationError{Field: "type", Message: "missing"}
	}

	e := New(eventType, msg)
	if n, ok := asInt(msg["fieldID"]); ok {
		e.Field = &n
	}
	return e, nil
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "required"}
	}
	if e.Type == "" {
		return &ValidationError{Field: "type", Message: "required"}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "required"}
	}
	return nil
}

// FieldID returns the field number and whether one is attached.
func (e *Event) FieldID() (int, bool) {
	if e.Field == nil {
		return 0, false
	}
	return *e.Field, true
}

// PayloadString returns a string payload value by key.
func (e *Event) PayloadString(key string) (string, bool) {
	if e.Payload == nil {
		return "", false
	}
	s, ok := e.Payload[key].(string)
	return s, ok
}

// PayloadInt returns an integer payload value by key, accepting the
// float64 form JSON decoding produces.
func (e *Event) PayloadInt(key string) (int, bool) {
	if e.Payload == nil {
		return 0, false
	}
	return asInt(e.Payload[key])
}

// PayloadMap returns a nested object payload value by key.
func (e *Event) PayloadMap(key string) (map[string]any, bool) {
	if e.Payload == nil {
		return nil, false
	}
	m, ok := e.Payload[key].(map[string]any)
	return m, ok
}

// asInt coerces the numeric forms a decoded JSON value can take.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// ValidationError reports a missing or malformed event field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
