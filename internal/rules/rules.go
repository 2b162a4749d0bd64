// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package rules maps match control events and field state transitions to
// device actions. The rule set is operator-authored JSON: groups gated by
// a match-name glob, an optional payload filter, and a per-field routing
// table, with a priority contest per device type deciding what actually
// runs.
package rules

import (
	"maps"
	"path"
	"reflect"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/storage"
)

// Device action types.
const (
	TypeAudio    = "audio"
	TypeVideo    = "video"
	TypeLighting = "lighting"
)

// Action is one device instruction from the rules file. Type, Command,
// Priority and Metadata form the envelope; anything else the rule file
// carries (camera_id, preset_id, osc_address, ...) rides along in Params
// and is forwarded to the device controller untouched.
type Action struct {
	Type     string
	Command  string
	Priority int
	Metadata map[string]any
	Params   map[string]any
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Action{}
	for k, v := range raw {
		switch k {
		case "type":
			out.Type, _ = v.(string)
		case "command":
			out.Command, _ = v.(string)
		case "priority":
			switch n := v.(type) {
			case float64:
				out.Priority = int(n)
			case json.Number:
				f, _ := n.Float64()
				out.Priority = int(f)
			}
		case "metadata":
			if m, ok := v.(map[string]any); ok {
				out.Metadata = m
			}
		default:
			if out.Params == nil {
				out.Params = make(map[string]any)
			}
			out.Params[k] = v
		}
	}
	*a = out
	return nil
}

func (a Action) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(a.Params)+4)
	for k, v := range a.Params {
		raw[k] = v
	}
	raw["type"] = a.Type
	if a.Command != "" {
		raw["command"] = a.Command
	}
	if a.Priority != 0 {
		raw["priority"] = a.Priority
	}
	if a.Metadata != nil {
		raw["metadata"] = a.Metadata
	}
	return json.Marshal(raw)
}

// ActionFromMap builds an action from an already-decoded JSON object,
// such as an operator-injected action payload.
func ActionFromMap(raw map[string]any) (Action, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Action{}, err
	}

	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Clone returns a copy whose maps are independent of the original, so a
// dispatch can enrich an action without mutating the loaded rule set.
func (a Action) Clone() Action {
	out := a
	out.Metadata = maps.Clone(a.Metadata)
	out.Params = maps.Clone(a.Params)
	return out
}

// Param returns the string value of a pass-through parameter.
func (a Action) Param(key string) (string, bool) {
	v, ok := a.Params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Group gates a list of actions behind a match-name pattern, an optional
// payload filter, and a per-field routing table. The "all" entry applies
// to every field; numeric keys apply to that field only.
type Group struct {
	MatchName     string              `json:"match_name,omitempty"`
	PayloadFilter map[string]any      `json:"payload_filter,omitempty"`
	Fields        map[string][]Action `json:"fields"`
}

// Rules is the full actions file: groups keyed by event type and by
// "old->new" state transition.
type Rules struct {
	OnEvent       map[string][]Group `json:"on_event"`
	OnStateChange map[string][]Group `json:"on_state_change"`
}

// FromStore loads the rule set from the actions file in the data
// directory. A missing or unreadable file yields empty rules, so the show
// runs with nothing wired until the operator provides one.
func FromStore(files *storage.Store) *Rules {
	var r Rules
	found, err := files.Load(storage.ActionsKey, &r)
	if err != nil {
		logging.Error().Err(err).Msg("loading actions file")
		return &Rules{}
	}
	if !found {
		logging.Warn().Str("key", storage.ActionsKey).Msg("no actions file, no actions will be triggered")
	}
	return &r
}

// Query is the event context a rule lookup runs against. FieldID zero
// means the event names no field; an empty MatchName means no match name
// is known, which only "*" groups accept.
type Query struct {
	Key       string
	FieldID   int
	MatchName string
	Payload   map[string]any
}

// ForEvent resolves the actions for an event-keyed lookup.
func (r *Rules) ForEvent(q Query) []Action {
	return resolve(r.OnEvent[q.Key], q)
}

// ForTransition resolves the actions for a state-transition lookup, keyed
// "old->new".
func (r *Rules) ForTransition(q Query) []Action {
	return resolve(r.OnStateChange[q.Key], q)
}

// resolve collects the actions of every group the query passes, then runs
// the priority contest: per device type only the actions sharing the
// highest priority survive, in collection order.
func resolve(groups []Group, q Query) []Action {
	var collected []Action
	for _, g := range groups {
		if !matchesFilter(g.PayloadFilter, q.Payload) {
			continue
		}
		if !matchesName(g.MatchName, q.MatchName) {
			continue
		}
		for _, a := range g.Fields["all"] {
			collected = append(collected, a.Clone())
		}
		if q.FieldID != 0 {
			for _, a := range g.Fields[strconv.Itoa(q.FieldID)] {
				collected = append(collected, a.Clone())
			}
		}
	}
	if len(collected) == 0 {
		return nil
	}

	maxByType := make(map[string]int)
	var typeOrder []string
	for _, a := range collected {
		if a.Type == "" {
			continue
		}
		cur, seen := maxByType[a.Type]
		if !seen {
			maxByType[a.Type] = a.Priority
			typeOrder = append(typeOrder, a.Type)
		} else if a.Priority > cur {
			maxByType[a.Type] = a.Priority
		}
	}

	var final []Action
	for _, typ := range typeOrder {
		for _, a := range collected {
			if a.Type == typ && a.Priority == maxByType[typ] {
				final = append(final, a)
			}
		}
	}
	return final
}

// matchesFilter reports whether the payload satisfies every filter entry.
// Values compare as decoded JSON. A group with a filter never matches an
// event without a payload.
func matchesFilter(filter, payload map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	if len(payload) == 0 {
		return false
	}
	for k, want := range filter {
		if !reflect.DeepEqual(payload[k], want) {
			return false
		}
	}
	return true
}

// matchesName applies the group's match-name glob. An absent pattern
// means "*". Events with no match name only pass "*" groups. Malformed
// patterns match nothing.
func matchesName(pattern, name string) bool {
	if pattern == "" {
		pattern = "*"
	}
	if name == "" {
		return pattern == "*"
	}
	ok, err := path.Match(pattern, name)
	if err != nil {
		logging.Debug().Str("pattern", pattern).Err(err).Msg("bad match_name pattern")
		return false
	}
	return ok
}
