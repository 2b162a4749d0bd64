// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package fieldstate tracks the lifecycle of each competition field as a
// small persisted record, one JSON file per field. A field moves through
// standby, queued, active and finish as match control events arrive, and
// every write stamps the record with the timestamp of the event that
// caused it.
package fieldstate

import (
	"sort"
	"time"

	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/storage"
)

// Field lifecycle states.
const (
	StateStandby = "standby"
	StateQueued  = "queued"
	StateActive  = "active"
	StateFinish  = "finish"
)

// MatchRef pins a field to the scheduled match it is running, so the
// match scheduler can tell how far the tournament has progressed in each
// division.
type MatchRef struct {
	Division int    `json:"division"`
	Round    string `json:"round,omitempty"`
	Match    int    `json:"match"`
}

// Equal reports whether two refs describe the same scheduled match.
func (r *MatchRef) Equal(o *MatchRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	return *r == *o
}

// FieldState is the persisted per-field record.
type FieldState struct {
	FieldID     int       `json:"field_id"`
	State       string    `json:"state"`
	MatchName   string    `json:"match_name,omitempty"`
	MatchRef    *MatchRef `json:"match_id,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Transition reports the state names before and after a persisted update.
// Old and New are equal when the update changed something other than the
// state, such as the match name.
type Transition struct {
	Old string
	New string
}

// Mutator inspects and edits a field record in place, returning true when
// it changed something worth persisting.
type Mutator func(*FieldState) bool

// Store reads and writes field records on top of the file store.
type Store struct {
	files *storage.Store
}

// NewStore returns a field state store backed by files.
func NewStore(files *storage.Store) *Store {
	return &Store{files: files}
}

func defaultState(fieldID int) FieldState {
	return FieldState{FieldID: fieldID, State: StateStandby}
}

// Get returns the current record for a field. A missing or unreadable
// record yields a fresh standby state.
func (s *Store) Get(fieldID int) FieldState {
	state := defaultState(fieldID)
	found, err := s.files.Load(storage.FieldKey(fieldID), &state)
	if err != nil || !found {
		if err != nil {
			logging.Warn().Int("field_id", fieldID).Err(err).Msg("field record unreadable, using standby")
		}
		return defaultState(fieldID)
	}
	if state.State == "" {
		state.State = StateStandby
	}
	state.FieldID = fieldID
	return state
}

// Update applies fn to the field record under its file lock. When fn
// reports a change, LastUpdated is set to ts and the record is written
// back; the returned transition carries the state names before and after.
// A pass that changes nothing writes nothing and returns nil. A failed
// write still returns the transition so callers can act on the in-memory
// change.
func (s *Store) Update(fieldID int, ts time.Time, fn Mutator) (*Transition, error) {
	key := storage.FieldKey(fieldID)
	state := defaultState(fieldID)
	var tr *Transition

	err := s.files.Update(key, &state, func(loaded bool) error {
		if !loaded {
			state = defaultState(fieldID)
		}
		if state.State == "" {
			state.State = StateStandby
		}
		state.FieldID = fieldID

		old := state.State
		if !fn(&state) {
			return storage.ErrSkipWrite
		}
		if state.State == "" {
			state.State = StateStandby
		}
		state.LastUpdated = ts
		tr = &Transition{Old: old, New: state.State}
		return nil
	})
	return tr, err
}

// ActiveField returns the field a display event should be attributed to:
// the only active field, or the most recently updated one when several are
// active at once. ok is false when no field is active.
func (s *Store) ActiveField() (int, bool) {
	ids, err := s.files.ListFieldIDs()
	if err != nil {
		logging.Error().Err(err).Msg("listing field records")
		return 0, false
	}

	var active []FieldState
	for _, id := range ids {
		if state := s.Get(id); state.State == StateActive {
			active = append(active, state)
		}
	}
	if len(active) == 0 {
		return 0, false
	}
	latest := active[0]
	for _, state := range active[1:] {
		if state.LastUpdated.After(latest.LastUpdated) {
			latest = state
		}
	}
	if len(active) > 1 {
		logging.Info().Int("field_id", latest.FieldID).Int("active", len(active)).
			Msg("multiple active fields, attributing to most recent")
	}
	return latest.FieldID, true
}

// States returns every persisted field record sorted by field id.
func (s *Store) States() []FieldState {
	ids, err := s.files.ListFieldIDs()
	if err != nil {
		logging.Error().Err(err).Msg("listing field records")
		return nil
	}
	sort.Ints(ids)

	states := make([]FieldState, 0, len(ids))
	for _, id := range ids {
		states = append(states, s.Get(id))
	}
	return states
}
