// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package audit records the outcome of every action dispatch as one JSON
// line in an append-only log. The log is the show operator's answer to
// "did the lights actually fire when match Q12 started" and is never
// rewritten or truncated by the application.
package audit

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/logging"
)

// FileName is the audit log file under the data directory.
const FileName = "events.log"

// Status classifies how handling an event or action concluded.
type Status string

const (
	// StatusDispatched means the action reached its device controller.
	StatusDispatched Status = "dispatched"

	// StatusSkippedPaused means the controller's category was paused.
	StatusSkippedPaused Status = "skipped_paused"

	// StatusSkippedNoController means no controller is configured for
	// the action's type.
	StatusSkippedNoController Status = "skipped_no_controller"

	// StatusFailed means the controller returned an error.
	StatusFailed Status = "failed"

	// StatusError means event processing itself failed before any
	// action could be resolved.
	StatusError Status = "error"
)

// Outcome values recorded alongside a status.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one line of the trail.
type Entry struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	ActionID  string    `json:"action_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
}

// Trail appends entries to the audit log through a buffered background
// writer so dispatch hot paths never block on disk.
type Trail struct {
	file    *os.File
	entryCh chan Entry
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

const bufferSize = 256

// Open opens (creating if needed) the audit log under dir and starts the
// background writer.
func Open(dir string) (*Trail, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	t := &Trail{
		file:    f,
		entryCh: make(chan Entry, bufferSize),
		stopCh:  make(chan struct{}),
	}

	t.wg.Add(1)
	go t.writer()

	return t, nil
}

// Record queues an entry for appending. A zero timestamp is filled with
// the current UTC time. When the buffer is full the entry is dropped with
// a warning rather than stalling the caller.
func (t *Trail) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	select {
	case t.entryCh <- e:
	default:
		logging.Warn().
			Str("event_id", e.EventID).
			Str("status", string(e.Status)).
			Msg("Audit buffer full, dropping entry")
	}
}

// writer drains the entry channel onto disk.
func (t *Trail) writer() {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopCh:
			for {
				select {
				case e := <-t.entryCh:
					t.append(e)
				default:
					return
				}
			}
		case e := <-t.entryCh:
			t.append(e)
		}
	}
}

func (t *Trail) append(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal audit entry")
		return
	}

	if _, err := t.file.Write(append(data, '\n')); err != nil {
		logging.Error().Err(err).Str("file", t.file.Name()).Msg("Failed to write audit entry")
	}
}

// Close drains pending entries and syncs the log to disk.
func (t *Trail) Close() error {
	close(t.stopCh)
	t.wg.Wait()

	if err := t.file.Sync(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
