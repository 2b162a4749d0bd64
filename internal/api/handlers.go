// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package api

import (
	"net/http"
	"os"
	"time"

	"github.com/marionlk/stagehand/internal/bus"
	"github.com/marionlk/stagehand/internal/devices"
	"github.com/marionlk/stagehand/internal/fieldstate"
	"github.com/marionlk/stagehand/internal/storage"
)

// Handler holds the dependencies shared by every control endpoint.
type Handler struct {
	files    *storage.Store
	fields   *fieldstate.Store
	registry *devices.Registry
	bus      *bus.Bus
	started  time.Time
}

// NewHandler wires the control endpoints to the stores, the device
// registry, and the event bus.
func NewHandler(files *storage.Store, fields *fieldstate.Store, registry *devices.Registry, b *bus.Bus) *Handler {
	return &Handler{
		files:    files,
		fields:   fields,
		registry: registry,
		bus:      b,
		started:  time.Now(),
	}
}

// HealthLive reports that the process is up and serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "alive",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// HealthReady reports whether the server can do useful work: the data
// directory must be reachable and the event bus still open.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"storage": "ok",
		"bus":     "ok",
	}
	ready := true

	if _, err := os.Stat(h.files.BaseDir()); err != nil {
		checks["storage"] = err.Error()
		ready = false
	}
	if !h.bus.Open() {
		checks["bus"] = "closed"
		ready = false
	}

	status := http.StatusOK
	body := map[string]any{"status": "ready", "checks": checks}
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	respondJSON(w, status, body)
}
