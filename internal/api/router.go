// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marionlk/stagehand/internal/config"
)

// Rate limits per client IP. Room displays poll the popup list
// continuously, so reads get a far larger budget than writes.
const (
	readRateLimit  = 600
	writeRateLimit = 60
	rateWindow     = time.Minute
)

// NewRouter wires every control endpoint onto a chi router with the
// standard middleware stack.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(readRateLimit, rateWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))

			r.Get("/health/live", h.HealthLive)
			r.Get("/health/ready", h.HealthReady)
			r.Get("/popups", h.ListPopups)
			r.Get("/fields", h.ListFields)
			r.Get("/scheduled-match", h.ScheduledMatch)
		})

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(writeRateLimit, rateWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))

			r.Post("/events", h.InjectEvent)
			r.Post("/popups", h.SendPopup)
			r.Delete("/popups/{id}", h.DismissPopup)
			r.Post("/actions", h.TriggerAction)
			r.Put("/pause", h.SetPause)
			r.Post("/schedule/reset", h.ResetSchedule)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
