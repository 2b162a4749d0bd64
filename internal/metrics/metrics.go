// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event pipeline metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_published_total",
			Help: "Total number of events placed on the queue",
		},
		[]string{"type"},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_processed_total",
			Help: "Total number of events the processor finished handling",
		},
		[]string{"type"},
	)

	EventsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_failed_total",
			Help: "Total number of events whose processing returned an error",
		},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_processing_duration_seconds",
			Help:    "Time from dequeue to fully handled, actions included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Field state metrics
var (
	FieldTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "field_transitions_total",
			Help: "Total number of persisted field state transitions",
		},
		[]string{"from", "to"},
	)
)

// Action dispatch metrics
var (
	ActionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_dispatched_total",
			Help: "Total number of actions handed to a device controller",
		},
		[]string{"type", "command"},
	)

	ActionsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_skipped_total",
			Help: "Total number of actions dropped before dispatch",
		},
		[]string{"type", "reason"}, // reason: "paused", "no_controller", "no_camera"
	)

	ActionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_failed_total",
			Help: "Total number of actions whose controller returned an error",
		},
		[]string{"type"},
	)

	ActionDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "action_dispatch_duration_seconds",
			Help:    "Duration of device controller calls in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)
)

// Tournament server connection metrics
var (
	TMConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tm_connected",
			Help: "Whether the tournament server event stream is connected (1) or not (0)",
		},
	)

	TMReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tm_reconnects_total",
			Help: "Total number of event stream reconnect attempts",
		},
	)

	TMMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tm_messages_received_total",
			Help: "Total number of messages read from the event stream",
		},
	)

	TMAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tm_auth_failures_total",
			Help: "Total number of failed token or signature exchanges",
		},
	)
)

// Schedule fetcher metrics
var (
	ScheduleFetchCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schedule_fetch_cycles_total",
			Help: "Total number of completed schedule fetch passes",
		},
	)

	ScheduleFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schedule_fetch_errors_total",
			Help: "Total number of schedule fetch passes that failed",
		},
	)

	ScheduleFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_fetch_duration_seconds",
			Help:    "Duration of a full schedule fetch pass in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ScheduleDivisions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedule_divisions",
			Help: "Number of divisions in the last fetched schedule",
		},
	)
)

// Match scheduler metrics
var (
	SchedulerPasses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_passes_total",
			Help: "Total number of upcoming-match scan passes",
		},
	)

	SchedulerSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_skips_total",
			Help: "Total number of scan passes skipped by the queue pause window",
		},
	)

	MatchNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_notifications_total",
			Help: "Total number of upcoming-match popups created",
		},
	)

	PopupsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popups_active",
			Help: "Number of popups currently stored for display",
		},
	)
)

// Control API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordEventPublished records an event placed on the queue.
func RecordEventPublished(eventType string) {
	EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventProcessed records a fully handled event with its processing time.
func RecordEventProcessed(eventType string, duration time.Duration) {
	EventsProcessed.WithLabelValues(eventType).Inc()
	EventProcessingDuration.Observe(duration.Seconds())
}

// RecordEventFailed records an event whose handler returned an error.
func RecordEventFailed() {
	EventsFailed.Inc()
}

// RecordFieldTransition records a persisted state change.
func RecordFieldTransition(from, to string) {
	FieldTransitions.WithLabelValues(from, to).Inc()
}

// RecordActionDispatched records a controller call and its duration.
func RecordActionDispatched(actionType, command string, duration time.Duration) {
	ActionsDispatched.WithLabelValues(actionType, command).Inc()
	ActionDispatchDuration.WithLabelValues(actionType).Observe(duration.Seconds())
}

// RecordActionSkipped records an action dropped before dispatch.
func RecordActionSkipped(actionType, reason string) {
	ActionsSkipped.WithLabelValues(actionType, reason).Inc()
}

// RecordActionFailed records a controller error.
func RecordActionFailed(actionType string) {
	ActionsFailed.WithLabelValues(actionType).Inc()
}

// SetTMConnected updates the event stream connection gauge.
func SetTMConnected(connected bool) {
	if connected {
		TMConnected.Set(1)
	} else {
		TMConnected.Set(0)
	}
}

// RecordTMReconnect records an event stream reconnect attempt.
func RecordTMReconnect() {
	TMReconnects.Inc()
}

// RecordTMMessage records a message read from the event stream.
func RecordTMMessage() {
	TMMessagesReceived.Inc()
}

// RecordTMAuthFailure records a failed authentication exchange.
func RecordTMAuthFailure() {
	TMAuthFailures.Inc()
}

// RecordScheduleFetch records a completed fetch pass.
func RecordScheduleFetch(duration time.Duration, divisions int) {
	ScheduleFetchCycles.Inc()
	ScheduleFetchDuration.Observe(duration.Seconds())
	ScheduleDivisions.Set(float64(divisions))
}

// RecordScheduleFetchError records a failed fetch pass.
func RecordScheduleFetchError() {
	ScheduleFetchErrors.Inc()
}

// RecordSchedulerPass records a scan pass, skipped or not.
func RecordSchedulerPass(skipped bool) {
	SchedulerPasses.Inc()
	if skipped {
		SchedulerSkips.Inc()
	}
}

// RecordMatchNotification records an upcoming-match popup.
func RecordMatchNotification() {
	MatchNotifications.Inc()
}

// SetPopupsActive updates the stored popup count gauge.
func SetPopupsActive(n int) {
	PopupsActive.Set(float64(n))
}

// RecordAPIRequest records an API request with its latency.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
