// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/validation"
)

// Error is the wire shape carried inside every non-2xx response body.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorBody struct {
	Error *Error `json:"error"`
}

// respondJSON marshals v and writes it with the given status. A marshal
// failure downgrades the response to a generic 500 so the client never
// sees a half-written body.
func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal API response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"Failed to encode response"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write API response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: &Error{Code: code, Message: message}})
}

// respondValidationError maps the validator's collected field failures
// onto the error envelope as a 400.
func respondValidationError(w http.ResponseWriter, reqErr *validation.RequestError) {
	apiErr := reqErr.ToAPIError()
	respondJSON(w, http.StatusBadRequest, errorBody{Error: &Error{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}})
}
