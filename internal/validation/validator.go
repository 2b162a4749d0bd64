// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package validation validates control API request bodies using
// go-playground/validator v10 behind a thread-safe singleton, translating
// failures into the API's VALIDATION_ERROR response shape.
//
// Example:
//
//	type sendPopupRequest struct {
//	    RoomIDs  []string `json:"room_ids" validate:"required,min=1"`
//	    Duration int      `json:"duration" validate:"omitempty,min=1,max=3600"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single field validation failure.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the struct field that failed.
func (e *FieldError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *FieldError) Tag() string { return e.tag }

// Error returns a human-readable message.
func (e *FieldError) Error() string { return e.message }

// RequestError collects every field failure from one request body.
type RequestError struct {
	fields []FieldError
}

// Fields returns the individual field failures.
func (re *RequestError) Fields() []FieldError { return re.fields }

// Error implements the error interface with a combined message.
func (re *RequestError) Error() string {
	if len(re.fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(re.fields))
	for i, fe := range re.fields {
		messages[i] = fe.message
	}
	return strings.Join(messages, "; ")
}

// APIError mirrors the control API error envelope, kept here to avoid an
// import cycle with the api package.
type APIError struct {
	Code    string
	Message string
	Details map[string]any
}

// ToAPIError converts the collected failures into the VALIDATION_ERROR
// response shape.
func (re *RequestError) ToAPIError() *APIError {
	if len(re.fields) == 0 {
		return &APIError{Code: "VALIDATION_ERROR", Message: "Validation failed"}
	}

	if len(re.fields) == 1 {
		fe := re.fields[0]
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: fe.message,
			Details: map[string]any{"field": fe.field, "tag": fe.tag},
		}
	}

	fields := make([]map[string]any, len(re.fields))
	messages := make([]string, len(re.fields))
	for i, fe := range re.fields {
		fields[i] = map[string]any{"field": fe.field, "tag": fe.tag, "message": fe.message}
		messages[i] = fmt.Sprintf("%s: %s", fe.field, fe.message)
	}
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: strings.Join(messages, "; "),
		Details: map[string]any{"fields": fields},
	}
}

// Validator returns the singleton instance, initializing it on first use.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates a request struct. It returns nil when the
// struct passes, or a *RequestError describing every failing field.
func ValidateStruct(s any) *RequestError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{fields: []FieldError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: translateError(fe),
		}
	}
	return &RequestError{fields: fields}
}

// translateError renders a validator failure as a short user-facing
// message covering the tags the control API actually uses.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
