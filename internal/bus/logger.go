// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/marionlk/stagehand/internal/logging"
)

// loggerAdapter routes Watermill's internal logging through the
// process-wide zerolog logger.
type loggerAdapter struct {
	fields watermill.LogFields
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by the
// logging package.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &loggerAdapter{}
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.emit(logging.Error().Err(err), msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.emit(logging.Info(), msg, fields)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.emit(logging.Debug(), msg, fields)
}

func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.emit(logging.Trace(), msg, fields)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{fields: l.fields.Add(fields)}
}

func (l *loggerAdapter) emit(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	if len(l.fields) > 0 {
		ev = ev.Fields(map[string]any(l.fields))
	}
	if len(fields) > 0 {
		ev = ev.Fields(map[string]any(fields))
	}
	ev.Msg(msg)
}
