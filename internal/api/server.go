// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server runs the control API under supervision, translating between
// http.Server's blocking ListenAndServe and the context-aware Serve the
// supervisor expects.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the HTTP server around the control router.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Serve implements suture.Service. It blocks until the context is
// canceled or the listener fails, then drains connections for up to
// shutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logging.Info().Str("addr", s.httpServer.Addr).Msg("Control API listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control api: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("control api shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string { return "control-api" }
