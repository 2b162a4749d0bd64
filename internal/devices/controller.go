// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package devices drives the show hardware. Each controller pushes
// commands to one device's HTTP control endpoint; the registry routes
// resolved actions to controllers, honoring per-category pause flags and
// filling in context-dependent parameters.
package devices

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/rules"
)

// Controller pushes one resolved action to a show device.
type Controller interface {
	// Type is the action type this controller serves.
	Type() string

	// Execute sends the action's command. Errors are reported for
	// logging and audit; the show never stops for a failed cue.
	Execute(ctx context.Context, action rules.Action) error
}

// Ensure HTTPController implements Controller
var _ Controller = (*HTTPController)(nil)

const (
	defaultRequestTimeout = 10 * time.Second

	// Devices are physical consoles; a short burst at match start is
	// normal but sustained flooding would wedge them.
	commandsPerSecond = 5
	commandBurst      = 10
)

// HTTPController drives a device over its HTTP control endpoint. All
// devices accept the same wire shape: POST {"action": ..., "params": ...}.
type HTTPController struct {
	deviceType string
	endpoint   string
	extra      map[string]any
	httpClient *http.Client
	limiter    *rate.Limiter
}

// commandRequest is the body POSTed to a device endpoint.
type commandRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

func newHTTPController(deviceType, endpoint string, extra map[string]any) *HTTPController {
	return &HTTPController{
		deviceType: deviceType,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		extra:      extra,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		limiter: rate.NewLimiter(commandsPerSecond, commandBurst),
	}
}

// NewAudio creates the audio controller. The configured playback device
// id rides along on every command.
func NewAudio(cfg config.AudioDevice) *HTTPController {
	var extra map[string]any
	if cfg.DeviceID != "" {
		extra = map[string]any{"device_id": cfg.DeviceID}
	}
	return newHTTPController(config.CategoryAudio, cfg.URL, extra)
}

// NewVideo creates the video switcher controller.
func NewVideo(cfg config.VideoDevice) *HTTPController {
	return newHTTPController(config.CategoryVideo, cfg.URL, nil)
}

// NewLighting creates the lighting console controller.
func NewLighting(cfg config.LightingDevice) *HTTPController {
	return newHTTPController(config.CategoryLighting, cfg.URL, nil)
}

// Type returns the action type this controller serves.
func (c *HTTPController) Type() string {
	return c.deviceType
}

// Execute sends the action's command to the device endpoint.
func (c *HTTPController) Execute(ctx context.Context, action rules.Action) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s command rate limit: %w", c.deviceType, err)
	}

	params := make(map[string]any, len(action.Params)+len(c.extra))
	for k, v := range c.extra {
		params[k] = v
	}
	for k, v := range action.Params {
		params[k] = v
	}
	for k, v := range action.Metadata {
		params[k] = v
	}

	body, err := json.Marshal(commandRequest{
		Action: action.Command,
		Params: params,
	})
	if err != nil {
		return fmt.Errorf("encode %s command: %w", c.deviceType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.deviceType, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s device request failed: %w", c.deviceType, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, err := io.ReadAll(io.LimitReader(resp.Body, 512))
		if err != nil {
			return fmt.Errorf("%s device returned status %d (failed to read body)", c.deviceType, resp.StatusCode)
		}
		return fmt.Errorf("%s device returned status %d: %s", c.deviceType, resp.StatusCode, string(msg))
	}

	return nil
}
