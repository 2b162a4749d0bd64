// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package tm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marionlk/stagehand/internal/bus"
	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/events"
	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/metrics"
)

// Reconnection delays. An auth outage backs off the longest since manual
// credential fixes take time; a dropped connection retries fastest so a
// field controller restart costs seconds of events, not minutes.
const (
	authRetryDelay       = 60 * time.Second
	handshakeRetryDelay  = 15 * time.Second
	unexpectedRetryDelay = 15 * time.Second
	reconnectDelay       = 5 * time.Second
)

// Connector holds the persistent field-set stream open and publishes
// every decoded message onto the event bus. It reconnects forever; the
// process is expected to run unattended for a whole event day.
type Connector struct {
	client *Client
	bus    *bus.Bus
	wsURL  string
	path   string
	host   string
	dialer *websocket.Dialer
}

// NewConnector builds a Connector for the configured field set, sharing
// the client's token cache and signer.
func NewConnector(cfg config.TMConfig, client *Client, b *bus.Bus) (*Connector, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse tm base url: %w", err)
	}

	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}
	path := fmt.Sprintf("/api/fieldsets/%d", cfg.FieldSetID)

	return &Connector{
		client: client,
		bus:    b,
		wsURL:  scheme + "://" + base.Host + path,
		path:   path,
		host:   base.Host,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// String names the connector for the supervision tree.
func (c *Connector) String() string { return "tm-connector" }

// Serve runs the connect/read/reconnect cycle until ctx is cancelled.
func (c *Connector) Serve(ctx context.Context) error {
	defer metrics.SetTMConnected(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		token, err := c.client.tokens.Token(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("cannot connect to field set stream without an auth token")
			if err := sleep(ctx, authRetryDelay); err != nil {
				return err
			}
			continue
		}

		headers := c.client.signer.SignedHeaders(http.MethodGet, c.path, token, c.host, time.Now())
		logging.Info().Str("url", c.wsURL).Msg("connecting to field set stream")

		conn, resp, err := c.dialer.DialContext(ctx, c.wsURL, headers)
		if err != nil {
			delay := unexpectedRetryDelay
			if resp != nil {
				logging.Error().Int("status", resp.StatusCode).Err(err).Msg("field set stream handshake rejected")
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusUnauthorized {
					c.client.tokens.Invalidate()
				}
				delay = handshakeRetryDelay
			} else {
				logging.Error().Err(err).Msg("field set stream connection failed")
			}
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		logging.Info().Msg("field set stream connected")
		metrics.SetTMConnected(true)

		err = c.readLoop(ctx, conn)
		metrics.SetTMConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.RecordTMReconnect()
		logging.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("field set stream disconnected")
		if err := sleep(ctx, reconnectDelay); err != nil {
			return err
		}
	}
}

// readLoop consumes messages until the connection drops or ctx ends. Each
// message becomes one event on the bus; undecodable messages are logged
// and skipped, never fatal.
func (c *Connector) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() { _ = conn.Close() }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		metrics.RecordTMMessage()

		event, err := events.FromWire(data)
		if err != nil {
			logging.Warn().Err(err).Bytes("message", clip(data, 256)).Msg("skipping undecodable field set message")
			continue
		}
		logging.Debug().Str("type", event.Type).Interface("field", event.Field).Msg("field set message received")

		if err := c.bus.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
	}
}

// sleep waits d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// clip bounds a raw message for log output.
func clip(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
