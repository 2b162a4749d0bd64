// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package tm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/logging"
)

// Client performs signed REST queries against the Tournament Manager API.
// Requests run through a circuit breaker so a dead upstream is probed
// instead of hammered; the schedule fetcher tolerates the resulting
// errors and simply retries on its next cycle.
type Client struct {
	baseURL    *url.URL
	tokens     *TokenSource
	signer     *Signer
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewClient builds a REST client from the TM configuration.
func NewClient(cfg config.TMConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tm base url: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    base,
		tokens:     NewTokenSource(cfg),
		signer:     NewSigner(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tm-api",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("tournament manager api circuit state changed")
		},
	})

	return c, nil
}

// Division is one entry of the upstream divisions listing.
type Division struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type divisionsResponse struct {
	Divisions []Division `json:"divisions"`
}

type matchesResponse struct {
	Matches []json.RawMessage `json:"matches"`
}

// Divisions lists the tournament's divisions.
func (c *Client) Divisions(ctx context.Context) ([]Division, error) {
	body, err := c.get(ctx, "/api/divisions")
	if err != nil {
		return nil, err
	}

	var dr divisionsResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("decode divisions response: %w", err)
	}
	if dr.Divisions == nil {
		return nil, fmt.Errorf("divisions response carried no divisions key")
	}
	return dr.Divisions, nil
}

// Matches returns one division's match list as raw JSON, preserving every
// field the upstream sent.
func (c *Client) Matches(ctx context.Context, divisionID int) ([]json.RawMessage, error) {
	body, err := c.get(ctx, "/api/matches/"+strconv.Itoa(divisionID))
	if err != nil {
		return nil, err
	}

	var mr matchesResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("decode matches response: %w", err)
	}
	if mr.Matches == nil {
		return nil, fmt.Errorf("matches response for division %d carried no matches key", divisionID)
	}
	return mr.Matches, nil
}

// get performs one signed GET through the circuit breaker and returns the
// response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		return c.doGet(ctx, path)
	})
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := *c.baseURL
	u.Path = path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header = c.signer.SignedHeaders(http.MethodGet, path, token, u.Host, time.Now())

	logging.Debug().Str("url", u.String()).Msg("tournament manager api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GET %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response for %s: %w", path, err)
	}
	return body, nil
}
