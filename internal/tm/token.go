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
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/metrics"
)

const (
	// tokenExpirySlack is subtracted from the advertised token lifetime
	// so a token is refreshed before the upstream would reject it
	// mid-request.
	tokenExpirySlack = 60 * time.Second

	// defaultTokenLifetime applies when the token response omits
	// expires_in.
	defaultTokenLifetime = 3600 * time.Second

	tokenRequestTimeout = 10 * time.Second
)

// TokenSource fetches and caches the OAuth2 bearer token for the
// Tournament Manager API using the client-credentials grant. One
// TokenSource is shared by the REST client and the websocket connector so
// both reuse the same cached token. Safe for concurrent use.
type TokenSource struct {
	authURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource builds a TokenSource from the TM configuration.
func NewTokenSource(cfg config.TMConfig) *TokenSource {
	return &TokenSource{
		authURL:      cfg.AuthURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: tokenRequestTimeout},
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns the cached bearer token, requesting a new one when the
// cache is empty or within a minute of expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.expires.After(ts.now()) {
		return ts.token, nil
	}

	logging.Info().Msg("requesting new tournament manager auth token")

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(ts.clientID, ts.clientSecret)

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", ts.fail(fmt.Errorf("token request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", ts.fail(fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", ts.fail(fmt.Errorf("decode token response: %w", err))
	}
	if tok.AccessToken == "" {
		return "", ts.fail(fmt.Errorf("token response carried no access_token"))
	}

	lifetime := defaultTokenLifetime
	if tok.ExpiresIn > 0 {
		lifetime = time.Duration(tok.ExpiresIn) * time.Second
	}

	ts.token = tok.AccessToken
	ts.expires = ts.now().Add(lifetime - tokenExpirySlack)
	logging.Info().Time("expires", ts.expires).Msg("obtained tournament manager auth token")
	return ts.token, nil
}

// Invalidate discards the cached token so the next Token call fetches a
// fresh one. Called when the upstream rejects a signed request outright.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.mu.Unlock()
}

// fail clears the cache, counts the failure and passes the error through.
// Callers hold ts.mu.
func (ts *TokenSource) fail(err error) error {
	ts.token = ""
	metrics.RecordTMAuthFailure()
	logging.Error().Err(err).Msg("tournament manager auth failed")
	return err
}
