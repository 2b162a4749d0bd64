// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package tm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

// Header names the upstream API verifies on every signed request.
const (
	headerDate      = "x-tm-date"
	headerSignature = "x-tm-signature"
)

// Signer computes the per-request HMAC-SHA256 signature the Tournament
// Manager API requires alongside the bearer token. The API key acts as
// the shared secret; it is trimmed because keys pasted into config files
// tend to pick up trailing whitespace.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer keyed with the tournament API key.
func NewSigner(apiKey string) *Signer {
	return &Signer{key: []byte(strings.TrimSpace(apiKey))}
}

// Sign returns the hex HMAC-SHA256 signature over the canonical request
// form, which the upstream API fixes as:
//
//	VERB\n
//	PATH\n
//	token:<bearer token>\n
//	host:<host header value>\n
//	x-tm-date:<date header value>\n
//
// The host must match the Host header the request will carry, including
// any non-default port.
func (s *Signer) Sign(verb, path, token, host, date string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(verb))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString("token:")
	b.WriteString(token)
	b.WriteByte('\n')
	b.WriteString("host:")
	b.WriteString(host)
	b.WriteByte('\n')
	b.WriteString(headerDate + ":")
	b.WriteString(date)
	b.WriteByte('\n')

	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedHeaders builds the three authentication headers for one request.
// The date is rendered in the RFC 1123 GMT form the API expects.
func (s *Signer) SignedHeaders(verb, path, token, host string, now time.Time) http.Header {
	date := now.UTC().Format(http.TimeFormat)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set(headerDate, date)
	h.Set(headerSignature, s.Sign(verb, path, token, host, date))
	return h
}
