// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/seliware/opchat/internal/model"
)

// Configuration constants for the chat-completions API.
const (
	// DefaultBaseURL is the base URL of the upstream API.
	DefaultBaseURL = "https://api.openai.com"

	// completionsPath is the streaming chat-completions endpoint.
	completionsPath = "/v1/chat/completions"

	// DefaultConnectTimeout bounds connection establishment.
	DefaultConnectTimeout = 3 * time.Second

	// DefaultHeaderTimeout bounds the wait for the first response byte.
	// The body itself is read without a deadline since a generation can
	// legitimately take a long time; cancellation goes through the context.
	DefaultHeaderTimeout = 10 * time.Second

	// DefaultWarmTimeout bounds the best-effort warm-up request.
	DefaultWarmTimeout = 5 * time.Second

	// maxErrorBody caps how much of an error response body is retained.
	maxErrorBody = 64 * 1024
)

// Error variables for common client failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates the API rejected the bearer token.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the API returned 429.
	ErrRateLimited = errors.New("rate limited")
)

// APIError represents a non-success HTTP response from the API. The body has
// always been fully read by the time an APIError is returned, so the
// underlying connection is clean.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto sentinel errors so callers can use
// errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// apiErrorResponse is the JSON error envelope used by the API.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a streaming chat-completions client.
//
// A Client is safe to reuse across exchanges; the conversation itself is
// mutated only by the single foreground flow driving it.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	warmup     time.Duration
	debug      bool
}

// NewClient creates a client with the given API key. The key is required for
// Complete but not for construction, so callers can surface the missing-key
// error at the point of first use if they prefer.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: DefaultConnectTimeout,
				}).DialContext,
				ResponseHeaderTimeout: DefaultHeaderTimeout,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
			},
			// No overall timeout: streaming reads are bounded by the
			// request context, not a wall clock.
		},
		warmup: DefaultWarmTimeout,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithTimeouts overrides the connect and first-byte timeouts.
func (c *Client) WithTimeouts(connect, header time.Duration) *Client {
	c.httpClient.Transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connect,
		}).DialContext,
		ResponseHeaderTimeout: header,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return c
}

// WithRateLimit throttles completion requests to at most rpm per minute.
// Zero disables throttling.
func (c *Client) WithRateLimit(rpm int) *Client {
	if rpm <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	return c
}

// WithDebug enables transport debug logging through the standard logger.
func (c *Client) WithDebug(debug bool) *Client {
	c.debug = debug
	return c
}

// IsConfigured returns true if the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", "opchat/0.3.0")
}

func (c *Client) debugf(format string, args ...any) {
	if c.debug {
		log.Printf(format, args...)
	}
}

// =============================================================================
// STREAMING COMPLETION
// =============================================================================

// Complete issues a streaming completion request built from the
// conversation's current state and returns the reply as a lazy Stream.
//
// The request context is snapshotted through conv.BuildRequest before any
// network I/O; messages added to the conversation afterwards do not affect
// the in-flight exchange. A non-success status is a hard failure whose
// response body is fully drained before the error is returned. When the
// stream is exhausted successfully the accumulated reply is appended to conv
// as an assistant message through the normal Add path.
func (c *Client) Complete(ctx context.Context, conv *model.Conversation) (*Stream, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req := conv.BuildRequest()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.debugf("request: %s", body)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := c.handleErrorResponse(resp)
		resp.Body.Close()
		return nil, err
	}

	return newStream(resp, conv, c.debugf), nil
}

// handleErrorResponse drains the full error body and converts it into an
// APIError. Draining first lets the transport reuse or cleanly close the
// connection.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	// Consume any remainder past the cap as well.
	io.Copy(io.Discard, resp.Body)
	if readErr != nil {
		return &APIError{Status: resp.StatusCode, Message: "unreadable error response"}
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// =============================================================================
// CONNECTION WARM-UP
// =============================================================================

// WarmConnection establishes a connection to the API server ahead of the
// first completion, reducing first-token latency. It is best-effort: every
// failure is swallowed and has no effect on later Complete calls. Intended
// to run in a goroutine concurrently with input collection.
func (c *Client) WarmConnection(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.warmup)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.baseURL+completionsPath, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", "opchat/0.3.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.debugf("warm-up failed: %v", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
