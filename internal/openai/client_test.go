// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seliware/opchat/internal/model"
)

// =============================================================================
// REQUEST CONSTRUCTION
// =============================================================================

func TestCompleteSendsSelectedWindow(t *testing.T) {
	var captured model.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	conv := model.New(model.Params{
		Model:       "test-model",
		Temperature: 0.7,
		Seed:        []*model.Message{model.NewSystemMessage("persona")},
	})

	client := NewClient("test-key").WithBaseURL(srv.URL)
	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)
	stream.Close()

	assert.Equal(t, "test-model", captured.Model)
	assert.InDelta(t, 0.7, captured.Temperature, 1e-9)
	assert.True(t, captured.Stream)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "persona", captured.Messages[0].Content)
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient("  ")
	conv := model.New(model.Params{Model: "test-model"})
	conv.AddUser("hello")

	_, err := client.Complete(context.Background(), conv)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

// =============================================================================
// ERROR RESPONSES
// =============================================================================

func errorBody(code, message string) string {
	raw, _ := json.Marshal(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
	return string(raw)
}

func TestCompleteMapsStatusToSentinels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthFailed},
		{"forbidden", http.StatusForbidden, ErrAuthFailed},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, errorBody("nope", "denied"))
			}))
			defer srv.Close()

			conv := model.New(model.Params{Model: "test-model"})
			conv.AddUser("hello")

			client := NewClient("test-key").WithBaseURL(srv.URL)
			_, err := client.Complete(context.Background(), conv)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, "denied", apiErr.Message)
		})
	}
}

// recordingBody tracks whether the response body was read to completion and
// closed before the error was surfaced.
type recordingBody struct {
	reader *bytes.Reader
	sawEOF bool
	closed bool
}

func (b *recordingBody) Read(p []byte) (int, error) {
	n, err := b.reader.Read(p)
	if err == io.EOF {
		b.sawEOF = true
	}
	return n, err
}

func (b *recordingBody) Close() error {
	b.closed = true
	return nil
}

// staticTransport hands back a canned response for every request.
type staticTransport struct {
	resp *http.Response
}

func (t *staticTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return t.resp, nil
}

func TestCompleteDrainsErrorBodyBeforeFailing(t *testing.T) {
	body := &recordingBody{reader: bytes.NewReader([]byte(errorBody("bad_request", "broken")))}
	client := NewClient("test-key")
	client.httpClient = &http.Client{Transport: &staticTransport{resp: &http.Response{
		StatusCode: http.StatusBadRequest,
		Body:       body,
		Header:     make(http.Header),
	}}}

	conv := model.New(model.Params{Model: "test-model"})
	conv.AddUser("hello")

	_, err := client.Complete(context.Background(), conv)
	require.Error(t, err)
	assert.True(t, body.sawEOF, "error body must be fully drained so the connection can be reused")
	assert.True(t, body.closed, "error body must be closed")
}

// =============================================================================
// WARM-UP
// =============================================================================

func TestWarmConnectionIgnoresFailures(t *testing.T) {
	// Nothing is listening here; the warm-up must swallow the error.
	client := NewClient("test-key").WithBaseURL("http://127.0.0.1:1")
	client.WarmConnection(context.Background())
}

func TestWarmConnectionHitsServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	client.WarmConnection(context.Background())
	assert.Equal(t, int32(1), hits.Load())
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func TestClientChainers(t *testing.T) {
	client := NewClient("test-key").
		WithBaseURL("http://example.test/").
		WithTimeouts(time.Second, 2*time.Second).
		WithRateLimit(30).
		WithDebug(true)

	assert.True(t, client.IsConfigured())
	assert.Equal(t, "http://example.test", client.baseURL, "trailing slash is trimmed")
	assert.NotNil(t, client.limiter)
	assert.True(t, client.debug)
}

func TestIsConfigured(t *testing.T) {
	assert.False(t, NewClient("").IsConfigured())
	assert.False(t, NewClient("   ").IsConfigured())
	assert.True(t, NewClient("sk-test").IsConfigured())
}
