// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seliware/opchat/internal/model"
)

// sseServer returns a test server that writes the given payload lines as
// SSE data frames and then closes the response.
func sseServer(t *testing.T, payloads ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok, "test server must support flushing")
		for _, p := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", p)
			flusher.Flush()
		}
	}))
}

func deltaFrame(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"delta": map[string]any{"content": content}},
		},
	})
	return string(raw)
}

func newTestConversation() *model.Conversation {
	conv := model.New(model.Params{Model: "test-model", Temperature: 0.5})
	conv.AddUser("hello")
	return conv
}

// drain consumes the stream to exhaustion, returning every yielded delta.
func drain(t *testing.T, s *Stream) []string {
	t.Helper()
	var deltas []string
	for {
		delta, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return deltas
		}
		require.NoError(t, err)
		deltas = append(deltas, delta)
	}
}

// =============================================================================
// DELTA DECODING
// =============================================================================

func TestStreamYieldsDeltasInOrder(t *testing.T) {
	srv := sseServer(t, deltaFrame("Hel"), deltaFrame("lo"), deltaFrame("!"), "[DONE]")
	defer srv.Close()

	conv := newTestConversation()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)

	deltas := drain(t, stream)
	assert.Equal(t, []string{"Hel", "lo", "!"}, deltas)
	assert.Equal(t, "Hello!", stream.Text())
}

func TestStreamSuppressesLeadingBlankDeltas(t *testing.T) {
	srv := sseServer(t, deltaFrame(""), deltaFrame("  \n"), deltaFrame("Hi"), deltaFrame(" there"), "[DONE]")
	defer srv.Close()

	conv := newTestConversation()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)

	deltas := drain(t, stream)
	// Blanks before the first real content are dropped; blanks after it
	// would be kept.
	assert.Equal(t, []string{"Hi", " there"}, deltas)

	last := conv.LastAssistant()
	require.NotNil(t, last)
	assert.Equal(t, "Hi there", last.Content)
}

func TestStreamSkipsFramesWithoutContent(t *testing.T) {
	roleOnly := `{"choices":[{"delta":{"role":"assistant"}}]}`
	malformed := `{not json`
	noChoices := `{"choices":[]}`

	srv := sseServer(t, roleOnly, malformed, deltaFrame("ok"), noChoices, "[DONE]")
	defer srv.Close()

	conv := newTestConversation()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)

	deltas := drain(t, stream)
	assert.Equal(t, []string{"ok"}, deltas)
}

func TestStreamDoneTokenStopsReading(t *testing.T) {
	// Frames after [DONE] must never be yielded.
	srv := sseServer(t, deltaFrame("yes"), "[DONE]", deltaFrame("never"))
	defer srv.Close()

	conv := newTestConversation()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)

	deltas := drain(t, stream)
	assert.Equal(t, []string{"yes"}, deltas)

	// Recv stays at EOF after exhaustion.
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

// =============================================================================
// COMMIT SEMANTICS
// =============================================================================

func TestStreamCommitsReplyOnDone(t *testing.T) {
	srv := sseServer(t, deltaFrame("answer"), "[DONE]")
	defer srv.Close()

	conv := newTestConversation()
	before := conv.Len()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)
	drain(t, stream)

	require.Equal(t, before+1, conv.Len())
	last := conv.LastAssistant()
	require.NotNil(t, last)
	assert.Equal(t, "answer", last.Content)
}

func TestStreamCommitsOnCleanEOFWithoutDone(t *testing.T) {
	// A server that closes the body without [DONE] still ends the reply.
	srv := sseServer(t, deltaFrame("partial but complete"))
	defer srv.Close()

	conv := newTestConversation()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)
	drain(t, stream)

	last := conv.LastAssistant()
	require.NotNil(t, last)
	assert.Equal(t, "partial but complete", last.Content)
}

func TestStreamCommitsEmptyReply(t *testing.T) {
	srv := sseServer(t, "[DONE]")
	defer srv.Close()

	conv := newTestConversation()
	before := conv.Len()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)
	deltas := drain(t, stream)

	assert.Empty(t, deltas)
	require.Equal(t, before+1, conv.Len())
	last := conv.LastAssistant()
	require.NotNil(t, last)
	assert.Equal(t, "", last.Content)
}

func TestStreamCloseDoesNotCommit(t *testing.T) {
	srv := sseServer(t, deltaFrame("first"), deltaFrame("second"), "[DONE]")
	defer srv.Close()

	conv := newTestConversation()
	before := conv.Len()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	assert.Equal(t, before, conv.Len(), "abandoned stream must not append a reply")
	_, err = stream.Recv()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestStreamRejectsOversizedFrame(t *testing.T) {
	// A single frame larger than the 64KB cap is a transport failure, not
	// a skippable frame.
	huge := deltaFrame(strings.Repeat("x", 80*1024))
	srv := sseServer(t, deltaFrame("ok"), huge, "[DONE]")
	defer srv.Close()

	conv := newTestConversation()
	before := conv.Len()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	stream, err := client.Complete(context.Background(), conv)
	require.NoError(t, err)

	delta, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "ok", delta)

	_, err = stream.Recv()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Equal(t, before, conv.Len(), "failed stream must not append a reply")
}

func TestStreamCancellationDoesNotCommit(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", deltaFrame("start"))
		flusher.Flush()
		<-r.Context().Done()
		close(blocked)
	}))
	defer srv.Close()

	conv := newTestConversation()
	before := conv.Len()
	client := NewClient("test-key").WithBaseURL(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.Complete(ctx, conv)
	require.NoError(t, err)

	delta, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, "start", delta)

	cancel()
	_, err = stream.Recv()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)

	<-blocked
	assert.Equal(t, before, conv.Len(), "cancelled stream must not append a reply")
}
