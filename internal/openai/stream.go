// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/seliware/opchat/internal/model"
)

// dataPrefix is the SSE framing prefix carrying a payload line.
const dataPrefix = "data: "

// doneToken terminates the stream when it opens a data payload.
const doneToken = "[DONE]"

// maxFrameSize caps a single framing line so a misbehaving server cannot
// balloon memory on one frame.
const maxFrameSize = 64 * 1024

// ErrStreamClosed is returned by Recv after Close has been called.
var ErrStreamClosed = errors.New("stream closed")

// streamChunk is the decoded shape of a single data frame. Content is a
// pointer so a frame that merely omits the content key (role announcements,
// metadata) can be told apart from one carrying an empty string.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
			Role    string  `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// content returns the delta text and whether the frame actually carried one.
func (c *streamChunk) content() (string, bool) {
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == nil {
		return "", false
	}
	return *c.Choices[0].Delta.Content, true
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is a lazy, finite, single-pass sequence of reply deltas.
//
// It is consumed by exactly one reader via Recv until io.EOF. On successful
// exhaustion (a [DONE] frame or clean end of input) the accumulated text is
// appended to the originating conversation as an assistant message, exactly
// once, after the last delta has been yielded. A stream abandoned through
// Close or failed by a transport error commits nothing.
type Stream struct {
	resp   *http.Response
	reader *bufio.Reader
	conv   *model.Conversation
	debugf func(format string, args ...any)

	buf       strings.Builder
	began     bool // first non-whitespace delta seen
	done      bool
	committed bool
	err       error
}

func newStream(resp *http.Response, conv *model.Conversation, debugf func(string, ...any)) *Stream {
	return &Stream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
		conv:   conv,
		debugf: debugf,
	}
}

// Recv returns the next text delta. It returns io.EOF when the stream is
// exhausted; any other error is terminal. Not safe for concurrent use.
//
// Framing rules:
//   - lines without the "data: " prefix (keep-alives, comments) are ignored
//   - a payload opening with [DONE] ends the stream immediately
//   - payloads that fail to decode, or decode without a delta content key,
//     are skipped without aborting the stream
//   - leading deltas that are empty or whitespace-only are suppressed until
//     the first delta with real content; after that every delta is yielded
//     and accumulated verbatim
func (s *Stream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.done {
		return "", io.EOF
	}

	for {
		line, readErr := s.readLine()

		// A final unterminated line is still a valid frame.
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			if delta, ok, finished := s.handleLine(trimmed); finished {
				s.finish()
				return "", io.EOF
			} else if ok {
				return delta, nil
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				s.finish()
				return "", io.EOF
			}
			s.err = fmt.Errorf("read stream: %w", readErr)
			s.resp.Body.Close()
			return "", s.err
		}
	}
}

// readLine reads one framing line, bounded by maxFrameSize. An oversized
// line is a hard transport failure, not a skippable frame.
func (s *Stream) readLine() (string, error) {
	var buf strings.Builder
	for {
		chunk, err := s.reader.ReadSlice('\n')
		buf.Write(chunk)
		if buf.Len() > maxFrameSize {
			return "", fmt.Errorf("frame exceeds %d bytes", maxFrameSize)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf.String(), err
	}
}

// handleLine processes one framing line. It returns the delta to yield (with
// ok set), or finished=true when the line terminates the stream.
func (s *Stream) handleLine(line string) (delta string, ok bool, finished bool) {
	payload, isData := strings.CutPrefix(line, dataPrefix)
	if !isData {
		return "", false, false
	}
	if strings.HasPrefix(payload, doneToken) {
		return "", false, true
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		s.debugf("skipping undecodable frame: %v", err)
		return "", false, false
	}

	content, hasContent := chunk.content()
	if !hasContent {
		return "", false, false
	}

	// Some responses open with blank filler deltas before real content.
	if !s.began && strings.TrimSpace(content) == "" {
		return "", false, false
	}
	s.began = true
	s.buf.WriteString(content)
	return content, true, false
}

// finish commits the accumulated reply and releases the connection. An empty
// reply is still appended so the turn structure of the conversation stays
// intact.
func (s *Stream) finish() {
	if s.committed {
		return
	}
	s.committed = true
	s.done = true
	s.resp.Body.Close()
	s.conv.AddAssistant(s.buf.String())
}

// Text returns the reply accumulated so far.
func (s *Stream) Text() string {
	return s.buf.String()
}

// Close abandons the stream. If it has not been exhausted, the underlying
// connection is torn down and the partial reply is discarded without being
// committed to the conversation. Close after exhaustion is a no-op.
func (s *Stream) Close() error {
	if s.done || s.err != nil {
		return nil
	}
	s.err = ErrStreamClosed
	return s.resp.Body.Close()
}
