// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat session for the opchat CLI.
//
// The REPL reads user turns with line editing and history, streams each
// reply as it arrives, and keeps the conversation window rules applied by
// the model package.
//
// Interactive commands:
//   /help           Show available commands
//   /status         Show conversation size and last reply
//   /clear          Drop all unpinned history
//   /last           Re-render the last reply as markdown
//   /quit           Exit
//   Ctrl+C          Cancel the current reply (at the prompt: exit)
//   Ctrl+D          Exit

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/seliware/opchat/internal/config"
	"github.com/seliware/opchat/internal/model"
	"github.com/seliware/opchat/internal/openai"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LineReader wraps liner with persistent input history.
type LineReader struct {
	line        *liner.State
	historyFile string
}

// NewLineReader creates a line reader and loads history from the config
// directory.
func NewLineReader() *LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile, err := config.HistoryPath()
	if err != nil {
		historyFile = ""
	}

	r := &LineReader{line: line, historyFile: historyFile}
	r.loadHistory()
	return r
}

func (r *LineReader) loadHistory() {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line with history navigation.
func (r *LineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close persists history and releases the terminal.
func (r *LineReader) Close() {
	if r.historyFile != "" {
		if err := config.EnsureDir(); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	r.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// Session holds everything one chat run needs.
type Session struct {
	Conv         *model.Conversation
	Client       *openai.Client
	TemplateName string
	Quiet        bool
	Silent       bool
	Markdown     bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// setCancel installs the cancel function for the in-flight reply.
func (s *Session) setCancel(fn context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancel = fn
	s.cancelMu.Unlock()
}

// interrupt cancels the in-flight reply, if any. Reports whether one was
// running.
func (s *Session) interrupt() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		return true
	}
	return false
}

// =============================================================================
// INTERACTIVE LOOP
// =============================================================================

// RunChat drives the interactive REPL until the user exits.
func RunChat(sess *Session) error {
	input := NewLineReader()
	defer input.Close()

	// One connection warm-up per process. The result is ignored.
	go sess.Client.WarmConnection(context.Background())

	if !sess.Quiet {
		printWelcome(sess)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if sess.interrupt() {
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[cancelled]"))
			}
		}
	}()

	for {
		line, err := input.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D: clean exit.
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			return nil
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := handleCommand(line, sess)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		if err := streamReply(sess, line); err != nil {
			PrintError(err)
		}
	}
}

// streamReply sends one user turn and prints the reply as it arrives.
// A cancelled reply is not an error and leaves no assistant message.
func streamReply(sess *Session, input string) error {
	sess.Conv.AddUser(input)

	ctx, cancel := context.WithCancel(context.Background())
	sess.setCancel(cancel)
	defer func() {
		sess.setCancel(nil)
		cancel()
	}()

	stream, err := sess.Client.Complete(ctx, sess.Conv)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer stream.Close()

	if !sess.Silent {
		fmt.Println(HeaderStyle.Render(model.RoleAssistant.DisplayName()))
	}

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println()
				return nil
			}
			fmt.Println()
			return err
		}
		fmt.Print(delta)
	}

	fmt.Println()
	if !sess.Silent {
		fmt.Println()
	}
	return nil
}

// =============================================================================
// COMMANDS
// =============================================================================

// handleCommand processes a slash command. Returns false to exit the REPL.
func handleCommand(cmd string, sess *Session) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	switch strings.ToLower(parts[0]) {
	case "/help", "/h", "/?":
		printCommandHelp()
		return true, nil

	case "/clear", "/c":
		sess.Conv.Clear()
		fmt.Println(DimStyle.Render("[history cleared, pinned messages kept]"))
		return true, nil

	case "/status", "/s":
		printStatus(sess)
		return true, nil

	case "/last":
		reply := sess.Conv.LastAssistant()
		if reply == nil {
			return true, fmt.Errorf("no reply yet")
		}
		if sess.Markdown {
			displayReply(reply.Content)
		} else {
			fmt.Print(reply.Content)
		}
		fmt.Println()
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command %s (try /help)", parts[0])
	}
}

func printCommandHelp() {
	fmt.Println(DimStyle.Render(`  /help    show this help
  /status  show conversation size and last reply
  /clear   drop all unpinned history
  /last    re-render the last reply as markdown
  /quit    exit (also: empty line, Ctrl+D)`))
}

func printStatus(sess *Session) {
	conv := sess.Conv
	if conv.IsEmpty() {
		fmt.Println(DimStyle.Render("[no messages yet]"))
		return
	}
	fmt.Printf("%s %d messages, last activity %s\n",
		DimStyle.Render("[status]"),
		conv.Len(),
		conv.UpdatedAt().Format(time.Kitchen))
	if last := conv.LastAssistant(); last != nil {
		fmt.Printf("%s %s\n", DimStyle.Render("[last reply]"), last.Preview(60))
	}
}

func printWelcome(sess *Session) {
	fmt.Printf("%s %s %s\n",
		TitleStyle.Render("opchat"),
		DimStyle.Render("template:"),
		NameStyle.Render(sess.TemplateName))
	fmt.Println(DimStyle.Render("empty line or Ctrl+D to exit, /help for commands"))
	fmt.Println()
}
