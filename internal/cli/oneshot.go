// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// oneshot.go - Non-interactive mode for piped input.
//
// When stdin is not a terminal, opchat reads all of stdin as a single user
// turn, streams the reply to stdout, and exits. An interrupt cancels the
// reply and exits cleanly.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/seliware/opchat/internal/model"
)

// RunOneShot reads one prompt from stdin and streams the reply.
func RunOneShot(sess *Session) error {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(raw))
	if prompt == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	msg := sess.Conv.AddUser(prompt)
	if !sess.Silent {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			HeaderStyle.Render(model.RoleUser.DisplayName()),
			DimStyle.Render(msg.Preview(60)))
	}

	stream, err := sess.Client.Complete(ctx, sess.Conv)
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return err
	}
	defer stream.Close()

	if !sess.Silent {
		fmt.Fprintln(os.Stderr, HeaderStyle.Render(model.RoleAssistant.DisplayName()))
	}

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			return err
		}
		fmt.Print(delta)
	}

	fmt.Println()
	return nil
}
