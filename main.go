// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// opchat - streaming chat client for OpenAI-compatible APIs.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/seliware/opchat/internal/cli"
	"github.com/seliware/opchat/internal/config"
	"github.com/seliware/opchat/internal/openai"
	"github.com/seliware/opchat/internal/template"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := cli.ParseArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorStyle.Render("error:"), err)
		fmt.Fprintln(os.Stderr, cli.Usage())
		return cli.ExitUsageError
	}

	if args.Help {
		fmt.Println(cli.Usage())
		return cli.ExitSuccess
	}
	if args.Version {
		fmt.Printf("opchat %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return cli.ExitSuccess
	}

	if args.NoColor {
		cli.DisableColors()
	}

	cfg, err := config.Load()
	if err != nil {
		cli.PrintError(err)
		return cli.ExitError
	}
	if cfg.UI.NoColor && !args.NoColor {
		cli.DisableColors()
	}

	tplPath, err := config.TemplatesPath()
	if err != nil {
		cli.PrintError(err)
		return cli.ExitError
	}
	mgr, err := template.Load(tplPath)
	if err != nil {
		cli.PrintError(err)
		return cli.ExitError
	}

	if args.List {
		if err := cli.HandleList(mgr); err != nil {
			cli.PrintError(err)
			return cli.ExitError
		}
		return cli.ExitSuccess
	}

	tpl, err := selectTemplate(mgr, args, cfg)
	if err != nil {
		cli.PrintError(err)
		return cli.ExitCode(err)
	}

	conv := tpl.Conversation(template.Overrides{
		Model:        firstNonEmpty(args.Model, cfg.Chat.Model),
		KeepMessages: args.KeepMessages,
		PinFirst:     args.PinFirst,
	})

	apiKey, err := cfg.APIKey()
	if err != nil {
		cli.PrintError(err)
		return cli.ExitError
	}

	client := openai.NewClient(apiKey).
		WithBaseURL(cfg.API.BaseURL).
		WithTimeouts(
			time.Duration(cfg.API.ConnectTimeoutSecs)*time.Second,
			time.Duration(cfg.API.HeaderTimeoutSecs)*time.Second,
		).
		WithRateLimit(cfg.API.RequestsPerMinute).
		WithDebug(args.Debug || cfg.UI.Debug)

	sess := &cli.Session{
		Conv:         conv,
		Client:       client,
		TemplateName: tpl.Name,
		Quiet:        args.Quiet || cfg.UI.Quiet || cfg.UI.Silent,
		Silent:       args.Silent || cfg.UI.Silent,
		Markdown:     cfg.UI.Markdown,
	}

	if cli.IsTTY() {
		err = cli.RunChat(sess)
	} else {
		err = cli.RunOneShot(sess)
	}
	if err != nil {
		cli.PrintError(err)
	}
	return cli.ExitCode(err)
}

// selectTemplate resolves the template from the -t picker, the positional
// argument, or the configured default, in that order.
func selectTemplate(mgr *template.Manager, args cli.Args, cfg *config.Config) (*template.Template, error) {
	if args.Pick {
		return cli.PickTemplate(mgr, args.TemplateName)
	}
	name := args.TemplateName
	if name == "" {
		name = cfg.Chat.DefaultTemplate
	}
	if name == "" {
		name = template.DefaultName
	}
	return mgr.Get(name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
