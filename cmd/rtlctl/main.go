/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command rtlctl drives the Route to Live workflow against Azure DevOps or
// GitHub: it keeps one draft pull request per feature branch, one status
// thread per build and the release checklist in the pull request
// description.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"chainguard.dev/routetolive/routetolive"
	"github.com/alecthomas/kong"
	"github.com/chainguard-dev/clog"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// version is stamped at link time.
var version = "devel"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: loading .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, envconfig.OsLookuper())
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookuper envconfig.Lookuper) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("rtlctl"),
		kong.Description("Route to Live pull request and status thread automation."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Vars(vars),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	h, closeLog, err := cli.handler(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()
	ctx = clog.WithLogger(ctx, clog.New(h))

	cfg, err := loadConfig(ctx, lookuper)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg.applyFlags(&cli.Globals)

	env := &Env{ctx: ctx, cfg: cfg, stdout: stdout}
	if err := kctx.Run(env); err != nil {
		if errors.Is(err, routetolive.ErrNoPullRequest) {
			fmt.Fprintln(stderr, "No Pull Request Found.")
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}
