/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package statusthread posts one comment thread per build token on a Route to
// Live pull request.
package statusthread

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/routetolive/gitservice"
	"chainguard.dev/routetolive/reconcilers/internal/metrics"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel/attribute"
)

// Reconciler ensures status threads exist.
type Reconciler struct {
	threads gitservice.Threads
	metrics *metrics.Recorder
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMetrics replaces the recorder backed by the global providers.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New returns a Reconciler using threads.
func New(threads gitservice.Threads, opts ...Option) (*Reconciler, error) {
	if threads == nil {
		return nil, errors.New("thread service cannot be nil")
	}
	r := &Reconciler{threads: threads, metrics: metrics.New()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Find returns the oldest thread on pr whose first comment is exactly token,
// or nil when there is none.
func (r *Reconciler) Find(ctx context.Context, repo *gitservice.Repository, pr *gitservice.PullRequest, token string) (*gitservice.Thread, error) {
	threads, err := r.threads.ListThreads(ctx, repo, pr.ID)
	if err != nil {
		return nil, fmt.Errorf("listing threads on #%d: %w", pr.ID, err)
	}
	var found *gitservice.Thread
	for _, th := range threads {
		first, ok := th.FirstComment()
		if !ok || first.Content != token {
			continue
		}
		if found == nil || th.ID < found.ID {
			found = th
		}
	}
	return found, nil
}

// EnsureStatusThread returns the thread on pr whose first comment is token,
// creating it when missing. Creation failures, such as a pull request that
// is no longer active, are returned as-is.
func (r *Reconciler) EnsureStatusThread(ctx context.Context, repo *gitservice.Repository, pr *gitservice.PullRequest, token string) (th *gitservice.Thread, err error) {
	switch {
	case repo == nil:
		return nil, errors.New("repository cannot be nil")
	case pr == nil:
		return nil, errors.New("pull request cannot be nil")
	case token == "":
		return nil, errors.New("status token cannot be empty")
	}

	ctx, span := r.metrics.Start(ctx, "statusthread.ensure",
		attribute.Int("pullrequest", pr.ID),
		attribute.String("token", token))
	defer func() { metrics.End(span, err) }()

	log := clog.FromContext(ctx).With("pullrequest", pr.ID, "token", token)

	existing, err := r.Find(ctx, repo, pr, token)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Infof("Status thread %d already exists", existing.ID)
		return existing, nil
	}

	th, err = r.threads.CreateThread(ctx, repo, pr.ID, token)
	if err != nil {
		return nil, fmt.Errorf("creating status thread on #%d: %w", pr.ID, err)
	}
	r.metrics.ThreadCreated(ctx, repo.Name)
	log.Infof("Created status thread %d", th.ID)
	return th, nil
}
