/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pullrequest keeps exactly one Route to Live pull request open per
// feature branch and maintains the release gate checklist in its description.
//
// Lookup happens before creation, so repeated calls converge on a single pull
// request. Two callers racing on the same branch can still both create one;
// callers serialize per repository and branch when that matters.
package pullrequest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"chainguard.dev/routetolive/gitservice"
	"chainguard.dev/routetolive/reconcilers/description"
	"chainguard.dev/routetolive/reconcilers/internal/metrics"
	"github.com/chainguard-dev/clog"
	gocmp "github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// TitlePrefix starts the title of every Route to Live pull request.
	TitlePrefix = "RouteToLive: "

	// DefaultDestination is the target branch when none is given.
	DefaultDestination = "develop"
)

// Title returns the pull request title for a source branch.
func Title(source string) string {
	return TitlePrefix + source
}

// Reconciler opens and updates pull requests.
type Reconciler struct {
	prs     gitservice.PullRequests
	draft   bool
	metrics *metrics.Recorder
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithDraft controls whether new pull requests are opened as drafts. The
// default is true.
func WithDraft(draft bool) Option {
	return func(r *Reconciler) {
		r.draft = draft
	}
}

// WithMetrics replaces the recorder backed by the global providers.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New returns a Reconciler using prs.
func New(prs gitservice.PullRequests, opts ...Option) (*Reconciler, error) {
	if prs == nil {
		return nil, errors.New("pull request service cannot be nil")
	}
	r := &Reconciler{
		prs:     prs,
		draft:   true,
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// FindPullRequest returns the active pull request from source, or nil when
// there is none. When several are active the most recently created one wins.
func (r *Reconciler) FindPullRequest(ctx context.Context, repo *gitservice.Repository, source string) (*gitservice.PullRequest, error) {
	if repo == nil {
		return nil, errors.New("repository cannot be nil")
	}
	if source == "" {
		return nil, errors.New("source branch cannot be empty")
	}

	prs, err := r.prs.ListPullRequests(ctx, repo, gitservice.PullRequestQuery{
		SourceRefName: gitservice.RefName(source),
		Status:        gitservice.PullRequestActive,
	})
	if err != nil {
		return nil, fmt.Errorf("listing pull requests for %s: %w", source, err)
	}
	if len(prs) == 0 {
		return nil, nil
	}

	// Newest first, highest id breaking ties.
	slices.SortFunc(prs, func(a, b *gitservice.PullRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(prs) > 1 {
		ignored := make([]int, 0, len(prs)-1)
		for _, pr := range prs[1:] {
			ignored = append(ignored, pr.ID)
		}
		clog.FromContext(ctx).Warnf("Found %d active pull requests from %s, using #%d and ignoring %v",
			len(prs), source, prs[0].ID, ignored)
	}
	return prs[0], nil
}

// EnsurePullRequest returns the active pull request from source, opening one
// into destination when none exists. An empty destination means develop. An
// existing pull request is returned as-is even if it targets another branch.
func (r *Reconciler) EnsurePullRequest(ctx context.Context, repo *gitservice.Repository, source, destination string) (pr *gitservice.PullRequest, err error) {
	if destination == "" {
		destination = DefaultDestination
	}
	ctx, span := r.metrics.Start(ctx, "pullrequest.ensure",
		attribute.String("source", source),
		attribute.String("destination", destination))
	defer func() { metrics.End(span, err) }()

	log := clog.FromContext(ctx).With("source", source)

	existing, err := r.FindPullRequest(ctx, repo, source)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Infof("Pull request #%d already open", existing.ID)
		return existing, nil
	}

	log.Infof("Opening pull request into %s", destination)
	pr, err = r.prs.CreatePullRequest(ctx, repo, &gitservice.NewPullRequest{
		Title:         Title(source),
		Description:   description.Render(nil),
		SourceRefName: gitservice.RefName(source),
		TargetRefName: gitservice.RefName(destination),
		IsDraft:       r.draft,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pull request for %s: %w", source, err)
	}
	r.metrics.PullRequestCreated(ctx, repo.Name)
	log.Infof("Opened pull request #%d", pr.ID)
	return pr, nil
}

// SetGates rewrites the checklist lines of the gates in updates within the
// description of pr. Release notes and any other text are kept. The pull
// request is only updated when the description changes; otherwise pr is
// returned unchanged.
func (r *Reconciler) SetGates(ctx context.Context, repo *gitservice.Repository, pr *gitservice.PullRequest, updates description.Statuses) (_ *gitservice.PullRequest, err error) {
	if pr == nil {
		return nil, errors.New("pull request cannot be nil")
	}
	ctx, span := r.metrics.Start(ctx, "pullrequest.setgates", attribute.Int("pullrequest", pr.ID))
	defer func() { metrics.End(span, err) }()

	log := clog.FromContext(ctx).With("pullrequest", pr.ID)

	current := description.Parse(pr.Description)
	merged := current.Merge(updates)
	desc := description.Update(pr.Description, updates)
	if desc == pr.Description {
		log.Debugf("Gate statuses unchanged")
		return pr, nil
	}
	log.Infof("Updating gate statuses: %s", gocmp.Diff(current, merged))

	updated, err := r.prs.UpdatePullRequest(ctx, repo, pr.ID, &gitservice.PullRequestUpdate{
		Description: &desc,
	})
	if err != nil {
		return nil, fmt.Errorf("updating pull request #%d: %w", pr.ID, err)
	}
	return updated, nil
}
