/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package routetolive

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/routetolive/gitservice"
	"chainguard.dev/routetolive/reconcilers/description"
	"chainguard.dev/routetolive/reconcilers/pullrequest"
	"chainguard.dev/routetolive/reconcilers/scaffold"
	"chainguard.dev/routetolive/reconcilers/statusthread"
	"chainguard.dev/routetolive/templater"
	"chainguard.dev/routetolive/workingcopy"
	"github.com/chainguard-dev/clog"
	"golang.org/x/oauth2"
)

var (
	// ErrRepositoryNotFound is returned when the remote repository does not
	// exist.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrNoPullRequest is returned when a branch has no active pull request.
	ErrNoPullRequest = errors.New("no pull request found")
)

// Client drives the Route to Live reconcilers against one hosted service.
type Client struct {
	svc          gitservice.Service
	templates    *templater.Templater
	cloneOpts    []workingcopy.Option
	scaffoldOpts []scaffold.Option

	pullRequests *pullrequest.Reconciler
	threads      *statusthread.Reconciler
}

// Option configures a Client.
type Option func(*Client) error

// WithTokenSource authenticates clones and pushes over http(s).
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) error {
		if ts == nil {
			return errors.New("token source cannot be nil")
		}
		c.cloneOpts = append(c.cloneOpts, workingcopy.WithTokenSource(ts))
		return nil
	}
}

// WithAuthor sets the author of scaffold commits.
func WithAuthor(name, email string) Option {
	return func(c *Client) error {
		c.cloneOpts = append(c.cloneOpts, workingcopy.WithAuthor(name, email))
		return nil
	}
}

// WithTemplater replaces the built-in scaffold templates.
func WithTemplater(t *templater.Templater) Option {
	return func(c *Client) error {
		if t == nil {
			return errors.New("templater cannot be nil")
		}
		c.templates = t
		return nil
	}
}

// WithScaffoldOptions passes options to every scaffold run.
func WithScaffoldOptions(opts ...scaffold.Option) Option {
	return func(c *Client) error {
		c.scaffoldOpts = append(c.scaffoldOpts, opts...)
		return nil
	}
}

// New returns a Client over svc.
func New(svc gitservice.Service, opts ...Option) (*Client, error) {
	if svc == nil {
		return nil, errors.New("service cannot be nil")
	}
	c := &Client{svc: svc}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.templates == nil {
		t, err := templater.Default()
		if err != nil {
			return nil, fmt.Errorf("loading templates: %w", err)
		}
		c.templates = t
	}

	var err error
	if c.pullRequests, err = pullrequest.New(svc); err != nil {
		return nil, err
	}
	if c.threads, err = statusthread.New(svc); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadRepository binds an existing remote repository: it is cloned and the
// scaffold is reconciled. Callers must Close the result.
func (c *Client) LoadRepository(ctx context.Context, project, name string) (*ManagedRepository, error) {
	repo, err := c.repository(ctx, project, name)
	if err != nil {
		return nil, err
	}
	return c.bind(ctx, repo)
}

// CreateRepository creates the remote repository and binds it like
// LoadRepository.
func (c *Client) CreateRepository(ctx context.Context, project, name string) (*ManagedRepository, error) {
	repo, err := c.svc.CreateRepository(ctx, project, name)
	if err != nil {
		return nil, fmt.Errorf("creating repository %s/%s: %w", project, name, err)
	}
	clog.FromContext(ctx).Infof("Created repository %s/%s", project, name)
	return c.bind(ctx, repo)
}

func (c *Client) repository(ctx context.Context, project, name string) (*gitservice.Repository, error) {
	repo, err := c.svc.GetRepository(ctx, project, name)
	if err != nil {
		return nil, fmt.Errorf("looking up repository %s/%s: %w", project, name, err)
	}
	if repo == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, project, name)
	}
	return repo, nil
}

func (c *Client) bind(ctx context.Context, repo *gitservice.Repository) (*ManagedRepository, error) {
	base := repo.DefaultBranch
	if base == "" {
		base = scaffold.DefaultBaseBranch
	}

	opts := append([]workingcopy.Option{workingcopy.WithBaseBranch(base)}, c.cloneOpts...)
	wc, err := workingcopy.Clone(ctx, repo.CloneURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloning %s/%s: %w", repo.Project, repo.Name, err)
	}

	rec, err := scaffold.New(c.templates, append([]scaffold.Option{scaffold.WithBaseBranch(base)}, c.scaffoldOpts...)...)
	if err != nil {
		wc.Close()
		return nil, err
	}
	res, err := rec.Reconcile(ctx, repo.Name, wc)
	if err != nil {
		wc.Close()
		return nil, fmt.Errorf("scaffolding %s/%s: %w", repo.Project, repo.Name, err)
	}
	return &ManagedRepository{Repository: repo, WorkingCopy: wc, Scaffold: res}, nil
}

// CreatePullRequest ensures a pull request from source into destination.
func (c *Client) CreatePullRequest(ctx context.Context, project, name, source, destination string) (*gitservice.PullRequest, error) {
	repo, err := c.repository(ctx, project, name)
	if err != nil {
		return nil, err
	}
	return c.pullRequests.EnsurePullRequest(ctx, repo, source, destination)
}

// LoadPullRequest returns the active pull request from source, or nil.
func (c *Client) LoadPullRequest(ctx context.Context, project, name, source string) (*gitservice.PullRequest, error) {
	repo, err := c.repository(ctx, project, name)
	if err != nil {
		return nil, err
	}
	return c.pullRequests.FindPullRequest(ctx, repo, source)
}

func (c *Client) pullRequest(ctx context.Context, project, name, source string) (*gitservice.Repository, *gitservice.PullRequest, error) {
	repo, err := c.repository(ctx, project, name)
	if err != nil {
		return nil, nil, err
	}
	pr, err := c.pullRequests.FindPullRequest(ctx, repo, source)
	if err != nil {
		return nil, nil, err
	}
	if pr == nil {
		return nil, nil, fmt.Errorf("%w for %s in %s/%s", ErrNoPullRequest, source, project, name)
	}
	return repo, pr, nil
}

// CreateThread ensures a status thread for token on the pull request from
// source.
func (c *Client) CreateThread(ctx context.Context, project, name, source, token string) (*gitservice.Thread, error) {
	repo, pr, err := c.pullRequest(ctx, project, name, source)
	if err != nil {
		return nil, err
	}
	return c.threads.EnsureStatusThread(ctx, repo, pr, token)
}

// Threads lists the threads on the pull request from source.
func (c *Client) Threads(ctx context.Context, project, name, source string) ([]*gitservice.Thread, error) {
	repo, pr, err := c.pullRequest(ctx, project, name, source)
	if err != nil {
		return nil, err
	}
	return c.svc.ListThreads(ctx, repo, pr.ID)
}

// SetGates updates gate statuses on the pull request from source.
func (c *Client) SetGates(ctx context.Context, project, name, source string, updates description.Statuses) (*gitservice.PullRequest, error) {
	repo, pr, err := c.pullRequest(ctx, project, name, source)
	if err != nil {
		return nil, err
	}
	return c.pullRequests.SetGates(ctx, repo, pr, updates)
}
