/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubservice implements gitservice.Service on GitHub.
//
// The project of a repository is its owner. A status thread is a top-level
// issue comment on the pull request, so every thread has exactly one comment.
package githubservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chainguard.dev/routetolive/gitservice"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

const perPage = 100

// Service talks to GitHub or a GitHub Enterprise server.
type Service struct {
	client      *github.Client
	tokenSource oauth2.TokenSource
}

var _ gitservice.Service = (*Service)(nil)

type config struct {
	token          string
	appID          int64
	installationID int64
	keyPath        string
	baseURL        string
	transport      http.RoundTripper
	timeout        time.Duration
}

// Option configures New.
type Option func(*config)

// WithToken authenticates with a personal access or installation token.
func WithToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithAppInstallation authenticates as a GitHub App installation using the
// private key at keyPath.
func WithAppInstallation(appID, installationID int64, keyPath string) Option {
	return func(c *config) {
		c.appID, c.installationID, c.keyPath = appID, installationID, keyPath
	}
}

// WithBaseURL points the client at a GitHub Enterprise API root.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithTransport sets the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) { c.transport = rt }
}

// WithTimeout bounds every API request. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New builds a Service. Exactly one of WithToken or WithAppInstallation must
// be given.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	cfg := &config{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		ts oauth2.TokenSource
		hc *http.Client
	)
	switch {
	case cfg.token != "" && cfg.appID != 0:
		return nil, errors.New("token and app installation are mutually exclusive")
	case cfg.token != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.token})
		hc = &http.Client{Transport: &oauth2.Transport{Source: ts, Base: cfg.transport}}
	case cfg.appID != 0:
		itr, err := ghinstallation.NewKeyFromFile(cfg.transport, cfg.appID, cfg.installationID, cfg.keyPath)
		if err != nil {
			return nil, fmt.Errorf("loading app key: %w", err)
		}
		if cfg.baseURL != "" {
			itr.BaseURL = strings.TrimSuffix(cfg.baseURL, "/")
		}
		ts = oauth2.ReuseTokenSource(nil, &installationTokenSource{ctx: ctx, itr: itr})
		hc = &http.Client{Transport: itr}
	default:
		return nil, fmt.Errorf("%w: no GitHub credentials configured", gitservice.ErrUnauthorized)
	}

	hc.Timeout = cfg.timeout
	client := github.NewClient(hc)
	if cfg.baseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base url: %w", err)
		}
		client.BaseURL = base
	}
	return &Service{client: client, tokenSource: ts}, nil
}

// NewWithClient wraps an existing client. ts may be nil.
func NewWithClient(client *github.Client, ts oauth2.TokenSource) *Service {
	return &Service{client: client, tokenSource: ts}
}

// TokenSource returns the credentials to clone and push with.
func (s *Service) TokenSource() oauth2.TokenSource {
	return s.tokenSource
}

type installationTokenSource struct {
	ctx context.Context
	itr *ghinstallation.Transport
}

func (i *installationTokenSource) Token() (*oauth2.Token, error) {
	tok, err := i.itr.Token(i.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok}, nil
}

func wrap(resp *github.Response, err error) error {
	if resp != nil && resp.Response != nil {
		return gitservice.WrapStatus(resp.StatusCode, err)
	}
	var ge *github.ErrorResponse
	if errors.As(err, &ge) && ge.Response != nil {
		return gitservice.WrapStatus(ge.Response.StatusCode, err)
	}
	return err
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound
}

// GetRepository implements gitservice.Repositories.
func (s *Service) GetRepository(ctx context.Context, owner, name string) (*gitservice.Repository, error) {
	repo, resp, err := s.client.Repositories.Get(ctx, owner, name)
	switch {
	case isNotFound(resp):
		clog.FromContext(ctx).Debugf("Repository %s/%s not found", owner, name)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, name, wrap(resp, err))
	}
	return toRepository(repo), nil
}

// CreateRepository implements gitservice.Repositories. The repository is
// created under the authenticated user when owner is that user, and under
// the organization owner otherwise.
func (s *Service) CreateRepository(ctx context.Context, owner, name string) (*gitservice.Repository, error) {
	org := owner
	if user, _, err := s.client.Users.Get(ctx, ""); err == nil && strings.EqualFold(user.GetLogin(), owner) {
		org = ""
	}
	repo, resp, err := s.client.Repositories.Create(ctx, org, &github.Repository{
		Name:     github.Ptr(name),
		AutoInit: github.Ptr(true),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("%w: creating repository %s/%s: %w", gitservice.ErrConflict, owner, name, err)
		}
		return nil, fmt.Errorf("creating repository %s/%s: %w", owner, name, wrap(resp, err))
	}
	return toRepository(repo), nil
}

// ListPullRequests implements gitservice.PullRequests.
func (s *Service) ListPullRequests(ctx context.Context, repo *gitservice.Repository, q gitservice.PullRequestQuery) ([]*gitservice.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	if q.Status == gitservice.PullRequestActive {
		opts.State = "open"
	} else if q.Status != "" {
		opts.State = "closed"
	}
	if q.SourceRefName != "" {
		opts.Head = repo.Project + ":" + gitservice.BranchName(q.SourceRefName)
	}
	if q.TargetRefName != "" {
		opts.Base = gitservice.BranchName(q.TargetRefName)
	}

	var out []*gitservice.PullRequest
	for {
		prs, resp, err := s.client.PullRequests.List(ctx, repo.Project, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests: %w", wrap(resp, err))
		}
		for _, pr := range prs {
			p := toPullRequest(pr)
			if q.Status != "" && p.Status != q.Status {
				continue
			}
			out = append(out, p)
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// GetPullRequest implements gitservice.PullRequests.
func (s *Service) GetPullRequest(ctx context.Context, repo *gitservice.Repository, id int) (*gitservice.PullRequest, error) {
	pr, resp, err := s.client.PullRequests.Get(ctx, repo.Project, repo.Name, id)
	switch {
	case isNotFound(resp):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("getting pull request #%d: %w", id, wrap(resp, err))
	}
	return toPullRequest(pr), nil
}

// CreatePullRequest implements gitservice.PullRequests.
func (s *Service) CreatePullRequest(ctx context.Context, repo *gitservice.Repository, npr *gitservice.NewPullRequest) (*gitservice.PullRequest, error) {
	pr, resp, err := s.client.PullRequests.Create(ctx, repo.Project, repo.Name, &github.NewPullRequest{
		Title: github.Ptr(npr.Title),
		Head:  github.Ptr(gitservice.BranchName(npr.SourceRefName)),
		Base:  github.Ptr(gitservice.BranchName(npr.TargetRefName)),
		Body:  github.Ptr(npr.Description),
		Draft: github.Ptr(npr.IsDraft),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("%w: creating pull request from %s: %w", gitservice.ErrConflict, npr.SourceRefName, err)
		}
		return nil, fmt.Errorf("creating pull request from %s: %w", npr.SourceRefName, wrap(resp, err))
	}
	return toPullRequest(pr), nil
}

// UpdatePullRequest implements gitservice.PullRequests. The REST API cannot
// change the draft flag, so a draft update is logged and skipped.
func (s *Service) UpdatePullRequest(ctx context.Context, repo *gitservice.Repository, id int, u *gitservice.PullRequestUpdate) (*gitservice.PullRequest, error) {
	if u.IsDraft != nil {
		clog.FromContext(ctx).Warnf("Ignoring draft change on #%d, not supported by the REST API", id)
	}
	pr, resp, err := s.client.PullRequests.Edit(ctx, repo.Project, repo.Name, id, &github.PullRequest{
		Title: u.Title,
		Body:  u.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("updating pull request #%d: %w", id, wrap(resp, err))
	}
	return toPullRequest(pr), nil
}

// ListThreads implements gitservice.Threads.
func (s *Service) ListThreads(ctx context.Context, repo *gitservice.Repository, prID int) ([]*gitservice.Thread, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}

	var out []*gitservice.Thread
	for {
		comments, resp, err := s.client.Issues.ListComments(ctx, repo.Project, repo.Name, prID, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments on #%d: %w", prID, wrap(resp, err))
		}
		for _, c := range comments {
			out = append(out, toThread(c))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateThread implements gitservice.Threads.
func (s *Service) CreateThread(ctx context.Context, repo *gitservice.Repository, prID int, content string) (*gitservice.Thread, error) {
	c, resp, err := s.client.Issues.CreateComment(ctx, repo.Project, repo.Name, prID, &github.IssueComment{
		Body: github.Ptr(content),
	})
	if err != nil {
		return nil, fmt.Errorf("commenting on #%d: %w", prID, wrap(resp, err))
	}
	return toThread(c), nil
}

func toRepository(r *github.Repository) *gitservice.Repository {
	return &gitservice.Repository{
		ID:            strconv.FormatInt(r.GetID(), 10),
		Project:       r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		CloneURL:      r.GetCloneURL(),
		WebURL:        r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
	}
}

func toPullRequest(pr *github.PullRequest) *gitservice.PullRequest {
	status := gitservice.PullRequestActive
	if pr.GetState() == "closed" {
		status = gitservice.PullRequestAbandoned
		if pr.MergedAt != nil {
			status = gitservice.PullRequestCompleted
		}
	}
	return &gitservice.PullRequest{
		ID:            pr.GetNumber(),
		Title:         pr.GetTitle(),
		Description:   pr.GetBody(),
		SourceRefName: gitservice.RefName(pr.GetHead().GetRef()),
		TargetRefName: gitservice.RefName(pr.GetBase().GetRef()),
		IsDraft:       pr.GetDraft(),
		Status:        status,
		CreatedAt:     pr.GetCreatedAt().Time,
		URL:           pr.GetHTMLURL(),
	}
}

func toThread(c *github.IssueComment) *gitservice.Thread {
	return &gitservice.Thread{
		ID:       c.GetID(),
		Comments: []gitservice.Comment{{ID: c.GetID(), Content: c.GetBody()}},
	}
}
