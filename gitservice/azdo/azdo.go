/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package azdo implements gitservice.Service on Azure DevOps Repos.
package azdo

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"chainguard.dev/routetolive/gitservice"
	"github.com/chainguard-dev/clog"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/git"
)

// Service talks to one Azure DevOps organization.
type Service struct {
	client  git.Client
	timeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds every API call. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

var _ gitservice.Service = (*Service)(nil)

// New connects to the organization at orgURL with a personal access token.
func New(ctx context.Context, orgURL, token string, opts ...Option) (*Service, error) {
	if orgURL == "" {
		return nil, errors.New("organization url cannot be empty")
	}
	if token == "" {
		return nil, fmt.Errorf("%w: personal access token cannot be empty", gitservice.ErrUnauthorized)
	}
	conn := azuredevops.NewPatConnection(orgURL, token)
	client, err := git.NewClient(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("creating git client for %s: %w", orgURL, wrap(err))
	}
	return NewWithClient(client, opts...), nil
}

// NewWithClient wraps an existing git client.
func NewWithClient(client git.Client, opts ...Option) *Service {
	s := &Service{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// statusCode extracts the HTTP status from an Azure DevOps error.
func statusCode(err error) (int, bool) {
	switch e := err.(type) {
	case azuredevops.WrappedError:
		if e.StatusCode != nil {
			return *e.StatusCode, true
		}
	case *azuredevops.WrappedError:
		if e != nil && e.StatusCode != nil {
			return *e.StatusCode, true
		}
	}
	return 0, false
}

func wrap(err error) error {
	if code, ok := statusCode(err); ok {
		return gitservice.WrapStatus(code, err)
	}
	return err
}

func isNotFound(err error) bool {
	code, ok := statusCode(err)
	return ok && code == http.StatusNotFound
}

// GetRepository implements gitservice.Repositories.
func (s *Service) GetRepository(ctx context.Context, project, name string) (*gitservice.Repository, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	repo, err := s.client.GetRepository(ctx, git.GetRepositoryArgs{
		Project:      &project,
		RepositoryId: &name,
	})
	switch {
	case isNotFound(err):
		clog.FromContext(ctx).Debugf("Repository %s/%s not found", project, name)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("getting repository %s/%s: %w", project, name, wrap(err))
	}
	return toRepository(project, repo), nil
}

// CreateRepository implements gitservice.Repositories.
func (s *Service) CreateRepository(ctx context.Context, project, name string) (*gitservice.Repository, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	repo, err := s.client.CreateRepository(ctx, git.CreateRepositoryArgs{
		Project:               &project,
		GitRepositoryToCreate: &git.GitRepositoryCreateOptions{Name: &name},
	})
	if err != nil {
		return nil, fmt.Errorf("creating repository %s/%s: %w", project, name, wrap(err))
	}
	return toRepository(project, repo), nil
}

// ListPullRequests implements gitservice.PullRequests.
func (s *Service) ListPullRequests(ctx context.Context, repo *gitservice.Repository, q gitservice.PullRequestQuery) ([]*gitservice.PullRequest, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	criteria := &git.GitPullRequestSearchCriteria{}
	if q.SourceRefName != "" {
		criteria.SourceRefName = &q.SourceRefName
	}
	if q.TargetRefName != "" {
		criteria.TargetRefName = &q.TargetRefName
	}
	if q.Status != "" {
		criteria.Status = gitservice.Ptr(git.PullRequestStatus(q.Status))
	}

	prs, err := s.client.GetPullRequests(ctx, git.GetPullRequestsArgs{
		Project:        &repo.Project,
		RepositoryId:   repoID(repo),
		SearchCriteria: criteria,
	})
	if err != nil {
		return nil, fmt.Errorf("listing pull requests: %w", wrap(err))
	}
	if prs == nil {
		return nil, nil
	}
	out := make([]*gitservice.PullRequest, 0, len(*prs))
	for i := range *prs {
		out = append(out, toPullRequest(&(*prs)[i]))
	}
	return out, nil
}

// GetPullRequest implements gitservice.PullRequests.
func (s *Service) GetPullRequest(ctx context.Context, repo *gitservice.Repository, id int) (*gitservice.PullRequest, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	pr, err := s.client.GetPullRequest(ctx, git.GetPullRequestArgs{
		Project:       &repo.Project,
		RepositoryId:  repoID(repo),
		PullRequestId: &id,
	})
	switch {
	case isNotFound(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("getting pull request #%d: %w", id, wrap(err))
	}
	return toPullRequest(pr), nil
}

// CreatePullRequest implements gitservice.PullRequests.
func (s *Service) CreatePullRequest(ctx context.Context, repo *gitservice.Repository, npr *gitservice.NewPullRequest) (*gitservice.PullRequest, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	pr, err := s.client.CreatePullRequest(ctx, git.CreatePullRequestArgs{
		Project:      &repo.Project,
		RepositoryId: repoID(repo),
		GitPullRequestToCreate: &git.GitPullRequest{
			Title:         &npr.Title,
			Description:   &npr.Description,
			SourceRefName: &npr.SourceRefName,
			TargetRefName: &npr.TargetRefName,
			IsDraft:       &npr.IsDraft,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating pull request from %s: %w", npr.SourceRefName, wrap(err))
	}
	return toPullRequest(pr), nil
}

// UpdatePullRequest implements gitservice.PullRequests.
func (s *Service) UpdatePullRequest(ctx context.Context, repo *gitservice.Repository, id int, u *gitservice.PullRequestUpdate) (*gitservice.PullRequest, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	pr, err := s.client.UpdatePullRequest(ctx, git.UpdatePullRequestArgs{
		Project:       &repo.Project,
		RepositoryId:  repoID(repo),
		PullRequestId: &id,
		GitPullRequestToUpdate: &git.GitPullRequest{
			Title:       u.Title,
			Description: u.Description,
			IsDraft:     u.IsDraft,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("updating pull request #%d: %w", id, wrap(err))
	}
	return toPullRequest(pr), nil
}

// ListThreads implements gitservice.Threads.
func (s *Service) ListThreads(ctx context.Context, repo *gitservice.Repository, prID int) ([]*gitservice.Thread, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	threads, err := s.client.GetThreads(ctx, git.GetThreadsArgs{
		Project:       &repo.Project,
		RepositoryId:  repoID(repo),
		PullRequestId: &prID,
	})
	if err != nil {
		return nil, fmt.Errorf("listing threads on #%d: %w", prID, wrap(err))
	}
	if threads == nil {
		return nil, nil
	}
	out := make([]*gitservice.Thread, 0, len(*threads))
	for i := range *threads {
		out = append(out, toThread(&(*threads)[i]))
	}
	return out, nil
}

// CreateThread implements gitservice.Threads.
func (s *Service) CreateThread(ctx context.Context, repo *gitservice.Repository, prID int, content string) (*gitservice.Thread, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	th, err := s.client.CreateThread(ctx, git.CreateThreadArgs{
		Project:       &repo.Project,
		RepositoryId:  repoID(repo),
		PullRequestId: &prID,
		CommentThread: &git.GitPullRequestCommentThread{
			Comments: &[]git.Comment{{Content: &content}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating thread on #%d: %w", prID, wrap(err))
	}
	return toThread(th), nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func toRepository(project string, r *git.GitRepository) *gitservice.Repository {
	if r == nil {
		return nil
	}
	out := &gitservice.Repository{
		Project:       project,
		Name:          deref(r.Name),
		CloneURL:      deref(r.RemoteUrl),
		WebURL:        deref(r.WebUrl),
		DefaultBranch: gitservice.BranchName(deref(r.DefaultBranch)),
	}
	if r.Id != nil {
		out.ID = r.Id.String()
	}
	if r.Project != nil && r.Project.Name != nil {
		out.Project = *r.Project.Name
	}
	return out
}

func toPullRequest(pr *git.GitPullRequest) *gitservice.PullRequest {
	if pr == nil {
		return nil
	}
	out := &gitservice.PullRequest{
		ID:            deref(pr.PullRequestId),
		Title:         deref(pr.Title),
		Description:   deref(pr.Description),
		SourceRefName: deref(pr.SourceRefName),
		TargetRefName: deref(pr.TargetRefName),
		IsDraft:       deref(pr.IsDraft),
		Status:        gitservice.PullRequestStatus(deref(pr.Status)),
		URL:           deref(pr.Url),
	}
	if pr.CreationDate != nil {
		out.CreatedAt = pr.CreationDate.Time
	}
	return out
}

func toThread(th *git.GitPullRequestCommentThread) *gitservice.Thread {
	if th == nil {
		return nil
	}
	out := &gitservice.Thread{ID: int64(deref(th.Id))}
	if th.Comments != nil {
		for _, c := range *th.Comments {
			out.Comments = append(out.Comments, gitservice.Comment{
				ID:      int64(deref(c.Id)),
				Content: deref(c.Content),
			})
		}
	}
	slices.SortStableFunc(out.Comments, func(a, b gitservice.Comment) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// repoID prefers the repository id, falling back to its name.
func repoID(repo *gitservice.Repository) *string {
	if repo.ID != "" {
		return &repo.ID
	}
	return &repo.Name
}
