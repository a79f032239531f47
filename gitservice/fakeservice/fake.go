/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package fakeservice provides an in-memory gitservice.Service for tests and
// behavior-driven scenarios. Repositories are keyed by project and name,
// pull requests and threads get sequential ids, and every call is counted so
// tests can assert that lookups did not turn into writes.
package fakeservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainguard.dev/routetolive/gitservice"
	"github.com/google/uuid"
)

// Call names recorded by Calls.
const (
	CallGetRepository     = "GetRepository"
	CallCreateRepository  = "CreateRepository"
	CallListPullRequests  = "ListPullRequests"
	CallGetPullRequest    = "GetPullRequest"
	CallCreatePullRequest = "CreatePullRequest"
	CallUpdatePullRequest = "UpdatePullRequest"
	CallListThreads       = "ListThreads"
	CallCreateThread      = "CreateThread"
)

// Service is a mutex-guarded in-memory hosted Git service.
type Service struct {
	mu sync.Mutex

	// CloneURL resolves the clone URL of a newly created repository.
	// Scenario tests point it at a local bare repository.
	CloneURL func(project, name string) string

	// Now stamps pull request creation times.
	Now func() time.Time

	repos   map[string]*gitservice.Repository
	prs     map[string][]*gitservice.PullRequest
	threads map[string]map[int][]*gitservice.Thread
	errs    map[string]error
	calls   map[string]int

	nextPR      int
	nextThread  int64
	nextComment int64
}

// New returns an empty Service.
func New() *Service {
	return &Service{
		Now:     time.Now,
		repos:   make(map[string]*gitservice.Repository),
		prs:     make(map[string][]*gitservice.PullRequest),
		threads: make(map[string]map[int][]*gitservice.Thread),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

var _ gitservice.Service = (*Service)(nil)

func key(project, name string) string {
	return project + "/" + name
}

// FailOn makes every later call named call return err. A nil err clears it.
func (s *Service) FailOn(call string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, call)
		return
	}
	s.errs[call] = err
}

// Calls returns how many times call was made.
func (s *Service) Calls(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[call]
}

// record counts the call and returns its injected error. Callers hold mu.
func (s *Service) record(call string) error {
	s.calls[call]++
	return s.errs[call]
}

// AddRepository registers a repository and returns a copy of it.
func (s *Service) AddRepository(project, name, cloneURL string) *gitservice.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRepository(project, name, cloneURL)
}

func (s *Service) addRepository(project, name, cloneURL string) *gitservice.Repository {
	repo := &gitservice.Repository{
		ID:       uuid.NewString(),
		Project:  project,
		Name:     name,
		CloneURL: cloneURL,
		WebURL:   fmt.Sprintf("https://fake.invalid/%s/_git/%s", project, name),
	}
	s.repos[key(project, name)] = repo
	cp := *repo
	return &cp
}

// AddPullRequest stores pr as-is on the repository, assigning an id and a
// creation time when they are unset. It bypasses call counting so tests can
// seed state.
func (s *Service) AddPullRequest(repo *gitservice.Repository, pr gitservice.PullRequest) *gitservice.PullRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pr.ID == 0 {
		s.nextPR++
		pr.ID = s.nextPR
	} else if pr.ID > s.nextPR {
		s.nextPR = pr.ID
	}
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = s.Now()
	}
	if pr.Status == "" {
		pr.Status = gitservice.PullRequestActive
	}
	k := key(repo.Project, repo.Name)
	s.prs[k] = append(s.prs[k], &pr)
	cp := pr
	return &cp
}

// SetPullRequestStatus changes the lifecycle state of a stored pull request.
func (s *Service) SetPullRequestStatus(repo *gitservice.Repository, id int, status gitservice.PullRequestStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pr := s.findPR(repo, id); pr != nil {
		pr.Status = status
	}
}

// GetRepository implements gitservice.Repositories.
func (s *Service) GetRepository(_ context.Context, project, name string) (*gitservice.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(CallGetRepository); err != nil {
		return nil, err
	}
	repo, ok := s.repos[key(project, name)]
	if !ok {
		return nil, nil
	}
	cp := *repo
	return &cp, nil
}

// CreateRepository implements gitservice.Repositories.
func (s *Service) CreateRepository(_ context.Context, project, name string) (*gitservice.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(CallCreateRepository); err != nil {
		return nil, err
	}
	if _, ok := s.repos[key(project, name)]; ok {
		return nil, fmt.Errorf("%w: repository %s/%s already exists", gitservice.ErrConflict, project, name)
	}
	var cloneURL string
	if s.CloneURL != nil {
		cloneURL = s.CloneURL(project, name)
	}
	return s.addRepository(project, name, cloneURL), nil
}

// ListPullRequests implements gitservice.PullRequests.
func (s *Service) ListPullRequests(_ context.Context, repo *gitservice.Repository, q gitservice.PullRequestQuery) ([]*gitservice.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(CallListPullRequests); err != nil {
		return nil, err
	}
	var out []*gitservice.PullRequest
	for _, pr := range s.prs[key(repo.Project, repo.Name)] {
		switch {
		case q.SourceRefName != "" && pr.SourceRefName != q.SourceRefName:
			continue
		case q.TargetRefName != "" && pr.TargetRefName != q.TargetRefName:
			continue
		case q.Status != "" && pr.Status != q.Status:
			continue
		}
		cp := *pr
		out = append(out, &cp)
	}
	return out, nil
}

// GetPullRequest implements gitservice.PullRequests.
func (s *Service) GetPullRequest(_ context.Context, repo *gitservice.Repository, id int) (*gitservice.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(CallGetPullRequest); err != nil {
		return nil, err
	}
	pr := s.findPR(repo, id)
	if pr == nil {
		return nil, nil
	}
	cp := *pr
	return &cp, nil
}

// CreatePullRequest implements gitservice.PullRequests.
func (s *Service) CreatePullRequest(_ context.Context, repo *gitservice.Repository, npr *gitservice.NewPullRequest) (*gitservice.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(CallCreatePullRequest); err != nil {
		return nil, err
	}
	k := key(repo.Project, repo.Name)
	if _, ok := s.repos[k]; !ok {
		return nil, fmt.Errorf("%w: repository %s", gitservice.ErrNotFound, k)
	}
	for _, pr := range s.prs[k] {
		if pr.Status == gitservice.PullRequestActive && pr.SourceRefName == npr.SourceRefName && pr.TargetRefName == npr.TargetRefName {
			return nil, fmt.Errorf("%w: an active pull request already exists for %s", gitservice.ErrConflict, npr.SourceRefName)
		}
	}
	s.nextPR++
	pr := &gitservice.PullRequest{
		ID:            s.nextPR,
		Title:         npr.Title,
		Description:   npr.Description,
		SourceRefName: npr.SourceRefName,
		TargetRefName: npr.TargetRefName,
		IsDraft:       npr.IsDraft,
		Status:        gitservice.PullRequestActive,
		CreatedAt:     s.Now(),
		URL:           fmt.Sprintf("https://fake.invalid/%s/pullrequest/%d", k, s.nextPR),
	}
	s.prs[k] = append(s.prs[k], pr)
	cp := *pr
	return &cp, nil
}

// UpdatePullRequest implements gitservice.PullRequests.
func (s *Service) UpdatePullRequest(_ context.Context, repo *gitservice.Repository, id int, u *gitservice.PullRequestUpdate) (*gitservice.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(CallUpdatePullRequest); err != nil {
		return nil, err
	}
	pr := s.findPR(repo, id)
	if pr == nil {
		return nil, fmt.Errorf("%w: pull request %d", gitservice.ErrNotFound, id)
	}
	if u.Title != nil {
		pr.Title = *u.Title
	}
	if u.Description != nil {
		pr.Description = *u.Description
	}
	if u.IsDraft != nil {
		pr.IsDraft = *u.IsDraft
	}
	cp := *pr
	return &cp, nil
}

// ListThreads implements gitservice.Threads.
func (s *Service) ListThreads(_ context.Context, repo *gitservice.Repository, prID int) ([]*gitservice.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(CallListThreads); err != nil {
		return nil, err
	}
	if s.findPR(repo, prID) == nil {
		return nil, fmt.Errorf("%w: pull request %d", gitservice.ErrNotFound, prID)
	}
	var out []*gitservice.Thread
	for _, th := range s.threads[key(repo.Project, repo.Name)][prID] {
		out = append(out, cloneThread(th))
	}
	return out, nil
}

// CreateThread implements gitservice.Threads. Threads cannot be opened on
// completed or abandoned pull requests.
func (s *Service) CreateThread(_ context.Context, repo *gitservice.Repository, prID int, content string) (*gitservice.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(CallCreateThread); err != nil {
		return nil, err
	}
	pr := s.findPR(repo, prID)
	if pr == nil {
		return nil, fmt.Errorf("%w: pull request %d", gitservice.ErrNotFound, prID)
	}
	if pr.Status != gitservice.PullRequestActive {
		return nil, fmt.Errorf("%w: pull request %d is %s", gitservice.ErrConflict, prID, pr.Status)
	}
	return s.appendThread(repo, prID, content), nil
}

// AddThread seeds a thread on a pull request without counting a call.
// Additional comments are appended as replies.
func (s *Service) AddThread(repo *gitservice.Repository, prID int, first string, replies ...string) *gitservice.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	th := s.appendThread(repo, prID, first)
	stored := s.threads[key(repo.Project, repo.Name)][prID]
	last := stored[len(stored)-1]
	for _, r := range replies {
		s.nextComment++
		last.Comments = append(last.Comments, gitservice.Comment{ID: s.nextComment, Content: r})
	}
	th.Comments = append([]gitservice.Comment(nil), last.Comments...)
	return th
}

func (s *Service) appendThread(repo *gitservice.Repository, prID int, content string) *gitservice.Thread {
	k := key(repo.Project, repo.Name)
	if s.threads[k] == nil {
		s.threads[k] = make(map[int][]*gitservice.Thread)
	}
	s.nextThread++
	s.nextComment++
	th := &gitservice.Thread{
		ID:       s.nextThread,
		Comments: []gitservice.Comment{{ID: s.nextComment, Content: content}},
	}
	s.threads[k][prID] = append(s.threads[k][prID], th)
	return cloneThread(th)
}

func (s *Service) findPR(repo *gitservice.Repository, id int) *gitservice.PullRequest {
	for _, pr := range s.prs[key(repo.Project, repo.Name)] {
		if pr.ID == id {
			return pr
		}
	}
	return nil
}

func cloneThread(th *gitservice.Thread) *gitservice.Thread {
	return &gitservice.Thread{
		ID:       th.ID,
		Comments: append([]gitservice.Comment(nil), th.Comments...),
	}
}
