/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitservice

import (
	"context"
	"errors"
	"strings"
	"time"
)

const refsHeadsPrefix = "refs/heads/"

var (
	// ErrUnauthorized is wrapped by errors caused by rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is wrapped by errors caused by a conflicting remote state,
	// such as a rejected push or a pull request that already exists.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is wrapped by mutating calls whose target does not exist.
	// Lookups report a missing object as a nil result instead.
	ErrNotFound = errors.New("not found")
)

// Repositories looks up and creates repositories.
type Repositories interface {
	// GetRepository returns nil, nil when the repository does not exist.
	GetRepository(ctx context.Context, project, name string) (*Repository, error)
	CreateRepository(ctx context.Context, project, name string) (*Repository, error)
}

// PullRequests manages pull requests on a repository.
type PullRequests interface {
	ListPullRequests(ctx context.Context, repo *Repository, query PullRequestQuery) ([]*PullRequest, error)
	// GetPullRequest returns nil, nil when the pull request does not exist.
	GetPullRequest(ctx context.Context, repo *Repository, id int) (*PullRequest, error)
	CreatePullRequest(ctx context.Context, repo *Repository, pr *NewPullRequest) (*PullRequest, error)
	UpdatePullRequest(ctx context.Context, repo *Repository, id int, update *PullRequestUpdate) (*PullRequest, error)
}

// Threads manages comment threads on a pull request.
type Threads interface {
	// ListThreads returns every thread with its comments in creation order.
	ListThreads(ctx context.Context, repo *Repository, pullRequestID int) ([]*Thread, error)
	// CreateThread opens a new thread whose sole initial comment is content.
	CreateThread(ctx context.Context, repo *Repository, pullRequestID int, content string) (*Thread, error)
}

// Service is the full hosted Git service.
type Service interface {
	Repositories
	PullRequests
	Threads
}

// Repository identifies a remote repository.
type Repository struct {
	ID            string
	Project       string
	Name          string
	CloneURL      string
	WebURL        string
	DefaultBranch string
}

// PullRequestStatus is the lifecycle state of a pull request.
type PullRequestStatus string

const (
	PullRequestActive    PullRequestStatus = "active"
	PullRequestCompleted PullRequestStatus = "completed"
	PullRequestAbandoned PullRequestStatus = "abandoned"
)

// PullRequest is a pull request as reported by the service. Refs are fully
// qualified, e.g. refs/heads/develop.
type PullRequest struct {
	ID            int
	Title         string
	Description   string
	SourceRefName string
	TargetRefName string
	IsDraft       bool
	Status        PullRequestStatus
	CreatedAt     time.Time
	URL           string
}

// SourceBranch returns the source ref without its refs/heads/ prefix.
func (pr *PullRequest) SourceBranch() string {
	return BranchName(pr.SourceRefName)
}

// TargetBranch returns the target ref without its refs/heads/ prefix.
func (pr *PullRequest) TargetBranch() string {
	return BranchName(pr.TargetRefName)
}

// PullRequestQuery filters ListPullRequests. Empty fields match everything.
type PullRequestQuery struct {
	SourceRefName string
	TargetRefName string
	Status        PullRequestStatus
}

// NewPullRequest describes a pull request to create.
type NewPullRequest struct {
	Title         string
	Description   string
	SourceRefName string
	TargetRefName string
	IsDraft       bool
}

// PullRequestUpdate carries the fields to change. Nil means unchanged.
type PullRequestUpdate struct {
	Title       *string
	Description *string
	IsDraft     *bool
}

// Thread is a comment thread on a pull request.
type Thread struct {
	ID       int64
	Comments []Comment
}

// FirstComment returns the thread's opening comment, if any.
func (t *Thread) FirstComment() (Comment, bool) {
	if t == nil || len(t.Comments) == 0 {
		return Comment{}, false
	}
	return t.Comments[0], true
}

// Comment is a single comment in a thread.
type Comment struct {
	ID      int64
	Content string
}

// RefName qualifies a branch name, leaving already-qualified refs alone.
func RefName(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return refsHeadsPrefix + branch
}

// BranchName strips the refs/heads/ prefix from a ref.
func BranchName(ref string) string {
	return strings.TrimPrefix(ref, refsHeadsPrefix)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
