/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workingcopy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chainguard.dev/routetolive/gitservice"
	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"
)

const (
	cloneDirPrefix = "workingcopy-clone-"
	remoteName     = "origin"

	defaultAuthorName  = "routetolive"
	defaultAuthorEmail = "routetolive@users.noreply.localhost"
	defaultBaseBranch  = "master"
)

// WorkingCopy is a local clone of a remote repository. It is owned by a
// single caller for the duration of a run and is not safe for concurrent use.
type WorkingCopy struct {
	url  string
	path string
	repo *git.Repository

	baseBranch  string
	tokenSource oauth2.TokenSource
	authorName  string
	authorEmail string
}

// Option configures Clone.
type Option func(*WorkingCopy) error

// WithTokenSource authenticates http(s) remotes with the token as the basic
// auth password.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(wc *WorkingCopy) error {
		if ts == nil {
			return errors.New("token source cannot be nil")
		}
		wc.tokenSource = ts
		return nil
	}
}

// WithAuthor sets the commit author. An email without a domain is rejected.
func WithAuthor(name, email string) Option {
	return func(wc *WorkingCopy) error {
		name, email = strings.TrimSpace(name), strings.TrimSpace(email)
		if name == "" {
			return errors.New("author name cannot be empty")
		}
		if !strings.Contains(email, "@") {
			return fmt.Errorf("author email %q must contain a domain", email)
		}
		wc.authorName, wc.authorEmail = name, email
		return nil
	}
}

// WithBaseBranch names the branch an empty remote is initialised with.
func WithBaseBranch(name string) Option {
	return func(wc *WorkingCopy) error {
		if name == "" {
			return errors.New("base branch cannot be empty")
		}
		wc.baseBranch = name
		return nil
	}
}

// Clone copies the remote at url into a fresh temporary directory. An empty
// remote is initialised locally on the base branch with origin configured,
// so the first push creates the branch. Callers must Close the working copy.
func Clone(ctx context.Context, url string, opts ...Option) (*WorkingCopy, error) {
	if url == "" {
		return nil, errors.New("url cannot be empty")
	}

	wc := &WorkingCopy{
		url:         url,
		baseBranch:  defaultBaseBranch,
		authorName:  defaultAuthorName,
		authorEmail: defaultAuthorEmail,
	}
	for _, opt := range opts {
		if err := opt(wc); err != nil {
			return nil, err
		}
	}

	dir, err := os.MkdirTemp("", cloneDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	wc.path = dir

	log := clog.FromContext(ctx).With("remote", url)
	log.Infof("Cloning repository into %s", dir)

	auth, err := wc.auth()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("getting token: %w", err)
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:        url,
		RemoteName: remoteName,
		Auth:       auth,
	})
	switch {
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		log.Infof("Remote is empty, initialising %s locally", wc.baseBranch)
		repo, err = initEmpty(dir, url, wc.baseBranch)
		if err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	case err != nil:
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning repository: %w", classify(err))
	}
	wc.repo = repo
	return wc, nil
}

func initEmpty(dir, url, baseBranch string) (*git.Repository, error) {
	// A failed clone may leave partial metadata behind.
	if err := os.RemoveAll(filepath.Join(dir, git.GitDirName)); err != nil {
		return nil, fmt.Errorf("cleaning clone dir: %w", err)
	}
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(baseBranch)},
	})
	if err != nil {
		return nil, fmt.Errorf("initialising repository: %w", err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: remoteName, URLs: []string{url}}); err != nil {
		return nil, fmt.Errorf("configuring remote: %w", err)
	}
	return repo, nil
}

// Path is the root of the working tree.
func (wc *WorkingCopy) Path() string {
	return wc.path
}

// Close removes the working tree from disk.
func (wc *WorkingCopy) Close() error {
	if wc.path == "" {
		return nil
	}
	err := os.RemoveAll(wc.path)
	wc.path = ""
	return err
}

// CurrentBranch returns the checked out branch, which may not have any
// commits yet.
func (wc *WorkingCopy) CurrentBranch() (string, error) {
	head, err := wc.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	if head.Type() == plumbing.SymbolicReference {
		return head.Target().Short(), nil
	}
	return "", errors.New("HEAD is detached")
}

// HasBranch reports whether origin has a branch called name, as of the last
// clone or push.
func (wc *WorkingCopy) HasBranch(name string) (bool, error) {
	_, err := wc.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, name), true)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("looking up branch %s: %w", name, err)
	}
	return true, nil
}

// CreateBranch creates name at the tip of src, checks it out, pushes it to
// origin and records origin as its upstream. src may be a local branch or a
// branch known only on origin.
func (wc *WorkingCopy) CreateBranch(ctx context.Context, name, src string) error {
	if name == "" {
		return errors.New("branch name cannot be empty")
	}
	hash, err := wc.resolveBranch(src)
	if err != nil {
		return err
	}

	ref := plumbing.NewBranchReferenceName(name)
	if err := wc.repo.Storer.SetReference(plumbing.NewHashReference(ref, hash)); err != nil {
		return fmt.Errorf("setting branch reference: %w", err)
	}
	if err := wc.checkout(ref); err != nil {
		return err
	}
	clog.FromContext(ctx).Infof("Created branch %s from %s at %s", name, src, hash)
	return wc.Push(ctx)
}

// Checkout switches to branch name, creating a local branch from origin when
// only the remote one exists.
func (wc *WorkingCopy) Checkout(name string) error {
	ref := plumbing.NewBranchReferenceName(name)
	if _, err := wc.repo.Reference(ref, true); err != nil {
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("looking up branch %s: %w", name, err)
		}
		remote, err := wc.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, name), true)
		if err != nil {
			return fmt.Errorf("branch %s does not exist: %w", name, err)
		}
		if err := wc.repo.Storer.SetReference(plumbing.NewHashReference(ref, remote.Hash())); err != nil {
			return fmt.Errorf("setting branch reference: %w", err)
		}
		if err := wc.track(name); err != nil {
			return err
		}
	}
	return wc.checkout(ref)
}

func (wc *WorkingCopy) checkout(ref plumbing.ReferenceName) error {
	wt, err := wc.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref}); err != nil {
		return fmt.Errorf("checking out %s: %w", ref.Short(), err)
	}
	return nil
}

func (wc *WorkingCopy) resolveBranch(name string) (plumbing.Hash, error) {
	for _, ref := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(name),
		plumbing.NewRemoteReferenceName(remoteName, name),
	} {
		r, err := wc.repo.Reference(ref, true)
		if err == nil {
			return r.Hash(), nil
		}
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, fmt.Errorf("resolving %s: %w", ref, err)
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("branch %s has no commits", name)
}

// Commit stages every change in the working tree and commits it. It returns
// false without committing when there is nothing to commit.
func (wc *WorkingCopy) Commit(message string) (bool, error) {
	if message == "" {
		return false, errors.New("commit message cannot be empty")
	}
	wt, err := wc.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return false, fmt.Errorf("staging changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("getting worktree status: %w", err)
	}
	if status.IsClean() {
		return false, nil
	}
	if _, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  wc.authorName,
			Email: wc.authorEmail,
			When:  time.Now(),
		},
	}); err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	return true, nil
}

// Push sends the current branch to the same name on origin. A rejected push
// wraps gitservice.ErrConflict and is not retried.
func (wc *WorkingCopy) Push(ctx context.Context) error {
	log := clog.FromContext(ctx)

	branch, err := wc.CurrentBranch()
	if err != nil {
		return err
	}
	head, err := wc.repo.Head()
	if err != nil {
		return fmt.Errorf("branch %s has no commits: %w", branch, err)
	}

	auth, err := wc.auth()
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	ref := head.Name()
	refSpec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))
	log.Infof("Pushing %s", refSpec)

	err = wc.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		Auth:       auth,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	})
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		log.Infof("Branch %s already up to date", branch)
	case err != nil:
		return fmt.Errorf("pushing %s: %w", branch, classify(err))
	}

	tracking := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(remoteName, branch), head.Hash())
	if err := wc.repo.Storer.SetReference(tracking); err != nil {
		return fmt.Errorf("updating tracking ref: %w", err)
	}
	return wc.track(branch)
}

// track records origin as the upstream of branch.
func (wc *WorkingCopy) track(branch string) error {
	err := wc.repo.CreateBranch(&gitconfig.Branch{
		Name:   branch,
		Remote: remoteName,
		Merge:  plumbing.NewBranchReferenceName(branch),
	})
	if err != nil && !errors.Is(err, git.ErrBranchExists) {
		return fmt.Errorf("configuring upstream for %s: %w", branch, err)
	}
	return nil
}

func (wc *WorkingCopy) auth() (transport.AuthMethod, error) {
	if wc.tokenSource == nil {
		return nil, nil
	}
	if !strings.HasPrefix(wc.url, "https://") && !strings.HasPrefix(wc.url, "http://") {
		return nil, nil
	}
	token, err := wc.tokenSource.Token()
	if err != nil {
		return nil, err
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %w", gitservice.ErrUnauthorized, err)
	case errors.Is(err, git.ErrNonFastForwardUpdate),
		errors.Is(err, git.ErrForceNeeded),
		// go-git reports client-side rejections without a sentinel.
		strings.Contains(err.Error(), "non-fast-forward"):
		return fmt.Errorf("%w: %w", gitservice.ErrConflict, err)
	default:
		return err
	}
}
