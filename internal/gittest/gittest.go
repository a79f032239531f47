/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gittest creates local bare repositories that stand in for remote
// origins in tests.
package gittest

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// NewOrigin returns the path of a bare repository. When files is not empty
// they are committed to master in a single commit.
func NewOrigin(t testing.TB, files map[string]string) string {
	t.Helper()

	bare := t.TempDir()
	if _, err := git.PlainInit(bare, true); err != nil {
		t.Fatalf("PlainInit bare: %v", err)
	}
	if len(files) == 0 {
		return bare
	}

	seed := t.TempDir()
	repo, err := git.PlainInitWithOptions(seed, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Master},
	})
	if err != nil {
		t.Fatalf("PlainInit seed: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	for name, content := range files {
		full := filepath.Join(seed, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}
	if _, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{bare}}); err != nil {
		t.Fatalf("CreateRemote: %v", err)
	}
	if err := repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{"refs/heads/master:refs/heads/master"},
	}); err != nil {
		t.Fatalf("Push seed: %v", err)
	}
	return bare
}

// Branches lists the branches of the repository at dir in sorted order.
func Branches(t testing.TB, dir string) []string {
	t.Helper()

	repo := open(t, dir)
	iter, err := repo.Branches()
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	var names []string
	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	}); err != nil {
		t.Fatalf("iterating branches: %v", err)
	}
	slices.Sort(names)
	return names
}

// File returns the contents of path at the tip of branch, and whether it
// exists there.
func File(t testing.TB, dir, branch, path string) (string, bool) {
	t.Helper()

	commit := tip(t, open(t, dir), branch)
	f, err := commit.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", false
	} else if err != nil {
		t.Fatalf("File %s: %v", path, err)
	}
	content, err := f.Contents()
	if err != nil {
		t.Fatalf("Contents %s: %v", path, err)
	}
	return content, true
}

// Commits counts the commits reachable from branch.
func Commits(t testing.TB, dir, branch string) int {
	t.Helper()

	repo := open(t, dir)
	iter, err := repo.Log(&git.LogOptions{From: tip(t, repo, branch).Hash})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	n := 0
	if err := iter.ForEach(func(*object.Commit) error {
		n++
		return nil
	}); err != nil {
		t.Fatalf("iterating log: %v", err)
	}
	return n
}

func open(t testing.TB, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen %s: %v", dir, err)
	}
	return repo
}

func tip(t testing.TB, repo *git.Repository, branch string) *object.Commit {
	t.Helper()
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		t.Fatalf("Reference %s: %v", branch, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	return commit
}
