/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workingcopy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// resolve maps a slash-separated path inside the working tree to an absolute
// path, rejecting paths that escape the tree.
func (wc *WorkingCopy) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}
	full := filepath.Join(wc.path, filepath.Clean(filepath.FromSlash(path)))
	rel, err := filepath.Rel(wc.path, full)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes working tree", path)
	}
	return full, nil
}

func (wc *WorkingCopy) stat(path string) (fs.FileInfo, error) {
	full, err := wc.resolve(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return fi, err
}

// HasFile reports whether path is a regular file in the working tree.
func (wc *WorkingCopy) HasFile(path string) (bool, error) {
	fi, err := wc.stat(path)
	if err != nil || fi == nil {
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

// HasFolder reports whether path is a directory in the working tree.
func (wc *WorkingCopy) HasFolder(path string) (bool, error) {
	fi, err := wc.stat(path)
	if err != nil || fi == nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// AddFolder creates path and any missing parents.
func (wc *WorkingCopy) AddFolder(path string) error {
	full, err := wc.resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

// ReadFile returns the contents of path.
func (wc *WorkingCopy) ReadFile(path string) (string, error) {
	full, err := wc.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile replaces the contents of path, creating parent directories, and
// stages the result.
func (wc *WorkingCopy) WriteFile(path, content string) error {
	full, err := wc.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return err
	}
	wt, err := wc.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	rel, err := filepath.Rel(wc.path, full)
	if err != nil {
		return err
	}
	if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	return nil
}

// AddFile writes a new file. It behaves exactly like WriteFile.
func (wc *WorkingCopy) AddFile(path, content string) error {
	return wc.WriteFile(path, content)
}
