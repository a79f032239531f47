/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workingcopy manages a local clone of a remote repository for the
// duration of a single run.
//
// A WorkingCopy is cloned into its own temporary directory and removed by
// Close. File helpers stage what they write, Commit records everything in
// the tree, and Push sends the checked out branch to origin:
//
//	wc, err := workingcopy.Clone(ctx, repo.CloneURL,
//		workingcopy.WithTokenSource(ts),
//		workingcopy.WithBaseBranch("master"),
//	)
//	if err != nil {
//		return err
//	}
//	defer wc.Close()
//
//	if err := wc.WriteFile("README.md", readme); err != nil {
//		return err
//	}
//	if changed, err := wc.Commit("Update README"); err != nil {
//		return err
//	} else if changed {
//		return wc.Push(ctx)
//	}
//
// Remotes that are http(s) URLs authenticate with the token source; local
// paths and other transports use no credentials.
package workingcopy
