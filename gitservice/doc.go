/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitservice describes the hosted Git service that Route to Live
// reconciles against. The service is split into capability interfaces so that
// each reconciler depends only on the calls it makes:
//   - Repositories looks up and creates repositories.
//   - PullRequests searches, reads, creates and updates pull requests.
//   - Threads lists and creates comment threads on a pull request.
//
// Implementations live in subpackages: azdo (Azure DevOps), githubservice
// (GitHub) and fakeservice (in-memory, for tests).
//
// Lookups that find nothing return a nil value and a nil error. Every other
// failure is returned as an error, wrapped with ErrUnauthorized, ErrConflict
// or ErrNotFound when the cause is known.
package gitservice
