/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"chainguard.dev/routetolive/gitservice"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v84/github"
	"github.com/stretchr/testify/require"
)

type server struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]any
}

func newServer(t *testing.T, mux *http.ServeMux) (*server, *Service) {
	t.Helper()
	s := &server{bodies: map[string]map[string]any{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		key := r.Method + " " + r.URL.Path
		s.requests = append(s.requests, key+"?"+r.URL.RawQuery)
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				var body map[string]any
				if err := json.Unmarshal(data, &body); err == nil {
					s.bodies[key] = body
				}
			}
		}
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(s.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return s, NewWithClient(client, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var repo = &gitservice.Repository{ID: "1", Project: "RunwayTest", Name: "WorldDomination"}

func TestGetRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/RunwayTest/WorldDomination", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":             1296269,
			"name":           "WorldDomination",
			"owner":          map[string]any{"login": "RunwayTest"},
			"clone_url":      "https://github.com/RunwayTest/WorldDomination.git",
			"html_url":       "https://github.com/RunwayTest/WorldDomination",
			"default_branch": "main",
		})
	})
	mux.HandleFunc("GET /repos/RunwayTest/Missing", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	mux.HandleFunc("GET /repos/RunwayTest/Secret", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
	})
	_, svc := newServer(t, mux)
	ctx := context.Background()

	got, err := svc.GetRepository(ctx, "RunwayTest", "WorldDomination")
	require.NoError(t, err)
	want := &gitservice.Repository{
		ID:            "1296269",
		Project:       "RunwayTest",
		Name:          "WorldDomination",
		CloneURL:      "https://github.com/RunwayTest/WorldDomination.git",
		WebURL:        "https://github.com/RunwayTest/WorldDomination",
		DefaultBranch: "main",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetRepository (-want +got):\n%s", diff)
	}

	missing, err := svc.GetRepository(ctx, "RunwayTest", "Missing")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = svc.GetRepository(ctx, "RunwayTest", "Secret")
	require.ErrorIs(t, err, gitservice.ErrUnauthorized)
}

func TestCreateRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"login": "octocat"})
	})
	repoHandler := func(owner string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusCreated, map[string]any{
				"id":    7,
				"name":  "WorldDomination",
				"owner": map[string]any{"login": owner},
			})
		}
	}
	mux.HandleFunc("POST /orgs/RunwayTest/repos", repoHandler("RunwayTest"))
	mux.HandleFunc("POST /user/repos", repoHandler("octocat"))
	srv, svc := newServer(t, mux)
	ctx := context.Background()

	got, err := svc.CreateRepository(ctx, "RunwayTest", "WorldDomination")
	require.NoError(t, err)
	require.Equal(t, "RunwayTest", got.Project)
	require.Equal(t, true, srv.bodies["POST /orgs/RunwayTest/repos"]["auto_init"])

	got, err = svc.CreateRepository(ctx, "octocat", "WorldDomination")
	require.NoError(t, err)
	require.Equal(t, "octocat", got.Project)
}

func TestPullRequests(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	pr := map[string]any{
		"number":     12,
		"title":      "RouteToLive: feature/Utopia",
		"body":       "## Release Notes",
		"state":      "open",
		"draft":      true,
		"head":       map[string]any{"ref": "feature/Utopia"},
		"base":       map[string]any{"ref": "develop"},
		"created_at": created.Format(time.RFC3339),
		"html_url":   "https://github.com/RunwayTest/WorldDomination/pull/12",
	}
	merged := map[string]any{
		"number":    11,
		"state":     "closed",
		"merged_at": created.Format(time.RFC3339),
		"head":      map[string]any{"ref": "feature/Utopia"},
		"base":      map[string]any{"ref": "develop"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/RunwayTest/WorldDomination/pulls", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") == "open" {
			writeJSON(w, http.StatusOK, []any{pr})
			return
		}
		writeJSON(w, http.StatusOK, []any{pr, merged})
	})
	mux.HandleFunc("GET /repos/RunwayTest/WorldDomination/pulls/12", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, pr)
	})
	mux.HandleFunc("GET /repos/RunwayTest/WorldDomination/pulls/99", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	mux.HandleFunc("POST /repos/RunwayTest/WorldDomination/pulls", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, pr)
	})
	mux.HandleFunc("PATCH /repos/RunwayTest/WorldDomination/pulls/12", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, pr)
	})
	srv, svc := newServer(t, mux)
	ctx := context.Background()

	prs, err := svc.ListPullRequests(ctx, repo, gitservice.PullRequestQuery{
		SourceRefName: "refs/heads/feature/Utopia",
		Status:        gitservice.PullRequestActive,
	})
	require.NoError(t, err)
	require.Len(t, prs, 1)
	want := &gitservice.PullRequest{
		ID:            12,
		Title:         "RouteToLive: feature/Utopia",
		Description:   "## Release Notes",
		SourceRefName: "refs/heads/feature/Utopia",
		TargetRefName: "refs/heads/develop",
		IsDraft:       true,
		Status:        gitservice.PullRequestActive,
		CreatedAt:     created,
		URL:           "https://github.com/RunwayTest/WorldDomination/pull/12",
	}
	if diff := cmp.Diff(want, prs[0]); diff != "" {
		t.Errorf("ListPullRequests (-want +got):\n%s", diff)
	}
	require.Contains(t, srv.requests, "GET /repos/RunwayTest/WorldDomination/pulls?head=RunwayTest%3Afeature%2FUtopia&per_page=100&state=open")

	completed, err := svc.ListPullRequests(ctx, repo, gitservice.PullRequestQuery{Status: gitservice.PullRequestCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, 11, completed[0].ID)

	got, err := svc.GetPullRequest(ctx, repo, 12)
	require.NoError(t, err)
	require.Equal(t, 12, got.ID)

	none, err := svc.GetPullRequest(ctx, repo, 99)
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = svc.CreatePullRequest(ctx, repo, &gitservice.NewPullRequest{
		Title:         "RouteToLive: feature/Utopia",
		Description:   "body",
		SourceRefName: "refs/heads/feature/Utopia",
		TargetRefName: "refs/heads/develop",
		IsDraft:       true,
	})
	require.NoError(t, err)
	body := srv.bodies["POST /repos/RunwayTest/WorldDomination/pulls"]
	require.Equal(t, "feature/Utopia", body["head"])
	require.Equal(t, "develop", body["base"])
	require.Equal(t, true, body["draft"])

	desc := "new body"
	_, err = svc.UpdatePullRequest(ctx, repo, 12, &gitservice.PullRequestUpdate{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "new body", srv.bodies["PATCH /repos/RunwayTest/WorldDomination/pulls/12"]["body"])
}

func TestCreatePullRequestConflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/RunwayTest/WorldDomination/pulls", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "A pull request already exists"})
	})
	_, svc := newServer(t, mux)

	_, err := svc.CreatePullRequest(context.Background(), repo, &gitservice.NewPullRequest{SourceRefName: "refs/heads/a"})
	require.ErrorIs(t, err, gitservice.ErrConflict)
}

func TestThreads(t *testing.T) {
	var srv *server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/RunwayTest/WorldDomination/issues/12/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/RunwayTest/WorldDomination/issues/12/comments?page=2>; rel="next"`, srv.URL))
			writeJSON(w, http.StatusOK, []any{map[string]any{"id": 1, "body": "1.0.0"}})
			return
		}
		writeJSON(w, http.StatusOK, []any{map[string]any{"id": 2, "body": "abc123"}})
	})
	mux.HandleFunc("POST /repos/RunwayTest/WorldDomination/issues/12/comments", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": 3, "body": "2.0.0"})
	})
	srv, svc := newServer(t, mux)
	ctx := context.Background()

	threads, err := svc.ListThreads(ctx, repo, 12)
	require.NoError(t, err)
	want := []*gitservice.Thread{
		{ID: 1, Comments: []gitservice.Comment{{ID: 1, Content: "1.0.0"}}},
		{ID: 2, Comments: []gitservice.Comment{{ID: 2, Content: "abc123"}}},
	}
	if diff := cmp.Diff(want, threads); diff != "" {
		t.Errorf("ListThreads (-want +got):\n%s", diff)
	}

	th, err := svc.CreateThread(ctx, repo, 12, "2.0.0")
	require.NoError(t, err)
	require.Equal(t, int64(3), th.ID)
	require.Equal(t, "2.0.0", srv.bodies["POST /repos/RunwayTest/WorldDomination/issues/12/comments"]["body"])
}

func TestNewCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx)
	require.ErrorIs(t, err, gitservice.ErrUnauthorized)

	_, err = New(ctx, WithToken("t"), WithAppInstallation(1, 2, "key.pem"))
	require.Error(t, err)

	_, err = New(ctx, WithAppInstallation(1, 2, "/does/not/exist.pem"))
	require.Error(t, err)

	svc, err := New(ctx, WithToken("secret"), WithBaseURL("https://github.example.com/api/v3"))
	require.NoError(t, err)
	require.Equal(t, "https://github.example.com/api/v3/", svc.client.BaseURL.String())
	tok, err := svc.TokenSource().Token()
	require.NoError(t, err)
	require.Equal(t, "secret", tok.AccessToken)
}
