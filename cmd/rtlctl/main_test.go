/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chainguard.dev/routetolive/gitservice"
	"chainguard.dev/routetolive/gitservice/fakeservice"
	"chainguard.dev/routetolive/internal/gittest"
	"chainguard.dev/routetolive/reconcilers/description"
	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	project = "RunwayTest"
	repo    = "WorldDomination"
)

// useService points newService at svc and records the configuration each
// command resolved.
func useService(t *testing.T, svc gitservice.Service) *[]*config {
	t.Helper()
	var seen []*config
	orig := newService
	newService = func(_ context.Context, cfg *config) (gitservice.Service, oauth2.TokenSource, error) {
		seen = append(seen, cfg)
		return svc, nil, nil
	}
	t.Cleanup(func() { newService = orig })
	return &seen
}

type result struct {
	code   int
	stdout string
	stderr string
}

func rtlctl(t *testing.T, env map[string]string, args ...string) result {
	t.Helper()
	if env == nil {
		env = map[string]string{"AZDO_TOKEN": "pat"}
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, envconfig.MapLookuper(env))
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestCreatePullRequest(t *testing.T) {
	svc := fakeservice.New()
	r := svc.AddRepository(project, repo, "")
	useService(t, svc)

	res := rtlctl(t, nil, "create-pr", project, repo, "feature/Utopia")
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, `"RouteToLive: feature/Utopia": feature/Utopia -> develop`)

	prs, err := svc.ListPullRequests(context.Background(), r, gitservice.PullRequestQuery{})
	require.NoError(t, err)
	require.Len(t, prs, 1)
	require.Equal(t, "refs/heads/feature/Utopia", prs[0].SourceRefName)
	require.Equal(t, "refs/heads/develop", prs[0].TargetRefName)
	require.True(t, prs[0].IsDraft)

	res = rtlctl(t, nil, "create-pr", project, repo, "feature/Utopia", "--destination", "main")
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, 1, svc.Calls(fakeservice.CallCreatePullRequest))
}

func TestCreateThread(t *testing.T) {
	svc := fakeservice.New()
	r := svc.AddRepository(project, repo, "")
	pr := svc.AddPullRequest(r, gitservice.PullRequest{
		SourceRefName: "refs/heads/feature/Utopia",
		TargetRefName: "refs/heads/develop",
	})
	useService(t, svc)

	for range 2 {
		res := rtlctl(t, nil, "create-thread", project, repo, "feature/Utopia", "1.0.0")
		require.Equal(t, 0, res.code, res.stderr)
		require.Contains(t, res.stdout, "for 1.0.0 on feature/Utopia")
	}

	res := rtlctl(t, map[string]string{"AZDO_TOKEN": "pat", "COMMIT_SHA": "4f2a9c1"},
		"create-thread", project, repo, "feature/Utopia")
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "for 4f2a9c1")

	threads, err := svc.ListThreads(context.Background(), r, pr.ID)
	require.NoError(t, err)
	var got []string
	for _, th := range threads {
		c, _ := th.FirstComment()
		got = append(got, c.Content)
	}
	if diff := cmp.Diff([]string{"1.0.0", "4f2a9c1"}, got); diff != "" {
		t.Errorf("threads (-want +got):\n%s", diff)
	}
}

func TestCreateThreadWithoutPullRequest(t *testing.T) {
	svc := fakeservice.New()
	svc.AddRepository(project, repo, "")
	useService(t, svc)

	res := rtlctl(t, nil, "create-thread", project, repo, "feature/none", "1.0.0")
	require.Equal(t, 1, res.code)
	require.Equal(t, "No Pull Request Found.\n", res.stderr)
	require.Equal(t, 0, svc.Calls(fakeservice.CallCreateThread))

	res = rtlctl(t, nil, "create-thread", project, repo, "feature/none")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "COMMIT_SHA")
}

func TestGates(t *testing.T) {
	svc := fakeservice.New()
	r := svc.AddRepository(project, repo, "")
	pr := svc.AddPullRequest(r, gitservice.PullRequest{
		SourceRefName: "refs/heads/feature/Utopia",
		TargetRefName: "refs/heads/develop",
		Description:   description.Render(nil),
	})
	useService(t, svc)

	res := rtlctl(t, nil, "set-gate", project, repo, "feature/Utopia", "--gate", "build=Pass", "--gate", "Security Scan=fail")
	require.Equal(t, 0, res.code, res.stderr)

	got, err := svc.GetPullRequest(context.Background(), r, pr.ID)
	require.NoError(t, err)
	s := description.Parse(got.Description)
	require.Equal(t, description.Pass, s.Get(description.Build))
	require.Equal(t, description.Fail, s.Get(description.Scan))
	require.Equal(t, description.Pending, s.Get(description.Artifact))

	res = rtlctl(t, nil, "show-pr", project, repo, "feature/Utopia")
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "feature/Utopia -> develop")
	for _, g := range description.Gates() {
		require.Contains(t, res.stdout, g.Label())
	}
	require.Contains(t, res.stdout, "1/17 gates passed")

	res = rtlctl(t, nil, "set-gate", project, repo, "feature/Utopia", "--gate", "bogus=Pass")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "unknown gate")

	res = rtlctl(t, nil, "show-pr", project, repo, "feature/none")
	require.Equal(t, 1, res.code)
	require.Equal(t, "No Pull Request Found.\n", res.stderr)
}

func TestParseGates(t *testing.T) {
	tests := []struct {
		name    string
		specs   []string
		want    description.Statuses
		wantErr bool
	}{{
		name:  "names and labels",
		specs: []string{"build=Pass", "Unit Tests=fail", "review = pending"},
		want: description.Statuses{
			description.Build:    description.Pass,
			description.UnitTest: description.Fail,
			description.Review:   description.Pending,
		},
	}, {
		name:    "missing status",
		specs:   []string{"build"},
		wantErr: true,
	}, {
		name:    "unknown status",
		specs:   []string{"build=Maybe"},
		wantErr: true,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGates(tt.specs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseGates (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScaffold(t *testing.T) {
	svc := fakeservice.New()
	var origin string
	svc.CloneURL = func(_, _ string) string {
		origin = gittest.NewOrigin(t, nil)
		return origin
	}
	useService(t, svc)

	res := rtlctl(t, nil, "scaffold", project, repo)
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "repository not found")

	res = rtlctl(t, nil, "scaffold", project, repo, "--create")
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "Scaffolded RunwayTest/WorldDomination")
	require.Equal(t, []string{"develop", "master"}, gittest.Branches(t, origin))

	res = rtlctl(t, nil, "scaffold", project, repo)
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "already scaffolded")
	require.Equal(t, 1, svc.Calls(fakeservice.CallCreateRepository))
}

func TestConfiguration(t *testing.T) {
	svc := fakeservice.New()
	svc.AddRepository(project, repo, "")
	seen := useService(t, svc)

	res := rtlctl(t, map[string]string{"AZDO_TOKEN": "from-env"}, "create-pr", project, repo, "feature/a")
	require.Equal(t, 0, res.code, res.stderr)
	res = rtlctl(t, map[string]string{"AZDO_TOKEN": "from-env"},
		"--token", "from-flag", "--org-url", "https://dev.azure.com/runway", "create-pr", project, repo, "feature/a")
	require.Equal(t, 0, res.code, res.stderr)
	res = rtlctl(t, map[string]string{"RTL_BACKEND": "github", "GITHUB_TOKEN": "ghp"}, "create-pr", project, repo, "feature/a")
	require.Equal(t, 0, res.code, res.stderr)

	require.Len(t, *seen, 3)
	env, flags, gh := (*seen)[0], (*seen)[1], (*seen)[2]
	require.Equal(t, "from-env", env.AzDOToken)
	require.Equal(t, "https://jet2tfs.visualstudio.com", env.AzDOOrgURL)
	require.Equal(t, backendAzDO, env.Backend)
	require.Equal(t, "from-flag", flags.AzDOToken)
	require.Equal(t, "https://dev.azure.com/runway", flags.AzDOOrgURL)
	require.Equal(t, backendGitHub, gh.Backend)
	require.Equal(t, "ghp", gh.GitHubToken)
}

func TestMissingToken(t *testing.T) {
	for _, backend := range []string{backendAzDO, backendGitHub} {
		t.Run(backend, func(t *testing.T) {
			res := rtlctl(t, map[string]string{}, "--backend", backend, "create-pr", project, repo, "feature/a")
			require.Equal(t, 1, res.code)
			require.Contains(t, res.stderr, "no credentials")
		})
	}

	res := rtlctl(t, map[string]string{}, "--backend", "gitlab", "create-pr", project, repo, "feature/a")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, `unknown backend "gitlab"`)
}

func TestVersionAndUsage(t *testing.T) {
	res := rtlctl(t, map[string]string{}, "version")
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, "rtlctl devel\n", res.stdout)

	res = rtlctl(t, nil, "create-pr", project)
	require.Equal(t, 1, res.code)
	require.True(t, strings.HasPrefix(res.stderr, "Error: "), res.stderr)
}

func TestDebugLogging(t *testing.T) {
	svc := fakeservice.New()
	svc.AddRepository(project, repo, "")
	useService(t, svc)

	res := rtlctl(t, nil, "--debug", "--log-format", "json", "create-pr", project, repo, "feature/Utopia")
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stderr, `"level":"INFO"`)

	res = rtlctl(t, nil, "create-pr", project, repo, "feature/Utopia")
	require.Equal(t, 0, res.code, res.stderr)
	require.Empty(t, res.stderr)
}

func TestLogFile(t *testing.T) {
	svc := fakeservice.New()
	svc.AddRepository(project, repo, "")
	useService(t, svc)
	logFile := filepath.Join(t.TempDir(), "rtlctl.log")

	res := rtlctl(t, nil, "--log-file", logFile, "create-pr", project, repo, "feature/Utopia")
	require.Equal(t, 0, res.code, res.stderr)
	require.Empty(t, res.stderr, "stderr stays at WARN")
	first, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(first), "Opening pull request into develop")

	res = rtlctl(t, nil, "--log-file", logFile, "create-pr", project, repo, "feature/Utopia")
	require.Equal(t, 0, res.code, res.stderr)
	second, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(second), "already open")
	require.NotContains(t, string(second), "Opening pull request")

	previous, err := os.ReadFile(logFile + ".1")
	require.NoError(t, err)
	require.Equal(t, string(first), string(previous))
}
