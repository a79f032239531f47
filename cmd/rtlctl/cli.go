/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chainguard.dev/routetolive/reconcilers/description"
	"chainguard.dev/routetolive/reconcilers/pullrequest"
	"chainguard.dev/routetolive/routetolive"
	"github.com/chainguard-dev/clog"
)

// Globals are the flags shared by every command.
type Globals struct {
	Token     string `help:"Personal access token. Defaults to AZDO_TOKEN, or GITHUB_TOKEN with the github backend."`
	Backend   string `help:"Hosted Git service, azdo or github. Defaults to RTL_BACKEND."`
	OrgURL    string `name:"org-url" help:"Azure DevOps organization URL. Defaults to AZDO_ORG_URL."`
	Debug     bool   `help:"Enable debug logging." short:"d"`
	LogFormat string `help:"Log format (${enum})." enum:"text,json" default:"text"`
	LogFile   string `help:"Also write debug logs to this file. The previous run's file is kept with a .1 suffix." type:"path"`
}

// CLI is the rtlctl command line.
type CLI struct {
	Globals `embed:""`

	CreatePR     CreatePRCmd     `cmd:"create-pr" help:"Ensure a draft pull request for a feature branch."`
	CreateThread CreateThreadCmd `cmd:"create-thread" help:"Ensure a status thread for a build on the branch's pull request."`
	ShowPR       ShowPRCmd       `cmd:"show-pr" help:"Show the pull request for a branch and its release gates."`
	SetGate      SetGateCmd      `cmd:"set-gate" help:"Update release gates in the pull request description."`
	Scaffold     ScaffoldCmd     `cmd:"scaffold" help:"Clone a repository and add the Route to Live files."`
	Version      VersionCmd      `cmd:"version" help:"Print the version."`
}

// Env is bound into every command's Run.
type Env struct {
	ctx    context.Context
	cfg    *config
	stdout io.Writer
}

// Client connects to the configured backend.
func (e *Env) Client() (*routetolive.Client, error) {
	svc, ts, err := newService(e.ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	var opts []routetolive.Option
	if ts != nil {
		opts = append(opts, routetolive.WithTokenSource(ts))
	}
	if e.cfg.GitAuthorName != "" || e.cfg.GitAuthorEmail != "" {
		opts = append(opts, routetolive.WithAuthor(e.cfg.GitAuthorName, e.cfg.GitAuthorEmail))
	}
	return routetolive.New(svc, opts...)
}

// Branch names a feature branch of a repository.
type Branch struct {
	Project string `arg:"" help:"Project (Azure DevOps) or owner (GitHub)."`
	Repo    string `arg:"" help:"Repository name."`
	Source  string `arg:"" help:"Source branch of the pull request."`
}

type CreatePRCmd struct {
	Branch `embed:""`

	Destination string `help:"Target branch." default:"${destination}"`
}

func (c *CreatePRCmd) Run(env *Env) error {
	client, err := env.Client()
	if err != nil {
		return err
	}
	pr, err := client.CreatePullRequest(env.ctx, c.Project, c.Repo, c.Source, c.Destination)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Pull request #%d %q: %s -> %s\n", pr.ID, pr.Title, pr.SourceBranch(), pr.TargetBranch())
	if pr.URL != "" {
		fmt.Fprintln(env.stdout, pr.URL)
	}
	return nil
}

type CreateThreadCmd struct {
	Branch `embed:""`

	Artifact string `arg:"" optional:"" help:"Build token for the thread. Defaults to COMMIT_SHA."`
}

func (c *CreateThreadCmd) Run(env *Env) error {
	artifact := c.Artifact
	if artifact == "" {
		artifact = env.cfg.CommitSHA
	}
	if artifact == "" {
		return errors.New("no artifact given and COMMIT_SHA is not set")
	}

	client, err := env.Client()
	if err != nil {
		return err
	}
	th, err := client.CreateThread(env.ctx, c.Project, c.Repo, c.Source, artifact)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Status thread %d for %s on %s\n", th.ID, artifact, c.Source)
	return nil
}

type ShowPRCmd struct {
	Branch `embed:""`
}

func (c *ShowPRCmd) Run(env *Env) error {
	client, err := env.Client()
	if err != nil {
		return err
	}
	pr, err := client.LoadPullRequest(env.ctx, c.Project, c.Repo, c.Source)
	if err != nil {
		return err
	}
	if pr == nil {
		return fmt.Errorf("%w for %s", routetolive.ErrNoPullRequest, c.Source)
	}

	fmt.Fprintf(env.stdout, "Pull request #%d %q\n", pr.ID, pr.Title)
	fmt.Fprintf(env.stdout, "%s -> %s (%s, draft: %t)\n\n", pr.SourceBranch(), pr.TargetBranch(), pr.Status, pr.IsDraft)
	renderGates(env.stdout, description.Parse(pr.Description))
	return nil
}

type SetGateCmd struct {
	Branch `embed:""`

	Gates []string `name:"gate" short:"g" required:"" help:"Gate update as name=Status, for example build=Pass. Repeatable."`
}

func (c *SetGateCmd) Run(env *Env) error {
	updates, err := parseGates(c.Gates)
	if err != nil {
		return err
	}
	client, err := env.Client()
	if err != nil {
		return err
	}
	pr, err := client.SetGates(env.ctx, c.Project, c.Repo, c.Source, updates)
	if err != nil {
		return err
	}
	renderGates(env.stdout, description.Parse(pr.Description))
	return nil
}

func parseGates(specs []string) (description.Statuses, error) {
	updates := make(description.Statuses, len(specs))
	for _, spec := range specs {
		name, status, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("gate %q: want name=Status", spec)
		}
		g, err := description.ParseGate(name)
		if err != nil {
			return nil, err
		}
		st, err := description.ParseStatus(strings.TrimSpace(status))
		if err != nil {
			return nil, err
		}
		updates[g] = st
	}
	return updates, nil
}

type ScaffoldCmd struct {
	Project string `arg:"" help:"Project (Azure DevOps) or owner (GitHub)."`
	Repo    string `arg:"" help:"Repository name."`

	Create bool `help:"Create the repository when it does not exist."`
}

func (c *ScaffoldCmd) Run(env *Env) error {
	client, err := env.Client()
	if err != nil {
		return err
	}
	repo, err := client.LoadRepository(env.ctx, c.Project, c.Repo)
	if errors.Is(err, routetolive.ErrRepositoryNotFound) && c.Create {
		clog.FromContext(env.ctx).Infof("Repository %s/%s not found, creating it", c.Project, c.Repo)
		repo, err = client.CreateRepository(env.ctx, c.Project, c.Repo)
	}
	if err != nil {
		return err
	}
	defer repo.Close()

	if res := repo.Scaffold; res.Committed || res.CreatedBranch {
		fmt.Fprintf(env.stdout, "Scaffolded %s/%s: wrote %s\n", c.Project, c.Repo, strings.Join(res.Written, ", "))
		return nil
	}
	fmt.Fprintf(env.stdout, "%s/%s is already scaffolded\n", c.Project, c.Repo)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	fmt.Fprintf(env.stdout, "rtlctl %s\n", version)
	return nil
}

var vars = map[string]string{
	"destination": pullrequest.DefaultDestination,
}
