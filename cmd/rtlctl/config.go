/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	backendAzDO   = "azdo"
	backendGitHub = "github"
)

type config struct {
	AzDOToken  string `env:"AZDO_TOKEN"`
	AzDOOrgURL string `env:"AZDO_ORG_URL,default=https://jet2tfs.visualstudio.com"`

	GitHubToken          string `env:"GITHUB_TOKEN"`
	GitHubAppID          int64  `env:"GITHUB_APP_ID"`
	GitHubInstallationID int64  `env:"GITHUB_INSTALLATION_ID"`
	GitHubAppKeyPath     string `env:"GITHUB_APP_PRIVATE_KEY_PATH"`
	GitHubAPIURL         string `env:"GITHUB_API_URL"`

	CommitSHA string `env:"COMMIT_SHA"`

	Backend     string        `env:"RTL_BACKEND,default=azdo"`
	HTTPTimeout time.Duration `env:"RTL_HTTP_TIMEOUT,default=30s"`

	GitAuthorName  string `env:"RTL_GIT_AUTHOR_NAME"`
	GitAuthorEmail string `env:"RTL_GIT_AUTHOR_EMAIL"`
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (*config, error) {
	var cfg config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	return &cfg, nil
}

// applyFlags lets command line flags override the environment.
func (cfg *config) applyFlags(g *Globals) {
	if g.Backend != "" {
		cfg.Backend = g.Backend
	}
	if g.OrgURL != "" {
		cfg.AzDOOrgURL = g.OrgURL
	}
	if g.Token == "" {
		return
	}
	switch cfg.Backend {
	case backendGitHub:
		cfg.GitHubToken = g.Token
	default:
		cfg.AzDOToken = g.Token
	}
}
