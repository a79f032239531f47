/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/routetolive/gitservice"
	"chainguard.dev/routetolive/gitservice/azdo"
	"chainguard.dev/routetolive/gitservice/githubservice"
	"golang.org/x/oauth2"
)

var errNoToken = errors.New("no credentials: pass --token or set AZDO_TOKEN (GITHUB_TOKEN for the github backend)")

// newService connects to the configured backend. Tests replace it.
var newService = func(ctx context.Context, cfg *config) (gitservice.Service, oauth2.TokenSource, error) {
	switch cfg.Backend {
	case backendAzDO:
		if cfg.AzDOToken == "" {
			return nil, nil, errNoToken
		}
		svc, err := azdo.New(ctx, cfg.AzDOOrgURL, cfg.AzDOToken, azdo.WithTimeout(cfg.HTTPTimeout))
		if err != nil {
			return nil, nil, err
		}
		return svc, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AzDOToken}), nil

	case backendGitHub:
		opts := []githubservice.Option{githubservice.WithTimeout(cfg.HTTPTimeout)}
		switch {
		case cfg.GitHubToken != "":
			opts = append(opts, githubservice.WithToken(cfg.GitHubToken))
		case cfg.GitHubAppID != 0:
			opts = append(opts, githubservice.WithAppInstallation(cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubAppKeyPath))
		default:
			return nil, nil, errNoToken
		}
		if cfg.GitHubAPIURL != "" {
			opts = append(opts, githubservice.WithBaseURL(cfg.GitHubAPIURL))
		}
		svc, err := githubservice.New(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		return svc, svc.TokenSource(), nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
