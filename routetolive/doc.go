/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package routetolive is the library entry point for the Route to Live
// workflow.
//
// A Client binds repositories of a hosted Git service, scaffolding them on
// the way, and keeps one draft pull request per feature branch with one
// status thread per build token:
//
//	client, err := routetolive.New(svc, routetolive.WithTokenSource(ts))
//	if err != nil {
//		return err
//	}
//	repo, err := client.LoadRepository(ctx, "RunwayTest", "WorldDomination")
//	if err != nil {
//		return err
//	}
//	defer repo.Close()
//
//	if _, err := client.CreatePullRequest(ctx, "RunwayTest", "WorldDomination", "feature/Utopia", ""); err != nil {
//		return err
//	}
//	if _, err := client.CreateThread(ctx, "RunwayTest", "WorldDomination", "feature/Utopia", "1.0.0"); err != nil {
//		return err
//	}
//
// Every step looks before it writes, so rerunning a partially completed
// sequence finishes it without duplicating anything.
package routetolive
