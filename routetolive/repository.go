/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package routetolive

import (
	"chainguard.dev/routetolive/gitservice"
	"chainguard.dev/routetolive/reconcilers/scaffold"
	"chainguard.dev/routetolive/workingcopy"
)

// ManagedRepository is a remote repository bound to a scaffolded local
// working copy that it owns exclusively until Close.
type ManagedRepository struct {
	*gitservice.Repository
	*workingcopy.WorkingCopy

	// Scaffold reports what binding changed.
	Scaffold *scaffold.Result
}

// Close removes the working copy.
func (m *ManagedRepository) Close() error {
	if m == nil || m.WorkingCopy == nil {
		return nil
	}
	return m.WorkingCopy.Close()
}
