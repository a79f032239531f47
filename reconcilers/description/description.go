/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package description renders the Route to Live pull request description: a
// release notes heading followed by a fixed-order checklist of release gates,
// each carrying a Pending, Pass or Fail status.
//
// Render is pure and byte-stable so a description can be re-rendered with
// updated gate values and compared with what is on the pull request. Parse
// recovers the gate statuses from a rendered description.
package description

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the state of a single release gate.
type Status string

const (
	Pending Status = "Pending"
	Pass    Status = "Pass"
	Fail    Status = "Fail"
)

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{Pending, Pass, Fail} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown gate status %q (want Pending, Pass or Fail)", s)
}

// Gate is one named checkpoint in the release checklist.
type Gate int

const (
	Artifact Gate = iota
	Notes
	Build
	CodeQuality
	UnitTest
	UnitCoverage
	Scan
	Publish
	Review
	ProductOwner
	DBAReview
	TeamReady
	IntegrationTest
	OpsReady
	TestSignoff
	ReleaseReady
	RegressionTest
)

var gates = []struct {
	name  string
	label string
}{
	Artifact:        {"artifact", "Artifact is valid"},
	Notes:           {"notes", "Release notes updated"},
	Build:           {"build", "Artifact is built"},
	CodeQuality:     {"code_quality", "Code Quality"},
	UnitTest:        {"unit_test", "Unit Tests"},
	UnitCoverage:    {"unit_coverage", "Unit Test Coverage"},
	Scan:            {"scan", "Security Scan"},
	Publish:         {"publish", "Artifact is published"},
	Review:          {"review", "Developer Code Review"},
	ProductOwner:    {"product_owner", "PO Signoff"},
	DBAReview:       {"dba_review", "DBA Code Review"},
	TeamReady:       {"team_ready", "Ready for Release"},
	IntegrationTest: {"integration_test", "Integration Test"},
	OpsReady:        {"ops_ready", "Operational Acceptance"},
	TestSignoff:     {"test_signoff", "Test Lead Review"},
	ReleaseReady:    {"release_ready", "Handover to Operations Completed"},
	RegressionTest:  {"regression_test", "Regression Test"},
}

// Gates returns every gate in checklist order.
func Gates() []Gate {
	out := make([]Gate, len(gates))
	for i := range gates {
		out[i] = Gate(i)
	}
	return out
}

func (g Gate) valid() bool {
	return g >= 0 && int(g) < len(gates)
}

// Name is the snake_case identifier used on the command line.
func (g Gate) Name() string {
	if !g.valid() {
		return fmt.Sprintf("gate(%d)", int(g))
	}
	return gates[g].name
}

// Label is the text shown after the status in the checklist.
func (g Gate) Label() string {
	if !g.valid() {
		return ""
	}
	return gates[g].label
}

func (g Gate) String() string {
	return g.Name()
}

// ParseGate resolves a gate from its name or its label, ignoring case.
func ParseGate(s string) (Gate, error) {
	s = strings.TrimSpace(s)
	for i, g := range gates {
		if strings.EqualFold(s, g.name) || strings.EqualFold(s, g.label) {
			return Gate(i), nil
		}
	}
	return 0, fmt.Errorf("unknown gate %q", s)
}

// Statuses maps gates to their status. Missing gates are Pending.
type Statuses map[Gate]Status

// Get returns the status of g, defaulting to Pending.
func (s Statuses) Get(g Gate) Status {
	if st, ok := s[g]; ok && st != "" {
		return st
	}
	return Pending
}

// Merge returns a copy of s with updates applied on top.
func (s Statuses) Merge(updates Statuses) Statuses {
	out := make(Statuses, len(gates))
	for _, g := range Gates() {
		out[g] = s.Get(g)
	}
	for g, st := range updates {
		if g.valid() && st != "" {
			out[g] = st
		}
	}
	return out
}

const header = "## Release Notes\n## Status\n\n"

// Render produces the pull request description for the given gate statuses.
func Render(s Statuses) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, g := range Gates() {
		sb.WriteString(string(s.Get(g)))
		sb.WriteByte(' ')
		sb.WriteString(g.Label())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Update rewrites the checklist lines of desc that belong to gates in
// updates and leaves every other line as it is. Gates in updates without a
// line of their own are inserted after the last checklist line in gate
// order. A description with no checklist lines at all is rendered from
// scratch.
func Update(desc string, updates Statuses) string {
	byLabel := labels()
	lines := strings.Split(desc, "\n")
	seen := make(map[Gate]bool, len(gates))
	last := -1
	for i, line := range lines {
		g, _, ok := checklistLine(line, byLabel)
		if !ok {
			continue
		}
		seen[g] = true
		last = i
		st, ok := updates[g]
		if !ok || st == "" {
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		indent := line[:len(line)-len(trimmed)]
		eol := ""
		if strings.HasSuffix(line, "\r") {
			eol = "\r"
		}
		lines[i] = indent + string(st) + " " + g.Label() + eol
	}
	if last < 0 {
		return Render(Statuses{}.Merge(updates))
	}

	var missing []string
	for _, g := range Gates() {
		if st, ok := updates[g]; ok && st != "" && !seen[g] {
			missing = append(missing, string(st)+" "+g.Label())
		}
	}
	if len(missing) > 0 {
		lines = slices.Insert(lines, last+1, missing...)
	}
	return strings.Join(lines, "\n")
}

func labels() map[string]Gate {
	byLabel := make(map[string]Gate, len(gates))
	for _, g := range Gates() {
		byLabel[g.Label()] = g
	}
	return byLabel
}

// checklistLine splits a "<status> <label>" line into its gate and status.
func checklistLine(line string, byLabel map[string]Gate) (Gate, Status, bool) {
	status, label, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return 0, "", false
	}
	st, err := ParseStatus(status)
	if err != nil {
		return 0, "", false
	}
	g, ok := byLabel[label]
	return g, st, ok
}

// Parse reads gate statuses back out of a description. Lines that do not
// match a checklist entry are ignored, so a description edited by hand still
// parses. Every gate is present in the result; gates without a line are
// Pending.
func Parse(desc string) Statuses {
	out := make(Statuses, len(gates))
	for _, g := range Gates() {
		out[g] = Pending
	}

	byLabel := labels()
	for line := range strings.SplitSeq(desc, "\n") {
		if g, st, ok := checklistLine(line, byLabel); ok {
			out[g] = st
		}
	}
	return out
}
