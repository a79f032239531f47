/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package description

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRenderDefaults(t *testing.T) {
	got := Render(nil)

	for _, want := range []string{"Pending Artifact is valid", "Pending Regression Test"} {
		if !strings.Contains(got, want) {
			t.Errorf("Render(nil) missing %q:\n%s", want, got)
		}
	}
	if !strings.HasPrefix(got, "## Release Notes\n## Status\n") {
		t.Errorf("Render(nil) missing heading pair:\n%s", got)
	}

	var statusLines []string
	for line := range strings.SplitSeq(got, "\n") {
		if strings.HasPrefix(line, "Pending ") {
			statusLines = append(statusLines, line)
		}
	}
	if len(statusLines) != 17 {
		t.Fatalf("got %d status lines, want 17", len(statusLines))
	}

	want := []string{
		"Pending Artifact is valid",
		"Pending Release notes updated",
		"Pending Artifact is built",
		"Pending Code Quality",
		"Pending Unit Tests",
		"Pending Unit Test Coverage",
		"Pending Security Scan",
		"Pending Artifact is published",
		"Pending Developer Code Review",
		"Pending PO Signoff",
		"Pending DBA Code Review",
		"Pending Ready for Release",
		"Pending Integration Test",
		"Pending Operational Acceptance",
		"Pending Test Lead Review",
		"Pending Handover to Operations Completed",
		"Pending Regression Test",
	}
	if diff := cmp.Diff(want, statusLines); diff != "" {
		t.Errorf("status lines (-want +got):\n%s", diff)
	}
}

func TestRenderStable(t *testing.T) {
	s := Statuses{Build: Pass, Scan: Fail}
	if a, b := Render(s), Render(s); a != b {
		t.Errorf("Render is not stable:\n%s\n---\n%s", a, b)
	}
	if Render(nil) != Render(Statuses{}) {
		t.Error("nil and empty statuses render differently")
	}
	if Render(Statuses{Artifact: Pending}) != Render(nil) {
		t.Error("explicit Pending renders differently from omitted gate")
	}
}

func TestRenderValues(t *testing.T) {
	got := Render(Statuses{Artifact: Pass, RegressionTest: Fail})
	for _, want := range []string{"Pass Artifact is valid", "Fail Regression Test", "Pending Artifact is built"} {
		if !strings.Contains(got, want) {
			t.Errorf("Render missing %q:\n%s", want, got)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	in := Statuses{
		Artifact:     Pass,
		UnitTest:     Fail,
		UnitCoverage: Pass,
		ReleaseReady: Pass,
	}
	got := Parse(Render(in))
	if diff := cmp.Diff(Statuses{}.Merge(in), got); diff != "" {
		t.Errorf("Parse(Render()) (-want +got):\n%s", diff)
	}
}

func TestParseTolerant(t *testing.T) {
	desc := "Some text the author wrote\n\n" + Render(Statuses{Build: Pass}) + "\nPass Not a gate\nbogus Artifact is valid\n"
	got := Parse(desc)
	if got.Get(Build) != Pass {
		t.Errorf("Build = %s, want Pass", got.Get(Build))
	}
	if got.Get(Artifact) != Pending {
		t.Errorf("Artifact = %s, want Pending", got.Get(Artifact))
	}
	if len(got) != len(Gates()) {
		t.Errorf("Parse returned %d gates, want %d", len(got), len(Gates()))
	}
}

func TestParseGate(t *testing.T) {
	tests := []struct {
		in      string
		want    Gate
		wantErr bool
	}{
		{in: "artifact", want: Artifact},
		{in: "REGRESSION_TEST", want: RegressionTest},
		{in: "PO Signoff", want: ProductOwner},
		{in: " dba_review ", want: DBAReview},
		{in: "nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseGate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{"pass": Pass, "FAIL": Fail, "Pending": Pending} {
		got, err := ParseStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStatus("maybe"); err == nil {
		t.Error("ParseStatus(maybe) succeeded")
	}
}

func TestMergeIgnoresInvalid(t *testing.T) {
	got := Statuses{Build: Pass}.Merge(Statuses{Gate(99): Fail, Scan: ""})
	if got.Get(Build) != Pass || got.Get(Scan) != Pending {
		t.Errorf("Merge = %v", got)
	}
	if _, ok := got[Gate(99)]; ok {
		t.Error("Merge kept an invalid gate")
	}
}

func TestUpdate(t *testing.T) {
	notes := "## Release Notes\n- Added utopia endpoint\n\n## Status\n\n"
	base := notes + strings.TrimPrefix(Render(nil), header)

	tests := []struct {
		name    string
		desc    string
		updates Statuses
		want    string
	}{{
		name:    "rewrites only the named gate",
		desc:    base,
		updates: Statuses{Build: Pass},
		want:    strings.Replace(base, "Pending Artifact is built", "Pass Artifact is built", 1),
	}, {
		name:    "keeps indentation and line endings",
		desc:    "notes\r\n  Pending Security Scan\r\n",
		updates: Statuses{Scan: Fail},
		want:    "notes\r\n  Fail Security Scan\r\n",
	}, {
		name:    "inserts missing gates after the checklist",
		desc:    "notes\nPending Artifact is valid\n\nfooter\n",
		updates: Statuses{RegressionTest: Pass, Notes: Fail},
		want:    "notes\nPending Artifact is valid\nFail Release notes updated\nPass Regression Test\n\nfooter\n",
	}, {
		name:    "no checklist renders from scratch",
		desc:    "free text only",
		updates: Statuses{Scan: Fail},
		want:    Render(Statuses{Scan: Fail}),
	}, {
		name: "no updates is a no-op",
		desc: base,
		want: base,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Update(tt.desc, tt.updates)); diff != "" {
				t.Errorf("Update (-want +got):\n%s", diff)
			}
		})
	}
}
