package verifier

import (
	"fmt"
	"strings"

	"github.com/DataDog/supply-chain-firewall/internal/target"
)

// VerifierFailure records a verifier that could not contribute to a
// report, so "no findings" is never silently conflated with "nobody
// looked".
type VerifierFailure struct {
	Name   string
	Reason string
}

// Report collects the findings of every verifier consulted for one
// target set. It is built by the orchestrator and read-only afterwards.
type Report struct {
	// Targets is the verified target set in resolution order.
	Targets []target.InstallTarget

	// Verifiers names every verifier that was consulted, including the
	// ones that failed.
	Verifiers []string

	// Failures lists verifiers that errored or timed out.
	Failures []VerifierFailure

	findings map[target.Key][]Finding
}

// NewReport initializes an empty report for the given target set.
func NewReport(targets []target.InstallTarget) *Report {
	return &Report{
		Targets:  targets,
		findings: make(map[target.Key][]Finding),
	}
}

func (r *Report) add(f Finding) {
	r.findings[f.Target] = append(r.findings[f.Target], f)
}

// FindingsFor returns the ordered findings recorded for a target.
func (r *Report) FindingsFor(t target.InstallTarget) []Finding {
	return r.findings[t.Key()]
}

// HasSeverity reports whether any target carries a finding of the given
// severity.
func (r *Report) HasSeverity(sev Severity) bool {
	for _, findings := range r.findings {
		for _, f := range findings {
			if f.Severity == sev {
				return true
			}
		}
	}
	return false
}

// FindingCount returns the total number of findings across all targets.
func (r *Report) FindingCount() int {
	n := 0
	for _, findings := range r.findings {
		n += len(findings)
	}
	return n
}

// Show renders the report for terminal display: per-target findings in
// resolution order, followed by the verifier availability summary.
func (r *Report) Show() string {
	var sb strings.Builder
	for _, tgt := range r.Targets {
		findings := r.findings[tgt.Key()]
		if len(findings) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "Installation target %s:\n", tgt)
		for _, f := range findings {
			for i, line := range strings.Split(f.String(), "\n") {
				if i == 0 {
					fmt.Fprintf(&sb, "  - %s\n", line)
				} else {
					fmt.Fprintf(&sb, "    %s\n", line)
				}
			}
		}
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&sb, "%d of %d verifiers were unavailable:\n", len(r.Failures), len(r.Verifiers))
		for _, failure := range r.Failures {
			fmt.Fprintf(&sb, "  ! %s: %s\n", failure.Name, failure.Reason)
		}
	}
	return sb.String()
}
