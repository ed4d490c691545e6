// Package verifier defines the verification contract and the machinery
// that fans a target set out to every registered verifier.
package verifier

import (
	"context"
	"fmt"

	"github.com/DataDog/supply-chain-firewall/internal/target"
)

// Severity grades a finding. CRITICAL findings are never overridable by
// policy or by the user; WARNING findings are subject to policy.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Finding is one verifier's claim about one target. Immutable once
// produced.
type Finding struct {
	Target     target.Key
	Severity   Severity
	Message    string
	Verifier   string
	AdvisoryID string
}

func (f Finding) String() string {
	if f.AdvisoryID != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", f.Severity, f.Verifier, f.Message, f.AdvisoryID)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Verifier, f.Message)
}

// Verifier checks a target set against a single source of data on
// vulnerable and malicious packages. Implementations must be independent
// of one another: they see only the raw target set, never another
// verifier's output, and must not assume any invocation order.
//
// A returned error is a recoverable operational failure (network outage,
// timeout, malformed upstream data); it is recorded in the report and
// the pipeline continues with the remaining verifiers.
type Verifier interface {
	// Name returns the constant identifier used in finding provenance
	// and failure reporting.
	Name() string

	// Verify returns findings for any targets the backing data source
	// has something to say about. Targets without findings are simply
	// omitted.
	Verify(ctx context.Context, targets []target.InstallTarget) ([]Finding, error)
}
