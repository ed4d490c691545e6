package decision

import (
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

// Action is the firewall's verdict on an intercepted command.
type Action string

const (
	// Allow runs the command unmodified.
	Allow Action = "ALLOW"
	// Block refuses the command because of CRITICAL findings.
	Block Action = "BLOCK"
	// Abort refuses the command because the user declined, or because
	// warnings could not be confirmed non-interactively.
	Abort Action = "ABORT"
)

// Decision pairs the verdict with the report it was derived from.
type Decision struct {
	Action Action
	Report *verifier.Report

	// Warned is set when the user explicitly proceeded past WARNING
	// findings, either by flag or at the prompt.
	Warned bool
}

// ConfirmFunc asks whether to proceed despite the findings in the
// report. It is only invoked for WARNING-grade findings under an
// interactive policy.
type ConfirmFunc func(report *verifier.Report) (bool, error)

// Evaluate computes the verdict for a report under a policy. CRITICAL
// findings always block and cannot be overridden; WARNING findings are
// resolved by policy flags, the prompt, or the non-interactive default
// of aborting. A report with no findings always allows.
func Evaluate(report *verifier.Report, policy Policy, confirm ConfirmFunc) Decision {
	if report.HasSeverity(verifier.SeverityCritical) {
		return Decision{Action: Block, Report: report}
	}
	if !report.HasSeverity(verifier.SeverityWarning) {
		return Decision{Action: Allow, Report: report}
	}

	switch {
	case policy.BlockOnWarning:
		return Decision{Action: Block, Report: report}
	case policy.AllowOnWarning:
		return Decision{Action: Allow, Report: report, Warned: true}
	case policy.Interactive && confirm != nil:
		proceed, err := confirm(report)
		if err != nil || !proceed {
			// A failed prompt cannot establish consent.
			return Decision{Action: Abort, Report: report}
		}
		return Decision{Action: Allow, Report: report, Warned: true}
	default:
		return Decision{Action: Abort, Report: report}
	}
}
