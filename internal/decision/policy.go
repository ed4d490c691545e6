package decision

import "errors"

// Policy captures the resolved run-time posture toward verifier
// findings. It is assembled once from flags and environment and then
// treated as read-only.
type Policy struct {
	// Interactive reports whether a confirmation prompt can be shown.
	Interactive bool

	// AllowOnWarning proceeds past WARNING findings without asking.
	AllowOnWarning bool

	// BlockOnWarning refuses WARNING findings outright.
	BlockOnWarning bool

	// ErrorOnBlock makes audit mode exit nonzero on CRITICAL findings.
	ErrorOnBlock bool

	// DryRun evaluates and reports the decision without ever running
	// the underlying package manager command.
	DryRun bool
}

var errWarningFlagsConflict = errors.New("allow-on-warning and block-on-warning are mutually exclusive")

// Validate rejects self-contradictory policies before any verification
// work is done.
func (p Policy) Validate() error {
	if p.AllowOnWarning && p.BlockOnWarning {
		return errWarningFlagsConflict
	}
	return nil
}
