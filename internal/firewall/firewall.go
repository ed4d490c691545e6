// Package firewall drives the end-to-end pipelines behind the run and
// audit commands: gate, resolve, verify, decide, log, and finally
// execute or refuse the intercepted command.
package firewall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/DataDog/supply-chain-firewall/internal/decision"
	"github.com/DataDog/supply-chain-firewall/internal/logger"
	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/manager"
	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

// Process exit codes. The firewall's own verdicts are distinguishable
// from the wrapped command's exit status by construction: a command only
// runs after an ALLOW.
const (
	ExitAllow = 0
	ExitError = 1
	ExitBlock = 2
	ExitAbort = 3
)

// Firewall ties the pipeline collaborators together. Construct one per
// process with New.
type Firewall struct {
	orchestrator *verifier.Orchestrator
	policy       decision.Policy
	confirm      decision.ConfirmFunc
	loggers      []logger.FirewallLogger

	// allowUnsupported waives the manager version gate. Verification
	// still runs; only a failed target resolution degrades to
	// unverified execution instead of failing closed.
	allowUnsupported bool

	out io.Writer
}

// New assembles a firewall. A nil out falls back to stderr so report
// output never mixes with the wrapped command's stdout.
func New(o *verifier.Orchestrator, policy decision.Policy, confirm decision.ConfirmFunc, loggers []logger.FirewallLogger, allowUnsupported bool, out io.Writer) *Firewall {
	if out == nil {
		out = os.Stderr
	}
	return &Firewall{
		orchestrator:     o,
		policy:           policy,
		confirm:          confirm,
		loggers:          loggers,
		allowUnsupported: allowUnsupported,
		out:              out,
	}
}

// Run verifies and then executes (or refuses) one package manager
// command. The returned exit code is the process's final status.
func (f *Firewall) Run(ctx context.Context, pm manager.PackageManager, command []string) int {
	cls, err := manager.Classify(ctx, pm, command)
	if err != nil {
		if !f.allowUnsupported {
			fmt.Fprintf(f.out, "Refusing to run: %v\n", err)
			return ExitError
		}
		// The override waives the version gate only. Resolution and
		// verification still run; an unsupported manager may well
		// produce usable dry-run output.
		fmt.Fprintf(f.out, "Warning: %v; proceeding at your own risk\n", err)
		cls = manager.Installish
	}
	if cls == manager.NotInstallish {
		// Nothing can be installed; pass the command through untouched.
		return f.execute(ctx, pm, command)
	}

	targets, err := pm.ResolveTargets(ctx, command)
	if err != nil {
		if f.allowUnsupported {
			fmt.Fprintf(f.out, "Warning: %v; running without verification\n", err)
			f.record(pm, command, decision.Decision{Action: decision.Allow}, nil)
			return f.execute(ctx, pm, command)
		}
		fmt.Fprintf(f.out, "Refusing to run: %v\n", err)
		return ExitError
	}
	if len(targets) == 0 {
		logging.Get().Debug().Msg("no installation targets; skipping verification")
		f.record(pm, command, decision.Decision{Action: decision.Allow}, nil)
		return f.execute(ctx, pm, command)
	}

	report := f.orchestrator.Verify(ctx, targets)
	d := decision.Evaluate(report, f.policy, f.confirm)
	f.record(pm, command, d, targets)

	switch d.Action {
	case decision.Block:
		fmt.Fprint(f.out, report.Show())
		fmt.Fprintln(f.out, "Installation blocked: critical findings cannot be overridden")
		return ExitBlock
	case decision.Abort:
		fmt.Fprint(f.out, report.Show())
		fmt.Fprintln(f.out, "Installation aborted")
		return ExitAbort
	default:
		return f.execute(ctx, pm, command)
	}
}

// Audit verifies the already-installed package set. It is advisory: the
// exit code is ExitAllow regardless of findings unless errorOnBlock is
// set, which maps critical findings to ExitBlock for scripting.
func (f *Firewall) Audit(ctx context.Context, pm manager.PackageManager, errorOnBlock bool) int {
	installed, err := pm.ListInstalled(ctx)
	if err != nil {
		fmt.Fprintf(f.out, "Audit failed: %v\n", err)
		return ExitError
	}
	if len(installed) == 0 {
		fmt.Fprintf(f.out, "No %s packages installed\n", pm.Ecosystem())
		return ExitAllow
	}

	report := f.orchestrator.Verify(ctx, installed)
	if report.FindingCount() == 0 && len(report.Failures) == 0 {
		fmt.Fprintf(f.out, "No findings for %d installed packages\n", len(installed))
	} else {
		fmt.Fprint(f.out, report.Show())
	}

	d := decision.Decision{Action: decision.Allow, Report: report}
	code := ExitAllow
	if errorOnBlock && report.HasSeverity(verifier.SeverityCritical) {
		d.Action = decision.Block
		code = ExitBlock
	}
	f.record(pm, []string{"audit", pm.Name()}, d, installed)
	return code
}

func (f *Firewall) execute(ctx context.Context, pm manager.PackageManager, command []string) int {
	if f.policy.DryRun {
		fmt.Fprintln(f.out, "Dry run: command verified but not executed")
		return ExitAllow
	}
	if err := pm.Run(ctx, command); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			return exit.ExitCode()
		}
		fmt.Fprintf(f.out, "Failed to run command: %v\n", err)
		return ExitError
	}
	return ExitAllow
}

func (f *Firewall) record(pm manager.PackageManager, command []string, d decision.Decision, targets []target.InstallTarget) {
	rec := logger.NewRecord(pm.Name(), pm.Executable(), string(pm.Ecosystem()), command, d, targets)
	logger.Deliver(f.loggers, rec)
}
