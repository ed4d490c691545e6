package verifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/target"
)

// DefaultTimeout bounds a single verifier invocation.
const DefaultTimeout = 30 * time.Second

// Orchestrator fans a target set out to every registered verifier
// concurrently and merges the results into one Report. Verifiers run
// independently: one verifier's failure or latency never blocks or
// corrupts another's contribution.
type Orchestrator struct {
	verifiers []Verifier
	timeout   time.Duration
}

// NewOrchestrator builds an orchestrator over the given verifiers. A
// non-positive timeout falls back to DefaultTimeout.
func NewOrchestrator(verifiers []Verifier, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{verifiers: verifiers, timeout: timeout}
}

// Verify runs every verifier against the target set and returns the
// merged report. All verifiers are joined before the report is returned;
// there is no early exit once a blocking finding is known, because a
// complete report is required for remediation even when the decision is
// already certain.
//
// Findings are merged per target with no cross-verifier de-duplication:
// two independent sources making the same claim is signal worth keeping.
func (o *Orchestrator) Verify(ctx context.Context, targets []target.InstallTarget) *Report {
	report := NewReport(targets)
	for _, v := range o.verifiers {
		report.Verifiers = append(report.Verifiers, v.Name())
	}
	if len(targets) == 0 || len(o.verifiers) == 0 {
		return report
	}

	type result struct {
		name     string
		findings []Finding
		err      error
	}

	var mu sync.Mutex
	results := make(map[string]result, len(o.verifiers))

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range o.verifiers {
		g.Go(func() error {
			vctx, cancel := context.WithTimeout(gctx, o.timeout)
			defer cancel()

			// The deadline must hold even for a verifier that never
			// checks its context, so the call runs in its own goroutine
			// and is abandoned once vctx expires. The channel is
			// buffered so a late return cannot leak the goroutine.
			done := make(chan result, 1)
			go func() {
				findings, err := v.Verify(vctx, targets)
				done <- result{name: v.Name(), findings: findings, err: err}
			}()

			var res result
			select {
			case res = <-done:
			case <-vctx.Done():
				res = result{
					name: v.Name(),
					err:  fmt.Errorf("verifier did not finish within %s: %w", o.timeout, vctx.Err()),
				}
			}

			mu.Lock()
			results[v.Name()] = res
			mu.Unlock()
			// Errors are recorded per verifier, never propagated: a
			// failing verifier must not cancel its peers.
			return nil
		})
	}
	g.Wait()

	// Merge in registry order so reports are deterministic.
	for _, v := range o.verifiers {
		res := results[v.Name()]
		if res.err != nil {
			logging.Get().Warn().Str("verifier", res.name).Err(res.err).Msg("verifier failed")
			report.Failures = append(report.Failures, VerifierFailure{
				Name:   res.name,
				Reason: res.err.Error(),
			})
			continue
		}
		for _, f := range res.findings {
			if f.Verifier == "" {
				f.Verifier = res.name
			}
			if err := validateFinding(f, targets); err != nil {
				logging.Get().Warn().Str("verifier", res.name).Err(err).Msg("discarding invalid finding")
				continue
			}
			report.add(f)
		}
	}
	return report
}

// validateFinding rejects findings that reference targets outside the
// verified set, which would otherwise let a misbehaving plugin inject
// phantom results.
func validateFinding(f Finding, targets []target.InstallTarget) error {
	if f.Severity != SeverityWarning && f.Severity != SeverityCritical {
		return fmt.Errorf("invalid severity %q", f.Severity)
	}
	for _, t := range targets {
		if t.Key() == f.Target {
			return nil
		}
	}
	return fmt.Errorf("finding references unknown target %s|%s:%s", f.Target.Ecosystem, f.Target.Name, f.Target.Version)
}
