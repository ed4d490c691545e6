package firewall

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DataDog/supply-chain-firewall/internal/decision"
	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/logger"
	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

type fakeManager struct {
	installish bool
	versionOK  bool
	versionErr error
	targets    []target.InstallTarget
	resolveErr error
	installed  []target.InstallTarget
	listErr    error

	ran bool
}

func (m *fakeManager) Name() string                   { return "fake" }
func (m *fakeManager) Ecosystem() ecosystem.Ecosystem { return ecosystem.PyPI }
func (m *fakeManager) Executable() string             { return "/usr/bin/fake" }

func (m *fakeManager) Version(ctx context.Context) (string, bool, error) {
	return "1.0.0", m.versionOK, m.versionErr
}

func (m *fakeManager) IsInstallish(args []string) bool { return m.installish }

func (m *fakeManager) ResolveTargets(ctx context.Context, args []string) ([]target.InstallTarget, error) {
	return m.targets, m.resolveErr
}

func (m *fakeManager) ListInstalled(ctx context.Context) ([]target.InstallTarget, error) {
	return m.installed, m.listErr
}

func (m *fakeManager) Run(ctx context.Context, args []string) error {
	m.ran = true
	return nil
}

type stubVerifier struct {
	findings []verifier.Finding
	calls    int
}

func (v *stubVerifier) Name() string { return "stub" }

func (v *stubVerifier) Verify(ctx context.Context, targets []target.InstallTarget) ([]verifier.Finding, error) {
	v.calls++
	return v.findings, nil
}

var installCmd = []string{"fake", "install", "requests"}

func testTarget() target.InstallTarget {
	return target.InstallTarget{Ecosystem: ecosystem.PyPI, Name: "requests", Version: "2.19.0"}
}

func finding(sev verifier.Severity) verifier.Finding {
	return verifier.Finding{Target: testTarget().Key(), Severity: sev, Message: "flagged"}
}

func newFirewall(v verifier.Verifier, policy decision.Policy, confirm decision.ConfirmFunc, allowUnsupported bool, out *strings.Builder) *Firewall {
	var verifiers []verifier.Verifier
	if v != nil {
		verifiers = append(verifiers, v)
	}
	o := verifier.NewOrchestrator(verifiers, time.Second)
	return New(o, policy, confirm, nil, allowUnsupported, out)
}

func TestRun_NotInstallishPassesThrough(t *testing.T) {
	pm := &fakeManager{installish: false}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{}, nil, false, &out).Run(context.Background(), pm, []string{"fake", "list"})
	if code != ExitAllow {
		t.Fatalf("expected exit %d, got %d", ExitAllow, code)
	}
	if !pm.ran {
		t.Error("command was not executed")
	}
	if v.calls != 0 {
		t.Error("verifiers must not run for non-installish commands")
	}
}

func TestRun_EmptyTargetsAllowsWithoutVerification(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: true}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{}, nil, false, &out).Run(context.Background(), pm, installCmd)
	if code != ExitAllow || !pm.ran {
		t.Fatalf("expected pass-through ALLOW, got code %d ran=%v", code, pm.ran)
	}
	if v.calls != 0 {
		t.Error("verifiers must not run with zero targets")
	}
}

func TestRun_CriticalBlocks(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: true, targets: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{}, nil, false, &out).Run(context.Background(), pm, installCmd)
	if code != ExitBlock {
		t.Fatalf("expected exit %d, got %d", ExitBlock, code)
	}
	if pm.ran {
		t.Error("blocked command must not run")
	}
	if !strings.Contains(out.String(), "blocked") {
		t.Errorf("missing refusal message in output: %q", out.String())
	}
}

func TestRun_WarningDefaultsToAbort(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: true, targets: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityWarning)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{}, nil, false, &out).Run(context.Background(), pm, installCmd)
	if code != ExitAbort || pm.ran {
		t.Fatalf("expected ABORT without execution, got code %d ran=%v", code, pm.ran)
	}
}

func TestRun_AllowOnWarningProceeds(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: true, targets: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityWarning)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{AllowOnWarning: true}, nil, false, &out).Run(context.Background(), pm, installCmd)
	if code != ExitAllow || !pm.ran {
		t.Fatalf("expected ALLOW with execution, got code %d ran=%v", code, pm.ran)
	}
}

func TestRun_DryRunSkipsExecution(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: true, targets: []target.InstallTarget{testTarget()}}
	var out strings.Builder

	code := newFirewall(&stubVerifier{}, decision.Policy{DryRun: true}, nil, false, &out).Run(context.Background(), pm, installCmd)
	if code != ExitAllow {
		t.Fatalf("expected exit %d, got %d", ExitAllow, code)
	}
	if pm.ran {
		t.Error("dry run must not execute the command")
	}
}

func TestRun_UnsupportedVersionFailsClosed(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: false}
	var out strings.Builder

	code := newFirewall(&stubVerifier{}, decision.Policy{}, nil, false, &out).Run(context.Background(), pm, installCmd)
	if code != ExitError || pm.ran {
		t.Fatalf("expected fail-closed exit %d, got %d ran=%v", ExitError, code, pm.ran)
	}
}

func TestRun_AllowUnsupportedStillVerifies(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: false, targets: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{}, nil, true, &out).Run(context.Background(), pm, installCmd)
	if code != ExitBlock || pm.ran {
		t.Fatalf("expected BLOCK despite allow-unsupported, got code %d ran=%v", code, pm.ran)
	}
	if v.calls != 1 {
		t.Errorf("expected 1 verifier call, got %d", v.calls)
	}
	if !strings.Contains(out.String(), "at your own risk") {
		t.Errorf("missing version-gate warning in output: %q", out.String())
	}
}

func TestRun_AllowUnsupportedDegradesOnResolveFailure(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: false, resolveErr: errors.New("unrecognized dry-run output")}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{}, nil, true, &out).Run(context.Background(), pm, installCmd)
	if code != ExitAllow || !pm.ran {
		t.Fatalf("expected unverified execution, got code %d ran=%v", code, pm.ran)
	}
	if v.calls != 0 {
		t.Error("verifiers must not run when resolution failed")
	}
	if !strings.Contains(out.String(), "running without verification") {
		t.Errorf("missing degradation warning in output: %q", out.String())
	}
}

func TestRun_ResolveErrorFailsClosed(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: true, resolveErr: errors.New("malformed dry-run output")}
	var out strings.Builder

	code := newFirewall(&stubVerifier{}, decision.Policy{}, nil, false, &out).Run(context.Background(), pm, installCmd)
	if code != ExitError || pm.ran {
		t.Fatalf("expected fail-closed exit %d, got %d ran=%v", ExitError, code, pm.ran)
	}
}

func TestRun_PromptDecisionIsLogged(t *testing.T) {
	pm := &fakeManager{installish: true, versionOK: true, targets: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityWarning)}}
	confirm := func(*verifier.Report) (bool, error) { return true, nil }
	mem := &memoryLogger{}
	var out strings.Builder

	o := verifier.NewOrchestrator([]verifier.Verifier{v}, time.Second)
	fw := New(o, decision.Policy{Interactive: true}, confirm, []logger.FirewallLogger{mem}, false, &out)
	code := fw.Run(context.Background(), pm, installCmd)
	if code != ExitAllow || !pm.ran {
		t.Fatalf("expected confirmed ALLOW, got code %d ran=%v", code, pm.ran)
	}
	if len(mem.records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(mem.records))
	}
	rec := mem.records[0]
	if rec.Action != string(decision.Allow) || !rec.Warned {
		t.Errorf("unexpected record: %+v", rec)
	}
	if len(rec.Targets) != 1 {
		t.Errorf("expected 1 target in record, got %v", rec.Targets)
	}
}

type memoryLogger struct {
	records []logger.Record
}

func (m *memoryLogger) Name() string { return "memory" }

func (m *memoryLogger) Log(rec logger.Record) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryLogger) Close() error { return nil }

func TestAudit_Advisory(t *testing.T) {
	pm := &fakeManager{installed: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{}, nil, false, &out).Audit(context.Background(), pm, false)
	if code != ExitAllow {
		t.Fatalf("audit is advisory; expected exit %d, got %d", ExitAllow, code)
	}
	if !strings.Contains(out.String(), "requests") {
		t.Errorf("report output missing: %q", out.String())
	}
}

func TestAudit_ErrorOnBlock(t *testing.T) {
	pm := &fakeManager{installed: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	var out strings.Builder

	code := newFirewall(v, decision.Policy{}, nil, false, &out).Audit(context.Background(), pm, true)
	if code != ExitBlock {
		t.Fatalf("expected exit %d under error-on-block, got %d", ExitBlock, code)
	}
}

func TestAudit_DeliversLogRecord(t *testing.T) {
	pm := &fakeManager{installed: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	mem := &memoryLogger{}
	var out strings.Builder

	o := verifier.NewOrchestrator([]verifier.Verifier{v}, time.Second)
	fw := New(o, decision.Policy{}, nil, []logger.FirewallLogger{mem}, false, &out)
	if code := fw.Audit(context.Background(), pm, true); code != ExitBlock {
		t.Fatalf("expected exit %d, got %d", ExitBlock, code)
	}
	if len(mem.records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(mem.records))
	}
	rec := mem.records[0]
	if rec.Action != string(decision.Block) {
		t.Errorf("expected %s action in record, got %s", decision.Block, rec.Action)
	}
	if rec.Findings != 1 {
		t.Errorf("expected 1 finding in record, got %d", rec.Findings)
	}
	if len(rec.Targets) != 1 {
		t.Errorf("expected the installed package in the record, got %v", rec.Targets)
	}
}

func TestAudit_AdvisoryRecordsAllow(t *testing.T) {
	pm := &fakeManager{installed: []target.InstallTarget{testTarget()}}
	v := &stubVerifier{findings: []verifier.Finding{finding(verifier.SeverityCritical)}}
	mem := &memoryLogger{}
	var out strings.Builder

	o := verifier.NewOrchestrator([]verifier.Verifier{v}, time.Second)
	fw := New(o, decision.Policy{}, nil, []logger.FirewallLogger{mem}, false, &out)
	if code := fw.Audit(context.Background(), pm, false); code != ExitAllow {
		t.Fatalf("expected exit %d, got %d", ExitAllow, code)
	}
	if len(mem.records) != 1 || mem.records[0].Action != string(decision.Allow) {
		t.Fatalf("expected one ALLOW record, got %+v", mem.records)
	}
}

func TestAudit_ListFailure(t *testing.T) {
	pm := &fakeManager{listErr: errors.New("npm ls failed")}
	var out strings.Builder

	code := newFirewall(&stubVerifier{}, decision.Policy{}, nil, false, &out).Audit(context.Background(), pm, false)
	if code != ExitError {
		t.Fatalf("expected exit %d, got %d", ExitError, code)
	}
}
