package verifiers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

const blocklistFixture = `packages:
  - ecosystem: PyPI
    name: typosquat-requests
    reason: Known typosquat of requests
  - ecosystem: npm
    name: event-stream
    version: 3.3.6
    severity: warning
    reason: Compromised release
`

func writeBlocklist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocklist.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBlocklistVerifier_Matches(t *testing.T) {
	v, err := NewBlocklistVerifier(writeBlocklist(t, blocklistFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	targets := []target.InstallTarget{
		{Ecosystem: ecosystem.PyPI, Name: "typosquat-requests", Version: "9.9.9"},
		{Ecosystem: ecosystem.Npm, Name: "event-stream", Version: "3.3.6"},
		{Ecosystem: ecosystem.Npm, Name: "event-stream", Version: "4.0.1"},
		{Ecosystem: ecosystem.PyPI, Name: "requests", Version: "2.31.0"},
	}
	findings, err := v.Verify(context.Background(), targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %v", len(findings), findings)
	}
	// Versionless entries match every release; versioned entries match
	// exactly one.
	if findings[0].Severity != verifier.SeverityCritical {
		t.Errorf("default severity must be CRITICAL, got %s", findings[0].Severity)
	}
	if findings[1].Severity != verifier.SeverityWarning {
		t.Errorf("explicit warning severity not honored, got %s", findings[1].Severity)
	}
}

func TestBlocklistVerifier_MissingFileIsEmpty(t *testing.T) {
	v, err := NewBlocklistVerifier(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("a missing blocklist must not be an error: %v", err)
	}
	findings, err := v.Verify(context.Background(), []target.InstallTarget{
		{Ecosystem: ecosystem.PyPI, Name: "anything", Version: "1.0.0"},
	})
	if err != nil || len(findings) != 0 {
		t.Fatalf("expected empty verifier, got %v, %v", findings, err)
	}
}

func TestBlocklistVerifier_MalformedFileIsAnError(t *testing.T) {
	if _, err := NewBlocklistVerifier(writeBlocklist(t, "packages: [{name: }")); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
	if _, err := NewBlocklistVerifier(writeBlocklist(t, "packages:\n  - reason: no name\n")); err == nil {
		t.Fatal("expected an error for an entry without name/ecosystem")
	}
}
