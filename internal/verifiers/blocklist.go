package verifiers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

const blocklistVerifierName = "BlocklistVerifier"

// blocklistEntry is one row of the operator-maintained findings file.
// An empty version matches every release of the package.
type blocklistEntry struct {
	Ecosystem string `yaml:"ecosystem"`
	Name      string `yaml:"name"`
	Version   string `yaml:"version,omitempty"`
	Severity  string `yaml:"severity,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
}

type blocklistFile struct {
	Packages []blocklistEntry `yaml:"packages"`
}

// BlocklistVerifier matches targets against a local YAML findings list,
// letting operators block packages their org has decided against
// without waiting on any external data source.
type BlocklistVerifier struct {
	entries []blocklistEntry
}

// NewBlocklistVerifier loads the YAML blocklist at path. A missing file
// yields an empty verifier; a malformed file is a construction error so
// the registry records it instead of silently enforcing nothing.
func NewBlocklistVerifier(path string) (*BlocklistVerifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &BlocklistVerifier{}, nil
		}
		return nil, fmt.Errorf("failed to read blocklist: %w", err)
	}
	var file blocklistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("malformed blocklist %s: %w", path, err)
	}
	for i, entry := range file.Packages {
		if entry.Name == "" || entry.Ecosystem == "" {
			return nil, fmt.Errorf("blocklist %s: entry %d is missing a name or ecosystem", path, i)
		}
	}
	return &BlocklistVerifier{entries: file.Packages}, nil
}

func (v *BlocklistVerifier) Name() string { return blocklistVerifierName }

func (v *BlocklistVerifier) Verify(ctx context.Context, targets []target.InstallTarget) ([]verifier.Finding, error) {
	var findings []verifier.Finding
	for _, t := range targets {
		for _, entry := range v.entries {
			if !entry.matches(t) {
				continue
			}
			reason := entry.Reason
			if reason == "" {
				reason = fmt.Sprintf("Package %s is on the local blocklist", t.Name)
			}
			findings = append(findings, verifier.Finding{
				Target:   t.Key(),
				Severity: entry.severity(),
				Message:  reason,
				Verifier: blocklistVerifierName,
			})
		}
	}
	return findings, nil
}

func (e blocklistEntry) matches(t target.InstallTarget) bool {
	if !strings.EqualFold(e.Ecosystem, string(t.Ecosystem)) {
		return false
	}
	if e.Name != t.Name {
		return false
	}
	return e.Version == "" || e.Version == t.Version
}

func (e blocklistEntry) severity() verifier.Severity {
	if strings.EqualFold(e.Severity, string(verifier.SeverityWarning)) {
		return verifier.SeverityWarning
	}
	// Operators blocklist packages to keep them out; default to the
	// non-overridable grade.
	return verifier.SeverityCritical
}
