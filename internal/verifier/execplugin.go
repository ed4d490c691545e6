package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/target"
)

// ExecPlugin adapts an external executable to the Verifier contract.
// The plugin receives the JSON-encoded target set on stdin and must
// print a JSON array of findings on stdout. A nonzero exit or malformed
// output is a recoverable verifier failure.
type ExecPlugin struct {
	path string
}

func NewExecPlugin(path string) *ExecPlugin {
	return &ExecPlugin{path: path}
}

// Name derives a stable verifier name from the plugin file name.
func (p *ExecPlugin) Name() string {
	base := filepath.Base(p.path)
	return "plugin:" + strings.TrimSuffix(base, filepath.Ext(base))
}

type pluginTarget struct {
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name"`
	Version   string `json:"version"`
}

type pluginFinding struct {
	Ecosystem  string `json:"ecosystem"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	AdvisoryID string `json:"advisory_id,omitempty"`
}

func (p *ExecPlugin) Verify(ctx context.Context, targets []target.InstallTarget) ([]Finding, error) {
	input := make([]pluginTarget, 0, len(targets))
	for _, t := range targets {
		input = append(input, pluginTarget{
			Ecosystem: t.Ecosystem.String(),
			Name:      t.Name,
			Version:   t.Version,
		})
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode targets: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.path)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("plugin exited abnormally: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	var raw []pluginFinding
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &raw); err != nil {
		return nil, fmt.Errorf("malformed plugin output: %w", err)
	}

	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		findings = append(findings, Finding{
			Target: target.Key{
				Ecosystem: ecosystem.Ecosystem(f.Ecosystem),
				Name:      f.Name,
				Version:   f.Version,
			},
			Severity:   Severity(strings.ToUpper(f.Severity)),
			Message:    f.Message,
			Verifier:   p.Name(),
			AdvisoryID: f.AdvisoryID,
		})
	}
	return findings, nil
}
