package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/target"
)

const pipName = "pip"

// Pip drives pip through a Python executable (`python -m pip`), which
// sidesteps pip shim scripts and pyenv PATH stomping.
type Pip struct {
	executable string
}

// NewPip resolves the Python executable used to run pip. An active
// virtualenv takes precedence over the PATH.
func NewPip(executable string) (*Pip, error) {
	if executable == "" {
		if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
			executable = filepath.Join(venv, "bin", "python")
		} else if path, err := exec.LookPath("python3"); err == nil {
			executable = path
		} else if path, err := exec.LookPath("python"); err == nil {
			executable = path
		} else {
			return nil, fmt.Errorf("failed to resolve a Python executable for pip")
		}
	}
	info, err := os.Stat(executable)
	if err != nil {
		return nil, fmt.Errorf("cannot use pip executable %q: %w", executable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("pip executable %q is a directory", executable)
	}
	return &Pip{executable: executable}, nil
}

func (p *Pip) Name() string                   { return pipName }
func (p *Pip) Ecosystem() ecosystem.Ecosystem { return ecosystem.PyPI }
func (p *Pip) Executable() string             { return p.executable }

// Version runs `python -m pip --version`, which prints
// "pip X.Y.Z from <path> (python A.B)".
func (p *Pip) Version(ctx context.Context) (string, bool, error) {
	stdout, _, err := output(ctx, p.executable, "-m", pipName, "--version")
	if err != nil {
		return "", false, err
	}
	fields := strings.Fields(stdout)
	if len(fields) < 2 || fields[0] != pipName {
		return "", false, fmt.Errorf("unrecognized pip version output %q", strings.TrimSpace(stdout))
	}
	version := fields[1]
	return version, versionAtLeast(version, minPipVersion), nil
}

// IsInstallish reports whether the pip command line contains the install
// subcommand. pip only adds or upgrades packages via `pip install`; every
// other subcommand is safe to pass through.
func (p *Pip) IsInstallish(args []string) bool {
	for _, arg := range args[1:] {
		if arg == "install" {
			return true
		}
	}
	return false
}

// ResolveTargets re-runs the install command with `--dry-run --report -`,
// which makes pip print its fully pinned installation plan as JSON
// without touching the environment.
func (p *Pip) ResolveTargets(ctx context.Context, args []string) ([]target.InstallTarget, error) {
	// With any of these present the original command prints usage or
	// performs its own dry-run: nothing would be installed.
	for _, arg := range args {
		switch arg {
		case "-h", "--help", "--dry-run":
			return nil, nil
		}
	}

	dryRun := append([]string{"-m"}, args...)
	dryRun = append(dryRun, "--dry-run", "--quiet", "--report", "-")
	stdout, _, err := output(ctx, p.executable, dryRun...)
	if err != nil {
		// The dry-run failed, so the original command would fail the same
		// way before installing anything.
		logging.Get().Debug().Err(err).Msg("pip dry-run exited nonzero; no targets to verify")
		return nil, nil
	}

	return parsePipInstallReport([]byte(stdout))
}

// pipInstallReport mirrors the subset of pip's `--report` JSON schema the
// resolver needs.
type pipInstallReport struct {
	Install []struct {
		Metadata struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"metadata"`
		DownloadInfo struct {
			URL string `json:"url"`
		} `json:"download_info"`
	} `json:"install"`
}

func parsePipInstallReport(data []byte) ([]target.InstallTarget, error) {
	var report pipInstallReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: malformed pip install report: %v", ErrResolve, err)
	}

	targets := make([]target.InstallTarget, 0, len(report.Install))
	for _, item := range report.Install {
		if item.Metadata.Name == "" {
			return nil, fmt.Errorf("%w: pip install report entry is missing a name", ErrResolve)
		}
		if item.Metadata.Version == "" {
			return nil, fmt.Errorf("%w: pip install report entry for %q is missing a version", ErrResolve, item.Metadata.Name)
		}
		targets = append(targets, target.InstallTarget{
			Ecosystem: ecosystem.PyPI,
			Name:      item.Metadata.Name,
			Version:   item.Metadata.Version,
			Source:    item.DownloadInfo.URL,
		})
	}
	return target.Dedupe(targets), nil
}

// ListInstalled returns every PyPI package visible to pip in the active
// environment.
func (p *Pip) ListInstalled(ctx context.Context) ([]target.InstallTarget, error) {
	stdout, _, err := output(ctx, p.executable, "-m", pipName, "list", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to list installed pip packages: %w", err)
	}
	return parsePipListJSON([]byte(strings.TrimSpace(stdout)))
}

func parsePipListJSON(data []byte) ([]target.InstallTarget, error) {
	var installed []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &installed); err != nil {
		return nil, fmt.Errorf("%w: malformed pip list report: %v", ErrResolve, err)
	}
	targets := make([]target.InstallTarget, 0, len(installed))
	for _, pkg := range installed {
		if pkg.Name == "" || pkg.Version == "" {
			return nil, fmt.Errorf("%w: malformed installed package entry", ErrResolve)
		}
		targets = append(targets, target.InstallTarget{
			Ecosystem: ecosystem.PyPI,
			Name:      pkg.Name,
			Version:   pkg.Version,
		})
	}
	return targets, nil
}

// Run executes the original pip command.
func (p *Pip) Run(ctx context.Context, args []string) error {
	return runAttached(ctx, p.executable, append([]string{"-m"}, args...)...)
}
