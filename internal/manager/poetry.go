package manager

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/target"
)

const poetryName = "poetry"

var poetryInstallishSubcommands = map[string]bool{
	"add": true, "install": true, "sync": true, "update": true,
}

// Global poetry flags that consume the next argument. Without skipping
// their values, `poetry -C proj add pkg` would misread "proj" as the
// subcommand.
var poetryValueFlags = map[string]bool{
	"-C": true, "--directory": true,
	"-P": true, "--project": true,
}

// poetry prints one operation line per package during a dry-run, e.g.
//
//	• Installing requests (2.31.0)
//	- Updating urllib3 (2.0.7 -> 2.2.1)
//
// Skipped operations mention a reason in a trailing colon clause.
var poetryOperationRe = regexp.MustCompile(`^\s*[-•]\s+(Installing|Updating)\s+(?:the current project:\s+)?(\S+)\s+\(([^)]+)\)`)

// Poetry drives the poetry CLI. Unlike pip, poetry owns both the
// dependency graph (pyproject/lock) and the target virtualenv, so the
// two installish paths resolve differently: add/update re-resolve the
// graph in dry-run mode, install/sync are fully determined by the
// existing lock file.
type Poetry struct {
	executable string
}

// NewPoetry resolves the poetry executable on the PATH unless one is
// supplied.
func NewPoetry(executable string) (*Poetry, error) {
	if executable == "" {
		path, err := exec.LookPath(poetryName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve poetry executable: %w", err)
		}
		executable = path
	}
	return &Poetry{executable: executable}, nil
}

func (p *Poetry) Name() string                   { return poetryName }
func (p *Poetry) Ecosystem() ecosystem.Ecosystem { return ecosystem.PyPI }
func (p *Poetry) Executable() string             { return p.executable }

// Version runs `poetry --version`, which prints "Poetry (version X.Y.Z)".
func (p *Poetry) Version(ctx context.Context) (string, bool, error) {
	stdout, _, err := output(ctx, p.executable, "--version", "--no-ansi")
	if err != nil {
		return "", false, err
	}
	version, err := parsePoetryVersion(stdout)
	if err != nil {
		return "", false, err
	}
	return version, versionAtLeast(version, minPoetryVersion), nil
}

func parsePoetryVersion(out string) (string, error) {
	start := strings.Index(out, "(version ")
	if start < 0 {
		return "", fmt.Errorf("unrecognized poetry version output %q", strings.TrimSpace(out))
	}
	rest := out[start+len("(version "):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return "", fmt.Errorf("unrecognized poetry version output %q", strings.TrimSpace(out))
	}
	return rest[:end], nil
}

// IsInstallish reports whether the subcommand can add packages to the
// environment.
func (p *Poetry) IsInstallish(args []string) bool {
	return poetryInstallishSubcommands[p.subcommand(args)]
}

// subcommand returns the first token that is neither a global flag nor
// the value of one. `--flag=value` forms carry their value inline and
// need no skipping.
func (p *Poetry) subcommand(args []string) string {
	skip := false
	for _, arg := range args[1:] {
		if skip {
			skip = false
			continue
		}
		if strings.HasPrefix(arg, "-") {
			if poetryValueFlags[arg] {
				skip = true
			}
			continue
		}
		return arg
	}
	return ""
}

// ResolveTargets picks the resolution strategy by subcommand. Neither
// path writes the lock file or the environment.
func (p *Poetry) ResolveTargets(ctx context.Context, args []string) ([]target.InstallTarget, error) {
	for _, arg := range args {
		switch arg {
		case "-h", "--help", "--dry-run":
			return nil, nil
		}
	}

	switch p.subcommand(args) {
	case "add", "update":
		return p.resolveDryRun(ctx, args)
	case "install", "sync":
		return p.resolveFromLock(ctx)
	default:
		return nil, nil
	}
}

// resolveDryRun re-runs add/update with --dry-run, letting poetry
// re-resolve the dependency graph without persisting it.
func (p *Poetry) resolveDryRun(ctx context.Context, args []string) ([]target.InstallTarget, error) {
	dryRun := append(append([]string{}, args[1:]...), "--dry-run", "--no-ansi", "--no-interaction")
	stdout, stderr, err := output(ctx, p.executable, dryRun...)
	if err != nil {
		return nil, fmt.Errorf("%w: poetry dry-run failed: %v: %s", ErrResolve, err, strings.TrimSpace(stderr))
	}
	return parsePoetryOperations(stdout)
}

func parsePoetryOperations(out string) ([]target.InstallTarget, error) {
	var targets []target.InstallTarget
	for _, line := range strings.Split(out, "\n") {
		m := poetryOperationRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// Skipped operations ("Already installed", "Not required") are
		// not installation targets.
		if strings.Contains(line, ": Skipped") {
			continue
		}
		name, version := m[2], m[3]
		if m[1] == "Updating" {
			// "(old -> new)": the target is the version being installed.
			parts := strings.Split(version, "->")
			if len(parts) != 2 {
				return nil, fmt.Errorf("%w: malformed poetry update operation %q", ErrResolve, strings.TrimSpace(line))
			}
			version = strings.TrimSpace(parts[1])
		}
		targets = append(targets, target.InstallTarget{
			Ecosystem: ecosystem.PyPI,
			Name:      name,
			Version:   version,
		})
	}
	return target.Dedupe(targets), nil
}

// poetryLock mirrors the subset of the poetry.lock TOML schema the
// resolver needs.
type poetryLock struct {
	Package []struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
		Source  struct {
			URL string `toml:"url"`
		} `toml:"source"`
	} `toml:"package"`
}

// resolveFromLock derives install/sync targets from the existing lock
// file diffed against the packages already present in the environment.
func (p *Poetry) resolveFromLock(ctx context.Context) ([]target.InstallTarget, error) {
	data, err := os.ReadFile("poetry.lock")
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read poetry.lock: %v", ErrResolve, err)
	}
	locked, err := parsePoetryLock(data)
	if err != nil {
		return nil, err
	}

	installed, err := p.ListInstalled(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[target.Key]bool, len(installed))
	for _, t := range installed {
		present[t.Key()] = true
	}

	var targets []target.InstallTarget
	for _, t := range locked {
		if !present[t.Key()] {
			targets = append(targets, t)
		}
	}
	return targets, nil
}

func parsePoetryLock(data []byte) ([]target.InstallTarget, error) {
	var lock poetryLock
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("%w: malformed poetry.lock: %v", ErrResolve, err)
	}
	targets := make([]target.InstallTarget, 0, len(lock.Package))
	for _, pkg := range lock.Package {
		if pkg.Name == "" || pkg.Version == "" {
			return nil, fmt.Errorf("%w: poetry.lock package entry is missing a name or version", ErrResolve)
		}
		targets = append(targets, target.InstallTarget{
			Ecosystem: ecosystem.PyPI,
			Name:      pkg.Name,
			Version:   pkg.Version,
			Source:    pkg.Source.URL,
		})
	}
	return target.Dedupe(targets), nil
}

// ListInstalled enumerates the packages in poetry's active virtualenv
// via the pip inside it.
func (p *Poetry) ListInstalled(ctx context.Context) ([]target.InstallTarget, error) {
	stdout, _, err := output(ctx, p.executable, "run", "pip", "list", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to list packages in the poetry environment: %w", err)
	}
	return parsePipListJSON([]byte(strings.TrimSpace(stdout)))
}

// Run executes the original poetry command.
func (p *Poetry) Run(ctx context.Context, args []string) error {
	return runAttached(ctx, p.executable, args[1:]...)
}
