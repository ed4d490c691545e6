package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/target"
)

const npmName = "npm"

// npm's "placeDep" silly-level log lines announce each dependency added
// to the tree an installish command is constructing. The dependency spec
// is always the fifth whitespace token of such a line.
const (
	npmPlaceDepMarker = "placeDep"
	npmPlaceDepToken  = 4
)

// installish npm subcommands and their documented aliases.
var npmInstallishSubcommands = map[string]bool{
	"install": true, "i": true, "in": true, "ins": true, "inst": true,
	"insta": true, "instal": true, "isnt": true, "isnta": true,
	"isntal": true, "isntall": true, "add": true,
	"install-test": true, "it": true,
	"update": true, "up": true, "upgrade": true, "udpate": true,
	"ci": true, "clean-install": true, "install-clean": true, "isntall-clean": true,
}

// Npm drives the npm CLI.
type Npm struct {
	executable string
}

// NewNpm resolves the npm executable on the PATH unless one is supplied.
func NewNpm(executable string) (*Npm, error) {
	if executable == "" {
		path, err := exec.LookPath(npmName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve npm executable: %w", err)
		}
		executable = path
	}
	return &Npm{executable: executable}, nil
}

func (n *Npm) Name() string                   { return npmName }
func (n *Npm) Ecosystem() ecosystem.Ecosystem { return ecosystem.Npm }
func (n *Npm) Executable() string             { return n.executable }

// Version runs `npm --version`, which prints a bare version string.
func (n *Npm) Version(ctx context.Context) (string, bool, error) {
	stdout, _, err := output(ctx, n.executable, "--version")
	if err != nil {
		return "", false, err
	}
	version := strings.TrimSpace(stdout)
	return version, versionAtLeast(version, minNpmVersion), nil
}

// IsInstallish reports whether the first subcommand token is an install
// subcommand or one of its aliases.
func (n *Npm) IsInstallish(args []string) bool {
	for _, arg := range args[1:] {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return npmInstallishSubcommands[arg]
	}
	return false
}

// ResolveTargets re-runs the command with `--dry-run --loglevel silly`
// and derives the added dependency set from the placeDep log lines,
// subtracting packages the environment already satisfies.
func (n *Npm) ResolveTargets(ctx context.Context, args []string) ([]target.InstallTarget, error) {
	for _, arg := range args {
		switch arg {
		case "-h", "--help", "--dry-run":
			return nil, nil
		}
	}

	dryRun := append(append([]string{}, args[1:]...), "--dry-run", "--loglevel", "silly")
	_, stderr, err := output(ctx, n.executable, dryRun...)
	if err != nil {
		// The original command would fail identically without installing.
		logging.Get().Debug().Err(err).Msg("npm dry-run exited nonzero; no targets to verify")
		return nil, nil
	}

	placed, err := parseNpmPlaceDeps(stderr)
	if err != nil {
		return nil, err
	}
	if len(placed) == 0 {
		return nil, nil
	}

	// Dependencies npm merely revisits are not installation targets.
	// If the listing fails, treat every placed dependency as a target
	// rather than risk missing one.
	installed, _, listErr := output(ctx, n.executable, "list", "--all")
	if listErr != nil {
		logging.Get().Warn().Err(listErr).
			Msg("failed to list installed npm packages; verifying all placed dependencies")
		installed = ""
	}

	return newNpmTargets(placed, installed)
}

// newNpmTargets filters the placed dependency specs down to those absent
// from the `npm list --all` output. Specs are matched as whole tokens:
// an installed name that merely ends with a placed spec (preact vs
// react) must never satisfy it, or the new package would skip
// verification entirely.
func newNpmTargets(placed []string, listing string) ([]target.InstallTarget, error) {
	installed := make(map[string]bool)
	for _, tok := range strings.Fields(listing) {
		installed[tok] = true
	}

	var targets []target.InstallTarget
	for _, spec := range placed {
		if installed[spec] {
			continue
		}
		tgt, err := npmTargetFromSpec(spec)
		if err != nil {
			return nil, err
		}
		targets = append(targets, tgt)
	}
	return target.Dedupe(targets), nil
}

// parseNpmPlaceDeps extracts the `name@version` specs from placeDep log
// lines in npm's silly-level dry-run output.
func parseNpmPlaceDeps(stderr string) ([]string, error) {
	var specs []string
	for _, line := range strings.Split(stderr, "\n") {
		if !strings.Contains(line, npmPlaceDepMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) <= npmPlaceDepToken {
			return nil, fmt.Errorf("%w: malformed npm placeDep line %q", ErrResolve, line)
		}
		specs = append(specs, fields[npmPlaceDepToken])
	}
	return specs, nil
}

// npmTargetFromSpec splits a `name@version` spec, accounting for scoped
// package names that contain a leading @.
func npmTargetFromSpec(spec string) (target.InstallTarget, error) {
	at := strings.LastIndex(spec, "@")
	if at <= 0 || at == len(spec)-1 {
		return target.InstallTarget{}, fmt.Errorf("%w: failed to parse npm dependency spec %q", ErrResolve, spec)
	}
	return target.InstallTarget{
		Ecosystem: ecosystem.Npm,
		Name:      spec[:at],
		Version:   spec[at+1:],
	}, nil
}

// npmListTree mirrors the recursive dependency tree `npm ls --json`
// prints. Audits are scoped to the current working directory's tree.
type npmListTree struct {
	Version      string                 `json:"version"`
	Dependencies map[string]npmListTree `json:"dependencies"`
}

// ListInstalled enumerates the local dependency tree of the current
// working directory.
func (n *Npm) ListInstalled(ctx context.Context) ([]target.InstallTarget, error) {
	stdout, _, err := output(ctx, n.executable, "ls", "--all", "--json")
	if err != nil {
		// npm ls exits nonzero on peer/extraneous problems while still
		// printing a usable tree.
		if strings.TrimSpace(stdout) == "" {
			return nil, fmt.Errorf("failed to list installed npm packages: %w", err)
		}
	}
	return parseNpmListJSON([]byte(stdout))
}

func parseNpmListJSON(data []byte) ([]target.InstallTarget, error) {
	var tree npmListTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: malformed npm ls output: %v", ErrResolve, err)
	}
	var targets []target.InstallTarget
	var walk func(deps map[string]npmListTree)
	walk = func(deps map[string]npmListTree) {
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			node := deps[name]
			if node.Version != "" {
				targets = append(targets, target.InstallTarget{
					Ecosystem: ecosystem.Npm,
					Name:      name,
					Version:   node.Version,
				})
			}
			walk(node.Dependencies)
		}
	}
	walk(tree.Dependencies)
	return target.Dedupe(targets), nil
}

// Run executes the original npm command.
func (n *Npm) Run(ctx context.Context, args []string) error {
	return runAttached(ctx, n.executable, args[1:]...)
}
