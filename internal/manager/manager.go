// Package manager models the supported package managers behind a single
// interface. Each manager is one variant selected by the leading token of
// the command line; new managers are added as new variants, not by
// touching shared logic.
//
// Every external invocation a variant performs on the firewall's behalf
// is read-only: version queries, dry-run resolution, and installed
// package listings. Only Run executes the user's original command.
package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/target"
)

// Classification is the compatibility gate's verdict on a command line.
type Classification int

const (
	// NotInstallish marks a command that cannot add packages to the
	// environment. It is passed through without resolution or verification.
	NotInstallish Classification = iota
	// Installish marks a command that may install packages and must be
	// resolved and verified before it runs.
	Installish
	// UnsupportedVersion marks an installish command whose manager is
	// older than the minimum the firewall can safely drive.
	UnsupportedVersion
)

func (c Classification) String() string {
	switch c {
	case NotInstallish:
		return "NOT_INSTALLISH"
	case Installish:
		return "INSTALLISH"
	case UnsupportedVersion:
		return "UNSUPPORTED_VERSION"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// PackageManager is the tagged-variant interface each supported manager
// implements.
type PackageManager interface {
	// Name returns the command-line token that invokes the manager.
	Name() string

	// Ecosystem returns the registry namespace the manager installs from.
	Ecosystem() ecosystem.Ecosystem

	// Executable returns the resolved filesystem path used to drive the
	// manager.
	Executable() string

	// Version queries the manager's version with a side-effect-free
	// invocation and reports whether it meets the supported minimum.
	Version(ctx context.Context) (string, bool, error)

	// IsInstallish reports whether the command line invokes a subcommand
	// capable of installing packages.
	IsInstallish(args []string) bool

	// ResolveTargets determines, via the manager's dry-run mode, the
	// packages the command would install. It must not mutate the
	// environment, lock files, or caches. Unparsable dry-run output is an
	// error wrapping ErrResolve, never a partial list.
	ResolveTargets(ctx context.Context, args []string) ([]target.InstallTarget, error)

	// ListInstalled enumerates the packages currently visible to the
	// manager in the active environment.
	ListInstalled(ctx context.Context) ([]target.InstallTarget, error)

	// Run executes the original command with stdio attached.
	Run(ctx context.Context, args []string) error
}

// UnsupportedVersionError reports a manager below the supported minimum.
type UnsupportedVersionError struct {
	Manager string
	Got     string
	Min     string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("%s %s is not supported (minimum %s)", e.Manager, e.Got, e.Min)
}

// ErrResolve marks a dry-run whose output could not be parsed. A partial
// target list is a correctness hazard, so resolution fails closed.
var ErrResolve = errors.New("failed to resolve installation targets")

// Get returns the PackageManager variant for the given command line.
// The executable argument, when non-empty, overrides environment-based
// executable discovery. An unreachable executable is a fatal error: the
// firewall fails closed rather than letting an unverified command run.
func Get(command []string, executable string) (PackageManager, error) {
	if len(command) == 0 {
		return nil, errors.New("missing package manager command")
	}
	switch command[0] {
	case pipName:
		return NewPip(executable)
	case npmName:
		return NewNpm(executable)
	case poetryName:
		return NewPoetry(executable)
	default:
		return nil, fmt.Errorf("unsupported package manager %q", command[0])
	}
}

// Supported reports whether the leading token of a command line names a
// supported package manager.
func Supported(name string) bool {
	switch name {
	case pipName, npmName, poetryName:
		return true
	default:
		return false
	}
}

// Classify runs the compatibility gate for a command line: non-installish
// commands short-circuit to NotInstallish without any version query;
// installish commands additionally require a supported manager version.
func Classify(ctx context.Context, pm PackageManager, args []string) (Classification, error) {
	if !pm.IsInstallish(args) {
		return NotInstallish, nil
	}
	got, ok, err := pm.Version(ctx)
	if err != nil {
		return UnsupportedVersion, fmt.Errorf("failed to query %s version: %w", pm.Name(), err)
	}
	if !ok {
		return UnsupportedVersion, &UnsupportedVersionError{Manager: pm.Name(), Got: got, Min: minVersion(pm.Name())}
	}
	return Installish, nil
}
