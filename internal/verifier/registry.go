package verifier

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DataDog/supply-chain-firewall/internal/logging"
)

// LoadWarning records a plugin that could not be loaded. Discovery is
// resilient: a broken plugin is skipped with a warning, never fatal.
type LoadWarning struct {
	Path   string
	Reason string
}

// Registry holds the verifiers discovered for this process: a fixed
// built-in set plus executable plugins found on the search path. It is
// constructed once and reused across invocations.
type Registry struct {
	verifiers []Verifier
	warnings  []LoadWarning
}

// NewRegistry builds a registry from the built-in verifiers and an
// optional plugin directory. An empty pluginDir disables the scan; a
// missing directory is not an error.
func NewRegistry(builtins []Verifier, pluginDir string) *Registry {
	r := &Registry{verifiers: append([]Verifier{}, builtins...)}
	if pluginDir != "" {
		r.scanPlugins(pluginDir)
	}
	return r
}

// Verifiers returns the discovered verifiers in registration order.
func (r *Registry) Verifiers() []Verifier {
	return r.verifiers
}

// Warnings returns the per-plugin load failures recorded during
// discovery.
func (r *Registry) Warnings() []LoadWarning {
	return r.warnings
}

// scanPlugins turns every executable regular file in dir into an
// exec-plugin verifier.
func (r *Registry) scanPlugins(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		r.warn(dir, fmt.Sprintf("failed to read plugin directory: %v", err))
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			r.warn(path, fmt.Sprintf("failed to stat plugin: %v", err))
			continue
		}
		if info.Mode()&0o111 == 0 {
			r.warn(path, "plugin file is not executable")
			continue
		}
		r.verifiers = append(r.verifiers, NewExecPlugin(path))
	}
}

func (r *Registry) warn(path, reason string) {
	logging.Get().Warn().Str("plugin", path).Msg(reason)
	r.warnings = append(r.warnings, LoadWarning{Path: path, Reason: reason})
}
