package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultHomeDir   = ".scfw"
	DefaultLogFile   = "scfw.jsonl"
	DefaultBlocklist = "blocklist.yaml"
)

// Environment variable names. A CLI flag that covers the same setting
// always wins over the variable.
const (
	EnvHome             = "SCFW_HOME"
	EnvDryRun           = "SCFW_DRY_RUN"
	EnvOnWarning        = "SCFW_ON_WARNING"
	EnvAllowUnsupported = "SCFW_ALLOW_UNSUPPORTED"
	EnvErrorOnBlock     = "SCFW_ERROR_ON_BLOCK"
	EnvExecutable       = "SCFW_EXECUTABLE"
	EnvVerifierPath     = "SCFW_VERIFIER_PATH"
	EnvLogFile          = "SCFW_LOG_FILE"
)

// Flags carries the raw CLI flag values. Changed marks flags the user
// set explicitly, so unset flags can defer to environment variables.
type Flags struct {
	DryRun           bool
	AllowOnWarning   bool
	BlockOnWarning   bool
	AllowUnsupported bool
	ErrorOnBlock     bool
	Executable       string
	VerifierPath     string
	LogFile          string

	Changed func(name string) bool
}

// Config is the fully resolved run-time configuration.
type Config struct {
	HomeDir          string
	DryRun           bool
	AllowOnWarning   bool
	BlockOnWarning   bool
	AllowUnsupported bool
	ErrorOnBlock     bool
	Executable       string
	VerifierPath     string
	LogPath          string
	BlocklistPath    string
}

// Load resolves configuration from flags and SCFW_* environment
// variables, creating the home directory if needed.
func Load(flags Flags) (*Config, error) {
	homeDir, err := resolveHome()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(homeDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", homeDir, err)
	}

	cfg := &Config{
		HomeDir:          homeDir,
		DryRun:           boolSetting(flags, "dry-run", flags.DryRun, EnvDryRun),
		AllowUnsupported: boolSetting(flags, "allow-unsupported", flags.AllowUnsupported, EnvAllowUnsupported),
		ErrorOnBlock:     boolSetting(flags, "error-on-block", flags.ErrorOnBlock, EnvErrorOnBlock),
		Executable:       stringSetting(flags, "executable", flags.Executable, EnvExecutable),
		VerifierPath:     stringSetting(flags, "verifier-path", flags.VerifierPath, EnvVerifierPath),
		BlocklistPath:    filepath.Join(homeDir, DefaultBlocklist),
	}

	cfg.AllowOnWarning, cfg.BlockOnWarning, err = resolveOnWarning(flags)
	if err != nil {
		return nil, err
	}

	cfg.LogPath = stringSetting(flags, "log-file", flags.LogFile, EnvLogFile)
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(homeDir, DefaultLogFile)
	}
	return cfg, nil
}

func resolveHome() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(userHome, DefaultHomeDir), nil
}

// resolveOnWarning merges the two warning flags with SCFW_ON_WARNING.
// Either flag being set explicitly overrides the variable entirely.
func resolveOnWarning(flags Flags) (allow, block bool, err error) {
	if changed(flags, "allow-on-warning") || changed(flags, "block-on-warning") {
		return flags.AllowOnWarning, flags.BlockOnWarning, nil
	}
	switch mode := strings.ToLower(os.Getenv(EnvOnWarning)); mode {
	case "", "prompt":
		return flags.AllowOnWarning, flags.BlockOnWarning, nil
	case "allow":
		return true, false, nil
	case "block":
		return false, true, nil
	default:
		return false, false, fmt.Errorf("invalid %s value %q (want allow, block or prompt)", EnvOnWarning, mode)
	}
}

func changed(flags Flags, name string) bool {
	return flags.Changed != nil && flags.Changed(name)
}

func boolSetting(flags Flags, name string, flagValue bool, envVar string) bool {
	if changed(flags, name) {
		return flagValue
	}
	if raw := os.Getenv(envVar); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return flagValue
}

func stringSetting(flags Flags, name string, flagValue string, envVar string) string {
	if changed(flags, name) || flagValue != "" {
		return flagValue
	}
	return os.Getenv(envVar)
}
