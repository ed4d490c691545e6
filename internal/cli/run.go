package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DataDog/supply-chain-firewall/internal/approval"
	"github.com/DataDog/supply-chain-firewall/internal/config"
	"github.com/DataDog/supply-chain-firewall/internal/decision"
	"github.com/DataDog/supply-chain-firewall/internal/firewall"
	"github.com/DataDog/supply-chain-firewall/internal/logger"
	"github.com/DataDog/supply-chain-firewall/internal/manager"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
	"github.com/DataDog/supply-chain-firewall/internal/verifiers"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <package manager command>",
	Short: "Verify and run a package manager command",
	Long: `Run a pip, npm or poetry command through the firewall. The command is
resolved to its exact installation targets via the manager's dry-run
mode and every target is verified before anything executes.

Example:
  scfw run -- pip install requests
  scfw run --dry-run -- npm install left-pad`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFirewall(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runFirewall(cmd *cobra.Command, command []string) error {
	cfg, fw, loggers, err := buildFirewall(cmd)
	if err != nil {
		return err
	}
	defer logger.CloseAll(loggers)

	pm, err := manager.Get(command, cfg.Executable)
	if err != nil {
		return err
	}
	exitCode = fw.Run(cmd.Context(), pm, command)
	return nil
}

// buildFirewall assembles the shared pipeline collaborators for the run,
// hook and audit commands.
func buildFirewall(cmd *cobra.Command) (*config.Config, *firewall.Firewall, []logger.FirewallLogger, error) {
	cfg, err := config.Load(config.Flags{
		DryRun:           flagDryRun,
		AllowOnWarning:   flagAllowOnWarning,
		BlockOnWarning:   flagBlockOnWarning,
		AllowUnsupported: flagAllowUnsupported,
		ErrorOnBlock:     flagErrorOnBlock,
		Executable:       flagExecutable,
		VerifierPath:     flagVerifierPath,
		LogFile:          flagLogFile,
		Changed:          cmd.Flags().Changed,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	policy := decision.Policy{
		Interactive:    approval.IsInteractive(),
		AllowOnWarning: cfg.AllowOnWarning,
		BlockOnWarning: cfg.BlockOnWarning,
		ErrorOnBlock:   cfg.ErrorOnBlock,
		DryRun:         cfg.DryRun,
	}
	if err := policy.Validate(); err != nil {
		return nil, nil, nil, err
	}

	registry := verifier.NewRegistry(verifiers.Builtins(cfg.HomeDir, cfg.BlocklistPath), cfg.VerifierPath)
	for _, w := range registry.Warnings() {
		cmd.PrintErrf("Warning: skipping verifier plugin %s: %s\n", w.Path, w.Reason)
	}

	orchestrator := verifier.NewOrchestrator(registry.Verifiers(), verifier.DefaultTimeout)
	loggers := logger.Discover(cfg.LogPath)
	fw := firewall.New(orchestrator, policy, approval.Confirm, loggers, cfg.AllowUnsupported, cmd.ErrOrStderr())
	return cfg, fw, loggers, nil
}
