package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DataDog/supply-chain-firewall/internal/logger"
	"github.com/DataDog/supply-chain-firewall/internal/manager"
)

var auditManager string

var auditCmd = &cobra.Command{
	Use:   "audit --manager <pip|npm|poetry>",
	Short: "Verify the packages already installed in the active environment",
	Long: `Audit checks every package currently visible to the given manager
against the same verifiers used for installations. Audit is advisory:
it reports findings and never uninstalls anything. Use --error-on-block
to exit nonzero on critical findings in scripts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !manager.Supported(auditManager) {
			return fmt.Errorf("unsupported package manager %q", auditManager)
		}

		cfg, fw, loggers, err := buildFirewall(cmd)
		if err != nil {
			return err
		}
		defer logger.CloseAll(loggers)

		pm, err := manager.Get([]string{auditManager}, cfg.Executable)
		if err != nil {
			return err
		}
		exitCode = fw.Audit(cmd.Context(), pm, cfg.ErrorOnBlock)
		return nil
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditManager, "manager", "", "Package manager whose environment to audit (required)")
	_ = auditCmd.MarkFlagRequired("manager")
	rootCmd.AddCommand(auditCmd)
}
