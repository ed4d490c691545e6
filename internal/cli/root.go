package cli

import (
	"github.com/spf13/cobra"

	"github.com/DataDog/supply-chain-firewall/internal/firewall"
)

var (
	flagDryRun           bool
	flagAllowOnWarning   bool
	flagBlockOnWarning   bool
	flagAllowUnsupported bool
	flagErrorOnBlock     bool
	flagExecutable       string
	flagVerifierPath     string
	flagLogFile          string
)

// exitCode is set by subcommand handlers and returned by Execute so
// main can map decisions to process status without os.Exit scattered
// through the command tree.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "scfw",
	Short: "A tool for preventing the installation of malicious PyPI and npm packages",
	Long: `Supply-Chain Firewall intercepts pip, npm and poetry commands, resolves
the exact set of packages they would install, checks each target against
multiple sources of malicious package intelligence, and blocks the
installation when anything is flagged.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flagDryRun, "dry-run", false, "Verify the command but do not run it")
	pf.BoolVar(&flagAllowOnWarning, "allow-on-warning", false, "Proceed past WARNING findings without prompting")
	pf.BoolVar(&flagBlockOnWarning, "block-on-warning", false, "Refuse commands with WARNING findings")
	pf.BoolVar(&flagAllowUnsupported, "allow-unsupported", false, "Run commands on unsupported package manager versions, verifying targets when they can still be resolved")
	pf.BoolVar(&flagErrorOnBlock, "error-on-block", false, "Exit nonzero when audit finds critical findings")
	pf.StringVar(&flagExecutable, "executable", "", "Package manager executable to use instead of discovery")
	pf.StringVar(&flagVerifierPath, "verifier-path", "", "Directory of executable verifier plugins")
	pf.StringVar(&flagLogFile, "log-file", "", "Path to the JSONL decision log (default: $SCFW_HOME/scfw.jsonl)")
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		return firewall.ExitError
	}
	return exitCode
}
