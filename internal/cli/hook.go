package cli

import (
	"errors"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/DataDog/supply-chain-firewall/internal/firewall"
	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/manager"
)

var hookCmd = &cobra.Command{
	Use:   "hook <raw shell line>",
	Short: "Shell-hook entrypoint: intercept package manager commands transparently",
	Long: `Hook is the entrypoint for shell integration. The raw command line is
split with POSIX shell semantics; if it is a plain invocation of a
supported package manager, it runs through the firewall exactly like
scfw run. Anything else, including pipelines and commands for other
tools, executes untouched.

Example shell function:
  pip() { scfw hook "pip $*"; }`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := args[0]

		command, err := manager.SplitCommandLine(raw)
		if err != nil || len(command) == 0 || !manager.Supported(command[0]) {
			if err != nil {
				logging.Get().Debug().Err(err).Msg("not a plain command; passing through")
			}
			exitCode = passthrough(cmd, raw)
			return nil
		}
		return runFirewall(cmd, command)
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

// passthrough hands the raw line back to the shell unmodified so the
// hook is invisible for everything the firewall does not cover.
func passthrough(cmd *cobra.Command, raw string) int {
	sh := exec.CommandContext(cmd.Context(), "sh", "-c", raw)
	sh.Stdin = os.Stdin
	sh.Stdout = os.Stdout
	sh.Stderr = os.Stderr
	if err := sh.Run(); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			return exit.ExitCode()
		}
		cmd.PrintErrln("Error:", err)
		return firewall.ExitError
	}
	return firewall.ExitAllow
}
