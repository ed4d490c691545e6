package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

// IsInteractive reports whether stdin is attached to a terminal. The
// confirmation prompt is only usable interactively; everything else
// falls back to the policy's non-interactive behavior.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Confirm shows the verification report and asks whether to proceed
// with installation anyway. It reads from stdin and writes to stderr so
// the wrapped package manager's stdout stays clean.
func Confirm(report *verifier.Report) (bool, error) {
	return confirm(report, os.Stdin, os.Stderr)
}

func confirm(report *verifier.Report, in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Installation targets were flagged by verification:")
	fmt.Fprintln(out)
	fmt.Fprint(out, report.Show())
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "Proceed with installation anyway? [y/N]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		switch strings.TrimSpace(strings.ToLower(line)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer 'y' or 'n'.")
		}
	}
}
