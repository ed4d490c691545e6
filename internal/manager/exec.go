package manager

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// output runs an external command and captures stdout and stderr
// separately. The context bounds the invocation so an interrupt kills
// in-flight dry-runs and version queries.
func output(ctx context.Context, name string, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// runAttached executes a command with the caller's stdio, used only for
// running the user's original, already-verified command.
func runAttached(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
