package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
)

const (
	rcBlockStart = "# BEGIN SCFW MANAGED BLOCK"
	rcBlockEnd   = "# END SCFW MANAGED BLOCK"
)

var rcFiles = []string{".bashrc", ".zshrc"}

var configureRemove bool

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure your shell to route package manager commands through scfw",
	Long: `Configure adds a managed block to your .bashrc and .zshrc that aliases
pip, npm and poetry to run through the firewall. Re-running updates the
block in place; --remove deletes it.

  scfw configure            # install aliases
  scfw configure --remove   # remove all scfw-managed configuration`,
	RunE: configureCommand,
}

func init() {
	configureCmd.Flags().BoolVar(&configureRemove, "remove", false, "Remove the scfw-managed block from your shell configuration")
	rootCmd.AddCommand(configureCmd)
}

func configureCommand(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to locate home directory: %w", err)
	}

	block := ""
	if !configureRemove {
		block = aliasBlock()
	}

	updated := 0
	for _, name := range rcFiles {
		path := filepath.Join(home, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := updateRCFile(path, block); err != nil {
			return fmt.Errorf("failed to update %s: %w", path, err)
		}
		updated++
	}
	if updated == 0 {
		return fmt.Errorf("no shell configuration files found (looked for %s)", strings.Join(rcFiles, ", "))
	}

	if configureRemove {
		fmt.Println("All scfw-managed configuration has been removed from your shell.")
	} else {
		fmt.Println("Shell configuration updated.")
	}
	fmt.Println("Source your .bashrc/.zshrc or open a new shell for the change to take effect.")
	return nil
}

func aliasBlock() string {
	var sb strings.Builder
	for _, name := range []string{"pip", "npm", "poetry"} {
		fmt.Fprintf(&sb, "\nalias %s=\"scfw run %s\"", name, name)
	}
	return sb.String()
}

var rcBlockRe = regexp.MustCompile("(?s)\n?" + regexp.QuoteMeta(rcBlockStart) + ".*?" + regexp.QuoteMeta(rcBlockEnd) + "\n?")

// updateRCFile replaces the managed block in an rc file, appending it if
// absent and stripping it entirely when block is empty. The write goes
// through a temp file in the same directory so a crash never truncates
// the user's shell configuration.
func updateRCFile(path, block string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contents := string(data)

	replacement := ""
	if block != "" {
		replacement = "\n" + rcBlockStart + block + "\n" + rcBlockEnd + "\n"
	}

	var updated string
	if rcBlockRe.MatchString(contents) {
		updated = rcBlockRe.ReplaceAllString(contents, replacement)
	} else if block != "" {
		updated = contents + replacement
	} else {
		return nil
	}
	if updated == contents {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".scfw-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(updated); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
