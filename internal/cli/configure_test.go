package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRC(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".bashrc")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func readRC(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestUpdateRCFile_AppendsBlock(t *testing.T) {
	path := writeRC(t, "export PATH=$PATH:/usr/local/bin\n")

	if err := updateRCFile(path, aliasBlock()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := readRC(t, path)
	if !strings.Contains(got, rcBlockStart) || !strings.Contains(got, rcBlockEnd) {
		t.Fatalf("managed block missing:\n%s", got)
	}
	if !strings.Contains(got, `alias pip="scfw run pip"`) {
		t.Errorf("pip alias missing:\n%s", got)
	}
	if !strings.HasPrefix(got, "export PATH") {
		t.Error("existing content was disturbed")
	}
}

func TestUpdateRCFile_Idempotent(t *testing.T) {
	path := writeRC(t, "export EDITOR=vim\n")

	for i := 0; i < 2; i++ {
		if err := updateRCFile(path, aliasBlock()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	got := readRC(t, path)
	if n := strings.Count(got, rcBlockStart); n != 1 {
		t.Fatalf("expected exactly 1 managed block, got %d:\n%s", n, got)
	}
}

func TestUpdateRCFile_RemovesBlock(t *testing.T) {
	path := writeRC(t, "export EDITOR=vim\n")

	if err := updateRCFile(path, aliasBlock()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := updateRCFile(path, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := readRC(t, path)
	if strings.Contains(got, rcBlockStart) || strings.Contains(got, "scfw run") {
		t.Fatalf("managed block not removed:\n%s", got)
	}
	if !strings.Contains(got, "export EDITOR=vim") {
		t.Error("existing content was disturbed")
	}
}

func TestUpdateRCFile_RemoveWhenAbsentIsNoop(t *testing.T) {
	original := "export EDITOR=vim\n"
	path := writeRC(t, original)

	if err := updateRCFile(path, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readRC(t, path); got != original {
		t.Fatalf("file changed unexpectedly:\n%s", got)
	}
}
