package verifier

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRegistry_BuiltinsOnly(t *testing.T) {
	builtin := &stubVerifier{name: "builtin"}
	r := NewRegistry([]Verifier{builtin}, "")
	if len(r.Verifiers()) != 1 {
		t.Fatalf("expected 1 verifier, got %d", len(r.Verifiers()))
	}
	if len(r.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", r.Warnings())
	}
}

func TestNewRegistry_MissingPluginDirIsNotAnError(t *testing.T) {
	r := NewRegistry(nil, filepath.Join(t.TempDir(), "does-not-exist"))
	if len(r.Warnings()) != 0 {
		t.Errorf("a missing plugin directory must not produce warnings, got %v", r.Warnings())
	}
}

func TestNewRegistry_ScansExecutablePlugins(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "my-verifier")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho '[]'\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil, dir)
	verifiers := r.Verifiers()
	if len(verifiers) != 1 {
		t.Fatalf("expected 1 plugin verifier, got %d", len(verifiers))
	}
	if verifiers[0].Name() != "plugin:my-verifier" {
		t.Errorf("unexpected plugin name: %s", verifiers[0].Name())
	}
}

func TestNewRegistry_NonExecutableIsSkippedWithWarning(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a plugin"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil, dir)
	if len(r.Verifiers()) != 0 {
		t.Fatalf("non-executable files must not become verifiers, got %d", len(r.Verifiers()))
	}
	if len(r.Warnings()) != 1 {
		t.Fatalf("expected 1 load warning, got %v", r.Warnings())
	}
}

func TestNewRegistry_BrokenPluginDoesNotPoisonRegistry(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "good"), []byte("#!/bin/sh\necho '[]'\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry([]Verifier{&stubVerifier{name: "builtin"}}, dir)
	if len(r.Verifiers()) != 2 {
		t.Fatalf("expected builtin + good plugin, got %d verifiers", len(r.Verifiers()))
	}
	if len(r.Warnings()) != 1 {
		t.Fatalf("expected 1 warning for the broken plugin, got %v", r.Warnings())
	}
}
