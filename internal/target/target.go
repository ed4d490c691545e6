// Package target defines the canonical unit of verification: a concrete
// package release that a package manager command would install.
package target

import (
	"fmt"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
)

// InstallTarget is a single (ecosystem, name, version) package release.
// Source optionally carries a location hint such as a VCS or tarball URL
// reported by the package manager during resolution.
type InstallTarget struct {
	Ecosystem ecosystem.Ecosystem
	Name      string
	Version   string
	Source    string
}

// Key identifies a target for equality and map indexing. Source is
// deliberately excluded: the same release fetched from two locations is
// still the same release.
type Key struct {
	Ecosystem ecosystem.Ecosystem
	Name      string
	Version   string
}

func (t InstallTarget) Key() Key {
	return Key{Ecosystem: t.Ecosystem, Name: t.Name, Version: t.Version}
}

func (t InstallTarget) String() string {
	return fmt.Sprintf("%s|%s:%s", t.Ecosystem, t.Name, t.Version)
}

// Dedupe removes duplicate targets while preserving first-seen order.
// Resolution order is irrelevant for verification but kept stable so
// reports are deterministic.
func Dedupe(targets []InstallTarget) []InstallTarget {
	seen := make(map[Key]bool, len(targets))
	out := make([]InstallTarget, 0, len(targets))
	for _, t := range targets {
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		out = append(out, t)
	}
	return out
}
