package manager

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Minimum supported versions. Older releases lack the dry-run and
// machine-readable report features the resolver depends on.
const (
	minPipVersion    = "22.2"
	minNpmVersion    = "7.0.0"
	minPoetryVersion = "1.7.0"
)

func minVersion(name string) string {
	switch name {
	case pipName:
		return minPipVersion
	case npmName:
		return minNpmVersion
	case poetryName:
		return minPoetryVersion
	default:
		return ""
	}
}

// versionAtLeast compares two dotted version strings under semantic
// version ordering. Package managers print bare versions ("22.2",
// "10.8.1"), so both sides are canonicalized before comparison.
// Unparsable versions compare as unsupported.
func versionAtLeast(got, min string) bool {
	g := canonicalVersion(got)
	m := canonicalVersion(min)
	if !semver.IsValid(g) || !semver.IsValid(m) {
		return false
	}
	return semver.Compare(g, m) >= 0
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	// Strip pre-release/build suffixes conservatively after padding.
	base := v
	var suffix string
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		base, suffix = v[:i], v[i:]
	}
	switch strings.Count(base, ".") {
	case 0:
		base += ".0.0"
	case 1:
		base += ".0"
	}
	return "v" + base + suffix
}
