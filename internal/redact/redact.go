// Package redact strips credentials from package manager command lines
// before they are handed to firewall loggers. Install commands routinely
// carry registry credentials (pip --index-url with basic auth, npm
// _authToken flags) that must never reach a log sink.
package redact

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{
	// Basic auth embedded in registry URLs (pip --index-url, npm --registry)
	regexp.MustCompile(`(https?://)[^/\s:]+:[^@\s]+@`),

	// npm auth tokens passed on the command line
	regexp.MustCompile(`(?i)(_authToken\s*=\s*)\S+`),
	regexp.MustCompile(`npm_[A-Za-z0-9]{36}`),

	// PyPI upload/API tokens
	regexp.MustCompile(`pypi-[A-Za-z0-9_-]{16,}`),

	// GitHub tokens in VCS requirement URLs
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),

	// Generic token/password assignments
	regexp.MustCompile(`(?i)(password|passwd|token|secret|api[_-]?key)(\s*[=:]\s*)[^\s'"]+`),
}

var replacements = []string{
	"${1}" + placeholder + "@",
	"${1}" + placeholder,
	placeholder,
	placeholder,
	placeholder,
	"${1}${2}" + placeholder,
}

// Redact replaces credential material in s with a placeholder.
func Redact(s string) string {
	for i, pattern := range sensitivePatterns {
		s = pattern.ReplaceAllString(s, replacements[i])
	}
	return s
}

// RedactArgs redacts each argument of a command line independently.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = Redact(arg)
	}
	return out
}

// RedactCommand renders a command line as a single redacted string.
func RedactCommand(args []string) string {
	return strings.Join(RedactArgs(args), " ")
}
