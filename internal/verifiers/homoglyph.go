package verifiers

import (
	"context"
	"fmt"
	"unicode"

	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

const homoglyphVerifierName = "HomoglyphVerifier"

// HomoglyphVerifier flags package names containing characters that are
// invisible or visually confusable with ASCII. Registries normalize
// names to ASCII, so any such character in a requested name means the
// user is not installing the package they think they are.
//
// Invisible and direction-override characters are graded CRITICAL: they
// have no legitimate use in a package name. Confusable letters from
// other scripts are graded WARNING.
type HomoglyphVerifier struct{}

func NewHomoglyphVerifier() *HomoglyphVerifier { return &HomoglyphVerifier{} }

func (v *HomoglyphVerifier) Name() string { return homoglyphVerifierName }

func (v *HomoglyphVerifier) Verify(ctx context.Context, targets []target.InstallTarget) ([]verifier.Finding, error) {
	var findings []verifier.Finding
	for _, t := range targets {
		for _, r := range t.Name {
			severity, desc := gradeRune(r)
			if desc == "" {
				continue
			}
			findings = append(findings, verifier.Finding{
				Target:   t.Key(),
				Severity: severity,
				Message:  fmt.Sprintf("Package name %q contains %s", t.Name, desc),
				Verifier: homoglyphVerifierName,
			})
			break // one finding per name is enough
		}
	}
	return findings, nil
}

func gradeRune(r rune) (verifier.Severity, string) {
	cp := fmt.Sprintf("U+%04X", r)
	switch {
	case isInvisible(r):
		return verifier.SeverityCritical, fmt.Sprintf("invisible character %s", cp)
	case isBidiControl(r):
		return verifier.SeverityCritical, fmt.Sprintf("bidirectional control character %s", cp)
	case unicode.IsControl(r):
		return verifier.SeverityCritical, fmt.Sprintf("control character %s", cp)
	}
	if unicode.Is(unicode.Cyrillic, r) {
		if latin, ok := cyrillicConfusables[r]; ok {
			return verifier.SeverityWarning, fmt.Sprintf("Cyrillic %s confusable with Latin %q", cp, latin)
		}
	}
	if unicode.Is(unicode.Greek, r) {
		if latin, ok := greekConfusables[r]; ok {
			return verifier.SeverityWarning, fmt.Sprintf("Greek %s confusable with Latin %q", cp, latin)
		}
	}
	return "", ""
}

func isInvisible(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // ZERO WIDTH NO-BREAK SPACE (BOM)
		'\u2060', // WORD JOINER
		'\u180E', // MONGOLIAN VOWEL SEPARATOR
		'\u200E', // LEFT-TO-RIGHT MARK
		'\u200F': // RIGHT-TO-LEFT MARK
		return true
	}
	// Unicode tag characters
	return r >= 0xE0001 && r <= 0xE007F
}

func isBidiControl(r rune) bool {
	switch r {
	case '\u202A', '\u202B', '\u202C', '\u202D', '\u202E',
		'\u2066', '\u2067', '\u2068', '\u2069':
		return true
	}
	return false
}

// Cyrillic letters visually confusable with Latin letters.
var cyrillicConfusables = map[rune]rune{
	'а': 'a',
	'А': 'A',
	'В': 'B',
	'с': 'c',
	'С': 'C',
	'е': 'e',
	'Е': 'E',
	'Н': 'H',
	'і': 'i',
	'І': 'I',
	'К': 'K',
	'М': 'M',
	'о': 'o',
	'О': 'O',
	'р': 'p',
	'Р': 'P',
	'Т': 'T',
	'х': 'x',
	'Х': 'X',
	'у': 'y',
	'У': 'Y',
}

// Greek letters visually confusable with Latin letters.
var greekConfusables = map[rune]rune{
	'Α': 'A',
	'Β': 'B',
	'Ε': 'E',
	'Η': 'H',
	'Ι': 'I',
	'Κ': 'K',
	'Μ': 'M',
	'Ν': 'N',
	'Ο': 'O',
	'ο': 'o',
	'Ρ': 'P',
	'Τ': 'T',
	'Χ': 'X',
	'Υ': 'Y',
	'Ζ': 'Z',
}
