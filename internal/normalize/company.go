// Package normalize turns raw employment periods into comparable records:
// canonical employer names, parsed dates and computed durations.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// suffixRule rewrites one family of legal-entity designations to a fixed token.
type suffixRule struct {
	token string
	re    *regexp.Regexp
}

// suffixRules are applied in order: LTDA, S.A., EIRELI, ME, EPP.
var suffixRules = []suffixRule{
	{"LTDA", regexp.MustCompile(`\b(LTDA|LIMITADA|LTD)\b\.?`)},
	{"SA", regexp.MustCompile(`\bS\s*[./]\s*A\b\.?|\bSOCIEDADE\s+ANONIMA\b|\bSA\b`)},
	{"EIRELI", regexp.MustCompile(`\bE\.?I\.?R\.?E\.?L\.?I\b\.?`)},
	{"ME", regexp.MustCompile(`\bM\.\s?E\b\.?|\bMICROEMPRESA\b`)},
	{"EPP", regexp.MustCompile(`\bE\.P\.P\b\.?|\bEMPRESA\s+DE\s+PEQUENO\s+PORTE\b`)},
}

// legalTokens are the canonical suffix tokens produced by suffixRules.
var legalTokens = map[string]bool{
	"LTDA":   true,
	"SA":     true,
	"EIRELI": true,
	"ME":     true,
	"EPP":    true,
}

var multiSpaceRe = regexp.MustCompile(`\s+`)

// CanonicalCompany standardizes an employer name for matching by:
//  1. Folding accents (CONSTRUÇÕES -> CONSTRUCOES)
//  2. Converting to uppercase
//  3. Rewriting legal-entity suffixes to fixed tokens (S/A -> SA, Limitada -> LTDA)
//  4. Replacing & with E and stripping everything outside [A-Z0-9 ]
//  5. Collapsing whitespace
//
// The result is idempotent: CanonicalCompany(CanonicalCompany(x)) == CanonicalCompany(x).
func CanonicalCompany(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(foldAccents(name))
	name = applySuffixRules(name)
	name = strings.ReplaceAll(name, "&", " E ")

	name = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, name)

	// Stripping punctuation can expose spelled-out designations that were
	// glued to other tokens, so the rules run a second time.
	name = applySuffixRules(name)

	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(name, " "))
}

func applySuffixRules(name string) string {
	for _, rule := range suffixRules {
		name = rule.re.ReplaceAllString(name, " "+rule.token+" ")
	}
	return name
}

// CoreName strips legal tokens from a canonical name. A name made only of
// legal tokens is returned unchanged.
func CoreName(canonical string) string {
	tokens := strings.Fields(canonical)
	core := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !legalTokens[t] {
			core = append(core, t)
		}
	}
	if len(core) == 0 {
		return canonical
	}
	return strings.Join(core, " ")
}

// IsLegalToken reports whether tok is a canonical legal-entity token.
func IsLegalToken(tok string) bool {
	return legalTokens[tok]
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// FoldHeader lowercases and strips accents and surrounding punctuation. Used
// for matching spreadsheet column headers against known aliases.
func FoldHeader(s string) string {
	s = strings.ToLower(foldAccents(strings.TrimSpace(s)))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}
