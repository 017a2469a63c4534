package similarity

import (
	"strings"

	"github.com/agext/levenshtein"
	"github.com/xrash/smetrics"

	"github.com/sells-group/reconcile-cli/internal/normalize"
)

// stopwords are connectors that carry no identifying weight in employer names.
var stopwords = map[string]bool{
	"A": true, "O": true, "E": true, "DE": true, "DA": true, "DO": true,
	"DAS": true, "DOS": true, "EM": true, "THE": true, "OF": true, "AND": true,
	"CIA": true, "COMPANHIA": true,
}

// levenshteinSimilarity is 1 - distance/max(len) over runes.
func levenshteinSimilarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil)
}

// jaroSimilarity is the Jaro metric of two canonical names.
func jaroSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return smetrics.Jaro(a, b)
}

// tokenJaccard computes Jaccard similarity on word sets.
func tokenJaccard(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}

func jaccard(wordsA, wordsB map[string]bool) float64 {
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}

	union := len(wordsA)
	for w := range wordsB {
		if !wordsA[w] {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// significantTokens drops stopwords, legal tokens and one-letter tokens.
func significantTokens(core string) []string {
	var out []string
	for _, w := range strings.Fields(core) {
		if len(w) < 2 || stopwords[w] || normalize.IsLegalToken(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// keywordOverlap is the overlap coefficient of significant business terms:
// |A∩B| / min(|A|,|B|). "PETROBRAS" fully overlaps "PETROBRAS DISTRIBUIDORA".
func keywordOverlap(coreA, coreB string) float64 {
	a := toSet(significantTokens(coreA))
	b := toSet(significantTokens(coreB))
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	return float64(shared) / float64(min(len(a), len(b)))
}

// abbreviationScore detects one name being the acronym of the other
// (CEF vs CAIXA ECONOMICA FEDERAL). Identical cores score 1; names whose
// initials coincide score 0.5.
func abbreviationScore(coreA, coreB string) float64 {
	if coreA == "" || coreB == "" {
		return 0
	}
	if coreA == coreB {
		return 1
	}
	if isAcronymOf(coreA, coreB) || isAcronymOf(coreB, coreA) {
		return 1
	}
	ia, ib := initials(coreA, true), initials(coreB, true)
	if len(ia) >= 2 && ia == ib {
		return 0.5
	}
	return 0
}

// isAcronymOf reports whether short is a single token spelling the initials
// of long, with or without connectors.
func isAcronymOf(short, long string) bool {
	if strings.Contains(short, " ") || len(short) < 2 {
		return false
	}
	if len(strings.Fields(long)) < 2 {
		return false
	}
	return short == initials(long, true) || short == initials(long, false)
}

func initials(s string, skipStopwords bool) string {
	var b strings.Builder
	for _, w := range strings.Fields(s) {
		if skipStopwords && stopwords[w] {
			continue
		}
		b.WriteByte(w[0])
	}
	return b.String()
}

// phoneticScore compares the Soundex codes of significant tokens.
func phoneticScore(coreA, coreB string) float64 {
	return jaccard(soundexSet(coreA), soundexSet(coreB))
}

func soundexSet(core string) map[string]bool {
	tokens := significantTokens(core)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if code := soundex(t); code != "" {
			set[code] = true
		}
	}
	return set
}

// soundex returns the Soundex code of an uppercase word, or "" if the word
// does not start with a letter.
func soundex(word string) string {
	if word == "" || word[0] < 'A' || word[0] > 'Z' {
		return ""
	}
	return smetrics.Soundex(word)
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
