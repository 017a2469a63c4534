package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sells-group/reconcile-cli/internal/model"
)

var (
	// dateToken matches the date shapes found in benefits statements:
	// DD/MM/YYYY or DD/MM/YY (also with - or .), MM/YYYY competências and ISO
	// dates.
	dateToken = regexp.MustCompile(`\b(\d{1,2}[/.-]\d{1,2}[/.-](?:\d{4}|\d{2})|\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2})\b`)

	// Employer identifiers printed next to the name: CNPJ, CEI and NIT.
	identifierPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b`),
		regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{5}/\d{2}\b`),
		regexp.MustCompile(`\b\d{3}\.\d{5}\.\d{2}-\d\b`),
		regexp.MustCompile(`\b\d{11,14}\b`),
	}

	leadingSequence = regexp.MustCompile(`^\s*\d{1,3}\s*[-.)]?\s+`)
)

// ParseText extracts periods from OCR'd statement text, one per line. A
// line qualifies when it carries at least one date and some text before it:
// that text (minus sequence numbers and employer identifiers) is the
// company, the first date is the start and the second, if any, the end.
func ParseText(text string, source model.Source) []model.RawPeriod {
	periods := []model.RawPeriod{}
	for _, line := range strings.Split(text, "\n") {
		p, ok := parseLine(line)
		if !ok {
			continue
		}
		p.Source = source
		periods = append(periods, p)
	}
	return periods
}

func parseLine(line string) (model.RawPeriod, bool) {
	for _, re := range identifierPatterns {
		line = re.ReplaceAllString(line, " ")
	}

	locs := dateToken.FindAllStringIndex(line, 2)
	if len(locs) == 0 {
		return model.RawPeriod{}, false
	}

	company := leadingSequence.ReplaceAllString(line[:locs[0][0]], "")
	company = strings.TrimFunc(company, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	company = strings.Join(strings.Fields(company), " ")
	if !strings.ContainsFunc(company, unicode.IsLetter) {
		return model.RawPeriod{}, false
	}

	p := model.RawPeriod{
		Company:   company,
		StartDate: line[locs[0][0]:locs[0][1]],
	}
	if len(locs) > 1 {
		p.EndDate = line[locs[1][0]:locs[1][1]]
	}
	return p, true
}
