package ingest

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
)

// headerScanRows bounds how far below HeaderRow a header is searched for,
// to skip title and filter rows above the table.
const headerScanRows = 10

type column int

const (
	colCompany column = iota
	colRole
	colStart
	colEnd
	numColumns
)

// headerAliases maps folded header text (lowercase, no accents) to columns.
var headerAliases = map[column][]string{
	colCompany: {
		"empresa", "empregador", "razao social", "nome da empresa", "nome empresa",
		"origem do vinculo", "estabelecimento", "company", "employer", "company name",
	},
	colRole: {
		"cargo", "funcao", "ocupacao", "role", "position", "title", "job title",
	},
	colStart: {
		"admissao", "data admissao", "data de admissao", "inicio", "data inicio",
		"data de inicio", "data inicial", "entrada", "start", "start date", "from",
	},
	colEnd: {
		"demissao", "data demissao", "data de demissao", "fim", "data fim", "data de fim",
		"data final", "saida", "data de saida", "data saida", "termino", "data de termino",
		"end", "end date", "to",
	},
}

// FromRows converts tabular rows into periods. The header is the first row
// at or below headerRow that names both a company and a start date column.
// Rows whose company and date cells are all empty are skipped.
func FromRows(rows [][]string, headerRow int, source model.Source) ([]model.RawPeriod, error) {
	idx, cols, ok := findHeader(rows, headerRow)
	if !ok {
		return nil, eris.New("ingest: no header row with company and start date columns")
	}

	periods := make([]model.RawPeriod, 0, len(rows)-idx-1)
	for _, row := range rows[idx+1:] {
		p := model.RawPeriod{
			Company:   cell(row, cols[colCompany]),
			Role:      cell(row, cols[colRole]),
			StartDate: cell(row, cols[colStart]),
			EndDate:   cell(row, cols[colEnd]),
			Source:    source,
		}
		if p.Company == "" && p.StartDate == "" && p.EndDate == "" {
			continue
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func findHeader(rows [][]string, from int) (int, [numColumns]int, bool) {
	for i := max(from, 0); i < len(rows) && i <= from+headerScanRows; i++ {
		cols := mapColumns(rows[i])
		if cols[colCompany] >= 0 && cols[colStart] >= 0 {
			return i, cols, true
		}
	}
	return 0, [numColumns]int{}, false
}

// mapColumns assigns header cells to columns, preferring exact alias matches
// over headers that merely contain an alias as a whole word.
func mapColumns(header []string) [numColumns]int {
	var cols [numColumns]int
	for c := range cols {
		cols[c] = -1
	}
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = normalize.FoldHeader(h)
	}

	taken := make(map[int]bool)
	assign := func(match func(h, alias string) bool) {
		for c := column(0); c < numColumns; c++ {
			if cols[c] >= 0 {
				continue
			}
			for i, h := range folded {
				if h == "" || taken[i] {
					continue
				}
				if matchesAny(h, headerAliases[c], match) {
					cols[c] = i
					taken[i] = true
					break
				}
			}
		}
	}
	assign(func(h, alias string) bool { return h == alias })
	assign(func(h, alias string) bool {
		return len(alias) > 2 && strings.Contains(" "+h+" ", " "+alias+" ")
	})
	return cols
}

func matchesAny(h string, aliases []string, match func(h, alias string) bool) bool {
	for _, a := range aliases {
		if match(h, a) {
			return true
		}
	}
	return false
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
