package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donsko1/DNS-case/internal/contracts"
)

// dateLayouts are tried in order when parsing the sales date column
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02.01.2006",
}

// table is a fully loaded CSV file addressed by column name.
// Columns nobody asks for (e.g. the "Unnamed: 0" index) are simply ignored.
type table struct {
	path    string
	columns map[string]int
	rows    [][]string
}

// readTable loads path and checks that every required column is present
func readTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSourceUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: missing header", contracts.ErrSchemaMismatch, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrMalformedRecord, path, err)
	}

	t := &table{path: path, columns: make(map[string]int, len(header))}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		t.columns[strings.TrimSpace(name)] = i
	}

	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, fmt.Errorf("%w: %s: column %q not found", contracts.ErrSchemaMismatch, path, col)
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrMalformedRecord, path, err)
	}
	t.rows = rows

	return t, nil
}

// get returns the cell of column col in row i as written. Identifiers,
// names and categories are compared byte for byte downstream.
func (t *table) get(i int, col string) string {
	return t.rows[i][t.columns[col]]
}

// blank reports whether the cell holds nothing but whitespace
func (t *table) blank(i int, col string) bool {
	return strings.TrimSpace(t.get(i, col)) == ""
}

// malformed builds an error pointing at a data line (header is line 1)
func (t *table) malformed(i int, col string, err error) error {
	return fmt.Errorf("%w: %s line %d column %q: %v", contracts.ErrMalformedRecord, t.path, i+2, col, err)
}

// parseCount parses a non-negative unit count. Empty cells count as zero;
// integral floats such as "12.0" are accepted.
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("not an integer: %q", s)
		}
		n = int64(f)
	}

	if n < 0 {
		return 0, fmt.Errorf("negative count: %d", n)
	}
	return n, nil
}

// parseDate parses a sale date with any of dateLayouts
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", s)
}

// parsePercent parses a persisted percent_defects cell
func parsePercent(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// formatPercent renders a percentage the way it was always written to the
// aggregated and result files: at least one decimal place ("2.0", "33.33")
func formatPercent(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
