package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// Column names of the four datasets
const (
	ColProductID = "fk_product"
	ColProduct   = "product"
	ColType      = "type"
	ColDate      = "date"
	ColSold      = "solds"
	ColDefects   = "defects_entry_period_sale"
	ColPercent   = "percent_defects"
	ColGrade     = "grade"
)

var (
	aggregatedHeader = []string{ColProductID, ColSold, ColDefects, ColProduct, ColPercent}
	resultHeader     = []string{ColProductID, ColPercent, ColGrade}
)

// Store keeps the pipeline tables as CSV files in one directory
// ⭐ SSOT: CSV 파일 입출력은 이 패키지에서만
type Store struct {
	dir    string
	tables pipelineconfig.Tables
	logger *logger.Logger
}

// New creates a CSV store rooted at dir
func New(dir string, tables pipelineconfig.Tables, log *logger.Logger) *Store {
	return &Store{
		dir:    dir,
		tables: tables,
		logger: log,
	}
}

// Path returns the file backing a table name
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

// LoadProducts reads the product dimension table
func (s *Store) LoadProducts(ctx context.Context) ([]contracts.Product, error) {
	t, err := readTable(s.Path(s.tables.Products), ColProductID, ColProduct, ColType)
	if err != nil {
		return nil, err
	}

	products := make([]contracts.Product, 0, len(t.rows))
	for i := range t.rows {
		products = append(products, contracts.Product{
			ID:   t.get(i, ColProductID),
			Name: t.get(i, ColProduct),
			Type: t.get(i, ColType),
		})
	}
	return products, nil
}

// LoadSales reads the sales fact table. Rows without a date are skipped.
func (s *Store) LoadSales(ctx context.Context) ([]contracts.Sale, error) {
	t, err := readTable(s.Path(s.tables.Sales), ColProductID, ColDate, ColSold, ColDefects)
	if err != nil {
		return nil, err
	}

	sales := make([]contracts.Sale, 0, len(t.rows))
	skipped := 0
	for i := range t.rows {
		if t.blank(i, ColDate) {
			skipped++
			continue
		}
		date, err := parseDate(t.get(i, ColDate))
		if err != nil {
			return nil, t.malformed(i, ColDate, err)
		}

		sold, err := parseCount(t.get(i, ColSold))
		if err != nil {
			return nil, t.malformed(i, ColSold, err)
		}
		defects, err := parseCount(t.get(i, ColDefects))
		if err != nil {
			return nil, t.malformed(i, ColDefects, err)
		}

		sales = append(sales, contracts.Sale{
			ProductID: t.get(i, ColProductID),
			Date:      date,
			Sold:      sold,
			Defects:   defects,
		})
	}

	if skipped > 0 {
		s.logger.WithFields(map[string]interface{}{
			"path":    t.path,
			"skipped": skipped,
		}).Warn("Sales rows without date skipped")
	}
	return sales, nil
}

// SaveAggregated replaces the aggregated table
func (s *Store) SaveAggregated(ctx context.Context, rows []contracts.AggregatedRecord) error {
	return s.write(s.tables.Aggregated, aggregatedHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.ProductID,
			strconv.FormatInt(r.Sold, 10),
			strconv.FormatInt(r.Defects, 10),
			r.ProductName(),
			formatPercent(r.PercentDefects),
		}
	})
}

// LoadAggregated reads the aggregated table. An empty product cell is a null name.
func (s *Store) LoadAggregated(ctx context.Context) ([]contracts.AggregatedRecord, error) {
	t, err := readTable(s.Path(s.tables.Aggregated), aggregatedHeader...)
	if err != nil {
		return nil, err
	}

	rows := make([]contracts.AggregatedRecord, 0, len(t.rows))
	for i := range t.rows {
		sold, err := parseCount(t.get(i, ColSold))
		if err != nil {
			return nil, t.malformed(i, ColSold, err)
		}
		defects, err := parseCount(t.get(i, ColDefects))
		if err != nil {
			return nil, t.malformed(i, ColDefects, err)
		}
		pct, err := parsePercent(t.get(i, ColPercent))
		if err != nil {
			return nil, t.malformed(i, ColPercent, err)
		}

		row := contracts.AggregatedRecord{
			ProductID:      t.get(i, ColProductID),
			Sold:           sold,
			Defects:        defects,
			PercentDefects: pct,
		}
		if name := t.get(i, ColProduct); name != "" {
			row.Name = &name
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SaveResults replaces the result table
func (s *Store) SaveResults(ctx context.Context, rows []contracts.ResultRecord) error {
	return s.write(s.tables.Results, resultHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.ProductID,
			formatPercent(r.PercentDefects),
			r.Grade.String(),
		}
	})
}

// LoadResults reads the result table
func (s *Store) LoadResults(ctx context.Context) ([]contracts.ResultRecord, error) {
	t, err := readTable(s.Path(s.tables.Results), resultHeader...)
	if err != nil {
		return nil, err
	}

	rows := make([]contracts.ResultRecord, 0, len(t.rows))
	for i := range t.rows {
		pct, err := parsePercent(t.get(i, ColPercent))
		if err != nil {
			return nil, t.malformed(i, ColPercent, err)
		}
		grade := contracts.Grade(strings.TrimSpace(t.get(i, ColGrade)))
		if !grade.IsValid() {
			return nil, t.malformed(i, ColGrade, fmt.Errorf("unknown grade %q", grade))
		}
		rows = append(rows, contracts.ResultRecord{
			ProductID:      t.get(i, ColProductID),
			PercentDefects: pct,
			Grade:          grade,
		})
	}
	return rows, nil
}

// Close is a no-op for files
func (s *Store) Close() error {
	return nil
}

// write renders a table and atomically replaces the target file
func (s *Store) write(name string, header []string, n int, record func(i int) []string) error {
	path := s.Path(name)
	err := WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := cw.Write(record(i)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	s.logger.WithTable(path, n).Debug("Table written")
	return nil
}

// WriteFileAtomic writes to a temp file next to path and renames it into
// place once fully synced. On any error path is left untouched.
func WriteFileAtomic(path string, render func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = render(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
