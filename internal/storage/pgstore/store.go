package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/pkg/database"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// Store keeps the pipeline tables in PostgreSQL
// ⭐ SSOT: quality 스키마 SQL은 이 패키지에서만
type Store struct {
	db     *database.DB
	tables pipelineconfig.Tables
	logger *logger.Logger
	ownsDB bool
}

// New creates a store on an existing pool. The caller keeps ownership of db.
func New(db *database.DB, tables pipelineconfig.Tables, log *logger.Logger) *Store {
	return &Store{
		db:     db,
		tables: tables,
		logger: log,
	}
}

// NewOwned is like New but Close also closes db
func NewOwned(db *database.DB, tables pipelineconfig.Tables, log *logger.Logger) *Store {
	s := New(db, tables, log)
	s.ownsDB = true
	return s
}

// LoadProducts reads the product dimension table
func (s *Store) LoadProducts(ctx context.Context) ([]contracts.Product, error) {
	query := fmt.Sprintf(`SELECT fk_product, COALESCE(product, ''), COALESCE(type, '') FROM %s`,
		s.table(s.tables.Products))

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, classify(s.tables.Products, err)
	}
	defer rows.Close()

	products := make([]contracts.Product, 0)
	for rows.Next() {
		var p contracts.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Type); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrMalformedRecord, s.tables.Products, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(s.tables.Products, err)
	}
	return products, nil
}

// LoadSales reads the sales fact table. Rows with a NULL date are skipped.
func (s *Store) LoadSales(ctx context.Context) ([]contracts.Sale, error) {
	query := fmt.Sprintf(`SELECT fk_product, date, solds, defects_entry_period_sale FROM %s`,
		s.table(s.tables.Sales))

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, classify(s.tables.Sales, err)
	}
	defer rows.Close()

	sales := make([]contracts.Sale, 0)
	skipped := 0
	for rows.Next() {
		var (
			sale contracts.Sale
			date *time.Time
		)
		if err := rows.Scan(&sale.ProductID, &date, &sale.Sold, &sale.Defects); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrMalformedRecord, s.tables.Sales, err)
		}
		if date == nil {
			skipped++
			continue
		}
		if sale.Sold < 0 || sale.Defects < 0 {
			return nil, fmt.Errorf("%w: %s: negative count for %s", contracts.ErrMalformedRecord, s.tables.Sales, sale.ProductID)
		}
		sale.Date = *date
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(s.tables.Sales, err)
	}

	if skipped > 0 {
		s.logger.WithFields(map[string]interface{}{
			"table":   s.tables.Sales,
			"skipped": skipped,
		}).Warn("Sales rows without date skipped")
	}
	return sales, nil
}

// SaveAggregated replaces the aggregated table in one transaction
func (s *Store) SaveAggregated(ctx context.Context, rows []contracts.AggregatedRecord) error {
	columns := []string{"row_no", "fk_product", "solds", "defects_entry_period_sale", "product", "percent_defects"}
	return s.replace(ctx, s.tables.Aggregated, columns, len(rows), func(i int) []any {
		r := rows[i]
		return []any{i, r.ProductID, r.Sold, r.Defects, r.Name, toNumeric(r.PercentDefects)}
	})
}

// LoadAggregated reads the aggregated table in written order
func (s *Store) LoadAggregated(ctx context.Context) ([]contracts.AggregatedRecord, error) {
	query := fmt.Sprintf(`SELECT fk_product, solds, defects_entry_period_sale, product, percent_defects
		FROM %s ORDER BY row_no`, s.table(s.tables.Aggregated))

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, classify(s.tables.Aggregated, err)
	}
	defer rows.Close()

	out := make([]contracts.AggregatedRecord, 0)
	for rows.Next() {
		var (
			r   contracts.AggregatedRecord
			pct pgtype.Numeric
		)
		if err := rows.Scan(&r.ProductID, &r.Sold, &r.Defects, &r.Name, &pct); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrMalformedRecord, s.tables.Aggregated, err)
		}
		if r.PercentDefects, err = fromNumeric(pct); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrMalformedRecord, s.tables.Aggregated, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(s.tables.Aggregated, err)
	}
	return out, nil
}

// SaveResults replaces the result table in one transaction
func (s *Store) SaveResults(ctx context.Context, rows []contracts.ResultRecord) error {
	columns := []string{"row_no", "fk_product", "percent_defects", "grade"}
	return s.replace(ctx, s.tables.Results, columns, len(rows), func(i int) []any {
		r := rows[i]
		return []any{i, r.ProductID, toNumeric(r.PercentDefects), r.Grade.String()}
	})
}

// LoadResults reads the result table in written order
func (s *Store) LoadResults(ctx context.Context) ([]contracts.ResultRecord, error) {
	query := fmt.Sprintf(`SELECT fk_product, percent_defects, grade FROM %s ORDER BY row_no`,
		s.table(s.tables.Results))

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, classify(s.tables.Results, err)
	}
	defer rows.Close()

	out := make([]contracts.ResultRecord, 0)
	for rows.Next() {
		var (
			r     contracts.ResultRecord
			pct   pgtype.Numeric
			grade string
		)
		if err := rows.Scan(&r.ProductID, &pct, &grade); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrMalformedRecord, s.tables.Results, err)
		}
		if r.PercentDefects, err = fromNumeric(pct); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrMalformedRecord, s.tables.Results, err)
		}
		r.Grade = contracts.Grade(grade)
		if !r.Grade.IsValid() {
			return nil, fmt.Errorf("%w: %s: unknown grade %q", contracts.ErrMalformedRecord, s.tables.Results, grade)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(s.tables.Results, err)
	}
	return out, nil
}

// ImportSources replaces both source tables, e.g. from a CSV export
func (s *Store) ImportSources(ctx context.Context, products []contracts.Product, sales []contracts.Sale) error {
	return s.db.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.copyInto(ctx, tx, s.tables.Products, []string{"fk_product", "product", "type"}, len(products), func(i int) []any {
			p := products[i]
			return []any{p.ID, p.Name, p.Type}
		}); err != nil {
			return err
		}
		return s.copyInto(ctx, tx, s.tables.Sales, []string{"fk_product", "date", "solds", "defects_entry_period_sale"}, len(sales), func(i int) []any {
			r := sales[i]
			return []any{r.ProductID, pgtype.Date{Time: r.Date, Valid: true}, r.Sold, r.Defects}
		})
	})
}

// Ping checks the database behind the store
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.db.HealthCheck(ctx)
	return err
}

// Close releases the pool when the store owns it
func (s *Store) Close() error {
	if s.ownsDB {
		s.db.Close()
	}
	return nil
}

// replace swaps the content of a table atomically: readers see either the
// previous rows or the new ones
func (s *Store) replace(ctx context.Context, name string, columns []string, n int, row func(i int) []any) error {
	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		return s.copyInto(ctx, tx, name, columns, n, row)
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}

	s.logger.WithTable(name, n).Debug("Table written")
	return nil
}

func (s *Store) copyInto(ctx context.Context, tx pgx.Tx, name string, columns []string, n int, row func(i int) []any) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table(name))); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}

	_, err := tx.CopyFrom(ctx, pgx.Identifier{s.db.Schema, name}, columns,
		pgx.CopyFromSlice(n, func(i int) ([]any, error) {
			return row(i), nil
		}))
	if err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}

// classify maps query errors onto the pipeline's error kinds
func classify(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "3F000": // undefined_table, invalid_schema_name
			return fmt.Errorf("%w: %s: %s", contracts.ErrSourceUnavailable, table, pgErr.Message)
		case "42703": // undefined_column
			return fmt.Errorf("%w: %s: %s", contracts.ErrSchemaMismatch, table, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %v", contracts.ErrSourceUnavailable, table, err)
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Decimal{}, fmt.Errorf("percent_defects is not a finite number")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
