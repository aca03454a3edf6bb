package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ddl returns the CREATE statements for every pipeline table.
// row_no keeps the written order of derived tables stable on reload.
func (s *Store) ddl() []string {
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{s.db.Schema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			fk_product TEXT NOT NULL,
			product    TEXT,
			type       TEXT
		)`, s.table(s.tables.Products)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			fk_product                TEXT NOT NULL,
			date                      DATE,
			solds                     BIGINT NOT NULL DEFAULT 0 CHECK (solds >= 0),
			defects_entry_period_sale BIGINT NOT NULL DEFAULT 0 CHECK (defects_entry_period_sale >= 0)
		)`, s.table(s.tables.Sales)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			row_no                    INTEGER PRIMARY KEY,
			fk_product                TEXT NOT NULL,
			solds                     BIGINT NOT NULL,
			defects_entry_period_sale BIGINT NOT NULL,
			product                   TEXT,
			percent_defects           NUMERIC(7,2) NOT NULL
		)`, s.table(s.tables.Aggregated)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			row_no          INTEGER PRIMARY KEY,
			fk_product      TEXT NOT NULL,
			percent_defects NUMERIC(7,2) NOT NULL,
			grade           TEXT NOT NULL
		)`, s.table(s.tables.Results)),
	}
}

// EnsureSchema creates the schema and tables when missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.ddl() {
		if _, err := s.db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// table returns the quoted, schema-qualified name of a pipeline table
func (s *Store) table(name string) string {
	return pgx.Identifier{s.db.Schema, name}.Sanitize()
}
