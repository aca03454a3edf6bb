package contracts

import "context"

// SourceReader loads the raw input tables (S1 input)
// ⭐ SSOT: 원천 테이블 읽기 인터페이스
type SourceReader interface {
	LoadProducts(ctx context.Context) ([]Product, error)
	LoadSales(ctx context.Context) ([]Sale, error)
}

// AggregatedStore persists the S1 output that S2 consumes
// Save must replace any previous copy in full, or leave it untouched on failure.
type AggregatedStore interface {
	SaveAggregated(ctx context.Context, rows []AggregatedRecord) error
	LoadAggregated(ctx context.Context) ([]AggregatedRecord, error)
}

// ResultStore persists the S2 output
type ResultStore interface {
	SaveResults(ctx context.Context, rows []ResultRecord) error
	LoadResults(ctx context.Context) ([]ResultRecord, error)
}

// Store is the full storage surface used by the pipeline
type Store interface {
	SourceReader
	AggregatedStore
	ResultStore
	Close() error
}
