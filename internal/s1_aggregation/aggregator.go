package s1_aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// Exclusion reasons reported in Aggregation.Excluded
const (
	ExcludedOutOfWindow   = "out_of_window"  // sale rows
	ExcludedNoDimension   = "no_dimension"   // product groups
	ExcludedOtherCategory = "other_category" // product groups
	ExcludedDefectsOver   = "defects_exceed" // defective > sold
	ExcludedZeroSold      = "zero_sold"      // sold == 0
)

var hundred = decimal.NewFromInt(100)

// Config holds aggregation rules
type Config struct {
	TargetCategory string `yaml:"target_category"` // 정확히 일치하는 type만 남김
	WindowYears    int    `yaml:"window_years"`
}

// Aggregation is the S1 output with its bookkeeping
type Aggregation struct {
	Anchor      time.Time
	WindowStart time.Time
	Rows        []contracts.AggregatedRecord
	Excluded    map[string]int
}

// Aggregator runs the data_processing stage
type Aggregator struct {
	source contracts.SourceReader
	sink   contracts.AggregatedStore
	logger *logger.Logger
}

// NewAggregator creates a new Aggregator
func NewAggregator(source contracts.SourceReader, sink contracts.AggregatedStore, log *logger.Logger) *Aggregator {
	return &Aggregator{
		source: source,
		sink:   sink,
		logger: log,
	}
}

// Run loads both source tables, aggregates and replaces the persisted output
// ⭐ SSOT: S1 → S2 집계 테이블 생성
func (a *Aggregator) Run(ctx context.Context, cfg Config) (*contracts.StageResult, error) {
	products, err := a.source.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	sales, err := a.source.LoadSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	result := &contracts.StageResult{
		Stage:      contracts.StageAggregation,
		InputCount: len(sales),
		Metadata:   map[string]string{},
	}

	agg := &Aggregation{Excluded: map[string]int{}}
	if anchor, ok := LatestSaleDate(sales); ok {
		agg = Aggregate(products, sales, anchor, cfg)
		result.Metadata["anchor"] = agg.Anchor.Format("2006-01-02")
		result.Metadata["window_start"] = agg.WindowStart.Format("2006-01-02")
	} else {
		a.logger.Warn("Sales table is empty, persisting empty aggregation")
	}

	if err := a.sink.SaveAggregated(ctx, agg.Rows); err != nil {
		return nil, fmt.Errorf("save aggregated: %w", err)
	}

	result.OutputCount = len(agg.Rows)
	for reason, n := range agg.Excluded {
		result.Metadata["excluded_"+reason] = fmt.Sprint(n)
	}

	a.logger.WithFields(map[string]interface{}{
		"products":     len(products),
		"sales":        len(sales),
		"rows":         len(agg.Rows),
		"anchor":       result.Metadata["anchor"],
		"window_start": result.Metadata["window_start"],
		"excluded":     agg.Excluded,
	}).Info("Aggregation persisted")

	return result, nil
}

// Aggregate is the pure S1 computation. anchor is the dataset's latest sale date;
// no clock is consulted so the result only depends on the arguments.
func Aggregate(products []contracts.Product, sales []contracts.Sale, anchor time.Time, cfg Config) *Aggregation {
	years := cfg.WindowYears
	if years < 1 {
		years = 1
	}

	agg := &Aggregation{
		Anchor:      anchor,
		WindowStart: WindowStart(anchor, years),
		Rows:        make([]contracts.AggregatedRecord, 0),
		Excluded:    make(map[string]int),
	}

	// 1. 윈도우 필터 + 상품별 합계
	type totals struct{ sold, defects int64 }
	grouped := make(map[string]*totals)
	ids := make([]string, 0)
	for _, s := range sales {
		if !InWindow(s.Date, agg.WindowStart) {
			agg.Excluded[ExcludedOutOfWindow]++
			continue
		}
		t, ok := grouped[s.ProductID]
		if !ok {
			t = &totals{}
			grouped[s.ProductID] = t
			ids = append(ids, s.ProductID)
		}
		t.sold += s.Sold
		t.defects += s.Defects
	}
	sortProductIDs(ids)

	// 2. 차원 테이블 left join (중복 키는 행을 복제)
	dims := make(map[string][]contracts.Product, len(products))
	for _, p := range products {
		dims[p.ID] = append(dims[p.ID], p)
	}

	for _, id := range ids {
		t := grouped[id]
		matches := dims[id]
		if len(matches) == 0 {
			// name/type이 null → 카테고리 필터에서 탈락
			agg.Excluded[ExcludedNoDimension]++
			continue
		}

		for _, p := range matches {
			// 3. 카테고리 필터 (정확한 문자열 일치)
			if p.Type != cfg.TargetCategory {
				agg.Excluded[ExcludedOtherCategory]++
				continue
			}

			// 4. 이상치 제거
			if t.defects > t.sold {
				agg.Excluded[ExcludedDefectsOver]++
				continue
			}
			if t.sold == 0 {
				agg.Excluded[ExcludedZeroSold]++
				continue
			}

			name := p.Name
			agg.Rows = append(agg.Rows, contracts.AggregatedRecord{
				ProductID:      id,
				Sold:           t.sold,
				Defects:        t.defects,
				Name:           &name,
				PercentDefects: DefectPercent(t.defects, t.sold),
			})
		}
	}

	return agg
}

// DefectPercent returns round(100 * defects / sold, 2).
// Ties round half to even on the exact quotient. sold must be non-zero.
func DefectPercent(defects, sold int64) decimal.Decimal {
	return decimal.NewFromInt(defects).
		Mul(hundred).
		Div(decimal.NewFromInt(sold)).
		RoundBank(2)
}
