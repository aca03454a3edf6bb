package s1_aggregation

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/pkg/logger"
)

var testConfig = Config{TargetCategory: "Item", WindowYears: 1}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestDefectPercent(t *testing.T) {
	tests := []struct {
		defects, sold int64
		want          string
	}{
		{10, 500, "2.0"},
		{80, 200, "40.0"},
		{0, 250, "0"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{1, 800, "0.12"},   // 0.125 → half to even
		{3, 800, "0.38"},   // 0.375 → half to even
		{23, 160, "14.38"}, // exact 14.375, float64 division lands on 14.37
		{7, 7, "100"},
	}

	for _, tt := range tests {
		t.Run(strconv.FormatInt(tt.defects, 10)+"/"+strconv.FormatInt(tt.sold, 10), func(t *testing.T) {
			assertDecimal(t, tt.want, DefectPercent(tt.defects, tt.sold))
		})
	}
}

func TestWindowStart(t *testing.T) {
	tests := []struct {
		anchor string
		years  int
		want   string
	}{
		{"2024-07-14", 1, "2023-07-14"},
		{"2024-02-29", 1, "2023-02-28"},
		{"2024-03-01", 1, "2023-03-01"},
		{"2025-12-31", 2, "2023-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.anchor, func(t *testing.T) {
			assert.Equal(t, day(tt.want), WindowStart(day(tt.anchor), tt.years))
		})
	}
}

func TestLatestSaleDate(t *testing.T) {
	_, ok := LatestSaleDate(nil)
	assert.False(t, ok)

	latest, ok := LatestSaleDate([]contracts.Sale{
		{Date: day("2024-01-10")},
		{Date: day("2024-06-30")},
		{Date: day("2023-12-01")},
	})
	require.True(t, ok)
	assert.Equal(t, day("2024-06-30"), latest)
}

func TestAggregate_Scenarios(t *testing.T) {
	products := []contracts.Product{
		{ID: "1", Name: "Kettle", Type: "Item"},
		{ID: "2", Name: "Toaster", Type: "Item"},
		{ID: "3", Name: "Delivery", Type: "Service"},
		{ID: "4", Name: "Mixer", Type: "Item"},
		{ID: "5", Name: "Blender", Type: "Item"},
		{ID: "6", Name: "Iron", Type: "Item"},
	}
	sales := []contracts.Sale{
		// P1: 500 sold, 10 defective inside the window
		{ProductID: "1", Date: day("2024-07-01"), Sold: 300, Defects: 6},
		{ProductID: "1", Date: day("2023-09-01"), Sold: 200, Defects: 4},
		// P1: older than one year → excluded from all aggregates
		{ProductID: "1", Date: day("2023-07-13"), Sold: 1000, Defects: 900},
		// P2: boundary date is inside the window
		{ProductID: "2", Date: day("2023-07-14"), Sold: 50, Defects: 1},
		// other category
		{ProductID: "3", Date: day("2024-01-01"), Sold: 100, Defects: 1},
		// defects > sold at the aggregate level
		{ProductID: "4", Date: day("2024-02-01"), Sold: 10, Defects: 30},
		// zero sold
		{ProductID: "5", Date: day("2024-03-01"), Sold: 0, Defects: 0},
		// no dimension record
		{ProductID: "99", Date: day("2024-03-01"), Sold: 10, Defects: 1},
		// per-row defects > sold is fine when the aggregate is valid
		{ProductID: "6", Date: day("2024-04-01"), Sold: 1, Defects: 2},
		{ProductID: "6", Date: day("2024-07-14"), Sold: 99, Defects: 0},
	}

	anchor, ok := LatestSaleDate(sales)
	require.True(t, ok)
	agg := Aggregate(products, sales, anchor, testConfig)

	assert.Equal(t, day("2024-07-14"), agg.Anchor)
	assert.Equal(t, day("2023-07-14"), agg.WindowStart)

	require.Len(t, agg.Rows, 3)

	p1 := agg.Rows[0]
	assert.Equal(t, "1", p1.ProductID)
	assert.Equal(t, int64(500), p1.Sold)
	assert.Equal(t, int64(10), p1.Defects)
	assert.Equal(t, "Kettle", p1.ProductName())
	assertDecimal(t, "2.0", p1.PercentDefects)

	p2 := agg.Rows[1]
	assert.Equal(t, "2", p2.ProductID)
	assert.Equal(t, int64(50), p2.Sold)
	assertDecimal(t, "2.0", p2.PercentDefects)

	p6 := agg.Rows[2]
	assert.Equal(t, "6", p6.ProductID)
	assert.Equal(t, int64(100), p6.Sold)
	assertDecimal(t, "2.0", p6.PercentDefects)

	assert.Equal(t, 1, agg.Excluded[ExcludedOutOfWindow])
	assert.Equal(t, 1, agg.Excluded[ExcludedOtherCategory])
	assert.Equal(t, 1, agg.Excluded[ExcludedDefectsOver])
	assert.Equal(t, 1, agg.Excluded[ExcludedZeroSold])
	assert.Equal(t, 1, agg.Excluded[ExcludedNoDimension])
}

func TestAggregate_OrdersIDs(t *testing.T) {
	products := []contracts.Product{
		{ID: "10", Name: "Ten", Type: "Item"},
		{ID: "9", Name: "Nine", Type: "Item"},
		{ID: "100", Name: "Hundred", Type: "Item"},
	}
	sales := []contracts.Sale{
		{ProductID: "100", Date: day("2024-01-01"), Sold: 1, Defects: 0},
		{ProductID: "9", Date: day("2024-01-01"), Sold: 1, Defects: 0},
		{ProductID: "10", Date: day("2024-01-01"), Sold: 1, Defects: 0},
	}

	agg := Aggregate(products, sales, day("2024-01-01"), testConfig)
	require.Len(t, agg.Rows, 3)
	assert.Equal(t, []string{"9", "10", "100"}, []string{agg.Rows[0].ProductID, agg.Rows[1].ProductID, agg.Rows[2].ProductID})

	// mixed identifiers fall back to lexicographic order
	ids := []string{"b-2", "10", "a-1", "9"}
	sortProductIDs(ids)
	assert.Equal(t, []string{"10", "9", "a-1", "b-2"}, ids)
}

func TestAggregate_DuplicateDimensionRows(t *testing.T) {
	products := []contracts.Product{
		{ID: "1", Name: "Kettle", Type: "Item"},
		{ID: "1", Name: "Kettle v2", Type: "Item"},
		{ID: "1", Name: "Kettle service", Type: "Service"},
	}
	sales := []contracts.Sale{
		{ProductID: "1", Date: day("2024-01-01"), Sold: 200, Defects: 2},
	}

	agg := Aggregate(products, sales, day("2024-01-01"), testConfig)
	require.Len(t, agg.Rows, 2)
	assert.Equal(t, "Kettle", agg.Rows[0].ProductName())
	assert.Equal(t, "Kettle v2", agg.Rows[1].ProductName())
	assert.Equal(t, 1, agg.Excluded[ExcludedOtherCategory])
}

func TestAggregate_CategoryIsExactMatch(t *testing.T) {
	products := []contracts.Product{
		{ID: "1", Name: "Kettle", Type: "item"},
		{ID: "2", Name: "Toaster", Type: "Item "},
		{ID: "3", Name: "Mixer", Type: "Item"},
	}
	sales := []contracts.Sale{
		{ProductID: "1", Date: day("2024-01-01"), Sold: 10, Defects: 1},
		{ProductID: "2", Date: day("2024-01-01"), Sold: 10, Defects: 1},
		{ProductID: "3", Date: day("2024-01-01"), Sold: 10, Defects: 1},
	}

	agg := Aggregate(products, sales, day("2024-01-01"), testConfig)
	require.Len(t, agg.Rows, 1)
	assert.Equal(t, "3", agg.Rows[0].ProductID)
}

func TestAggregate_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		products := make([]contracts.Product, 0)
		for i := 0; i < 20; i++ {
			typ := "Item"
			if rng.Intn(4) == 0 {
				typ = "Service"
			}
			products = append(products, contracts.Product{ID: strconv.Itoa(i), Name: "P" + strconv.Itoa(i), Type: typ})
		}

		sales := make([]contracts.Sale, 0)
		base := day("2022-01-01")
		for i := 0; i < 300; i++ {
			sales = append(sales, contracts.Sale{
				ProductID: strconv.Itoa(rng.Intn(25)),
				Date:      base.AddDate(0, 0, rng.Intn(900)),
				Sold:      int64(rng.Intn(50)),
				Defects:   int64(rng.Intn(20)),
			})
		}

		anchor, _ := LatestSaleDate(sales)
		agg := Aggregate(products, sales, anchor, testConfig)

		for _, row := range agg.Rows {
			assert.Greater(t, row.Sold, int64(0))
			assert.LessOrEqual(t, row.Defects, row.Sold)
			assert.True(t, DefectPercent(row.Defects, row.Sold).Equal(row.PercentDefects))
			assert.True(t, row.PercentDefects.Equal(row.PercentDefects.Round(2)), "percent must carry at most two decimals")
		}

		// 동일 입력 → 동일 결과
		again := Aggregate(products, sales, anchor, testConfig)
		assert.Equal(t, agg.Rows, again.Rows)
	}
}

// memoryStore is an in-memory contracts.SourceReader + AggregatedStore
type memoryStore struct {
	products   []contracts.Product
	sales      []contracts.Sale
	aggregated []contracts.AggregatedRecord
	saved      int
	loadErr    error
	saveErr    error
}

func (m *memoryStore) LoadProducts(ctx context.Context) ([]contracts.Product, error) {
	return m.products, m.loadErr
}

func (m *memoryStore) LoadSales(ctx context.Context) ([]contracts.Sale, error) {
	return m.sales, m.loadErr
}

func (m *memoryStore) SaveAggregated(ctx context.Context, rows []contracts.AggregatedRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.aggregated = rows
	m.saved++
	return nil
}

func (m *memoryStore) LoadAggregated(ctx context.Context) ([]contracts.AggregatedRecord, error) {
	return m.aggregated, nil
}

func TestAggregator_Run(t *testing.T) {
	log := logger.NewWithWriter(io.Discard, "error")

	t.Run("persists aggregation", func(t *testing.T) {
		store := &memoryStore{
			products: []contracts.Product{{ID: "1", Name: "Kettle", Type: "Item"}},
			sales: []contracts.Sale{
				{ProductID: "1", Date: day("2024-07-14"), Sold: 500, Defects: 10},
			},
		}

		result, err := NewAggregator(store, store, log).Run(context.Background(), testConfig)
		require.NoError(t, err)

		assert.Equal(t, contracts.StageAggregation, result.Stage)
		assert.Equal(t, 1, result.InputCount)
		assert.Equal(t, 1, result.OutputCount)
		assert.Equal(t, "2024-07-14", result.Metadata["anchor"])
		assert.Equal(t, "2023-07-14", result.Metadata["window_start"])
		require.Len(t, store.aggregated, 1)
		assertDecimal(t, "2", store.aggregated[0].PercentDefects)
	})

	t.Run("empty sales persists empty table", func(t *testing.T) {
		store := &memoryStore{
			products:   []contracts.Product{{ID: "1", Name: "Kettle", Type: "Item"}},
			aggregated: []contracts.AggregatedRecord{{ProductID: "stale"}},
		}

		result, err := NewAggregator(store, store, log).Run(context.Background(), testConfig)
		require.NoError(t, err)
		assert.Equal(t, 0, result.OutputCount)
		assert.Equal(t, 1, store.saved)
		assert.Empty(t, store.aggregated)
	})

	t.Run("source failure is fatal and writes nothing", func(t *testing.T) {
		store := &memoryStore{loadErr: contracts.ErrSourceUnavailable}

		_, err := NewAggregator(store, store, log).Run(context.Background(), testConfig)
		require.Error(t, err)
		assert.True(t, errors.Is(err, contracts.ErrSourceUnavailable))
		assert.Equal(t, 0, store.saved)
	})

	t.Run("save failure is returned", func(t *testing.T) {
		store := &memoryStore{saveErr: errors.New("disk full")}

		_, err := NewAggregator(store, store, log).Run(context.Background(), testConfig)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save aggregated")
	})
}
