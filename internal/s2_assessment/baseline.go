package s2_assessment

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/donsko1/DNS-case/internal/contracts"
)

var two = decimal.NewFromInt(2)

// Qualifies reports whether a row contributes to its product's baseline:
// sold > minSold and a strictly positive defect percentage
func Qualifies(row contracts.AggregatedRecord, minSold int64) bool {
	return row.Sold > minSold && row.PercentDefects.IsPositive()
}

// ComputeBaselines groups the qualifying rows by product name and returns
// median, mean and mode of percent_defects per name. Rows without a name
// never form a group.
func ComputeBaselines(rows []contracts.AggregatedRecord, minSold int64) map[string]contracts.Baseline {
	groups := make(map[string][]decimal.Decimal)
	for _, row := range rows {
		if !Qualifies(row, minSold) {
			continue
		}
		name := row.ProductName()
		if name == "" {
			continue
		}
		groups[name] = append(groups[name], row.PercentDefects)
	}

	baselines := make(map[string]contracts.Baseline, len(groups))
	for name, values := range groups {
		baselines[name] = contracts.Baseline{
			Name:   name,
			Median: Median(values),
			Mean:   Mean(values),
			Mode:   Mode(values),
			Count:  len(values),
		}
	}
	return baselines
}

// Mean returns the arithmetic mean. values must not be empty.
func Mean(values []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values))))
}

// Median returns the middle value, or the mean of the two middle values for
// an even count. values must not be empty.
func Median(values []decimal.Decimal) decimal.Decimal {
	sorted := sortedCopy(values)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(two)
}

// Mode returns the most frequent value. Ties resolve to the smallest value
// so the result never depends on input order. values must not be empty.
func Mode(values []decimal.Decimal) decimal.Decimal {
	sorted := sortedCopy(values)

	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].Equal(sorted[i]) {
			j++
		}
		// 오름차순 순회이므로 동률이면 먼저 본 (더 작은) 값이 유지됨
		if j-i > bestCount {
			best, bestCount = sorted[i], j-i
		}
		i = j
	}
	return best
}

func sortedCopy(values []decimal.Decimal) []decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})
	return sorted
}
