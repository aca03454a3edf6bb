package s1_aggregation

import (
	"time"

	"github.com/donsko1/DNS-case/internal/contracts"
)

// LatestSaleDate returns the window anchor: the latest sale date in the dataset.
// ok is false when there are no sales.
func LatestSaleDate(sales []contracts.Sale) (latest time.Time, ok bool) {
	for _, s := range sales {
		if !ok || s.Date.After(latest) {
			latest = s.Date
			ok = true
		}
	}
	return latest, ok
}

// WindowStart returns anchor minus the given number of calendar years.
// Feb 29 maps to Feb 28 of the target year instead of rolling into March.
func WindowStart(anchor time.Time, years int) time.Time {
	start := anchor.AddDate(-years, 0, 0)
	if start.Day() != anchor.Day() {
		// AddDate normalized an invalid day (e.g. 2023-02-29 → 2023-03-01)
		start = start.AddDate(0, 0, -start.Day())
	}
	return start
}

// InWindow reports whether a sale date falls in [start, ∞)
func InWindow(date, start time.Time) bool {
	return !date.Before(start)
}
