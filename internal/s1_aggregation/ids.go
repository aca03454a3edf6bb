package s1_aggregation

import (
	"sort"
	"strconv"
)

// sortProductIDs orders identifiers numerically when every one of them is an
// integer, lexicographically otherwise
func sortProductIDs(ids []string) {
	numeric := make([]int64, len(ids))
	allNumeric := true
	for i, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			allNumeric = false
			break
		}
		numeric[i] = n
	}

	if !allNumeric {
		sort.Strings(ids)
		return
	}

	sort.Sort(numericIDs{ids: ids, keys: numeric})
}

type numericIDs struct {
	ids  []string
	keys []int64
}

func (n numericIDs) Len() int { return len(n.ids) }

func (n numericIDs) Less(i, j int) bool {
	if n.keys[i] != n.keys[j] {
		return n.keys[i] < n.keys[j]
	}
	// "7" and "007" are the same number but distinct keys
	return n.ids[i] < n.ids[j]
}

func (n numericIDs) Swap(i, j int) {
	n.ids[i], n.ids[j] = n.ids[j], n.ids[i]
	n.keys[i], n.keys[j] = n.keys[j], n.keys[i]
}
