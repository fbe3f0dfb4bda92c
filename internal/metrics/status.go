package metrics

import (
	"sort"
	"strconv"
)

// StatusBucket is the failure count for one HTTP status code.
type StatusBucket struct {
	Code  int   `json:"code"`
	Count int64 `json:"count"`
}

// Label returns the code as text, e.g. "503".
func (b StatusBucket) Label() string {
	return strconv.Itoa(b.Code)
}

// FlattenStatusCodes converts a code->count map into a sorted slice of
// StatusBucket rows. Rows are sorted by descending count, then by code for
// stability.
func FlattenStatusCodes(codes map[int]int64) []StatusBucket {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(codes))
	for code, count := range codes {
		rows = append(rows, StatusBucket{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
