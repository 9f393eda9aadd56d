// Package normalize turns raw fetched bars into canonical form: deduplicated
// by timestamp and sorted ascending. Normalization is a total function with
// no failure modes; empty input yields empty output.
package normalize

import (
	"sort"

	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

// Normalize deduplicates bars by exact timestamp and sorts them ascending.
//
// When duplicate timestamps exist the record appearing first in input order
// is kept. Downstream consumers depend on this first-wins policy for
// determinism; do not change it to latest-wins.
//
// The input slice is not mutated; the result is independently owned.
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(bars []models.Bar) []models.Bar {
	if len(bars) == 0 {
		return []models.Bar{}
	}

	seen := make(map[int64]struct{}, len(bars))
	out := make([]models.Bar, 0, len(bars))
	for _, bar := range bars {
		key := bar.Timestamp.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, bar)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out
}
