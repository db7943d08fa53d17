package syncer

import (
	"github.com/samber/lo"
)

// planBatches splits partition specs into order-preserving batches of at
// most size entries, the last batch possibly smaller. A non-positive size
// means unbounded: everything in one batch. Concatenating the result in
// order yields the input.
func planBatches(specs []string, size int) [][]string {
	if len(specs) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]string{specs}
	}
	return lo.Chunk(specs, size)
}
