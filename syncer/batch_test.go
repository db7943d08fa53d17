package syncer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanBatches(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		specCount int
		batchSize int
		want      int
	}{
		{name: "exact multiple", specCount: 10, batchSize: 5, want: 2},
		{name: "with remainder", specCount: 11, batchSize: 5, want: 3},
		{name: "single partition", specCount: 1, batchSize: 100, want: 1},
		{name: "batch size one", specCount: 4, batchSize: 1, want: 4},
		{name: "zero size is unbounded", specCount: 7, batchSize: 0, want: 1},
		{name: "negative size is unbounded", specCount: 7, batchSize: -3, want: 1},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			specs := make([]string, 0, tc.specCount)
			for i := 0; i < tc.specCount; i++ {
				specs = append(specs, fmt.Sprintf("dt=2024-01-%02d", i+1))
			}

			batches := planBatches(specs, tc.batchSize)
			require.Len(t, batches, tc.want)

			var flattened []string
			for _, batch := range batches {
				if tc.batchSize > 0 {
					require.LessOrEqual(t, len(batch), tc.batchSize)
				}
				flattened = append(flattened, batch...)
			}
			require.Equal(t, specs, flattened)
		})
	}
}

func TestPlanBatchesEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, planBatches(nil, 10))
	require.Empty(t, planBatches([]string{}, 0))
}
