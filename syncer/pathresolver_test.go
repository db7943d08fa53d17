package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeAuthority struct {
	authority string
	err       error
}

func (f fakeAuthority) CanonicalAuthority(context.Context) (string, error) {
	return f.authority, f.err
}

func TestPathResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	testCases := []struct {
		name      string
		basePath  string
		relative  string
		authority AuthorityProvider
		want      string
		wantErr   string
	}{
		{
			name:      "hdfs gets authority qualified",
			basePath:  "hdfs://oldnode:9000/warehouse/orders",
			relative:  "dt=2024-01-01",
			authority: fakeAuthority{authority: "namenode:8020"},
			want:      "hdfs://namenode:8020/warehouse/orders/dt=2024-01-01",
		},
		{
			name:      "hdfs without host in base",
			basePath:  "hdfs:///warehouse/orders",
			relative:  "dt=2024-01-01",
			authority: fakeAuthority{authority: "namenode:8020"},
			want:      "hdfs://namenode:8020/warehouse/orders/dt=2024-01-01",
		},
		{
			name:     "s3 passes through",
			basePath: "s3://bucket/warehouse/orders",
			relative: "dt=2024-01-01",
			want:     "s3://bucket/warehouse/orders/dt=2024-01-01",
		},
		{
			name:     "gs passes through",
			basePath: "gs://bucket/orders",
			relative: "country=us/dt=2024-01-01",
			want:     "gs://bucket/orders/country=us/dt=2024-01-01",
		},
		{
			name:     "schemeless path joins",
			basePath: "/tmp/warehouse/orders",
			relative: "dt=2024-01-01",
			want:     "/tmp/warehouse/orders/dt=2024-01-01",
		},
		{
			name:     "trailing slash on base",
			basePath: "s3://bucket/orders/",
			relative: "/dt=2024-01-01/",
			want:     "s3://bucket/orders/dt=2024-01-01",
		},
		{
			name:     "empty relative keeps base",
			basePath: "s3://bucket/orders",
			relative: "",
			want:     "s3://bucket/orders",
		},
		{
			name:      "hdfs empty authority",
			basePath:  "hdfs://nn:8020/orders",
			relative:  "dt=2024-01-01",
			authority: fakeAuthority{},
			wantErr:   "canonical authority is empty",
		},
		{
			name:      "hdfs authority error",
			basePath:  "hdfs://nn:8020/orders",
			relative:  "dt=2024-01-01",
			authority: fakeAuthority{err: errors.New("namenode unreachable")},
			wantErr:   "namenode unreachable",
		},
		{
			name:     "hdfs without provider",
			basePath: "hdfs://nn:8020/orders",
			relative: "dt=2024-01-01",
			wantErr:  "requires an authority provider",
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := NewPathResolver(tc.basePath, tc.authority)
			got, err := r.Resolve(ctx, tc.relative)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)

			again, err := r.Resolve(ctx, tc.relative)
			require.NoError(t, err)
			require.Equal(t, got, again, "resolution must be deterministic")
		})
	}
}
