package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudderlabs/metasync/catalog"
)

func TestToColumnMap(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name             string
		fields           []Field
		supportTimestamp bool
		want             [][2]string
		wantErr          string
	}{
		{
			name: "primitive types",
			fields: []Field{
				{Name: "id", Type: "binary"},
				{Name: "count", Type: "int64"},
				{Name: "score", Type: "double"},
				{Name: "active", Type: "boolean"},
				{Name: "age", Type: "int32"},
			},
			want: [][2]string{
				{"id", "string"}, {"count", "bigint"}, {"score", "double"},
				{"active", "boolean"}, {"age", "int"},
			},
		},
		{
			name:   "timestamp without support becomes bigint",
			fields: []Field{{Name: "ts", Type: "int96"}},
			want:   [][2]string{{"ts", "bigint"}},
		},
		{
			name:             "timestamp with support",
			fields:           []Field{{Name: "ts", Type: "int96"}},
			supportTimestamp: true,
			want:             [][2]string{{"ts", "timestamp"}},
		},
		{
			name: "complex types pass through",
			fields: []Field{
				{Name: "price", Type: "decimal(10,2)"},
				{Name: "tags", Type: "array<string>"},
			},
			want: [][2]string{{"price", "decimal(10,2)"}, {"tags", "array<string>"}},
		},
		{
			name:    "unknown type errors",
			fields:  []Field{{Name: "blob", Type: "interval"}},
			wantErr: `unsupported physical type "interval"`,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := ToColumnMap(tc.fields, tc.supportTimestamp)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tc.want), m.Len())
			for i, name := range m.Names() {
				typ, ok := m.Get(name)
				require.True(t, ok)
				require.Equal(t, tc.want[i][0], name)
				require.Equal(t, tc.want[i][1], typ)
			}
		})
	}
}

func TestColumnMapLastWriteWins(t *testing.T) {
	t.Parallel()

	m := NewColumnMap()
	m.Set("dt", "string")
	m.Set("a", "int")
	m.Set("dt", "date")

	require.Equal(t, []string{"dt", "a"}, m.Names(), "overwrite must not change position")
	typ, _ := m.Get("dt")
	require.Equal(t, "date", typ)
}

func TestFieldSchemas(t *testing.T) {
	t.Parallel()

	m, err := ToColumnMap([]Field{{Name: "id", Type: "string"}, {Name: "n", Type: "int64"}}, false)
	require.NoError(t, err)

	require.Equal(t, []catalog.FieldSchema{
		{Name: "id", Type: "string"},
		{Name: "n", Type: "bigint"},
	}, FieldSchemas(m))
}

func TestPartitionKeyType(t *testing.T) {
	t.Parallel()

	m, err := ToColumnMap([]Field{
		{Name: "EventDate", Type: "date"},
		{Name: "country", Type: "binary"},
	}, false)
	require.NoError(t, err)

	require.Equal(t, "date", PartitionKeyType(m, "EventDate"))
	require.Equal(t, "date", PartitionKeyType(m, "eventdate"), "lookup ignores case")
	require.Equal(t, "string", PartitionKeyType(m, "country"))
	require.Equal(t, "string", PartitionKeyType(m, "not_in_schema"), "absent keys default to string")
}
