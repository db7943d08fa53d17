// Package schema translates the physical column list of a columnar table
// into catalog column definitions.
package schema

import (
	"fmt"
	"strings"

	"github.com/rudderlabs/metasync/catalog"
)

// Field is one physical column of the storage schema, in declaration order.
// Parsing a data file's embedded schema into []Field is the caller's job.
type Field struct {
	Name string
	Type string
}

// Physical type mapping to catalog (Hive-compatible) types. int96 is the
// columnar timestamp encoding and is handled separately because its mapping
// depends on whether the target catalog supports the timestamp type.
var physicalTypesMap = map[string]string{
	"boolean": "boolean",
	"int32":   "int",
	"int":     "int",
	"int64":   "bigint",
	"bigint":  "bigint",
	"float":   "float",
	"double":  "double",
	"binary":  "string",
	"string":  "string",
	"date":    "date",
}

const physicalTimestampType = "int96"

// ColumnMap is an insertion-ordered name->type mapping. Plain Go maps do not
// preserve order, and the table schema contract requires partition keys to
// iterate ahead of storage columns.
type ColumnMap struct {
	names []string
	types map[string]string
}

func NewColumnMap() *ColumnMap {
	return &ColumnMap{types: map[string]string{}}
}

// Set appends the column, or overwrites the type in place when the name is
// already present (last write wins, position unchanged).
func (m *ColumnMap) Set(name, typ string) {
	if _, ok := m.types[name]; !ok {
		m.names = append(m.names, name)
	}
	m.types[name] = typ
}

func (m *ColumnMap) Get(name string) (string, bool) {
	typ, ok := m.types[name]
	return typ, ok
}

func (m *ColumnMap) Len() int {
	return len(m.names)
}

// Names returns the column names in insertion order. The returned slice is
// shared; callers must not mutate it.
func (m *ColumnMap) Names() []string {
	return m.names
}

// ToColumnMap translates an ordered physical field list into an ordered
// column->catalog-type mapping. Complex types already expressed in catalog
// syntax (decimal(p,s), array<...>, map<...>, struct<...>) pass through
// verbatim; anything else unknown is an error.
func ToColumnMap(fields []Field, supportTimestamp bool) (*ColumnMap, error) {
	out := NewColumnMap()
	for _, f := range fields {
		physical := strings.ToLower(strings.TrimSpace(f.Type))
		if physical == physicalTimestampType {
			if supportTimestamp {
				out.Set(f.Name, "timestamp")
			} else {
				out.Set(f.Name, "bigint")
			}
			continue
		}
		if t, ok := physicalTypesMap[physical]; ok {
			out.Set(f.Name, t)
			continue
		}
		if isComplexType(physical) {
			out.Set(f.Name, physical)
			continue
		}
		return nil, fmt.Errorf("unsupported physical type %q for column %q", f.Type, f.Name)
	}
	return out, nil
}

func isComplexType(t string) bool {
	for _, prefix := range []string{"decimal(", "array<", "map<", "struct<", "varchar(", "char("} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// FieldSchemas renders the mapping as ordered catalog column definitions.
func FieldSchemas(m *ColumnMap) []catalog.FieldSchema {
	out := make([]catalog.FieldSchema, 0, m.Len())
	for _, name := range m.Names() {
		typ, _ := m.Get(name)
		out = append(out, catalog.FieldSchema{Name: name, Type: typ})
	}
	return out
}

// PartitionKeyType looks up the catalog type of a partition key column,
// ignoring case. Keys absent from the storage schema (e.g. derived from the
// path only) default to string.
func PartitionKeyType(m *ColumnMap, key string) string {
	if t, ok := m.Get(key); ok {
		return t
	}
	for _, name := range m.Names() {
		if strings.EqualFold(name, key) {
			t, _ := m.Get(name)
			return t
		}
	}
	return "string"
}
