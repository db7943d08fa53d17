// Package catalog defines the value types and the client capability used to
// talk to a remote metadata catalog (Hive metastore, AWS Glue, or anything
// speaking the same table/partition model).
package catalog

import (
	"context"
	"errors"
)

// Sentinel errors implementations wrap so callers can branch with errors.Is
// without importing SDK-specific exception types.
var (
	ErrAlreadyExists = errors.New("catalog: entity already exists")
	ErrNotFound      = errors.New("catalog: entity not found")
)

// EnvContext carries alter-call modifiers understood by some catalog
// implementations. Implementations that have no equivalent ignore it.
type EnvContext map[string]string

// CascadeKey, when set to "true" in an EnvContext passed to AlterTable,
// asks the catalog to propagate a column-list change to the metadata of
// already-registered partitions.
const CascadeKey = "CASCADE"

type Database struct {
	Name        string
	Description string
	LocationURI string
	Parameters  map[string]string
}

type FieldSchema struct {
	Name    string
	Type    string
	Comment string
}

type SerDeInfo struct {
	Name             string
	SerializationLib string
	Parameters       map[string]string
}

// StorageDescriptor bundles the physical-layout metadata attached to a table
// or to an individual partition.
type StorageDescriptor struct {
	Columns      []FieldSchema
	Location     string
	InputFormat  string
	OutputFormat string
	SerDeInfo    SerDeInfo
}

// Clone returns a deep copy. Partition records built from a shared table
// descriptor must clone before overriding the location, otherwise the
// override leaks into sibling partitions.
func (sd StorageDescriptor) Clone() StorageDescriptor {
	out := sd
	out.Columns = make([]FieldSchema, len(sd.Columns))
	copy(out.Columns, sd.Columns)
	if sd.SerDeInfo.Parameters != nil {
		out.SerDeInfo.Parameters = make(map[string]string, len(sd.SerDeInfo.Parameters))
		for k, v := range sd.SerDeInfo.Parameters {
			out.SerDeInfo.Parameters[k] = v
		}
	}
	return out
}

// TableTypeExternal marks a table whose data files are owned by the caller,
// not the catalog; dropping the table must not delete the files.
const TableTypeExternal = "EXTERNAL_TABLE"

type Table struct {
	Database      string
	Name          string
	Owner         string
	CreateTime    int64
	TableType     string
	Parameters    map[string]string
	PartitionKeys []FieldSchema
	SD            StorageDescriptor
}

type Partition struct {
	Database       string
	Table          string
	Values         []string
	CreateTime     int64
	LastAccessTime int64
	SD             StorageDescriptor
}

// Client is the capability the sync executor needs from a catalog. Each call
// maps to a single remote operation; timeouts and cancellation come from the
// caller's context, retries are the implementation's business (or nobody's).
type Client interface {
	CreateDatabase(ctx context.Context, db Database) error
	CreateTable(ctx context.Context, table Table) error
	GetTable(ctx context.Context, database, table string) (Table, error)
	AlterTable(ctx context.Context, database, table string, updated Table, env EnvContext) error

	// AddPartitions registers the given partitions in one call. With
	// ifNotExists set, entries that already exist are skipped instead of
	// failing the whole call. The accepted partitions are returned only
	// when needResult is set.
	AddPartitions(ctx context.Context, parts []Partition, ifNotExists, needResult bool) ([]Partition, error)
	AlterPartitions(ctx context.Context, database, table string, parts []Partition, env EnvContext) error
	DropPartition(ctx context.Context, database, table string, values []string) error

	// Close releases any client-held session state. Idempotent.
	Close() error
}
