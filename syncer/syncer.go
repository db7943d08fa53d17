// Package syncer reconciles a columnar table's schema and partition set with
// a remote metadata catalog.
package syncer

import (
	"context"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/metasync/catalog"
	"github.com/rudderlabs/metasync/partition"
	"github.com/rudderlabs/metasync/schema"
)

const serializationFormatKey = "serialization.format"

// Config is the executor's fixed configuration. The executor holds no other
// state between operations; every sync re-derives what it needs from the
// current catalog state.
type Config struct {
	Database         string
	BasePath         string
	BatchSize        int
	ExternalTable    bool
	SupportTimestamp bool
	PartitionFields  []string
	ExtractorName    string
	TableOwner       string
}

// Executor runs idempotent metadata operations against an injected catalog
// client. Safe for sequential use; not designed for concurrent invocation
// against the same table, since fetch-then-alter operations are not atomic.
type Executor struct {
	conf      Config
	client    catalog.Client
	extractor partition.Extractor
	resolver  *PathResolver
	logger    logger.Logger
	stats     stats.Stats
	now       func() time.Time
}

// New builds an executor from MetaSync.* configuration. Failing to resolve
// the configured partition value extractor is fatal here, before any catalog
// call is attempted.
func New(conf *config.Config, log logger.Logger, statsFactory stats.Stats, client catalog.Client, authority AuthorityProvider) (*Executor, error) {
	c := Config{
		Database:         conf.GetString("MetaSync.database", "default"),
		BasePath:         conf.GetString("MetaSync.basePath", ""),
		BatchSize:        conf.GetInt("MetaSync.partitionBatchSize", 1000),
		ExternalTable:    conf.GetBool("MetaSync.createExternalTable", true),
		SupportTimestamp: conf.GetBool("MetaSync.supportTimestampType", false),
		PartitionFields:  conf.GetStringSlice("MetaSync.partitionFields", nil),
		ExtractorName:    conf.GetString("MetaSync.partitionValueExtractor", "hive-style"),
		TableOwner:       conf.GetString("MetaSync.tableOwner", ""),
	}
	return NewWithConfig(c, log, statsFactory, client, authority)
}

// NewWithConfig is New for callers that assemble the configuration
// themselves.
func NewWithConfig(c Config, log logger.Logger, statsFactory stats.Stats, client catalog.Client, authority AuthorityProvider) (*Executor, error) {
	extractor, err := partition.New(c.ExtractorName)
	if err != nil {
		return nil, fmt.Errorf("initialize partition value extractor: %w", err)
	}
	if c.TableOwner == "" {
		if u, err := user.Current(); err == nil {
			c.TableOwner = u.Username
		}
	}
	return &Executor{
		conf:      c,
		client:    client,
		extractor: extractor,
		resolver:  NewPathResolver(c.BasePath, authority),
		logger:    log.Child("syncer"),
		stats:     statsFactory,
		now:       time.Now,
	}, nil
}

// CreateDatabase creates the database entry. Already-exists errors are not
// suppressed; callers that want idempotence check existence first.
func (e *Executor) CreateDatabase(ctx context.Context, name string) error {
	db := catalog.Database{
		Name:        name,
		Description: "automatically created by metasync",
	}
	if err := e.client.CreateDatabase(ctx, db); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	e.logger.Infof("Created database %s", name)
	return nil
}

// CreateTable translates the storage schema into catalog columns, derives
// partition-key definitions from the configured partition fields, and
// submits a full table descriptor in a single create call. Any translation
// or catalog error aborts the creation entirely.
func (e *Executor) CreateTable(
	ctx context.Context,
	name string,
	storageSchema []schema.Field,
	inputFormat, outputFormat, serdeClass string,
	serdeProperties, tableProperties map[string]string,
) error {
	columns, err := schema.ToColumnMap(storageSchema, e.conf.SupportTimestamp)
	if err != nil {
		return fmt.Errorf("create table %s.%s: %w", e.conf.Database, name, err)
	}

	partitionKeys := make([]catalog.FieldSchema, 0, len(e.conf.PartitionFields))
	for _, key := range e.conf.PartitionFields {
		partitionKeys = append(partitionKeys, catalog.FieldSchema{
			Name: key,
			Type: strings.ToLower(schema.PartitionKeyType(columns, key)),
		})
	}

	serdeParams := make(map[string]string, len(serdeProperties)+1)
	for k, v := range serdeProperties {
		serdeParams[k] = v
	}
	serdeParams[serializationFormatKey] = "1"

	table := catalog.Table{
		Database:      e.conf.Database,
		Name:          name,
		Owner:         e.conf.TableOwner,
		CreateTime:    e.now().Unix(),
		Parameters:    map[string]string{},
		PartitionKeys: partitionKeys,
		SD: catalog.StorageDescriptor{
			Columns:      e.nonPartitionColumns(columns),
			Location:     e.conf.BasePath,
			InputFormat:  inputFormat,
			OutputFormat: outputFormat,
			SerDeInfo: catalog.SerDeInfo{
				SerializationLib: serdeClass,
				Parameters:       serdeParams,
			},
		},
	}
	if e.conf.ExternalTable {
		table.Parameters["EXTERNAL"] = "TRUE"
		table.TableType = catalog.TableTypeExternal
	}
	for k, v := range tableProperties {
		table.Parameters[k] = v
	}

	if err := e.client.CreateTable(ctx, table); err != nil {
		return fmt.Errorf("create table %s.%s: %w", e.conf.Database, name, err)
	}
	e.logger.Infof("Created table %s.%s with %d columns and %d partition keys",
		e.conf.Database, name, len(table.SD.Columns), len(partitionKeys))
	return nil
}

// UpdateTableDefinition replaces the table's non-partition column list with
// the translation of newSchema; partition keys are never touched. On
// partitioned tables the alter is flagged cascade so the change propagates
// to already-registered partitions' metadata.
//
// Fetch-then-alter is not transactional: a concurrent external modification
// between the two calls is silently overwritten. Known, accepted race.
func (e *Executor) UpdateTableDefinition(ctx context.Context, name string, newSchema []schema.Field) error {
	columns, err := schema.ToColumnMap(newSchema, e.conf.SupportTimestamp)
	if err != nil {
		return fmt.Errorf("update table %s.%s: %w", e.conf.Database, name, err)
	}

	table, err := e.client.GetTable(ctx, e.conf.Database, name)
	if err != nil {
		return fmt.Errorf("update table %s.%s: %w", e.conf.Database, name, err)
	}
	table.SD.Columns = e.nonPartitionColumns(columns)

	env := catalog.EnvContext{}
	if len(e.conf.PartitionFields) > 0 {
		e.logger.Infof("Partitioned table %s.%s, altering with cascade", e.conf.Database, name)
		env[catalog.CascadeKey] = "true"
	}
	if err := e.client.AlterTable(ctx, e.conf.Database, name, table, env); err != nil {
		return fmt.Errorf("update table %s.%s: %w", e.conf.Database, name, err)
	}
	return nil
}

// GetTableSchema returns the table's full column set as an ordered
// name->type mapping, partition keys first, types uppercased.
func (e *Executor) GetTableSchema(ctx context.Context, name string) (*schema.ColumnMap, error) {
	defer e.stats.NewTaggedStat("metasync_get_table_schema_time", stats.TimerType, stats.Tags{
		"database": e.conf.Database,
		"table":    name,
	}).Since(e.now())

	table, err := e.client.GetTable(ctx, e.conf.Database, name)
	if err != nil {
		return nil, fmt.Errorf("%s.%s get table schema: %w", e.conf.Database, name, err)
	}

	out := schema.NewColumnMap()
	for _, f := range table.PartitionKeys {
		out.Set(f.Name, strings.ToUpper(f.Type))
	}
	for _, f := range table.SD.Columns {
		out.Set(f.Name, strings.ToUpper(f.Type))
	}
	return out, nil
}

// AddPartitionsToTable registers new partitions in bounded batches, reusing
// the table's current storage descriptor for every one of them. Batches are
// submitted sequentially with skip-if-exists semantics; a failure aborts the
// remaining batches while the ones already submitted stay applied, so the
// error names the failing batch for resumable re-diffing.
func (e *Executor) AddPartitionsToTable(ctx context.Context, name string, addPartitions []string) error {
	if len(addPartitions) == 0 {
		e.logger.Infof("No partitions to add for %s.%s", e.conf.Database, name)
		return nil
	}
	e.logger.Infof("Adding %d partitions to table %s.%s", len(addPartitions), e.conf.Database, name)

	table, err := e.client.GetTable(ctx, e.conf.Database, name)
	if err != nil {
		return fmt.Errorf("%s.%s add partitions: %w", e.conf.Database, name, err)
	}

	batches := planBatches(addPartitions, e.conf.BatchSize)
	for i, batch := range batches {
		parts := make([]catalog.Partition, 0, len(batch))
		for _, relativePath := range batch {
			p, err := e.buildPartition(ctx, name, table.SD, relativePath)
			if err != nil {
				return fmt.Errorf("%s.%s add partitions: %w", e.conf.Database, name, err)
			}
			parts = append(parts, p)
		}
		if _, err := e.client.AddPartitions(ctx, parts, true, false); err != nil {
			return fmt.Errorf("%s.%s add partitions batch %d/%d: %w", e.conf.Database, name, i+1, len(batches), err)
		}
		e.logger.Infof("Added partition batch %d/%d (%d partitions) to %s.%s",
			i+1, len(batches), len(parts), e.conf.Database, name)
		e.partitionStat("add", name).Count(len(parts))
	}
	return nil
}

// UpdatePartitionsToTable re-registers changed partitions in a single alter
// call. Locations are recomputed through the scheme-aware resolver, since a
// prior add may have recorded an unqualified location that must now carry
// the filesystem authority (or the reverse).
func (e *Executor) UpdatePartitionsToTable(ctx context.Context, name string, changedPartitions []string) error {
	if len(changedPartitions) == 0 {
		e.logger.Infof("No partitions to change for %s.%s", e.conf.Database, name)
		return nil
	}
	e.logger.Infof("Changing %d partitions on %s.%s", len(changedPartitions), e.conf.Database, name)

	table, err := e.client.GetTable(ctx, e.conf.Database, name)
	if err != nil {
		return fmt.Errorf("%s.%s update partitions: %w", e.conf.Database, name, err)
	}

	parts := make([]catalog.Partition, 0, len(changedPartitions))
	for _, relativePath := range changedPartitions {
		location, err := e.resolver.Resolve(ctx, relativePath)
		if err != nil {
			return fmt.Errorf("%s.%s update partitions: %w", e.conf.Database, name, err)
		}
		values, err := e.extractValues(relativePath)
		if err != nil {
			return fmt.Errorf("%s.%s update partitions: %w", e.conf.Database, name, err)
		}
		// Clone before overriding the location: the descriptor is shared
		// across all changed partitions.
		sd := table.SD.Clone()
		sd.Location = location
		parts = append(parts, catalog.Partition{
			Database: e.conf.Database,
			Table:    name,
			Values:   values,
			SD:       sd,
		})
	}
	if err := e.client.AlterPartitions(ctx, e.conf.Database, name, parts, nil); err != nil {
		return fmt.Errorf("%s.%s update partitions: %w", e.conf.Database, name, err)
	}
	e.partitionStat("update", name).Count(len(parts))
	return nil
}

// DropPartitionsToTable drops partitions one at a time, aborting on the
// first failure. Not-found errors from the catalog propagate unsuppressed.
func (e *Executor) DropPartitionsToTable(ctx context.Context, name string, dropPartitions []string) error {
	if len(dropPartitions) == 0 {
		e.logger.Infof("No partitions to drop for %s.%s", e.conf.Database, name)
		return nil
	}
	e.logger.Infof("Dropping %d partitions on %s.%s", len(dropPartitions), e.conf.Database, name)

	for _, relativePath := range dropPartitions {
		values, err := e.extractValues(relativePath)
		if err != nil {
			return fmt.Errorf("%s.%s drop partitions: %w", e.conf.Database, name, err)
		}
		if err := e.client.DropPartition(ctx, e.conf.Database, name, values); err != nil {
			return fmt.Errorf("%s.%s drop partition %q: %w", e.conf.Database, name, relativePath, err)
		}
		e.logger.Debugf("Dropped partition %s on %s.%s", relativePath, e.conf.Database, name)
	}
	e.partitionStat("drop", name).Count(len(dropPartitions))
	return nil
}

// UpdateTableComments overwrites the comments of the table columns named in
// comments; types and positions stay untouched, names absent from the table
// are silently ignored.
//
// Same fetch-then-alter race as UpdateTableDefinition.
func (e *Executor) UpdateTableComments(ctx context.Context, name string, comments map[string]string) error {
	table, err := e.client.GetTable(ctx, e.conf.Database, name)
	if err != nil {
		return fmt.Errorf("%s.%s update table comments: %w", e.conf.Database, name, err)
	}

	sd := table.SD.Clone()
	for i := range sd.Columns {
		if comment, ok := comments[sd.Columns[i].Name]; ok {
			sd.Columns[i].Comment = comment
		}
	}
	table.SD = sd

	if err := e.client.AlterTable(ctx, e.conf.Database, name, table, catalog.EnvContext{}); err != nil {
		return fmt.Errorf("%s.%s update table comments: %w", e.conf.Database, name, err)
	}
	return nil
}

// Close releases the catalog client's session state. Idempotent.
func (e *Executor) Close() error {
	if e.client == nil {
		return nil
	}
	if err := e.client.Close(); err != nil {
		return fmt.Errorf("close catalog client: %w", err)
	}
	return nil
}

// buildPartition assembles a partition record for a relative path, reusing
// the table's storage descriptor with only the location overridden. The
// descriptor is copied by value, so the override cannot leak into siblings.
func (e *Executor) buildPartition(ctx context.Context, table string, sd catalog.StorageDescriptor, relativePath string) (catalog.Partition, error) {
	location, err := e.resolver.Resolve(ctx, relativePath)
	if err != nil {
		return catalog.Partition{}, err
	}
	values, err := e.extractValues(relativePath)
	if err != nil {
		return catalog.Partition{}, err
	}
	sd.Location = location
	return catalog.Partition{
		Database: e.conf.Database,
		Table:    table,
		Values:   values,
		SD:       sd,
	}, nil
}

// nonPartitionColumns renders the translated schema as column definitions,
// leaving out the configured partition keys, which are declared separately
// on the table and must never appear in both lists.
func (e *Executor) nonPartitionColumns(m *schema.ColumnMap) []catalog.FieldSchema {
	out := make([]catalog.FieldSchema, 0, m.Len())
	for _, f := range schema.FieldSchemas(m) {
		if e.isPartitionField(f.Name) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (e *Executor) isPartitionField(name string) bool {
	for _, key := range e.conf.PartitionFields {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// extractValues runs the configured extractor and enforces positional
// alignment with the configured partition keys. A count mismatch is a
// data-corruption risk and is never truncated or padded away.
func (e *Executor) extractValues(relativePath string) ([]string, error) {
	values, err := e.extractor.ExtractValues(relativePath)
	if err != nil {
		return nil, fmt.Errorf("extract partition values from %q: %w", relativePath, err)
	}
	if len(values) != len(e.conf.PartitionFields) {
		return nil, fmt.Errorf("partition %q yielded %d values for %d configured partition keys",
			relativePath, len(values), len(e.conf.PartitionFields))
	}
	return values, nil
}

func (e *Executor) partitionStat(op, table string) stats.Measurement {
	return e.stats.NewTaggedStat("metasync_partitions", stats.CountType, stats.Tags{
		"op":       op,
		"database": e.conf.Database,
		"table":    table,
	})
}
