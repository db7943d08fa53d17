// Package glue implements catalog.Client on top of the AWS Glue Data
// Catalog.
package glue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	glueservice "github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/rudderlabs/metasync/catalog"
)

const alreadyExistsErrorCode = "AlreadyExistsException"

type Client struct {
	glue *glueservice.Client
}

func New(cfg aws.Config) *Client {
	return &Client{glue: glueservice.NewFromConfig(cfg)}
}

// NewWithRegion builds a client from the default AWS credential chain.
func NewWithRegion(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(cfg), nil
}

func (c *Client) CreateDatabase(ctx context.Context, db catalog.Database) error {
	input := &glueservice.CreateDatabaseInput{
		DatabaseInput: &gluetypes.DatabaseInput{
			Name:        aws.String(db.Name),
			Description: stringOrNil(db.Description),
			LocationUri: stringOrNil(db.LocationURI),
			Parameters:  db.Parameters,
		},
	}
	_, err := c.glue.CreateDatabase(ctx, input)
	return mapError(err)
}

func (c *Client) CreateTable(ctx context.Context, table catalog.Table) error {
	input := &glueservice.CreateTableInput{
		DatabaseName: aws.String(table.Database),
		TableInput:   toTableInput(table),
	}
	_, err := c.glue.CreateTable(ctx, input)
	return mapError(err)
}

func (c *Client) GetTable(ctx context.Context, database, table string) (catalog.Table, error) {
	out, err := c.glue.GetTable(ctx, &glueservice.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(table),
	})
	if err != nil {
		return catalog.Table{}, mapError(err)
	}
	return fromTable(database, out.Table), nil
}

// AlterTable submits the updated descriptor. Glue has no cascade alter mode,
// so the env context is accepted and ignored; partition metadata is only
// rewritten by explicit AlterPartitions calls.
func (c *Client) AlterTable(ctx context.Context, database, table string, updated catalog.Table, _ catalog.EnvContext) error {
	updated.Database = database
	updated.Name = table
	input := &glueservice.UpdateTableInput{
		DatabaseName: aws.String(database),
		TableInput:   toTableInput(updated),
	}
	_, err := c.glue.UpdateTable(ctx, input)
	return mapError(err)
}

func (c *Client) AddPartitions(ctx context.Context, parts []catalog.Partition, ifNotExists, needResult bool) ([]catalog.Partition, error) {
	if len(parts) == 0 {
		return nil, nil
	}
	database, table := parts[0].Database, parts[0].Table

	inputs := make([]gluetypes.PartitionInput, 0, len(parts))
	for _, p := range parts {
		inputs = append(inputs, toPartitionInput(p))
	}
	out, err := c.glue.BatchCreatePartition(ctx, &glueservice.BatchCreatePartitionInput{
		DatabaseName:       aws.String(database),
		TableName:          aws.String(table),
		PartitionInputList: inputs,
	})
	if err != nil {
		return nil, mapError(err)
	}

	rejected := map[string]struct{}{}
	for _, pe := range out.Errors {
		code, message := "", ""
		if pe.ErrorDetail != nil {
			code = aws.ToString(pe.ErrorDetail.ErrorCode)
			message = aws.ToString(pe.ErrorDetail.ErrorMessage)
		}
		if ifNotExists && code == alreadyExistsErrorCode {
			rejected[valuesKey(pe.PartitionValues)] = struct{}{}
			continue
		}
		return nil, fmt.Errorf("batch create partition %v: %s: %s", pe.PartitionValues, code, message)
	}

	if !needResult {
		return nil, nil
	}
	accepted := make([]catalog.Partition, 0, len(parts))
	for _, p := range parts {
		if _, ok := rejected[valuesKey(p.Values)]; !ok {
			accepted = append(accepted, p)
		}
	}
	return accepted, nil
}

func (c *Client) AlterPartitions(ctx context.Context, database, table string, parts []catalog.Partition, _ catalog.EnvContext) error {
	if len(parts) == 0 {
		return nil
	}
	entries := make([]gluetypes.BatchUpdatePartitionRequestEntry, 0, len(parts))
	for _, p := range parts {
		input := toPartitionInput(p)
		entries = append(entries, gluetypes.BatchUpdatePartitionRequestEntry{
			PartitionValueList: p.Values,
			PartitionInput:     &input,
		})
	}
	out, err := c.glue.BatchUpdatePartition(ctx, &glueservice.BatchUpdatePartitionInput{
		DatabaseName: aws.String(database),
		TableName:    aws.String(table),
		Entries:      entries,
	})
	if err != nil {
		return mapError(err)
	}
	for _, fe := range out.Errors {
		if fe.ErrorDetail != nil {
			return fmt.Errorf("batch update partition %v: %s: %s",
				fe.PartitionValueList,
				aws.ToString(fe.ErrorDetail.ErrorCode),
				aws.ToString(fe.ErrorDetail.ErrorMessage))
		}
	}
	return nil
}

func (c *Client) DropPartition(ctx context.Context, database, table string, values []string) error {
	_, err := c.glue.DeletePartition(ctx, &glueservice.DeletePartitionInput{
		DatabaseName:    aws.String(database),
		TableName:       aws.String(table),
		PartitionValues: values,
	})
	return mapError(err)
}

// Close is a no-op: the SDK client holds no session state. Kept for the
// catalog.Client contract.
func (c *Client) Close() error {
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var alreadyExists *gluetypes.AlreadyExistsException
	if errors.As(err, &alreadyExists) {
		return fmt.Errorf("%w: %s", catalog.ErrAlreadyExists, alreadyExists.ErrorMessage())
	}
	var notFound *gluetypes.EntityNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", catalog.ErrNotFound, notFound.ErrorMessage())
	}
	return err
}

func toTableInput(table catalog.Table) *gluetypes.TableInput {
	return &gluetypes.TableInput{
		Name:              aws.String(table.Name),
		Owner:             stringOrNil(table.Owner),
		TableType:         stringOrNil(table.TableType),
		Parameters:        table.Parameters,
		PartitionKeys:     toColumns(table.PartitionKeys),
		StorageDescriptor: toStorageDescriptor(table.SD),
	}
}

func fromTable(database string, t *gluetypes.Table) catalog.Table {
	out := catalog.Table{
		Database:      database,
		Name:          aws.ToString(t.Name),
		Owner:         aws.ToString(t.Owner),
		TableType:     aws.ToString(t.TableType),
		Parameters:    t.Parameters,
		PartitionKeys: fromColumns(t.PartitionKeys),
	}
	if t.CreateTime != nil {
		out.CreateTime = t.CreateTime.Unix()
	}
	if t.StorageDescriptor != nil {
		out.SD = fromStorageDescriptor(t.StorageDescriptor)
	}
	return out
}

func toPartitionInput(p catalog.Partition) gluetypes.PartitionInput {
	return gluetypes.PartitionInput{
		Values:            p.Values,
		StorageDescriptor: toStorageDescriptor(p.SD),
	}
}

func toStorageDescriptor(sd catalog.StorageDescriptor) *gluetypes.StorageDescriptor {
	return &gluetypes.StorageDescriptor{
		Columns:      toColumns(sd.Columns),
		Location:     stringOrNil(sd.Location),
		InputFormat:  stringOrNil(sd.InputFormat),
		OutputFormat: stringOrNil(sd.OutputFormat),
		SerdeInfo: &gluetypes.SerDeInfo{
			Name:                 stringOrNil(sd.SerDeInfo.Name),
			SerializationLibrary: stringOrNil(sd.SerDeInfo.SerializationLib),
			Parameters:           sd.SerDeInfo.Parameters,
		},
	}
}

func fromStorageDescriptor(sd *gluetypes.StorageDescriptor) catalog.StorageDescriptor {
	out := catalog.StorageDescriptor{
		Columns:      fromColumns(sd.Columns),
		Location:     aws.ToString(sd.Location),
		InputFormat:  aws.ToString(sd.InputFormat),
		OutputFormat: aws.ToString(sd.OutputFormat),
	}
	if sd.SerdeInfo != nil {
		out.SerDeInfo = catalog.SerDeInfo{
			Name:             aws.ToString(sd.SerdeInfo.Name),
			SerializationLib: aws.ToString(sd.SerdeInfo.SerializationLibrary),
			Parameters:       sd.SerdeInfo.Parameters,
		}
	}
	return out
}

func toColumns(fields []catalog.FieldSchema) []gluetypes.Column {
	out := make([]gluetypes.Column, 0, len(fields))
	for _, f := range fields {
		out = append(out, gluetypes.Column{
			Name:    aws.String(f.Name),
			Type:    stringOrNil(f.Type),
			Comment: stringOrNil(f.Comment),
		})
	}
	return out
}

func fromColumns(cols []gluetypes.Column) []catalog.FieldSchema {
	out := make([]catalog.FieldSchema, 0, len(cols))
	for _, c := range cols {
		out = append(out, catalog.FieldSchema{
			Name:    aws.ToString(c.Name),
			Type:    aws.ToString(c.Type),
			Comment: aws.ToString(c.Comment),
		})
	}
	return out
}

func valuesKey(values []string) string {
	key := ""
	for _, v := range values {
		key += v + "\x00"
	}
	return key
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
