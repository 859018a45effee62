package infrastructure

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"testrelay-portal/dal"
	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tidwall/gjson"
)

type TableSchema struct {
	TableName             string                `json:"TableName"`
	AttributeDefinitions  []AttributeDefinition `json:"AttributeDefinitions"`
	KeySchema             []KeySchemaElement    `json:"KeySchema"`
	ProvisionedThroughput Throughput            `json:"ProvisionedThroughput"`
}

type AttributeDefinition struct {
	AttributeName string `json:"AttributeName"`
	AttributeType string `json:"AttributeType"`
}

type KeySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}

type Throughput struct {
	ReadCapacityUnits  int64 `json:"ReadCapacityUnits"`
	WriteCapacityUnits int64 `json:"WriteCapacityUnits"`
}

//go:embed table_schema.json
var tablesSchema []byte

const (
	maxCreateAttempts = 3
	tableActiveWait   = 2 * time.Minute
)

// retryDelay is a var so tests can shorten it
var retryDelay = 5 * time.Second

// GetTableInput returns the create input for the schema named name, with the
// table renamed to tableName.
func GetTableInput(name, tableName string) (*dynamodb.CreateTableInput, error) {
	tableJSON := gjson.GetBytes(tablesSchema, name)
	if !tableJSON.Exists() {
		return nil, fmt.Errorf("table schema not found for key: %s", name)
	}

	var schema TableSchema
	if err := json.Unmarshal([]byte(tableJSON.Raw), &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema JSON: %w", err)
	}
	schema.TableName = tableName

	return schema.ToDynamoInput(), nil
}

// ToDynamoInput converts the schema to a DynamoDB create request
func (ts *TableSchema) ToDynamoInput() *dynamodb.CreateTableInput {
	attrDefs := make([]types.AttributeDefinition, 0, len(ts.AttributeDefinitions))
	for _, a := range ts.AttributeDefinitions {
		attrDefs = append(attrDefs, types.AttributeDefinition{
			AttributeName: aws.String(a.AttributeName),
			AttributeType: types.ScalarAttributeType(a.AttributeType),
		})
	}

	keySchema := make([]types.KeySchemaElement, 0, len(ts.KeySchema))
	for _, k := range ts.KeySchema {
		keySchema = append(keySchema, types.KeySchemaElement{
			AttributeName: aws.String(k.AttributeName),
			KeyType:       types.KeyType(k.KeyType),
		})
	}

	return &dynamodb.CreateTableInput{
		TableName:            aws.String(ts.TableName),
		AttributeDefinitions: attrDefs,
		KeySchema:            keySchema,
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(ts.ProvisionedThroughput.ReadCapacityUnits),
			WriteCapacityUnits: aws.Int64(ts.ProvisionedThroughput.WriteCapacityUnits),
		},
	}
}

// EnsureTables creates each named table that does not exist yet and waits
// for it to become active. It stops at the first table that cannot be set up.
func EnsureTables(ctx context.Context, db dal.DatabaseClientInterface, names []string, log logger.Logger) ([]models.TableStatus, error) {
	statuses := make([]models.TableStatus, 0, len(names))
	for _, name := range names {
		tableName := db.TableName(name)
		status := models.TableStatus{Name: tableName}

		created, err := ensureTable(ctx, db, name, tableName, log)
		status.CheckedAt = time.Now().UTC()
		switch {
		case err != nil:
			status.Status = "FAILED"
			status.Error = err.Error()
		case created:
			status.Status = "ACTIVE"
		default:
			status.Status = "EXISTS"
		}
		statuses = append(statuses, status)

		if err != nil {
			log.Errorf("Failed to set up table %s: %v", tableName, err)
			return statuses, err
		}
	}
	return statuses, nil
}

func ensureTable(ctx context.Context, db dal.DatabaseClientInterface, name, tableName string, log logger.Logger) (bool, error) {
	input, err := GetTableInput(name, tableName)
	if err != nil {
		return false, err
	}

	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * retryDelay
			log.Infof("Retrying table creation for %s in %v (attempt %d/%d)", tableName, delay, attempt+1, maxCreateAttempts)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}

		_, err := db.DescribeTable(ctx, tableName)
		if err == nil {
			log.Debugf("Table %s already exists", tableName)
			return false, nil
		}
		if !dal.IsResourceNotFound(err) {
			lastErr = fmt.Errorf("failed to describe table: %w", err)
			continue
		}

		err = db.CreateTable(ctx, input)
		if err != nil && !dal.IsResourceInUse(err) {
			lastErr = fmt.Errorf("failed to create table: %w", err)
			continue
		}

		if err := db.WaitForTable(ctx, tableName, tableActiveWait); err != nil {
			return false, fmt.Errorf("table %s did not become active: %w", tableName, err)
		}
		log.Infof("Table %s is ready", tableName)
		return true, nil
	}

	return false, fmt.Errorf("failed to set up table %s after %d attempts: %w", tableName, maxCreateAttempts, lastErr)
}
