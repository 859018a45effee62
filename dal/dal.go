package dal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// ErrNotFound is returned by GetItem when no item matches the key
var ErrNotFound = errors.New("item not found")

// dynamoAPI is the subset of the DynamoDB client used here
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type DynamoDBClient struct {
	client dynamoAPI
	config *models.Config
	logger logger.Logger
}

// NewDynamoDBClient creates a new DynamoDB client
func NewDynamoDBClient(ctx context.Context, cfg *models.Config, log logger.Logger) (*DynamoDBClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Use static credentials if provided
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"", // session token
		))
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		// Override endpoint for local DynamoDB
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	log.Info("DynamoDB client initialized successfully")
	return newDynamoDBClient(client, cfg, log), nil
}

func newDynamoDBClient(client dynamoAPI, cfg *models.Config, log logger.Logger) *DynamoDBClient {
	return &DynamoDBClient{
		client: client,
		config: cfg,
		logger: log,
	}
}

// TableName returns the environment-prefixed name of a table
func (db *DynamoDBClient) TableName(name string) string {
	return TableName(db.config.DynamoDBTablePrefix, name)
}

// TableName joins prefix and name the way tables are provisioned
func TableName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// GetItem retrieves an item from DynamoDB
func (db *DynamoDBClient) GetItem(ctx context.Context, query models.QueryConfig, result interface{}) error {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(query.TableName),
		Key:            buildKey(query),
		ConsistentRead: aws.Bool(true),
	}

	output, err := db.client.GetItem(ctx, input)
	if err != nil {
		db.logger.Errorf("Failed to get item from %s: %v", query.TableName, err)
		return err
	}

	if output.Item == nil {
		return ErrNotFound
	}

	return attributevalue.UnmarshalMap(output.Item, result)
}

// PutItem stores an item in DynamoDB
func (db *DynamoDBClient) PutItem(ctx context.Context, tableName string, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	}

	_, err = db.client.PutItem(ctx, input)
	return err
}

// DeleteItem deletes an item from DynamoDB. Deleting a missing item is not an error.
func (db *DynamoDBClient) DeleteItem(ctx context.Context, query models.QueryConfig) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(query.TableName),
		Key:       buildKey(query),
	}

	_, err := db.client.DeleteItem(ctx, input)
	return err
}

// CreateTable creates a table
func (db *DynamoDBClient) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	_, err := db.client.CreateTable(ctx, input)
	return err
}

// DescribeTable describes a table
func (db *DynamoDBClient) DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error) {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}
	return db.client.DescribeTable(ctx, input)
}

// WaitForTable blocks until the table is ACTIVE or maxWait elapses
func (db *DynamoDBClient) WaitForTable(ctx context.Context, tableName string, maxWait time.Duration) error {
	waiter := dynamodb.NewTableExistsWaiter(db.client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = time.Second
		o.MaxDelay = 5 * time.Second
	})
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, maxWait)
}

func buildKey(query models.QueryConfig) map[string]types.AttributeValue {
	var value types.AttributeValue
	switch query.KeyType {
	case models.NumberType:
		value = &types.AttributeValueMemberN{Value: query.KeyValue}
	default:
		value = &types.AttributeValueMemberS{Value: query.KeyValue}
	}
	return map[string]types.AttributeValue{query.KeyName: value}
}

// IsResourceNotFound reports whether err says the table does not exist
func IsResourceNotFound(err error) bool {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return true
	}
	return hasErrorCode(err, "ResourceNotFoundException")
}

// IsResourceInUse reports whether err says the table already exists or is changing
func IsResourceInUse(err error) bool {
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return true
	}
	return hasErrorCode(err, "ResourceInUseException")
}

func hasErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
