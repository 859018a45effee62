package dal

import (
	"context"
	"time"

	"testrelay-portal/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DatabaseClientInterface defines the contract for database operations
type DatabaseClientInterface interface {
	// Core CRUD operations
	GetItem(ctx context.Context, query models.QueryConfig, result interface{}) error
	PutItem(ctx context.Context, tableName string, item interface{}) error
	DeleteItem(ctx context.Context, query models.QueryConfig) error

	// Table management operations
	TableName(name string) string
	CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error
	DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error)
	WaitForTable(ctx context.Context, tableName string, maxWait time.Duration) error
}
