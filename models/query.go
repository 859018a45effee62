package models

// AttributeType enum for different DynamoDB attribute types
type AttributeType int

const (
	StringType AttributeType = iota
	NumberType
)

// QueryConfig describes a primary-key lookup against a DynamoDB table
type QueryConfig struct {
	TableName string
	KeyName   string
	KeyValue  string
	KeyType   AttributeType
}
