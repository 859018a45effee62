package dal

import (
	"context"
	"errors"
	"testing"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// MockDynamoAPI is a mock implementation of the DynamoDB client
type MockDynamoAPI struct {
	mock.Mock
}

func (m *MockDynamoAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (m *MockDynamoAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *MockDynamoAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.DeleteItemOutput{}, args.Error(0)
}

func (m *MockDynamoAPI) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.CreateTableOutput{}, args.Error(0)
}

func (m *MockDynamoAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.DescribeTableOutput), args.Error(1)
}

type record struct {
	PrincipalID string `dynamodbav:"principal_id"`
	Name        string `dynamodbav:"name"`
}

// DALTestSuite defines the test suite for the DynamoDB client
type DALTestSuite struct {
	suite.Suite
	api    *MockDynamoAPI
	client *DynamoDBClient
	ctx    context.Context
}

func (suite *DALTestSuite) SetupTest() {
	suite.api = new(MockDynamoAPI)
	suite.client = newDynamoDBClient(suite.api, &models.Config{DynamoDBTablePrefix: "test"}, logger.Nop())
	suite.ctx = context.Background()
}

func TestDALTestSuite(t *testing.T) {
	suite.Run(t, new(DALTestSuite))
}

func (suite *DALTestSuite) TestTableName() {
	assert.Equal(suite.T(), "test_portal_selection", suite.client.TableName("portal_selection"))
	assert.Equal(suite.T(), "portal_selection", TableName("", "portal_selection"))
}

func (suite *DALTestSuite) TestGetItem() {
	suite.api.On("GetItem", suite.ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		key, ok := in.Key["principal_id"].(*types.AttributeValueMemberS)
		return aws.ToString(in.TableName) == "test_portal_selection" && ok && key.Value == "uid-1"
	})).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"principal_id": &types.AttributeValueMemberS{Value: "uid-1"},
		"name":         &types.AttributeValueMemberS{Value: "Acme"},
	}}, nil)

	var got record
	err := suite.client.GetItem(suite.ctx, models.QueryConfig{
		TableName: "test_portal_selection",
		KeyName:   "principal_id",
		KeyValue:  "uid-1",
		KeyType:   models.StringType,
	}, &got)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Acme", got.Name)
}

func (suite *DALTestSuite) TestGetItemNotFound() {
	suite.api.On("GetItem", suite.ctx, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	var got record
	err := suite.client.GetItem(suite.ctx, models.QueryConfig{TableName: "t", KeyName: "id", KeyValue: "1", KeyType: models.NumberType}, &got)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DALTestSuite) TestGetItemError() {
	suite.api.On("GetItem", suite.ctx, mock.Anything).Return(nil, errors.New("throttled"))

	var got record
	err := suite.client.GetItem(suite.ctx, models.QueryConfig{TableName: "t", KeyName: "id", KeyValue: "1"}, &got)
	assert.EqualError(suite.T(), err, "throttled")
}

func (suite *DALTestSuite) TestPutItem() {
	suite.api.On("PutItem", suite.ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		name, ok := in.Item["name"].(*types.AttributeValueMemberS)
		return ok && name.Value == "Acme"
	})).Return(nil)

	err := suite.client.PutItem(suite.ctx, "test_portal_selection", record{PrincipalID: "uid-1", Name: "Acme"})
	assert.NoError(suite.T(), err)
	suite.api.AssertExpectations(suite.T())
}

func (suite *DALTestSuite) TestDeleteItemNumberKey() {
	suite.api.On("DeleteItem", suite.ctx, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		key, ok := in.Key["id"].(*types.AttributeValueMemberN)
		return ok && key.Value == "42"
	})).Return(nil)

	err := suite.client.DeleteItem(suite.ctx, models.QueryConfig{TableName: "t", KeyName: "id", KeyValue: "42", KeyType: models.NumberType})
	assert.NoError(suite.T(), err)
	suite.api.AssertExpectations(suite.T())
}

func (suite *DALTestSuite) TestWaitForTableActive() {
	suite.api.On("DescribeTable", mock.Anything, mock.Anything).Return(&dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil)

	err := suite.client.WaitForTable(suite.ctx, "test_portal_selection", 5*time.Second)
	assert.NoError(suite.T(), err)
}

func TestErrorClassification(t *testing.T) {
	notFound := &types.ResourceNotFoundException{Message: aws.String("missing")}
	assert.True(t, IsResourceNotFound(notFound))
	assert.False(t, IsResourceInUse(notFound))

	generic := &smithy.GenericAPIError{Code: "ResourceInUseException", Message: "exists"}
	assert.True(t, IsResourceInUse(generic))
	assert.False(t, IsResourceNotFound(generic))

	assert.False(t, IsResourceNotFound(errors.New("boom")))
}
