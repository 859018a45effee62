package repository

import (
	"context"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"
)

const listBusinessesQuery = `query GetBusiness {
  businesses {
    id
    name
    creator_id
  }
}`

// GraphQLDoer runs a GraphQL operation and decodes its data
type GraphQLDoer interface {
	Do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error
}

// BusinessRepository reads businesses from the API
type BusinessRepository struct {
	client GraphQLDoer
	logger logger.Logger
}

func NewBusinessRepository(client GraphQLDoer, log logger.Logger) *BusinessRepository {
	return &BusinessRepository{
		client: client,
		logger: log,
	}
}

// ListBusinesses returns every business visible to the caller's role
func (r *BusinessRepository) ListBusinesses(ctx context.Context) ([]models.Business, error) {
	var out struct {
		Businesses []models.Business `json:"businesses"`
	}
	if err := r.client.Do(ctx, listBusinessesQuery, nil, &out); err != nil {
		return nil, err
	}
	r.logger.Debugf("Fetched %d businesses", len(out.Businesses))
	return out.Businesses, nil
}
