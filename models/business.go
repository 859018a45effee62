package models

import "time"

// Business is an organization a recruiter acts on behalf of
type Business struct {
	ID        int64  `json:"id" dynamodbav:"id" validate:"required,gt=0"`
	Name      string `json:"name" dynamodbav:"name" validate:"required,min=1,max=100"`
	CreatorID int64  `json:"creator_id" dynamodbav:"creator_id"`
}

// BusinessSelection is the recruiter's current business choice
type BusinessSelection struct {
	Selected *Business `json:"selected"`
	Loading  bool      `json:"loading"`
}

// SelectionRecord is the durable form of a selection, keyed by principal
type SelectionRecord struct {
	PrincipalID string    `json:"principal_id" dynamodbav:"principal_id"`
	Business    Business  `json:"business" dynamodbav:"business"`
	UpdatedAt   time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// SelectBusinessRequest is the request body for choosing a business
type SelectBusinessRequest struct {
	Business Business `json:"business" validate:"required"`
}
