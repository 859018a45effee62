package transport

import (
	"testing"

	"testrelay-portal/models"

	"github.com/stretchr/testify/assert"
)

func TestRoleSelector_Candidate(t *testing.T) {
	selector := NewRoleSelector(VariantCandidate, "", "", "")
	assert.Equal(t, map[string]string{"X-Hasura-Role": "candidate"}, selector.Headers())

	selector.Bind(&staticSelection{business: &models.Business{ID: 3}})
	assert.Equal(t, map[string]string{"X-Hasura-Role": "candidate"}, selector.Headers())
}

func TestRoleSelector_Recruiter(t *testing.T) {
	selector := NewRoleSelector(VariantRecruiter, "recruiter", "X-Role", "X-Business")
	assert.Nil(t, selector.Headers())

	selection := &staticSelection{}
	selector.Bind(selection)
	assert.Nil(t, selector.Headers())

	selection.business = &models.Business{ID: 42, Name: "Acme"}
	assert.Equal(t, map[string]string{
		"X-Role":     "recruiter",
		"X-Business": "42",
	}, selector.Headers())
}
