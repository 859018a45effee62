package models

import "strconv"

// Well-known keys inside the custom claims namespace
const (
	ClaimAllowedRoles   = "x-hasura-allowed-roles"
	ClaimDefaultRole    = "x-hasura-default-role"
	ClaimUserID         = "x-hasura-user-id"
	ClaimUserPK         = "x-hasura-user-pk"
	ClaimBusinessIDs    = "x-hasura-business-ids"
	ClaimInterviewingID = "x-hasura-interviewing-ids"
)

// DefaultClaimsNamespace is the custom-claims field the API reads role metadata from
const DefaultClaimsNamespace = "https://hasura.io/jwt/claims"

// Claims is the role/permission map embedded in a session token
type Claims map[string]interface{}

// UserPK returns the numeric user id carried by the claims, or 0.
func (c Claims) UserPK() int64 {
	switch v := c[ClaimUserPK].(type) {
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return id
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

// DefaultRole returns the default role asserted by the claims.
func (c Claims) DefaultRole() string {
	role, _ := c[ClaimDefaultRole].(string)
	return role
}

// HasRole reports whether role is listed in the allowed roles.
func (c Claims) HasRole(role string) bool {
	if c.DefaultRole() == role {
		return true
	}
	switch roles := c[ClaimAllowedRoles].(type) {
	case []interface{}:
		for _, r := range roles {
			if s, ok := r.(string); ok && s == role {
				return true
			}
		}
	case []string:
		for _, r := range roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

// ProvisionRequest is the payload sent to the claims provisioner
type ProvisionRequest struct {
	Role       string `json:"role"`
	BusinessID *int64 `json:"business_id,omitempty"`
}
