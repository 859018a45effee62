package transport

import (
	"strconv"
	"sync/atomic"

	"testrelay-portal/models"
)

// Portal variants
const (
	VariantRecruiter = "recruiter"
	VariantCandidate = "candidate"
)

// SelectionSource reports the business the recruiter currently acts for
type SelectionSource interface {
	Selected() *models.Business
}

type selectionHolder struct {
	source SelectionSource
}

// RoleSelector decides the role-selector headers sent with every request.
// The candidate variant always asserts its role; the recruiter variant
// asserts its role and business while a business is selected.
type RoleSelector struct {
	variant        string
	role           string
	roleHeader     string
	businessHeader string
	selection      atomic.Pointer[selectionHolder]
}

func NewRoleSelector(variant, role, roleHeader, businessHeader string) *RoleSelector {
	if role == "" {
		role = variant
	}
	if roleHeader == "" {
		roleHeader = "X-Hasura-Role"
	}
	if businessHeader == "" {
		businessHeader = "X-Hasura-Business-Id"
	}
	return &RoleSelector{
		variant:        variant,
		role:           role,
		roleHeader:     roleHeader,
		businessHeader: businessHeader,
	}
}

// Bind attaches the business selection. It may be called after the link is
// in use.
func (s *RoleSelector) Bind(source SelectionSource) {
	s.selection.Store(&selectionHolder{source: source})
}

// Headers returns the headers for the next request.
func (s *RoleSelector) Headers() map[string]string {
	if s.variant == VariantCandidate {
		return map[string]string{s.roleHeader: s.role}
	}

	holder := s.selection.Load()
	if holder == nil || holder.source == nil {
		return nil
	}
	business := holder.source.Selected()
	if business == nil {
		return nil
	}
	return map[string]string{
		s.roleHeader:     s.role,
		s.businessHeader: strconv.FormatInt(business.ID, 10),
	}
}
