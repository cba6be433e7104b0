package domain

import "github.com/google/uuid"

// Principal is the authenticated caller every scoped operation receives.
// OrgID is nil for users that do not belong to an organization.
type Principal struct {
	UserID uuid.UUID
	Role   string
	OrgID  *uuid.UUID
}

func (p Principal) HasOrganization() bool {
	return p.OrgID != nil && *p.OrgID != uuid.Nil
}

// Owns reports whether orgID is the principal's organization.
func (p Principal) Owns(orgID uuid.UUID) bool {
	return p.HasOrganization() && *p.OrgID == orgID
}
