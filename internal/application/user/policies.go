package user

import (
	"errors"

	"solv-backend/internal/domain"
	"solv-backend/internal/pkg/constants"

	"gorm.io/gorm"
)

var ErrOrgNeedsAdmin = errors.New("Organization must have at least one admin")

// validateMembershipChange enforces the governance rules for giving target
// role in the actor's organization. Returns nil on success.
func validateMembershipChange(tx *gorm.DB, actor domain.Principal, target *domain.User, role string) error {
	if target.OrganizationID != nil && !actor.Owns(*target.OrganizationID) {
		return ErrUserInOtherOrg
	}
	if target.ID == actor.UserID && role != target.Role {
		return ErrCannotChangeOwnRole
	}
	// Prevent last admin downgrade
	if target.OrganizationID != nil && target.Role == constants.Admin && role != constants.Admin {
		var admins int64
		if err := tx.Model(&domain.User{}).
			Where("organization_id = ? AND role = ?", *target.OrganizationID, constants.Admin).
			Count(&admins).Error; err != nil {
			return err
		}
		if admins <= 1 {
			return ErrOrgNeedsAdmin
		}
	}
	return nil
}
