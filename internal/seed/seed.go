package seed

import (
	"context"
	"fmt"
	"strings"

	"solv-backend/internal/config"
	"solv-backend/internal/domain"
	"solv-backend/internal/pkg/constants"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Run ensures the bootstrap organization and an ADMIN attached to it exist.
// It is idempotent: existing rows are found by name / email and left as they
// are, except that the admin is attached to the organization with role ADMIN.
func Run(ctx context.Context, db *gorm.DB, b config.Bootstrap) error {
	if !b.Enabled() {
		return nil
	}
	if b.AdminPassword == "" {
		return fmt.Errorf("seed: BOOTSTRAP_ADMIN_PASSWORD is required when BOOTSTRAP_ADMIN_EMAIL is set")
	}
	email := strings.ToLower(strings.TrimSpace(b.AdminEmail))

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org := domain.Organization{
			Name:          b.OrgName,
			LicenceNumber: b.OrgLicence,
			Address:       "N/A",
			IsActive:      true,
		}
		if err := tx.Where("name = ?", org.Name).FirstOrCreate(&org).Error; err != nil {
			return fmt.Errorf("seed organization: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(b.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("seed: hash password: %w", err)
		}
		admin := domain.User{
			Username:       email,
			Email:          email,
			PasswordHash:   string(hash),
			Role:           constants.Admin,
			OrganizationID: &org.ID,
		}
		if err := tx.Where("email = ?", email).FirstOrCreate(&admin).Error; err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if admin.Role != constants.Admin || admin.OrganizationID == nil || *admin.OrganizationID != org.ID {
			if err := tx.Model(&admin).Updates(map[string]interface{}{
				"role":            constants.Admin,
				"organization_id": org.ID,
			}).Error; err != nil {
				return fmt.Errorf("seed: attach admin: %w", err)
			}
		}

		log.Info().Str("org", org.Name).Str("org_id", org.ID.String()).Str("admin", email).Msg("seed OK")
		return nil
	})
}
