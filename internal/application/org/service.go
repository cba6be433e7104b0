package org

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"solv-backend/internal/domain"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/constants"
	"solv-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrOrgNotFound   = errors.New("Organization not found")
	ErrOrgHasUnits   = errors.New("Organization still owns units and cannot be deleted")
	ErrDuplicateOrg  = errors.New("Organization name or licence number already exists")
	ErrAdminRequired = errors.New("Only admins can create organizations")
	ErrNotOrgAdmin   = errors.New("Only admins of this organization can modify it")
)

const (
	defaultAddress        = "N/A"
	maxNameLength         = 255
	maxLicenceLength      = 50
	maxAddressLength      = 255
	maxContactEmailLength = 255
)

// Service encapsulates organization operations. Rdb may be nil; deleting an
// organization then leaves its members' sessions alone.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// OrgInput is the client-writable part of an Organization (id and
// created_at are server-assigned).
type OrgInput struct {
	Name          *string `json:"name"`
	LicenceNumber *string `json:"licence_number"`
	Address       *string `json:"address"`
	ContactEmail  *string `json:"contact_email"`
	IsActive      *bool   `json:"is_active"`
}

// DecodeOrgInput parses a JSON request body. A value of the wrong JSON type
// comes back as validation.FieldErrors for its key.
func DecodeOrgInput(body []byte) (OrgInput, error) {
	var in OrgInput
	if len(body) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return in, fmt.Errorf("decode organization: %w", validation.FromJSON(err))
	}
	return in, nil
}

func (in OrgInput) validate(requireAll bool) error {
	fe := validation.FieldErrors{}
	requiredText(fe, "name", in.Name, requireAll, maxNameLength)
	requiredText(fe, "licence_number", in.LicenceNumber, requireAll, maxLicenceLength)
	if in.Address != nil && len(*in.Address) > maxAddressLength {
		fe.Add("address", fmt.Sprintf("Ensure this field has no more than %d characters.", maxAddressLength))
	}
	if in.ContactEmail != nil {
		email := strings.TrimSpace(*in.ContactEmail)
		if email != "" && !validation.IsValidEmail(email) {
			fe.Add("contact_email", "Enter a valid email address.")
		} else if len(email) > maxContactEmailLength {
			fe.Add("contact_email", fmt.Sprintf("Ensure this field has no more than %d characters.", maxContactEmailLength))
		}
	}
	return fe.Err()
}

func requiredText(fe validation.FieldErrors, field string, v *string, required bool, max int) {
	switch {
	case v == nil:
		if required {
			fe.Add(field, "This field is required.")
		}
	case strings.TrimSpace(*v) == "":
		fe.Add(field, "This field may not be blank.")
	case len(strings.TrimSpace(*v)) > max:
		fe.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
	}
}

func (in OrgInput) apply(o *domain.Organization) {
	if in.Name != nil {
		o.Name = strings.TrimSpace(*in.Name)
	}
	if in.LicenceNumber != nil {
		o.LicenceNumber = strings.TrimSpace(*in.LicenceNumber)
	}
	if in.Address != nil {
		o.Address = strings.TrimSpace(*in.Address)
	}
	if in.ContactEmail != nil {
		o.ContactEmail = strings.ToLower(strings.TrimSpace(*in.ContactEmail))
	}
	if in.IsActive != nil {
		o.IsActive = *in.IsActive
	}
}

// List returns every organization ordered by name.
func (s *Service) List(ctx context.Context) ([]domain.Organization, error) {
	orgs := []domain.Organization{}
	if err := s.DB.WithContext(ctx).Order("name ASC").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// Get returns one organization.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return find(s.DB.WithContext(ctx), id)
}

// Create stores a new organization. Only ADMIN principals may create.
func (s *Service) Create(ctx context.Context, p domain.Principal, in OrgInput) (*domain.Organization, error) {
	if p.Role != constants.Admin {
		return nil, ErrAdminRequired
	}
	if err := in.validate(true); err != nil {
		return nil, err
	}
	o := &domain.Organization{Address: defaultAddress, IsActive: true}
	in.apply(o)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, o); err != nil {
			return err
		}
		return tx.Create(o).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return o, nil
}

// Update changes an organization. Only ADMINs of that organization may do so.
// partial=false is a PUT and requires name and licence_number.
func (s *Service) Update(ctx context.Context, p domain.Principal, id uuid.UUID, in OrgInput, partial bool) (*domain.Organization, error) {
	var o *domain.Organization
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, err = find(tx, id)
		if err != nil {
			return err
		}
		if !canManage(p, o.ID) {
			return ErrNotOrgAdmin
		}
		if err := in.validate(!partial); err != nil {
			return err
		}
		in.apply(o)
		if err := checkUnique(tx, o); err != nil {
			return err
		}
		return tx.Save(o).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return o, nil
}

// Delete removes an organization that owns no units. Users linked to it are
// detached in the same transaction and their sessions destroyed afterwards.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	var detached []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := find(tx, id)
		if err != nil {
			return err
		}
		if !canManage(p, o.ID) {
			return ErrNotOrgAdmin
		}
		var owned int64
		if err := tx.Model(&domain.Unit{}).Where("current_owner_id = ?", o.ID).Count(&owned).Error; err != nil {
			return fmt.Errorf("count owned units: %w", err)
		}
		if owned > 0 {
			return ErrOrgHasUnits
		}
		if err := tx.Model(&domain.User{}).
			Where("organization_id = ?", o.ID).
			Pluck("id", &detached).Error; err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		if err := tx.Model(&domain.User{}).
			Where("organization_id = ?", o.ID).
			Update("organization_id", nil).Error; err != nil {
			return fmt.Errorf("detach users: %w", err)
		}
		return tx.Delete(o).Error
	})
	if err != nil {
		return err
	}

	if s.Rdb != nil {
		for _, uid := range detached {
			middleware.DestroyUserSessions(ctx, s.Rdb, uid.String())
		}
	}
	return nil
}

func canManage(p domain.Principal, orgID uuid.UUID) bool {
	return p.Role == constants.Admin && p.Owns(orgID)
}

func find(db *gorm.DB, id uuid.UUID) (*domain.Organization, error) {
	if id == uuid.Nil {
		return nil, ErrOrgNotFound
	}
	var o domain.Organization
	if err := db.Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}
	return &o, nil
}

// checkUnique reports name / licence_number collisions as field errors before
// the insert so the client learns which field clashed.
func checkUnique(tx *gorm.DB, o *domain.Organization) error {
	fe := validation.FieldErrors{}
	var n int64
	if err := tx.Model(&domain.Organization{}).Where("name = ? AND id <> ?", o.Name, o.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		fe.Add("name", "organization with this name already exists.")
	}
	if err := tx.Model(&domain.Organization{}).Where("licence_number = ? AND id <> ?", o.LicenceNumber, o.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		fe.Add("licence_number", "organization with this licence number already exists.")
	}
	return fe.Err()
}

// translate maps a unique-index violation that slipped past checkUnique
// (concurrent insert) to ErrDuplicateOrg.
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateOrg
	}
	return err
}
