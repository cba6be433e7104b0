package units

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solv-backend/internal/domain"
	"solv-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNoOrganization = errors.New("User must belong to an Organization to create units.")
	ErrUnitNotFound   = errors.New("Unit not found")
)

// Service scopes every unit operation to the caller's organization.
type Service struct {
	DB *gorm.DB
	// Now defaults date_harvested; nil means time.Now.
	Now func() time.Time
}

// ListFilter narrows List. Empty fields are ignored.
type ListFilter struct {
	Status        string
	UnitType      string
	LabTestStatus string
}

func (f ListFilter) validate() error {
	fe := validation.FieldErrors{}
	if f.Status != "" && !domain.UnitStatus(f.Status).Valid() {
		fe.Add("status", invalidChoice(f.Status))
	}
	if f.UnitType != "" && !domain.UnitType(f.UnitType).Valid() {
		fe.Add("unit_type", invalidChoice(f.UnitType))
	}
	if f.LabTestStatus != "" && !domain.LabTestStatus(f.LabTestStatus).Valid() {
		fe.Add("lab_test_status", invalidChoice(f.LabTestStatus))
	}
	return fe.Err()
}

// List returns the units owned by the caller's organization, newest first.
// A caller without an organization gets an empty list, not an error.
func (s *Service) List(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.Unit, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	units := []domain.Unit{}
	if !p.HasOrganization() {
		return units, nil
	}
	q := s.DB.WithContext(ctx).Where("current_owner_id = ?", *p.OrgID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UnitType != "" {
		q = q.Where("unit_type = ?", f.UnitType)
	}
	if f.LabTestStatus != "" {
		q = q.Where("lab_test_status = ?", f.LabTestStatus)
	}
	if err := q.Order("created_at DESC").Find(&units).Error; err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

// Get returns one unit if the caller's organization owns it. Units owned by
// anyone else are reported as not found.
func (s *Service) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Unit, error) {
	return s.find(s.DB.WithContext(ctx), p, id)
}

// Create validates in and stores a unit owned by the caller's organization.
// current_owner is never taken from the client.
func (s *Service) Create(ctx context.Context, p domain.Principal, in UnitInput) (*domain.Unit, error) {
	if !p.HasOrganization() {
		return nil, ErrNoOrganization
	}
	ch, err := in.validate(true)
	if err != nil {
		return nil, err
	}

	u := s.newUnit(*p.OrgID)
	ch.apply(u)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The caller's organization may have been deleted since they
		// authenticated.
		var orgs int64
		if err := tx.Model(&domain.Organization{}).Where("id = ?", u.CurrentOwnerID).Count(&orgs).Error; err != nil {
			return fmt.Errorf("check organization: %w", err)
		}
		if orgs == 0 {
			return ErrNoOrganization
		}
		if ch.parentID != nil {
			if err := s.checkParent(tx, p, u.ID, *ch.parentID); err != nil {
				return err
			}
		}
		return tx.Create(u).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return nil, ErrNoOrganization
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Update applies in to a unit the caller owns. partial=false is a PUT and
// requires the fields that have no default.
func (s *Service) Update(ctx context.Context, p domain.Principal, id uuid.UUID, in UnitInput, partial bool) (*domain.Unit, error) {
	var u *domain.Unit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		u, err = s.find(tx, p, id)
		if err != nil {
			return err
		}
		ch, err := in.validate(!partial)
		if err != nil {
			return err
		}
		if ch.parentSet && ch.parentID != nil {
			if err := s.checkParent(tx, p, u.ID, *ch.parentID); err != nil {
				return err
			}
		}
		ch.apply(u)
		return tx.Save(u).Error
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a unit the caller owns. Children keep existing with their
// parent_unit cleared.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := s.find(tx, p, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&domain.Unit{}).
			Where("parent_unit_id = ?", u.ID).
			Update("parent_unit_id", nil).Error; err != nil {
			return fmt.Errorf("detach children: %w", err)
		}
		return tx.Delete(u).Error
	})
}

// Lineage returns the provenance chain starting at the unit and walking up
// through its parents. The walk stops at the first ancestor the caller cannot
// see.
func (s *Service) Lineage(ctx context.Context, p domain.Principal, id uuid.UUID) ([]domain.Unit, error) {
	db := s.DB.WithContext(ctx)
	u, err := s.find(db, p, id)
	if err != nil {
		return nil, err
	}
	chain := []domain.Unit{*u}
	seen := map[uuid.UUID]bool{u.ID: true}
	for cur := u; cur.ParentUnitID != nil && !seen[*cur.ParentUnitID]; {
		parent, err := s.find(db, p, *cur.ParentUnitID)
		if errors.Is(err, ErrUnitNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		seen[parent.ID] = true
		chain = append(chain, *parent)
		cur = parent
	}
	return chain, nil
}

// Children returns the direct children of a unit, restricted to the caller's
// organization.
func (s *Service) Children(ctx context.Context, p domain.Principal, id uuid.UUID) ([]domain.Unit, error) {
	db := s.DB.WithContext(ctx)
	u, err := s.find(db, p, id)
	if err != nil {
		return nil, err
	}
	children := []domain.Unit{}
	if err := db.Where("parent_unit_id = ? AND current_owner_id = ?", u.ID, *p.OrgID).
		Order("created_at ASC").
		Find(&children).Error; err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

func (s *Service) find(db *gorm.DB, p domain.Principal, id uuid.UUID) (*domain.Unit, error) {
	if !p.HasOrganization() || id == uuid.Nil {
		return nil, ErrUnitNotFound
	}
	var u domain.Unit
	if err := db.Where("id = ? AND current_owner_id = ?", id, *p.OrgID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return &u, nil
}

// checkParent verifies parentID is visible to the caller and that linking
// unitID under it keeps the provenance graph a forest.
func (s *Service) checkParent(tx *gorm.DB, p domain.Principal, unitID, parentID uuid.UUID) error {
	fe := validation.FieldErrors{}
	if parentID == unitID {
		fe.Add("parent_unit", "A unit cannot be its own parent.")
		return fe
	}
	parent, err := s.find(tx, p, parentID)
	if errors.Is(err, ErrUnitNotFound) {
		fe.Add("parent_unit", fmt.Sprintf("Invalid pk %q - object does not exist.", parentID.String()))
		return fe
	}
	if err != nil {
		return err
	}

	seen := map[uuid.UUID]bool{parent.ID: true}
	next := parent.ParentUnitID
	for next != nil {
		if *next == unitID {
			fe.Add("parent_unit", "Parent assignment would create a cycle.")
			return fe
		}
		if seen[*next] {
			break
		}
		seen[*next] = true
		var ancestor domain.Unit
		if err := tx.Select("id", "parent_unit_id").Where("id = ?", *next).First(&ancestor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return err
		}
		next = ancestor.ParentUnitID
	}
	return nil
}

func (s *Service) newUnit(owner uuid.UUID) *domain.Unit {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return &domain.Unit{
		ID:              uuid.New(),
		UnitType:        domain.UnitTypeHarvest,
		DateHarvested:   datatypes.Date(truncateDate(now())),
		Status:          domain.UnitStatusActive,
		LabTestStatus:   domain.LabTestPending,
		StorageLocation: domain.DefaultStorageLocation,
		GPSCoordinates:  domain.DefaultGPSCoordinates,
		QualityGrade:    domain.QualityGradePending,
		CurrentOwnerID:  owner,
	}
}
