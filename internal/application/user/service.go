package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"solv-backend/internal/domain"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/constants"
	"solv-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("User not found")
	ErrAdminWithOrgRequired = errors.New("Only admins of an organization can assign members")
	ErrUserInOtherOrg       = errors.New("User belongs to another organization")
	ErrCannotChangeOwnRole  = errors.New("Users cannot modify their own role")
)

// Service holds DB and Redis for user operations. Rdb may be nil when
// sessions are not in use; membership changes then skip session cleanup.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// RegisterInput is the public sign-up payload.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a WORKER that belongs to no organization. An admin has to
// assign membership before the user can see or create units.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	fe := validation.FieldErrors{}
	if !validation.IsValidUsername(username) {
		fe.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if !validation.IsValidEmail(email) {
		fe.Add("email", "Enter a valid email address.")
	}
	if !validation.IsValidPassword(in.Password) {
		fe.Add("password", "Password must be at least 8 characters and contain a letter, a number and a special character.")
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		fe.Add("username", "A user with that username already exists.")
	}
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		fe.Add("email", "A user with that email already exists.")
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         constants.Worker,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// Get returns a user the caller may see: themselves, or anyone in their
// organization when the caller is an ADMIN.
func (s *Service) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.User, error) {
	u, err := find(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if u.ID == p.UserID {
		return u, nil
	}
	if p.Role == constants.Admin && u.OrganizationID != nil && p.Owns(*u.OrganizationID) {
		return u, nil
	}
	return nil, ErrUserNotFound
}

// MembershipInput sets the role a user holds in the admin's organization.
type MembershipInput struct {
	Role string `json:"role"`
}

// AssignMembership attaches the target user to the caller's organization
// with the given role. Targets already in another organization are refused.
// The target's sessions are destroyed so their next request carries the new
// organization.
func (s *Service) AssignMembership(ctx context.Context, p domain.Principal, targetID uuid.UUID, in MembershipInput) (*domain.User, error) {
	if p.Role != constants.Admin || !p.HasOrganization() {
		return nil, ErrAdminWithOrgRequired
	}
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if role == "" {
		role = constants.Worker
	}
	if !constants.IsValidRole(role) {
		fe := validation.FieldErrors{}
		fe.Add("role", fmt.Sprintf("%q is not a valid choice.", in.Role))
		return nil, fe
	}

	var u *domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		u, err = find(tx, targetID)
		if err != nil {
			return err
		}
		if err := validateMembershipChange(tx, p, u, role); err != nil {
			return err
		}
		orgID := *p.OrgID
		u.OrganizationID = &orgID
		u.Role = role
		return tx.Model(u).Updates(map[string]interface{}{
			"organization_id": orgID,
			"role":            role,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if s.Rdb != nil {
		middleware.DestroyUserSessions(ctx, s.Rdb, u.ID.String())
	}
	return u, nil
}

func find(db *gorm.DB, id uuid.UUID) (*domain.User, error) {
	if id == uuid.Nil {
		return nil, ErrUserNotFound
	}
	var u domain.User
	if err := db.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
