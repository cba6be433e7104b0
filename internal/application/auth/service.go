package auth

import (
	"context"
	"errors"
	"strings"

	"solv-backend/internal/domain"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginInput for login and token request bodies. Either field identifies the
// account: the web client sends username, older tools send email.
type LoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) identifier() string {
	if id := strings.TrimSpace(in.Username); id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(in.Email))
}

// UserFinder abstracts user lookup by credentials (GORM in production, fakes in tests).
type UserFinder interface {
	FindByCredentials(ctx context.Context, in LoginInput) (*domain.User, error)
}

// GormUserFinder implements UserFinder using GORM and bcrypt.
type GormUserFinder struct{ DB *gorm.DB }

func (g *GormUserFinder) FindByCredentials(ctx context.Context, in LoginInput) (*domain.User, error) {
	return LoginUser(ctx, g.DB, in)
}

// LoginUser finds the user by username or email and verifies the password.
// Unknown account and wrong password are reported the same way.
func LoginUser(ctx context.Context, db *gorm.DB, in LoginInput) (*domain.User, error) {
	id := in.identifier()
	if id == "" || in.Password == "" {
		return nil, ErrCredentialsRequired
	}
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ? OR email = ?", id, strings.ToLower(id)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}
