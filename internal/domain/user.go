package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account that may belong to one Organization.
type User struct {
	ID             uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Username       string        `gorm:"column:username;size:150;not null;uniqueIndex" json:"username"`
	Email          string        `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash   string        `gorm:"column:password_hash;not null" json:"-"`
	OrganizationID *uuid.UUID    `gorm:"column:organization_id;type:uuid;index" json:"organization"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
	Role           string        `gorm:"column:role;size:20;not null" json:"role"`
	CreatedAt      time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid).
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Principal returns the authenticated-caller view of the user.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Role: u.Role, OrgID: u.OrganizationID}
}
