package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the tenant that owns Units.
type Organization struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"column:name;size:255;not null;uniqueIndex" json:"name"`
	LicenceNumber string    `gorm:"column:licence_number;size:50;not null;uniqueIndex" json:"licence_number"`
	Address       string    `gorm:"column:address;size:255;not null" json:"address"`
	ContactEmail  string    `gorm:"column:contact_email;size:255" json:"contact_email"`
	IsActive      bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Organization) TableName() string {
	return "organizations"
}

// BeforeCreate ensures id is set for DBs without default uuid.
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
