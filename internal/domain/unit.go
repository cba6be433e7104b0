package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UnitType string

const (
	UnitTypeHarvest   UnitType = "HARVEST"
	UnitTypeProcessed UnitType = "PROCESSED"
	UnitTypeFinal     UnitType = "FINAL"
)

func (t UnitType) Valid() bool {
	switch t {
	case UnitTypeHarvest, UnitTypeProcessed, UnitTypeFinal:
		return true
	}
	return false
}

type UnitStatus string

const (
	UnitStatusActive   UnitStatus = "ACTIVE"
	UnitStatusTransit  UnitStatus = "TRANSIT"
	UnitStatusArchived UnitStatus = "ARCHIVED"
	UnitStatusDisposed UnitStatus = "DISPOSED"
)

func (s UnitStatus) Valid() bool {
	switch s {
	case UnitStatusActive, UnitStatusTransit, UnitStatusArchived, UnitStatusDisposed:
		return true
	}
	return false
}

type LabTestStatus string

const (
	LabTestPending LabTestStatus = "PENDING"
	LabTestPass    LabTestStatus = "PASS"
	LabTestFail    LabTestStatus = "FAIL"
)

func (s LabTestStatus) Valid() bool {
	switch s {
	case LabTestPending, LabTestPass, LabTestFail:
		return true
	}
	return false
}

type QualityGrade string

const (
	QualityGradeA       QualityGrade = "A"
	QualityGradeB       QualityGrade = "B"
	QualityGradeC       QualityGrade = "C"
	QualityGradePending QualityGrade = "PENDING"
)

func (g QualityGrade) Valid() bool {
	switch g {
	case QualityGradeA, QualityGradeB, QualityGradeC, QualityGradePending:
		return true
	}
	return false
}

// Defaults applied to fields the client leaves out on create.
const (
	DefaultStorageLocation = "Unknown"
	DefaultGPSCoordinates  = "Unknown"
)

// Unit is a trackable inventory item. CurrentOwner is protected against
// deletion; deleting a parent clears ParentUnitID on its children.
type Unit struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	CultivarName    string         `gorm:"column:cultivar_name;size:100;not null"`
	Weight          float64        `gorm:"column:weight;not null"`
	UnitType        UnitType       `gorm:"column:unit_type;size:20;not null"`
	DateHarvested   datatypes.Date `gorm:"column:date_harvested;not null"`
	Status          UnitStatus     `gorm:"column:status;size:20;not null;index"`
	LabTestStatus   LabTestStatus  `gorm:"column:lab_test_status;size:10;not null"`
	StorageLocation string         `gorm:"column:storage_location;size:255;not null"`
	GPSCoordinates  string         `gorm:"column:gps_coordinates;size:50;not null"`
	QualityGrade    QualityGrade   `gorm:"column:quality_grade;size:50;not null"`
	Description     *string        `gorm:"column:description;type:text"`

	CurrentOwnerID uuid.UUID     `gorm:"column:current_owner_id;type:uuid;not null;index"`
	CurrentOwner   *Organization `gorm:"foreignKey:CurrentOwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	ParentUnitID   *uuid.UUID    `gorm:"column:parent_unit_id;type:uuid;index"`
	ParentUnit     *Unit         `gorm:"foreignKey:ParentUnitID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Unit) TableName() string {
	return "units"
}

func (u *Unit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
