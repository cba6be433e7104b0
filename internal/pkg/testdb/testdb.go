// Package testdb opens migrated in-memory SQLite databases for tests.
package testdb

import (
	"testing"
	"time"

	"solv-backend/internal/domain"
	"solv-backend/internal/infrastructure/database"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// New returns a fresh migrated database. The pool is pinned to a single
// connection because every new ":memory:" connection is an empty database.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// HarvestDate is the date_harvested given to fixture units.
var HarvestDate = time.Date(2024, time.September, 14, 0, 0, 0, 0, time.UTC)

// Org inserts an active organization.
func Org(t testing.TB, db *gorm.DB, name, licence string) *domain.Organization {
	t.Helper()
	o := &domain.Organization{Name: name, LicenceNumber: licence, Address: "N/A", IsActive: true}
	require.NoError(t, db.Create(o).Error)
	return o
}

// Unit inserts a unit owned by owner with the create-time defaults filled in.
func Unit(t testing.TB, db *gorm.DB, owner *domain.Organization, name string, parent *domain.Unit) *domain.Unit {
	t.Helper()
	u := &domain.Unit{
		CultivarName:    name,
		Weight:          10,
		UnitType:        domain.UnitTypeHarvest,
		DateHarvested:   datatypes.Date(HarvestDate),
		Status:          domain.UnitStatusActive,
		LabTestStatus:   domain.LabTestPending,
		StorageLocation: domain.DefaultStorageLocation,
		GPSCoordinates:  domain.DefaultGPSCoordinates,
		QualityGrade:    domain.QualityGradePending,
		CurrentOwnerID:  owner.ID,
	}
	if parent != nil {
		u.ParentUnitID = &parent.ID
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
