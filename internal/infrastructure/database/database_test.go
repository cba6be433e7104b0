package database

import (
	"context"
	"testing"
	"time"

	"solv-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestSqlitePath(t *testing.T) {
	p, ok := sqlitePath("sqlite:file::memory:")
	assert.True(t, ok)
	assert.Equal(t, "file::memory:", p)

	p, ok = sqlitePath("inventory.db")
	assert.True(t, ok)
	assert.Equal(t, "inventory.db", p)

	_, ok = sqlitePath("postgres://u:p@localhost:5432/solv")
	assert.False(t, ok)
}

func TestWithForeignKeys(t *testing.T) {
	assert.Equal(t, "x.db?_pragma=foreign_keys(1)", withForeignKeys("x.db"))
	assert.Equal(t, "file::memory:?cache=shared&_pragma=foreign_keys(1)", withForeignKeys("file::memory:?cache=shared"))
	assert.Equal(t, "x.db?_pragma=foreign_keys(0)", withForeignKeys("x.db?_pragma=foreign_keys(0)"))
}

func TestOpenSqliteAndMigrate(t *testing.T) {
	db, err := Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	require.NoError(t, Ping(context.Background(), db))

	assert.True(t, db.Migrator().HasTable(&domain.Organization{}))
	assert.True(t, db.Migrator().HasTable(&domain.Unit{}))
	assert.True(t, db.Migrator().HasTable(&domain.User{}))
}

func openMigrated(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func newUnit(t *testing.T, db *gorm.DB, owner uuid.UUID, parent *uuid.UUID) *domain.Unit {
	t.Helper()
	u := &domain.Unit{
		CultivarName:    "Harvest",
		Weight:          1,
		UnitType:        domain.UnitTypeHarvest,
		DateHarvested:   datatypes.Date(time.Date(2024, time.September, 14, 0, 0, 0, 0, time.UTC)),
		Status:          domain.UnitStatusActive,
		LabTestStatus:   domain.LabTestPending,
		StorageLocation: domain.DefaultStorageLocation,
		GPSCoordinates:  domain.DefaultGPSCoordinates,
		QualityGrade:    domain.QualityGradePending,
		CurrentOwnerID:  owner,
		ParentUnitID:    parent,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestConstraints_OwnerRestrictAndParentSetNull(t *testing.T) {
	db := openMigrated(t)
	org := &domain.Organization{Name: "GreenFarm", LicenceNumber: "LIC-1", Address: "N/A", IsActive: true}
	require.NoError(t, db.Create(org).Error)
	parent := newUnit(t, db, org.ID, nil)
	child := newUnit(t, db, org.ID, &parent.ID)

	// An organization that still owns units cannot be removed.
	assert.Error(t, db.Delete(&domain.Organization{}, "id = ?", org.ID).Error)
	var orgs int64
	require.NoError(t, db.Model(&domain.Organization{}).Where("id = ?", org.ID).Count(&orgs).Error)
	assert.Equal(t, int64(1), orgs)

	require.NoError(t, db.Delete(&domain.Unit{}, "id = ?", parent.ID).Error)
	var reloaded domain.Unit
	require.NoError(t, db.First(&reloaded, "id = ?", child.ID).Error)
	assert.Nil(t, reloaded.ParentUnitID)
}
