package seed

import (
	"context"
	"testing"

	"solv-backend/internal/config"
	"solv-backend/internal/domain"
	"solv-backend/internal/pkg/constants"
	"solv-backend/internal/pkg/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRun_Disabled(t *testing.T) {
	db := testdb.New(t)
	require.NoError(t, Run(context.Background(), db, config.Bootstrap{OrgName: "GreenFarm"}))

	var n int64
	require.NoError(t, db.Model(&domain.Organization{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRun_RequiresPassword(t *testing.T) {
	db := testdb.New(t)
	err := Run(context.Background(), db, config.Bootstrap{OrgName: "GreenFarm", OrgLicence: "LIC-1", AdminEmail: "admin@greenfarm.io"})
	assert.Error(t, err)
}

func TestRun_Idempotent(t *testing.T) {
	db := testdb.New(t)
	b := config.Bootstrap{OrgName: "GreenFarm", OrgLicence: "LIC-1", AdminEmail: "Admin@GreenFarm.io", AdminPassword: "Passw0rd!"}

	require.NoError(t, Run(context.Background(), db, b))
	require.NoError(t, Run(context.Background(), db, b))

	var orgs []domain.Organization
	require.NoError(t, db.Find(&orgs).Error)
	require.Len(t, orgs, 1)

	var users []domain.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	admin := users[0]
	assert.Equal(t, "admin@greenfarm.io", admin.Email)
	assert.Equal(t, constants.Admin, admin.Role)
	require.NotNil(t, admin.OrganizationID)
	assert.Equal(t, orgs[0].ID, *admin.OrganizationID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("Passw0rd!")))
}

func TestRun_PromotesExistingUser(t *testing.T) {
	db := testdb.New(t)
	existing := &domain.User{Username: "boss", Email: "boss@greenfarm.io", PasswordHash: "x", Role: constants.Worker}
	require.NoError(t, db.Create(existing).Error)

	require.NoError(t, Run(context.Background(), db, config.Bootstrap{
		OrgName: "GreenFarm", OrgLicence: "LIC-1", AdminEmail: "boss@greenfarm.io", AdminPassword: "Passw0rd!",
	}))

	var got domain.User
	require.NoError(t, db.First(&got, "id = ?", existing.ID).Error)
	assert.Equal(t, constants.Admin, got.Role)
	assert.NotNil(t, got.OrganizationID)
	assert.Equal(t, "x", got.PasswordHash)
}
