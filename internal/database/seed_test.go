package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/flourish/internal/database"
	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/testutil"
	"github.com/example/flourish/internal/utils"
)

func TestSeedAdmin(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, database.SeedAdmin(db, "", "secret"))
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, database.SeedAdmin(db, " Admin@Flourish.test ", "s3cret-pass"))
	require.NoError(t, database.SeedAdmin(db, "admin@flourish.test", "s3cret-pass"))

	var admin models.User
	require.NoError(t, db.First(&admin, "email = ?", "admin@flourish.test").Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, utils.CheckPassword(admin.PasswordHash, "s3cret-pass"))
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSeedAdminPromotesExistingUser(t *testing.T) {
	db := testutil.NewDB(t)
	user := models.User{Email: "owner@flourish.test", Role: models.RoleCustomer, IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, database.SeedAdmin(db, "owner@flourish.test", "whatever"))

	var got models.User
	require.NoError(t, db.First(&got, "id = ?", user.ID).Error)
	assert.Equal(t, models.RoleAdmin, got.Role)
}
