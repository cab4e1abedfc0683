package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/config"
	"natours-api/internal/pkg/password"
	"natours-api/internal/testutil"
)

func writeSeedDir(t *testing.T, users, tours, reviews string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.UsersFile), []byte(users), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ToursFile), []byte(tours), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ReviewsFile), []byte(reviews), 0o600))
	return dir
}

func TestSeederImportAndDelete(t *testing.T) {
	db := testutil.NewDB(t)
	hash, err := password.Hash("prehashed1")
	require.NoError(t, err)

	dir := writeSeedDir(t,
		`[
			{"id":"u1","name":"Guide One","email":"guide@example.com","role":"lead-guide","password":"`+hash+`"},
			{"id":"u2","name":"Plain User","email":"user@example.com","password":"test1234","active":false}
		]`,
		`[
			{"id":"t1","name":"The Forest Hiker","duration":5,"maxGroupSize":25,"difficulty":"easy",
			 "price":397,"summary":"Hike","imageCover":"c.jpg","guideIds":["u1"]}
		]`,
		`[{"review":"Lovely","rating":4,"tourId":"t1","userId":"u2"}]`,
	)

	data, err := config.LoadSeedData(dir)
	require.NoError(t, err)

	seeder := config.NewSeeder(db, zap.NewNop())
	require.NoError(t, seeder.Import(context.Background(), data))

	var guide models.User
	require.NoError(t, db.First(&guide, "id = ?", "u1").Error)
	assert.Equal(t, hash, guide.Password)
	assert.True(t, guide.Active)
	assert.Equal(t, "default.jpg", guide.Photo)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "u2").Error)
	assert.True(t, password.Verify("test1234", user.Password))
	assert.False(t, user.Active)
	assert.EqualValues(t, "user", user.Role)

	var tour models.Tour
	require.NoError(t, db.First(&tour, "id = ?", "t1").Error)
	assert.Equal(t, 4.5, tour.RatingsAverage)

	var guides int64
	require.NoError(t, db.Model(&models.TourGuide{}).Where("tour_id = ?", "t1").Count(&guides).Error)
	assert.EqualValues(t, 1, guides)

	var reviews int64
	require.NoError(t, db.Model(&models.Review{}).Count(&reviews).Error)
	assert.EqualValues(t, 1, reviews)

	require.NoError(t, seeder.Delete(context.Background()))

	for _, model := range []interface{}{&models.User{}, &models.Tour{}, &models.TourGuide{}, &models.Review{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}
}

func TestSeederImportRollsBackOnFailure(t *testing.T) {
	db := testutil.NewDB(t)

	dir := writeSeedDir(t,
		`[
			{"id":"u1","name":"One","email":"dup@example.com","password":"test1234"},
			{"id":"u2","name":"Two","email":"dup@example.com","password":"test1234"}
		]`,
		`[]`,
		`[]`,
	)

	data, err := config.LoadSeedData(dir)
	require.NoError(t, err)

	err = config.NewSeeder(db, zap.NewNop()).Import(context.Background(), data)
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestLoadSeedDataMissingFile(t *testing.T) {
	_, err := config.LoadSeedData(t.TempDir())
	require.Error(t, err)
}

func TestLoadSeedDataDevData(t *testing.T) {
	data, err := config.LoadSeedData(filepath.Join("..", "..", "dev-data"))
	require.NoError(t, err)

	assert.NotEmpty(t, data.Tours)
	assert.NotEmpty(t, data.Users)
	assert.NotEmpty(t, data.Reviews)
}
