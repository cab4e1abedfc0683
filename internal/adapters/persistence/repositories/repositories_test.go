package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/core/domain"
	"natours-api/internal/pkg/query"
	"natours-api/internal/testutil"
)

func TestRepositoryCRUD(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewReviewRepository(db)
	ctx := context.Background()

	tour := testutil.CreateTour(t, db, "The Forest Hiker", 397, domain.DifficultyEasy)
	user := testutil.CreateUser(t, db, "Lourdes Browning", "lourdes@example.com", domain.RoleUser)

	review := &models.Review{Review: "Great", Rating: 4, TourID: tour.ID, UserID: user.ID}
	require.NoError(t, repo.Create(ctx, review))
	require.NotEmpty(t, review.ID)

	found, err := repo.FindByID(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, "Great", found.Review)
	require.NotNil(t, found.User)
	assert.Equal(t, "Lourdes Browning", found.User.Name)

	found.Rating = 5
	require.NoError(t, repo.UpdateByID(ctx, review.ID, found))

	one, err := repo.FindOne(ctx, query.Eq("tourId", tour.ID))
	require.NoError(t, err)
	assert.Equal(t, float64(5), one.Rating)

	deleted, err := repo.DeleteByID(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, review.ID, deleted.ID)

	_, err = repo.FindByID(ctx, review.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.DeleteByID(ctx, review.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = repo.UpdateByID(ctx, review.ID, found)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDuplicateReviewIsRejected(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewReviewRepository(db)
	ctx := context.Background()

	tour := testutil.CreateTour(t, db, "The Sea Explorer", 497, domain.DifficultyMedium)
	user := testutil.CreateUser(t, db, "Sophie", "sophie@example.com", domain.RoleUser)

	require.NoError(t, repo.Create(ctx, &models.Review{Review: "One", Rating: 4, TourID: tour.ID, UserID: user.ID}))
	err := repo.Create(ctx, &models.Review{Review: "Two", Rating: 5, TourID: tour.ID, UserID: user.ID})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestUserRepositoryHidesInactive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "Leo", "leo@example.com", domain.RoleUser)
	require.NoError(t, repo.Deactivate(ctx, user.ID))

	_, err := repo.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByEmail(ctx, "leo@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	exists, err := repo.ExistsByEmail(ctx, "leo@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	users, err := repo.Find(ctx, &query.Spec{Page: 1, Limit: 10, Sort: []query.SortField{{Field: "name"}}})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserRepositoryCreateKeepsInactiveFlag(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{
		Name:     "Sleeping Sam",
		Email:    "sam@example.com",
		Photo:    "default.jpg",
		Role:     domain.RoleUser,
		Password: "hash",
		Active:   false,
	}
	require.NoError(t, repo.Create(ctx, user))
	require.NotEmpty(t, user.ID)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.False(t, stored.Active)

	_, err := repo.FindByEmail(ctx, "sam@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepositoryResetTokens(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	user := testutil.CreateUser(t, db, "Ana", "ana@example.com", domain.RoleUser)
	hash := "abc123"
	expires := now.Add(10 * time.Minute)
	user.PasswordResetToken = &hash
	user.PasswordResetExpires = &expires
	require.NoError(t, repo.UpdateByID(ctx, user.ID, user))

	found, err := repo.FindByResetToken(ctx, hash, now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByResetToken(ctx, hash, now.Add(11*time.Minute))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	cleared, err := repo.ClearExpiredResetTokens(ctx, now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, cleared)

	_, err = repo.FindByResetToken(ctx, hash, now)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTourRepositoryHidesSecretTours(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTourRepository(db)
	ctx := context.Background()

	visible := testutil.CreateTour(t, db, "The Park Camper", 1497, domain.DifficultyMedium)
	secret := testutil.CreateTour(t, db, "The Secret Voyager", 2997, domain.DifficultyDifficult)
	require.NoError(t, db.Model(&models.Tour{}).Where("id = ?", secret.ID).Update("secret_tour", true).Error)

	_, err := repo.FindByID(ctx, secret.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	spec, err := query.Parse(query.Params{})
	require.NoError(t, err)
	tours, err := repo.Find(ctx, spec)
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, visible.ID, tours[0].ID)

	ids, err := repo.IDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestTourRepositoryGuides(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTourRepository(db)
	ctx := context.Background()

	lead := testutil.CreateUser(t, db, "Lead Guide", "lead@example.com", domain.RoleLeadGuide)
	guide := testutil.CreateUser(t, db, "Guide", "guide@example.com", domain.RoleGuide)

	tour := &models.Tour{
		Name:           "The Snow Adventurer",
		Duration:       4,
		MaxGroupSize:   10,
		Difficulty:     domain.DifficultyDifficult,
		RatingsAverage: 4.5,
		Price:          997,
		Summary:        "Snow",
		ImageCover:     "snow.jpg",
		Guides:         []models.UserSummary{lead.Summary(), guide.Summary()},
	}
	require.NoError(t, repo.Create(ctx, tour))

	found, err := repo.FindByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, found.Guides, 2)

	found.Guides = []models.UserSummary{guide.Summary()}
	require.NoError(t, repo.UpdateByID(ctx, tour.ID, found))

	found, err = repo.FindByID(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, found.Guides, 1)
	assert.Equal(t, guide.ID, found.Guides[0].ID)

	_, err = repo.DeleteByID(ctx, tour.ID)
	require.NoError(t, err)

	var links int64
	require.NoError(t, db.Model(&models.TourGuide{}).Count(&links).Error)
	assert.Zero(t, links)
}

func TestTourStats(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTourRepository(db)

	testutil.CreateTour(t, db, "The Forest Hiker", 400, domain.DifficultyEasy)
	testutil.CreateTour(t, db, "The City Wanderer", 600, domain.DifficultyEasy)
	testutil.CreateTour(t, db, "The Snow Adventurer", 1000, domain.DifficultyDifficult)

	stats, err := repo.Stats(context.Background(), 4.5)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "EASY", stats[0].Difficulty)
	assert.EqualValues(t, 2, stats[0].NumTours)
	assert.InDelta(t, 500, stats[0].AvgPrice, 0.001)
	assert.InDelta(t, 400, stats[0].MinPrice, 0.001)
	assert.InDelta(t, 600, stats[0].MaxPrice, 0.001)
	assert.Equal(t, "DIFFICULT", stats[1].Difficulty)
}

func TestReviewRatingStats(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewReviewRepository(db)
	ctx := context.Background()

	tour := testutil.CreateTour(t, db, "The Forest Hiker", 397, domain.DifficultyEasy)
	for i, rating := range []float64{3, 4, 5} {
		user := testutil.CreateUser(t, db, "Reviewer", "r"+string(rune('a'+i))+"@example.com", domain.RoleUser)
		testutil.CreateReview(t, db, tour.ID, user.ID, rating)
	}

	stats, err := repo.RatingStats(ctx, tour.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Quantity)
	assert.InDelta(t, 4.0, stats.Average, 0.0001)

	empty, err := repo.RatingStats(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, empty.Quantity)
}

func TestBookingTourIDsForUser(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "Buyer", "buyer@example.com", domain.RoleUser)
	a := testutil.CreateTour(t, db, "The Forest Hiker", 397, domain.DifficultyEasy)
	b := testutil.CreateTour(t, db, "The Sea Explorer", 497, domain.DifficultyMedium)

	for _, tourID := range []string{a.ID, b.ID, a.ID} {
		require.NoError(t, repo.Create(ctx, &models.Booking{TourID: tourID, UserID: user.ID, Price: 100, Paid: true}))
	}

	ids, err := repo.TourIDsForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	session := "cs_test_1"
	require.NoError(t, repo.Create(ctx, &models.Booking{TourID: a.ID, UserID: user.ID, Price: 397, Paid: true, SessionID: &session}))
	found, err := repo.FindBySessionID(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, found.Tour)
	assert.Equal(t, "The Forest Hiker", found.Tour.Name)
}

func TestTourRepositoryPopulatesReviews(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTourRepository(db)
	ctx := context.Background()

	tour := testutil.CreateTour(t, db, "The Wine Taster", 1997, domain.DifficultyEasy)
	author := testutil.CreateUser(t, db, "Taster", "taster@example.com", domain.RoleUser)
	testutil.CreateReview(t, db, tour.ID, author.ID, 5)

	plain, err := repo.FindByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Empty(t, plain.Reviews)

	found, err := repo.FindByID(ctx, tour.ID, "Reviews")
	require.NoError(t, err)
	require.Len(t, found.Reviews, 1)
	require.NotNil(t, found.Reviews[0].User)
	assert.Equal(t, "Taster", found.Reviews[0].User.Name)
	assert.Empty(t, found.Reviews[0].User.Email)
}
