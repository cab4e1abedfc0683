package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/core/domain"
	"natours-api/internal/testutil"
)

func loadTour(t *testing.T, env *testEnv, id string) models.Tour {
	t.Helper()

	var tour models.Tour
	require.NoError(t, env.db.First(&tour, "id = ?", id).Error)
	return tour
}

func reviewTour(t *testing.T, env *testEnv, tourID string, ratings ...float64) []*models.Review {
	t.Helper()

	reviews := make([]*models.Review, 0, len(ratings))
	for i, rating := range ratings {
		user := testutil.CreateUser(t, env.db, "Reviewer", fmt.Sprintf("reviewer%d-%s@example.com", i, tourID[:8]), domain.RoleUser)
		reviews = append(reviews, testutil.CreateReview(t, env.db, tourID, user.ID, rating))
	}
	return reviews
}

func TestRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ratings := NewRatingsService(env.reviews, env.tours, zap.NewNop())

	tour := testutil.CreateTour(t, env.db, "The Forest Hiker", 397, "easy")
	reviews := reviewTour(t, env, tour.ID, 3, 4, 5)

	require.NoError(t, ratings.Recompute(ctx, tour.ID))
	got := loadTour(t, env, tour.ID)
	assert.Equal(t, 3, got.RatingsQuantity)
	assert.Equal(t, 4.0, got.RatingsAverage)

	for _, r := range reviews {
		_, err := env.reviews.DeleteByID(ctx, r.ID)
		require.NoError(t, err)
	}

	require.NoError(t, ratings.Recompute(ctx, tour.ID))
	got = loadTour(t, env, tour.ID)
	assert.Equal(t, 0, got.RatingsQuantity)
	assert.Equal(t, 4.5, got.RatingsAverage)
}

func TestRecomputeRoundsToOneDecimal(t *testing.T) {
	env := newTestEnv(t)
	ratings := NewRatingsService(env.reviews, env.tours, zap.NewNop())

	tour := testutil.CreateTour(t, env.db, "The Sea Explorer", 497, "medium")
	reviewTour(t, env, tour.ID, 4, 5, 5)

	require.NoError(t, ratings.Recompute(context.Background(), tour.ID))
	got := loadTour(t, env, tour.ID)
	assert.Equal(t, 3, got.RatingsQuantity)
	assert.Equal(t, 4.7, got.RatingsAverage)
}

func TestScheduleRecomputesInBackground(t *testing.T) {
	env := newTestEnv(t)
	ratings := NewRatingsService(env.reviews, env.tours, zap.NewNop())

	first := testutil.CreateTour(t, env.db, "The Forest Hiker", 397, "easy")
	second := testutil.CreateTour(t, env.db, "The Snow Adventurer", 997, "difficult")
	reviewTour(t, env, first.ID, 2)
	reviewTour(t, env, second.ID, 5, 4)

	ratings.Schedule(first.ID, second.ID, first.ID, "")
	ratings.Wait()

	assert.Equal(t, 2.0, loadTour(t, env, first.ID).RatingsAverage)
	got := loadTour(t, env, second.ID)
	assert.Equal(t, 2, got.RatingsQuantity)
	assert.Equal(t, 4.5, got.RatingsAverage)
}

func TestCloseDrainsScheduledAndDropsLateRecomputes(t *testing.T) {
	env := newTestEnv(t)
	ratings := NewRatingsService(env.reviews, env.tours, zap.NewNop())

	early := testutil.CreateTour(t, env.db, "The Forest Hiker", 397, "easy")
	late := testutil.CreateTour(t, env.db, "The Sea Explorer", 497, "medium")
	reviewTour(t, env, early.ID, 3)
	reviewTour(t, env, late.ID, 1)

	ratings.Schedule(early.ID)

	// schedules racing Close must neither panic nor outlive it
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ratings.Schedule(early.ID)
		}()
	}
	ratings.Close()
	wg.Wait()

	got := loadTour(t, env, early.ID)
	assert.Equal(t, 1, got.RatingsQuantity)
	assert.Equal(t, 3.0, got.RatingsAverage)

	ratings.Schedule(late.ID)
	ratings.Wait()
	got = loadTour(t, env, late.ID)
	assert.Equal(t, 0, got.RatingsQuantity)
	assert.Equal(t, 4.5, got.RatingsAverage)
}

func TestRecomputeAllIncludesSecretTours(t *testing.T) {
	env := newTestEnv(t)
	ratings := NewRatingsService(env.reviews, env.tours, zap.NewNop())

	tour := testutil.CreateTour(t, env.db, "The Secret Hideaway", 2497, "medium")
	require.NoError(t, env.db.Model(&models.Tour{}).Where("id = ?", tour.ID).Update("secret_tour", true).Error)
	reviewTour(t, env, tour.ID, 1)

	require.NoError(t, ratings.RecomputeAll(context.Background()))
	got := loadTour(t, env, tour.ID)
	assert.Equal(t, 1, got.RatingsQuantity)
	assert.Equal(t, 1.0, got.RatingsAverage)
}
