package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/domain"
)

const recomputeTimeout = 30 * time.Second

// RatingsService keeps each tour's ratingsQuantity and ratingsAverage equal
// to the count and mean of its reviews
type RatingsService struct {
	reviews repositories.ReviewRepository
	tours   repositories.TourRepository
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	locks  sync.Map // tour id -> *sync.Mutex
}

// NewRatingsService creates a new ratings service
func NewRatingsService(reviews repositories.ReviewRepository, tours repositories.TourRepository, log *zap.Logger) *RatingsService {
	return &RatingsService{
		reviews: reviews,
		tours:   tours,
		log:     log,
	}
}

// Recompute reads the current reviews of a tour and stores the aggregate.
// A tour without reviews goes back to the defaults. Runs for the same tour
// are serialized, so the last one to finish always saw the latest reviews.
func (s *RatingsService) Recompute(ctx context.Context, tourID string) error {
	mu, _ := s.locks.LoadOrStore(tourID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	stats, err := s.reviews.RatingStats(ctx, tourID)
	if err != nil {
		return fmt.Errorf("rating stats for tour %s: %w", tourID, err)
	}

	quantity, average := stats.Quantity, stats.Average
	if quantity == 0 {
		quantity, average = domain.DefaultRatingsQuantity, domain.DefaultRatingsAverage
	}

	if err := s.tours.SetRatings(ctx, tourID, quantity, average); err != nil {
		return fmt.Errorf("store ratings for tour %s: %w", tourID, err)
	}
	return nil
}

// Schedule recomputes the given tours in the background after a review
// write has committed. Failures are logged; the nightly reconcile repairs
// anything missed.
func (s *RatingsService) Schedule(tourIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.log.Warn("ratings recompute skipped after shutdown", zap.Strings("tour_ids", tourIDs))
		return
	}

	seen := make(map[string]bool, len(tourIDs))
	for _, id := range tourIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		s.wg.Add(1)
		go func(tourID string) {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("ratings recompute panicked", zap.String("tour_id", tourID), zap.Any("panic", r))
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
			defer cancel()

			if err := s.Recompute(ctx, tourID); err != nil {
				s.log.Error("ratings recompute failed", zap.String("tour_id", tourID), zap.Error(err))
			}
		}(id)
	}
}

// Wait blocks until every scheduled recompute has finished
func (s *RatingsService) Wait() {
	s.wg.Wait()
}

// Close stops accepting new recomputes and waits for the scheduled ones.
// Later Schedule calls are logged and dropped; the nightly reconcile
// repairs them.
func (s *RatingsService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
}

// RecomputeAll reconciles every tour, secret ones included
func (s *RatingsService) RecomputeAll(ctx context.Context) error {
	ids, err := s.tours.IDs(ctx)
	if err != nil {
		return fmt.Errorf("list tours: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Recompute(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	s.log.Info("ratings reconciled", zap.Int("tours", len(ids)), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}
