package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/domain"
)

// BookingService handles checkout and the bookings created from it
type BookingService struct {
	bookings repositories.BookingRepository
	tours    repositories.TourRepository
	users    repositories.UserRepository
	payments PaymentGateway
	log      *zap.Logger
}

// NewBookingService creates a new booking service. payments may be nil when
// no payment provider is configured.
func NewBookingService(
	bookings repositories.BookingRepository,
	tours repositories.TourRepository,
	users repositories.UserRepository,
	payments PaymentGateway,
	log *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		tours:    tours,
		users:    users,
		payments: payments,
		log:      log,
	}
}

// CheckoutSession creates a hosted checkout for a tour. baseURL is the
// public origin the provider redirects back to.
func (s *BookingService) CheckoutSession(ctx context.Context, tourID string, user *models.User, baseURL string) (*CheckoutSession, error) {
	if s.payments == nil {
		return nil, domain.NewServerError("Payments are not configured on this server.")
	}

	tour, err := s.tours.FindByID(ctx, tourID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrTourNotFound, "checkout tour lookup failed")
	}

	baseURL = strings.TrimRight(baseURL, "/")
	session, err := s.payments.CreateCheckoutSession(ctx, CheckoutRequest{
		Tour:       tour,
		User:       user,
		SuccessURL: baseURL + "/my-tours?alert=booking",
		CancelURL:  baseURL + "/tour/" + tour.Slug,
		ImageURL:   baseURL + "/img/tours/" + tour.ImageCover,
	})
	if err != nil {
		return nil, domain.NewInternal("checkout session failed", err)
	}
	return session, nil
}

// HandleWebhook verifies a provider event and books the tour of a completed
// checkout. Replayed events do not create duplicate bookings.
func (s *BookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.payments == nil {
		return domain.NewServerError("Payments are not configured on this server.")
	}

	completed, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		return domain.NewValidation("Webhook error: " + err.Error())
	}
	if completed == nil {
		return nil
	}

	if _, err := s.bookings.FindBySessionID(ctx, completed.SessionID); err == nil {
		s.log.Info("checkout already booked", zap.String("session_id", completed.SessionID))
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewInternal("booking lookup failed", err)
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(completed.CustomerEmail))
	if err != nil {
		return notFoundOr(err, domain.NewNotFound("No user found for the checkout email"), "checkout user lookup failed")
	}

	sessionID := completed.SessionID
	booking := &models.Booking{
		TourID:    completed.TourID,
		UserID:    user.ID,
		Price:     float64(completed.AmountTotal) / 100,
		Paid:      true,
		SessionID: &sessionID,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return domain.NewInternal("booking create failed", err)
	}

	s.log.Info("booking created from checkout",
		zap.String("booking_id", booking.ID),
		zap.String("tour_id", booking.TourID),
		zap.String("user_id", booking.UserID),
	)
	return nil
}

// MyTours lists the tours a user has booked
func (s *BookingService) MyTours(ctx context.Context, userID string) ([]models.Tour, error) {
	ids, err := s.bookings.TourIDsForUser(ctx, userID)
	if err != nil {
		return nil, domain.NewInternal("booked tours lookup failed", err)
	}
	tours, err := s.tours.FindByIDs(ctx, ids)
	if err != nil {
		return nil, domain.NewInternal("booked tours lookup failed", err)
	}
	return tours, nil
}
