package handlers

import (
	"github.com/gofiber/fiber/v2"

	"natours-api/internal/adapters/http/middleware"
	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/response"
)

// BookingHandler handles checkout and booking endpoints
type BookingHandler struct {
	bookingService *services.BookingService
	resource       *Resource[models.Booking]
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService *services.BookingService, bookings repositories.BookingRepository) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		resource: &Resource[models.Booking]{
			Repo:     bookings,
			Writable: []string{"tourId", "userId", "price", "paid"},
			New: func() *models.Booking {
				return &models.Booking{Paid: true}
			},
		},
	}
}

// GetCheckoutSession creates a hosted checkout for a tour
// @Summary Create checkout session
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param tourId path string true "Tour ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /booking/checkout-session/{tourId} [get]
func (h *BookingHandler) GetCheckoutSession(c *fiber.Ctx) error {
	session, err := h.bookingService.CheckoutSession(c.UserContext(), c.Params("tourId"), middleware.CurrentUser(c), c.BaseURL())
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"session": session})
}

// WebhookCheckout receives payment provider events
// @Summary Checkout webhook
// @Tags Bookings
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Event signature"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.Response
// @Router /webhook-checkout [post]
func (h *BookingHandler) WebhookCheckout(c *fiber.Ctx) error {
	if err := h.bookingService.HandleWebhook(c.UserContext(), c.Body(), c.Get("Stripe-Signature")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"received": true})
}

// GetMyTours lists the tours the current user booked
// @Summary My booked tours
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /booking/my-tours [get]
func (h *BookingHandler) GetMyTours(c *fiber.Ctx) error {
	tours, err := h.bookingService.MyTours(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	return response.List(c, len(tours), fiber.Map{"tours": tours})
}

// ListBookings lists bookings
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /booking [get]
func (h *BookingHandler) ListBookings(c *fiber.Ctx) error {
	return List(h.resource)(c)
}

// GetBooking gets a booking
// @Summary Get booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /booking/{id} [get]
func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	return Get(h.resource)(c)
}

// CreateBooking records a booking made outside checkout
// @Summary Create booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /booking [post]
func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	return Create(h.resource)(c)
}

// UpdateBooking updates a booking
// @Summary Update booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /booking/{id} [patch]
func (h *BookingHandler) UpdateBooking(c *fiber.Ctx) error {
	return Update(h.resource)(c)
}

// DeleteBooking deletes a booking
// @Summary Delete booking
// @Tags Bookings
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 404 {object} response.Response
// @Router /booking/{id} [delete]
func (h *BookingHandler) DeleteBooking(c *fiber.Ctx) error {
	return Delete(h.resource)(c)
}
