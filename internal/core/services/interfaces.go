package services

import (
	"context"

	"natours-api/internal/adapters/persistence/models"
)

// Note: AuthService implementation is in auth_service.go
// Note: EmailService implementation is in notification_service.go

// Recipient is the addressee of a transactional email
type Recipient struct {
	Email string
	Name  string
}

// Notifier sends transactional email. Implementations must be safe for
// concurrent use.
type Notifier interface {
	SendWelcome(ctx context.Context, to Recipient, url string) error
	SendPasswordReset(ctx context.Context, to Recipient, resetURL string) error
}

// CheckoutRequest describes a hosted checkout for one tour
type CheckoutRequest struct {
	Tour       *models.Tour
	User       *models.User
	SuccessURL string
	CancelURL  string
	ImageURL   string
}

// CheckoutSession is a created hosted checkout page
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CompletedCheckout is a paid checkout reported by the payment provider
type CompletedCheckout struct {
	SessionID     string
	TourID        string
	CustomerEmail string
	// AmountTotal is in the smallest currency unit
	AmountTotal int64
}

// PaymentGateway creates checkout sessions and verifies provider webhooks
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ParseWebhook returns nil without error for events other than a
	// completed checkout
	ParseWebhook(payload []byte, signature string) (*CompletedCheckout, error)
}
