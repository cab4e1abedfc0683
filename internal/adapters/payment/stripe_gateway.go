package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"natours-api/internal/config"
	"natours-api/internal/core/services"
)

// StripeGateway implements services.PaymentGateway with Stripe Checkout
type StripeGateway struct {
	webhookSecret string
	currency      string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(cfg config.StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = cfg.SecretKey

	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	return &StripeGateway{
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}, nil
}

// CreateCheckoutSession creates a hosted checkout page for one tour
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	if req.Tour == nil || req.User == nil {
		return nil, fmt.Errorf("tour and user are required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		CustomerEmail:      stripe.String(req.User.Email),
		ClientReferenceID:  stripe.String(req.Tour.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currency),
					UnitAmount: stripe.Int64(toCents(req.Tour.Price)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Tour.Name + " Tour"),
						Description: stripe.String(req.Tour.Summary),
						Images:      stripe.StringSlice([]string{req.ImageURL}),
					},
				},
			},
		},
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &services.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts a
// completed checkout. Other event types yield nil.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*services.CompletedCheckout, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, err
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}

	email := cs.CustomerEmail
	if email == "" && cs.CustomerDetails != nil {
		email = cs.CustomerDetails.Email
	}

	return &services.CompletedCheckout{
		SessionID:     cs.ID,
		TourID:        cs.ClientReferenceID,
		CustomerEmail: email,
		AmountTotal:   cs.AmountTotal,
	}, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
