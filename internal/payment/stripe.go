package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// StripeGateway creates Stripe Checkout sessions in payment mode.
type StripeGateway struct {
	sessions session.Client
	currency string
}

// NewStripeGateway returns a gateway authenticated with secretKey.  Every
// HTTP call to Stripe is bounded by timeout.
func NewStripeGateway(secretKey string, timeout time.Duration) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	})
	return &StripeGateway{
		sessions: session.Client{B: backend, Key: secretKey},
		currency: string(stripe.CurrencyUSD),
	}
}

// CreateCheckoutSession opens a one-line checkout session.  The success
// URL should contain the {CHECKOUT_SESSION_ID} template so that Stripe
// substitutes the session id on redirect.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, item LineItem, successURL, cancelURL string) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	s, err := g.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL, PaymentStatus: string(s.PaymentStatus)}, nil
}

// RetrieveSession loads a checkout session.  Stripe's invalid_request_error
// (unknown or malformed id) maps onto ErrInvalidSession.
func (g *StripeGateway) RetrieveSession(ctx context.Context, id string) (Session, error) {
	s, err := g.sessions.Get(id, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeInvalidRequest {
			return Session{}, fmt.Errorf("%w: %s", ErrInvalidSession, se.Msg)
		}
		return Session{}, fmt.Errorf("stripe: retrieve checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL, PaymentStatus: string(s.PaymentStatus)}, nil
}
