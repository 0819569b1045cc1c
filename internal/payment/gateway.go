// Package payment talks to the external checkout provider.  Callers see a
// narrow Gateway interface; StripeGateway is the production adapter.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidSession is returned by RetrieveSession when the provider
// rejects the session id.
var ErrInvalidSession = errors.New("invalid payment session")

// StatusPaid is the provider's payment status of a fully paid session.
const StatusPaid = "paid"

// LineItem is the single product line of a checkout session.
type LineItem struct {
	Name       string
	UnitAmount int64 // minor units (cents)
	Quantity   int64
}

// Session is the provider's view of one checkout attempt.
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
}

// Gateway opens and inspects checkout sessions.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, item LineItem, successURL, cancelURL string) (Session, error)
	RetrieveSession(ctx context.Context, id string) (Session, error)
}

// MinorUnits converts a decimal currency amount to integer cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
