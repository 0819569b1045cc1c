package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/notify"
	"github.com/rpk6432/library-service/internal/payment"
	"github.com/rpk6432/library-service/internal/policy"
	"github.com/rpk6432/library-service/internal/repository"
)

// PaymentConfig holds the redirect targets and the per-call gateway
// deadline.  SuccessURL should carry the provider's session id
// placeholder so the confirmation endpoint can find the payment.
type PaymentConfig struct {
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// Confirmation is the outcome of a confirmation attempt.  Paid is false
// when the provider has not settled the session yet; the payment is then
// left untouched.
type Confirmation struct {
	Payment model.Payment
	Paid    bool
}

// Payments opens checkout sessions and reconciles their outcome with the
// stored payment records.
type Payments struct {
	store    repository.Store
	gateway  payment.Gateway
	notifier notify.Notifier
	cfg      PaymentConfig
	options
}

func NewPayments(store repository.Store, gw payment.Gateway, n notify.Notifier, cfg PaymentConfig, opts ...Option) *Payments {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Payments{store: store, gateway: gw, notifier: n, cfg: cfg, options: buildOptions(opts)}
}

// CreateSession opens a one-line checkout session for amount.  Any provider
// failure is reported as ErrPaymentSession.
func (p *Payments) CreateSession(ctx context.Context, description string, amount decimal.Decimal, successURL, cancelURL string) (s payment.Session, err error) {
	ctx, span := startSpan(ctx, "payments.create_session",
		attribute.String("payment.amount", amount.StringFixed(2)))
	defer func() { endSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	item := payment.LineItem{Name: description, UnitAmount: payment.MinorUnits(amount), Quantity: 1}
	s, err = p.gateway.CreateCheckoutSession(ctx, item, successURL, cancelURL)
	if err != nil {
		return payment.Session{}, fmt.Errorf("%w: %v", ErrPaymentSession, err)
	}
	return s, nil
}

// openSession is CreateSession with the configured redirect targets.
func (p *Payments) openSession(ctx context.Context, description string, amount decimal.Decimal) (payment.Session, error) {
	return p.CreateSession(ctx, description, amount, p.cfg.SuccessURL, p.cfg.CancelURL)
}

// RetrieveSession returns the provider's current view of a session.
func (p *Payments) RetrieveSession(ctx context.Context, id string) (payment.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	s, err := p.gateway.RetrieveSession(ctx, id)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, payment.ErrInvalidSession):
		return payment.Session{}, err
	default:
		return payment.Session{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
}

// IsPaid reports whether the provider considers the session settled.
func IsPaid(s payment.Session) bool { return s.PaymentStatus == payment.StatusPaid }

// Confirm reconciles the payment opened for sessionID with the provider.
// The payment row stays locked for the whole check, so concurrent
// confirmations of the same session serialise and only the first one
// performs the PENDING to PAID transition.  Confirming an already paid
// payment succeeds without side effects.
func (p *Payments) Confirm(ctx context.Context, sessionID string) (c Confirmation, err error) {
	ctx, span := startSpan(ctx, "payments.confirm", attribute.String("payment.session_id", sessionID))
	defer func() { endSpan(span, err) }()

	transitioned := false
	err = p.store.WithinTx(ctx, func(r repository.Repos) error {
		pay, err := r.Payments().GetBySessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		s, err := p.RetrieveSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if !IsPaid(s) {
			c = Confirmation{Payment: pay}
			return nil
		}
		if !pay.IsPaid() {
			if err := r.Payments().MarkPaid(ctx, pay.ID); err != nil {
				return err
			}
			pay.Status = model.PaymentPaid
			transitioned = true
		}
		c = Confirmation{Payment: pay, Paid: true}
		return nil
	})
	if err != nil {
		return Confirmation{}, err
	}

	if transitioned {
		p.log.Info("payment confirmed", "payment_id", c.Payment.ID, "borrowing_id", c.Payment.BorrowingID)
		p.notifyAfterCommit(p.notifier, notify.PaymentPaidMessage(c.Payment))
	}
	return c, nil
}

// List returns the payments visible to the caller, newest first.
func (p *Payments) List(ctx context.Context, caller policy.Caller) ([]model.Payment, error) {
	return p.store.Payments().List(ctx, policy.PaymentScope(caller))
}

// Get returns one payment.  Payments of other users' borrowings are
// reported as not found to non-staff callers.
func (p *Payments) Get(ctx context.Context, caller policy.Caller, id uint64) (model.Payment, error) {
	pay, err := p.store.Payments().GetByID(ctx, id)
	if err != nil {
		return model.Payment{}, err
	}
	if !caller.CanAccess(pay.UserID) {
		return model.Payment{}, ErrForbidden
	}
	return pay, nil
}
