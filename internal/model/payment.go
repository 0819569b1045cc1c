package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

type PaymentType string

const (
	PaymentTypeRental PaymentType = "PAYMENT"
	PaymentTypeFine   PaymentType = "FINE"
)

// Payment is one checkout attempt tied to a borrowing.  A borrowing owns
// at most one PAYMENT and at most one FINE record.  Status only ever moves
// from PENDING to PAID.
//
// Fields:
//  ID          – primary key identifier.
//  BorrowingID – owning borrowing.
//  Status      – PENDING or PAID.
//  Type        – PAYMENT (rental charge) or FINE (late surcharge).
//  SessionURL  – gateway checkout URL handed to the user.
//  SessionID   – gateway session id, unique across payments.
//  MoneyToPay  – amount due, two decimal places.
type Payment struct {
	ID          uint64          `json:"id"`           // payments.id
	BorrowingID uint64          `json:"borrowing_id"` // payments.borrowing_id
	Status      PaymentStatus   `json:"status"`       // payments.status
	Type        PaymentType     `json:"type"`         // payments.type
	SessionURL  string          `json:"session_url"`  // payments.session_url
	SessionID   string          `json:"session_id"`   // payments.session_id
	MoneyToPay  decimal.Decimal `json:"money_to_pay"` // payments.money_to_pay
	CreatedAt   time.Time       `json:"created_at"`   // payments.created_at

	// UserID is the borrower, joined through borrowings for visibility checks.
	UserID uint64 `json:"-"`
}

// IsPaid reports whether the payment has been confirmed by the gateway.
func (p Payment) IsPaid() bool { return p.Status == PaymentPaid }
