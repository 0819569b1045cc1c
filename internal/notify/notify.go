// Package notify delivers short text notifications to library staff.
// Delivery is best effort: callers log failures and carry on.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rpk6432/library-service/internal/model"
)

// Notifier sends one text message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, text string) error

func (f Func) Send(ctx context.Context, text string) error { return f(ctx, text) }

// Discard drops every message.
var Discard Notifier = Func(func(context.Context, string) error { return nil })

// NothingOverdueMessage is sent when the overdue sweep finds no matches.
const NothingOverdueMessage = "No borrowings overdue today!"

// OverdueMessage formats the notification for one overdue borrowing.
func OverdueMessage(email, title string, daysOverdue int) string {
	return fmt.Sprintf("OVERDUE BORROWING\n\nUser: `%s`\nBook: *%s*\nOverdue by: *%d day(s)*",
		email, title, daysOverdue)
}

// BorrowingCreatedMessage formats the notification sent after a borrowing
// is committed.
func BorrowingCreatedMessage(b model.Borrowing, email, title string) string {
	return fmt.Sprintf("NEW BORROWING #%d\n\nUser: `%s`\nBook: *%s*\nExpected return: *%s*",
		b.ID, email, title, b.ExpectedReturnDate.Format(time.DateOnly))
}

// PaymentPaidMessage formats the notification sent when a payment is
// confirmed for the first time.
func PaymentPaidMessage(p model.Payment) string {
	return fmt.Sprintf("PAYMENT RECEIVED\n\nBorrowing: *#%d*\nType: *%s*\nAmount: *%s USD*",
		p.BorrowingID, p.Type, p.MoneyToPay.StringFixed(2))
}
