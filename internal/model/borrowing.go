package model

import "time"

// Borrowing records one rental of one book by one user.  A borrowing is
// active while ActualReturnDate is nil; setting it is the single terminal
// transition and it is never cleared afterwards.  All dates are calendar
// dates stored as UTC midnight.
//
// Fields:
//  ID                 – primary key identifier.
//  UserID             – borrower.
//  BookID             – borrowed title.
//  BorrowDate         – day the borrowing was created, immutable.
//  ExpectedReturnDate – due date, strictly after BorrowDate.
//  ActualReturnDate   – day the copy came back (nil while active).
type Borrowing struct {
	ID                 uint64     `json:"id"`                   // borrowings.id
	UserID             uint64     `json:"user_id"`              // borrowings.user_id
	BookID             uint64     `json:"book_id"`              // borrowings.book_id
	BorrowDate         time.Time  `json:"borrow_date"`          // borrowings.borrow_date
	ExpectedReturnDate time.Time  `json:"expected_return_date"` // borrowings.expected_return_date
	ActualReturnDate   *time.Time `json:"actual_return_date"`   // borrowings.actual_return_date (nullable)

	// Joined columns, populated by read queries only.
	BookTitle string `json:"book_title,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

// IsActive reports whether the book has not been returned yet.
func (b Borrowing) IsActive() bool { return b.ActualReturnDate == nil }

// IsOverdue reports whether the borrowing is active and today is past the
// expected return date.
func (b Borrowing) IsOverdue(today time.Time) bool {
	return b.IsActive() && Date(today).After(Date(b.ExpectedReturnDate))
}

// DaysLate returns how many days `on` lies after the expected return date,
// or zero when it does not.
func (b Borrowing) DaysLate(on time.Time) int {
	d := DaysBetween(b.ExpectedReturnDate, on)
	if d < 0 {
		return 0
	}
	return d
}

// BorrowingDetail is a borrowing with the book it references and every
// payment opened for it.
type BorrowingDetail struct {
	Borrowing
	Book     Book      `json:"book"`
	Payments []Payment `json:"payments"`
}

// OverdueBorrowing is the row shape scanned by the overdue sweep.
type OverdueBorrowing struct {
	BorrowingID        uint64
	UserID             uint64
	UserEmail          string
	BookTitle          string
	ExpectedReturnDate time.Time
}
