// Package policy decides which borrowings and payments a caller may see or
// act on.  Staff see everything; everyone else is confined to records they
// own, whatever filters they send.
package policy

// Caller identifies who is performing an operation.  It is threaded
// explicitly through every lifecycle and query operation.
type Caller struct {
	UserID  uint64
	Email   string
	IsStaff bool
}

// CanAccess reports whether the caller may see or act on a record owned
// by ownerID.
func (c Caller) CanAccess(ownerID uint64) bool {
	return c.IsStaff || c.UserID == ownerID
}

// Filter holds the optional list filters supplied by a client.
type Filter struct {
	UserID   *uint64
	IsActive *bool
}

// Scope is a resolved filter: what the store must restrict a listing to.
// A nil OwnerID means every owner; a nil IsActive means both states.
type Scope struct {
	OwnerID  *uint64
	IsActive *bool
}

// BorrowingScope resolves the listing scope for borrowings.  The user_id
// filter is honoured for staff only; non-staff callers are pinned to their
// own id.
func BorrowingScope(c Caller, f Filter) Scope {
	s := Scope{IsActive: f.IsActive}
	switch {
	case !c.IsStaff:
		id := c.UserID
		s.OwnerID = &id
	case f.UserID != nil:
		id := *f.UserID
		s.OwnerID = &id
	}
	return s
}

// PaymentScope resolves the listing scope for payments, which are owned
// through their borrowing.
func PaymentScope(c Caller) Scope {
	if c.IsStaff {
		return Scope{}
	}
	id := c.UserID
	return Scope{OwnerID: &id}
}
