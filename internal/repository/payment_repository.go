package repository

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/policy"
)

// PaymentRepo persists payment records.  Payments belong to a borrowing
// and inherit its owner for visibility purposes.
type PaymentRepo struct {
	q querier
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{q: db} }

const paymentSelect = `SELECT p.id, p.borrowing_id, p.status, p.type, p.session_url, p.session_id,
       p.money_to_pay, p.created_at, b.user_id
FROM payments p
JOIN borrowings b ON b.id = p.borrowing_id`

func scanPayment(row interface{ Scan(...any) error }) (model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.BorrowingID, &p.Status, &p.Type, &p.SessionURL, &p.SessionID,
		&p.MoneyToPay, &p.CreatedAt, &p.UserID)
	return p, err
}

func collectPayments(rows *sql.Rows) ([]model.Payment, error) {
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a payment and populates its ID.  A second payment of the
// same type for a borrowing, or a reused session id, yields ErrConflict.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO payments (borrowing_id, status, type, session_url, session_id, money_to_pay) VALUES (?, ?, ?, ?, ?, ?)`,
		p.BorrowingID, p.Status, p.Type, p.SessionURL, p.SessionID, p.MoneyToPay.Round(2))
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID fetches a payment by id.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, paymentSelect+` WHERE p.id = ?`, id))
	return p, notFound(err)
}

// GetBySessionForUpdate fetches the payment for a gateway session and
// holds an exclusive lock on its row until the transaction ends, so that
// concurrent confirmations of the same session run one after another.
func (r *PaymentRepo) GetBySessionForUpdate(ctx context.Context, sessionID string) (model.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx,
		paymentSelect+` WHERE p.session_id = ? FOR UPDATE OF p`, sessionID))
	return p, notFound(err)
}

// MarkPaid moves a payment to PAID.  It is a no-op for rows already PAID.
func (r *PaymentRepo) MarkPaid(ctx context.Context, id uint64) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		model.PaymentPaid, id, model.PaymentPending)
	return err
}

// List returns the payments inside scope, newest first.
func (r *PaymentRepo) List(ctx context.Context, scope policy.Scope) ([]model.Payment, error) {
	ds := dialect.From(goqu.T("payments").As("p")).
		Join(goqu.T("borrowings").As("b"), goqu.On(goqu.Ex{"b.id": goqu.I("p.borrowing_id")})).
		Select("p.id", "p.borrowing_id", "p.status", "p.type", "p.session_url", "p.session_id",
			"p.money_to_pay", "p.created_at", "b.user_id").
		Order(goqu.I("p.id").Desc()).
		Prepared(true)
	if scope.OwnerID != nil {
		ds = ds.Where(goqu.Ex{"b.user_id": *scope.OwnerID})
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// ListByBorrowing returns every payment opened for one borrowing.
func (r *PaymentRepo) ListByBorrowing(ctx context.Context, borrowingID uint64) ([]model.Payment, error) {
	rows, err := r.q.QueryContext(ctx, paymentSelect+` WHERE p.borrowing_id = ? ORDER BY p.id`, borrowingID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}
