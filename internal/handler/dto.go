package handler

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpk6432/library-service/internal/model"
)

// money renders an amount as a quoted string with exactly two decimals,
// so 10 goes out as "10.00".
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(decimal.Decimal(m).StringFixed(2))), nil
}

type bookResp struct {
	ID        uint64      `json:"id"`
	Title     string      `json:"title"`
	Author    string      `json:"author"`
	Cover     model.Cover `json:"cover"`
	Inventory uint32      `json:"inventory"`
	DailyFee  money       `json:"daily_fee"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func toBook(b model.Book) bookResp {
	return bookResp{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Cover:     b.Cover,
		Inventory: b.Inventory,
		DailyFee:  money(b.DailyFee),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toBooks(bs []model.Book) []bookResp {
	out := make([]bookResp, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBook(b))
	}
	return out
}

type paymentResp struct {
	ID          uint64              `json:"id"`
	BorrowingID uint64              `json:"borrowing_id"`
	Status      model.PaymentStatus `json:"status"`
	Type        model.PaymentType   `json:"type"`
	SessionURL  string              `json:"session_url"`
	SessionID   string              `json:"session_id"`
	MoneyToPay  money               `json:"money_to_pay"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toPayment(p model.Payment) paymentResp {
	return paymentResp{
		ID:          p.ID,
		BorrowingID: p.BorrowingID,
		Status:      p.Status,
		Type:        p.Type,
		SessionURL:  p.SessionURL,
		SessionID:   p.SessionID,
		MoneyToPay:  money(p.MoneyToPay),
		CreatedAt:   p.CreatedAt,
	}
}

func toPayments(ps []model.Payment) []paymentResp {
	out := make([]paymentResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPayment(p))
	}
	return out
}
