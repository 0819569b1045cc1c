package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cover is the binding of a physical copy.
type Cover string

const (
	CoverHard Cover = "HARD"
	CoverSoft Cover = "SOFT"
)

// Valid reports whether c is one of the known cover kinds.
func (c Cover) Valid() bool { return c == CoverHard || c == CoverSoft }

// Book represents a title in the catalogue together with the number of
// physical copies currently available for lending.  Inventory is only
// changed by the inventory ledger: decremented when a copy is lent and
// incremented when it comes back.
//
// Fields:
//  ID        – primary key identifier.
//  Title     – book title.
//  Author    – author name.
//  Cover     – HARD or SOFT.
//  Inventory – available copies, never negative.
//  DailyFee  – rental price per day, two decimal places.
type Book struct {
	ID        uint64          `json:"id"`         // books.id
	Title     string          `json:"title"`      // books.title
	Author    string          `json:"author"`     // books.author
	Cover     Cover           `json:"cover"`      // books.cover
	Inventory uint32          `json:"inventory"`  // books.inventory
	DailyFee  decimal.Decimal `json:"daily_fee"`  // books.daily_fee
	CreatedAt time.Time       `json:"created_at"` // books.created_at
	UpdatedAt time.Time       `json:"updated_at"` // books.updated_at
}

// InStock reports whether at least one copy can be lent.
func (b Book) InStock() bool { return b.Inventory > 0 }
