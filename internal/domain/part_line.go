package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the scale of every stored amount (NUMERIC(14, 2)).
const MoneyPlaces int32 = 2

// PartLine records one inventory item consumed during an intervention.
type PartLine struct {
	ID          string
	TicketID    string
	ProductID   string
	ProductName string
	Quantity    float64
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	StockMoveID *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ApplyPrice denormalizes the unit price and recomputes the subtotal.
func (l *PartLine) ApplyPrice(unitPrice decimal.Decimal) {
	l.UnitPrice = unitPrice
	l.Subtotal = decimal.NewFromFloat(l.Quantity).Mul(unitPrice).Round(MoneyPlaces)
}
