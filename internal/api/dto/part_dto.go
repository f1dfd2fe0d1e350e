package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordPartRequest payload.
type RecordPartRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
}

// UpdatePartRequest changes the product or quantity of a part line.
type UpdatePartRequest struct {
	ProductID *string  `json:"product_id"`
	Quantity  *float64 `json:"quantity" validate:"omitempty,gt=0"`
}

// PartLineResponse describes a consumed part.
type PartLineResponse struct {
	ID          string          `json:"id"`
	TicketID    string          `json:"ticket_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    float64         `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	StockMoveID *string         `json:"stock_move_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StockAdjustmentRequest adds (or removes, when negative) on-hand quantity.
type StockAdjustmentRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Delta     float64 `json:"delta" validate:"required"`
}

// StockLevelResponse reports on-hand quantity.
type StockLevelResponse struct {
	ProductID string  `json:"product_id"`
	Available float64 `json:"available"`
}
