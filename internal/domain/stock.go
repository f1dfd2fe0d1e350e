package domain

import "time"

// MoveState follows the inventory host's draft -> confirmed -> done progression.
type MoveState string

const (
	MoveStateDraft     MoveState = "draft"
	MoveStateConfirmed MoveState = "confirmed"
	MoveStateDone      MoveState = "done"
)

// StockMove is a directional transfer of product quantity between two locations.
type StockMove struct {
	ID                  string
	Name                string
	ProductID           string
	Quantity            float64
	SourceLocation      string
	DestinationLocation string
	Origin              string
	State               MoveState
	CreatedAt           time.Time
	DoneAt              *time.Time
}

// Reversed returns a draft move carrying the same product and quantity with swapped locations.
func (m *StockMove) Reversed() *StockMove {
	return &StockMove{
		Name:                m.Name,
		ProductID:           m.ProductID,
		Quantity:            m.Quantity,
		SourceLocation:      m.DestinationLocation,
		DestinationLocation: m.SourceLocation,
		Origin:              "Return " + m.Origin,
		State:               MoveStateDraft,
	}
}
