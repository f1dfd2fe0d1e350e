package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a partner record extended with on-site equipment details.
type Client struct {
	ID                 string
	Name               string
	Email              string
	Street             string
	City               string
	EquipmentType      string
	AccessInstructions string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Address joins street and city the way intervention addresses are displayed.
func (c *Client) Address() string {
	return strings.TrimSpace(c.Street + " " + c.City)
}

// ClientStats aggregates intervention figures for a client.
type ClientStats struct {
	InterventionCount     int
	LastInterventionAt    *time.Time
	TotalInterventionCost decimal.Decimal
}
