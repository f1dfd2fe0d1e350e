package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Specialty is a skill a technician can carry (air conditioning, plumbing, ...).
type Specialty struct {
	ID          string
	Name        string
	Description string
	Color       int
}

// Category classifies intervention requests.
type Category struct {
	ID          string
	Name        string
	Description string
	Color       int
}

// Team is a helpdesk team, optionally dedicated to on-site interventions.
type Team struct {
	ID                   string
	Name                 string
	IsInterventionTeam   bool
	AutoAssignTechnician bool
	DefaultDurationHours float64
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TeamStats aggregates intervention figures for a team.
type TeamStats struct {
	InterventionCount    int
	PendingInterventions int
	AvailableTechnicians int
}

// ProductType mirrors the catalog product types of the inventory host.
type ProductType string

const (
	ProductTypeConsumable ProductType = "consumable"
	ProductTypeStorable   ProductType = "storable"
	ProductTypeService    ProductType = "service"
)

// Product is a catalog item sold or consumed during interventions.
type Product struct {
	ID            string
	Name          string
	Type          ProductType
	ListPrice     decimal.Decimal
	UOM           string
	IncomeAccount string
	CreatedAt     time.Time
}

// IsService reports whether the product is a non-stocked service.
func (p *Product) IsService() bool {
	return p.Type == ProductTypeService
}
