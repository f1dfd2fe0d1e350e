package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterTechnicianRequest payload. ID is the identity provider's user id when known.
type RegisterTechnicianRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"omitempty,email"`
	SpecialtyIDs    []string `json:"specialty_ids"`
	CurrentLocation string   `json:"current_location"`
}

// UpdateTechnicianRequest payload. Availability is managed by assignments only.
type UpdateTechnicianRequest struct {
	Name            *string   `json:"name"`
	Email           *string   `json:"email" validate:"omitempty,email"`
	IsTechnician    *bool     `json:"is_technician"`
	SpecialtyIDs    *[]string `json:"specialty_ids"`
	CurrentLocation *string   `json:"current_location"`
}

// TechnicianResponse describes a technician.
type TechnicianResponse struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	IsTechnician         bool     `json:"is_technician"`
	Available            bool     `json:"available"`
	SpecialtyIDs         []string `json:"specialty_ids"`
	CurrentLocation      string   `json:"current_location"`
	InterventionCount    int      `json:"intervention_count"`
	CurrentInterventions int      `json:"current_interventions"`
}

// RegisterClientRequest payload.
type RegisterClientRequest struct {
	Name               string `json:"name" validate:"required"`
	Email              string `json:"email" validate:"omitempty,email"`
	Street             string `json:"street"`
	City               string `json:"city"`
	EquipmentType      string `json:"equipment_type"`
	AccessInstructions string `json:"access_instructions"`
}

// ClientResponse describes a client.
type ClientResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Street             string    `json:"street"`
	City               string    `json:"city"`
	EquipmentType      string    `json:"equipment_type"`
	AccessInstructions string    `json:"access_instructions"`
	CreatedAt          time.Time `json:"created_at"`
}

// ClientStatsResponse aggregates the client's interventions.
type ClientStatsResponse struct {
	InterventionCount     int             `json:"intervention_count"`
	LastInterventionAt    *time.Time      `json:"last_intervention_at"`
	TotalInterventionCost decimal.Decimal `json:"total_intervention_cost"`
}
