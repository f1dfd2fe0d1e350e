package dto

import (
	"github.com/shopspring/decimal"

	"github.com/fieldops/intervention-service/internal/domain"
)

// ReferenceRequest creates a specialty or category.
type ReferenceRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Color       int    `json:"color" validate:"gte=0"`
}

// ReferenceResponse describes a specialty or category.
type ReferenceResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// CreateTeamRequest payload.
type CreateTeamRequest struct {
	Name                 string   `json:"name" validate:"required"`
	IsInterventionTeam   bool     `json:"is_intervention_team"`
	AutoAssignTechnician *bool    `json:"auto_assign_technician"`
	DefaultDurationHours *float64 `json:"default_duration_hours" validate:"omitempty,gte=0"`
}

// TeamResponse describes a team.
type TeamResponse struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	IsInterventionTeam   bool    `json:"is_intervention_team"`
	AutoAssignTechnician bool    `json:"auto_assign_technician"`
	DefaultDurationHours float64 `json:"default_duration_hours"`
	IsActive             bool    `json:"is_active"`
}

// TeamStatsResponse aggregates the team's interventions.
type TeamStatsResponse struct {
	InterventionCount    int `json:"intervention_count"`
	PendingInterventions int `json:"pending_interventions"`
	AvailableTechnicians int `json:"available_technicians"`
}

// CreateStageRequest payload.
type CreateStageRequest struct {
	Name                string           `json:"name" validate:"required"`
	Sequence            int              `json:"sequence"`
	Kind                domain.StageKind `json:"kind" validate:"omitempty,oneof=new assigned in_progress done invoiced other"`
	IsInterventionStage bool             `json:"is_intervention_stage"`
	AutoAction          string           `json:"auto_action" validate:"omitempty,oneof=none assign notify start invoice"`
	RequireSignature    bool             `json:"require_signature"`
}

// StageResponse describes a stage.
type StageResponse struct {
	ID                  string            `json:"id"`
	TeamID              *string           `json:"team_id"`
	Name                string            `json:"name"`
	Sequence            int               `json:"sequence"`
	Kind                domain.StageKind  `json:"kind"`
	IsInterventionStage bool              `json:"is_intervention_stage"`
	AutoAction          domain.ActionKind `json:"auto_action"`
	RequireSignature    bool              `json:"require_signature"`
}

// CreateProductRequest payload.
type CreateProductRequest struct {
	Name          string             `json:"name" validate:"required"`
	Type          domain.ProductType `json:"type" validate:"required,oneof=consumable storable service"`
	ListPrice     decimal.Decimal    `json:"list_price"`
	UOM           string             `json:"uom"`
	IncomeAccount string             `json:"income_account"`
}

// ProductResponse describes a product.
type ProductResponse struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Type          domain.ProductType `json:"type"`
	ListPrice     decimal.Decimal    `json:"list_price"`
	UOM           string             `json:"uom"`
	IncomeAccount string             `json:"income_account"`
}
