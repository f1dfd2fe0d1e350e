package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldops/intervention-service/internal/domain"
)

// CreateInterventionRequest payload.
type CreateInterventionRequest struct {
	Title                  string           `json:"title" validate:"required,max=255"`
	Description            string           `json:"description"`
	ClientID               *string          `json:"client_id"`
	TeamID                 *string          `json:"team_id"`
	CategoryID             *string          `json:"category_id"`
	TechnicianID           *string          `json:"technician_id"`
	Urgency                domain.Urgency   `json:"urgency" validate:"omitempty,oneof=normal medium high critical"`
	IsIntervention         *bool            `json:"is_intervention"`
	ScheduledAt            *time.Time       `json:"scheduled_at"`
	Address                string           `json:"address"`
	EstimatedDurationHours *float64         `json:"estimated_duration_hours" validate:"omitempty,gte=0"`
	HourlyRate             *decimal.Decimal `json:"hourly_rate"`
}

// ClientInterventionRequest opens an intervention from a client record.
type ClientInterventionRequest struct {
	Description string         `json:"description"`
	Urgency     domain.Urgency `json:"urgency" validate:"omitempty,oneof=normal medium high critical"`
}

// AssignTechnicianRequest payload.
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id" validate:"required"`
}

// ScheduleRequest payload.
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// SignRequest carries the base64 encoded client signature.
type SignRequest struct {
	Signature []byte `json:"signature" validate:"required"`
}

// NotesRequest payload.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ChangeStageRequest payload.
type ChangeStageRequest struct {
	StageID string `json:"stage_id" validate:"required"`
}

// InterventionResponse is the full intervention view.
type InterventionResponse struct {
	ID                     string                   `json:"id"`
	Reference              string                   `json:"reference"`
	Title                  string                   `json:"title"`
	Description            string                   `json:"description"`
	ClientID               *string                  `json:"client_id"`
	TeamID                 *string                  `json:"team_id"`
	StageID                *string                  `json:"stage_id"`
	CategoryID             *string                  `json:"category_id"`
	IsIntervention         bool                     `json:"is_intervention"`
	Urgency                domain.Urgency           `json:"urgency"`
	State                  domain.InterventionState `json:"state"`
	TechnicianID           *string                  `json:"technician_id"`
	ScheduledAt            *time.Time               `json:"scheduled_at"`
	StartedAt              *time.Time               `json:"started_at"`
	EndedAt                *time.Time               `json:"ended_at"`
	EstimatedDurationHours float64                  `json:"estimated_duration_hours"`
	Address                string                   `json:"address"`
	Signed                 bool                     `json:"signed"`
	SignatureAt            *time.Time               `json:"signature_at"`
	Notes                  string                   `json:"notes"`
	HourlyRate             decimal.Decimal          `json:"hourly_rate"`
	DurationHours          float64                  `json:"duration_hours"`
	MaterialCost           decimal.Decimal          `json:"material_cost"`
	LaborCost              decimal.Decimal          `json:"labor_cost"`
	TotalCost              decimal.Decimal          `json:"total_cost"`
	InvoiceID              *string                  `json:"invoice_id"`
	Invoiced               bool                     `json:"invoiced"`
	CreatedAt              time.Time                `json:"created_at"`
	UpdatedAt              time.Time                `json:"updated_at"`
}

// TicketHistoryResponse captures an audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// ActivityResponse describes a scheduled technician activity.
type ActivityResponse struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	TicketID string    `json:"ticket_id"`
	Summary  string    `json:"summary"`
	Note     string    `json:"note"`
	DueAt    time.Time `json:"due_at"`
}

// InvoiceResponse describes an issued invoice.
type InvoiceResponse struct {
	ID       string                `json:"id"`
	Number   string                `json:"number"`
	ClientID string                `json:"client_id"`
	TicketID string                `json:"ticket_id"`
	Origin   string                `json:"origin"`
	Date     time.Time             `json:"date"`
	State    domain.InvoiceState   `json:"state"`
	Total    decimal.Decimal       `json:"total"`
	Lines    []InvoiceLineResponse `json:"lines"`
}

// InvoiceLineResponse is one invoice line.
type InvoiceLineResponse struct {
	ProductID  *string         `json:"product_id"`
	PartLineID *string         `json:"part_line_id"`
	Name       string          `json:"name"`
	Quantity   float64         `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Account    string          `json:"account"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}
