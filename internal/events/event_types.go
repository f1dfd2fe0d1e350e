package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldops/intervention-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventInterventionCreated      EventType = "intervention_created"
	EventInterventionStateChanged EventType = "intervention_state_changed"
	EventTechnicianAssigned       EventType = "technician_assigned"
	EventPartRecorded             EventType = "part_recorded"
	EventPartRemoved              EventType = "part_removed"
	EventInvoiceGenerated         EventType = "invoice_generated"
	EventStageEntered             EventType = "stage_entered"
)

// AllTypes lists every event the service emits.
var AllTypes = []EventType{
	EventInterventionCreated,
	EventInterventionStateChanged,
	EventTechnicianAssigned,
	EventPartRecorded,
	EventPartRemoved,
	EventInvoiceGenerated,
	EventStageEntered,
}

// Actor identifies who triggered an event.
type Actor struct {
	Role   domain.Role `json:"role,omitempty"`
	UserID *string     `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// InterventionCreatedPayload payload.
type InterventionCreatedPayload struct {
	Reference string         `json:"reference"`
	ClientID  *string        `json:"client_id,omitempty"`
	TeamID    *string        `json:"team_id,omitempty"`
	Urgency   domain.Urgency `json:"urgency"`
	Title     string         `json:"title"`
}

// StateChangedPayload payload.
type StateChangedPayload struct {
	OldState domain.InterventionState `json:"old_state"`
	NewState domain.InterventionState `json:"new_state"`
}

// TechnicianAssignedPayload payload.
type TechnicianAssignedPayload struct {
	TechnicianID         string  `json:"technician_id"`
	PreviousTechnicianID *string `json:"previous_technician_id,omitempty"`
	Automatic            bool    `json:"automatic"`
}

// PartPayload payload for part_recorded and part_removed.
type PartPayload struct {
	PartLineID string          `json:"part_line_id"`
	ProductID  string          `json:"product_id"`
	Quantity   float64         `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	MoveID     *string         `json:"move_id,omitempty"`
}

// InvoiceGeneratedPayload payload.
type InvoiceGeneratedPayload struct {
	InvoiceID string          `json:"invoice_id"`
	Number    string          `json:"number"`
	Total     decimal.Decimal `json:"total"`
}

// StageEnteredPayload payload.
type StageEnteredPayload struct {
	StageID    string            `json:"stage_id"`
	StageName  string            `json:"stage_name"`
	AutoAction domain.ActionKind `json:"auto_action"`
}
