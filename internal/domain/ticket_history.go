package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeState      TicketChangeType = "STATE_CHANGE"
	ChangeTypeTechnician TicketChangeType = "TECHNICIAN_CHANGE"
	ChangeTypeStage      TicketChangeType = "STAGE_CHANGE"
	ChangeTypeSchedule   TicketChangeType = "SCHEDULE_CHANGE"
	ChangeTypeInvoice    TicketChangeType = "INVOICE_CHANGE"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          string
	TicketID    string
	ChangedByID *string
	ChangeType  TicketChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
