package domain

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InterventionState enumerates lifecycle states of an intervention.
type InterventionState string

const (
	StateDraft      InterventionState = "draft"
	StateAssigned   InterventionState = "assigned"
	StateInProgress InterventionState = "in_progress"
	StateCompleted  InterventionState = "completed"
	StateInvoiced   InterventionState = "invoiced"
	StateCancelled  InterventionState = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s InterventionState) IsTerminal() bool {
	return s == StateInvoiced || s == StateCancelled
}

// IsOpenJob reports whether the assigned technician is still holding the job.
func (s InterventionState) IsOpenJob() bool {
	return s == StateAssigned || s == StateInProgress
}

// Valid reports whether s is a known state.
func (s InterventionState) Valid() bool {
	switch s {
	case StateDraft, StateAssigned, StateInProgress, StateCompleted, StateInvoiced, StateCancelled:
		return true
	}
	return false
}

// Urgency is the ordered urgency level of an intervention.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

var urgencyRank = map[Urgency]int{
	UrgencyNormal:   0,
	UrgencyMedium:   1,
	UrgencyHigh:     2,
	UrgencyCritical: 3,
}

// Rank returns the position of u in normal < medium < high < critical, or -1 when unknown.
func (u Urgency) Rank() int {
	r, ok := urgencyRank[u]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether u is a known urgency level.
func (u Urgency) Valid() bool {
	return u.Rank() >= 0
}

// Less orders urgencies from least to most urgent.
func (u Urgency) Less(other Urgency) bool {
	return u.Rank() < other.Rank()
}

// InterventionTicket is a service ticket extended with on-site intervention data.
type InterventionTicket struct {
	ID                     string
	Reference              string
	Title                  string
	Description            string
	ClientID               *string
	TeamID                 *string
	StageID                *string
	CategoryID             *string
	IsIntervention         bool
	Urgency                Urgency
	State                  InterventionState
	TechnicianID           *string
	ScheduledAt            *time.Time
	StartedAt              *time.Time
	EndedAt                *time.Time
	EstimatedDurationHours float64
	Address                string
	Signature              []byte
	SignatureAt            *time.Time
	Notes                  string
	HourlyRate             decimal.Decimal
	DurationHours          float64
	MaterialCost           decimal.Decimal
	LaborCost              decimal.Decimal
	TotalCost              decimal.Decimal
	InvoiceID              *string
	Invoiced               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// HasTechnician reports whether a technician reference is set.
func (t *InterventionTicket) HasTechnician() bool {
	return t.TechnicianID != nil && *t.TechnicianID != ""
}

// HasClient reports whether a client reference is set.
func (t *InterventionTicket) HasClient() bool {
	return t.ClientID != nil && *t.ClientID != ""
}

// Duration returns the worked hours: zero when either timestamp is missing or end precedes start.
func Duration(start, end *time.Time) float64 {
	if start == nil || end == nil {
		return 0
	}
	hours := end.Sub(*start).Hours()
	if hours < 0 {
		return 0
	}
	return hours
}

// Recompute refreshes the derived duration and cost fields from timestamps and part lines.
func (t *InterventionTicket) Recompute(lines []PartLine) {
	t.DurationHours = Duration(t.StartedAt, t.EndedAt)
	t.MaterialCost = lo.Reduce(lines, func(acc decimal.Decimal, line PartLine, _ int) decimal.Decimal {
		return acc.Add(line.Subtotal)
	}, decimal.Zero)
	t.LaborCost = decimal.NewFromFloat(t.DurationHours).Mul(t.HourlyRate).Round(MoneyPlaces)
	t.TotalCost = t.LaborCost.Add(t.MaterialCost)
}
