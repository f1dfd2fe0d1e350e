package domain

import "fmt"

// StageKind tags the workflow stages the intervention lifecycle moves tickets into.
type StageKind string

const (
	StageKindNew        StageKind = "new"
	StageKindAssigned   StageKind = "assigned"
	StageKindInProgress StageKind = "in_progress"
	StageKindDone       StageKind = "done"
	StageKindInvoiced   StageKind = "invoiced"
	StageKindOther      StageKind = "other"
)

// Valid reports whether k is a known stage kind.
func (k StageKind) Valid() bool {
	switch k {
	case StageKindNew, StageKindAssigned, StageKindInProgress, StageKindDone, StageKindInvoiced, StageKindOther:
		return true
	}
	return false
}

// ActionKind is the closed set of automatic actions a stage can carry.
type ActionKind string

const (
	ActionNone    ActionKind = "none"
	ActionAssign  ActionKind = "assign"
	ActionNotify  ActionKind = "notify"
	ActionStart   ActionKind = "start"
	ActionInvoice ActionKind = "invoice"
)

// ParseActionKind validates a stored or user supplied action name. Empty means none.
func ParseActionKind(v string) (ActionKind, error) {
	switch ActionKind(v) {
	case "", ActionNone:
		return ActionNone, nil
	case ActionAssign, ActionNotify, ActionStart, ActionInvoice:
		return ActionKind(v), nil
	}
	return "", fmt.Errorf("unknown stage action %q", v)
}

// Stage is a named step in a team's ticket workflow.
type Stage struct {
	ID                  string
	TeamID              *string
	Name                string
	Sequence            int
	Kind                StageKind
	IsInterventionStage bool
	AutoAction          ActionKind
	RequireSignature    bool
}
