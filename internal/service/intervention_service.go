package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/persistence"
	"github.com/fieldops/intervention-service/internal/repository"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

// InterventionService drives the intervention lifecycle:
// draft -> assigned -> in_progress -> completed -> invoiced, with cancelled reachable from any
// non-terminal state. Every action runs in one transaction.
type InterventionService struct {
	tx           persistence.Transactor
	tickets      repository.TicketRepository
	lines        repository.PartLineRepository
	clients      repository.ClientRepository
	teams        repository.TeamRepository
	stages       repository.StageRepository
	references   repository.ReferenceRepository
	history      repository.TicketHistoryRepository
	technicians  *TechnicianService
	billing      *BillingService
	notifier     *NotificationService
	stageActions *StageActionService
	dispatcher   events.Dispatcher
	hourlyRate   decimal.Decimal
	logger       *zap.Logger
	now          func() time.Time
}

// InterventionDependencies bundles collaborators.
type InterventionDependencies struct {
	Tx                persistence.Transactor
	TicketRepo        repository.TicketRepository
	PartLineRepo      repository.PartLineRepository
	ClientRepo        repository.ClientRepository
	TeamRepo          repository.TeamRepository
	StageRepo         repository.StageRepository
	ReferenceRepo     repository.ReferenceRepository
	HistoryRepo       repository.TicketHistoryRepository
	Technicians       *TechnicianService
	Billing           *BillingService
	Notifications     *NotificationService
	Dispatcher        events.Dispatcher
	DefaultHourlyRate decimal.Decimal
	Logger            *zap.Logger
}

// InterventionCreateInput describes a new intervention request.
type InterventionCreateInput struct {
	Title                  string
	Description            string
	ClientID               *string
	TeamID                 *string
	CategoryID             *string
	TechnicianID           *string
	Urgency                domain.Urgency
	IsIntervention         *bool
	ScheduledAt            *time.Time
	Address                string
	EstimatedDurationHours *float64
	HourlyRate             *decimal.Decimal
}

// InterventionFilter describes listing filters.
type InterventionFilter struct {
	ClientID      *string
	TeamID        *string
	TechnicianID  *string
	States        []domain.InterventionState
	Urgencies     []domain.Urgency
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
	Limit         int
	Offset        int
}

// NewInterventionService constructs the service.
func NewInterventionService(deps InterventionDependencies) *InterventionService {
	return &InterventionService{
		tx:          deps.Tx,
		tickets:     deps.TicketRepo,
		lines:       deps.PartLineRepo,
		clients:     deps.ClientRepo,
		teams:       deps.TeamRepo,
		stages:      deps.StageRepo,
		references:  deps.ReferenceRepo,
		history:     deps.HistoryRepo,
		technicians: deps.Technicians,
		billing:     deps.Billing,
		notifier:    deps.Notifications,
		dispatcher:  deps.Dispatcher,
		hourlyRate:  deps.DefaultHourlyRate,
		logger:      nopIfNil(deps.Logger),
		now:         time.Now,
	}
}

// UseStageActions installs the automation run when a ticket enters a stage.
func (s *InterventionService) UseStageActions(actions *StageActionService) {
	s.stageActions = actions
}

// Create registers an intervention. Interventions with a client and no technician are
// auto-assigned unless their team disables it; when nobody is available the ticket stays in draft.
func (s *InterventionService) Create(ctx context.Context, input InterventionCreateInput) (*domain.InterventionTicket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	urgency := input.Urgency
	if urgency == "" {
		urgency = domain.UrgencyMedium
	}
	if !urgency.Valid() {
		return nil, apperrors.NewValidationError("unknown urgency", map[string]any{"urgency": urgency})
	}

	var ticket *domain.InterventionTicket
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		id := uuid.NewString()
		ticket = &domain.InterventionTicket{
			ID:             id,
			Reference:      fmt.Sprintf("INT/%d/%s", now.Year(), strings.ToUpper(id[:8])),
			Title:          title,
			Description:    strings.TrimSpace(input.Description),
			ClientID:       input.ClientID,
			TeamID:         input.TeamID,
			CategoryID:     input.CategoryID,
			IsIntervention: input.IsIntervention == nil || *input.IsIntervention,
			Urgency:        urgency,
			State:          domain.StateDraft,
			ScheduledAt:    input.ScheduledAt,
			Address:        strings.TrimSpace(input.Address),
			HourlyRate:     s.hourlyRate,
		}
		if input.HourlyRate != nil {
			if input.HourlyRate.IsNegative() {
				return apperrors.NewValidationError("hourly rate must not be negative", nil)
			}
			ticket.HourlyRate = *input.HourlyRate
		}

		if ticket.HasClient() {
			client, err := s.clients.GetByID(ctx, *ticket.ClientID)
			if err != nil {
				return lookupErr(err, "client", *ticket.ClientID)
			}
			if ticket.Address == "" {
				ticket.Address = client.Address()
			}
		}

		var team *domain.Team
		if input.TeamID != nil {
			var err error
			team, err = s.teams.GetByID(ctx, *input.TeamID)
			if err != nil {
				return lookupErr(err, "team", *input.TeamID)
			}
			if !team.IsActive {
				return apperrors.NewValidationError("team inactive", map[string]any{"team_id": team.ID})
			}
			ticket.EstimatedDurationHours = team.DefaultDurationHours
		}
		if input.EstimatedDurationHours != nil {
			ticket.EstimatedDurationHours = *input.EstimatedDurationHours
		}

		if input.CategoryID != nil {
			if _, err := s.references.GetCategory(ctx, *input.CategoryID); err != nil {
				return lookupErr(err, "category", *input.CategoryID)
			}
		}
		if input.TechnicianID != nil {
			view, err := s.technicians.Get(ctx, *input.TechnicianID)
			if err != nil {
				return err
			}
			if !view.IsTechnician {
				return apperrors.NewValidationError("user is not an intervention technician", map[string]any{"technician_id": view.ID})
			}
			ticket.TechnicianID = &view.ID
		}
		if err := s.syncStage(ctx, ticket, domain.StageKindNew); err != nil {
			return err
		}

		if err := s.tickets.Create(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		publishAfterCommit(ctx, s.dispatcher, events.EventInterventionCreated, ticket.ID, events.InterventionCreatedPayload{
			Reference: ticket.Reference,
			ClientID:  ticket.ClientID,
			TeamID:    ticket.TeamID,
			Urgency:   ticket.Urgency,
			Title:     ticket.Title,
		})

		autoAssign := ticket.IsIntervention && !ticket.HasTechnician() && ticket.HasClient() &&
			(team == nil || team.AutoAssignTechnician)
		if !autoAssign {
			return nil
		}
		err := s.autoAssign(ctx, ticket)
		if errors.Is(err, apperrors.ErrNoTechnicianAvailable) {
			s.logger.Warn("no technician available, intervention left in draft", zap.String("ticket_id", ticket.ID))
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// CreateForClient opens an intervention for a client on the intervention team.
func (s *InterventionService) CreateForClient(ctx context.Context, clientID, description string, urgency domain.Urgency) (*domain.InterventionTicket, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, lookupErr(err, "client", clientID)
	}
	team, err := s.teams.FindInterventionTeam(ctx)
	if err != nil {
		if apperrors.IsNoRows(err) {
			return nil, apperrors.NewValidationError("no intervention team configured", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return s.Create(ctx, InterventionCreateInput{
		Title:          "Intervention - " + client.Name,
		Description:    description,
		ClientID:       &client.ID,
		TeamID:         &team.ID,
		Urgency:        urgency,
		IsIntervention: ptr(true),
		Address:        client.Address(),
	})
}

// AutoAssign picks the first available technician for a draft intervention and notifies them.
func (s *InterventionService) AutoAssign(ctx context.Context, ticketID string) (*domain.InterventionTicket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, ticket *domain.InterventionTicket) error {
		if ticket.State != domain.StateDraft {
			return apperrors.NewInvalidTransition("auto_assign", string(ticket.State))
		}
		return s.autoAssign(ctx, ticket)
	})
}

func (s *InterventionService) autoAssign(ctx context.Context, ticket *domain.InterventionTicket) error {
	if !ticket.HasClient() {
		return apperrors.NewMissingClient(ticket.ID)
	}
	tech, err := s.technicians.Assign(ctx, nil)
	if err != nil {
		return err
	}
	return s.moveToAssigned(ctx, ticket, tech.ID, true)
}

// AssignTechnician assigns a named technician. On an already assigned ticket the previous
// technician is released.
func (s *InterventionService) AssignTechnician(ctx context.Context, ticketID, technicianID string) (*domain.InterventionTicket, error) {
	if strings.TrimSpace(technicianID) == "" {
		return nil, apperrors.NewValidationError("a technician is required to assign an intervention", nil)
	}
	return s.mutate(ctx, ticketID, func(ctx context.Context, ticket *domain.InterventionTicket) error {
		switch ticket.State {
		case domain.StateDraft:
		case domain.StateAssigned:
			if ticket.HasTechnician() && *ticket.TechnicianID == technicianID {
				return nil
			}
			if ticket.HasTechnician() {
				if err := s.technicians.Release(ctx, *ticket.TechnicianID); err != nil {
					return err
				}
			}
		default:
			return apperrors.NewInvalidTransition("assign", string(ticket.State))
		}
		if _, err := s.technicians.Claim(ctx, technicianID); err != nil {
			return err
		}
		return s.moveToAssigned(ctx, ticket, technicianID, false)
	})
}

// Confirm moves a draft to assigned using the technician already set on it.
func (s *InterventionService) Confirm(ctx context.Context, ticketID string) (*domain.InterventionTicket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, ticket *domain.InterventionTicket) error {
		if ticket.State != domain.StateDraft {
			return apperrors.NewInvalidTransition("confirm", string(ticket.State))
		}
		if !ticket.HasTechnician() {
			return apperrors.NewValidationError("a technician is required to assign an intervention", map[string]any{"ticket_id": ticket.ID})
		}
		if _, err := s.technicians.Claim(ctx, *ticket.TechnicianID); err != nil {
			return err
		}
		return s.moveToAssigned(ctx, ticket, *ticket.TechnicianID, false)
	})
}

func (s *InterventionService) moveToAssigned(ctx context.Context, ticket *domain.InterventionTicket, technicianID string, automatic bool) error {
	previous := ticket.TechnicianID
	ticket.TechnicianID = &technicianID
	if err := s.recordTechnicianChange(ctx, ticket.ID, previous, ticket.TechnicianID); err != nil {
		return err
	}
	if ticket.State != domain.StateAssigned {
		if err := s.syncStage(ctx, ticket, domain.StageKindAssigned); err != nil {
			return err
		}
		if err := s.changeState(ctx, ticket, domain.StateAssigned); err != nil {
			return err
		}
	} else if err := s.save(ctx, ticket); err != nil {
		return err
	}
	publishAfterCommit(ctx, s.dispatcher, events.EventTechnicianAssigned, ticket.ID, events.TechnicianAssignedPayload{
		TechnicianID:         technicianID,
		PreviousTechnicianID: previous,
		Automatic:            automatic,
	})
	_, err := s.notifier.NotifyTechnician(ctx, ticket)
	return err
}

// Schedule sets the planned visit time.
func (s *InterventionService) Schedule(ctx context.Context, ticketID string, at time.Time) (*domain.InterventionTicket, error) {
	if at.IsZero() {
		return nil, apperrors.NewValidationError("scheduled time is required", nil)
	}
	return s.mutate(ctx, ticketID, func(ctx context.Context, ticket *domain.InterventionTicket) error {
		if ticket.State.IsTerminal() {
			return apperrors.NewInvalidTransition("schedule", string(ticket.State))
		}
		old := ticket.ScheduledAt
		at := at.UTC()
		ticket.ScheduledAt = &at
		if err := recordHistory(ctx, s.history, ticket.ID, domain.ChangeTypeSchedule,
			map[string]any{"scheduled_at": old},
			map[string]any{"scheduled_at": ticket.ScheduledAt},
		); err != nil {
			return apperrors.MapError(err)
		}
		return s.save(ctx, ticket)
	})
}

// Start begins work on an assigned intervention.
func (s *InterventionService) Start(ctx context.Context, ticketID string) (*domain.InterventionTicket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, ticket *domain.InterventionTicket) error {
		if !ticket.HasTechnician() {
			return apperrors.NewNoTechnicianAssigned(ticket.ID)
		}
		if ticket.State != domain.StateAssigned {
			return apperrors.NewInvalidTransition("start", string(ticket.State))
		}
		if ticket.StartedAt == nil {
			now := s.now().UTC()
			ticket.StartedAt = &now
		}
		if err := s.syncStage(ctx, ticket, domain.StageKindInProgress); err != nil {
			return err
		}
		return s.changeState(ctx, ticket, domain.StateInProgress)
	})
}

// Complete closes the intervention, releases the technician and issues the invoice.
func (s *InterventionService) Complete(ctx context.Context, ticketID string) (*domain.InterventionTicket, error) {
	var result *domain.InterventionTicket
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.lockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if !ticket.State.IsOpenJob() {
			return apperrors.NewInvalidTransition("complete", string(ticket.State))
		}
		now := s.now().UTC()
		if ticket.StartedAt == nil {
			ticket.StartedAt = &now
		}
		end := now
		if end.Before(*ticket.StartedAt) {
			end = *ticket.StartedAt
		}
		ticket.EndedAt = &end
		if ticket.HasTechnician() {
			if err := s.technicians.Release(ctx, *ticket.TechnicianID); err != nil {
				return err
			}
		}
		if err := s.syncStage(ctx, ticket, domain.StageKindDone); err != nil {
			return err
		}
		if err := s.changeState(ctx, ticket, domain.StateCompleted); err != nil {
			return err
		}
		if _, err := s.billing.GenerateInvoice(ctx, ticket.ID); err != nil {
			return err
		}
		result, err = s.lockTicket(ctx, ticket.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel stops the intervention. A technician still holding the job is released.
func (s *InterventionService) Cancel(ctx context.Context, ticketID string) (*domain.InterventionTicket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, ticket *domain.InterventionTicket) error {
		if ticket.State.IsTerminal() {
			return apperrors.NewInvalidTransition("cancel", string(ticket.State))
		}
		if ticket.State.IsOpenJob() && ticket.HasTechnician() {
			if err := s.technicians.Release(ctx, *ticket.TechnicianID); err != nil {
				return err
			}
		}
		return s.changeState(ctx, ticket, domain.StateCancelled)
	})
}

// Sign stores the client signature.
func (s *InterventionService) Sign(ctx context.Context, ticketID string, signature []byte) (*domain.InterventionTicket, error) {
	if len(signature) == 0 {
		return nil, apperrors.NewValidationError("signature is required", nil)
	}
	return s.mutate(ctx, ticketID, func(ctx context.Context, ticket *domain.InterventionTicket) error {
		if ticket.State == domain.StateCancelled {
			return apperrors.NewInvalidTransition("sign", string(ticket.State))
		}
		now := s.now().UTC()
		ticket.Signature = signature
		ticket.SignatureAt = &now
		return s.save(ctx, ticket)
	})
}

// SetNotes replaces the intervention notes.
func (s *InterventionService) SetNotes(ctx context.Context, ticketID, notes string) (*domain.InterventionTicket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, ticket *domain.InterventionTicket) error {
		ticket.Notes = notes
		return s.save(ctx, ticket)
	})
}

// ChangeStage moves the ticket to a stage and runs the stage's automatic action.
func (s *InterventionService) ChangeStage(ctx context.Context, ticketID, stageID string) (*domain.InterventionTicket, error) {
	var result *domain.InterventionTicket
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.lockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		stage, err := s.stages.GetByID(ctx, stageID)
		if err != nil {
			return lookupErr(err, "stage", stageID)
		}
		if stage.TeamID != nil && (ticket.TeamID == nil || *ticket.TeamID != *stage.TeamID) {
			return apperrors.NewValidationError("stage belongs to another team", map[string]any{"stage_id": stage.ID})
		}
		if stage.RequireSignature && len(ticket.Signature) == 0 {
			return apperrors.NewValidationError("a client signature is required for this stage", map[string]any{"stage_id": stage.ID})
		}

		old := ticket.StageID
		ticket.StageID = &stage.ID
		if err := recordHistory(ctx, s.history, ticket.ID, domain.ChangeTypeStage,
			map[string]any{"stage_id": old},
			map[string]any{"stage_id": stage.ID},
		); err != nil {
			return apperrors.MapError(err)
		}
		if err := s.save(ctx, ticket); err != nil {
			return err
		}
		publishAfterCommit(ctx, s.dispatcher, events.EventStageEntered, ticket.ID, events.StageEnteredPayload{
			StageID:    stage.ID,
			StageName:  stage.Name,
			AutoAction: stage.AutoAction,
		})

		if s.stageActions != nil {
			if err := s.stageActions.OnStageEnter(ctx, ticket, stage); err != nil {
				return err
			}
		}
		result, err = s.lockTicket(ctx, ticket.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Notify schedules the technician activity again.
func (s *InterventionService) Notify(ctx context.Context, ticketID string) (*domain.Activity, error) {
	var activity *domain.Activity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.lockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		activity, err = s.notifier.NotifyTechnician(ctx, ticket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// Get returns one intervention.
func (s *InterventionService) Get(ctx context.Context, ticketID string) (*domain.InterventionTicket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupErr(err, "ticket", ticketID)
	}
	return ticket, nil
}

// List returns interventions, newest first.
func (s *InterventionService) List(ctx context.Context, filter InterventionFilter) ([]domain.InterventionTicket, error) {
	for _, st := range filter.States {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown state", map[string]any{"state": st})
		}
	}
	for _, u := range filter.Urgencies {
		if !u.Valid() {
			return nil, apperrors.NewValidationError("unknown urgency", map[string]any{"urgency": u})
		}
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		ClientID:      filter.ClientID,
		TeamID:        filter.TeamID,
		TechnicianID:  filter.TechnicianID,
		States:        filter.States,
		Urgencies:     filter.Urgencies,
		ScheduledFrom: filter.ScheduledFrom,
		ScheduledTo:   filter.ScheduledTo,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// History returns the audit trail of a ticket.
func (s *InterventionService) History(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, lookupErr(err, "ticket", ticketID)
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// DueForReminder lists assigned interventions scheduled between from and to.
func (s *InterventionService) DueForReminder(ctx context.Context, from, to time.Time) ([]domain.InterventionTicket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		States:           []domain.InterventionState{domain.StateAssigned},
		InterventionOnly: true,
		ScheduledFrom:    &from,
		ScheduledTo:      &to,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// mutate loads and locks the ticket, applies fn and returns the ticket as stored afterwards.
func (s *InterventionService) mutate(ctx context.Context, ticketID string, fn func(context.Context, *domain.InterventionTicket) error) (*domain.InterventionTicket, error) {
	var result *domain.InterventionTicket
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.lockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := fn(ctx, ticket); err != nil {
			return err
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *InterventionService) lockTicket(ctx context.Context, ticketID string) (*domain.InterventionTicket, error) {
	ticket, err := s.tickets.GetForUpdate(ctx, ticketID)
	if err != nil {
		return nil, lookupErr(err, "ticket", ticketID)
	}
	return ticket, nil
}

func (s *InterventionService) save(ctx context.Context, ticket *domain.InterventionTicket) error {
	return apperrors.MapError(saveTicket(ctx, s.tickets, s.lines, ticket))
}

func (s *InterventionService) changeState(ctx context.Context, ticket *domain.InterventionTicket, next domain.InterventionState) error {
	old := ticket.State
	ticket.State = next
	if err := recordHistory(ctx, s.history, ticket.ID, domain.ChangeTypeState,
		map[string]any{"state": old},
		map[string]any{"state": next},
	); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.save(ctx, ticket); err != nil {
		return err
	}
	publishAfterCommit(ctx, s.dispatcher, events.EventInterventionStateChanged, ticket.ID, events.StateChangedPayload{
		OldState: old,
		NewState: next,
	})
	return nil
}

func (s *InterventionService) recordTechnicianChange(ctx context.Context, ticketID string, oldTech, newTech *string) error {
	return apperrors.MapError(recordHistory(ctx, s.history, ticketID, domain.ChangeTypeTechnician,
		map[string]any{"technician_id": oldTech},
		map[string]any{"technician_id": newTech},
	))
}

// syncStage moves the ticket to the team's stage of the given kind when one exists.
// Stage automation is not triggered here.
func (s *InterventionService) syncStage(ctx context.Context, ticket *domain.InterventionTicket, kind domain.StageKind) error {
	stage, err := s.stages.FindByKind(ctx, ticket.TeamID, kind)
	if err != nil {
		if apperrors.IsNoRows(err) {
			return nil
		}
		return apperrors.MapError(err)
	}
	ticket.StageID = &stage.ID
	return nil
}
