package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/domain"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

type stageAction func(ctx context.Context, ticket *domain.InterventionTicket) error

// StageActionService runs the automatic action of a stage when an intervention enters it.
// Each action is skipped when its effect is already in place.
type StageActionService struct {
	actions map[domain.ActionKind]stageAction
	logger  *zap.Logger
}

// NewStageActionService wires the action table to the workflow and billing services.
func NewStageActionService(workflow *InterventionService, billing *BillingService, logger *zap.Logger) *StageActionService {
	return &StageActionService{
		logger: nopIfNil(logger),
		actions: map[domain.ActionKind]stageAction{
			domain.ActionNone: func(context.Context, *domain.InterventionTicket) error { return nil },
			domain.ActionAssign: func(ctx context.Context, t *domain.InterventionTicket) error {
				if t.HasTechnician() {
					return nil
				}
				_, err := workflow.AutoAssign(ctx, t.ID)
				return err
			},
			domain.ActionNotify: func(ctx context.Context, t *domain.InterventionTicket) error {
				if !t.HasTechnician() {
					return nil
				}
				_, err := workflow.Notify(ctx, t.ID)
				return err
			},
			domain.ActionStart: func(ctx context.Context, t *domain.InterventionTicket) error {
				if t.StartedAt != nil {
					return nil
				}
				_, err := workflow.Start(ctx, t.ID)
				return err
			},
			domain.ActionInvoice: func(ctx context.Context, t *domain.InterventionTicket) error {
				if t.Invoiced {
					return nil
				}
				_, err := billing.GenerateInvoice(ctx, t.ID)
				return err
			},
		},
	}
}

// OnStageEnter runs the stage's action for intervention tickets.
func (s *StageActionService) OnStageEnter(ctx context.Context, ticket *domain.InterventionTicket, stage *domain.Stage) error {
	if !ticket.IsIntervention {
		return nil
	}
	action, ok := s.actions[stage.AutoAction]
	if !ok {
		return apperrors.NewValidationError("unknown stage action", map[string]any{"action": stage.AutoAction})
	}
	if stage.AutoAction != domain.ActionNone {
		s.logger.Debug("running stage action",
			zap.String("ticket_id", ticket.ID),
			zap.String("stage_id", stage.ID),
			zap.String("action", string(stage.AutoAction)),
		)
	}
	return action(ctx, ticket)
}
