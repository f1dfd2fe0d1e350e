package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/repository"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

// NotificationService schedules technician activities and logs domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	activities repository.ActivityRepository
	clients    repository.ClientRepository
	logger     *zap.Logger
	cfg        config.NotificationConfig
	now        func() time.Time
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Dispatcher   events.Dispatcher
	ActivityRepo repository.ActivityRepository
	ClientRepo   repository.ClientRepository
	Logger       *zap.Logger
	Config       config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		activities: deps.ActivityRepo,
		clients:    deps.ClientRepo,
		logger:     nopIfNil(deps.Logger),
		cfg:        deps.Config,
		now:        time.Now,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, t := range events.AllTypes {
		n.dispatcher.Subscribe(t, n.logEvent)
	}
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

// NotifyTechnician schedules a to-do activity for the technician assigned to ticket.
func (n *NotificationService) NotifyTechnician(ctx context.Context, ticket *domain.InterventionTicket) (*domain.Activity, error) {
	if !ticket.HasTechnician() {
		return nil, apperrors.NewNoTechnicianAssigned(ticket.ID)
	}
	clientName := ""
	if ticket.HasClient() {
		client, err := n.clients.GetByID(ctx, *ticket.ClientID)
		if err != nil && !apperrors.IsNoRows(err) {
			return nil, apperrors.MapError(err)
		}
		if client != nil {
			clientName = client.Name
		}
	}

	activity := &domain.Activity{
		UserID:   *ticket.TechnicianID,
		TicketID: ticket.ID,
		Summary:  ActivitySummary(ticket),
		Note:     ActivityNote(clientName, ticket.Address),
		DueAt:    n.now().UTC().Add(time.Duration(n.cfg.ActivityDueHours) * time.Hour),
	}
	if err := n.activities.Create(ctx, activity); err != nil {
		return nil, apperrors.MapError(err)
	}
	n.logger.Debug("technician activity scheduled",
		zap.String("ticket_id", ticket.ID),
		zap.String("technician_id", activity.UserID))
	return activity, nil
}

// ActivitySummary renders the activity title shown to the technician.
func ActivitySummary(ticket *domain.InterventionTicket) string {
	return fmt.Sprintf("Intervention %s: %s", ticket.Urgency, ticket.Title)
}

// ActivityNote renders the activity body.
func ActivityNote(clientName, address string) string {
	return fmt.Sprintf("New intervention assigned.\nClient: %s\nAddress: %s", clientName, address)
}
