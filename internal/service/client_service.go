package service

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/repository"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

// ClientService manages client records and their intervention statistics.
type ClientService struct {
	clients repository.ClientRepository
	tickets repository.TicketRepository
	logger  *zap.Logger
}

// ClientInput describes a client registration.
type ClientInput struct {
	Name               string
	Email              string
	Street             string
	City               string
	EquipmentType      string
	AccessInstructions string
}

// NewClientService constructs the service.
func NewClientService(clients repository.ClientRepository, tickets repository.TicketRepository, logger *zap.Logger) *ClientService {
	return &ClientService{clients: clients, tickets: tickets, logger: nopIfNil(logger)}
}

// Register stores a new client.
func (s *ClientService) Register(ctx context.Context, input ClientInput) (*domain.Client, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	client := &domain.Client{
		Name:               name,
		Email:              strings.TrimSpace(input.Email),
		Street:             strings.TrimSpace(input.Street),
		City:               strings.TrimSpace(input.City),
		EquipmentType:      input.EquipmentType,
		AccessInstructions: input.AccessInstructions,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("client registered", zap.String("client_id", client.ID))
	return client, nil
}

// Get returns a client.
func (s *ClientService) Get(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, lookupErr(err, "client", clientID)
	}
	return client, nil
}

// Stats counts the client's interventions and sums their parts cost.
func (s *ClientService) Stats(ctx context.Context, clientID string) (*domain.ClientStats, error) {
	if _, err := s.Get(ctx, clientID); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{ClientID: &clientID, InterventionOnly: true})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats := &domain.ClientStats{
		InterventionCount: len(tickets),
		TotalInterventionCost: lo.Reduce(tickets, func(acc decimal.Decimal, t domain.InterventionTicket, _ int) decimal.Decimal {
			return acc.Add(t.MaterialCost)
		}, decimal.Zero),
	}
	if len(tickets) > 0 {
		latest := lo.MaxBy(tickets, func(a, b domain.InterventionTicket) bool {
			return a.CreatedAt.After(b.CreatedAt)
		}).CreatedAt
		stats.LastInterventionAt = &latest
	}
	return stats, nil
}
