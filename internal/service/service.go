// Package service implements the intervention workflow: stock consumption, technician
// assignment, lifecycle transitions, billing and stage automation.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/auth"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/persistence"
	"github.com/fieldops/intervention-service/internal/repository"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

// lookupErr turns a missing row into a not-found error for resource and maps everything else.
func lookupErr(err error, resource, id string) error {
	if apperrors.IsNoRows(err) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return apperrors.MapError(err)
}

func actorID(ctx context.Context) *string {
	if p, ok := auth.PrincipalFrom(ctx); ok {
		id := p.SubjectID
		return &id
	}
	return nil
}

func actor(ctx context.Context) events.Actor {
	if p, ok := auth.PrincipalFrom(ctx); ok {
		id := p.SubjectID
		return events.Actor{Role: p.Role, UserID: &id}
	}
	return events.Actor{Role: domain.RoleSystem}
}

// publishAfterCommit emits the event once the surrounding transaction has committed.
func publishAfterCommit(ctx context.Context, d events.Dispatcher, eventType events.EventType, ticketID string, payload any) {
	if d == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor(ctx),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	persistence.AfterCommit(ctx, func(ctx context.Context) {
		_ = d.Publish(ctx, event)
	})
}

// saveTicket recomputes the derived cost fields from the current part lines and persists the ticket.
func saveTicket(ctx context.Context, tickets repository.TicketRepository, lines repository.PartLineRepository, ticket *domain.InterventionTicket) error {
	current, err := lines.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	ticket.Recompute(current)
	return tickets.Update(ctx, ticket)
}

func recordHistory(ctx context.Context, repo repository.TicketHistoryRepository, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) error {
	return repo.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID(ctx),
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
	})
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func ptr[T any](v T) *T {
	return &v
}
