package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/mq"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

func TestInterventionService_Create_Validation(t *testing.T) {
	t.Parallel()

	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name    string
		input   func(env *testEnv) InterventionCreateInput
		wantErr error
	}{
		{
			name: "blank title",
			input: func(*testEnv) InterventionCreateInput {
				return InterventionCreateInput{Title: "   "}
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "unknown urgency",
			input: func(*testEnv) InterventionCreateInput {
				return InterventionCreateInput{Title: gofakeit.Sentence(3), Urgency: "urgent"}
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "negative hourly rate",
			input: func(*testEnv) InterventionCreateInput {
				return InterventionCreateInput{Title: gofakeit.Sentence(3), HourlyRate: &negative}
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "unknown client",
			input: func(*testEnv) InterventionCreateInput {
				return InterventionCreateInput{Title: gofakeit.Sentence(3), ClientID: ptr(gofakeit.UUID())}
			},
			wantErr: apperrors.ErrNotFound,
		},
		{
			name: "unknown team",
			input: func(*testEnv) InterventionCreateInput {
				return InterventionCreateInput{Title: gofakeit.Sentence(3), TeamID: ptr(gofakeit.UUID())}
			},
			wantErr: apperrors.ErrNotFound,
		},
		{
			name: "unknown technician",
			input: func(*testEnv) InterventionCreateInput {
				return InterventionCreateInput{Title: gofakeit.Sentence(3), TechnicianID: ptr(gofakeit.UUID())}
			},
			wantErr: apperrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			ticket, err := env.svc.Interventions.Create(context.Background(), tt.input(env))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, ticket)

			tickets, err := env.svc.Interventions.List(context.Background(), InterventionFilter{})
			require.NoError(t, err)
			assert.Empty(t, tickets)
		})
	}
}

func TestInterventionService_Create_Defaults(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	client := env.client(t)
	team, err := env.svc.Catalog.CreateTeam(context.Background(), TeamInput{
		Name:                 gofakeit.AppName(),
		IsInterventionTeam:   true,
		AutoAssignTechnician: ptr(false),
		DefaultDurationHours: ptr(3.0),
	})
	require.NoError(t, err)

	ticket, err := env.svc.Interventions.Create(context.Background(), InterventionCreateInput{
		Title:    "  Boiler leak  ",
		ClientID: &client.ID,
		TeamID:   &team.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "Boiler leak", ticket.Title)
	assert.Equal(t, domain.UrgencyMedium, ticket.Urgency)
	assert.Equal(t, domain.StateDraft, ticket.State)
	assert.True(t, ticket.IsIntervention)
	assert.Equal(t, client.Address(), ticket.Address)
	assert.Equal(t, 3.0, ticket.EstimatedDurationHours)
	decimalEqual(t, 50, ticket.HourlyRate)
	assert.True(t, strings.HasPrefix(ticket.Reference, "INT/2024/"), ticket.Reference)
	assert.False(t, ticket.HasTechnician())
}

func TestInterventionService_Create_AutoAssign(t *testing.T) {
	t.Parallel()

	t.Run("first available technician is claimed and notified", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ctx := context.Background()
		first := env.technician(t, "Alice Martin")
		env.technician(t, "Bruno Petit")
		client := env.client(t)

		ticket, err := env.svc.Interventions.Create(ctx, InterventionCreateInput{
			Title:    gofakeit.Sentence(4),
			ClientID: &client.ID,
			Urgency:  domain.UrgencyCritical,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StateAssigned, ticket.State)
		require.True(t, ticket.HasTechnician())
		assert.Equal(t, first.ID, *ticket.TechnicianID)

		view, err := env.svc.Technicians.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, view.Available)
		assert.Equal(t, 1, view.Stats.CurrentInterventions)

		activities, err := env.repos.Activities.ListByTicket(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, activities, 1)
		assert.Equal(t, first.ID, activities[0].UserID)
		assert.Equal(t, ActivitySummary(ticket), activities[0].Summary)
		assert.Contains(t, activities[0].Note, client.Name)

		history, err := env.svc.Interventions.History(ctx, ticket.ID)
		require.NoError(t, err)
		changes := lo.Map(history, func(h domain.TicketHistory, _ int) domain.TicketChangeType { return h.ChangeType })
		assert.Contains(t, changes, domain.ChangeTypeTechnician)
		assert.Contains(t, changes, domain.ChangeTypeState)
	})

	t.Run("no technician available leaves a draft", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		client := env.client(t)

		ticket, err := env.svc.Interventions.Create(context.Background(), InterventionCreateInput{
			Title:    gofakeit.Sentence(4),
			ClientID: &client.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StateDraft, ticket.State)
		assert.False(t, ticket.HasTechnician())
	})

	t.Run("team without auto assignment leaves a draft", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		tech := env.technician(t, gofakeit.Name())
		ticket := env.draft(t)

		assert.False(t, ticket.HasTechnician())
		view, err := env.svc.Technicians.Get(context.Background(), tech.ID)
		require.NoError(t, err)
		assert.True(t, view.Available)
	})

	t.Run("ticket without client is not assigned", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.technician(t, gofakeit.Name())

		ticket, err := env.svc.Interventions.Create(context.Background(), InterventionCreateInput{
			Title: gofakeit.Sentence(4),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StateDraft, ticket.State)

		_, err = env.svc.Interventions.AutoAssign(context.Background(), ticket.ID)
		assert.ErrorIs(t, err, apperrors.ErrMissingClient)
	})
}

func TestInterventionService_ExplicitTechnicianConfirmedLater(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	tech := env.technician(t, gofakeit.Name())
	client := env.client(t)

	ticket, err := env.svc.Interventions.Create(ctx, InterventionCreateInput{
		Title:        gofakeit.Sentence(4),
		ClientID:     &client.ID,
		TechnicianID: &tech.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, ticket.State)
	assert.Equal(t, tech.ID, *ticket.TechnicianID)

	view, err := env.svc.Technicians.Get(ctx, tech.ID)
	require.NoError(t, err)
	assert.True(t, view.Available)

	confirmed, err := env.svc.Interventions.Confirm(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAssigned, confirmed.State)

	view, err = env.svc.Technicians.Get(ctx, tech.ID)
	require.NoError(t, err)
	assert.False(t, view.Available)

	_, err = env.svc.Interventions.Confirm(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestInterventionService_AssignTechnician(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, first := env.assigned(t)
	second := env.technician(t, gofakeit.Name())

	reassigned, err := env.svc.Interventions.AssignTechnician(ctx, ticket.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAssigned, reassigned.State)
	assert.Equal(t, second.ID, *reassigned.TechnicianID)

	firstView, err := env.svc.Technicians.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, firstView.Available)
	secondView, err := env.svc.Technicians.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, secondView.Available)

	// A busy technician cannot be claimed by another ticket.
	other := env.draft(t)
	_, err = env.svc.Interventions.AssignTechnician(ctx, other.ID, second.ID)
	assert.ErrorIs(t, err, apperrors.ErrNoTechnicianAvailable)
	assert.Equal(t, domain.StateDraft, env.reload(t, other.ID).State)

	_, err = env.svc.Interventions.AssignTechnician(ctx, other.ID, " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestInterventionService_Start(t *testing.T) {
	t.Parallel()

	t.Run("without technician", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ticket := env.draft(t)

		_, err := env.svc.Interventions.Start(context.Background(), ticket.ID)
		assert.ErrorIs(t, err, apperrors.ErrNoTechnicianAssigned)
	})

	t.Run("draft with technician", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		tech := env.technician(t, gofakeit.Name())
		ticket, err := env.svc.Interventions.Create(context.Background(), InterventionCreateInput{
			Title:        gofakeit.Sentence(4),
			TechnicianID: &tech.ID,
		})
		require.NoError(t, err)

		_, err = env.svc.Interventions.Start(context.Background(), ticket.ID)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("assigned", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ticket, _ := env.assigned(t)

		started, err := env.svc.Interventions.Start(context.Background(), ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateInProgress, started.State)
		require.NotNil(t, started.StartedAt)
		assert.True(t, env.clock.now().Equal(*started.StartedAt))

		_, err = env.svc.Interventions.Start(context.Background(), ticket.ID)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})
}

func TestInterventionService_CompleteAndInvoice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, tech := env.assigned(t)

	filter := env.product(t, 10, 10)
	pump := env.product(t, 30, 2)
	_, err := env.svc.Stock.RecordPart(ctx, ticket.ID, filter.ID, 2)
	require.NoError(t, err)
	_, err = env.svc.Stock.RecordPart(ctx, ticket.ID, pump.ID, 1)
	require.NoError(t, err)

	_, err = env.svc.Interventions.Start(ctx, ticket.ID)
	require.NoError(t, err)
	env.clock.advance(150 * time.Minute)

	completed, err := env.svc.Interventions.Complete(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInvoiced, completed.State)
	assert.True(t, completed.Invoiced)
	require.NotNil(t, completed.InvoiceID)
	assert.Equal(t, 2.5, completed.DurationHours)
	decimalEqual(t, 125, completed.LaborCost)
	decimalEqual(t, 50, completed.MaterialCost)
	decimalEqual(t, 175, completed.TotalCost)

	invoice, err := env.svc.Billing.GetInvoice(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, *completed.InvoiceID, invoice.ID)
	assert.Equal(t, *ticket.ClientID, invoice.ClientID)
	assert.Equal(t, ticket.Reference, invoice.Origin)
	assert.NotEmpty(t, invoice.Number)
	require.Len(t, invoice.Lines, 3)
	decimalEqual(t, 175, invoice.Total)

	labor := invoice.Lines[0]
	assert.Equal(t, LaborLineName(ticket.Reference, 2.5), labor.Name)
	assert.Equal(t, 1.0, labor.Quantity)
	decimalEqual(t, 125, labor.Subtotal)
	assert.Equal(t, env.cfg.Billing.IncomeAccount, labor.Account)
	for _, line := range invoice.Lines[1:] {
		assert.NotNil(t, line.PartLineID)
	}

	view, err := env.svc.Technicians.Get(ctx, tech.ID)
	require.NoError(t, err)
	assert.True(t, view.Available)

	env.mailer.AssertCalled(t, "SendInvoice", mock.Anything, mock.MatchedBy(func(msg mq.InvoiceEmail) bool {
		return msg.InvoiceID == invoice.ID && msg.Total.Equal(invoice.Total)
	}))

	_, err = env.svc.Billing.GenerateInvoice(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInvoiced)
	_, err = env.svc.Interventions.Complete(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = env.svc.Interventions.Cancel(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = env.svc.Stock.RecordPart(ctx, ticket.ID, filter.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestInterventionService_CompleteWithoutLabor(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, _ := env.assigned(t)
	product := env.product(t, 20, 1)
	_, err := env.svc.Stock.RecordPart(ctx, ticket.ID, product.ID, 1)
	require.NoError(t, err)

	// Completing straight from assigned starts and ends the job at the same instant.
	completed, err := env.svc.Interventions.Complete(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, completed.DurationHours)
	require.NotNil(t, completed.StartedAt)
	require.NotNil(t, completed.EndedAt)
	assert.False(t, completed.EndedAt.Before(*completed.StartedAt))

	invoice, err := env.svc.Billing.GetInvoice(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, invoice.Lines, 1)
	decimalEqual(t, 20, invoice.Total)
}

func TestInterventionService_CompleteWithoutClientRollsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	tech := env.technician(t, gofakeit.Name())
	ticket, err := env.svc.Interventions.Create(ctx, InterventionCreateInput{Title: gofakeit.Sentence(4)})
	require.NoError(t, err)

	_, err = env.svc.Interventions.AssignTechnician(ctx, ticket.ID, tech.ID)
	require.NoError(t, err)
	_, err = env.svc.Interventions.Start(ctx, ticket.ID)
	require.NoError(t, err)

	_, err = env.svc.Interventions.Complete(ctx, ticket.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingClient)

	stored := env.reload(t, ticket.ID)
	assert.Equal(t, domain.StateInProgress, stored.State)
	assert.Nil(t, stored.EndedAt)
	assert.False(t, stored.Invoiced)

	view, err := env.svc.Technicians.Get(ctx, tech.ID)
	require.NoError(t, err)
	assert.False(t, view.Available)
	env.mailer.AssertNotCalled(t, "SendInvoice", mock.Anything, mock.Anything)
}

func TestBillingService_GenerateInvoice(t *testing.T) {
	t.Parallel()

	t.Run("open job is closed and invoiced", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ctx := context.Background()
		ticket, tech := env.assigned(t)
		_, err := env.svc.Interventions.Start(ctx, ticket.ID)
		require.NoError(t, err)
		env.clock.advance(time.Hour)

		invoice, err := env.svc.Billing.GenerateInvoice(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, invoice.Lines, 1)
		decimalEqual(t, 50, invoice.Total)

		stored := env.reload(t, ticket.ID)
		assert.Equal(t, domain.StateInvoiced, stored.State)
		assert.True(t, stored.Invoiced)
		require.NotNil(t, stored.EndedAt)
		assert.True(t, env.clock.now().Equal(*stored.EndedAt))
		assert.Equal(t, 1.0, stored.DurationHours)

		view, err := env.svc.Technicians.Get(ctx, tech.ID)
		require.NoError(t, err)
		assert.True(t, view.Available)
	})

	t.Run("draft with parts", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ctx := context.Background()
		ticket := env.draft(t)
		product := env.product(t, 15, 4)
		_, err := env.svc.Stock.RecordPart(ctx, ticket.ID, product.ID, 2)
		require.NoError(t, err)

		invoice, err := env.svc.Billing.GenerateInvoice(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, invoice.Lines, 1)
		decimalEqual(t, 30, invoice.Total)
		assert.Equal(t, domain.StateInvoiced, env.reload(t, ticket.ID).State)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ctx := context.Background()
		ticket := env.draft(t)
		_, err := env.svc.Interventions.Cancel(ctx, ticket.ID)
		require.NoError(t, err)

		_, err = env.svc.Billing.GenerateInvoice(ctx, ticket.ID)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		_, err = env.svc.Billing.GetInvoice(ctx, ticket.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestInterventionService_CompleteKeepsInvoiceWhenMailFails(t *testing.T) {
	t.Parallel()

	mailer := &mockMailer{}
	mailer.On("SendInvoice", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	env := newTestEnvWithMailer(t, mailer)
	ctx := context.Background()
	ticket, _ := env.assigned(t)

	completed, err := env.svc.Interventions.Complete(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInvoiced, completed.State)
	assert.True(t, completed.Invoiced)

	stored := env.reload(t, ticket.ID)
	assert.True(t, stored.Invoiced)
	_, err = env.svc.Billing.GetInvoice(ctx, ticket.ID)
	require.NoError(t, err)
	mailer.AssertExpectations(t)
}

func TestInterventionService_Cancel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, tech := env.assigned(t)

	cancelled, err := env.svc.Interventions.Cancel(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, cancelled.State)

	view, err := env.svc.Technicians.Get(ctx, tech.ID)
	require.NoError(t, err)
	assert.True(t, view.Available)

	_, err = env.svc.Interventions.Cancel(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = env.svc.Interventions.Sign(ctx, ticket.ID, []byte("sig"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = env.svc.Interventions.Start(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestInterventionService_Sign(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, _ := env.assigned(t)

	_, err := env.svc.Interventions.Sign(ctx, ticket.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	signed, err := env.svc.Interventions.Sign(ctx, ticket.ID, []byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)
	assert.Len(t, signed.Signature, 4)
	require.NotNil(t, signed.SignatureAt)
	assert.True(t, env.clock.now().Equal(*signed.SignatureAt))
}

func TestInterventionService_Schedule(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, _ := env.assigned(t)
	at := env.clock.now().Add(30 * time.Minute)

	scheduled, err := env.svc.Interventions.Schedule(ctx, ticket.ID, at)
	require.NoError(t, err)
	require.NotNil(t, scheduled.ScheduledAt)
	assert.True(t, at.Equal(*scheduled.ScheduledAt))

	due, err := env.svc.Interventions.DueForReminder(ctx, env.clock.now(), env.clock.now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, ticket.ID, due[0].ID)

	due, err = env.svc.Interventions.DueForReminder(ctx, at.Add(time.Minute), at.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestInterventionService_List(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	assigned, tech := env.assigned(t)
	draft := env.draft(t)

	tests := []struct {
		name    string
		filter  InterventionFilter
		wantIDs []string
		wantErr error
	}{
		{
			name:    "by state",
			filter:  InterventionFilter{States: []domain.InterventionState{domain.StateDraft}},
			wantIDs: []string{draft.ID},
		},
		{
			name:    "by technician",
			filter:  InterventionFilter{TechnicianID: &tech.ID},
			wantIDs: []string{assigned.ID},
		},
		{
			name:    "by urgency",
			filter:  InterventionFilter{Urgencies: []domain.Urgency{domain.UrgencyHigh}},
			wantIDs: []string{draft.ID},
		},
		{
			name:    "unknown state",
			filter:  InterventionFilter{States: []domain.InterventionState{"archived"}},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "unknown urgency",
			filter:  InterventionFilter{Urgencies: []domain.Urgency{"urgent"}},
			wantErr: apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tickets, err := env.svc.Interventions.List(ctx, tt.filter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			ids := lo.Map(tickets, func(t domain.InterventionTicket, _ int) string { return t.ID })
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestInterventionService_Notify(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.draft(t)
	_, err := env.svc.Interventions.Notify(ctx, draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrNoTechnicianAssigned)

	ticket, tech := env.assigned(t)
	activity, err := env.svc.Interventions.Notify(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, tech.ID, activity.UserID)
	assert.True(t, env.clock.now().Equal(activity.DueAt))

	activities, err := env.repos.Activities.ListByUser(ctx, tech.ID)
	require.NoError(t, err)
	assert.Len(t, activities, 2)
}
