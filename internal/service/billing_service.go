package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/mq"
	"github.com/fieldops/intervention-service/internal/persistence"
	"github.com/fieldops/intervention-service/internal/repository"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

// ServiceProductKeyword identifies the labor product in the catalog.
const ServiceProductKeyword = "intervention"

// BillingService turns interventions into customer invoices.
type BillingService struct {
	tx         persistence.Transactor
	tickets    repository.TicketRepository
	lines      repository.PartLineRepository
	products   repository.ProductRepository
	invoices   repository.InvoiceRepository
	clients    repository.ClientRepository
	techs      repository.TechnicianRepository
	stages     repository.StageRepository
	history    repository.TicketHistoryRepository
	mailer     mq.Mailer
	dispatcher events.Dispatcher
	cfg        config.BillingConfig
	logger     *zap.Logger
	now        func() time.Time
}

// BillingDependencies bundles collaborators.
type BillingDependencies struct {
	Tx           persistence.Transactor
	TicketRepo   repository.TicketRepository
	PartLineRepo repository.PartLineRepository
	ProductRepo  repository.ProductRepository
	InvoiceRepo  repository.InvoiceRepository
	ClientRepo   repository.ClientRepository
	TechRepo     repository.TechnicianRepository
	StageRepo    repository.StageRepository
	HistoryRepo  repository.TicketHistoryRepository
	Mailer       mq.Mailer
	Dispatcher   events.Dispatcher
	Config       config.BillingConfig
	Logger       *zap.Logger
}

// NewBillingService constructs the service.
func NewBillingService(deps BillingDependencies) *BillingService {
	return &BillingService{
		tx:         deps.Tx,
		tickets:    deps.TicketRepo,
		lines:      deps.PartLineRepo,
		products:   deps.ProductRepo,
		invoices:   deps.InvoiceRepo,
		clients:    deps.ClientRepo,
		techs:      deps.TechRepo,
		stages:     deps.StageRepo,
		history:    deps.HistoryRepo,
		mailer:     deps.Mailer,
		dispatcher: deps.Dispatcher,
		cfg:        deps.Config,
		logger:     nopIfNil(deps.Logger),
		now:        time.Now,
	}
}

// GenerateInvoice issues the invoice of an intervention: one labor line when labor was billed and
// one line per consumed part. An open job is closed first and its technician released. The email
// to the client is sent after commit and its failure does not undo the invoice.
func (s *BillingService) GenerateInvoice(ctx context.Context, ticketID string) (*domain.Invoice, error) {
	var invoice *domain.Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if ticket.Invoiced {
			return apperrors.NewAlreadyInvoiced(ticket.ID)
		}
		if !ticket.HasClient() {
			return apperrors.NewMissingClient(ticket.ID)
		}
		if ticket.State == domain.StateCancelled {
			return apperrors.NewInvalidTransition("invoice", string(ticket.State))
		}
		client, err := s.clients.GetByID(ctx, *ticket.ClientID)
		if err != nil {
			if apperrors.IsNoRows(err) {
				return apperrors.NewMissingClient(ticket.ID)
			}
			return apperrors.MapError(err)
		}

		if ticket.State.IsOpenJob() {
			if err := s.closeJob(ctx, ticket); err != nil {
				return err
			}
		}

		parts, err := s.lines.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		ticket.Recompute(parts)

		invoice, err = s.buildInvoice(ctx, ticket, parts)
		if err != nil {
			return err
		}
		if err := s.invoices.Create(ctx, invoice); err != nil {
			return apperrors.MapError(err)
		}

		oldState := ticket.State
		ticket.InvoiceID = &invoice.ID
		ticket.Invoiced = true
		ticket.State = domain.StateInvoiced
		if stage, err := s.stages.FindByKind(ctx, ticket.TeamID, domain.StageKindInvoiced); err == nil {
			ticket.StageID = &stage.ID
		} else if !apperrors.IsNoRows(err) {
			return apperrors.MapError(err)
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		if err := recordHistory(ctx, s.history, ticket.ID, domain.ChangeTypeInvoice,
			map[string]any{"state": oldState},
			map[string]any{"state": ticket.State, "invoice_id": invoice.ID, "invoice_number": invoice.Number},
		); err != nil {
			return apperrors.MapError(err)
		}

		publishAfterCommit(ctx, s.dispatcher, events.EventInvoiceGenerated, ticket.ID, events.InvoiceGeneratedPayload{
			InvoiceID: invoice.ID,
			Number:    invoice.Number,
			Total:     invoice.Total,
		})
		publishAfterCommit(ctx, s.dispatcher, events.EventInterventionStateChanged, ticket.ID, events.StateChangedPayload{
			OldState: oldState,
			NewState: ticket.State,
		})
		s.sendAfterCommit(ctx, client, invoice)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// closeJob stops the timer of a job invoiced before completion and frees its technician.
func (s *BillingService) closeJob(ctx context.Context, ticket *domain.InterventionTicket) error {
	now := s.now().UTC()
	if ticket.StartedAt == nil {
		ticket.StartedAt = &now
	}
	end := now
	if end.Before(*ticket.StartedAt) {
		end = *ticket.StartedAt
	}
	ticket.EndedAt = &end
	if !ticket.HasTechnician() {
		return nil
	}
	if err := s.techs.SetAvailable(ctx, *ticket.TechnicianID, true); err != nil {
		return lookupErr(err, "technician", *ticket.TechnicianID)
	}
	return nil
}

// GetInvoice returns the invoice issued for a ticket.
func (s *BillingService) GetInvoice(ctx context.Context, ticketID string) (*domain.Invoice, error) {
	invoice, err := s.invoices.GetByTicket(ctx, ticketID)
	if err != nil {
		return nil, lookupErr(err, "invoice", ticketID)
	}
	return invoice, nil
}

func (s *BillingService) buildInvoice(ctx context.Context, ticket *domain.InterventionTicket, parts []domain.PartLine) (*domain.Invoice, error) {
	now := s.now().UTC()
	invoice := &domain.Invoice{
		ClientID: *ticket.ClientID,
		TicketID: ticket.ID,
		Origin:   ticket.Reference,
		Date:     time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		State:    domain.InvoiceStateDraft,
	}

	if ticket.LaborCost.IsPositive() {
		product, err := s.products.FindService(ctx, ServiceProductKeyword)
		if err != nil {
			if apperrors.IsNoRows(err) {
				return nil, apperrors.NewValidationError("service product not configured", nil)
			}
			return nil, apperrors.MapError(err)
		}
		invoice.Lines = append(invoice.Lines, domain.NewInvoiceLine(
			LaborLineName(ticket.Reference, ticket.DurationHours),
			&product.ID,
			1,
			ticket.LaborCost,
			s.account(product),
		))
	}

	for _, part := range parts {
		product, err := s.products.GetByID(ctx, part.ProductID)
		if err != nil {
			return nil, lookupErr(err, "product", part.ProductID)
		}
		line := domain.NewInvoiceLine(part.ProductName, &part.ProductID, part.Quantity, part.UnitPrice, s.account(product))
		line.PartLineID = &part.ID
		invoice.Lines = append(invoice.Lines, line)
	}

	invoice.Total = invoice.SumLines()
	return invoice, nil
}

func (s *BillingService) account(product *domain.Product) string {
	if product.IncomeAccount != "" {
		return product.IncomeAccount
	}
	return s.cfg.IncomeAccount
}

func (s *BillingService) sendAfterCommit(ctx context.Context, client *domain.Client, invoice *domain.Invoice) {
	if s.mailer == nil || client.Email == "" {
		return
	}
	msg := mq.InvoiceEmail{
		Template:      s.cfg.InvoiceEmailTemplate,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		TicketID:      invoice.TicketID,
		Recipient:     client.Email,
		RecipientName: client.Name,
		Total:         invoice.Total,
	}
	persistence.AfterCommit(ctx, func(ctx context.Context) {
		if err := s.mailer.SendInvoice(ctx, msg); err != nil {
			s.logger.Warn("invoice email not sent",
				zap.String("invoice_id", msg.InvoiceID),
				zap.String("recipient", msg.Recipient),
				zap.Error(err))
		}
	})
}

// LaborLineName renders the label of the labor invoice line.
func LaborLineName(reference string, hours float64) string {
	return fmt.Sprintf("Labor - %s (%sh)", reference, decimal.NewFromFloat(hours).Round(2).String())
}
