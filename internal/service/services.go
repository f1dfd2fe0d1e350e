package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/mq"
	"github.com/fieldops/intervention-service/internal/repository"
)

// Services is the wired service graph.
type Services struct {
	Stock         *StockService
	Technicians   *TechnicianService
	Notifications *NotificationService
	Billing       *BillingService
	Interventions *InterventionService
	StageActions  *StageActionService
	Clients       *ClientService
	Catalog       *CatalogService
}

// NewServices builds every service on the repository set.
func NewServices(repos repository.Set, dispatcher events.Dispatcher, mailer mq.Mailer, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	rate, err := cfg.Billing.Rate()
	if err != nil {
		return nil, fmt.Errorf("hourly rate: %w", err)
	}
	logger = nopIfNil(logger)

	stock := NewStockService(StockDependencies{
		Tx:           repos.Tx,
		TicketRepo:   repos.Tickets,
		PartLineRepo: repos.PartLines,
		ProductRepo:  repos.Products,
		StockRepo:    repos.Stock,
		Dispatcher:   dispatcher,
		Config:       cfg.Stock,
		Logger:       logger.Named("stock"),
	})
	technicians := NewTechnicianService(TechnicianDependencies{
		Tx:             repos.Tx,
		TechnicianRepo: repos.Technicians,
		TicketRepo:     repos.Tickets,
		ReferenceRepo:  repos.References,
		Logger:         logger.Named("technicians"),
	})
	notifications := NewNotificationService(NotificationDependencies{
		Dispatcher:   dispatcher,
		ActivityRepo: repos.Activities,
		ClientRepo:   repos.Clients,
		Logger:       logger.Named("notifications"),
		Config:       cfg.Notification,
	})
	billing := NewBillingService(BillingDependencies{
		Tx:           repos.Tx,
		TicketRepo:   repos.Tickets,
		PartLineRepo: repos.PartLines,
		ProductRepo:  repos.Products,
		InvoiceRepo:  repos.Invoices,
		ClientRepo:   repos.Clients,
		TechRepo:     repos.Technicians,
		StageRepo:    repos.Stages,
		HistoryRepo:  repos.History,
		Mailer:       mailer,
		Dispatcher:   dispatcher,
		Config:       cfg.Billing,
		Logger:       logger.Named("billing"),
	})
	interventions := NewInterventionService(InterventionDependencies{
		Tx:                repos.Tx,
		TicketRepo:        repos.Tickets,
		PartLineRepo:      repos.PartLines,
		ClientRepo:        repos.Clients,
		TeamRepo:          repos.Teams,
		StageRepo:         repos.Stages,
		ReferenceRepo:     repos.References,
		HistoryRepo:       repos.History,
		Technicians:       technicians,
		Billing:           billing,
		Notifications:     notifications,
		Dispatcher:        dispatcher,
		DefaultHourlyRate: rate,
		Logger:            logger.Named("interventions"),
	})
	stageActions := NewStageActionService(interventions, billing, logger.Named("stage_actions"))
	interventions.UseStageActions(stageActions)

	return &Services{
		Stock:         stock,
		Technicians:   technicians,
		Notifications: notifications,
		Billing:       billing,
		Interventions: interventions,
		StageActions:  stageActions,
		Clients:       NewClientService(repos.Clients, repos.Tickets, logger.Named("clients")),
		Catalog: NewCatalogService(CatalogDependencies{
			ReferenceRepo:  repos.References,
			TeamRepo:       repos.Teams,
			StageRepo:      repos.Stages,
			ProductRepo:    repos.Products,
			TicketRepo:     repos.Tickets,
			TechnicianRepo: repos.Technicians,
			Logger:         logger.Named("catalog"),
		}),
	}, nil
}
