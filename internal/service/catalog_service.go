package service

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/repository"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

const defaultTeamDurationHours = 2.0

// CatalogService manages reference data: specialties, categories, teams, stages and products.
type CatalogService struct {
	references  repository.ReferenceRepository
	teams       repository.TeamRepository
	stages      repository.StageRepository
	products    repository.ProductRepository
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	logger      *zap.Logger
}

// CatalogDependencies bundles collaborators.
type CatalogDependencies struct {
	ReferenceRepo  repository.ReferenceRepository
	TeamRepo       repository.TeamRepository
	StageRepo      repository.StageRepository
	ProductRepo    repository.ProductRepository
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	Logger         *zap.Logger
}

// TeamInput describes a new team. Nil options take their defaults.
type TeamInput struct {
	Name                 string
	IsInterventionTeam   bool
	AutoAssignTechnician *bool
	DefaultDurationHours *float64
}

// StageInput describes a new workflow stage.
type StageInput struct {
	Name                string
	Sequence            int
	Kind                domain.StageKind
	IsInterventionStage bool
	AutoAction          string
	RequireSignature    bool
}

// ProductInput describes a catalog product.
type ProductInput struct {
	Name          string
	Type          domain.ProductType
	ListPrice     decimal.Decimal
	UOM           string
	IncomeAccount string
}

// NewCatalogService constructs the service.
func NewCatalogService(deps CatalogDependencies) *CatalogService {
	return &CatalogService{
		references:  deps.ReferenceRepo,
		teams:       deps.TeamRepo,
		stages:      deps.StageRepo,
		products:    deps.ProductRepo,
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		logger:      nopIfNil(deps.Logger),
	}
}

// CreateSpecialty adds a technician specialty.
func (s *CatalogService) CreateSpecialty(ctx context.Context, name, description string, color int) (*domain.Specialty, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	specialty := &domain.Specialty{Name: name, Description: description, Color: color}
	if err := s.references.CreateSpecialty(ctx, specialty); err != nil {
		return nil, apperrors.MapError(err)
	}
	return specialty, nil
}

func (s *CatalogService) ListSpecialties(ctx context.Context) ([]domain.Specialty, error) {
	items, err := s.references.ListSpecialties(ctx)
	return items, apperrors.MapError(err)
}

// CreateCategory adds an intervention category.
func (s *CatalogService) CreateCategory(ctx context.Context, name, description string, color int) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	category := &domain.Category{Name: name, Description: description, Color: color}
	if err := s.references.CreateCategory(ctx, category); err != nil {
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	items, err := s.references.ListCategories(ctx)
	return items, apperrors.MapError(err)
}

// CreateTeam adds an active team.
func (s *CatalogService) CreateTeam(ctx context.Context, input TeamInput) (*domain.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	team := &domain.Team{
		Name:                 name,
		IsInterventionTeam:   input.IsInterventionTeam,
		AutoAssignTechnician: input.AutoAssignTechnician == nil || *input.AutoAssignTechnician,
		DefaultDurationHours: defaultTeamDurationHours,
		IsActive:             true,
	}
	if input.DefaultDurationHours != nil {
		if *input.DefaultDurationHours < 0 {
			return nil, apperrors.NewValidationError("default duration must not be negative", nil)
		}
		team.DefaultDurationHours = *input.DefaultDurationHours
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, apperrors.MapError(err)
	}
	return team, nil
}

func (s *CatalogService) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, lookupErr(err, "team", teamID)
	}
	return team, nil
}

// TeamStats counts the team's interventions. Available technicians are only reported for
// intervention teams.
func (s *CatalogService) TeamStats(ctx context.Context, teamID string) (*domain.TeamStats, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{TeamID: &team.ID, InterventionOnly: true})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats := &domain.TeamStats{
		InterventionCount: len(tickets),
		PendingInterventions: lo.CountBy(tickets, func(t domain.InterventionTicket) bool {
			return t.State == domain.StateDraft || t.State == domain.StateAssigned
		}),
	}
	if team.IsInterventionTeam {
		available, err := s.technicians.List(ctx, repository.TechnicianFilter{Available: ptr(true), TechniciansOnly: true})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		stats.AvailableTechnicians = len(available)
	}
	return stats, nil
}

// CreateStage adds a stage to the team's workflow.
func (s *CatalogService) CreateStage(ctx context.Context, teamID string, input StageInput) (*domain.Stage, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	action, err := domain.ParseActionKind(input.AutoAction)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"auto_action": input.AutoAction})
	}
	kind := input.Kind
	if kind == "" {
		kind = domain.StageKindOther
	}
	if !kind.Valid() {
		return nil, apperrors.NewValidationError("unknown stage kind", map[string]any{"kind": kind})
	}
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	stage := &domain.Stage{
		TeamID:              &team.ID,
		Name:                name,
		Sequence:            input.Sequence,
		Kind:                kind,
		IsInterventionStage: input.IsInterventionStage,
		AutoAction:          action,
		RequireSignature:    input.RequireSignature,
	}
	if err := s.stages.Create(ctx, stage); err != nil {
		return nil, apperrors.MapError(err)
	}
	return stage, nil
}

// ListStages returns the team's stages by sequence.
func (s *CatalogService) ListStages(ctx context.Context, teamID string) ([]domain.Stage, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	stages, err := s.stages.ListByTeam(ctx, teamID)
	return stages, apperrors.MapError(err)
}

// CreateProduct adds a catalog product.
func (s *CatalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	switch input.Type {
	case domain.ProductTypeConsumable, domain.ProductTypeStorable, domain.ProductTypeService:
	default:
		return nil, apperrors.NewValidationError("unknown product type", map[string]any{"type": input.Type})
	}
	if input.ListPrice.IsNegative() {
		return nil, apperrors.NewValidationError("list price must not be negative", nil)
	}
	uom := input.UOM
	if uom == "" {
		uom = "Units"
	}
	product := &domain.Product{
		Name:          name,
		Type:          input.Type,
		ListPrice:     input.ListPrice,
		UOM:           uom,
		IncomeAccount: input.IncomeAccount,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperrors.MapError(err)
	}
	return product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx)
	return products, apperrors.MapError(err)
}

// EnsureServiceProduct makes sure the labor product used on invoices exists, creating the
// configured default when the catalog has none.
func (s *CatalogService) EnsureServiceProduct(ctx context.Context, cfg config.BillingConfig) (*domain.Product, error) {
	product, err := s.products.FindService(ctx, ServiceProductKeyword)
	if err == nil {
		return product, nil
	}
	if !apperrors.IsNoRows(err) {
		return nil, apperrors.MapError(err)
	}
	price, err := cfg.ServicePrice()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid service product price", map[string]any{"price": cfg.ServiceProductPrice})
	}
	product = &domain.Product{
		Name:          cfg.ServiceProductName,
		Type:          domain.ProductTypeService,
		ListPrice:     price,
		UOM:           "Hours",
		IncomeAccount: cfg.IncomeAccount,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("service product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}
