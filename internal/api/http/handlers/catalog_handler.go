package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/intervention-service/internal/api/dto"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/service"
)

// CatalogHandler manages teams, stages, specialties, categories and products.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// CreateTeam POST /teams.
func (h *CatalogHandler) CreateTeam(c *fiber.Ctx) error {
	var req dto.CreateTeamRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	team, err := h.catalog.CreateTeam(c.UserContext(), service.TeamInput{
		Name:                 req.Name,
		IsInterventionTeam:   req.IsInterventionTeam,
		AutoAssignTechnician: req.AutoAssignTechnician,
		DefaultDurationHours: req.DefaultDurationHours,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": teamResponse(team)})
}

// GetTeam GET /teams/:id.
func (h *CatalogHandler) GetTeam(c *fiber.Ctx) error {
	team, err := h.catalog.GetTeam(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teamResponse(team)})
}

// TeamStats GET /teams/:id/stats.
func (h *CatalogHandler) TeamStats(c *fiber.Ctx) error {
	stats, err := h.catalog.TeamStats(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TeamStatsResponse{
		InterventionCount:    stats.InterventionCount,
		PendingInterventions: stats.PendingInterventions,
		AvailableTechnicians: stats.AvailableTechnicians,
	}})
}

// CreateStage POST /teams/:id/stages.
func (h *CatalogHandler) CreateStage(c *fiber.Ctx) error {
	var req dto.CreateStageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	stage, err := h.catalog.CreateStage(c.UserContext(), c.Params("id"), service.StageInput{
		Name:                req.Name,
		Sequence:            req.Sequence,
		Kind:                req.Kind,
		IsInterventionStage: req.IsInterventionStage,
		AutoAction:          req.AutoAction,
		RequireSignature:    req.RequireSignature,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": stageResponse(stage)})
}

// ListStages GET /teams/:id/stages.
func (h *CatalogHandler) ListStages(c *fiber.Ctx) error {
	stages, err := h.catalog.ListStages(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.StageResponse, 0, len(stages))
	for i := range stages {
		items = append(items, stageResponse(&stages[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateSpecialty POST /specialties.
func (h *CatalogHandler) CreateSpecialty(c *fiber.Ctx) error {
	var req dto.ReferenceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.catalog.CreateSpecialty(c.UserContext(), req.Name, req.Description, req.Color)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ReferenceResponse{
		ID: s.ID, Name: s.Name, Description: s.Description, Color: s.Color,
	}})
}

// ListSpecialties GET /specialties.
func (h *CatalogHandler) ListSpecialties(c *fiber.Ctx) error {
	items, err := h.catalog.ListSpecialties(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.ReferenceResponse, 0, len(items))
	for _, s := range items {
		resp = append(resp, dto.ReferenceResponse{ID: s.ID, Name: s.Name, Description: s.Description, Color: s.Color})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateCategory POST /categories.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req dto.ReferenceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cat, err := h.catalog.CreateCategory(c.UserContext(), req.Name, req.Description, req.Color)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ReferenceResponse{
		ID: cat.ID, Name: cat.Name, Description: cat.Description, Color: cat.Color,
	}})
}

// ListCategories GET /categories.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	items, err := h.catalog.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.ReferenceResponse, 0, len(items))
	for _, cat := range items {
		resp = append(resp, dto.ReferenceResponse{ID: cat.ID, Name: cat.Name, Description: cat.Description, Color: cat.Color})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateProduct POST /products.
func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	var req dto.CreateProductRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	product, err := h.catalog.CreateProduct(c.UserContext(), service.ProductInput{
		Name:          req.Name,
		Type:          req.Type,
		ListPrice:     req.ListPrice,
		UOM:           req.UOM,
		IncomeAccount: req.IncomeAccount,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": productResponse(product)})
}

// ListProducts GET /products.
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.catalog.ListProducts(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, productResponse(&products[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func teamResponse(t *domain.Team) dto.TeamResponse {
	return dto.TeamResponse{
		ID:                   t.ID,
		Name:                 t.Name,
		IsInterventionTeam:   t.IsInterventionTeam,
		AutoAssignTechnician: t.AutoAssignTechnician,
		DefaultDurationHours: t.DefaultDurationHours,
		IsActive:             t.IsActive,
	}
}

func stageResponse(s *domain.Stage) dto.StageResponse {
	return dto.StageResponse{
		ID:                  s.ID,
		TeamID:              s.TeamID,
		Name:                s.Name,
		Sequence:            s.Sequence,
		Kind:                s.Kind,
		IsInterventionStage: s.IsInterventionStage,
		AutoAction:          s.AutoAction,
		RequireSignature:    s.RequireSignature,
	}
}

func productResponse(p *domain.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Type:          p.Type,
		ListPrice:     p.ListPrice,
		UOM:           p.UOM,
		IncomeAccount: p.IncomeAccount,
	}
}
