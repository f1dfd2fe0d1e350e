package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/intervention-service/internal/api/dto"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/observability"
	"github.com/fieldops/intervention-service/internal/service"
)

// TechniciansHandler exposes the technician directory.
type TechniciansHandler struct {
	technicians *service.TechnicianService
}

// NewTechniciansHandler constructs handler.
func NewTechniciansHandler(technicians *service.TechnicianService) *TechniciansHandler {
	return &TechniciansHandler{technicians: technicians}
}

// Available GET /technicians/available.
func (h *TechniciansHandler) Available(c *fiber.Ctx) error {
	techs, err := h.technicians.FindAvailable(c.UserContext(), optionalQuery(c, "specialty_id"))
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(techs))
	for i := range techs {
		items = append(items, technicianResponse(&techs[i], domain.TechnicianStats{}))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Register POST /technicians.
func (h *TechniciansHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterTechnicianRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tech, err := h.technicians.Register(c.UserContext(), service.TechnicianInput{
		ID:              req.ID,
		Name:            req.Name,
		Email:           req.Email,
		SpecialtyIDs:    req.SpecialtyIDs,
		CurrentLocation: req.CurrentLocation,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": technicianResponse(tech, domain.TechnicianStats{})})
}

// Get GET /technicians/:id.
func (h *TechniciansHandler) Get(c *fiber.Ctx) error {
	view, err := h.technicians.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": technicianViewResponse(view)})
}

// Update PATCH /technicians/:id.
func (h *TechniciansHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTechnicianRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.technicians.UpdateProfile(c.UserContext(), c.Params("id"), service.TechnicianProfileUpdate{
		Name:            req.Name,
		Email:           req.Email,
		IsTechnician:    req.IsTechnician,
		SpecialtyIDs:    req.SpecialtyIDs,
		CurrentLocation: req.CurrentLocation,
	}); err != nil {
		return err
	}
	return h.Get(c)
}

// ClientsHandler exposes client records and client-initiated interventions.
type ClientsHandler struct {
	clients  *service.ClientService
	workflow *service.InterventionService
	metrics  *observability.Metrics
}

// NewClientsHandler constructs handler.
func NewClientsHandler(clients *service.ClientService, workflow *service.InterventionService, metrics *observability.Metrics) *ClientsHandler {
	return &ClientsHandler{clients: clients, workflow: workflow, metrics: metrics}
}

// Register POST /clients.
func (h *ClientsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterClientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	client, err := h.clients.Register(c.UserContext(), service.ClientInput{
		Name:               req.Name,
		Email:              req.Email,
		Street:             req.Street,
		City:               req.City,
		EquipmentType:      req.EquipmentType,
		AccessInstructions: req.AccessInstructions,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": clientResponse(client)})
}

// Get GET /clients/:id.
func (h *ClientsHandler) Get(c *fiber.Ctx) error {
	client, err := h.clients.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": clientResponse(client)})
}

// Stats GET /clients/:id/stats.
func (h *ClientsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.clients.Stats(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ClientStatsResponse{
		InterventionCount:     stats.InterventionCount,
		LastInterventionAt:    stats.LastInterventionAt,
		TotalInterventionCost: stats.TotalInterventionCost,
	}})
}

// CreateIntervention POST /clients/:id/interventions.
func (h *ClientsHandler) CreateIntervention(c *fiber.Ctx) error {
	var req dto.ClientInterventionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.workflow.CreateForClient(c.UserContext(), c.Params("id"), req.Description, req.Urgency)
	if err := tracked(h.metrics, "create", err); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": interventionResponse(ticket)})
}
