package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/intervention-service/internal/api/dto"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/observability"
	"github.com/fieldops/intervention-service/internal/service"
)

// InterventionsHandler exposes the intervention workflow.
type InterventionsHandler struct {
	workflow *service.InterventionService
	billing  *service.BillingService
	stock    *service.StockService
	metrics  *observability.Metrics
}

// NewInterventionsHandler constructs handler.
func NewInterventionsHandler(workflow *service.InterventionService, billing *service.BillingService, stock *service.StockService, metrics *observability.Metrics) *InterventionsHandler {
	return &InterventionsHandler{workflow: workflow, billing: billing, stock: stock, metrics: metrics}
}

// Create POST /interventions.
func (h *InterventionsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateInterventionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.workflow.Create(c.UserContext(), service.InterventionCreateInput{
		Title:                  req.Title,
		Description:            req.Description,
		ClientID:               req.ClientID,
		TeamID:                 req.TeamID,
		CategoryID:             req.CategoryID,
		TechnicianID:           req.TechnicianID,
		Urgency:                req.Urgency,
		IsIntervention:         req.IsIntervention,
		ScheduledAt:            req.ScheduledAt,
		Address:                req.Address,
		EstimatedDurationHours: req.EstimatedDurationHours,
		HourlyRate:             req.HourlyRate,
	})
	if err := tracked(h.metrics, "create", err); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": interventionResponse(ticket)})
}

// List GET /interventions.
func (h *InterventionsHandler) List(c *fiber.Ctx) error {
	filter := service.InterventionFilter{
		ClientID:      optionalQuery(c, "client_id"),
		TeamID:        optionalQuery(c, "team_id"),
		TechnicianID:  optionalQuery(c, "technician_id"),
		ScheduledFrom: parseTime(c.Query("scheduled_from")),
		ScheduledTo:   parseTime(c.Query("scheduled_to")),
	}
	for _, st := range splitList(c.Query("state")) {
		filter.States = append(filter.States, domain.InterventionState(st))
	}
	for _, u := range splitList(c.Query("urgency")) {
		filter.Urgencies = append(filter.Urgencies, domain.Urgency(u))
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	tickets, err := h.workflow.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.InterventionResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, interventionResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /interventions/:id.
func (h *InterventionsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.workflow.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": interventionResponse(ticket)})
}

// History GET /interventions/:id/history.
func (h *InterventionsHandler) History(c *fiber.Ctx) error {
	entries, err := h.workflow.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// Assign POST /interventions/:id/assign.
func (h *InterventionsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignTechnicianRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.workflow.AssignTechnician(c.UserContext(), c.Params("id"), req.TechnicianID)
	return h.respond(c, "assign", ticket, err)
}

// AutoAssign POST /interventions/:id/auto-assign.
func (h *InterventionsHandler) AutoAssign(c *fiber.Ctx) error {
	ticket, err := h.workflow.AutoAssign(c.UserContext(), c.Params("id"))
	return h.respond(c, "auto_assign", ticket, err)
}

// Confirm POST /interventions/:id/confirm.
func (h *InterventionsHandler) Confirm(c *fiber.Ctx) error {
	ticket, err := h.workflow.Confirm(c.UserContext(), c.Params("id"))
	return h.respond(c, "confirm", ticket, err)
}

// Schedule POST /interventions/:id/schedule.
func (h *InterventionsHandler) Schedule(c *fiber.Ctx) error {
	var req dto.ScheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.workflow.Schedule(c.UserContext(), c.Params("id"), req.ScheduledAt)
	return h.respond(c, "schedule", ticket, err)
}

// Start POST /interventions/:id/start.
func (h *InterventionsHandler) Start(c *fiber.Ctx) error {
	ticket, err := h.workflow.Start(c.UserContext(), c.Params("id"))
	return h.respond(c, "start", ticket, err)
}

// Complete POST /interventions/:id/complete.
func (h *InterventionsHandler) Complete(c *fiber.Ctx) error {
	ticket, err := h.workflow.Complete(c.UserContext(), c.Params("id"))
	return h.respond(c, "complete", ticket, err)
}

// Cancel POST /interventions/:id/cancel.
func (h *InterventionsHandler) Cancel(c *fiber.Ctx) error {
	ticket, err := h.workflow.Cancel(c.UserContext(), c.Params("id"))
	return h.respond(c, "cancel", ticket, err)
}

// Sign POST /interventions/:id/sign.
func (h *InterventionsHandler) Sign(c *fiber.Ctx) error {
	var req dto.SignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.workflow.Sign(c.UserContext(), c.Params("id"), req.Signature)
	return h.respond(c, "sign", ticket, err)
}

// Notes POST /interventions/:id/notes.
func (h *InterventionsHandler) Notes(c *fiber.Ctx) error {
	var req dto.NotesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.workflow.SetNotes(c.UserContext(), c.Params("id"), req.Notes)
	return h.respond(c, "notes", ticket, err)
}

// ChangeStage POST /interventions/:id/stage.
func (h *InterventionsHandler) ChangeStage(c *fiber.Ctx) error {
	var req dto.ChangeStageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.workflow.ChangeStage(c.UserContext(), c.Params("id"), req.StageID)
	return h.respond(c, "stage", ticket, err)
}

// Invoice POST /interventions/:id/invoice.
func (h *InterventionsHandler) Invoice(c *fiber.Ctx) error {
	invoice, err := h.billing.GenerateInvoice(c.UserContext(), c.Params("id"))
	if err := tracked(h.metrics, "invoice", err); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": invoiceResponse(invoice)})
}

// GetInvoice GET /interventions/:id/invoice.
func (h *InterventionsHandler) GetInvoice(c *fiber.Ctx) error {
	invoice, err := h.billing.GetInvoice(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": invoiceResponse(invoice)})
}

// Notify POST /interventions/:id/notify.
func (h *InterventionsHandler) Notify(c *fiber.Ctx) error {
	activity, err := h.workflow.Notify(c.UserContext(), c.Params("id"))
	if err := tracked(h.metrics, "notify", err); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": activityResponse(activity)})
}

// ListParts GET /interventions/:id/parts.
func (h *InterventionsHandler) ListParts(c *fiber.Ctx) error {
	lines, err := h.stock.ListPartLines(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.PartLineResponse, 0, len(lines))
	for i := range lines {
		items = append(items, partLineResponse(&lines[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RecordPart POST /interventions/:id/parts.
func (h *InterventionsHandler) RecordPart(c *fiber.Ctx) error {
	var req dto.RecordPartRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	line, err := h.stock.RecordPart(c.UserContext(), c.Params("id"), req.ProductID, req.Quantity)
	if err := tracked(h.metrics, "record_part", err); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": partLineResponse(line)})
}

func (h *InterventionsHandler) respond(c *fiber.Ctx, action string, ticket *domain.InterventionTicket, err error) error {
	if err := tracked(h.metrics, action, err); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": interventionResponse(ticket)})
}
