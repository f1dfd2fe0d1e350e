package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/intervention-service/internal/api/dto"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/observability"
	"github.com/fieldops/intervention-service/internal/service"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

var validate = validator.New()

// bind parses the JSON body into req and runs its validation tags.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validate.Struct(req); err != nil {
		details := map[string]any{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				details[toJSONFieldName(fe.Field())] = formatValidationError(fe)
			}
		}
		return apperrors.NewValidationError("one or more fields failed validation", details)
	}
	return nil
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is invalid"
	}
}

// toJSONFieldName turns a Go field name such as TechnicianID into technician_id.
func toJSONFieldName(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteString(strings.ToLower(string(r)))
	}
	return b.String()
}

// tracked records the outcome of a workflow action before returning err unchanged.
func tracked(metrics *observability.Metrics, action string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = apperrors.ToDomainError(err).Code
	}
	metrics.RecordWorkflow(action, outcome)
	return err
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func interventionResponse(t *domain.InterventionTicket) dto.InterventionResponse {
	return dto.InterventionResponse{
		ID:                     t.ID,
		Reference:              t.Reference,
		Title:                  t.Title,
		Description:            t.Description,
		ClientID:               t.ClientID,
		TeamID:                 t.TeamID,
		StageID:                t.StageID,
		CategoryID:             t.CategoryID,
		IsIntervention:         t.IsIntervention,
		Urgency:                t.Urgency,
		State:                  t.State,
		TechnicianID:           t.TechnicianID,
		ScheduledAt:            t.ScheduledAt,
		StartedAt:              t.StartedAt,
		EndedAt:                t.EndedAt,
		EstimatedDurationHours: t.EstimatedDurationHours,
		Address:                t.Address,
		Signed:                 len(t.Signature) > 0,
		SignatureAt:            t.SignatureAt,
		Notes:                  t.Notes,
		HourlyRate:             t.HourlyRate,
		DurationHours:          t.DurationHours,
		MaterialCost:           t.MaterialCost,
		LaborCost:              t.LaborCost,
		TotalCost:              t.TotalCost,
		InvoiceID:              t.InvoiceID,
		Invoiced:               t.Invoiced,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}

func activityResponse(a *domain.Activity) dto.ActivityResponse {
	return dto.ActivityResponse{
		ID:       a.ID,
		UserID:   a.UserID,
		TicketID: a.TicketID,
		Summary:  a.Summary,
		Note:     a.Note,
		DueAt:    a.DueAt,
	}
}

func invoiceResponse(inv *domain.Invoice) dto.InvoiceResponse {
	lines := make([]dto.InvoiceLineResponse, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, dto.InvoiceLineResponse{
			ProductID:  l.ProductID,
			PartLineID: l.PartLineID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			Account:    l.Account,
			Subtotal:   l.Subtotal,
		})
	}
	return dto.InvoiceResponse{
		ID:       inv.ID,
		Number:   inv.Number,
		ClientID: inv.ClientID,
		TicketID: inv.TicketID,
		Origin:   inv.Origin,
		Date:     inv.Date,
		State:    inv.State,
		Total:    inv.Total,
		Lines:    lines,
	}
}

func partLineResponse(l *domain.PartLine) dto.PartLineResponse {
	return dto.PartLineResponse{
		ID:          l.ID,
		TicketID:    l.TicketID,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		Subtotal:    l.Subtotal,
		StockMoveID: l.StockMoveID,
		CreatedAt:   l.CreatedAt,
	}
}

func technicianResponse(t *domain.Technician, stats domain.TechnicianStats) dto.TechnicianResponse {
	specialties := t.SpecialtyIDs
	if specialties == nil {
		specialties = []string{}
	}
	return dto.TechnicianResponse{
		ID:                   t.ID,
		Name:                 t.Name,
		Email:                t.Email,
		IsTechnician:         t.IsTechnician,
		Available:            t.Available,
		SpecialtyIDs:         specialties,
		CurrentLocation:      t.CurrentLocation,
		InterventionCount:    stats.InterventionCount,
		CurrentInterventions: stats.CurrentInterventions,
	}
}

func technicianViewResponse(v *service.TechnicianView) dto.TechnicianResponse {
	return technicianResponse(&v.Technician, v.Stats)
}

func clientResponse(cl *domain.Client) dto.ClientResponse {
	return dto.ClientResponse{
		ID:                 cl.ID,
		Name:               cl.Name,
		Email:              cl.Email,
		Street:             cl.Street,
		City:               cl.City,
		EquipmentType:      cl.EquipmentType,
		AccessInstructions: cl.AccessInstructions,
		CreatedAt:          cl.CreatedAt,
	}
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}
