package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// TicketFilter captures intervention search parameters.
type TicketFilter struct {
	ClientID         *string
	TeamID           *string
	TechnicianID     *string
	States           []domain.InterventionState
	Urgencies        []domain.Urgency
	InterventionOnly bool
	ScheduledFrom    *time.Time
	ScheduledTo      *time.Time
	Limit            int
	Offset           int
}

// TicketRepository encapsulates intervention ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.InterventionTicket) error
	Update(ctx context.Context, ticket *domain.InterventionTicket) error
	GetByID(ctx context.Context, id string) (*domain.InterventionTicket, error)
	// GetForUpdate loads the ticket and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.InterventionTicket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.InterventionTicket, error)
}

var ticketColumns = []string{
	"id", "reference", "title", "description", "client_id", "team_id", "stage_id", "category_id",
	"is_intervention", "urgency", "state", "technician_id", "scheduled_at", "started_at", "ended_at",
	"estimated_duration_hours", "address", "signature", "signature_at", "notes", "hourly_rate",
	"duration_hours", "material_cost", "labor_cost", "total_cost", "invoice_id", "invoiced",
	"created_at", "updated_at",
}

type ticketRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.InterventionTicket) error {
	now := time.Now().UTC()
	if ticket.ID == "" {
		ticket.ID = newID()
	}
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	sqlStr, args, err := r.sb.
		Insert("interventions").
		Columns(ticketColumns...).
		Values(
			ticket.ID, ticket.Reference, ticket.Title, ticket.Description, ticket.ClientID, ticket.TeamID,
			ticket.StageID, ticket.CategoryID, ticket.IsIntervention, ticket.Urgency, ticket.State,
			ticket.TechnicianID, ticket.ScheduledAt, ticket.StartedAt, ticket.EndedAt,
			ticket.EstimatedDurationHours, ticket.Address, ticket.Signature, ticket.SignatureAt, ticket.Notes,
			ticket.HourlyRate, ticket.DurationHours, ticket.MaterialCost, ticket.LaborCost, ticket.TotalCost,
			ticket.InvoiceID, ticket.Invoiced, ticket.CreatedAt, ticket.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return err
	}
	_, err = persistence.Conn(ctx, r.pool).Exec(ctx, sqlStr, args...)
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.InterventionTicket) error {
	ticket.UpdatedAt = time.Now().UTC()
	sqlStr, args, err := r.sb.
		Update("interventions").
		SetMap(map[string]any{
			"title":                    ticket.Title,
			"description":              ticket.Description,
			"client_id":                ticket.ClientID,
			"team_id":                  ticket.TeamID,
			"stage_id":                 ticket.StageID,
			"category_id":              ticket.CategoryID,
			"is_intervention":          ticket.IsIntervention,
			"urgency":                  ticket.Urgency,
			"state":                    ticket.State,
			"technician_id":            ticket.TechnicianID,
			"scheduled_at":             ticket.ScheduledAt,
			"started_at":               ticket.StartedAt,
			"ended_at":                 ticket.EndedAt,
			"estimated_duration_hours": ticket.EstimatedDurationHours,
			"address":                  ticket.Address,
			"signature":                ticket.Signature,
			"signature_at":             ticket.SignatureAt,
			"notes":                    ticket.Notes,
			"hourly_rate":              ticket.HourlyRate,
			"duration_hours":           ticket.DurationHours,
			"material_cost":            ticket.MaterialCost,
			"labor_cost":               ticket.LaborCost,
			"total_cost":               ticket.TotalCost,
			"invoice_id":               ticket.InvoiceID,
			"invoiced":                 ticket.Invoiced,
			"updated_at":               ticket.UpdatedAt,
		}).
		Where(sq.Eq{"id": ticket.ID}).
		ToSql()
	if err != nil {
		return err
	}
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.InterventionTicket, error) {
	return r.fetchSingle(ctx, id, "")
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.InterventionTicket, error) {
	return r.fetchSingle(ctx, id, "FOR UPDATE")
}

func (r *ticketRepository) fetchSingle(ctx context.Context, id, suffix string) (*domain.InterventionTicket, error) {
	q := r.sb.Select(ticketColumns...).From("interventions").Where(sq.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	ticket, err := scanTicket(persistence.Conn(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.InterventionTicket, error) {
	q := r.sb.Select(ticketColumns...).From("interventions")

	if filter.ClientID != nil {
		q = q.Where(sq.Eq{"client_id": *filter.ClientID})
	}
	if filter.TeamID != nil {
		q = q.Where(sq.Eq{"team_id": *filter.TeamID})
	}
	if filter.TechnicianID != nil {
		q = q.Where(sq.Eq{"technician_id": *filter.TechnicianID})
	}
	if len(filter.States) > 0 {
		q = q.Where(sq.Eq{"state": filter.States})
	}
	if len(filter.Urgencies) > 0 {
		q = q.Where(sq.Eq{"urgency": filter.Urgencies})
	}
	if filter.InterventionOnly {
		q = q.Where(sq.Eq{"is_intervention": true})
	}
	if filter.ScheduledFrom != nil {
		q = q.Where(sq.GtOrEq{"scheduled_at": *filter.ScheduledFrom})
	}
	if filter.ScheduledTo != nil {
		q = q.Where(sq.LtOrEq{"scheduled_at": *filter.ScheduledTo})
	}

	q = q.OrderBy("created_at DESC", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.InterventionTicket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.InterventionTicket, error) {
	var ticket domain.InterventionTicket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Reference,
		&ticket.Title,
		&ticket.Description,
		&ticket.ClientID,
		&ticket.TeamID,
		&ticket.StageID,
		&ticket.CategoryID,
		&ticket.IsIntervention,
		&ticket.Urgency,
		&ticket.State,
		&ticket.TechnicianID,
		&ticket.ScheduledAt,
		&ticket.StartedAt,
		&ticket.EndedAt,
		&ticket.EstimatedDurationHours,
		&ticket.Address,
		&ticket.Signature,
		&ticket.SignatureAt,
		&ticket.Notes,
		&ticket.HourlyRate,
		&ticket.DurationHours,
		&ticket.MaterialCost,
		&ticket.LaborCost,
		&ticket.TotalCost,
		&ticket.InvoiceID,
		&ticket.Invoiced,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
