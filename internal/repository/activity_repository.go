package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// ActivityRepository stores to-do activities scheduled for users.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.Activity) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Activity, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Activity, error)
}

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository builds repository.
func NewActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	const query = `
        INSERT INTO activities (id, user_id, ticket_id, summary, note, due_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if activity.ID == "" {
		activity.ID = newID()
	}
	activity.CreatedAt = time.Now().UTC()
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		activity.ID,
		activity.UserID,
		activity.TicketID,
		activity.Summary,
		activity.Note,
		activity.DueAt,
		activity.CreatedAt,
	)
	return err
}

func (r *activityRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Activity, error) {
	return r.list(ctx, `WHERE ticket_id=$1`, ticketID)
}

func (r *activityRepository) ListByUser(ctx context.Context, userID string) ([]domain.Activity, error) {
	return r.list(ctx, `WHERE user_id=$1`, userID)
}

func (r *activityRepository) list(ctx context.Context, where string, arg string) ([]domain.Activity, error) {
	query := `SELECT id, user_id, ticket_id, summary, note, due_at, created_at FROM activities ` +
		where + ` ORDER BY due_at ASC, id`
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.TicketID, &a.Summary, &a.Note, &a.DueAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
