package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// TeamRepository manages persistence for teams.
type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	Update(ctx context.Context, team *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	// FindInterventionTeam returns the first active intervention team.
	FindInterventionTeam(ctx context.Context) (*domain.Team, error)
	ListActive(ctx context.Context) ([]domain.Team, error)
}

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository constructs repository.
func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &teamRepository{pool: pool}
}

const teamSelect = `
        SELECT id, name, is_intervention_team, auto_assign_technician, default_duration_hours, is_active, created_at, updated_at
        FROM teams`

func (r *teamRepository) Create(ctx context.Context, team *domain.Team) error {
	const query = `
        INSERT INTO teams (id, name, is_intervention_team, auto_assign_technician, default_duration_hours, is_active, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$7)`
	if team.ID == "" {
		team.ID = newID()
	}
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		team.ID,
		team.Name,
		team.IsInterventionTeam,
		team.AutoAssignTechnician,
		team.DefaultDurationHours,
		team.IsActive,
		now,
	)
	return err
}

func (r *teamRepository) Update(ctx context.Context, team *domain.Team) error {
	const query = `
        UPDATE teams SET name=$1, is_intervention_team=$2, auto_assign_technician=$3, default_duration_hours=$4,
            is_active=$5, updated_at=$6
        WHERE id=$7`
	team.UpdatedAt = time.Now().UTC()
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		team.Name,
		team.IsInterventionTeam,
		team.AutoAssignTechnician,
		team.DefaultDurationHours,
		team.IsActive,
		team.UpdatedAt,
		team.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	return scanTeam(persistence.Conn(ctx, r.pool).QueryRow(ctx, teamSelect+` WHERE id=$1`, id))
}

func (r *teamRepository) FindInterventionTeam(ctx context.Context) (*domain.Team, error) {
	query := teamSelect + ` WHERE is_intervention_team=TRUE AND is_active=TRUE ORDER BY created_at, id LIMIT 1`
	return scanTeam(persistence.Conn(ctx, r.pool).QueryRow(ctx, query))
}

func (r *teamRepository) ListActive(ctx context.Context) ([]domain.Team, error) {
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, teamSelect+` WHERE is_active=TRUE ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *team)
	}
	return result, rows.Err()
}

func scanTeam(row pgx.Row) (*domain.Team, error) {
	var team domain.Team
	if err := row.Scan(
		&team.ID,
		&team.Name,
		&team.IsInterventionTeam,
		&team.AutoAssignTechnician,
		&team.DefaultDurationHours,
		&team.IsActive,
		&team.CreatedAt,
		&team.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &team, nil
}
