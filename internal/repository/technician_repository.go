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

// TechnicianFilter narrows technician listings.
type TechnicianFilter struct {
	SpecialtyID *string
	Available   *bool
	// TechniciansOnly drops directory users not flagged as technicians.
	TechniciansOnly bool
}

// TechnicianRepository stores technician directory entries.
type TechnicianRepository interface {
	Create(ctx context.Context, tech *domain.Technician) error
	UpdateProfile(ctx context.Context, tech *domain.Technician) error
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	// List returns matching technicians ordered by name then id.
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
	// Claim flips an available technician to unavailable. It reports false when someone else got there first.
	Claim(ctx context.Context, id string) (bool, error)
	SetAvailable(ctx context.Context, id string, available bool) error
}

type technicianRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewTechnicianRepository constructs repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *technicianRepository) Create(ctx context.Context, tech *domain.Technician) error {
	const query = `
        INSERT INTO technicians (id, name, email, is_technician, available, current_location, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$7)`
	if tech.ID == "" {
		tech.ID = newID()
	}
	now := time.Now().UTC()
	tech.CreatedAt = now
	tech.UpdatedAt = now
	conn := persistence.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, query,
		tech.ID,
		tech.Name,
		tech.Email,
		tech.IsTechnician,
		tech.Available,
		tech.CurrentLocation,
		now,
	); err != nil {
		return err
	}
	return r.replaceSpecialties(ctx, conn, tech.ID, tech.SpecialtyIDs)
}

func (r *technicianRepository) UpdateProfile(ctx context.Context, tech *domain.Technician) error {
	const query = `
        UPDATE technicians SET name=$1, email=$2, is_technician=$3, current_location=$4, updated_at=$5
        WHERE id=$6`
	tech.UpdatedAt = time.Now().UTC()
	conn := persistence.Conn(ctx, r.pool)
	cmd, err := conn.Exec(ctx, query,
		tech.Name,
		tech.Email,
		tech.IsTechnician,
		tech.CurrentLocation,
		tech.UpdatedAt,
		tech.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return r.replaceSpecialties(ctx, conn, tech.ID, tech.SpecialtyIDs)
}

func (r *technicianRepository) replaceSpecialties(ctx context.Context, conn persistence.Querier, techID string, specialtyIDs []string) error {
	if _, err := conn.Exec(ctx, `DELETE FROM technician_specialties WHERE technician_id=$1`, techID); err != nil {
		return err
	}
	for _, id := range specialtyIDs {
		if _, err := conn.Exec(ctx,
			`INSERT INTO technician_specialties (technician_id, specialty_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			techID, id,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *technicianRepository) selectBuilder() sq.SelectBuilder {
	return r.sb.Select(
		"t.id", "t.name", "t.email", "t.is_technician", "t.available", "t.current_location",
		"t.created_at", "t.updated_at",
		"COALESCE(array_agg(ts.specialty_id::text) FILTER (WHERE ts.specialty_id IS NOT NULL), '{}')",
	).
		From("technicians t").
		LeftJoin("technician_specialties ts ON ts.technician_id = t.id").
		GroupBy("t.id")
}

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	sqlStr, args, err := r.selectBuilder().Where(sq.Eq{"t.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanTechnician(persistence.Conn(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	q := r.selectBuilder()
	if filter.TechniciansOnly {
		q = q.Where(sq.Eq{"t.is_technician": true})
	}
	if filter.Available != nil {
		q = q.Where(sq.Eq{"t.available": *filter.Available})
	}
	if filter.SpecialtyID != nil {
		q = q.Where(sq.Expr(
			"EXISTS (SELECT 1 FROM technician_specialties f WHERE f.technician_id = t.id AND f.specialty_id = ?)",
			*filter.SpecialtyID,
		))
	}
	sqlStr, args, err := q.OrderBy("t.name", "t.id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		tech, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tech)
	}
	return result, rows.Err()
}

func (r *technicianRepository) Claim(ctx context.Context, id string) (bool, error) {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE technicians SET available=FALSE, updated_at=NOW() WHERE id=$1 AND available=TRUE`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *technicianRepository) SetAvailable(ctx context.Context, id string, available bool) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE technicians SET available=$1, updated_at=NOW() WHERE id=$2`, available, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTechnician(row pgx.Row) (*domain.Technician, error) {
	var tech domain.Technician
	if err := row.Scan(
		&tech.ID,
		&tech.Name,
		&tech.Email,
		&tech.IsTechnician,
		&tech.Available,
		&tech.CurrentLocation,
		&tech.CreatedAt,
		&tech.UpdatedAt,
		&tech.SpecialtyIDs,
	); err != nil {
		return nil, err
	}
	return &tech, nil
}
