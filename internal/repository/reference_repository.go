package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// ReferenceRepository stores the small lookup tables: specialties and categories.
type ReferenceRepository interface {
	CreateSpecialty(ctx context.Context, specialty *domain.Specialty) error
	GetSpecialty(ctx context.Context, id string) (*domain.Specialty, error)
	ListSpecialties(ctx context.Context) ([]domain.Specialty, error)
	CreateCategory(ctx context.Context, category *domain.Category) error
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type referenceRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceRepository constructs repository.
func NewReferenceRepository(pool *pgxpool.Pool) ReferenceRepository {
	return &referenceRepository{pool: pool}
}

func (r *referenceRepository) CreateSpecialty(ctx context.Context, specialty *domain.Specialty) error {
	if specialty.ID == "" {
		specialty.ID = newID()
	}
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO specialties (id, name, description, color) VALUES ($1,$2,$3,$4)`,
		specialty.ID, specialty.Name, specialty.Description, specialty.Color,
	)
	return err
}

func (r *referenceRepository) GetSpecialty(ctx context.Context, id string) (*domain.Specialty, error) {
	var s domain.Specialty
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, description, color FROM specialties WHERE id=$1`, id,
	).Scan(&s.ID, &s.Name, &s.Description, &s.Color)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *referenceRepository) ListSpecialties(ctx context.Context) ([]domain.Specialty, error) {
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, description, color FROM specialties ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Specialty
	for rows.Next() {
		var s domain.Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Color); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *referenceRepository) CreateCategory(ctx context.Context, category *domain.Category) error {
	if category.ID == "" {
		category.ID = newID()
	}
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO categories (id, name, description, color) VALUES ($1,$2,$3,$4)`,
		category.ID, category.Name, category.Description, category.Color,
	)
	return err
}

func (r *referenceRepository) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, description, color FROM categories WHERE id=$1`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Color)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *referenceRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, description, color FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Color); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
