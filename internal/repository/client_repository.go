package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// ClientRepository abstracts client persistence.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	Update(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository creates a new repository instance.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	const query = `
        INSERT INTO clients (id, name, email, street, city, equipment_type, access_instructions, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`
	if client.ID == "" {
		client.ID = newID()
	}
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		client.ID,
		client.Name,
		client.Email,
		client.Street,
		client.City,
		client.EquipmentType,
		client.AccessInstructions,
		now,
	)
	return err
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	const query = `
        UPDATE clients SET name=$1, email=$2, street=$3, city=$4, equipment_type=$5, access_instructions=$6, updated_at=$7
        WHERE id=$8`
	client.UpdatedAt = time.Now().UTC()
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		client.Name,
		client.Email,
		client.Street,
		client.City,
		client.EquipmentType,
		client.AccessInstructions,
		client.UpdatedAt,
		client.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	const query = `
        SELECT id, name, email, street, city, equipment_type, access_instructions, created_at, updated_at
        FROM clients WHERE id=$1`
	var client domain.Client
	if err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.Street,
		&client.City,
		&client.EquipmentType,
		&client.AccessInstructions,
		&client.CreatedAt,
		&client.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &client, nil
}
