package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// PartLineRepository stores parts consumed on interventions.
type PartLineRepository interface {
	Create(ctx context.Context, line *domain.PartLine) error
	Update(ctx context.Context, line *domain.PartLine) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.PartLine, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.PartLine, error)
}

type partLineRepository struct {
	pool *pgxpool.Pool
}

// NewPartLineRepository builds repository.
func NewPartLineRepository(pool *pgxpool.Pool) PartLineRepository {
	return &partLineRepository{pool: pool}
}

func (r *partLineRepository) Create(ctx context.Context, line *domain.PartLine) error {
	const query = `
        INSERT INTO part_lines (id, ticket_id, product_id, product_name, quantity, unit_price, subtotal, stock_move_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`
	if line.ID == "" {
		line.ID = newID()
	}
	now := time.Now().UTC()
	line.CreatedAt = now
	line.UpdatedAt = now
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		line.ID,
		line.TicketID,
		line.ProductID,
		line.ProductName,
		line.Quantity,
		line.UnitPrice,
		line.Subtotal,
		line.StockMoveID,
		now,
	)
	return err
}

func (r *partLineRepository) Update(ctx context.Context, line *domain.PartLine) error {
	const query = `
        UPDATE part_lines SET product_id=$1, product_name=$2, quantity=$3, unit_price=$4, subtotal=$5,
            stock_move_id=$6, updated_at=$7
        WHERE id=$8`
	line.UpdatedAt = time.Now().UTC()
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		line.ProductID,
		line.ProductName,
		line.Quantity,
		line.UnitPrice,
		line.Subtotal,
		line.StockMoveID,
		line.UpdatedAt,
		line.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *partLineRepository) Delete(ctx context.Context, id string) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM part_lines WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *partLineRepository) GetByID(ctx context.Context, id string) (*domain.PartLine, error) {
	const query = `
        SELECT id, ticket_id, product_id, product_name, quantity, unit_price, subtotal, stock_move_id, created_at, updated_at
        FROM part_lines WHERE id=$1`
	var line domain.PartLine
	if err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&line.ID,
		&line.TicketID,
		&line.ProductID,
		&line.ProductName,
		&line.Quantity,
		&line.UnitPrice,
		&line.Subtotal,
		&line.StockMoveID,
		&line.CreatedAt,
		&line.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *partLineRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.PartLine, error) {
	const query = `
        SELECT id, ticket_id, product_id, product_name, quantity, unit_price, subtotal, stock_move_id, created_at, updated_at
        FROM part_lines WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PartLine
	for rows.Next() {
		var line domain.PartLine
		if err := rows.Scan(
			&line.ID,
			&line.TicketID,
			&line.ProductID,
			&line.ProductName,
			&line.Quantity,
			&line.UnitPrice,
			&line.Subtotal,
			&line.StockMoveID,
			&line.CreatedAt,
			&line.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, line)
	}
	return result, rows.Err()
}
