package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// ErrMoveAlreadyDone is returned when a completed move is completed again.
var ErrMoveAlreadyDone = errors.New("stock move already done")

// StockRepository tracks on-hand quantities and the moves changing them.
type StockRepository interface {
	// AvailableForUpdate returns the on-hand quantity at location and locks it until the transaction ends.
	AvailableForUpdate(ctx context.Context, productID, location string) (float64, error)
	// Adjust adds delta to the on-hand quantity at location.
	Adjust(ctx context.Context, productID, location string, delta float64) error
	CreateMove(ctx context.Context, move *domain.StockMove) error
	GetMove(ctx context.Context, id string) (*domain.StockMove, error)
	ConfirmMove(ctx context.Context, id string) error
	// CompleteMove applies the move to the quants and marks it done.
	CompleteMove(ctx context.Context, id string) error
}

type stockRepository struct {
	pool *pgxpool.Pool
}

// NewStockRepository constructs repository.
func NewStockRepository(pool *pgxpool.Pool) StockRepository {
	return &stockRepository{pool: pool}
}

func (r *stockRepository) AvailableForUpdate(ctx context.Context, productID, location string) (float64, error) {
	var qty float64
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT quantity FROM stock_quants WHERE product_id=$1 AND location=$2 FOR UPDATE`,
		productID, location,
	).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func (r *stockRepository) Adjust(ctx context.Context, productID, location string, delta float64) error {
	return adjustQuant(ctx, persistence.Conn(ctx, r.pool), productID, location, delta)
}

func adjustQuant(ctx context.Context, conn persistence.Querier, productID, location string, delta float64) error {
	_, err := conn.Exec(ctx, `
        INSERT INTO stock_quants (product_id, location, quantity) VALUES ($1,$2,$3)
        ON CONFLICT (product_id, location) DO UPDATE SET quantity = stock_quants.quantity + EXCLUDED.quantity`,
		productID, location, delta,
	)
	return err
}

func (r *stockRepository) CreateMove(ctx context.Context, move *domain.StockMove) error {
	const query = `
        INSERT INTO stock_moves (id, name, product_id, quantity, source_location, destination_location, origin, state, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if move.ID == "" {
		move.ID = newID()
	}
	if move.State == "" {
		move.State = domain.MoveStateDraft
	}
	move.CreatedAt = time.Now().UTC()
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		move.ID,
		move.Name,
		move.ProductID,
		move.Quantity,
		move.SourceLocation,
		move.DestinationLocation,
		move.Origin,
		move.State,
		move.CreatedAt,
	)
	return err
}

func (r *stockRepository) GetMove(ctx context.Context, id string) (*domain.StockMove, error) {
	return r.getMove(ctx, id, "")
}

func (r *stockRepository) getMove(ctx context.Context, id, suffix string) (*domain.StockMove, error) {
	query := `
        SELECT id, name, product_id, quantity, source_location, destination_location, origin, state, created_at, done_at
        FROM stock_moves WHERE id=$1 ` + suffix
	var move domain.StockMove
	if err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&move.ID,
		&move.Name,
		&move.ProductID,
		&move.Quantity,
		&move.SourceLocation,
		&move.DestinationLocation,
		&move.Origin,
		&move.State,
		&move.CreatedAt,
		&move.DoneAt,
	); err != nil {
		return nil, err
	}
	return &move, nil
}

func (r *stockRepository) ConfirmMove(ctx context.Context, id string) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE stock_moves SET state=$1 WHERE id=$2 AND state=$3`,
		domain.MoveStateConfirmed, id, domain.MoveStateDraft,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *stockRepository) CompleteMove(ctx context.Context, id string) error {
	move, err := r.getMove(ctx, id, "FOR UPDATE")
	if err != nil {
		return err
	}
	if move.State == domain.MoveStateDone {
		return ErrMoveAlreadyDone
	}
	conn := persistence.Conn(ctx, r.pool)
	if err := adjustQuant(ctx, conn, move.ProductID, move.SourceLocation, -move.Quantity); err != nil {
		return err
	}
	if err := adjustQuant(ctx, conn, move.ProductID, move.DestinationLocation, move.Quantity); err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE stock_moves SET state=$1, done_at=$2 WHERE id=$3`,
		domain.MoveStateDone, time.Now().UTC(), id)
	return err
}
