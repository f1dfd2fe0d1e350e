package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// ProductRepository manages catalog products.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// FindService returns the oldest service product whose name matches nameLike case-insensitively.
	FindService(ctx context.Context, nameLike string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository constructs repository.
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

const productSelect = `SELECT id, name, type, list_price, uom, income_account, created_at FROM products`

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	const query = `
        INSERT INTO products (id, name, type, list_price, uom, income_account, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if product.ID == "" {
		product.ID = newID()
	}
	product.CreatedAt = time.Now().UTC()
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		product.ID,
		product.Name,
		product.Type,
		product.ListPrice,
		product.UOM,
		product.IncomeAccount,
		product.CreatedAt,
	)
	return err
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return scanProduct(persistence.Conn(ctx, r.pool).QueryRow(ctx, productSelect+` WHERE id=$1`, id))
}

func (r *productRepository) FindService(ctx context.Context, nameLike string) (*domain.Product, error) {
	query := productSelect + ` WHERE type='service' AND name ILIKE '%' || $1 || '%' ORDER BY created_at, id LIMIT 1`
	return scanProduct(persistence.Conn(ctx, r.pool).QueryRow(ctx, query, nameLike))
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, productSelect+` ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *product)
	}
	return result, rows.Err()
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &p.ListPrice, &p.UOM, &p.IncomeAccount, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
