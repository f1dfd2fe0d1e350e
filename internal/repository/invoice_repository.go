package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// InvoiceRepository stores customer invoices and their lines.
type InvoiceRepository interface {
	// Create assigns the invoice number and persists the invoice with its lines.
	Create(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	GetByTicket(ctx context.Context, ticketID string) (*domain.Invoice, error)
}

type invoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository constructs repository.
func NewInvoiceRepository(pool *pgxpool.Pool) InvoiceRepository {
	return &invoiceRepository{pool: pool}
}

// FormatInvoiceNumber renders the human readable invoice number.
func FormatInvoiceNumber(date time.Time, seq int64) string {
	return fmt.Sprintf("INV/%d/%05d", date.Year(), seq)
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	conn := persistence.Conn(ctx, r.pool)

	var seq int64
	if err := conn.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return err
	}
	if invoice.ID == "" {
		invoice.ID = newID()
	}
	invoice.Number = FormatInvoiceNumber(invoice.Date, seq)
	invoice.CreatedAt = time.Now().UTC()

	if _, err := conn.Exec(ctx, `
        INSERT INTO invoices (id, number, client_id, ticket_id, origin, date, state, total, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		invoice.ID,
		invoice.Number,
		invoice.ClientID,
		invoice.TicketID,
		invoice.Origin,
		invoice.Date,
		invoice.State,
		invoice.Total,
		invoice.CreatedAt,
	); err != nil {
		return err
	}

	for i := range invoice.Lines {
		line := &invoice.Lines[i]
		line.ID = newID()
		line.InvoiceID = invoice.ID
		if _, err := conn.Exec(ctx, `
            INSERT INTO invoice_lines (id, invoice_id, product_id, part_line_id, name, quantity, unit_price, account, subtotal)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			line.ID,
			line.InvoiceID,
			line.ProductID,
			line.PartLineID,
			line.Name,
			line.Quantity,
			line.UnitPrice,
			line.Account,
			line.Subtotal,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.fetch(ctx, `WHERE id=$1`, id)
}

func (r *invoiceRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Invoice, error) {
	return r.fetch(ctx, `WHERE ticket_id=$1`, ticketID)
}

func (r *invoiceRepository) fetch(ctx context.Context, where, arg string) (*domain.Invoice, error) {
	conn := persistence.Conn(ctx, r.pool)
	var inv domain.Invoice
	if err := conn.QueryRow(ctx,
		`SELECT id, number, client_id, ticket_id, origin, date, state, total, created_at FROM invoices `+where, arg,
	).Scan(
		&inv.ID,
		&inv.Number,
		&inv.ClientID,
		&inv.TicketID,
		&inv.Origin,
		&inv.Date,
		&inv.State,
		&inv.Total,
		&inv.CreatedAt,
	); err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
        SELECT id, invoice_id, product_id, part_line_id, name, quantity, unit_price, account, subtotal
        FROM invoice_lines WHERE invoice_id=$1 ORDER BY part_line_id NULLS FIRST, name`, inv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.InvoiceLine
		if err := rows.Scan(
			&line.ID,
			&line.InvoiceID,
			&line.ProductID,
			&line.PartLineID,
			&line.Name,
			&line.Quantity,
			&line.UnitPrice,
			&line.Account,
			&line.Subtotal,
		); err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &inv, nil
}

