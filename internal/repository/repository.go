// Package repository holds the persistence contracts of the intervention service and
// their PostgreSQL implementations. Missing rows are reported as pgx.ErrNoRows.
package repository

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/persistence"
)

// Set bundles every repository together with the transactor that scopes them.
type Set struct {
	Tx          persistence.Transactor
	Tickets     TicketRepository
	PartLines   PartLineRepository
	Technicians TechnicianRepository
	Teams       TeamRepository
	Stages      StageRepository
	References  ReferenceRepository
	Products    ProductRepository
	Clients     ClientRepository
	Stock       StockRepository
	Invoices    InvoiceRepository
	Activities  ActivityRepository
	History     TicketHistoryRepository
}

// NewPostgresSet wires the PostgreSQL repositories on pool.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Tx:          persistence.NewPgTransactor(pool),
		Tickets:     NewTicketRepository(pool),
		PartLines:   NewPartLineRepository(pool),
		Technicians: NewTechnicianRepository(pool),
		Teams:       NewTeamRepository(pool),
		Stages:      NewStageRepository(pool),
		References:  NewReferenceRepository(pool),
		Products:    NewProductRepository(pool),
		Clients:     NewClientRepository(pool),
		Stock:       NewStockRepository(pool),
		Invoices:    NewInvoiceRepository(pool),
		Activities:  NewActivityRepository(pool),
		History:     NewTicketHistoryRepository(pool),
	}
}

func newID() string {
	return uuid.NewString()
}
