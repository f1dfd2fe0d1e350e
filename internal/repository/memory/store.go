// Package memory implements the repository contracts on in-process maps. It is used when no
// database is configured and by the service tests. Transactions are serialized and roll back
// by restoring a snapshot taken when they began.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
	"github.com/fieldops/intervention-service/internal/repository"
)

type quantKey struct {
	productID string
	location  string
}

type data struct {
	tickets     map[string]domain.InterventionTicket
	partLines   map[string]domain.PartLine
	technicians map[string]domain.Technician
	teams       map[string]domain.Team
	stages      map[string]domain.Stage
	specialties map[string]domain.Specialty
	categories  map[string]domain.Category
	products    map[string]domain.Product
	clients     map[string]domain.Client
	moves       map[string]domain.StockMove
	quants      map[quantKey]float64
	invoices    map[string]domain.Invoice
	activities  map[string]domain.Activity
	history     []domain.TicketHistory
	invoiceSeq  int64
}

func newData() data {
	return data{
		tickets:     make(map[string]domain.InterventionTicket),
		partLines:   make(map[string]domain.PartLine),
		technicians: make(map[string]domain.Technician),
		teams:       make(map[string]domain.Team),
		stages:      make(map[string]domain.Stage),
		specialties: make(map[string]domain.Specialty),
		categories:  make(map[string]domain.Category),
		products:    make(map[string]domain.Product),
		clients:     make(map[string]domain.Client),
		moves:       make(map[string]domain.StockMove),
		quants:      make(map[quantKey]float64),
		invoices:    make(map[string]domain.Invoice),
		activities:  make(map[string]domain.Activity),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d data) snapshot() data {
	return data{
		tickets:     cloneMap(d.tickets),
		partLines:   cloneMap(d.partLines),
		technicians: cloneMap(d.technicians),
		teams:       cloneMap(d.teams),
		stages:      cloneMap(d.stages),
		specialties: cloneMap(d.specialties),
		categories:  cloneMap(d.categories),
		products:    cloneMap(d.products),
		clients:     cloneMap(d.clients),
		moves:       cloneMap(d.moves),
		quants:      cloneMap(d.quants),
		invoices:    cloneMap(d.invoices),
		activities:  cloneMap(d.activities),
		history:     slices.Clone(d.history),
		invoiceSeq:  d.invoiceSeq,
	}
}

// Store holds every table in memory.
type Store struct {
	// txMu serializes transactions and standalone calls, giving every transaction exclusive access.
	txMu sync.Mutex
	mu   sync.Mutex
	d    data
}

type txKey struct{}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{d: newData()}
}

// WithinTx implements persistence.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	s.mu.Lock()
	saved := s.d.snapshot()
	s.mu.Unlock()

	txCtx, hooks := persistence.StartHooks(context.WithValue(ctx, txKey{}, s))
	err := fn(txCtx)
	if err != nil {
		s.mu.Lock()
		s.d = saved
		s.mu.Unlock()
	}
	s.txMu.Unlock()

	if err != nil {
		return err
	}
	hooks.Run(ctx)
	return nil
}

// lock grants access to the tables. Calls outside a transaction also wait for running transactions.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// Set returns every repository backed by this store.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Tx:          s,
		Tickets:     &ticketRepo{s},
		PartLines:   &partLineRepo{s},
		Technicians: &technicianRepo{s},
		Teams:       &teamRepo{s},
		Stages:      &stageRepo{s},
		References:  &referenceRepo{s},
		Products:    &productRepo{s},
		Clients:     &clientRepo{s},
		Stock:       &stockRepo{s},
		Invoices:    &invoiceRepo{s},
		Activities:  &activityRepo{s},
		History:     &historyRepo{s},
	}
}

func newID() string {
	return uuid.NewString()
}

func get[V any](m map[string]V, id string) (V, error) {
	v, ok := m[id]
	if !ok {
		var zero V
		return zero, pgx.ErrNoRows
	}
	return v, nil
}
