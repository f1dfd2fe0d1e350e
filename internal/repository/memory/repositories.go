package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/repository"
)

type ticketRepo struct{ s *Store }

func cloneTicket(t domain.InterventionTicket) domain.InterventionTicket {
	t.Signature = slices.Clone(t.Signature)
	return t
}

func (r *ticketRepo) Create(ctx context.Context, ticket *domain.InterventionTicket) error {
	defer r.s.lock(ctx)()
	if ticket.ID == "" {
		ticket.ID = newID()
	}
	for _, existing := range r.s.d.tickets {
		if existing.Reference == ticket.Reference {
			return errors.New("duplicate intervention reference")
		}
	}
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.s.d.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *ticketRepo) Update(ctx context.Context, ticket *domain.InterventionTicket) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now().UTC()
	r.s.d.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *ticketRepo) GetByID(ctx context.Context, id string) (*domain.InterventionTicket, error) {
	defer r.s.lock(ctx)()
	t, err := get(r.s.d.tickets, id)
	if err != nil {
		return nil, err
	}
	t = cloneTicket(t)
	return &t, nil
}

func (r *ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.InterventionTicket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) List(ctx context.Context, f repository.TicketFilter) ([]domain.InterventionTicket, error) {
	defer r.s.lock(ctx)()
	result := lo.Filter(lo.Values(r.s.d.tickets), func(t domain.InterventionTicket, _ int) bool {
		switch {
		case f.ClientID != nil && (t.ClientID == nil || *t.ClientID != *f.ClientID):
			return false
		case f.TeamID != nil && (t.TeamID == nil || *t.TeamID != *f.TeamID):
			return false
		case f.TechnicianID != nil && (t.TechnicianID == nil || *t.TechnicianID != *f.TechnicianID):
			return false
		case len(f.States) > 0 && !lo.Contains(f.States, t.State):
			return false
		case len(f.Urgencies) > 0 && !lo.Contains(f.Urgencies, t.Urgency):
			return false
		case f.InterventionOnly && !t.IsIntervention:
			return false
		case f.ScheduledFrom != nil && (t.ScheduledAt == nil || t.ScheduledAt.Before(*f.ScheduledFrom)):
			return false
		case f.ScheduledTo != nil && (t.ScheduledAt == nil || t.ScheduledAt.After(*f.ScheduledTo)):
			return false
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return nil, nil
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return lo.Map(result, func(t domain.InterventionTicket, _ int) domain.InterventionTicket {
		return cloneTicket(t)
	}), nil
}

type partLineRepo struct{ s *Store }

func (r *partLineRepo) Create(ctx context.Context, line *domain.PartLine) error {
	defer r.s.lock(ctx)()
	if line.ID == "" {
		line.ID = newID()
	}
	now := time.Now().UTC()
	line.CreatedAt = now
	line.UpdatedAt = now
	r.s.d.partLines[line.ID] = *line
	return nil
}

func (r *partLineRepo) Update(ctx context.Context, line *domain.PartLine) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.partLines[line.ID]; !ok {
		return pgx.ErrNoRows
	}
	line.UpdatedAt = time.Now().UTC()
	r.s.d.partLines[line.ID] = *line
	return nil
}

func (r *partLineRepo) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.partLines[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.d.partLines, id)
	return nil
}

func (r *partLineRepo) GetByID(ctx context.Context, id string) (*domain.PartLine, error) {
	defer r.s.lock(ctx)()
	line, err := get(r.s.d.partLines, id)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *partLineRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.PartLine, error) {
	defer r.s.lock(ctx)()
	result := lo.Filter(lo.Values(r.s.d.partLines), func(l domain.PartLine, _ int) bool {
		return l.TicketID == ticketID
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type technicianRepo struct{ s *Store }

func cloneTechnician(t domain.Technician) domain.Technician {
	t.SpecialtyIDs = slices.Clone(t.SpecialtyIDs)
	return t
}

func (r *technicianRepo) Create(ctx context.Context, tech *domain.Technician) error {
	defer r.s.lock(ctx)()
	if tech.ID == "" {
		tech.ID = newID()
	}
	now := time.Now().UTC()
	tech.CreatedAt = now
	tech.UpdatedAt = now
	tech.SpecialtyIDs = lo.Uniq(tech.SpecialtyIDs)
	r.s.d.technicians[tech.ID] = cloneTechnician(*tech)
	return nil
}

func (r *technicianRepo) UpdateProfile(ctx context.Context, tech *domain.Technician) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.d.technicians[tech.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Name = tech.Name
	stored.Email = tech.Email
	stored.IsTechnician = tech.IsTechnician
	stored.CurrentLocation = tech.CurrentLocation
	stored.SpecialtyIDs = lo.Uniq(slices.Clone(tech.SpecialtyIDs))
	stored.UpdatedAt = time.Now().UTC()
	r.s.d.technicians[tech.ID] = stored
	tech.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *technicianRepo) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	defer r.s.lock(ctx)()
	t, err := get(r.s.d.technicians, id)
	if err != nil {
		return nil, err
	}
	t = cloneTechnician(t)
	return &t, nil
}

func (r *technicianRepo) List(ctx context.Context, f repository.TechnicianFilter) ([]domain.Technician, error) {
	defer r.s.lock(ctx)()
	result := lo.Filter(lo.Values(r.s.d.technicians), func(t domain.Technician, _ int) bool {
		switch {
		case f.TechniciansOnly && !t.IsTechnician:
			return false
		case f.Available != nil && t.Available != *f.Available:
			return false
		case f.SpecialtyID != nil && !t.HasSpecialty(*f.SpecialtyID):
			return false
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return lo.Map(result, func(t domain.Technician, _ int) domain.Technician {
		return cloneTechnician(t)
	}), nil
}

func (r *technicianRepo) Claim(ctx context.Context, id string) (bool, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.d.technicians[id]
	if !ok || !t.Available {
		return false, nil
	}
	t.Available = false
	t.UpdatedAt = time.Now().UTC()
	r.s.d.technicians[id] = t
	return true, nil
}

func (r *technicianRepo) SetAvailable(ctx context.Context, id string, available bool) error {
	defer r.s.lock(ctx)()
	t, ok := r.s.d.technicians[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Available = available
	t.UpdatedAt = time.Now().UTC()
	r.s.d.technicians[id] = t
	return nil
}

type teamRepo struct{ s *Store }

func (r *teamRepo) Create(ctx context.Context, team *domain.Team) error {
	defer r.s.lock(ctx)()
	if team.ID == "" {
		team.ID = newID()
	}
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now
	r.s.d.teams[team.ID] = *team
	return nil
}

func (r *teamRepo) Update(ctx context.Context, team *domain.Team) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.teams[team.ID]; !ok {
		return pgx.ErrNoRows
	}
	team.UpdatedAt = time.Now().UTC()
	r.s.d.teams[team.ID] = *team
	return nil
}

func (r *teamRepo) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	defer r.s.lock(ctx)()
	t, err := get(r.s.d.teams, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *teamRepo) FindInterventionTeam(ctx context.Context) (*domain.Team, error) {
	defer r.s.lock(ctx)()
	teams := lo.Filter(lo.Values(r.s.d.teams), func(t domain.Team, _ int) bool {
		return t.IsInterventionTeam && t.IsActive
	})
	if len(teams) == 0 {
		return nil, pgx.ErrNoRows
	}
	first := lo.MinBy(teams, func(a, b domain.Team) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return &first, nil
}

func (r *teamRepo) ListActive(ctx context.Context) ([]domain.Team, error) {
	defer r.s.lock(ctx)()
	teams := lo.Filter(lo.Values(r.s.d.teams), func(t domain.Team, _ int) bool { return t.IsActive })
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].Name != teams[j].Name {
			return teams[i].Name < teams[j].Name
		}
		return teams[i].ID < teams[j].ID
	})
	return teams, nil
}

type stageRepo struct{ s *Store }

func (r *stageRepo) Create(ctx context.Context, stage *domain.Stage) error {
	defer r.s.lock(ctx)()
	if stage.ID == "" {
		stage.ID = newID()
	}
	if stage.AutoAction == "" {
		stage.AutoAction = domain.ActionNone
	}
	r.s.d.stages[stage.ID] = *stage
	return nil
}

func (r *stageRepo) GetByID(ctx context.Context, id string) (*domain.Stage, error) {
	defer r.s.lock(ctx)()
	st, err := get(r.s.d.stages, id)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func bySequence(stages []domain.Stage) {
	sort.Slice(stages, func(i, j int) bool {
		if stages[i].Sequence != stages[j].Sequence {
			return stages[i].Sequence < stages[j].Sequence
		}
		return stages[i].ID < stages[j].ID
	})
}

func (r *stageRepo) FindByKind(ctx context.Context, teamID *string, kind domain.StageKind) (*domain.Stage, error) {
	defer r.s.lock(ctx)()
	var own, shared []domain.Stage
	for _, st := range r.s.d.stages {
		if st.Kind != kind {
			continue
		}
		switch {
		case st.TeamID == nil:
			shared = append(shared, st)
		case teamID != nil && *st.TeamID == *teamID:
			own = append(own, st)
		}
	}
	for _, candidates := range [][]domain.Stage{own, shared} {
		if len(candidates) > 0 {
			bySequence(candidates)
			return &candidates[0], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stageRepo) ListByTeam(ctx context.Context, teamID string) ([]domain.Stage, error) {
	defer r.s.lock(ctx)()
	stages := lo.Filter(lo.Values(r.s.d.stages), func(st domain.Stage, _ int) bool {
		return st.TeamID == nil || *st.TeamID == teamID
	})
	bySequence(stages)
	return stages, nil
}

type referenceRepo struct{ s *Store }

func (r *referenceRepo) CreateSpecialty(ctx context.Context, specialty *domain.Specialty) error {
	defer r.s.lock(ctx)()
	if specialty.ID == "" {
		specialty.ID = newID()
	}
	r.s.d.specialties[specialty.ID] = *specialty
	return nil
}

func (r *referenceRepo) GetSpecialty(ctx context.Context, id string) (*domain.Specialty, error) {
	defer r.s.lock(ctx)()
	sp, err := get(r.s.d.specialties, id)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *referenceRepo) ListSpecialties(ctx context.Context) ([]domain.Specialty, error) {
	defer r.s.lock(ctx)()
	result := lo.Values(r.s.d.specialties)
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *referenceRepo) CreateCategory(ctx context.Context, category *domain.Category) error {
	defer r.s.lock(ctx)()
	if category.ID == "" {
		category.ID = newID()
	}
	r.s.d.categories[category.ID] = *category
	return nil
}

func (r *referenceRepo) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	defer r.s.lock(ctx)()
	c, err := get(r.s.d.categories, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *referenceRepo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	defer r.s.lock(ctx)()
	result := lo.Values(r.s.d.categories)
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type productRepo struct{ s *Store }

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	defer r.s.lock(ctx)()
	if product.ID == "" {
		product.ID = newID()
	}
	product.CreatedAt = time.Now().UTC()
	r.s.d.products[product.ID] = *product
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	defer r.s.lock(ctx)()
	p, err := get(r.s.d.products, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) FindService(ctx context.Context, nameLike string) (*domain.Product, error) {
	defer r.s.lock(ctx)()
	needle := strings.ToLower(nameLike)
	matches := lo.Filter(lo.Values(r.s.d.products), func(p domain.Product, _ int) bool {
		return p.IsService() && strings.Contains(strings.ToLower(p.Name), needle)
	})
	if len(matches) == 0 {
		return nil, pgx.ErrNoRows
	}
	first := lo.MinBy(matches, func(a, b domain.Product) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return &first, nil
}

func (r *productRepo) List(ctx context.Context) ([]domain.Product, error) {
	defer r.s.lock(ctx)()
	result := lo.Values(r.s.d.products)
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type clientRepo struct{ s *Store }

func (r *clientRepo) Create(ctx context.Context, client *domain.Client) error {
	defer r.s.lock(ctx)()
	if client.ID == "" {
		client.ID = newID()
	}
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	r.s.d.clients[client.ID] = *client
	return nil
}

func (r *clientRepo) Update(ctx context.Context, client *domain.Client) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.clients[client.ID]; !ok {
		return pgx.ErrNoRows
	}
	client.UpdatedAt = time.Now().UTC()
	r.s.d.clients[client.ID] = *client
	return nil
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	defer r.s.lock(ctx)()
	c, err := get(r.s.d.clients, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type stockRepo struct{ s *Store }

func (r *stockRepo) AvailableForUpdate(ctx context.Context, productID, location string) (float64, error) {
	defer r.s.lock(ctx)()
	return r.s.d.quants[quantKey{productID, location}], nil
}

func (r *stockRepo) Adjust(ctx context.Context, productID, location string, delta float64) error {
	defer r.s.lock(ctx)()
	r.s.d.quants[quantKey{productID, location}] += delta
	return nil
}

func (r *stockRepo) CreateMove(ctx context.Context, move *domain.StockMove) error {
	defer r.s.lock(ctx)()
	if move.ID == "" {
		move.ID = newID()
	}
	if move.State == "" {
		move.State = domain.MoveStateDraft
	}
	move.CreatedAt = time.Now().UTC()
	r.s.d.moves[move.ID] = *move
	return nil
}

func (r *stockRepo) GetMove(ctx context.Context, id string) (*domain.StockMove, error) {
	defer r.s.lock(ctx)()
	m, err := get(r.s.d.moves, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Moves returns every stock move, oldest first.
func (s *Store) Moves() []domain.StockMove {
	defer s.lock(context.Background())()
	moves := lo.Values(s.d.moves)
	sort.Slice(moves, func(i, j int) bool { return moves[i].CreatedAt.Before(moves[j].CreatedAt) })
	return moves
}

func (r *stockRepo) ConfirmMove(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	m, ok := r.s.d.moves[id]
	if !ok || m.State != domain.MoveStateDraft {
		return pgx.ErrNoRows
	}
	m.State = domain.MoveStateConfirmed
	r.s.d.moves[id] = m
	return nil
}

func (r *stockRepo) CompleteMove(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	m, err := get(r.s.d.moves, id)
	if err != nil {
		return err
	}
	if m.State == domain.MoveStateDone {
		return repository.ErrMoveAlreadyDone
	}
	r.s.d.quants[quantKey{m.ProductID, m.SourceLocation}] -= m.Quantity
	r.s.d.quants[quantKey{m.ProductID, m.DestinationLocation}] += m.Quantity
	now := time.Now().UTC()
	m.State = domain.MoveStateDone
	m.DoneAt = &now
	r.s.d.moves[id] = m
	return nil
}

type invoiceRepo struct{ s *Store }

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	inv.Lines = slices.Clone(inv.Lines)
	return inv
}

func (r *invoiceRepo) Create(ctx context.Context, invoice *domain.Invoice) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.d.invoices {
		if existing.TicketID == invoice.TicketID {
			return errors.New("ticket already has an invoice")
		}
	}
	r.s.d.invoiceSeq++
	if invoice.ID == "" {
		invoice.ID = newID()
	}
	invoice.Number = repository.FormatInvoiceNumber(invoice.Date, r.s.d.invoiceSeq)
	invoice.CreatedAt = time.Now().UTC()
	for i := range invoice.Lines {
		invoice.Lines[i].ID = newID()
		invoice.Lines[i].InvoiceID = invoice.ID
	}
	r.s.d.invoices[invoice.ID] = cloneInvoice(*invoice)
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	defer r.s.lock(ctx)()
	inv, err := get(r.s.d.invoices, id)
	if err != nil {
		return nil, err
	}
	inv = cloneInvoice(inv)
	return &inv, nil
}

func (r *invoiceRepo) GetByTicket(ctx context.Context, ticketID string) (*domain.Invoice, error) {
	defer r.s.lock(ctx)()
	for _, inv := range r.s.d.invoices {
		if inv.TicketID == ticketID {
			inv = cloneInvoice(inv)
			return &inv, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type activityRepo struct{ s *Store }

func (r *activityRepo) Create(ctx context.Context, activity *domain.Activity) error {
	defer r.s.lock(ctx)()
	if activity.ID == "" {
		activity.ID = newID()
	}
	activity.CreatedAt = time.Now().UTC()
	r.s.d.activities[activity.ID] = *activity
	return nil
}

func (r *activityRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Activity, error) {
	return r.list(ctx, func(a domain.Activity) bool { return a.TicketID == ticketID })
}

func (r *activityRepo) ListByUser(ctx context.Context, userID string) ([]domain.Activity, error) {
	return r.list(ctx, func(a domain.Activity) bool { return a.UserID == userID })
}

func (r *activityRepo) list(ctx context.Context, keep func(domain.Activity) bool) ([]domain.Activity, error) {
	defer r.s.lock(ctx)()
	result := lo.Filter(lo.Values(r.s.d.activities), func(a domain.Activity, _ int) bool { return keep(a) })
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueAt.Equal(result[j].DueAt) {
			return result[i].DueAt.Before(result[j].DueAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(ctx context.Context, history *domain.TicketHistory) error {
	defer r.s.lock(ctx)()
	if history.ID == "" {
		history.ID = newID()
	}
	history.CreatedAt = time.Now().UTC()
	r.s.d.history = append(r.s.d.history, *history)
	return nil
}

func (r *historyRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	defer r.s.lock(ctx)()
	return lo.Filter(r.s.d.history, func(h domain.TicketHistory, _ int) bool {
		return h.TicketID == ticketID
	}), nil
}
