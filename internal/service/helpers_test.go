package service

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/mq"
	"github.com/fieldops/intervention-service/internal/repository"
	"github.com/fieldops/intervention-service/internal/repository/memory"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendInvoice(ctx context.Context, msg mq.InvoiceEmail) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	store  *memory.Store
	repos  repository.Set
	svc    *Services
	mailer *mockMailer
	clock  *fakeClock
	cfg    *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		Notification: config.NotificationConfig{EmailFrom: "noreply@example.com"},
		Billing: config.BillingConfig{
			HourlyRate:           "50",
			ServiceProductName:   "Intervention technical service",
			ServiceProductPrice:  "50",
			IncomeAccount:        "706000",
			InvoiceEmailTemplate: "invoice_email",
		},
		Stock: config.StockConfig{
			SourceLocation:   "WH/Stock",
			CustomerLocation: "Partners/Customers",
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mailer := &mockMailer{}
	mailer.On("SendInvoice", mock.Anything, mock.Anything).Return(nil).Maybe()
	return newTestEnvWithMailer(t, mailer)
}

func newTestEnvWithMailer(t *testing.T, mailer *mockMailer) *testEnv {
	t.Helper()

	store := memory.NewStore()
	cfg := testConfig()

	svc, err := NewServices(store.Set(), events.NewInMemoryDispatcher(zap.NewNop()), mailer, cfg, zap.NewNop())
	require.NoError(t, err)
	svc.Notifications.RegisterHandlers()

	clock := &fakeClock{t: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)}
	svc.Interventions.now = clock.now
	svc.Billing.now = clock.now
	svc.Notifications.now = clock.now

	_, err = svc.Catalog.EnsureServiceProduct(context.Background(), cfg.Billing)
	require.NoError(t, err)

	return &testEnv{
		store:  store,
		repos:  store.Set(),
		svc:    svc,
		mailer: mailer,
		clock:  clock,
		cfg:    cfg,
	}
}

func (e *testEnv) client(t *testing.T) *domain.Client {
	t.Helper()
	client, err := e.svc.Clients.Register(context.Background(), ClientInput{
		Name:   gofakeit.Company(),
		Email:  gofakeit.Email(),
		Street: gofakeit.Street(),
		City:   gofakeit.City(),
	})
	require.NoError(t, err)
	return client
}

func (e *testEnv) technician(t *testing.T, name string) *domain.Technician {
	t.Helper()
	tech, err := e.svc.Technicians.Register(context.Background(), TechnicianInput{
		Name:  name,
		Email: gofakeit.Email(),
	})
	require.NoError(t, err)
	return tech
}

func (e *testEnv) team(t *testing.T, autoAssign bool) *domain.Team {
	t.Helper()
	team, err := e.svc.Catalog.CreateTeam(context.Background(), TeamInput{
		Name:                 gofakeit.AppName(),
		IsInterventionTeam:   true,
		AutoAssignTechnician: ptr(autoAssign),
	})
	require.NoError(t, err)
	return team
}

// product creates a storable product with onHand units at the source location.
func (e *testEnv) product(t *testing.T, price int64, onHand float64) *domain.Product {
	t.Helper()
	ctx := context.Background()
	product, err := e.svc.Catalog.CreateProduct(ctx, ProductInput{
		Name:      gofakeit.ProductName(),
		Type:      domain.ProductTypeStorable,
		ListPrice: decimal.NewFromInt(price),
	})
	require.NoError(t, err)
	if onHand > 0 {
		_, err = e.svc.Stock.AdjustStock(ctx, product.ID, onHand)
		require.NoError(t, err)
	}
	return product
}

// draft creates an intervention left in draft: a client on a team that does not auto-assign.
func (e *testEnv) draft(t *testing.T) *domain.InterventionTicket {
	t.Helper()
	client := e.client(t)
	team := e.team(t, false)
	ticket, err := e.svc.Interventions.Create(context.Background(), InterventionCreateInput{
		Title:    gofakeit.Sentence(4),
		ClientID: &client.ID,
		TeamID:   &team.ID,
		Urgency:  domain.UrgencyHigh,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StateDraft, ticket.State)
	return ticket
}

// assigned creates an intervention auto-assigned to a fresh technician.
func (e *testEnv) assigned(t *testing.T) (*domain.InterventionTicket, *domain.Technician) {
	t.Helper()
	tech := e.technician(t, gofakeit.Name())
	client := e.client(t)
	ticket, err := e.svc.Interventions.Create(context.Background(), InterventionCreateInput{
		Title:    gofakeit.Sentence(4),
		ClientID: &client.ID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StateAssigned, ticket.State)
	require.Equal(t, tech.ID, *ticket.TechnicianID)
	return ticket, tech
}

func (e *testEnv) reload(t *testing.T, ticketID string) *domain.InterventionTicket {
	t.Helper()
	ticket, err := e.svc.Interventions.Get(context.Background(), ticketID)
	require.NoError(t, err)
	return ticket
}

func (e *testEnv) available(t *testing.T, productID string) float64 {
	t.Helper()
	qty, err := e.svc.Stock.Available(context.Background(), productID)
	require.NoError(t, err)
	return qty
}

func decimalEqual(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.NewFromInt(want).Equal(got), "want %d, got %s", want, got.String())
}
