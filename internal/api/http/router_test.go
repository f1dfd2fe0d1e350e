package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/api/http/handlers"
	"github.com/fieldops/intervention-service/internal/auth"
	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/mq"
	"github.com/fieldops/intervention-service/internal/observability"
	"github.com/fieldops/intervention-service/internal/repository/memory"
	"github.com/fieldops/intervention-service/internal/service"
)

type apiEnv struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	svc     *service.Services
	metrics *observability.Metrics
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Name: "intervention-service", Version: "test"},
		Billing: config.BillingConfig{
			HourlyRate:          "50",
			ServiceProductName:  "Intervention technical service",
			ServiceProductPrice: "50",
			IncomeAccount:       "706000",
		},
		Stock: config.StockConfig{SourceLocation: "WH/Stock", CustomerLocation: "Partners/Customers"},
	}
	logger := zap.NewNop()
	svc, err := service.NewServices(memory.NewStore().Set(), events.NewInMemoryDispatcher(logger), mq.NewLogMailer(logger), cfg, logger)
	require.NoError(t, err)
	_, err = svc.Catalog.EnsureServiceProduct(context.Background(), cfg.Billing)
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("test-secret", 5)
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, nil),
		Interventions:  handlers.NewInterventionsHandler(svc.Interventions, svc.Billing, svc.Stock, metrics),
		Parts:          handlers.NewPartsHandler(svc.Stock, metrics),
		Technicians:    handlers.NewTechniciansHandler(svc.Technicians),
		Clients:        handlers.NewClientsHandler(svc.Clients, svc.Interventions, metrics),
		Catalog:        handlers.NewCatalogHandler(svc.Catalog),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	return &apiEnv{app: app, tokens: tokens, svc: svc, metrics: metrics}
}

func (e *apiEnv) do(t *testing.T, method, path string, role domain.Role, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, _, err := e.tokens.GenerateToken(gofakeit.UUID(), gofakeit.Name(), role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type interventionView struct {
	ID           string  `json:"id"`
	State        string  `json:"state"`
	TechnicianID *string `json:"technician_id"`
}

func TestRoutes_Authentication(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)

	tests := []struct {
		name       string
		method     string
		path       string
		role       domain.Role
		body       any
		wantStatus int
		wantCode   string
	}{
		{name: "missing token", method: fiber.MethodGet, path: "/interventions", wantStatus: nethttp.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "technician cannot create", method: fiber.MethodPost, path: "/interventions", role: domain.RoleTechnician, body: map[string]any{"title": "Leak"}, wantStatus: nethttp.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "dispatcher cannot register technicians", method: fiber.MethodPost, path: "/technicians", role: domain.RoleDispatcher, body: map[string]any{"name": "Ana"}, wantStatus: nethttp.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "unknown intervention", method: fiber.MethodGet, path: "/interventions/" + gofakeit.UUID(), role: domain.RoleTechnician, wantStatus: nethttp.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "any role can list", method: fiber.MethodGet, path: "/interventions", role: domain.RoleTechnician, wantStatus: nethttp.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, tt.role, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantCode != "" {
				require.NotNil(t, body.Error)
				assert.Equal(t, tt.wantCode, body.Error.Code)
			}
		})
	}
}

func TestRoutes_CreateValidation(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)

	status, body := env.do(t, fiber.MethodPost, "/interventions", domain.RoleDispatcher, map[string]any{
		"urgency": "urgent",
	})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Contains(t, body.Error.Details, "title")
	assert.Contains(t, body.Error.Details, "urgency")
}

func TestRoutes_InterventionLifecycle(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	ctx := context.Background()

	tech, err := env.svc.Technicians.Register(ctx, service.TechnicianInput{Name: gofakeit.Name()})
	require.NoError(t, err)
	client, err := env.svc.Clients.Register(ctx, service.ClientInput{Name: gofakeit.Company(), Email: gofakeit.Email()})
	require.NoError(t, err)
	product, err := env.svc.Catalog.CreateProduct(ctx, service.ProductInput{
		Name:      gofakeit.ProductName(),
		Type:      domain.ProductTypeStorable,
		ListPrice: decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	status, _ := env.do(t, fiber.MethodPost, "/stock/adjustments", domain.RoleManager, map[string]any{
		"product_id": product.ID,
		"delta":      2,
	})
	require.Equal(t, nethttp.StatusOK, status)

	status, body := env.do(t, fiber.MethodPost, "/clients/"+client.ID+"/interventions", domain.RoleDispatcher, map[string]any{
		"description": "No cooling in the server room",
	})
	require.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)

	status, _ = env.do(t, fiber.MethodPost, "/teams", domain.RoleManager, map[string]any{
		"name":                 "Field team",
		"is_intervention_team": true,
	})
	require.Equal(t, nethttp.StatusCreated, status)

	status, body = env.do(t, fiber.MethodPost, "/clients/"+client.ID+"/interventions", domain.RoleDispatcher, map[string]any{
		"description": "No cooling in the server room",
		"urgency":     "critical",
	})
	require.Equal(t, nethttp.StatusCreated, status)
	created := decodeData[interventionView](t, body)
	assert.Equal(t, string(domain.StateAssigned), created.State)
	require.NotNil(t, created.TechnicianID)
	assert.Equal(t, tech.ID, *created.TechnicianID)
	path := "/interventions/" + created.ID

	status, body = env.do(t, fiber.MethodPost, path+"/parts", domain.RoleTechnician, map[string]any{
		"product_id": product.ID,
		"quantity":   5,
	})
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Error.Code)

	status, _ = env.do(t, fiber.MethodPost, path+"/parts", domain.RoleTechnician, map[string]any{
		"product_id": product.ID,
		"quantity":   2,
	})
	require.Equal(t, nethttp.StatusCreated, status)

	status, body = env.do(t, fiber.MethodPost, path+"/invoice", domain.RoleTechnician, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	status, body = env.do(t, fiber.MethodPost, path+"/start", domain.RoleTechnician, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, string(domain.StateInProgress), decodeData[interventionView](t, body).State)

	status, body = env.do(t, fiber.MethodPost, path+"/complete", domain.RoleTechnician, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, string(domain.StateInvoiced), decodeData[interventionView](t, body).State)

	status, body = env.do(t, fiber.MethodGet, path+"/invoice", domain.RoleTechnician, nil)
	require.Equal(t, nethttp.StatusOK, status)
	invoice := decodeData[struct {
		ID       string            `json:"id"`
		TicketID string            `json:"ticket_id"`
		Lines    []json.RawMessage `json:"lines"`
	}](t, body)
	assert.NotEmpty(t, invoice.ID)
	assert.Equal(t, created.ID, invoice.TicketID)
	assert.NotEmpty(t, invoice.Lines)

	status, body = env.do(t, fiber.MethodPost, path+"/complete", domain.RoleTechnician, nil)
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", body.Error.Code)

	snapshot := env.metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Workflow["complete|ok"])
	assert.Equal(t, int64(1), snapshot.Workflow["record_part|INSUFFICIENT_STOCK"])
}

func TestRoutes_Health(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)

	status, _ := env.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	status, _ = env.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var snapshot observability.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, int64(1), snapshot.Requests["/health/live|GET|200"])
}
