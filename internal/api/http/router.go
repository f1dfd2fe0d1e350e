package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/intervention-service/internal/api/http/handlers"
	"github.com/fieldops/intervention-service/internal/auth"
	"github.com/fieldops/intervention-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Interventions  *handlers.InterventionsHandler
	Parts          *handlers.PartsHandler
	Technicians    *handlers.TechniciansHandler
	Clients        *handlers.ClientsHandler
	Catalog        *handlers.CatalogHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	dispatch := auth.RequireRole(domain.RoleDispatcher)
	field := auth.RequireRole(domain.RoleDispatcher, domain.RoleTechnician)
	manage := auth.RequireRole()

	iv := api.Group("/interventions")
	iv.Post("/", dispatch, cfg.Interventions.Create)
	iv.Get("/", cfg.Interventions.List)
	iv.Get("/:id", cfg.Interventions.Get)
	iv.Get("/:id/history", cfg.Interventions.History)
	iv.Post("/:id/assign", dispatch, cfg.Interventions.Assign)
	iv.Post("/:id/auto-assign", dispatch, cfg.Interventions.AutoAssign)
	iv.Post("/:id/confirm", dispatch, cfg.Interventions.Confirm)
	iv.Post("/:id/schedule", dispatch, cfg.Interventions.Schedule)
	iv.Post("/:id/start", field, cfg.Interventions.Start)
	iv.Post("/:id/complete", field, cfg.Interventions.Complete)
	iv.Post("/:id/cancel", dispatch, cfg.Interventions.Cancel)
	iv.Post("/:id/sign", field, cfg.Interventions.Sign)
	iv.Post("/:id/notes", field, cfg.Interventions.Notes)
	iv.Post("/:id/stage", field, cfg.Interventions.ChangeStage)
	iv.Post("/:id/invoice", dispatch, cfg.Interventions.Invoice)
	iv.Get("/:id/invoice", cfg.Interventions.GetInvoice)
	iv.Post("/:id/notify", dispatch, cfg.Interventions.Notify)
	iv.Get("/:id/parts", cfg.Interventions.ListParts)
	iv.Post("/:id/parts", field, cfg.Interventions.RecordPart)

	api.Patch("/parts/:id", field, cfg.Parts.Update)
	api.Delete("/parts/:id", field, cfg.Parts.Delete)
	api.Get("/stock/:productID", cfg.Parts.Level)
	api.Post("/stock/adjustments", manage, cfg.Parts.Adjust)

	api.Get("/technicians/available", dispatch, cfg.Technicians.Available)
	api.Post("/technicians", manage, cfg.Technicians.Register)
	api.Get("/technicians/:id", cfg.Technicians.Get)
	api.Patch("/technicians/:id", manage, cfg.Technicians.Update)

	api.Post("/clients", dispatch, cfg.Clients.Register)
	api.Get("/clients/:id", cfg.Clients.Get)
	api.Get("/clients/:id/stats", cfg.Clients.Stats)
	api.Post("/clients/:id/interventions", dispatch, cfg.Clients.CreateIntervention)

	api.Post("/teams", manage, cfg.Catalog.CreateTeam)
	api.Get("/teams/:id", cfg.Catalog.GetTeam)
	api.Get("/teams/:id/stats", cfg.Catalog.TeamStats)
	api.Get("/teams/:id/stages", cfg.Catalog.ListStages)
	api.Post("/teams/:id/stages", manage, cfg.Catalog.CreateStage)
	api.Get("/specialties", cfg.Catalog.ListSpecialties)
	api.Post("/specialties", manage, cfg.Catalog.CreateSpecialty)
	api.Get("/categories", cfg.Catalog.ListCategories)
	api.Post("/categories", manage, cfg.Catalog.CreateCategory)
	api.Get("/products", cfg.Catalog.ListProducts)
	api.Post("/products", manage, cfg.Catalog.CreateProduct)
}
