package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/pipedesk/internal/config"
	"github.com/MikeSquared-Agency/pipedesk/internal/events"
	"github.com/MikeSquared-Agency/pipedesk/internal/settings"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
	"github.com/MikeSquared-Agency/pipedesk/internal/sweeper"
)

func NewRouter(s store.Store, loader *settings.Loader, ev events.Client, sw *sweeper.Sweeper, cfg *config.Config, logger *slog.Logger) http.Handler {
	if ev == nil {
		ev = events.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.Server.RateLimitPerMinute))

	leads := NewLeadsHandler(s, loader, ev, sw, logger)
	priority := NewPriorityHandler(loader, ev, logger)
	deals := NewDealsHandler(s, loader, ev, logger)
	pipeline := NewPipelineHandler(s, loader)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(UserIDMiddleware)

		r.Get("/leads", leads.List)
		r.Post("/leads", leads.Create)
		r.Get("/leads/priority", leads.ByBucket)
		r.Get("/leads/{id}", leads.Get)
		r.Patch("/leads/{id}", leads.Update)
		r.Get("/leads/{id}/priority", leads.Priority)

		r.Post("/priority/score", priority.Score)
		r.Get("/settings/priority", priority.Get)
		r.Post("/settings/priority/validate", priority.Validate)

		r.Get("/deals", deals.List)
		r.Post("/deals", deals.Create)
		r.Get("/deals/{id}", deals.Get)
		r.Post("/deals/{id}/move", deals.Move)
		r.Post("/deals/{id}/close", deals.Close)
		r.Get("/deals/{id}/sla", deals.SLA)
		r.Get("/deals/{id}/history", deals.History)
		r.Get("/sla/overview", deals.Overview)

		r.Get("/stages", pipeline.ListStages)
		r.Get("/transitions/check", pipeline.Check)
		r.Get("/transitions/matrix", pipeline.Matrix)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))

			r.Put("/settings/priority", priority.Put)

			r.Post("/admin/stages", pipeline.UpsertStage)
			r.Get("/admin/sla-policies", pipeline.ListPolicies)
			r.Put("/admin/sla-policies/{stage}", pipeline.PutPolicy)
			r.Delete("/admin/sla-policies/{stage}", pipeline.DeletePolicy)
			r.Get("/admin/transition-rules", pipeline.ListRules)
			r.Put("/admin/transition-rules", pipeline.PutRule)
			r.Delete("/admin/transition-rules", pipeline.DeleteRule)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
