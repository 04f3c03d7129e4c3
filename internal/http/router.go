package http

import (
	"net/http"

	apperrors "github.com/dropDatabas3/adminkit/internal/http/errors"
	"github.com/go-chi/chi/v5"
)

// RouterDeps agrupa lo necesario para montar la API.
type RouterDeps struct {
	Handlers *Handlers
	// Metrics es el handler de /metrics (nil = no se expone).
	Metrics http.Handler
	Rate    RateLimits
}

// NewRouter monta las rutas y los middlewares globales.
//
//	GET    /healthz
//	GET    /metrics
//	GET    /admin/models
//	GET    /admin/stats
//	GET    /admin/audit
//	GET    /admin/{entity}                      list (q, sort, order, page, page_size)
//	POST   /admin/{entity}                      create (X-Action-Token)
//	GET    /admin/{entity}/export
//	POST   /admin/{entity}/tokens               token para create/fragment
//	GET    /admin/{entity}/fragments/{variant}  campos del subtipo (X-Action-Token)
//	GET    /admin/{entity}/{id}
//	PATCH  /admin/{entity}/{id}                 update (X-Action-Token)
//	DELETE /admin/{entity}/{id}                 delete (X-Action-Token)
//	POST   /admin/{entity}/{id}/tokens
//	POST   /admin/{entity}/{id}/actions/{action}
func NewRouter(deps RouterDeps) http.Handler {
	h := deps.Handlers
	r := chi.NewRouter()

	r.Use(WithRecover, WithRequestID, WithLogging, WithMetrics, WithSecurityHeaders)
	r.Use(func(next http.Handler) http.Handler { return WithRateLimit(next, deps.Rate) })

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.WriteError(w, apperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.WriteError(w, apperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", h.healthz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(WithIdentity)

		r.Get("/models", h.models)
		r.Get("/stats", h.stats)
		r.Get("/audit", h.auditLog)

		r.Route("/{entity}", func(r chi.Router) {
			r.Get("/", h.list)
			r.Post("/", h.create)
			r.Get("/export", h.export)
			r.Post("/tokens", h.issueToken)
			r.Get("/fragments/{variant}", h.fragment)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.view)
				r.Patch("/", h.update)
				r.Delete("/", h.remove)
				r.Post("/tokens", h.issueToken)
				r.Post("/actions/{action}", h.custom)
			})
		})
	})
	return r
}
