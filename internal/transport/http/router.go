// Package httptransport assembles the HTTP surface: shared middleware, the
// public tracking and payout routes, and the admin-only group.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/metrics"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/httputil"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/middleware/admin"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/middleware/metadata"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/middleware/requesttime"
)

// Registrar mounts a handler package's routes.
type Registrar interface {
	Register(r chi.Router)
}

// AdminRegistrar is implemented by handlers with both public and admin routes.
type AdminRegistrar interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	AdminSecret []byte
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	// Checks are run by /healthz; a nil map always reports ok.
	Checks map[string]HealthCheck
}

// Routes groups the handler packages by audience.
type Routes struct {
	Public []Registrar
	Admin  []Registrar
	// Mixed handlers get Register on the public router and RegisterAdmin
	// behind the admin guard.
	Mixed []interface {
		Registrar
		AdminRegistrar
	}
}

func NewRouter(cfg Config, routes Routes) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", healthHandler(cfg.Checks, logger))

	for _, h := range routes.Public {
		h.Register(r)
	}
	for _, h := range routes.Mixed {
		h.Register(r)
	}

	r.Group(func(ar chi.Router) {
		ar.Use(admin.RequireAdmin(cfg.AdminSecret, logger))
		for _, h := range routes.Admin {
			h.Register(ar)
		}
		for _, h := range routes.Mixed {
			h.RegisterAdmin(ar)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
