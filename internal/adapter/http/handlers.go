package http

import (
	"context"
	"net/http"
	"time"

	"github.com/sispromo/sispromo/internal/adapter/ws"
	"github.com/sispromo/sispromo/internal/port/messagequeue"
	"github.com/sispromo/sispromo/internal/service"
)

// defaultBodyLimit caps JSON request bodies when Handlers.BodyLimit is zero.
const defaultBodyLimit = 1 << 20

// Pinger checks a backing dependency for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Auth           *service.AuthService
	Users          *service.UserService
	Promoters      *service.PromoterService
	Stores         *service.StoreService
	Brands         *service.BrandService
	PromoterBrands *service.PromoterBrandService
	VisitPrices    *service.VisitPriceService
	Visits         *service.VisitService
	Dashboard      *service.DashboardService
	States         *service.StateService
	Hub            *ws.Hub

	// DB and Queue back the readiness probe. Queue may be nil when NATS
	// is not configured.
	DB    Pinger
	Queue messagequeue.Queue

	BodyLimit int64
	// SecureCookies marks the refresh cookie Secure (HTTPS deployments).
	SecureCookies bool
	// RefreshTTL bounds the refresh cookie lifetime.
	RefreshTTL time.Duration
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return defaultBodyLimit
}

// Health handles GET /health. It reports liveness only.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready, checking the database and the queue.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	healthy := true
	if h.DB != nil {
		if err := h.DB.Ping(ctx); err != nil {
			checks["database"] = "unavailable"
			healthy = false
		}
	}
	if h.Queue != nil {
		checks["queue"] = "ok"
		if !h.Queue.IsConnected() {
			checks["queue"] = "disconnected"
			healthy = false
		}
	}

	status, code := "ready", http.StatusOK
	if !healthy {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

// ListStates handles GET /api/v1/states.
func (h *Handlers) ListStates(w http.ResponseWriter, r *http.Request) {
	handleList(h.States.List)(w, r)
}
