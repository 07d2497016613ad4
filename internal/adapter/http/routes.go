package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. Auth,
// request IDs and rate limiting are installed by the caller; role gates
// are applied here per route.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	staff := middleware.RequireStaff()
	manager := middleware.RequireRole(user.RoleManager)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"sispromo","version":"1"}`))
		})

		// Auth
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)
		r.Post("/auth/change-password", h.ChangePassword)

		// Users
		r.Post("/users/register", h.Register)
		r.Get("/users/me", h.Me)
		r.Group(func(r chi.Router) {
			r.Use(manager)
			r.Get("/users", h.ListUsers)
			r.Get("/users/{id}", h.GetUser)
			r.Patch("/users/{id}", h.UpdateUser)
			r.Delete("/users/{id}", h.DeleteUser)
			r.Patch("/users/{id}/role", h.UpdateUserRole)
		})

		// Reference data: everyone reads, staff writes.
		r.Get("/states", h.ListStates)

		r.Get("/promoters", h.ListPromoters)
		r.Get("/promoters/{id}", h.GetPromoter)
		r.With(staff).Post("/promoters", h.CreatePromoter)
		r.With(staff).Patch("/promoters/{id}", h.UpdatePromoter)
		r.With(staff).Put("/promoters/{id}", h.UpdatePromoter)
		r.With(staff).Delete("/promoters/{id}", h.DeletePromoter)

		r.Get("/stores", h.ListStores)
		r.Get("/stores/{id}", h.GetStore)
		r.With(staff).Post("/stores", h.CreateStore)
		r.With(staff).Patch("/stores/{id}", h.UpdateStore)
		r.With(staff).Put("/stores/{id}", h.UpdateStore)
		r.With(staff).Delete("/stores/{id}", h.DeleteStore)

		r.Get("/brands", h.ListBrands)
		r.Get("/brands/{id}", h.GetBrand)
		r.With(staff).Post("/brands", h.CreateBrand)
		r.With(staff).Patch("/brands/{id}", h.UpdateBrand)
		r.With(staff).Put("/brands/{id}", h.UpdateBrand)
		r.With(staff).Delete("/brands/{id}", h.DeleteBrand)
		r.With(staff).Delete("/brands/{id}/stores/{storeID}", h.RemoveBrandStore)

		r.Get("/promoter-brands", h.ListPromoterBrands)
		r.Get("/promoter-brands/{id}", h.GetPromoterBrand)
		r.With(staff).Post("/promoter-brands", h.CreatePromoterBrand)
		r.With(staff).Delete("/promoter-brands/{id}", h.DeletePromoterBrand)

		r.Get("/visit-prices", h.ListVisitPrices)
		r.Get("/visit-prices/{id}", h.GetVisitPrice)
		r.With(staff).Post("/visit-prices", h.CreateVisitPrice)
		r.With(staff).Patch("/visit-prices/{id}", h.UpdateVisitPrice)
		r.With(staff).Put("/visit-prices/{id}", h.UpdateVisitPrice)
		r.With(staff).Delete("/visit-prices/{id}", h.DeleteVisitPrice)

		// Visits: promoter scoping happens in the service.
		r.Get("/visits", h.ListVisits)
		r.Post("/visits", h.CreateVisit)
		r.With(staff).Get("/visits/report", h.VisitReport)
		r.With(staff).Get("/visits/report/export", h.ExportVisitReport)
		r.Get("/visits/{id}", h.GetVisit)
		r.Patch("/visits/{id}", h.UpdateVisit)
		r.Put("/visits/{id}", h.UpdateVisit)
		r.Patch("/visits/{id}/status", h.UpdateVisitStatus)
		r.Delete("/visits/{id}", h.DeleteVisit)

		r.Get("/dashboard", h.GetDashboard)
	})
}
