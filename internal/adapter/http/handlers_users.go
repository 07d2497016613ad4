package http

import (
	"net/http"

	"github.com/sispromo/sispromo/internal/domain/user"
)

// ListUsers handles GET /api/v1/users[?role=].
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context(), user.Role(r.URL.Query().Get("role")))
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	if users == nil {
		users = []user.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser handles GET /api/v1/users/{id}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Users.Get, "user not found")(w, r)
}

// UpdateUser handles PATCH /api/v1/users/{id}.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.Users.Update, "user not found")(w, r)
}

// UpdateUserRole handles PATCH /api/v1/users/{id}/role.
func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.Users.UpdateRole, "user not found")(w, r)
}

// DeleteUser handles DELETE /api/v1/users/{id}.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Delete(r.Context(), actor(r), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Promoters ---

// ListPromoters handles GET /api/v1/promoters.
func (h *Handlers) ListPromoters(w http.ResponseWriter, r *http.Request) {
	handleList(h.Promoters.List)(w, r)
}

// GetPromoter handles GET /api/v1/promoters/{id}.
func (h *Handlers) GetPromoter(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Promoters.Get, "promoter not found")(w, r)
}

// CreatePromoter handles POST /api/v1/promoters.
func (h *Handlers) CreatePromoter(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.bodyLimit(), h.Promoters.Create)(w, r)
}

// UpdatePromoter handles PATCH /api/v1/promoters/{id}.
func (h *Handlers) UpdatePromoter(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.Promoters.Update, "promoter not found")(w, r)
}

// DeletePromoter handles DELETE /api/v1/promoters/{id}.
func (h *Handlers) DeletePromoter(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Promoters.Delete, "promoter not found")(w, r)
}
