package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/middleware"
)

const refreshCookieName = "sispromo_refresh"

// Login handles POST /api/v1/auth/login. The refresh token is returned in
// the body and also set as an HttpOnly cookie for browser clients.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	resp, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	h.setRefreshCookie(w, resp.RefreshToken)
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token is read from
// the JSON body, falling back to the cookie.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req user.RefreshRequest
	if r.ContentLength != 0 {
		body, ok := readJSON[user.RefreshRequest](w, r, h.bodyLimit())
		if !ok {
			return
		}
		req = body
	}
	if req.Refresh == "" {
		if c, err := r.Cookie(refreshCookieName); err == nil {
			req.Refresh = c.Value
		}
	}
	if req.Refresh == "" {
		writeError(w, http.StatusBadRequest, "refresh is required")
		return
	}

	resp, err := h.Auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		h.clearRefreshCookie(w)
		writeDomainError(w, err, "session not found")
		return
	}
	h.setRefreshCookie(w, resp.RefreshToken)
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout. It ends every session of the
// caller and revokes the presented access token.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		// auth disabled: nothing to revoke
		h.clearRefreshCookie(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.Auth.Logout(r.Context(), claims.UserID, claims.JTI, time.Unix(claims.Expiry, 0)); err != nil {
		writeInternalError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me and GET /api/v1/users/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	u, err := h.Users.Get(r.Context(), caller.ID)
	if errors.Is(err, domain.ErrNotFound) && middleware.ClaimsFromContext(r.Context()) == nil {
		// the synthetic auth-disabled manager has no row
		writeJSON(w, http.StatusOK, caller)
		return
	}
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ChangePassword handles POST /api/v1/auth/change-password.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	req, ok := readJSON[user.ChangePasswordRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if err := h.Auth.ChangePassword(r.Context(), caller.ID, req); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Register handles POST /api/v1/users/register. Anonymous and non-manager
// callers always create an active promoter; a manager may pick the role.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if caller := actor(r); caller == nil || caller.Role != user.RoleManager || req.Role == "" {
		req.Role = user.RolePromoter
	}
	u, err := h.Auth.Register(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
