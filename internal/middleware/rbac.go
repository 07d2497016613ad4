package middleware

import (
	"net/http"

	"github.com/sispromo/sispromo/internal/domain/user"
)

// RequireRole returns middleware that restricts access to users with one of the given roles.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				writeError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			if !allowed[u.Role] {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff admits managers and analysts.
func RequireStaff() func(http.Handler) http.Handler {
	return RequireRole(user.RoleManager, user.RoleAnalyst)
}
