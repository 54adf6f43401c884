package middleware

import (
	"net/http"

	"github.com/cohere/backend/internal/contextkeys"
	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/handler"
)

// RequireRole lets the request through only when the authenticated user holds
// one of roles. Admins pass every role check.
// Must be used AFTER Auth middleware which sets contextkeys.UserRole in context.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed[domain.RoleAdmin] = true

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(contextkeys.UserRole).(string)
			if !ok || !allowed[role] {
				handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: insufficient role"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly ensures the user has the admin role.
func AdminOnly(next http.Handler) http.Handler {
	return RequireRole()(next)
}
