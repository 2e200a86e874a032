package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vminventory/vminventory/internal/platform/httpx"
)

// Middleware wires authentication gates for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireSession rejects requests that carry no valid session with 401.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := Authenticated(r.Context()); err != nil {
			httpx.RespondError(w, m.Logger, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAnyRole ensures the current principal holds one of the roles.
func (m Middleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := Authenticated(r.Context())
			if err != nil {
				httpx.RespondError(w, m.Logger, err)
				return
			}
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[strings.ToLower(p.Role)]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied", slog.String("role", p.Role), slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, m.Logger, forbid("role "+p.Role+" may not access this resource"))
		})
	}
}

func normalizeRoles(roles []string) map[string]struct{} {
	unique := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		unique[role] = struct{}{}
	}
	return unique
}
