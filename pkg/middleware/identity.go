package middleware

import (
	"context"
	"net/http"
)

// Roles the upstream auth layer may assert. Authentication itself happens
// outside this service; we consume the already-verified identity headers.
const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const (
	userIDKey   contextKey = "user_id"
	userRoleKey contextKey = "user_role"
)

// Caller is the opaque identity+role pair attached to every authenticated
// request.
type Caller struct {
	ID   string
	Role string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Identity extracts the caller identity headers and rejects requests that
// carry none or an unknown role.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(HeaderUserID)
			role := r.Header.Get(HeaderUserRole)

			if userID == "" || (role != RoleAgent && role != RoleAdmin) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, userRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext returns the caller attached by Identity. The second
// return is false for unauthenticated contexts (health endpoints, tests).
func CallerFromContext(ctx context.Context) (Caller, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return Caller{}, false
	}
	role, _ := ctx.Value(userRoleKey).(string)
	return Caller{ID: id, Role: role}, true
}

// ContextWithCaller attaches a caller directly, used by tests.
func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	ctx = context.WithValue(ctx, userIDKey, c.ID)
	return context.WithValue(ctx, userRoleKey, c.Role)
}
