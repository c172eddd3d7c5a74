package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-oauth-proxy/identity"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/rbac"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the identity resolved by RequireAuth.
func UserFromContext(ctx context.Context) (identity.UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(identity.UserContext)
	return user, ok
}

// RequireAuth resolves the caller's identity (bearer token or trusted
// edge headers) and stashes it on the request context. Unresolvable
// credentials end the request with 401.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.resolver.Resolve(r)
		if err != nil {
			if errors.Is(err, errors.ErrStoreUnavailable) || errors.Is(err, errors.ErrUpstreamUnavailable) {
				writeJSONError(w, "temporarily_unavailable", "try again later", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="tools"`)
			writeJSONError(w, "invalid_token", "authentication required", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	}
}

// RequireOperation gates the handler on the RBAC table. Authentication
// failures are 401; a resolved user lacking the role is 403.
func (s *Server) RequireOperation(op rbac.Operation) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeJSONError(w, "invalid_token", "authentication required", http.StatusUnauthorized)
				return
			}
			if err := s.gate.Authorize(user, op); err != nil {
				writeJSONError(w, "forbidden", "insufficient privileges", http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
}

// Protected composes the standard API middleware with authentication
// and RBAC for one operation.
func (s *Server) Protected(op rbac.Operation, handler http.HandlerFunc) http.HandlerFunc {
	mw := append(s.APIMiddleware(), s.RequireAuth, s.RequireOperation(op))
	return ChainMiddleware(handler, mw...)
}
