package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"saldo/internal/store"
)

type contextKey string

const identityKey contextKey = "identity"

// anonymous is used for every request when authentication is disabled.
var anonymous = &Identity{Subject: store.DefaultScope, Name: "Guest"}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored in ctx, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// Scope is the ledger scope of the request: the subject of the signed-in
// account, or the default scope.
func Scope(ctx context.Context) string {
	if id, ok := IdentityFrom(ctx); ok && id.Subject != "" {
		return id.Subject
	}
	return store.DefaultScope
}

// RequireSession rejects requests without a valid session. Browser page
// loads are redirected to /login, everything else gets a 401 JSON body.
// A nil manager disables authentication.
func RequireSession(m *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), anonymous)))
				return
			}

			token, err := TokenFromRequest(r)
			if err == nil {
				var id *Identity
				if id, err = m.Validate(token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
					return
				}
			}

			if wantsPage(r) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", "/login")
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Authentication required"})
		})
	}
}

func wantsPage(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		r.Header.Get("HX-Request") == "" &&
		strings.Contains(r.Header.Get("Accept"), "text/html")
}
