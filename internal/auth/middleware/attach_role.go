package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

// AttachRoleFromDB overrides the token's role claim with the authoritative
// role from the users table. allowClaimFallback=true in dev; false in prod.
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := rbac.IdentityFromContext(ctx)

			var role string
			err := db.QueryRowContext(ctx,
				`SELECT role FROM users WHERE id=$1 OR username=$1`, id.UserID).
				Scan(&role)

			switch {
			case err == nil && role != "":
				id.Role = role
				next.ServeHTTP(w, r.WithContext(rbac.WithIdentity(ctx, id)))

			case errors.Is(err, sql.ErrNoRows):
				// dev tokens may carry users not yet provisioned
				if allowClaimFallback && id.Role != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)

			default:
				if allowClaimFallback && id.Role != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
