package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/parley-labs/parley/internal/api"
	"github.com/parley-labs/parley/internal/domain"
)

type contextKey string

const TenantContextKey contextKey = "tenant"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (*domain.Tenant, error)
}

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.ErrorWithCode(w, http.StatusUnauthorized, "missing authorization header", domain.ErrCodeUnauthorized)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.ErrorWithCode(w, http.StatusUnauthorized, "invalid authorization format", domain.ErrCodeUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			tenant, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.ErrorWithCode(w, http.StatusUnauthorized, "invalid api key", domain.ErrCodeUnauthorized)
				return
			}

			r.Header.Set("X-Tenant-Key", string(tenant.Key))
			ctx := context.WithValue(r.Context(), TenantContextKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenant returns the authenticated tenant from context, nil when the
// request did not pass auth.
func GetTenant(ctx context.Context) *domain.Tenant {
	tenant, _ := ctx.Value(TenantContextKey).(*domain.Tenant)
	return tenant
}
