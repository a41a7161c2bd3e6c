package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal stored by Middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.ID != ""
}

// Middleware resolves the bearer token and rejects unauthenticated requests.
func Middleware(resolver Resolver, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized", ErrMissingCredential.Error())
				return
			}

			p, err := resolver.Resolve(r.Context(), strings.TrimPrefix(authz, "Bearer "))
			if err != nil {
				if errors.Is(err, errs.ErrUnauthenticated) {
					utils.JSONError(w, http.StatusUnauthorized, "unauthorized", err.Error())
					return
				}
				logger.Error("principal resolution failed", zap.Error(err))
				utils.JSONError(w, http.StatusInternalServerError, "internal_error", "Failed to provision user from auth provider")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
