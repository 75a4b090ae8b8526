package middleware

import (
	"context"
	"net/http"

	"github.com/reddragons/storefront-backend/api/responses"
	"github.com/reddragons/storefront-backend/api/validators"
	pkgAuth "github.com/reddragons/storefront-backend/pkg/auth"
	"github.com/reddragons/storefront-backend/pkg/auth/session"
	"github.com/reddragons/storefront-backend/pkg/config"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
// Requests without a token are rejected.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return bearer(cfg, verifier, logg, true)
}

// OptionalAuth behaves like Auth when a token is present and lets anonymous
// requests through untouched. Shopping routes use it so guests can build a cart.
// A token that is present but invalid is still rejected.
func OptionalAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return bearer(cfg, verifier, logg, false)
}

func bearer(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := validators.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				if required {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx, err := authenticate(r.Context(), cfg, verifier, logg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger, token string) (context.Context, error) {
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	// a revoked refresh session retires its access token too
	if verifier != nil {
		ok, err := verifier.HasSession(ctx, claims.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}

	userID := claims.UserID.String()
	ctx = WithUserID(ctx, userID)
	ctx = WithAccessID(ctx, claims.ID)
	return logg.WithUserID(ctx, userID), nil
}
