package middleware

import (
	"net/http"
	"strings"

	"github.com/reddragons/storefront-backend/api/responses"
	"github.com/reddragons/storefront-backend/internal/cart"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/logger"
)

// CartSessionHeader carries the cart session id in both directions.
const CartSessionHeader = "X-Cart-Session"

type cartRegistry interface {
	Resolve(id string) (string, *cart.Store, bool)
}

// CartSession resolves the caller's cart session and reconciles it with the
// authentication state placed on the context by OptionalAuth or Auth.
//
// A signed-in caller binds the session to their user, which loads the remote
// cart once per binding. A bound session seen without credentials is signed
// out and its local items are dropped.
func CartSession(registry cartRegistry, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if registry == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions unavailable"))
				return
			}

			requested := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			sessionID, store, created := registry.Resolve(requested)
			w.Header().Set(CartSessionHeader, sessionID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithCartSession(ctx, sessionID)
				if created && requested != "" {
					logg.Debug(ctx, "cart.session.replaced")
				}
			}

			if userID := UserIDFromContext(ctx); userID != "" {
				store.Authenticate(ctx, userID)
			} else if !store.Session().IsGuest() {
				store.SignOut(ctx)
			}

			next.ServeHTTP(w, r.WithContext(WithCartStore(ctx, sessionID, store)))
		})
	}
}

// RequireUser rejects requests that did not pass Auth or OptionalAuth with a token.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
