package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// AccessTokenHeader carries the access token on sign-in responses.
const AccessTokenHeader = "X-SF-Token"

// CORS returns middleware that applies the storefront's allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CartSessionHeader, "Idempotency-Key", "X-Requested-With", requestIDHeader},
		ExposedHeaders:   []string{CartSessionHeader, requestIDHeader, AccessTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
