package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// HeaderFeedSession carries the id a client screen picks for itself so it
// gets a feed session of its own.
const HeaderFeedSession = "X-Feed-Session"

// CORS lets the single-page client call the feed routes from its own origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", HeaderXRequestID, HeaderFeedSession},
		ExposedHeaders:   []string{HeaderXRequestID, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
