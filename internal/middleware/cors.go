package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS wraps rs/cors with the allowed origins parsed from the
// comma-separated frontend URL configuration.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origins := AllowedOrigins(frontendURL)
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}

// AllowedOrigins parses a comma-separated origin list, trimming
// whitespace and dropping duplicates. Empty input falls back to the
// local development origin.
func AllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"http://localhost:3000"}
	}
	seen := make(map[string]bool)
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" || seen[origin] {
			continue
		}
		seen[origin] = true
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
