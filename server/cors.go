package server

import (
	"fmt"
	"net/http"
)

// allowedOrigins is the fixed development origin list: the visual builder
// runs on localhost ports 3000 through 3010.
var allowedOrigins = buildAllowedOrigins()

func buildAllowedOrigins() map[string]bool {
	origins := make(map[string]bool)
	for port := 3000; port <= 3010; port++ {
		origins[fmt.Sprintf("http://localhost:%d", port)] = true
		origins[fmt.Sprintf("http://127.0.0.1:%d", port)] = true
	}
	return origins
}

// corsMiddleware answers preflight requests and stamps CORS headers for the
// builder origins. Unknown origins get no CORS headers and fail in the
// browser, which is the intended rejection.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
