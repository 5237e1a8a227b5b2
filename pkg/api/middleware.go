package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

const apiKeyHeader = "X-API-Key"

// apiKeyMiddleware rejects requests whose X-API-Key header does not match
// key. An empty key disables the check.
func apiKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(apiKeyHeader)
			switch {
			case got == "":
				sendError(w, "Missing "+apiKeyHeader+" header", http.StatusUnauthorized)
			case subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1:
				sendError(w, "Invalid API key", http.StatusUnauthorized)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// sendSuccess writes data in a successful envelope
func sendSuccess(w http.ResponseWriter, data interface{}) {
	send(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// sendError writes message in a failed envelope
func sendError(w http.ResponseWriter, message string, statusCode int) {
	send(w, statusCode, APIResponse{Error: message})
}

func send(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
