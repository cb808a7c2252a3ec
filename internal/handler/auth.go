package handler

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// requireToken checks the Authorization bearer token against the configured
// bcrypt hash. With no hash configured all requests pass (local development).
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.tokenHash) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", false)
			return
		}
		if bcrypt.CompareHashAndPassword(h.tokenHash, []byte(token)) != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token", false)
			return
		}
		next.ServeHTTP(w, r)
	})
}
