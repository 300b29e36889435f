package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authed wraps next so it only runs once the request presents a bearer
// token equal to s.token, compared in constant time so response timing
// can't leak a correct prefix (spec.md §4.7: "mismatch ⇒ 401").
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.checkAuth(r) {
			writeErrorf(w, http.StatusUnauthorized, errAuth, "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}

func (s *Server) checkAuth(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	got := strings.TrimPrefix(header, prefix)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}
