package api

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
)

const (
	sessionHeader = "X-Session-Token"
	sessionCookie = "session_token"
)

func CORS(allowedOrigins []string, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allow := false
			if slices.Contains(allowedOrigins, "*") {
				allow = true
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" && slices.Contains(allowedOrigins, origin) {
				allow = true
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			if env == "development" && origin != "" {
				slog.Debug("CORS check", "origin", origin, "allowed", allow)
			}

			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+sessionHeader)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, "+archiveHeader)

			// Handle preflight
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// protect applies the per-client rate limit and, when an app password is
// set, requires a valid session token.
func (h *Handler) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.Limiter.Allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests, try again later"))
			return
		}
		settings := h.Settings.Current()
		if settings.HasPassword() {
			if err := h.Sessions.Verify(sessionToken(r), settings.PasswordHash); err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
				return
			}
		}
		next(w, r)
	}
}

func sessionToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(sessionHeader)); token != "" {
		return token
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// clientIP is the remote address without its port. Forwarding headers are
// not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
