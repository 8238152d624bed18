// Package api implements the dashboard REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Auth modes.
const (
	AuthDisabled = "disabled"
	AuthToken    = "token"
	AuthBasic    = "basic"
)

// AuthConfig selects how API requests are authenticated.
type AuthConfig struct {
	Mode  string
	Token string
	// Users maps usernames to bcrypt password hashes for basic mode.
	Users map[string]string
}

// AuthMiddleware returns middleware enforcing cfg.Mode:
//   - disabled: all requests pass through.
//   - token: requests must carry "Authorization: Bearer <token>".
//   - basic: HTTP basic credentials are checked against bcrypt hashes.
//
// Unknown modes reject every request.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch cfg.Mode {
			case "", AuthDisabled:
				next.ServeHTTP(w, r)
				return
			case AuthToken:
				if validBearer(r, cfg.Token) {
					next.ServeHTTP(w, r)
					return
				}
			case AuthBasic:
				if validBasic(r, cfg.Users) {
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="opsdash", charset="UTF-8"`)
			}
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		})
	}
}

func validBearer(r *http.Request, token string) bool {
	auth := r.Header.Get("Authorization")
	if token == "" || !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	got := strings.TrimPrefix(auth, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

func validBasic(r *http.Request, users map[string]string) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	hash, ok := users[user]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
}
