package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
)

// AuthCookieName is the name of the cookie holding the API cookie secret.
const AuthCookieName = "IOULedger_Auth_Cookie"

var (
	errIPNotAllowed   = errors.New("remote address not allowed")
	errBadCookie      = errors.New("missing or invalid auth cookie")
	errBadCredentials = errors.New("invalid basic auth credentials")
)

// AuthenticationMiddleware refuses requests that fail any of the configured
// checks with 403. Checks that are not configured are skipped.
func (g *Gateway) AuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.authorize(r); err != nil {
			log.Warningf("Refused API request %s %s from %s: %s", r.Method, r.URL.Path, r.RemoteAddr, err)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize checks the remote IP, the auth cookie and the basic auth
// credentials in that order. The configured password is the hex sha256 of
// the plaintext password.
func (g *Gateway) authorize(r *http.Request) error {
	if len(g.config.AllowedIPs) > 0 {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !g.config.AllowedIPs[host] {
			return errIPNotAllowed
		}
	}
	if g.config.Cookie != "" {
		cookie, err := r.Cookie(AuthCookieName)
		if err != nil || !secureEqual(cookie.Value, g.config.Cookie) {
			return errBadCookie
		}
	}
	if g.config.Username != "" && g.config.Password != "" {
		username, password, ok := r.BasicAuth()
		if !ok {
			return errBadCredentials
		}
		h := sha256.Sum256([]byte(password))
		if !secureEqual(username, g.config.Username) || !secureEqual(hex.EncodeToString(h[:]), g.config.Password) {
			return errBadCredentials
		}
	}
	return nil
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
