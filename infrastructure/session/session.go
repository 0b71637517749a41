package session

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

const (
	CookieName     = "X-Session-Token"
	CSRFCookieName = "X-CSRF-Token"
)

// Cookie builds the session cookie. A negative ttl clears it.
func Cookie(token string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// CSRFCookie carries the double-submit token. Scripts must be able to read
// it back into the X-CSRF-Token header, so it is not HttpOnly.
func CSRFCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// NewToken returns an opaque 48-char hex session token.
func NewToken() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
// fromCookie is true only when the cookie supplied the token.
func TokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, value, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if value = strings.TrimSpace(value); value != "" {
				return value, false
			}
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value, true
	}
	return "", false
}
