package session

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenFromRequestPrefersBearer(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/lots", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	r.AddCookie(Cookie("cookie-token", time.Hour))

	token, fromCookie := TokenFromRequest(r)
	if token != "abc123" || fromCookie {
		t.Fatalf("expected bearer token, got %q fromCookie=%v", token, fromCookie)
	}
}

func TestTokenFromRequestCookie(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/lots", nil)
	r.AddCookie(Cookie("cookie-token", time.Hour))

	token, fromCookie := TokenFromRequest(r)
	if token != "cookie-token" || !fromCookie {
		t.Fatalf("expected cookie token, got %q fromCookie=%v", token, fromCookie)
	}
}

func TestCookieClear(t *testing.T) {
	if c := Cookie("", -1); c.MaxAge != -1 {
		t.Fatalf("expected MaxAge -1, got %d", c.MaxAge)
	}
	if c := Cookie("x", 12*time.Hour); c.MaxAge != 43200 {
		t.Fatalf("expected 43200, got %d", c.MaxAge)
	}
	if len(NewToken()) != 48 {
		t.Fatalf("unexpected token length")
	}
}

func TestCSRFCookieReadableByScripts(t *testing.T) {
	c := CSRFCookie("tok", true)
	if c.Name != CSRFCookieName || c.Value != "tok" || c.HttpOnly || !c.Secure {
		t.Fatalf("unexpected csrf cookie: %+v", c)
	}
	if a, b := NewToken(), NewToken(); len(a) != 48 || a == b {
		t.Fatalf("tokens must be 48 hex chars and unique: %q %q", a, b)
	}
}
