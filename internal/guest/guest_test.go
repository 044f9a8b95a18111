package guest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveMintsOnce(t *testing.T) {
	minted := 0
	p := NewProviderWithClock(
		func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
		func() string { minted++; return fmt.Sprintf("token-%d", minted) },
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	first := p.Resolve(rec, req)
	if first != "token-1" {
		t.Fatalf("expected minted token, got %q", first)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("expected %s cookie, got %+v", CookieName, cookies)
	}
	c := cookies[0]
	if c.Path != "/" {
		t.Fatalf("expected site-wide path, got %q", c.Path)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax, got %v", c.SameSite)
	}
	wantExpiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !c.Expires.Equal(wantExpiry) {
		t.Fatalf("expected one-year expiry %v, got %v", wantExpiry, c.Expires)
	}

	// Second resolve with the cookie present returns the same token and
	// mints nothing new.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(c)
	second := p.Resolve(httptest.NewRecorder(), req2)
	if second != first {
		t.Fatalf("expected stable identity, got %q then %q", first, second)
	}
	if minted != 1 {
		t.Fatalf("expected exactly one mint, got %d", minted)
	}
}

func TestMiddlewareStoresIdentityInContext(t *testing.T) {
	p := NewProvider()

	var seen Identity
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		seen = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "existing-token"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "existing-token" {
		t.Fatalf("expected cookie identity to pass through, got %q", seen)
	}
}

func TestFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := FromContext(req.Context()); ok {
		t.Fatalf("expected no identity on bare context")
	}
}
