package guest

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CookieName is the client-side key holding the guest credential.
const CookieName = "guest_id"

// TTL is the cookie lifetime. Identity stays stable until expiry or
// cookie clearance; ownership checks depend on exact equality.
const TTL = 365 * 24 * time.Hour

// Identity is an opaque, locally-generated credential standing in for an
// unauthenticated user. It is passed explicitly into every operation that
// needs it rather than read from ambient state.
type Identity string

// Valid reports whether the identity carries a token.
func (id Identity) Valid() bool { return id != "" }

func (id Identity) String() string { return string(id) }

// Provider mints and persists guest identities. Resolution is purely
// local: no server round-trip is involved.
type Provider struct {
	now      func() time.Time
	newToken func() string
}

func NewProvider() *Provider {
	return &Provider{
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// NewProviderWithClock is test-only for deterministic cookie expiries
// and tokens.
func NewProviderWithClock(now func() time.Time, newToken func() string) *Provider {
	return &Provider{now: now, newToken: newToken}
}

// Resolve returns the identity held in the request cookie, minting and
// persisting a fresh token when none exists. Repeated calls within the
// cookie's validity return the same token.
func (p *Provider) Resolve(w http.ResponseWriter, r *http.Request) Identity {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return Identity(c.Value)
	}

	token := p.newToken()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  p.now().Add(TTL),
		SameSite: http.SameSiteLaxMode,
	})
	return Identity(token)
}

type ctxKey struct{}

// Middleware resolves the guest identity once per request and stores it
// in the request context.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := p.Resolve(w, r)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// WithIdentity returns a context carrying the guest identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the guest identity resolved by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.Valid()
}
