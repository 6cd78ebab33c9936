// Package auth resolves the owner identity that scopes which todos a
// request may see. Authenticators are pluggable; whatever the method,
// the result is an opaque owner ID the engine and store key on.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// Method represents the authentication method used.
type Method string

const (
	// MethodNone indicates no authentication (fixed local owner).
	MethodNone Method = "none"
	// MethodMTLS indicates mutual TLS authentication.
	MethodMTLS Method = "mtls"
	// MethodBasic indicates HTTP Basic authentication.
	MethodBasic Method = "basic"
	// MethodAPIKey indicates API key authentication.
	MethodAPIKey Method = "apikey"
	// MethodMulti indicates multi-method authentication.
	MethodMulti Method = "multi"
)

// Identity holds the authenticated owner. OwnerID is the opaque value
// every todo is scoped by.
type Identity struct {
	Method  Method
	OwnerID string
	Attrs   map[string]any
}

// Authenticator validates a request and returns the owner identity.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidCert        = errors.New("invalid client certificate")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// contextKey is the type for context keys in this package.
type contextKey string

// identityKey is the context key for Identity.
const identityKey contextKey = "identity"

// FromContext retrieves the Identity from the context.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithIdentity stores the Identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
