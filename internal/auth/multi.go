package auth

import (
	"errors"
	"net/http"
)

// MultiAuthenticator tries multiple authenticators in order, returning
// the first successful identity. If an authenticator returns
// ErrUnauthenticated (no credentials), the next one is tried. Any
// other error (credentials present but invalid) fails immediately.
type MultiAuthenticator struct {
	authenticators []Authenticator
}

// NewMultiAuthenticator creates a new multi-method authenticator that
// tries each provided authenticator in order.
func NewMultiAuthenticator(authenticators ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{
		authenticators: authenticators,
	}
}

// Authenticate tries each configured authenticator in order and
// returns the first successful identity. If all return
// ErrUnauthenticated, so does this.
func (a *MultiAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	if len(a.authenticators) == 0 {
		return nil, ErrUnauthenticated
	}

	for _, authenticator := range a.authenticators {
		id, err := authenticator.Authenticate(r)
		if err == nil {
			return id, nil
		}

		if !errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
	}

	return nil, ErrUnauthenticated
}

// Method returns the authentication method type.
func (a *MultiAuthenticator) Method() Method {
	return MethodMulti
}
