package auth

import "net/http"

// MTLSAuthenticator authenticates requests using mutual TLS client
// certificates. The certificate's common name becomes the owner ID.
type MTLSAuthenticator struct{}

// NewMTLSAuthenticator creates a new mTLS authenticator.
func NewMTLSAuthenticator() *MTLSAuthenticator {
	return &MTLSAuthenticator{}
}

// Authenticate validates the client certificate from the TLS
// connection and derives the owner identity from the certificate
// subject.
func (a *MTLSAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	if r.TLS == nil {
		return nil, ErrUnauthenticated
	}

	if len(r.TLS.PeerCertificates) == 0 {
		return nil, ErrInvalidCert
	}

	cert := r.TLS.PeerCertificates[0]

	attrs := make(map[string]any)
	if len(cert.Subject.Organization) > 0 {
		attrs["organizations"] = cert.Subject.Organization
	}
	if len(cert.DNSNames) > 0 {
		attrs["dns_names"] = cert.DNSNames
	}

	return &Identity{
		Method:  MethodMTLS,
		OwnerID: cert.Subject.CommonName,
		Attrs:   attrs,
	}, nil
}

// Method returns the authentication method type.
func (a *MTLSAuthenticator) Method() Method {
	return MethodMTLS
}
