package vcf

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

const maxExcerpt = 256

// AuthError reports that no token could be obtained from an endpoint.
type AuthError struct {
	Host        string
	StatusCode  int
	BodyExcerpt string
	Err         error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication to %s failed (status %d): %s", e.Host, e.StatusCode, e.BodyExcerpt)
	}
	return fmt.Sprintf("authentication to %s failed: %s", e.Host, describe(e.Err))
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) IsUnauthorised() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// FetchError reports that an authenticated request did not yield a usable payload.
type FetchError struct {
	Host        string
	Path        string
	StatusCode  int
	BodyExcerpt string
	Err         error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s from %s failed (status %d): %s", e.Path, e.Host, e.StatusCode, e.BodyExcerpt)
	}
	return fmt.Sprintf("fetching %s from %s failed: %s", e.Path, e.Host, describe(e.Err))
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func excerpt(body []byte) string {
	if len(body) > maxExcerpt {
		return string(body[:maxExcerpt]) + "..."
	}
	return string(body)
}

// describe turns transport failures into an operator-facing hint.
func describe(err error) string {
	if err == nil {
		return "unknown error"
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError

	switch {
	case errors.As(err, &dnsErr):
		return "host not found, check the hostname: " + err.Error()
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused, the server may be down: " + err.Error()
	case errors.As(err, &certErr), errors.As(err, &unknownAuthority), errors.As(err, &hostnameErr):
		return "TLS verification failed, install the CA or disable verification for this endpoint: " + err.Error()
	case errors.As(err, &netErr) && netErr.Timeout():
		return "connection timed out: " + err.Error()
	default:
		return err.Error()
	}
}
