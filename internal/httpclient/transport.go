// Package httpclient builds the HTTP clients used to reach upstream
// installer and manager endpoints.
package httpclient

import (
	"crypto/tls"
	"net/http"
	"time"

	"vcfcreds/version"
)

// UserAgent is sent on every upstream request.
var UserAgent = "vcfcreds/" + version.Version

// IdentifyingTransport wraps an http.RoundTripper and injects identification headers.
type IdentifyingTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *IdentifyingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid mutating the original
	clone := req.Clone(req.Context())

	clone.Header.Set("User-Agent", UserAgent)
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", "application/json")
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// NewClient returns an *http.Client with the given timeout. When verifyTLS is
// false the server certificate is not checked; appliances commonly ship with
// self-signed certificates.
func NewClient(timeout time.Duration, verifyTLS bool) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verifyTLS, //nolint:gosec // operator opt-in per endpoint
	}

	return &http.Client{
		Transport: &IdentifyingTransport{Base: base},
		Timeout:   timeout,
	}
}
