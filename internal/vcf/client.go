// Package vcf talks to the two upstream sources of deployment credentials:
// the installer, which holds the deployment specification, and the manager,
// which holds the credentials of already provisioned components.
package vcf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vcfcreds/internal/httpclient"

	log "github.com/sirupsen/logrus"
)

const tokenPath = "/v1/tokens"

// Token is a bearer token issued by an endpoint. Callers own its lifetime.
type Token struct {
	AccessToken string
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Client holds the connection settings of one endpoint. It keeps no session
// state between calls.
type Client struct {
	httpClient *http.Client
	host       string
	baseURL    string
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		httpClient: httpclient.NewClient(cfg.Timeout, cfg.VerifyTLS),
		host:       cfg.Host,
		baseURL:    "https://" + cfg.Host,
	}, nil
}

func (c *Client) Host() string {
	return c.host
}

// Authenticate exchanges username and password for a token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (Token, error) {
	payload, err := json.Marshal(tokenRequest{Username: username, Password: password})
	if err != nil {
		return Token{}, &AuthError{Host: c.host, Err: fmt.Errorf("failed to marshal request body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return Token{}, &AuthError{Host: c.host, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	log.WithField("host", c.host).Debug("requesting token")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, &AuthError{Host: c.host, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &AuthError{Host: c.host, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Token{}, &AuthError{Host: c.host, StatusCode: resp.StatusCode, BodyExcerpt: excerpt(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, &AuthError{Host: c.host, StatusCode: resp.StatusCode, BodyExcerpt: excerpt(body), Err: fmt.Errorf("failed to decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return Token{}, &AuthError{Host: c.host, StatusCode: resp.StatusCode, BodyExcerpt: "response carried no accessToken"}
	}

	log.WithField("host", c.host).Debug("token obtained")
	return Token{AccessToken: tr.AccessToken}, nil
}

// get issues an authenticated GET and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, token Token, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Host: c.host, Path: path, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Host: c.host, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Host: c.host, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Host: c.host, Path: path, StatusCode: resp.StatusCode, BodyExcerpt: excerpt(body)}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &FetchError{Host: c.host, Path: path, BodyExcerpt: excerpt(body), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
