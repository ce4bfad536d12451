package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client interface for interacting with the vcfcreds API
type Client interface {
	ListEnvironments() ([]Environment, error)
	SyncEnvironment(envID string) (*SyncResult, error)
	ListCredentials(envID string, filters *CredentialFilters) ([]Credential, error)
}

// HTTPClient implements the Client interface
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new HTTP client. Syncs wait on upstream
// endpoints, so the timeout is generous.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type Environment struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	InstallerHost       string     `json:"installer_host"`
	ManagerHost         string     `json:"manager_host"`
	SyncEnabled         bool       `json:"sync_enabled"`
	SyncIntervalMinutes int        `json:"sync_interval_minutes"`
	LastSync            *time.Time `json:"last_sync"`
}

type Warning struct {
	Kind     string `json:"kind"`
	Rule     string `json:"rule,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Message  string `json:"message"`
}

type SourceStatus struct {
	Source  string `json:"source"`
	Host    string `json:"host"`
	OK      bool   `json:"ok"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

type SyncStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	Missing   int `json:"missing"`
}

// SyncResult is the server's report of one sync pass.
type SyncResult struct {
	SyncID   string         `json:"sync_id"`
	Success  bool           `json:"success"`
	Complete bool           `json:"complete"`
	Stats    SyncStats      `json:"stats"`
	Sources  []SourceStatus `json:"sources"`
	Warnings []Warning      `json:"warnings"`
	Error    string         `json:"error,omitempty"`
}

type Credential struct {
	ID             string    `json:"id"`
	Hostname       string    `json:"hostname"`
	Username       string    `json:"username"`
	Password       string    `json:"password"`
	CredentialType string    `json:"credential_type"`
	AccountType    string    `json:"account_type"`
	ResourceType   string    `json:"resource_type"`
	DomainName     string    `json:"domain_name"`
	Source         string    `json:"source"`
	LastUpdated    time.Time `json:"last_updated"`
	HasHistory     bool      `json:"has_history"`
}

// CredentialFilters narrows ListCredentials
type CredentialFilters struct {
	ResourceType string
	Source       string
}

// ListEnvironments lists every environment
func (c *HTTPClient) ListEnvironments() ([]Environment, error) {
	var envs []Environment
	if err := c.do(http.MethodGet, c.baseURL+"/api/v1/environments", http.StatusOK, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// SyncEnvironment runs a sync pass on the server. A pass in which every
// source failed is returned together with an error.
func (c *HTTPClient) SyncEnvironment(envID string) (*SyncResult, error) {
	u := fmt.Sprintf("%s/api/v1/environments/%s/sync", c.baseURL, url.PathEscape(envID))

	resp, err := c.client.Post(u, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadGateway:
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Success {
		return &result, fmt.Errorf("sync failed: %s", result.Error)
	}
	return &result, nil
}

// ListCredentials lists the credentials stored for an environment
func (c *HTTPClient) ListCredentials(envID string, filters *CredentialFilters) ([]Credential, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/environments/%s/credentials", c.baseURL, url.PathEscape(envID)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if filters != nil {
		q := u.Query()
		if filters.ResourceType != "" {
			q.Add("resource_type", filters.ResourceType)
		}
		if filters.Source != "" {
			q.Add("source", filters.Source)
		}
		u.RawQuery = q.Encode()
	}

	var creds []Credential
	if err := c.do(http.MethodGet, u.String(), http.StatusOK, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (c *HTTPClient) do(method, u string, want int, result any) error {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
