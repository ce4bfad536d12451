package vcf

import (
	"context"
	"fmt"
	"net/url"
)

// Deployment is one deployment known to the installer.
type Deployment struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// DisplayName prefers the name and falls back to the ID.
func (d Deployment) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

type deploymentList struct {
	Elements []Deployment `json:"elements"`
}

type InstallerOperations interface {
	Authenticate(ctx context.Context, username, password string) (Token, error)
	ListDeployments(ctx context.Context, token Token) ([]Deployment, error)
	FetchSpecification(ctx context.Context, token Token, deploymentID string) (any, error)
}

type Installer struct {
	*Client
}

func NewInstaller(cfg Config) (*Installer, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Installer{Client: c}, nil
}

func (i *Installer) ListDeployments(ctx context.Context, token Token) ([]Deployment, error) {
	var list deploymentList
	if err := i.get(ctx, token, "/v1/sddcs", &list); err != nil {
		return nil, err
	}
	return list.Elements, nil
}

// FetchSpecification returns the decoded specification document of one
// deployment. The document shape varies by product version and is left to
// the extraction rules.
func (i *Installer) FetchSpecification(ctx context.Context, token Token, deploymentID string) (any, error) {
	if deploymentID == "" {
		return nil, &FetchError{Host: i.host, Path: "/v1/sddcs/{id}/spec", Err: fmt.Errorf("deployment id is required")}
	}

	var doc any
	path := fmt.Sprintf("/v1/sddcs/%s/spec", url.PathEscape(deploymentID))
	if err := i.get(ctx, token, path, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
