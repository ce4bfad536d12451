package vcf

import (
	"context"
	"encoding/json"
	"fmt"
)

const credentialsPath = "/v1/credentials"

type ManagerOperations interface {
	Authenticate(ctx context.Context, username, password string) (Token, error)
	FetchDescriptors(ctx context.Context, token Token) ([]any, error)
}

type Manager struct {
	*Client
}

func NewManager(cfg Config) (*Manager, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{Client: c}, nil
}

// FetchDescriptors enumerates the provisioned components known to the
// manager together with their credentials. Descriptors are returned raw.
func (m *Manager) FetchDescriptors(ctx context.Context, token Token) ([]any, error) {
	var page struct {
		Elements json.RawMessage `json:"elements"`
	}
	if err := m.get(ctx, token, credentialsPath, &page); err != nil {
		return nil, err
	}
	if len(page.Elements) == 0 || string(page.Elements) == "null" {
		return nil, &FetchError{Host: m.host, Path: credentialsPath, Err: fmt.Errorf("response carried no elements")}
	}

	var descriptors []any
	if err := json.Unmarshal(page.Elements, &descriptors); err != nil {
		return nil, &FetchError{Host: m.host, Path: credentialsPath, Err: fmt.Errorf("elements is not a list: %w", err)}
	}
	return descriptors, nil
}
