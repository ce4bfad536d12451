package credential

import "context"

type Repository interface {
	Create(ctx context.Context, cred *Credential) error
	FindByEnvironment(ctx context.Context, environmentID string, filters CredentialFilters) ([]Credential, error)
	FindByID(ctx context.Context, id string) (*Credential, error)
	History(ctx context.Context, credentialID string) ([]PasswordHistory, error)
	HasHistory(ctx context.Context, credentialIDs []string) (map[string]bool, error)
	Supersede(ctx context.Context, cred *Credential, next Record, entry HistoryEntry) error
	Touch(ctx context.Context, cred *Credential, next Record) error
	Delete(ctx context.Context, id string) error
	DeleteByEnvironment(ctx context.Context, environmentID string) error
	Transaction(ctx context.Context, fn func(Repository) error) error
}
