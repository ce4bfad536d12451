package gorm

import (
	"context"
	"errors"
	"time"

	"vcfcreds/domain/credential"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) credential.Repository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Create(ctx context.Context, c *credential.Credential) error {
	c.ID = "crd_" + ulid.Make().String()
	if c.LastUpdated.IsZero() {
		c.LastUpdated = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CredentialRepository) FindByEnvironment(ctx context.Context, environmentID string, filters credential.CredentialFilters) ([]credential.Credential, error) {
	var creds []credential.Credential

	query := r.db.WithContext(ctx).Where("environment_id = ?", environmentID)

	if filters.ResourceKind != nil {
		query = query.Where("resource_kind = ?", *filters.ResourceKind)
	}

	if filters.Provenance != nil {
		query = query.Where("provenance = ?", *filters.Provenance)
	}

	err := query.Order("hostname, username, resource_kind").Find(&creds).Error
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*credential.Credential, error) {
	var c credential.Credential
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, credential.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CredentialRepository) History(ctx context.Context, credentialID string) ([]credential.PasswordHistory, error) {
	var history []credential.PasswordHistory
	err := r.db.WithContext(ctx).
		Where("credential_id = ?", credentialID).
		Order("changed_at DESC").
		Find(&history).Error
	return history, err
}

func (r *CredentialRepository) HasHistory(ctx context.Context, credentialIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(credentialIDs))
	if len(credentialIDs) == 0 {
		return result, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&credential.PasswordHistory{}).
		Distinct("credential_id").
		Where("credential_id IN ?", credentialIDs).
		Pluck("credential_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// Supersede archives the stored password and overwrites the credential with
// next in one transaction.
func (r *CredentialRepository) Supersede(ctx context.Context, c *credential.Credential, next credential.Record, entry credential.HistoryEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		h := &credential.PasswordHistory{
			ID:           "pwh_" + ulid.Make().String(),
			CredentialID: c.ID,
			Password:     entry.OldPassword,
			ChangedAt:    entry.SupersededAt,
			ChangedBy:    entry.ChangeSource,
		}
		if err := tx.Create(h).Error; err != nil {
			return err
		}

		c.Apply(next)
		c.LastUpdated = entry.SupersededAt
		return tx.Save(c).Error
	})
}

// Touch refreshes the non-secret fields of c from next.
func (r *CredentialRepository) Touch(ctx context.Context, c *credential.Credential, next credential.Record) error {
	c.Apply(next)
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("credential_id = ?", id).Delete(&credential.PasswordHistory{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&credential.Credential{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return credential.ErrNotFound
		}
		return nil
	})
}

func (r *CredentialRepository) DeleteByEnvironment(ctx context.Context, environmentID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&credential.Credential{}).Select("id").Where("environment_id = ?", environmentID)
		if err := tx.Where("credential_id IN (?)", owned).Delete(&credential.PasswordHistory{}).Error; err != nil {
			return err
		}
		return tx.Where("environment_id = ?", environmentID).Delete(&credential.Credential{}).Error
	})
}

func (r *CredentialRepository) Transaction(ctx context.Context, fn func(credential.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &CredentialRepository{db: tx}
		return fn(txRepo)
	})
}
