package gorm

import (
	"context"
	"errors"
	"strings"
	"time"

	"vcfcreds/domain/environment"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

type EnvironmentRepository struct {
	db *gorm.DB
}

func NewEnvironmentRepository(db *gorm.DB) environment.Repository {
	return &EnvironmentRepository{db: db}
}

func (r *EnvironmentRepository) Create(ctx context.Context, e *environment.Environment) error {
	e.ID = "env_" + ulid.Make().String()
	if e.SyncIntervalMinutes <= 0 {
		e.SyncIntervalMinutes = environment.DefaultSyncIntervalMinutes
	}
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r *EnvironmentRepository) Update(ctx context.Context, e *environment.Environment) error {
	var existing environment.Environment
	if err := r.db.WithContext(ctx).Select("id").First(&existing, "id = ?", e.ID).Error; err != nil {
		return translate(err)
	}
	return translate(r.db.WithContext(ctx).Save(e).Error)
}

func (r *EnvironmentRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&environment.Environment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return environment.ErrNotFound
	}
	return nil
}

func (r *EnvironmentRepository) FindByID(ctx context.Context, id string) (*environment.Environment, error) {
	var e environment.Environment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *EnvironmentRepository) FindAll(ctx context.Context, filters environment.EnvironmentFilters) ([]environment.Environment, error) {
	var envs []environment.Environment

	query := r.db.WithContext(ctx)

	if filters.SyncEnabled != nil {
		query = query.Where("sync_enabled = ?", *filters.SyncEnabled)
	}

	err := query.Order("name").Find(&envs).Error
	if err != nil {
		return nil, err
	}
	return envs, nil
}

func (r *EnvironmentRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&environment.Environment{}).Where("id = ?", id).Update("last_sync", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return environment.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return environment.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return environment.ErrDuplicateName
	default:
		return err
	}
}
