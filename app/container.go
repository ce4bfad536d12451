// Package app wires repositories, services and jobs for the server.
package app

import (
	"time"

	"vcfcreds/app/jobs/syncjob"
	"vcfcreds/app/services/credsync"
	"vcfcreds/domain/credential"
	"vcfcreds/domain/environment"
	gormRepo "vcfcreds/internal/repository/gorm"
	"vcfcreds/internal/syncmetrics"

	"gorm.io/gorm"
)

type ContainerConfig struct {
	SourceTimeout   time.Duration
	SyncConcurrency int
	PruneMissing    bool
	Metrics         *syncmetrics.Recorder
}

type Container struct {
	DB                    *gorm.DB
	EnvironmentRepository environment.Repository
	CredentialRepository  credential.Repository
	SyncService           *credsync.Service
	SyncJob               *syncjob.SyncJob
}

func NewContainer(db *gorm.DB, cfg ContainerConfig) *Container {
	// Initialize repositories
	envRepo := gormRepo.NewEnvironmentRepository(db)
	credRepo := gormRepo.NewCredentialRepository(db)

	opts := []credsync.Option{credsync.WithPruneMissing(cfg.PruneMissing)}
	if cfg.SourceTimeout > 0 {
		opts = append(opts, credsync.WithSourceTimeout(cfg.SourceTimeout))
	}
	if cfg.Metrics != nil {
		opts = append(opts, credsync.WithMetrics(cfg.Metrics))
	}

	// Initialize services
	syncSvc := credsync.New(credRepo, envRepo, opts...)
	job := syncjob.NewWithConfig(syncjob.SyncJobConfig{Concurrency: cfg.SyncConcurrency}, syncSvc, envRepo)

	return &Container{
		DB:                    db,
		EnvironmentRepository: envRepo,
		CredentialRepository:  credRepo,
		SyncService:           syncSvc,
		SyncJob:               job,
	}
}

func (c *Container) Migrate() error {
	return c.DB.AutoMigrate(
		&environment.Environment{},
		&credential.Credential{},
		&credential.PasswordHistory{},
	)
}
