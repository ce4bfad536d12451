// Package syncjob schedules periodic credential syncs for every environment
// that has sync enabled.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vcfcreds/app/services/credsync"
	"vcfcreds/domain/environment"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

type Syncer interface {
	SyncEnvironment(ctx context.Context, env environment.Environment) (credsync.Outcome, error)
}

type EnvironmentFinder interface {
	FindAll(ctx context.Context, filters environment.EnvironmentFilters) ([]environment.Environment, error)
	FindByID(ctx context.Context, id string) (*environment.Environment, error)
}

type SyncJobConfig struct {
	// Concurrency bounds how many environments SyncAll syncs at once.
	Concurrency int
}

type SyncJob struct {
	config  SyncJobConfig
	syncer  Syncer
	envs    EnvironmentFinder
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(syncer Syncer, envs EnvironmentFinder) *SyncJob {
	return NewWithConfig(SyncJobConfig{Concurrency: DefaultConcurrency}, syncer, envs)
}

func NewWithConfig(cfg SyncJobConfig, syncer Syncer, envs EnvironmentFinder) *SyncJob {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	logger := cron.PrintfLogger(log.WithField("component", "syncjob"))
	return &SyncJob{
		config:  cfg,
		syncer:  syncer,
		envs:    envs,
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
	}
}

// Register schedules every sync-enabled environment and starts the
// scheduler. Jobs run with ctx until it is canceled or Shutdown is called.
func (j *SyncJob) Register(ctx context.Context) (context.CancelFunc, error) {
	envs, err := j.envs.FindAll(ctx, environment.EnvironmentFilters{SyncEnabled: ptr(true)})
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}

	j.mu.Lock()
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.mu.Unlock()

	for _, env := range envs {
		j.Schedule(env)
	}
	j.cron.Start()

	log.WithField("environments", len(envs)).Info("sync scheduler started")
	return j.cancel, nil
}

// Schedule (re)creates the entry for env. An environment with sync
// disabled is unscheduled instead.
func (j *SyncJob) Schedule(env environment.Environment) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if id, ok := j.entries[env.ID]; ok {
		j.cron.Remove(id)
		delete(j.entries, env.ID)
	}
	if !env.SyncEnabled {
		return
	}

	envID := env.ID
	j.entries[envID] = j.cron.Schedule(cron.Every(env.SyncInterval()), cron.FuncJob(func() {
		j.run(envID)
	}))
	log.WithFields(log.Fields{
		"environment_id": envID,
		"interval":       env.SyncInterval().String(),
	}).Debug("sync scheduled")
}

func (j *SyncJob) Unschedule(envID string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if id, ok := j.entries[envID]; ok {
		j.cron.Remove(id)
		delete(j.entries, envID)
	}
}

// run reloads the environment so edits made since scheduling apply.
func (j *SyncJob) run(envID string) {
	j.mu.Lock()
	ctx := j.ctx
	j.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	j.wg.Add(1)
	defer j.wg.Done()

	logger := log.WithField("environment_id", envID)
	env, err := j.envs.FindByID(ctx, envID)
	if errors.Is(err, environment.ErrNotFound) {
		logger.Info("environment removed, dropping scheduled sync")
		j.Unschedule(envID)
		return
	}
	if err != nil {
		logger.WithError(err).Error("failed to load environment")
		return
	}
	if !env.SyncEnabled {
		j.Unschedule(envID)
		return
	}

	if _, err := j.syncer.SyncEnvironment(ctx, *env); err != nil {
		logger.WithError(err).Error("scheduled sync failed")
	}
}

// SyncAll syncs every sync-enabled environment, at most Concurrency at a
// time. A failing environment does not stop the others.
func (j *SyncJob) SyncAll(ctx context.Context) error {
	envs, err := j.envs.FindAll(ctx, environment.EnvironmentFilters{SyncEnabled: ptr(true)})
	if err != nil {
		return fmt.Errorf("failed to list environments: %w", err)
	}

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	var g errgroup.Group
	g.SetLimit(j.config.Concurrency)
	for _, env := range envs {
		g.Go(func() error {
			if _, err := j.syncer.SyncEnvironment(ctx, env); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", env.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs.ErrorOrNil()
}

func (j *SyncJob) Shutdown() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	<-j.cron.Stop().Done()
	j.wg.Wait()
}

func ptr[T any](v T) *T {
	return &v
}
