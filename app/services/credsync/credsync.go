// Package credsync runs credential sync passes: it fetches from the
// configured upstream sources, extracts records, reconciles them against
// stored credentials and applies the resulting plan.
package credsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vcfcreds/domain/credential"
	"vcfcreds/domain/environment"
	"vcfcreds/internal/extract"
	"vcfcreds/internal/reconcile"
	"vcfcreds/internal/syncmetrics"
	"vcfcreds/internal/vcf"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type InstallerFactory func(cfg vcf.Config) (vcf.InstallerOperations, error)

type ManagerFactory func(cfg vcf.Config) (vcf.ManagerOperations, error)

func defaultInstaller(cfg vcf.Config) (vcf.InstallerOperations, error) {
	inst, err := vcf.NewInstaller(cfg)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func defaultManager(cfg vcf.Config) (vcf.ManagerOperations, error) {
	mgr, err := vcf.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return mgr, nil
}

// SourceStatus reports how one source fared in a pass.
type SourceStatus struct {
	Provenance  credential.Provenance `json:"source"`
	Host        string                `json:"host"`
	OK          bool                  `json:"ok"`
	Deployments int                   `json:"deployments,omitempty"`
	Records     int                   `json:"records"`
	Error       string                `json:"error,omitempty"`
}

// Result is the outcome of RunSync. Records holds every extracted record in
// source order, installer first.
type Result struct {
	SyncID   string
	Plan     reconcile.Plan
	Warnings []credential.Warning
	Records  []credential.Record
	Sources  []SourceStatus
}

// Complete reports whether every configured source succeeded.
func (r Result) Complete() bool {
	for _, s := range r.Sources {
		if !s.OK {
			return false
		}
	}
	return len(r.Sources) > 0
}

// Clean reports whether the pass is complete and no deployment or section
// was skipped along the way, so that an absent credential really is gone.
func (r Result) Clean() bool {
	if !r.Complete() {
		return false
	}
	for _, w := range r.Warnings {
		if w.Kind == credential.WarningSourceFailure || w.Kind == credential.WarningExtraction {
			return false
		}
	}
	return true
}

// Applied counts the writes made for one plan.
type Applied struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	Missing   int `json:"missing"`
}

// Outcome is what SyncEnvironment reports.
type Outcome struct {
	Result  Result
	Applied Applied
}

type ConnectionResult struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
}

type Service struct {
	credentials  credential.Repository
	environments environment.Repository
	engine       *extract.Engine
	reconciler   *reconcile.Reconciler
	newInstaller InstallerFactory
	newManager   ManagerFactory
	metrics      *syncmetrics.Recorder
	timeout      time.Duration
	pruneMissing bool
	now          func() time.Time
	flight       singleflight.Group
}

type Option func(*Service)

func WithInstallerFactory(f InstallerFactory) Option {
	return func(s *Service) {
		s.newInstaller = f
	}
}

func WithManagerFactory(f ManagerFactory) Option {
	return func(s *Service) {
		s.newManager = f
	}
}

func WithMetrics(m *syncmetrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSourceTimeout bounds each upstream request.
func WithSourceTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithPruneMissing deletes stored credentials that a clean pass no longer
// extracted.
func WithPruneMissing(prune bool) Option {
	return func(s *Service) {
		s.pruneMissing = prune
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service. Both repositories may be nil when only RunSync is
// used; existing credentials are then treated as empty.
func New(credentials credential.Repository, environments environment.Repository, opts ...Option) *Service {
	s := &Service{
		credentials:  credentials,
		environments: environments,
		engine:       extract.NewEngine(),
		newInstaller: defaultInstaller,
		newManager:   defaultManager,
		metrics:      syncmetrics.Default(),
		timeout:      vcf.DefaultTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = reconcile.NewReconciler(reconcile.WithClock(s.now))
	return s
}

// RunSync fetches and extracts every configured source of cfg and reconciles
// the records against what is stored for cfg.DeploymentID. It writes nothing.
// A source that fails while another succeeds becomes a SOURCE_FAILURE
// warning; a *SyncError is returned only when no source succeeded.
func (s *Service) RunSync(ctx context.Context, cfg DeploymentConfig) (Result, error) {
	start := time.Now()
	res := Result{SyncID: uuid.NewString()}
	logger := log.WithFields(log.Fields{
		"environment_id": cfg.DeploymentID,
		"sync_id":        res.SyncID,
	})

	if !cfg.configured() {
		s.metrics.SyncFinished(syncmetrics.ResultFailure, time.Since(start))
		return res, &SyncError{DeploymentID: cfg.DeploymentID, Errs: multierror.Append(nil, environment.ErrNoSource)}
	}

	var existing []credential.Credential
	if s.credentials != nil {
		var err error
		existing, err = s.credentials.FindByEnvironment(ctx, cfg.DeploymentID, credential.CredentialFilters{})
		if err != nil {
			s.metrics.SyncFinished(syncmetrics.ResultFailure, time.Since(start))
			return res, fmt.Errorf("failed to load stored credentials: %w", err)
		}
	}

	logger.Info("sync started")

	var errs *multierror.Error
	sources := []struct {
		provenance credential.Provenance
		cfg        *SourceConfig
		fetch      func(context.Context, SourceConfig, extract.Scope) (extract.Output, int, error)
	}{
		{credential.ProvenanceInstaller, cfg.Installer, s.fetchInstaller},
		{credential.ProvenanceManager, cfg.Manager, s.fetchManager},
	}
	for _, src := range sources {
		if src.cfg == nil {
			continue
		}
		srcLogger := logger.WithFields(log.Fields{"source": src.provenance, "host": src.cfg.Host})
		scope := extract.Scope{Provenance: src.provenance, DeploymentID: cfg.DeploymentID, Logger: srcLogger}

		out, deployments, err := src.fetch(ctx, *src.cfg, scope)
		status := SourceStatus{Provenance: src.provenance, Host: src.cfg.Host, Deployments: deployments}
		s.metrics.SourceFetched(src.provenance, err == nil)

		if err != nil {
			srcLogger.WithError(err).Warn("source failed")
			errs = multierror.Append(errs, fmt.Errorf("%s %s: %w", src.provenance, src.cfg.Host, err))
			status.Error = err.Error()
			res.Warnings = append(res.Warnings, credential.Warning{
				Kind:     credential.WarningSourceFailure,
				Hostname: src.cfg.Host,
				Message:  err.Error(),
			})
			res.Warnings = append(res.Warnings, out.Warnings...)
			res.Sources = append(res.Sources, status)
			continue
		}

		status.OK = true
		status.Records = len(out.Records)
		res.Sources = append(res.Sources, status)
		res.Records = append(res.Records, out.Records...)
		res.Warnings = append(res.Warnings, out.Warnings...)
		s.metrics.RecordsExtracted(src.provenance, len(out.Records))
		srcLogger.WithField("records", len(out.Records)).Debug("source extracted")
	}

	if errs != nil && len(errs.Errors) == len(res.Sources) {
		s.metrics.Warnings(res.Warnings)
		s.metrics.SyncFinished(syncmetrics.ResultFailure, time.Since(start))
		logger.WithError(errs).Error("sync failed")
		return res, &SyncError{DeploymentID: cfg.DeploymentID, Errs: errs}
	}

	res.Plan = s.reconciler.Reconcile(existing, res.Records)
	res.Warnings = append(res.Warnings, res.Plan.Warnings...)

	outcome := syncmetrics.ResultSuccess
	if errs != nil {
		outcome = syncmetrics.ResultPartial
	}
	s.metrics.Warnings(res.Warnings)
	s.metrics.SyncFinished(outcome, time.Since(start))

	stats := res.Plan.Stats()
	logger.WithFields(log.Fields{
		"result":    outcome,
		"records":   len(res.Records),
		"warnings":  len(res.Warnings),
		"created":   stats.Created,
		"updated":   stats.Updated,
		"unchanged": stats.Unchanged,
		"missing":   stats.Missing,
	}).Info("sync finished")

	return res, nil
}

func (s *Service) clientConfig(src SourceConfig) vcf.Config {
	return vcf.Config{Host: src.Host, VerifyTLS: src.VerifyTLS, Timeout: s.timeout}
}

// fetchInstaller extracts every deployment the installer knows. A
// deployment whose specification cannot be read is skipped with a warning;
// the source fails only when none can be read.
func (s *Service) fetchInstaller(ctx context.Context, src SourceConfig, scope extract.Scope) (extract.Output, int, error) {
	var out extract.Output

	client, err := s.newInstaller(s.clientConfig(src))
	if err != nil {
		return out, 0, err
	}
	token, err := client.Authenticate(ctx, src.Username, src.Password)
	if err != nil {
		return out, 0, err
	}
	deployments, err := client.ListDeployments(ctx, token)
	if err != nil {
		return out, 0, err
	}
	if len(deployments) == 0 {
		out.Warnings = append(out.Warnings, credential.Warning{
			Kind:     credential.WarningExtraction,
			Hostname: src.Host,
			Message:  "installer lists no deployments",
		})
		return out, 0, nil
	}

	var firstErr error
	read := 0
	for _, d := range deployments {
		if d.ID == "" {
			out.Warnings = append(out.Warnings, credential.Warning{
				Kind:     credential.WarningExtraction,
				Hostname: src.Host,
				Message:  fmt.Sprintf("deployment %q has no id", d.Name),
			})
			continue
		}

		doc, err := client.FetchSpecification(ctx, token, d.ID)
		if err == nil {
			var extracted extract.Output
			extracted, err = s.engine.ExtractAll(doc, scope)
			if err == nil {
				read++
				out.Records = append(out.Records, extracted.Records...)
				out.Warnings = append(out.Warnings, extracted.Warnings...)
				continue
			}
		}

		if firstErr == nil {
			firstErr = err
		}
		out.Warnings = append(out.Warnings, credential.Warning{
			Kind:     credential.WarningSourceFailure,
			Hostname: src.Host,
			Message:  fmt.Sprintf("deployment %s: %v", d.DisplayName(), err),
		})
		if ctx.Err() != nil {
			return out, len(deployments), ctx.Err()
		}
	}

	if read == 0 {
		if firstErr == nil {
			firstErr = errors.New("no deployment could be read")
		}
		return out, len(deployments), fmt.Errorf("no deployment specification could be read: %w", firstErr)
	}
	return out, len(deployments), nil
}

func (s *Service) fetchManager(ctx context.Context, src SourceConfig, scope extract.Scope) (extract.Output, int, error) {
	client, err := s.newManager(s.clientConfig(src))
	if err != nil {
		return extract.Output{}, 0, err
	}
	token, err := client.Authenticate(ctx, src.Username, src.Password)
	if err != nil {
		return extract.Output{}, 0, err
	}
	descriptors, err := client.FetchDescriptors(ctx, token)
	if err != nil {
		return extract.Output{}, 0, err
	}
	out, err := s.engine.ExtractAll(descriptors, scope)
	if err != nil {
		return extract.Output{}, 0, err
	}
	return out, 0, nil
}

// Apply writes the plan of res for environmentID in one transaction.
// Missing credentials are deleted only when pruning is enabled and the pass
// is clean.
func (s *Service) Apply(ctx context.Context, environmentID string, res Result) (Applied, error) {
	applied := Applied{Missing: len(res.Plan.Missing)}
	if s.credentials == nil {
		return applied, errors.New("no credential repository configured")
	}

	now := s.now()
	err := s.credentials.Transaction(ctx, func(tx credential.Repository) error {
		for _, rec := range res.Plan.ToCreate {
			c := credential.Credential{EnvironmentID: environmentID, LastUpdated: now}
			c.Apply(rec)
			if err := tx.Create(ctx, &c); err != nil {
				return fmt.Errorf("failed to create %s@%s: %w", rec.Username, rec.Hostname, err)
			}
		}

		for _, u := range res.Plan.ToUpdate {
			c := u.Existing
			if err := tx.Supersede(ctx, &c, u.Incoming, u.History); err != nil {
				return fmt.Errorf("failed to update %s: %w", c.ID, err)
			}
		}

		for _, m := range res.Plan.Unchanged {
			if !metadataChanged(m.Existing, m.Incoming) {
				continue
			}
			c := m.Existing
			if err := tx.Touch(ctx, &c, m.Incoming); err != nil {
				return fmt.Errorf("failed to refresh %s: %w", c.ID, err)
			}
		}

		if s.pruneMissing && res.Clean() {
			for _, c := range res.Plan.Missing {
				if err := tx.Delete(ctx, c.ID); err != nil && !errors.Is(err, credential.ErrNotFound) {
					return fmt.Errorf("failed to delete %s: %w", c.ID, err)
				}
			}
			applied.Deleted = len(res.Plan.Missing)
		}
		return nil
	})
	if err != nil {
		return Applied{}, err
	}

	applied.Created = len(res.Plan.ToCreate)
	applied.Updated = len(res.Plan.ToUpdate)
	applied.Unchanged = len(res.Plan.Unchanged)
	return applied, nil
}

func metadataChanged(c credential.Credential, r credential.Record) bool {
	return c.AuthMechanism != r.AuthMechanism ||
		c.AccountClass != r.AccountClass ||
		c.Domain != r.DomainName() ||
		c.Provenance != r.Provenance
}

// SyncEnvironment runs and applies one pass for env and records the sync
// time. Concurrent calls for the same environment share a single pass.
func (s *Service) SyncEnvironment(ctx context.Context, env environment.Environment) (Outcome, error) {
	v, err, shared := s.flight.Do(env.ID, func() (any, error) {
		res, err := s.RunSync(ctx, ConfigFor(env))
		if err != nil {
			return Outcome{Result: res}, err
		}

		applied, err := s.Apply(ctx, env.ID, res)
		if err != nil {
			return Outcome{Result: res}, fmt.Errorf("failed to apply sync: %w", err)
		}

		if s.environments != nil {
			if err := s.environments.MarkSynced(ctx, env.ID, s.now()); err != nil {
				return Outcome{Result: res, Applied: applied}, fmt.Errorf("failed to record sync time: %w", err)
			}
		}
		return Outcome{Result: res, Applied: applied}, nil
	})
	if shared {
		log.WithField("environment_id", env.ID).Debug("joined sync already in progress")
	}

	outcome, _ := v.(Outcome)
	return outcome, err
}

// TestConnection authenticates against every configured source of cfg.
func (s *Service) TestConnection(ctx context.Context, cfg DeploymentConfig) map[credential.Provenance]ConnectionResult {
	results := make(map[credential.Provenance]ConnectionResult, 2)

	if cfg.Installer != nil {
		results[credential.ProvenanceInstaller] = s.probe(ctx, *cfg.Installer, func(c vcf.Config) (authenticator, error) {
			return s.newInstaller(c)
		})
	}
	if cfg.Manager != nil {
		results[credential.ProvenanceManager] = s.probe(ctx, *cfg.Manager, func(c vcf.Config) (authenticator, error) {
			return s.newManager(c)
		})
	}
	return results
}

type authenticator interface {
	Authenticate(ctx context.Context, username, password string) (vcf.Token, error)
}

func (s *Service) probe(ctx context.Context, src SourceConfig, open func(vcf.Config) (authenticator, error)) ConnectionResult {
	client, err := open(s.clientConfig(src))
	if err != nil {
		return ConnectionResult{Message: err.Error()}
	}
	if _, err := client.Authenticate(ctx, src.Username, src.Password); err != nil {
		log.WithField("host", src.Host).WithError(err).Warn("connection test failed")
		return ConnectionResult{Message: err.Error()}
	}
	return ConnectionResult{OK: true, Message: "Connection successful"}
}
