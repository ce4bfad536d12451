package credsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"vcfcreds/domain/credential"
	"vcfcreds/domain/environment"
	gormrepo "vcfcreds/internal/repository/gorm"
	"vcfcreds/internal/syncmetrics"
	"vcfcreds/internal/vcf"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockInstaller struct {
	mock.Mock
}

func (m *MockInstaller) Authenticate(ctx context.Context, username, password string) (vcf.Token, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(vcf.Token), args.Error(1)
}

func (m *MockInstaller) ListDeployments(ctx context.Context, token vcf.Token) ([]vcf.Deployment, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vcf.Deployment), args.Error(1)
}

func (m *MockInstaller) FetchSpecification(ctx context.Context, token vcf.Token, deploymentID string) (any, error) {
	args := m.Called(ctx, token, deploymentID)
	return args.Get(0), args.Error(1)
}

type MockManager struct {
	mock.Mock
}

func (m *MockManager) Authenticate(ctx context.Context, username, password string) (vcf.Token, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(vcf.Token), args.Error(1)
}

func (m *MockManager) FetchDescriptors(ctx context.Context, token vcf.Token) ([]any, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]any), args.Error(1)
}

var (
	token  = vcf.Token{AccessToken: "tok"}
	frozen = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(doc), &v))
	return v
}

func hostsSpec(t *testing.T, password string) any {
	return decode(t, fmt.Sprintf(`{"hostSpecs":[
		{"hostname":"esxi-1","credentials":{"username":"root","password":%q}},
		{"hostname":"esxi-2","credentials":{"username":"root","password":"E2"}}
	]}`, password))
}

func descriptors(t *testing.T) []any {
	return decode(t, `[
		{"username":"svc-vcf","password":"M1","credentialType":"SSO","accountType":"SERVICE",
		 "resource":{"resourceName":"vc.lab","resourceType":"VCENTER","domainName":"mgmt"}}
	]`).([]any)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&environment.Environment{}, &credential.Credential{}, &credential.PasswordHistory{}))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type fixture struct {
	service   *Service
	creds     credential.Repository
	envs      environment.Repository
	installer *MockInstaller
	manager   *MockManager
}

func setupTestService(t *testing.T, opts ...Option) fixture {
	t.Helper()
	db := setupTestDB(t)
	f := fixture{
		creds:     gormrepo.NewCredentialRepository(db),
		envs:      gormrepo.NewEnvironmentRepository(db),
		installer: new(MockInstaller),
		manager:   new(MockManager),
	}
	opts = append([]Option{
		WithInstallerFactory(func(vcf.Config) (vcf.InstallerOperations, error) { return f.installer, nil }),
		WithManagerFactory(func(vcf.Config) (vcf.ManagerOperations, error) { return f.manager, nil }),
		WithMetrics(syncmetrics.New(prometheus.NewRegistry())),
		WithClock(func() time.Time { return frozen }),
	}, opts...)
	f.service = New(f.creds, f.envs, opts...)
	return f
}

func installerOnly(id string) DeploymentConfig {
	return DeploymentConfig{
		DeploymentID: id,
		Installer:    &SourceConfig{Host: "installer.lab", Username: "admin@local", Password: "pw"},
	}
}

func bothSources(id string) DeploymentConfig {
	cfg := installerOnly(id)
	cfg.Manager = &SourceConfig{Host: "sddc.lab", Username: "admin@local", Password: "pw"}
	return cfg
}

func (f fixture) expectInstaller(t *testing.T, password string) {
	f.installer.On("Authenticate", mock.Anything, "admin@local", "pw").Return(token, nil)
	f.installer.On("ListDeployments", mock.Anything, token).Return([]vcf.Deployment{{ID: "d-1", Name: "mgmt"}}, nil)
	f.installer.On("FetchSpecification", mock.Anything, token, "d-1").Return(hostsSpec(t, password), nil)
}

func TestRunSync(t *testing.T) {
	t.Run("fails without any configured source", func(t *testing.T) {
		f := setupTestService(t)

		_, err := f.service.RunSync(context.Background(), DeploymentConfig{DeploymentID: "env_1"})

		var syncErr *SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.ErrorIs(t, err, environment.ErrNoSource)
	})

	t.Run("plans creates for a fresh deployment", func(t *testing.T) {
		f := setupTestService(t)
		f.expectInstaller(t, "E1")

		res, err := f.service.RunSync(context.Background(), installerOnly("env_1"))

		require.NoError(t, err)
		assert.NotEmpty(t, res.SyncID)
		assert.Len(t, res.Records, 2)
		assert.Len(t, res.Plan.ToCreate, 2)
		assert.True(t, res.Complete())
		for _, r := range res.Records {
			assert.Equal(t, "env_1", r.DeploymentID)
		}
		f.installer.AssertExpectations(t)
	})

	t.Run("runs the installer before the manager", func(t *testing.T) {
		f := setupTestService(t)
		f.expectInstaller(t, "E1")
		f.manager.On("Authenticate", mock.Anything, "admin@local", "pw").Return(token, nil)
		f.manager.On("FetchDescriptors", mock.Anything, token).Return(descriptors(t), nil)

		res, err := f.service.RunSync(context.Background(), bothSources("env_1"))

		require.NoError(t, err)
		require.Len(t, res.Records, 3)
		assert.Equal(t, credential.ProvenanceInstaller, res.Records[0].Provenance)
		assert.Equal(t, credential.ProvenanceManager, res.Records[2].Provenance)
		require.Len(t, res.Sources, 2)
		assert.True(t, res.Sources[0].OK)
		assert.Equal(t, 1, res.Sources[0].Deployments)
		assert.Equal(t, 1, res.Sources[1].Records)
	})

	t.Run("degrades a failed source to a warning", func(t *testing.T) {
		f := setupTestService(t)
		f.expectInstaller(t, "E1")
		f.manager.On("Authenticate", mock.Anything, "admin@local", "pw").
			Return(vcf.Token{}, &vcf.AuthError{Host: "sddc.lab", StatusCode: 401})

		res, err := f.service.RunSync(context.Background(), bothSources("env_1"))

		require.NoError(t, err)
		assert.Len(t, res.Records, 2)
		assert.False(t, res.Complete())
		assert.False(t, res.Sources[1].OK)
		assert.NotEmpty(t, res.Sources[1].Error)

		var failures int
		for _, w := range res.Warnings {
			if w.Kind == credential.WarningSourceFailure {
				failures++
				assert.Equal(t, "sddc.lab", w.Hostname)
			}
		}
		assert.Equal(t, 1, failures)
	})

	t.Run("fails when every source fails", func(t *testing.T) {
		f := setupTestService(t)
		f.installer.On("Authenticate", mock.Anything, "admin@local", "pw").Return(vcf.Token{}, errors.New("connection refused"))
		f.manager.On("Authenticate", mock.Anything, "admin@local", "pw").Return(vcf.Token{}, errors.New("connection refused"))

		_, err := f.service.RunSync(context.Background(), bothSources("env_1"))

		var syncErr *SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.Len(t, syncErr.Errs.Errors, 2)
		assert.Contains(t, err.Error(), "installer.lab")
		assert.Contains(t, err.Error(), "sddc.lab")
	})

	t.Run("skips unreadable deployments while others succeed", func(t *testing.T) {
		f := setupTestService(t)
		f.installer.On("Authenticate", mock.Anything, "admin@local", "pw").Return(token, nil)
		f.installer.On("ListDeployments", mock.Anything, token).Return([]vcf.Deployment{{ID: "d-1"}, {ID: "d-2"}}, nil)
		f.installer.On("FetchSpecification", mock.Anything, token, "d-1").Return(nil, &vcf.FetchError{Host: "installer.lab", StatusCode: 500})
		f.installer.On("FetchSpecification", mock.Anything, token, "d-2").Return(hostsSpec(t, "E1"), nil)

		res, err := f.service.RunSync(context.Background(), installerOnly("env_1"))

		require.NoError(t, err)
		assert.Len(t, res.Records, 2)
		assert.True(t, res.Complete())
		require.NotEmpty(t, res.Warnings)
		assert.Equal(t, credential.WarningSourceFailure, res.Warnings[0].Kind)
	})

	t.Run("fails the installer when no specification can be read", func(t *testing.T) {
		f := setupTestService(t)
		f.installer.On("Authenticate", mock.Anything, "admin@local", "pw").Return(token, nil)
		f.installer.On("ListDeployments", mock.Anything, token).Return([]vcf.Deployment{{ID: "d-1"}}, nil)
		f.installer.On("FetchSpecification", mock.Anything, token, "d-1").Return(nil, &vcf.FetchError{Host: "installer.lab", StatusCode: 404})

		_, err := f.service.RunSync(context.Background(), installerOnly("env_1"))

		var syncErr *SyncError
		assert.ErrorAs(t, err, &syncErr)
	})

	t.Run("counts a failed load of stored credentials", func(t *testing.T) {
		db := setupTestDB(t)
		require.NoError(t, db.Migrator().DropTable(&credential.Credential{}))
		reg := prometheus.NewRegistry()
		service := New(gormrepo.NewCredentialRepository(db), nil, WithMetrics(syncmetrics.New(reg)))

		_, err := service.RunSync(context.Background(), installerOnly("env_1"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load stored credentials")
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP vcfcreds_sync_runs_total Sync passes by outcome
# TYPE vcfcreds_sync_runs_total counter
vcfcreds_sync_runs_total{result="failure"} 1
`), "vcfcreds_sync_runs_total"))
	})

	t.Run("never puts passwords in warnings", func(t *testing.T) {
		f := setupTestService(t)
		f.expectInstaller(t, "")

		res, err := f.service.RunSync(context.Background(), installerOnly("env_1"))

		require.NoError(t, err)
		require.NotEmpty(t, res.Warnings)
		for _, w := range res.Warnings {
			assert.NotContains(t, w.Message, "E2")
		}
	})
}

func TestApply(t *testing.T) {
	t.Run("creates then supersedes with history", func(t *testing.T) {
		f := setupTestService(t)
		ctx := context.Background()
		f.expectInstaller(t, "E1")

		res, err := f.service.RunSync(ctx, installerOnly("env_1"))
		require.NoError(t, err)
		applied, err := f.service.Apply(ctx, "env_1", res)
		require.NoError(t, err)
		assert.Equal(t, 2, applied.Created)

		f.installer.ExpectedCalls = nil
		f.expectInstaller(t, "E1-rotated")

		res, err = f.service.RunSync(ctx, installerOnly("env_1"))
		require.NoError(t, err)
		applied, err = f.service.Apply(ctx, "env_1", res)
		require.NoError(t, err)
		assert.Equal(t, Applied{Updated: 1, Unchanged: 1}, applied)

		stored, err := f.creds.FindByEnvironment(ctx, "env_1", credential.CredentialFilters{})
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, "esxi-1", stored[0].Hostname)
		assert.Equal(t, "E1-rotated", stored[0].Password)

		history, err := f.creds.History(ctx, stored[0].ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "E1", history[0].Password)
		assert.Equal(t, credential.ChangeSync, history[0].ChangedBy)
	})

	t.Run("is idempotent for an unchanged pass", func(t *testing.T) {
		f := setupTestService(t)
		ctx := context.Background()
		f.expectInstaller(t, "E1")

		for range 2 {
			res, err := f.service.RunSync(ctx, installerOnly("env_1"))
			require.NoError(t, err)
			_, err = f.service.Apply(ctx, "env_1", res)
			require.NoError(t, err)
		}

		stored, err := f.creds.FindByEnvironment(ctx, "env_1", credential.CredentialFilters{})
		require.NoError(t, err)
		assert.Len(t, stored, 2)
		has, err := f.creds.HasHistory(ctx, []string{stored[0].ID, stored[1].ID})
		require.NoError(t, err)
		assert.False(t, has[stored[0].ID])
		assert.False(t, has[stored[1].ID])
	})

	t.Run("keeps missing credentials unless pruning", func(t *testing.T) {
		f := setupTestService(t)
		ctx := context.Background()
		stale := &credential.Credential{EnvironmentID: "env_1"}
		stale.Apply(credential.Record{Hostname: "gone", Username: "root", Password: "x", ResourceKind: credential.ResourceESXiHost})
		require.NoError(t, f.creds.Create(ctx, stale))
		f.expectInstaller(t, "E1")

		res, err := f.service.RunSync(ctx, installerOnly("env_1"))
		require.NoError(t, err)
		applied, err := f.service.Apply(ctx, "env_1", res)
		require.NoError(t, err)

		assert.Equal(t, 1, applied.Missing)
		assert.Zero(t, applied.Deleted)
		_, err = f.creds.FindByID(ctx, stale.ID)
		assert.NoError(t, err)
	})

	t.Run("prunes missing credentials after a complete pass", func(t *testing.T) {
		f := setupTestService(t, WithPruneMissing(true))
		ctx := context.Background()
		stale := &credential.Credential{EnvironmentID: "env_1"}
		stale.Apply(credential.Record{Hostname: "gone", Username: "root", Password: "x", ResourceKind: credential.ResourceESXiHost})
		require.NoError(t, f.creds.Create(ctx, stale))
		f.expectInstaller(t, "E1")

		res, err := f.service.RunSync(ctx, installerOnly("env_1"))
		require.NoError(t, err)
		applied, err := f.service.Apply(ctx, "env_1", res)
		require.NoError(t, err)

		assert.Equal(t, 1, applied.Deleted)
		_, err = f.creds.FindByID(ctx, stale.ID)
		assert.ErrorIs(t, err, credential.ErrNotFound)
	})

	t.Run("keeps credentials of a deployment that could not be read", func(t *testing.T) {
		f := setupTestService(t, WithPruneMissing(true))
		ctx := context.Background()
		other := &credential.Credential{EnvironmentID: "env_1"}
		other.Apply(credential.Record{Hostname: "vc2", Username: "root", Password: "x", ResourceKind: credential.ResourceManagementVM})
		require.NoError(t, f.creds.Create(ctx, other))
		f.installer.On("Authenticate", mock.Anything, "admin@local", "pw").Return(token, nil)
		f.installer.On("ListDeployments", mock.Anything, token).Return([]vcf.Deployment{{ID: "d-1"}, {ID: "d-2"}}, nil)
		f.installer.On("FetchSpecification", mock.Anything, token, "d-1").Return(hostsSpec(t, "E1"), nil)
		f.installer.On("FetchSpecification", mock.Anything, token, "d-2").Return(nil, &vcf.FetchError{Host: "installer.lab", StatusCode: 503})

		res, err := f.service.RunSync(ctx, installerOnly("env_1"))
		require.NoError(t, err)
		assert.True(t, res.Complete())
		assert.False(t, res.Clean())
		applied, err := f.service.Apply(ctx, "env_1", res)
		require.NoError(t, err)

		assert.Equal(t, 1, applied.Missing)
		assert.Zero(t, applied.Deleted)
		_, err = f.creds.FindByID(ctx, other.ID)
		assert.NoError(t, err)
	})

	t.Run("keeps credentials of a section that failed to extract", func(t *testing.T) {
		f := setupTestService(t, WithPruneMissing(true))
		ctx := context.Background()
		vc := &credential.Credential{EnvironmentID: "env_1"}
		vc.Apply(credential.Record{Hostname: "vc1", Username: "root", Password: "x", ResourceKind: credential.ResourceManagementVM})
		require.NoError(t, f.creds.Create(ctx, vc))
		f.installer.On("Authenticate", mock.Anything, "admin@local", "pw").Return(token, nil)
		f.installer.On("ListDeployments", mock.Anything, token).Return([]vcf.Deployment{{ID: "d-1"}}, nil)
		f.installer.On("FetchSpecification", mock.Anything, token, "d-1").Return(decode(t, `{
			"hostSpecs":[{"hostname":"esxi-1","credentials":{"username":"root","password":"E1"}}],
			"vcenterSpec":"garbled"
		}`), nil)

		res, err := f.service.RunSync(ctx, installerOnly("env_1"))
		require.NoError(t, err)
		assert.False(t, res.Clean())
		applied, err := f.service.Apply(ctx, "env_1", res)
		require.NoError(t, err)

		assert.Equal(t, 1, applied.Created)
		assert.Zero(t, applied.Deleted)
		_, err = f.creds.FindByID(ctx, vc.ID)
		assert.NoError(t, err)
	})
}

func TestSyncEnvironment(t *testing.T) {
	t.Run("applies the pass and records the sync time", func(t *testing.T) {
		f := setupTestService(t)
		ctx := context.Background()
		env := &environment.Environment{
			Name:              "lab",
			InstallerHost:     "installer.lab",
			InstallerUsername: "admin@local",
			InstallerPassword: "pw",
		}
		require.NoError(t, f.envs.Create(ctx, env))
		f.expectInstaller(t, "E1")

		outcome, err := f.service.SyncEnvironment(ctx, *env)

		require.NoError(t, err)
		assert.Equal(t, 2, outcome.Applied.Created)
		reloaded, err := f.envs.FindByID(ctx, env.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded.LastSync)
		assert.True(t, frozen.Equal(*reloaded.LastSync))
	})

	t.Run("shares a pass between concurrent callers", func(t *testing.T) {
		f := setupTestService(t)
		ctx := context.Background()
		env := &environment.Environment{Name: "lab", InstallerHost: "installer.lab", InstallerUsername: "admin@local", InstallerPassword: "pw"}
		require.NoError(t, f.envs.Create(ctx, env))

		release := make(chan time.Time)
		f.installer.On("Authenticate", mock.Anything, "admin@local", "pw").
			WaitUntil(release).Return(token, nil).Once()
		f.installer.On("ListDeployments", mock.Anything, token).Return([]vcf.Deployment{{ID: "d-1"}}, nil).Once()
		f.installer.On("FetchSpecification", mock.Anything, token, "d-1").Return(hostsSpec(t, "E1"), nil).Once()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = f.service.SyncEnvironment(ctx, *env)
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.NoError(t, errs[0])
		assert.NoError(t, errs[1])
		f.installer.AssertNumberOfCalls(t, "Authenticate", 1)
	})
}

func TestTestConnection(t *testing.T) {
	f := setupTestService(t)
	f.installer.On("Authenticate", mock.Anything, "admin@local", "pw").Return(token, nil)
	f.manager.On("Authenticate", mock.Anything, "admin@local", "pw").
		Return(vcf.Token{}, &vcf.AuthError{Host: "sddc.lab", StatusCode: 401})

	results := f.service.TestConnection(context.Background(), bothSources("env_1"))

	require.Len(t, results, 2)
	assert.True(t, results[credential.ProvenanceInstaller].OK)
	assert.False(t, results[credential.ProvenanceManager].OK)
	assert.NotEmpty(t, results[credential.ProvenanceManager].Message)
}

func TestConfigFor(t *testing.T) {
	env := environment.Environment{
		ID:              "env_1",
		ManagerHost:     "sddc.lab",
		ManagerUsername: "admin@local",
		ManagerPassword: "pw",
	}

	cfg := ConfigFor(env)

	assert.Nil(t, cfg.Installer)
	require.NotNil(t, cfg.Manager)
	assert.Equal(t, "sddc.lab", cfg.Manager.Host)
	assert.Equal(t, "env_1", cfg.DeploymentID)
}
