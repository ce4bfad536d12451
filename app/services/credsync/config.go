package credsync

import (
	"vcfcreds/domain/environment"
)

// SourceConfig addresses one upstream endpoint.
type SourceConfig struct {
	Host      string `json:"host"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	VerifyTLS bool   `json:"verify_tls"`
}

// DeploymentConfig is the input of one sync pass. A nil source is not
// configured.
type DeploymentConfig struct {
	DeploymentID string
	Installer    *SourceConfig
	Manager      *SourceConfig
}

func (c DeploymentConfig) configured() bool {
	return c.Installer != nil || c.Manager != nil
}

// ConfigFor builds the sync input for env. A source is configured when its
// host is set.
func ConfigFor(env environment.Environment) DeploymentConfig {
	cfg := DeploymentConfig{DeploymentID: env.ID}
	if env.HasInstaller() {
		cfg.Installer = &SourceConfig{
			Host:      env.InstallerHost,
			Username:  env.InstallerUsername,
			Password:  env.InstallerPassword,
			VerifyTLS: env.InstallerVerifyTLS,
		}
	}
	if env.HasManager() {
		cfg.Manager = &SourceConfig{
			Host:      env.ManagerHost,
			Username:  env.ManagerUsername,
			Password:  env.ManagerPassword,
			VerifyTLS: env.ManagerVerifyTLS,
		}
	}
	return cfg
}
