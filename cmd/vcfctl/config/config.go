package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
)

const (
	defaultServerURL = "http://localhost:8080"
	envVarServerURL  = "VCFCREDS_SERVER_URL"
	configFileName   = ".vcfcreds/config.yml"

	// DefaultDeploymentID scopes records fetched without a deployment_id.
	DefaultDeploymentID = "local"
)

// Config holds the vcfctl configuration
type Config struct {
	ServerURL string `yaml:"server"`
}

// Load loads configuration from ~/.vcfcreds/config.yml. A missing file
// yields the defaults; a malformed one is an error.
func Load() (*Config, error) {
	cfg := &Config{}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}
	if err := loadFile(filepath.Join(homeDir, configFileName), cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return cfg, nil
}

// GetServerURL returns the server URL with priority: env var > config file > default
func (c *Config) GetServerURL() string {
	if url := os.Getenv(envVarServerURL); url != "" {
		return url
	}
	if c.ServerURL != "" {
		return c.ServerURL
	}
	return defaultServerURL
}

func loadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Source is one upstream endpoint in a deployment file.
type Source struct {
	Host      string `yaml:"host"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	VerifyTLS bool   `yaml:"ssl_verify"`
}

// Deployment is the file read by `vcfctl fetch`.
type Deployment struct {
	DeploymentID string  `yaml:"deployment_id"`
	Installer    *Source `yaml:"sddc_installer"`
	Manager      *Source `yaml:"sddc_manager"`
}

// LoadDeployment reads and validates a deployment file.
func LoadDeployment(path string) (*Deployment, error) {
	d := &Deployment{}
	if err := loadFile(path, d); err != nil {
		return nil, err
	}
	if d.DeploymentID == "" {
		d.DeploymentID = DefaultDeploymentID
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate reports every problem at once.
func (d *Deployment) Validate() error {
	var errs *multierror.Error
	if d.Installer == nil && d.Manager == nil {
		errs = multierror.Append(errs, errors.New("at least one of sddc_installer or sddc_manager is required"))
	}
	errs = multierror.Append(errs, d.Installer.validate("sddc_installer")...)
	errs = multierror.Append(errs, d.Manager.validate("sddc_manager")...)
	return errs.ErrorOrNil()
}

func (s *Source) validate(section string) []error {
	if s == nil {
		return nil
	}
	fields := []struct{ name, value string }{
		{"host", s.Host},
		{"username", s.Username},
		{"password", s.Password},
	}
	var errs []error
	for _, f := range fields {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s.%s is required", section, f.name))
		}
	}
	return errs
}
