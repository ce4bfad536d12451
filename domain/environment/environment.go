// Package environment contains the domain for a deployment whose
// installer and/or manager credentials are synced.
package environment

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("environment not found")
	ErrNoSource      = errors.New("environment has neither an installer nor a manager configured")
	ErrDuplicateName = errors.New("environment name already exists")
)

const DefaultSyncIntervalMinutes = 60

type Environment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name" gorm:"uniqueIndex"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastSync    *time.Time `json:"last_sync"`

	// Installer endpoint, used before the manager exists
	InstallerHost      string `json:"installer_host"`
	InstallerUsername  string `json:"installer_username"`
	InstallerPassword  string `json:"-"`
	InstallerVerifyTLS bool   `json:"installer_ssl_verify"`

	// Manager endpoint
	ManagerHost      string `json:"manager_host"`
	ManagerUsername  string `json:"manager_username"`
	ManagerPassword  string `json:"-"`
	ManagerVerifyTLS bool   `json:"manager_ssl_verify"`

	SyncEnabled         bool `json:"sync_enabled"`
	SyncIntervalMinutes int  `json:"sync_interval_minutes"`
}

type EnvironmentFilters struct {
	SyncEnabled *bool
}

func (e Environment) HasInstaller() bool {
	return e.InstallerHost != ""
}

func (e Environment) HasManager() bool {
	return e.ManagerHost != ""
}

// SyncInterval falls back to DefaultSyncIntervalMinutes for unset intervals.
func (e Environment) SyncInterval() time.Duration {
	minutes := e.SyncIntervalMinutes
	if minutes <= 0 {
		minutes = DefaultSyncIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}
