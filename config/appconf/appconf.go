// Package appconf contains app related configurations
package appconf

import (
	"os"
	"strconv"
	"strings"
	"time"

	"vcfcreds/config"
	devconf "vcfcreds/config/environments/development"
	prodconf "vcfcreds/config/environments/production"
)

var appconf config.AppConfiger

func Port() string {
	return appconf.GetPort()
}

func DBURL() string {
	return appconf.GetDBURL()
}

func LogLevel() string {
	return appconf.GetLogLevel()
}

func LogFormat() string {
	return appconf.GetLogFormat()
}

// SourceTimeout bounds each upstream request. Defaults to 30s, clamped to [5s, 5m].
func SourceTimeout() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("VCF_SOURCE_TIMEOUT")))
	if err != nil {
		return 30 * time.Second
	}
	return clamp(d, 5*time.Second, 5*time.Minute)
}

// SyncConcurrency bounds parallel environment syncs. Defaults to 4, clamped to [1, 32].
func SyncConcurrency() int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("VCF_SYNC_CONCURRENCY")))
	if err != nil {
		return 4
	}
	return clamp(n, 1, 32)
}

// PruneMissing enables deleting credentials a complete sync no longer sees.
func PruneMissing() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("VCF_PRUNE_MISSING")))
	if err != nil {
		return false
	}
	return v
}

func clamp[T int | time.Duration](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

func init() {
	env := os.Getenv("APP_ENV")

	switch env {
	case "production":
		appconf = prodconf.New()
	case "development":
		appconf = devconf.New()
	default:
		appconf = devconf.New()
	}
}
