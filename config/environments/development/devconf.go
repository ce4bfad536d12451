// Package development contains development configuration of the app
package development

import (
	"os"
	"strings"

	"vcfcreds/config"
)

type devconf struct{}

func New() config.AppConfiger {
	return devconf{}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (dc devconf) GetPort() string {
	return getenv("VCF_APP_PORT", "8080")
}

func (dc devconf) GetDBURL() string {
	return getenv("VCF_DB_URL", "file:vcfcreds.db")
}

func (dc devconf) GetLogLevel() string {
	return getenv("VCF_LOG_LEVEL", "debug")
}

func (dc devconf) GetLogFormat() string {
	return getenv("VCF_LOG_FORMAT", "text")
}
