// Package production contains production configuration of the app
package production

import (
	"os"
	"strings"

	"vcfcreds/config"
)

type prodconf struct{}

func New() config.AppConfiger {
	return prodconf{}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (pc prodconf) GetPort() string {
	return getenv("VCF_APP_PORT", "8080")
}

func (pc prodconf) GetDBURL() string {
	return getenv("VCF_DB_URL", "/var/lib/vcfcreds/vcfcreds.db")
}

func (pc prodconf) GetLogLevel() string {
	return getenv("VCF_LOG_LEVEL", "info")
}

func (pc prodconf) GetLogFormat() string {
	return getenv("VCF_LOG_FORMAT", "json")
}
