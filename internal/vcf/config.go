package vcf

import (
	"fmt"
	"strings"
	"time"
)

const DefaultTimeout = 30 * time.Second

// Config describes one upstream endpoint. A client is built per call so TLS
// verification is never shared between endpoints.
type Config struct {
	Host      string
	VerifyTLS bool
	Timeout   time.Duration
}

func (c *Config) Validate() error {
	c.Host = normalizeHost(c.Host)
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if strings.ContainsAny(c.Host, "/?# ") {
		return fmt.Errorf("host %q must be a hostname or host:port", c.Host)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimRight(host, "/")
}
