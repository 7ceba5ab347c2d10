package api

import (
	"github.com/thisisjab/logtable/fault"
)

type CORSConfig struct {
	TrustedOrigins []string `yaml:"trusted_origins"`
}

// RateLimitConfig limits requests per client address. A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type Config struct {
	Addr      string          `yaml:"addr"`
	CertFile  string          `yaml:"cert_file"`
	KeyFile   string          `yaml:"key_file"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// MaxRecords caps the records accepted in one request. Defaults to 1000.
	MaxRecords int `yaml:"max_records"`
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fault.Configf("api server address is required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fault.Configf("api cert_file and key_file must be set together")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fault.Configf("api rate limit cannot be negative")
	}
	if c.MaxBodyBytes < 0 || c.MaxRecords < 0 {
		return fault.Configf("api body limits cannot be negative")
	}

	return nil
}
