package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/keys"
)

// Config is the full engine configuration. Populate it once before
// [Builder.Build]; the engine never mutates it afterwards.
type Config struct {
	Keys    keys.Config
	Token   TokenConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// TokenConfig controls access-token signing and lifetimes.
type TokenConfig struct {
	// AccessTTL is the access-token lifetime. Default 30 minutes.
	AccessTTL time.Duration
	// RefreshTTL is the refresh-record lifetime. Default 7 days. Each
	// rotation issues a fresh record with the full TTL.
	RefreshTTL time.Duration
	// Leeway is the clock-skew allowance applied to exp checks.
	// Capped at 60 seconds.
	Leeway time.Duration
	// Issuer is stamped into the iss claim and verified on decode.
	Issuer string
}

// StoreConfig locates the Redis backend for refresh records.
type StoreConfig struct {
	// Host and Port are used only when no client is injected via
	// [Builder.WithRedis].
	Host string
	Port int
	// Prefix namespaces every key written by the refresh store.
	Prefix string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is
	// saturated. Leave it on unless losing audit events is unacceptable.
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const maxLeeway = 60 * time.Second

// DefaultConfig returns the baseline configuration: RS256 signing, 30 minute
// access tokens, 7 day refresh records, 30 second leeway, audit and metrics
// enabled.
func DefaultConfig() Config {
	return Config{
		Keys: keys.Config{
			SigningMethod: keys.MethodRS256,
		},
		Token: TokenConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Leeway:     30 * time.Second,
			Issuer:     "authcore",
		},
		Store: StoreConfig{
			Host:   "localhost",
			Port:   6379,
			Prefix: "ac:",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values the engine cannot operate
// with. It is called by Build; exposed for callers that assemble Config from
// external sources and want early failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Token.AccessTTL <= 0 {
		errs = append(errs, errors.New("token: access TTL must be positive"))
	}
	if c.Token.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token: refresh TTL must be positive"))
	}
	if c.Token.RefreshTTL > 0 && c.Token.RefreshTTL < c.Token.AccessTTL {
		errs = append(errs, errors.New("token: refresh TTL must not be shorter than access TTL"))
	}
	if c.Token.Leeway < 0 {
		errs = append(errs, errors.New("token: leeway must not be negative"))
	}
	if c.Token.Leeway > maxLeeway {
		errs = append(errs, errors.New("token: leeway must not exceed 60s"))
	}
	if c.Token.Issuer == "" {
		errs = append(errs, errors.New("token: issuer must be set"))
	}
	if c.Store.Prefix == "" {
		errs = append(errs, errors.New("store: key prefix must be set"))
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		errs = append(errs, errors.New("audit: buffer size must be positive when enabled"))
	}

	return errors.Join(errs...)
}
