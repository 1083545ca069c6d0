package authcore

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/keys"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/token"
)

// Builder assembles an [Engine]. It performs no I/O until [Builder.Build],
// which loads keys, dials Redis (unless a client was injected), and starts
// the audit dispatcher.
type Builder struct {
	config     Config
	redis      *redis.Client
	principals PrincipalStore
	auditSink  AuditSink

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis injects a Redis client, overriding Store.Host/Port. The caller
// keeps ownership; Close does not close it.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithPrincipalStore wires the credential backend used by [Engine.Login].
// Optional; engines without one can still issue, validate, rotate, and
// revoke.
func (b *Builder) WithPrincipalStore(ps PrincipalStore) *Builder {
	b.principals = ps
	return b
}

// WithAuditSink sets the sink receiving audit events. Defaults to a no-op.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the ValidateAccess latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, loads and probes the keypair, connects
// the refresh store, and returns a ready engine. A Builder can build once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	pair, err := keys.Load(cfg.Keys)
	if err != nil {
		return nil, err
	}

	codec := token.NewCodec(pair, cfg.Token.AccessTTL, cfg.Token.Leeway, cfg.Token.Issuer)

	rdb := b.redis
	if rdb == nil {
		rdb = redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", cfg.Store.Host, cfg.Store.Port),
		})
	}

	store := refresh.NewStore(rdb, cfg.Store.Prefix)

	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	return &Engine{
		config:     cfg,
		codec:      codec,
		store:      store,
		principals: b.principals,
		audit:      dispatcher,
		metrics:    NewMetrics(cfg.Metrics),
	}, nil
}
