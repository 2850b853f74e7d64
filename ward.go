// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package ward is the public entry point of the request-defense library. It
// loads the configuration, connects the shared store and builds the
// protector the middleware adapters in sdk/middleware run requests through.
//
// Configuration is read from environment variables prefixed with `WARD_`
// and, when present, from a `ward.yaml` file next to the executable or in
// the working directory.
package ward

import (
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/wardsec/go-ward/internal/config"
	"github.com/wardsec/go-ward/internal/event"
	"github.com/wardsec/go-ward/internal/plog"
	"github.com/wardsec/go-ward/internal/protection"
	"github.com/wardsec/go-ward/internal/store"
)

// Public names of the pipeline types the adapters and callers exchange.
type (
	Protector  = protection.Protector
	Principal  = protection.Principal
	RouteTable = protection.RouteTable
	RouteFlags = protection.RouteFlags
	Verdict    = protection.Verdict

	// Store is the TTL key/value store interface backing the violation
	// ledger and the rate limiter. The default is Redis; a custom
	// implementation may be supplied with WithStore.
	Store = store.Store

	// Sink receives the security events produced by the pipeline: detected
	// attacks, blocks, unblocks and quota rejections. Delivery is
	// best-effort.
	Sink     = event.Sink
	Record   = event.Record
	Severity = event.Severity
)

// Security event severities.
const (
	SeverityInfo     = event.SeverityInfo
	SeverityWarning  = event.SeverityWarning
	SeverityHigh     = event.SeverityHigh
	SeverityCritical = event.SeverityCritical
)

// Option configures New.
type Option func(*options)

type options struct {
	store  store.Store
	routes *protection.RouteTable
	sink   event.Sink
}

// WithStore replaces the default Redis store.
func WithStore(s Store) Option {
	return func(o *options) { o.store = s }
}

// WithRoutes attaches the per-route exemption flags table.
func WithRoutes(routes *RouteTable) Option {
	return func(o *options) { o.routes = routes }
}

// WithSink attaches the audit sink the security events are delivered to.
func WithSink(sink Sink) Option {
	return func(o *options) { o.sink = sink }
}

// NewRouteTable returns an empty route flags table.
func NewRouteTable() *RouteTable {
	return protection.NewRouteTable()
}

// New reads the configuration and builds the protector. Without a WithStore
// option it connects to the configured Redis server; the connection is
// established lazily, so New does not fail when the server is down and the
// pipeline instead fails open at request time.
func New(opts ...Option) (*Protector, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := plog.NewLogger(plog.ParseLogLevel(os.Getenv("WARD_LOG_LEVEL")), os.Stderr, nil)
	cfg, err := config.New(logger)
	if err != nil {
		return nil, err
	}
	// The configured level wins over the bootstrap one.
	logger = plog.NewLogger(cfg.LogLevel(), os.Stderr, nil)

	kv := o.store
	if kv == nil {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword(),
			DB:       cfg.RedisDB(),
		})
		kv = store.NewRedisStore(client, config.StoreRequestTimeout)
	}

	return protection.New(cfg, kv, o.routes, o.sink, logger)
}
