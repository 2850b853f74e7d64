// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Request-defense configuration package.

// This package includes both compile-time and run-time configuration of the
// protection pipeline. Variables are made configurable at run-time when
// necessary for users. Everything is resolved once at process start and
// passed by reference to the component constructors; nothing here is read
// again on the request hot path.

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wardsec/go-ward/internal/plog"
	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
)

type Config struct {
	*viper.Viper
}

// Shared key/value store configuration.
var (
	// StoreRequestTimeout bounds every key/value store round-trip. A store
	// call exceeding it is treated as a store failure and the pipeline fails
	// open.
	StoreRequestTimeout = 50 * time.Millisecond

	// KeyPrefix namespaces every key written to the shared store.
	KeyPrefix = "ward"
)

// HTTP headers never included in the scanned request surface. Benign values
// of these headers regularly trip injection patterns (eg. quotes in accept
// parameters) so they are excluded from scanning altogether.
var SkippedScanHeaders = []string{
	"Content-Length",
	"Content-Type",
	"Accept",
	"Accept-Encoding",
	"Accept-Language",
	"Host",
	"User-Agent",
	"Connection",
}

// HTTP headers looked up, in order, to resolve the actual client IP address
// behind proxies.
var IPRelatedHTTPHeaders = []string{
	"X-Forwarded-For",
	"X-Client-Ip",
	"X-Real-Ip",
	"X-Forwarded",
	"X-Cluster-Client-Ip",
	"Forwarded-For",
	"Forwarded",
	"Via",
}

// Helper function to return the IP network out of a string.
func ipnet(s string) *net.IPNet {
	_, n, _ := net.ParseCIDR(s)
	return n
}

// IP networks used to compute whether an address is globally routable when
// resolving the client IP behind proxies.
var (
	IPv4PrivateNetworks = []*net.IPNet{
		ipnet("0.0.0.0/8"),
		ipnet("10.0.0.0/8"),
		ipnet("127.0.0.0/8"),
		ipnet("169.254.0.0/16"),
		ipnet("172.16.0.0/12"),
		ipnet("192.0.0.0/29"),
		ipnet("192.0.2.0/24"),
		ipnet("192.168.0.0/16"),
		ipnet("198.18.0.0/15"),
		ipnet("198.51.100.0/24"),
		ipnet("203.0.113.0/24"),
		ipnet("240.0.0.0/4"),
		ipnet("255.255.255.255/32"),
	}

	IPv4PublicNetwork = ipnet("100.64.0.0/10")

	IPv6PrivateNetworks = []*net.IPNet{
		ipnet("::1/128"),
		ipnet("::/128"),
		ipnet("::ffff:0:0/96"),
		ipnet("100::/64"),
		ipnet("2001:db8::/32"),
		ipnet("fc00::/7"),
		ipnet("fe80::/10"),
	}
)

const (
	configEnvPrefix    = `ward`
	configFileBasename = `ward`
)

const (
	configEnvKeyConfigFile = `config_file`

	configKeyWAFEnabled        = `waf_enabled`
	configKeySecurityTier      = `security_tier`
	configKeyRateLimitEnabled  = `rate_limit_enabled`
	configKeyRateLimitDefault  = `rate_limit_default`
	configKeyRateRules         = `rate_rules`
	configKeyRateLimitCooldown = `rate_limit_cooldown`
	configKeyExcludedPaths     = `excluded_paths`
	configKeyExemptIPs         = `exempt_ips`
	configKeyExemptUsers       = `exempt_users`
	configKeyMaxViolations     = `max_violations`
	configKeyBlockDuration     = `block_duration`
	configKeyViolationTTL      = `violation_ttl`
	configKeyMaxBodyScanSize   = `max_body_scan_size`
	configKeyLogLevel          = `log_level`
	configKeyRedisAddr         = `redis_addr`
	configKeyRedisPassword     = `redis_password`
	configKeyRedisDB           = `redis_db`
	configKeyIPHeader          = `ip_header`
)

// User configuration's default values.
const (
	configDefaultSecurityTier      = `medium`
	configDefaultRateLimitDefault  = `60/minute`
	configDefaultRateLimitCooldown = 300 * time.Second
	configDefaultMaxViolations     = 3
	configDefaultBlockDuration     = 600 * time.Second
	configDefaultViolationTTL      = 24 * time.Hour
	configDefaultMaxBodyScanSize   = 1 << 20
	configDefaultLogLevel          = `info`
	configDefaultRedisAddr         = `127.0.0.1:6379`
)

func New(logger *plog.Logger) (*Config, error) {
	manager := viper.New()
	manager.SetEnvPrefix(configEnvPrefix)
	manager.AutomaticEnv()
	manager.SetConfigName(configFileBasename)

	// Default values of configurable parameters
	parameters := []struct {
		key          string
		defaultValue interface{}
	}{
		{key: configKeyWAFEnabled, defaultValue: true},
		{key: configKeySecurityTier, defaultValue: configDefaultSecurityTier},
		{key: configKeyRateLimitEnabled, defaultValue: true},
		{key: configKeyRateLimitDefault, defaultValue: configDefaultRateLimitDefault},
		{key: configKeyRateRules, defaultValue: map[string]string{}},
		{key: configKeyRateLimitCooldown, defaultValue: configDefaultRateLimitCooldown},
		{key: configKeyExcludedPaths, defaultValue: []string{}},
		{key: configKeyExemptIPs, defaultValue: []string{}},
		{key: configKeyExemptUsers, defaultValue: []string{}},
		{key: configKeyMaxViolations, defaultValue: configDefaultMaxViolations},
		{key: configKeyBlockDuration, defaultValue: configDefaultBlockDuration},
		{key: configKeyViolationTTL, defaultValue: configDefaultViolationTTL},
		{key: configKeyMaxBodyScanSize, defaultValue: configDefaultMaxBodyScanSize},
		{key: configKeyLogLevel, defaultValue: configDefaultLogLevel},
		{key: configKeyRedisAddr, defaultValue: configDefaultRedisAddr},
		{key: configKeyRedisPassword, defaultValue: ""},
		{key: configKeyRedisDB, defaultValue: 0},
		{key: configKeyIPHeader, defaultValue: ""},
	}
	for _, p := range parameters {
		manager.SetDefault(p.key, p.defaultValue)
	}

	// Configuration file settings
	configFileEnvVar := strings.ToUpper(configEnvPrefix + "_" + configEnvKeyConfigFile)
	configFile := os.Getenv(configFileEnvVar)
	if configFile != "" {
		// File location enforced by the user
		manager.SetConfigFile(configFile)
		logger.Infof("config: configuration file enforced by the environment variable `%s` to `%s`", configFileEnvVar, configFile)
	} else {
		// Not enforced: add possible paths in precedence order
		// 1. Current working directory path:
		manager.AddConfigPath(`.`)
		// 2. Executable path
		exec, err := os.Executable()
		if err != nil {
			logger.Error(wderrors.Wrap(err, "config: could not read the executable file path"))
		} else {
			manager.AddConfigPath(filepath.Dir(exec))
		}
	}
	// Try to read a configuration file according to the previous settings
	if readErr, fileUsed := manager.ReadInConfig(), manager.ConfigFileUsed(); readErr != nil && fileUsed != "" {
		// Could not read despite the fact of having found a file
		logger.Error(wderrors.Wrap(readErr, fmt.Sprintf("config: could not read the configuration file `%s`: falling back to environment variables", fileUsed)))
	} else if fileUsed != "" {
		// A file was found and no error reading it
		logger.Infof("config: reading configuration settings from file `%s`", fileUsed)
	} else {
		logger.Infof("config: reading configuration settings from environment variables")
	}

	cfg := &Config{Viper: manager}
	if cfg.LogLevel() == plog.Debug {
		for _, p := range parameters {
			logger.Infof("config: settings: %s = %q", p.key, cfg.GetString(p.key))
		}
	}

	if err := cfg.health(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// WAFEnabled returns true when the request pattern scanner is enabled.
func (c *Config) WAFEnabled() bool {
	return c.GetBool(configKeyWAFEnabled)
}

// SecurityTier returns the configured security tier name. Its value is
// validated by health() so it is always one of low, medium or high.
func (c *Config) SecurityTier() string {
	return sanitizeString(c.GetString(configKeySecurityTier))
}

// RateLimitEnabled returns true when the rate limiter is enabled.
func (c *Config) RateLimitEnabled() bool {
	return c.GetBool(configKeyRateLimitEnabled)
}

// RateLimitDefault returns the global default quota rule, eg. `60/minute`,
// applied to paths matching no configured rule.
func (c *Config) RateLimitDefault() string {
	return sanitizeString(c.GetString(configKeyRateLimitDefault))
}

// RateRules returns the per-path quota rule table mapping a path prefix to a
// quota string of the shape `N/period`.
func (c *Config) RateRules() map[string]string {
	return c.GetStringMapString(configKeyRateRules)
}

// RateLimitCooldown returns the duration of the client-wide cooldown block
// set when a client keeps sending requests over its quota.
func (c *Config) RateLimitCooldown() time.Duration {
	return c.GetDuration(configKeyRateLimitCooldown)
}

// ExcludedPaths returns the path prefixes fully excluded from the pipeline.
func (c *Config) ExcludedPaths() []string {
	return c.GetStringSlice(configKeyExcludedPaths)
}

// ExemptIPs returns the IP addresses and CIDR ranges exempt from both the
// scanner and the rate limiter.
func (c *Config) ExemptIPs() []string {
	return c.GetStringSlice(configKeyExemptIPs)
}

// ExemptUsers returns the principal identifiers exempt from both the scanner
// and the rate limiter.
func (c *Config) ExemptUsers() []string {
	return c.GetStringSlice(configKeyExemptUsers)
}

// MaxViolations returns the number of recorded violations after which a
// client IP gets blocked.
func (c *Config) MaxViolations() int {
	n := c.GetInt(configKeyMaxViolations)
	if n <= 0 {
		return configDefaultMaxViolations
	}
	return n
}

// BlockDuration returns the duration of an IP block.
func (c *Config) BlockDuration() time.Duration {
	d := c.GetDuration(configKeyBlockDuration)
	if d <= 0 {
		return configDefaultBlockDuration
	}
	return d
}

// ViolationTTL returns the time-to-live of the per-IP violation counter. The
// TTL is refreshed on every new violation.
func (c *Config) ViolationTTL() time.Duration {
	d := c.GetDuration(configKeyViolationTTL)
	if d <= 0 {
		return configDefaultViolationTTL
	}
	return d
}

// MaxBodyScanSize returns the maximum number of request body bytes included
// in the scanned surface. Larger bodies are scanned truncated.
func (c *Config) MaxBodyScanSize() int64 {
	n := c.GetInt64(configKeyMaxBodyScanSize)
	if n <= 0 {
		return configDefaultMaxBodyScanSize
	}
	return n
}

// LogLevel returns the log level.
func (c *Config) LogLevel() plog.LogLevel {
	return plog.ParseLogLevel(sanitizeString(c.GetString(configKeyLogLevel)))
}

// RedisAddr returns the address of the shared Redis store.
func (c *Config) RedisAddr() string {
	return sanitizeString(c.GetString(configKeyRedisAddr))
}

// RedisPassword returns the password of the shared Redis store.
func (c *Config) RedisPassword() string {
	return c.GetString(configKeyRedisPassword)
}

// RedisDB returns the Redis database number.
func (c *Config) RedisDB() int {
	return c.GetInt(configKeyRedisDB)
}

// HTTPClientIPHeader returns the header to first lookup to find the client ip
// of a HTTP request.
func (c *Config) HTTPClientIPHeader() string {
	return sanitizeString(c.GetString(configKeyIPHeader))
}

func sanitizeString(s string) string {
	return strings.TrimSpace(s)
}

func (c *Config) health() error {
	switch tier := c.SecurityTier(); tier {
	case "low", "medium", "high":
	default:
		return wderrors.Errorf("config: invalid security tier `%s`", tier)
	}

	// Note that per-path rate rules are not validated here: a malformed rule
	// string falls back to the default rule at limiter construction time, but
	// the default rule itself must be well-formed.
	if def := c.RateLimitDefault(); def != "" {
		if !strings.Contains(def, "/") {
			return wderrors.Errorf("config: invalid default rate limit rule `%s`", def)
		}
	}

	return nil
}
