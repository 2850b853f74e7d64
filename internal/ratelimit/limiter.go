// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package ratelimit implements the shared, path-aware fixed-window rate
// limiter. Windows are keyed by (client identity, normalized path) and live
// in the shared key/value store so that every worker process counts against
// the same quota.

package ratelimit

import (
	"context"
	"time"

	"github.com/wardsec/go-ward/internal/config"
	"github.com/wardsec/go-ward/internal/plog"
	"github.com/wardsec/go-ward/internal/store"
	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
)

// Client identity key constructors, in resolution precedence order: API
// token, then authenticated user, then client IP.
func TokenIdentity(token string) string { return "token:" + token }
func UserIdentity(id string) string     { return "user:" + id }
func IPIdentity(ip string) string       { return "ip:" + ip }

// nearLimitRatio is the window usage ratio above which a warning-severity
// observability event is emitted while the request still passes.
const nearLimitRatio = 0.8

// Limiter enforces per-path request quotas.
type Limiter struct {
	store       store.Store
	rules       []Rule
	defaultRule Rule
	// cooldown is the duration of the client-wide block set when a client
	// keeps sending requests over its quota. Zero disables escalation.
	cooldown time.Duration
	logger   *plog.Logger
}

// fallbackQuota applies when even the configured default rule is malformed.
const fallbackQuota = "60/minute"

// NewLimiter builds a limiter from the configured rule table. Malformed rule
// strings are logged once and dropped, falling back to the default rule for
// the paths they covered; a malformed default falls back to 60/minute.
func NewLimiter(kv store.Store, table map[string]string, defaultQuota string, cooldown time.Duration, logger *plog.Logger) *Limiter {
	rules, errs := buildRules(table)
	if err := errs.ToError(); err != nil {
		logger.Error(wderrors.Wrap(err, "ratelimit: dropped malformed rate rules"))
	}

	limit, period, err := ParseQuota(defaultQuota)
	if err != nil {
		logger.Error(wderrors.Wrapf(err, "ratelimit: malformed default quota, falling back to `%s`", fallbackQuota))
		limit, period, _ = ParseQuota(fallbackQuota)
	}

	return &Limiter{
		store:       kv,
		rules:       rules,
		defaultRule: Rule{Limit: limit, Period: period},
		cooldown:    cooldown,
		logger:      logger,
	}
}

// Decision is the outcome of a quota check, carrying everything needed to
// build the rate-limit response headers.
type Decision struct {
	Allowed bool
	// NearLimit is true when the request passed but the window usage is at
	// or above 80% of the quota.
	NearLimit bool
	// Count is the number of requests observed in the current window,
	// including this one.
	Count int64
	Limit int
	// Remaining is the number of requests left in the window, never
	// negative.
	Remaining int
	Period    time.Duration
	// RetryAfter is the duration after which the client may retry; only
	// meaningful when the request is not allowed.
	RetryAfter time.Duration
}

func windowKey(identity, path string) string {
	return config.KeyPrefix + ":rl:window:" + identity + ":" + path
}

func cooldownKey(identity string) string {
	return config.KeyPrefix + ":rl:cooldown:" + identity
}

// Allow counts the request against the (identity, normalized path) window
// and decides whether it passes. The path given must already be normalized
// by the caller.
func (l *Limiter) Allow(ctx context.Context, identity, path string) (Decision, error) {
	rule := l.match(path)

	// A client in escalation cooldown is rejected without counting.
	if l.cooldown > 0 {
		_, coolingDown, err := l.store.Get(ctx, cooldownKey(identity))
		if err != nil {
			return Decision{}, wderrors.Wrap(err, "ratelimit: could not read the cooldown entry")
		}
		if coolingDown {
			retryAfter, _, ttlErr := l.store.TTL(ctx, cooldownKey(identity))
			if ttlErr != nil || retryAfter <= 0 {
				retryAfter = l.cooldown
			}
			return Decision{
				Allowed:    false,
				Limit:      rule.Limit,
				Period:     rule.Period,
				RetryAfter: retryAfter,
			}, nil
		}
	}

	// Fixed window: the TTL is armed when the first request of the window
	// creates the counter and left untouched afterwards, so the window
	// expires a full period after its first request and the count then
	// restarts from 1.
	count, err := l.store.Increment(ctx, windowKey(identity, path), rule.Period, false)
	if err != nil {
		return Decision{}, wderrors.Wrap(err, "ratelimit: could not increment the window counter")
	}

	// Remaining window duration, used for the reset/retry headers.
	// Best-effort: a failed TTL read falls back to a full period.
	windowLeft, _, err := l.store.TTL(ctx, windowKey(identity, path))
	if err != nil || windowLeft <= 0 {
		windowLeft = rule.Period
	}

	decision := Decision{
		Count:  count,
		Limit:  rule.Limit,
		Period: rule.Period,
	}

	if count > int64(rule.Limit) {
		decision.RetryAfter = windowLeft

		if l.cooldown > 0 {
			// Escalate to a client-wide cooldown, distinct from the WAF's IP
			// block. Best-effort: the window rejection stands even when the
			// escalation write fails.
			if err := l.store.Set(ctx, cooldownKey(identity), "1", l.cooldown); err != nil {
				l.logger.Error(wderrors.Wrap(err, "ratelimit: could not write the cooldown entry"))
			} else {
				decision.RetryAfter = l.cooldown
			}
		}
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = rule.Limit - int(count)
	decision.RetryAfter = windowLeft
	decision.NearLimit = float64(count) >= nearLimitRatio*float64(rule.Limit)
	return decision, nil
}
