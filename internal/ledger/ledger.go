// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package ledger implements the violation-driven IP blocking state machine
// shared by every worker process through the key/value store:
//
//	Clean -> Violating(1) -> ... -> Violating(n >= max) -> Blocked
//
// The violation counter and the block entry are both TTL-governed; nothing
// is ever deleted explicitly except by administrative unblock.

package ledger

import (
	"context"
	"time"

	"github.com/wardsec/go-ward/internal/config"
	"github.com/wardsec/go-ward/internal/store"
	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
)

// Ledger tracks per-IP violations and blocks. It is keyed by client IP
// regardless of any authenticated identity: a blocked attacker must not
// escape blocking by discarding credentials.
type Ledger struct {
	store         store.Store
	maxViolations int64
	blockDuration time.Duration
	violationTTL  time.Duration
}

func New(kv store.Store, maxViolations int, blockDuration, violationTTL time.Duration) *Ledger {
	return &Ledger{
		store:         kv,
		maxViolations: int64(maxViolations),
		blockDuration: blockDuration,
		violationTTL:  violationTTL,
	}
}

func violationKey(ip string) string { return config.KeyPrefix + ":waf:violations:" + ip }
func blockKey(ip string) string     { return config.KeyPrefix + ":waf:block:" + ip }

// IsBlocked returns true while a block entry is live for the IP.
func (l *Ledger) IsBlocked(ctx context.Context, ip string) (bool, error) {
	_, exists, err := l.store.Get(ctx, blockKey(ip))
	if err != nil {
		return false, wderrors.Wrap(err, "ledger: could not read the block entry")
	}
	return exists, nil
}

// RecordViolation increments the IP's violation counter and returns the new
// count, along with whether the IP is blocked as a result.
//
// The counter TTL is re-armed on every violation, making the window a
// rolling window since the last violation rather than a strict sliding
// window since the first one.
//
// Crossing the threshold writes a block entry with the configured block
// duration. The counter is left in place, so a returning offender re-blocks
// on the first new violation after the block expires.
func (l *Ledger) RecordViolation(ctx context.Context, ip string) (count int64, blocked bool, err error) {
	count, err = l.store.Increment(ctx, violationKey(ip), l.violationTTL, true)
	if err != nil {
		return 0, false, wderrors.Wrap(err, "ledger: could not increment the violation counter")
	}

	if count < l.maxViolations {
		return count, false, nil
	}

	if err := l.store.Set(ctx, blockKey(ip), "1", l.blockDuration); err != nil {
		return count, false, wderrors.Wrap(err, "ledger: could not write the block entry")
	}
	return count, true, nil
}

// ViolationCount returns the current violation count of the IP.
func (l *Ledger) ViolationCount(ctx context.Context, ip string) (int64, error) {
	value, exists, err := l.store.Get(ctx, violationKey(ip))
	if err != nil {
		return 0, wderrors.Wrap(err, "ledger: could not read the violation counter")
	}
	if !exists {
		return 0, nil
	}
	return parseCount(value)
}

// BlockTTL returns the remaining duration of the IP's block entry, if any.
// Not on the hot path; used by administrative tooling to report when a block
// lifts.
func (l *Ledger) BlockTTL(ctx context.Context, ip string) (time.Duration, bool, error) {
	ttl, exists, err := l.store.TTL(ctx, blockKey(ip))
	if err != nil {
		return 0, false, wderrors.Wrap(err, "ledger: could not read the block entry TTL")
	}
	return ttl, exists, nil
}

// Unblock removes the IP's block entry and resets its violation counter. It
// is the administrative escape hatch and works while the block is live.
func (l *Ledger) Unblock(ctx context.Context, ip string) error {
	if err := l.store.Delete(ctx, blockKey(ip)); err != nil {
		return wderrors.Wrap(err, "ledger: could not delete the block entry")
	}
	if err := l.store.Delete(ctx, violationKey(ip)); err != nil {
		return wderrors.Wrap(err, "ledger: could not reset the violation counter")
	}
	return nil
}
