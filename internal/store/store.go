// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package store abstracts the shared, process-external, TTL-capable
// key/value store every cross-request counter lives in. The store is the
// single shared mutable resource of the pipeline: no component caches its
// state in local memory beyond a single request, since local caching would
// desynchronize across worker processes.

package store

import (
	"context"
	"time"

	"golang.org/x/xerrors"
)

// UnavailableError is returned when the shared store cannot be reached or a
// round-trip exceeds its bounded timeout. Callers treat it as a signal to
// fail open, never as an error surfaced to the client.
type UnavailableError struct {
	Err error
}

func (e UnavailableError) Error() string {
	return "shared store unavailable: " + e.Err.Error()
}

func (e UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable returns true when the error chain contains an
// UnavailableError.
func IsUnavailable(err error) bool {
	var unavailable UnavailableError
	return xerrors.As(err, &unavailable)
}

// Store is the TTL key/value interface the ledger and the rate limiter are
// built on. Implementations must make Increment atomic at the store level so
// concurrent bursts from the same client never lose updates.
type Store interface {
	// Get returns the value of the key and whether it exists.
	Get(ctx context.Context, key string) (value string, exists bool, err error)

	// Set writes the value with the given TTL, overwriting any previous
	// value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Increment atomically increments the counter held by the key and
	// returns the new count. The TTL is set when the key is first written;
	// when refreshTTL is true it is also re-armed on every subsequent
	// increment.
	Increment(ctx context.Context, key string, ttl time.Duration, refreshTTL bool) (count int64, err error)

	// TTL returns the remaining time-to-live of the key and whether the key
	// exists.
	TTL(ctx context.Context, key string) (ttl time.Duration, exists bool, err error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
