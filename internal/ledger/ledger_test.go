// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wardsec/go-ward/internal/ledger"
	"github.com/wardsec/go-ward/internal/store"
)

const (
	testMaxViolations = 3
	testBlockDuration = 600 * time.Second
	testViolationTTL  = 24 * time.Hour
)

func newTestLedger() (*ledger.Ledger, *store.MemoryStore, *time.Time) {
	kv := store.NewMemoryStore()
	now := time.Now()
	kv.SetClock(func() time.Time { return now })
	l := ledger.New(kv, testMaxViolations, testBlockDuration, testViolationTTL)
	return l, kv, &now
}

func TestViolationStateMachine(t *testing.T) {
	ctx := context.Background()
	const ip = "203.0.114.7"

	t.Run("threshold crossing blocks", func(t *testing.T) {
		l, _, _ := newTestLedger()

		blocked, err := l.IsBlocked(ctx, ip)
		require.NoError(t, err)
		require.False(t, blocked)

		// Violations below the threshold do not block.
		for i := int64(1); i < testMaxViolations; i++ {
			count, nowBlocked, err := l.RecordViolation(ctx, ip)
			require.NoError(t, err)
			require.Equal(t, i, count)
			require.False(t, nowBlocked)

			blocked, err := l.IsBlocked(ctx, ip)
			require.NoError(t, err)
			require.False(t, blocked)
		}

		// The threshold violation blocks.
		count, nowBlocked, err := l.RecordViolation(ctx, ip)
		require.NoError(t, err)
		require.Equal(t, int64(testMaxViolations), count)
		require.True(t, nowBlocked)

		blocked, err = l.IsBlocked(ctx, ip)
		require.NoError(t, err)
		require.True(t, blocked)
	})

	t.Run("block expires after its duration", func(t *testing.T) {
		l, _, now := newTestLedger()
		for i := 0; i < testMaxViolations; i++ {
			_, _, err := l.RecordViolation(ctx, ip)
			require.NoError(t, err)
		}
		blocked, err := l.IsBlocked(ctx, ip)
		require.NoError(t, err)
		require.True(t, blocked)

		*now = now.Add(601 * time.Second)
		blocked, err = l.IsBlocked(ctx, ip)
		require.NoError(t, err)
		require.False(t, blocked)

		// The counter is left in place: the next violation re-blocks
		// immediately.
		count, nowBlocked, err := l.RecordViolation(ctx, ip)
		require.NoError(t, err)
		require.Equal(t, int64(testMaxViolations+1), count)
		require.True(t, nowBlocked)
	})

	t.Run("violation ttl is re-armed on every violation", func(t *testing.T) {
		l, _, now := newTestLedger()
		_, _, err := l.RecordViolation(ctx, ip)
		require.NoError(t, err)

		// 23h later the counter is still live; a new violation re-arms it.
		*now = now.Add(23 * time.Hour)
		count, _, err := l.RecordViolation(ctx, ip)
		require.NoError(t, err)
		require.Equal(t, int64(2), count)

		// Another 23h later the counter survived because of the refresh.
		*now = now.Add(23 * time.Hour)
		count, err = l.ViolationCount(ctx, ip)
		require.NoError(t, err)
		require.Equal(t, int64(2), count)

		// 24h of silence clears it.
		*now = now.Add(25 * time.Hour)
		count, err = l.ViolationCount(ctx, ip)
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("unblock resets everything", func(t *testing.T) {
		l, _, _ := newTestLedger()
		for i := 0; i < testMaxViolations; i++ {
			_, _, err := l.RecordViolation(ctx, ip)
			require.NoError(t, err)
		}
		blocked, err := l.IsBlocked(ctx, ip)
		require.NoError(t, err)
		require.True(t, blocked)

		require.NoError(t, l.Unblock(ctx, ip))

		blocked, err = l.IsBlocked(ctx, ip)
		require.NoError(t, err)
		require.False(t, blocked)
		count, err := l.ViolationCount(ctx, ip)
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("block ttl is reported", func(t *testing.T) {
		l, _, _ := newTestLedger()
		for i := 0; i < testMaxViolations; i++ {
			_, _, err := l.RecordViolation(ctx, ip)
			require.NoError(t, err)
		}
		ttl, exists, err := l.BlockTTL(ctx, ip)
		require.NoError(t, err)
		require.True(t, exists)
		require.Equal(t, testBlockDuration, ttl)
	})

	t.Run("store failure surfaces as unavailable", func(t *testing.T) {
		l, kv, _ := newTestLedger()
		kv.FailWith(context.DeadlineExceeded)

		_, err := l.IsBlocked(ctx, ip)
		require.Error(t, err)
		require.True(t, store.IsUnavailable(err))

		_, _, err = l.RecordViolation(ctx, ip)
		require.Error(t, err)
		require.True(t, store.IsUnavailable(err))
	})

	t.Run("different ips are tracked independently", func(t *testing.T) {
		l, _, _ := newTestLedger()
		for i := 0; i < testMaxViolations; i++ {
			_, _, err := l.RecordViolation(ctx, "203.0.114.1")
			require.NoError(t, err)
		}
		blocked, err := l.IsBlocked(ctx, "203.0.114.2")
		require.NoError(t, err)
		require.False(t, blocked)
	})
}
