// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wardsec/go-ward/internal/store"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("get and set", func(t *testing.T) {
		s := store.NewMemoryStore()
		_, exists, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, exists)

		require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
		value, exists, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, exists)
		require.Equal(t, "v", value)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		s := store.NewMemoryStore()
		now := time.Now()
		s.SetClock(func() time.Time { return now })

		require.NoError(t, s.Set(ctx, "k", "v", 600*time.Second))
		_, exists, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, exists)

		now = now.Add(601 * time.Second)
		_, exists, err = s.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("increment arms the ttl on first write", func(t *testing.T) {
		s := store.NewMemoryStore()
		now := time.Now()
		s.SetClock(func() time.Time { return now })

		count, err := s.Increment(ctx, "k", time.Minute, false)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)

		// Later increments without refresh keep the original expiry.
		now = now.Add(30 * time.Second)
		count, err = s.Increment(ctx, "k", time.Minute, false)
		require.NoError(t, err)
		require.Equal(t, int64(2), count)

		ttl, exists, err := s.TTL(ctx, "k")
		require.NoError(t, err)
		require.True(t, exists)
		require.Equal(t, 30*time.Second, ttl)

		now = now.Add(31 * time.Second)
		count, err = s.Increment(ctx, "k", time.Minute, false)
		require.NoError(t, err)
		require.Equal(t, int64(1), count, "an expired counter restarts at 1")
	})

	t.Run("increment with refresh re-arms the ttl", func(t *testing.T) {
		s := store.NewMemoryStore()
		now := time.Now()
		s.SetClock(func() time.Time { return now })

		_, err := s.Increment(ctx, "k", time.Minute, true)
		require.NoError(t, err)

		now = now.Add(45 * time.Second)
		_, err = s.Increment(ctx, "k", time.Minute, true)
		require.NoError(t, err)

		ttl, exists, err := s.TTL(ctx, "k")
		require.NoError(t, err)
		require.True(t, exists)
		require.Equal(t, time.Minute, ttl)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := store.NewMemoryStore()
		const n = 100
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				_, err := s.Increment(ctx, "k", time.Minute, true)
				require.NoError(t, err)
			}()
		}
		wg.Wait()
		value, exists, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, exists)
		require.Equal(t, "100", value)
	})

	t.Run("delete", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Set(ctx, "k", "v", 0))
		require.NoError(t, s.Delete(ctx, "k"))
		_, exists, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, exists)
		// Deleting an absent key is fine
		require.NoError(t, s.Delete(ctx, "k"))
	})

	t.Run("simulated failure", func(t *testing.T) {
		s := store.NewMemoryStore()
		s.FailWith(context.DeadlineExceeded)
		_, _, err := s.Get(ctx, "k")
		require.Error(t, err)
		require.True(t, store.IsUnavailable(err))

		_, err = s.Increment(ctx, "k", time.Minute, false)
		require.True(t, store.IsUnavailable(err))

		s.FailWith(nil)
		_, _, err = s.Get(ctx, "k")
		require.NoError(t, err)
	})
}

func TestIsUnavailable(t *testing.T) {
	require.False(t, store.IsUnavailable(errors.New("oops")))
	require.True(t, store.IsUnavailable(store.UnavailableError{Err: errors.New("oops")}))
}
