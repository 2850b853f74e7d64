// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package actor_test

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wardsec/go-ward/internal/actor"
	"github.com/wardsec/go-ward/internal/plog"
)

func newTestStore(t *testing.T) *actor.Store {
	t.Helper()
	return actor.NewStore(plog.NewLogger(plog.Disabled, os.Stderr, nil))
}

func TestIPExemptions(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		store := newTestStore(t)
		exempt, _, err := store.IsIPExempt(net.ParseIP("1.2.3.4"))
		require.NoError(t, err)
		require.False(t, exempt)
	})

	t.Run("addresses and ranges", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SetIPExemptions([]string{
			"1.2.3.4",
			"10.0.0.0/8",
			"2a00:1450::/32",
		}))

		for _, tc := range []struct {
			ip      string
			exempt  bool
			matched string
		}{
			{ip: "1.2.3.4", exempt: true, matched: "1.2.3.4"},
			{ip: "1.2.3.5", exempt: false},
			{ip: "10.1.2.3", exempt: true, matched: "10.0.0.0/8"},
			{ip: "11.1.2.3", exempt: false},
			{ip: "2a00:1450:4007:80e::200e", exempt: true, matched: "2a00:1450::/32"},
			{ip: "2a01::1", exempt: false},
		} {
			tc := tc
			t.Run(tc.ip, func(t *testing.T) {
				exempt, matched, err := store.IsIPExempt(net.ParseIP(tc.ip))
				require.NoError(t, err)
				require.Equal(t, tc.exempt, exempt)
				if tc.exempt {
					require.Equal(t, tc.matched, matched)
				}
			})
		}
	})

	t.Run("deepest match wins", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SetIPExemptions([]string{"10.0.0.0/8", "10.1.0.0/16"}))
		exempt, matched, err := store.IsIPExempt(net.ParseIP("10.1.2.3"))
		require.NoError(t, err)
		require.True(t, exempt)
		require.Equal(t, "10.1.0.0/16", matched)
	})

	t.Run("invalid entry", func(t *testing.T) {
		store := newTestStore(t)
		require.Error(t, store.SetIPExemptions([]string{"not an ip"}))
	})
}

func TestPathExclusions(t *testing.T) {
	store := newTestStore(t)
	require.False(t, store.IsPathExcluded("/health/"))

	store.SetExcludedPaths([]string{"/health/", "/metrics", "/static/"})
	for _, tc := range []struct {
		path     string
		excluded bool
	}{
		{path: "/health/", excluded: true},
		{path: "/health/live", excluded: true},
		{path: "/metrics", excluded: true},
		{path: "/static/css/site.css", excluded: true},
		{path: "/api/query/", excluded: false},
		{path: "/", excluded: false},
		{path: "/healthz", excluded: false},
	} {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			require.Equal(t, tc.excluded, store.IsPathExcluded(tc.path))
		})
	}
}

func TestUserExemptions(t *testing.T) {
	store := newTestStore(t)
	require.False(t, store.IsUserExempt("41"))

	store.SetUserExemptions([]string{"41", "service-backup"})
	require.True(t, store.IsUserExempt("41"))
	require.True(t, store.IsUserExempt("service-backup"))
	require.False(t, store.IsUserExempt("42"))
}
