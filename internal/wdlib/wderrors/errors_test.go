// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package wderrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
)

func TestWithInfo(t *testing.T) {
	t.Run("single info", func(t *testing.T) {
		err := errors.New("an error")
		info := map[string]string{
			"k1": "v1",
			"k2": "v2",
		}
		err = wderrors.WithInfo(err, info)
		err = wderrors.Wrap(err, "an error occurred")
		got := wderrors.Info(err)
		require.Equal(t, info, got)
	})

	t.Run("multiple info", func(t *testing.T) {
		err := errors.New("an error")
		err = wderrors.WithInfo(err, map[string]string{
			"k1": "v1",
			"k2": "v2",
		})
		err = wderrors.Wrap(err, "an error occurred")
		err = wderrors.WithInfo(err, "what ever")
		err = wderrors.Wrap(err, "an error occurred")
		err = wderrors.WithInfo(err, 33)

		// Check that we get the earliest level
		got := wderrors.Info(err)
		require.Equal(t, 33, got)
	})
}

func TestTimestamp(t *testing.T) {
	t.Run("annotated", func(t *testing.T) {
		err := wderrors.New("an error")
		err = wderrors.Wrap(err, "an error occurred")
		ts, ok := wderrors.Timestamp(err)
		require.True(t, ok)
		require.False(t, ts.IsZero())
	})

	t.Run("not annotated", func(t *testing.T) {
		_, ok := wderrors.Timestamp(errors.New("an error"))
		require.False(t, ok)
	})
}

func TestErrorCollection(t *testing.T) {
	var c wderrors.ErrorCollection
	require.NoError(t, c.ToError())
	c.Add(errors.New("error 1"))
	c.Add(errors.New("error 2"))
	err := c.ToError()
	require.Error(t, err)
	require.Equal(t, "multiple errors occurred: (error 1) error 1; (error 2) error 2", err.Error())
}
