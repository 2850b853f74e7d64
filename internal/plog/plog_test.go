// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package plog_test

import (
	"bytes"
	"fmt"
	"regexp"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/wardsec/go-ward/internal/plog"
)

func TestLogger(t *testing.T) {
	for _, level := range []plog.LogLevel{
		plog.Disabled,
		plog.Debug,
		plog.Info,
		plog.Error,
	} {
		level := level // new scope
		t.Run(level.String(), func(t *testing.T) {
			var output bytes.Buffer
			errChan := make(chan error, 1)
			logger := plog.NewLogger(level, &output, errChan)

			// Perform log calls
			logger.Debug("debug 1", " debug 2", " debug 3")
			logger.Info("info 1 ", "info 2 ", "info 3")
			err := errors.New("error message")
			logger.Error(err)

			var (
				re      = "ward/%s - [0-9]{4}(-[0-9]{2}){2}T([0-9]{2}:){2}[0-9]{2}.?[0-9]{0,6} - %s"
				debugRe = regexp.MustCompile(fmt.Sprintf(re, plog.Debug, "debug 1 debug 2 debug 3"))
				infoRe  = regexp.MustCompile(fmt.Sprintf(re, plog.Info, "info 1 info 2 info 3"))
				errorRe = regexp.MustCompile(fmt.Sprintf(re, plog.Error, "error message"))
			)
			logged := output.String()
			switch level {
			case plog.Disabled:
				require.Empty(t, logged)
			case plog.Debug:
				require.Regexp(t, debugRe, logged)
				require.Regexp(t, infoRe, logged)
				require.Regexp(t, errorRe, logged)
			case plog.Info:
				require.NotRegexp(t, debugRe, logged)
				require.Regexp(t, infoRe, logged)
				require.Regexp(t, errorRe, logged)
			case plog.Error:
				require.NotRegexp(t, debugRe, logged)
				require.NotRegexp(t, infoRe, logged)
				require.Regexp(t, errorRe, logged)
			}

			// The error should have been sent into the channel no matter the level
			select {
			case sent := <-errChan:
				require.Equal(t, err, sent)
			default:
				require.FailNow(t, "no error sent into the error channel")
			}
		})
	}
}

func TestWithBackoff(t *testing.T) {
	t.Run("repeated errors are logged on powers of two", func(t *testing.T) {
		var output bytes.Buffer
		logger := plog.WithBackoff(plog.NewLogger(plog.Error, &output, nil))

		err := errors.New("store unreachable")
		for i := 0; i < 10; i++ {
			logger.Error(err)
		}

		// Occurrences 1, 2, 4 and 8 are written, the rest dropped.
		require.Equal(t, 4, bytes.Count(output.Bytes(), []byte("store unreachable")))
	})

	t.Run("debug level logs every occurrence", func(t *testing.T) {
		var output bytes.Buffer
		logger := plog.WithBackoff(plog.NewLogger(plog.Debug, &output, nil))

		err := errors.New("store unreachable")
		for i := 0; i < 10; i++ {
			logger.Error(err)
		}
		require.Equal(t, 10, bytes.Count(output.Bytes(), []byte("store unreachable")))
	})

	t.Run("wrapping twice returns the same logger", func(t *testing.T) {
		logger := plog.WithBackoff(plog.NewLogger(plog.Error, &bytes.Buffer{}, nil))
		require.Equal(t, logger, plog.WithBackoff(logger))
	})
}

func TestParseLogLevel(t *testing.T) {
	for _, tc := range []struct {
		str      string
		expected plog.LogLevel
	}{
		{"debug", plog.Debug},
		{" Debug \t", plog.Debug},
		{"info", plog.Info},
		{"INFO", plog.Info},
		{"error", plog.Error},
		{"disabled", plog.Disabled},
		{"", plog.Disabled},
		{"oops", plog.Disabled},
	} {
		tc := tc
		t.Run(tc.str, func(t *testing.T) {
			require.Equal(t, tc.expected, plog.ParseLogLevel(tc.str))
		})
	}
}
