// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package ratelimit

import (
	"strings"
)

// NormalizePath collapses numeric path segments into an `:id` placeholder so
// that per-resource endpoints share one quota bucket:
//
//	/docs/42/          -> /docs/:id/
//	/docs/42/versions/7 -> /docs/:id/versions/:id
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	changed := false
	for i, segment := range segments {
		if isNumeric(segment) {
			segments[i] = ":id"
			changed = true
		}
	}
	if !changed {
		return path
	}
	return strings.Join(segments, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
