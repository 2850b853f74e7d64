// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package wdtime

import (
	"sync/atomic"
)

type BackoffCounter uint64

// Do atomically increments the backoff counter and calls function `f` along
// with the incremented counter value when the new count is a power of two.
func (c *BackoffCounter) Do(f func(count uint64)) {
	v := atomic.AddUint64((*uint64)(c), 1)
	// Is power of two? (0 included)
	if (v & (v - 1)) == 0 {
		f(v)
	}
}
