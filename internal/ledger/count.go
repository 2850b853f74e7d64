// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package ledger

import (
	"strconv"

	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
)

func parseCount(value string) (int64, error) {
	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, wderrors.Wrapf(err, "ledger: unexpected counter value `%s`", value)
	}
	return count, nil
}
