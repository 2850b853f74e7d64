// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package ratelimit

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
)

// Rule is a per-path quota: at most Limit requests per Period for requests
// whose normalized path starts with Prefix.
type Rule struct {
	Prefix string
	Limit  int
	Period time.Duration
}

// ParseQuota parses a quota string of the shape `N/period`, where period is
// a named unit (`second`, `minute`, `hour`, `day`) or a Go duration such as
// `60s`.
func ParseQuota(quota string) (limit int, period time.Duration, err error) {
	parts := strings.SplitN(strings.TrimSpace(quota), "/", 2)
	if len(parts) != 2 {
		return 0, 0, wderrors.Errorf("malformed quota `%s`: expected `N/period`", quota)
	}

	limit, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || limit <= 0 {
		return 0, 0, wderrors.Errorf("malformed quota `%s`: invalid request count `%s`", quota, parts[0])
	}

	switch p := strings.TrimSpace(parts[1]); p {
	case "second", "sec", "s":
		period = time.Second
	case "minute", "min", "m":
		period = time.Minute
	case "hour", "h":
		period = time.Hour
	case "day", "d":
		period = 24 * time.Hour
	default:
		period, err = time.ParseDuration(p)
		if err != nil || period <= 0 {
			return 0, 0, wderrors.Errorf("malformed quota `%s`: invalid period `%s`", quota, p)
		}
	}

	return limit, period, nil
}

// buildRules parses the configured rule table, dropping malformed entries,
// and returns the rules sorted by decreasing prefix length so that the first
// matching rule is the longest-matching one. The returned error collection
// reports the dropped entries.
func buildRules(table map[string]string) (rules []Rule, errs wderrors.ErrorCollection) {
	for prefix, quota := range table {
		limit, period, err := ParseQuota(quota)
		if err != nil {
			errs.Add(wderrors.Wrapf(err, "rate rule `%s`", prefix))
			continue
		}
		rules = append(rules, Rule{Prefix: prefix, Limit: limit, Period: period})
	}
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].Prefix) != len(rules[j].Prefix) {
			return len(rules[i].Prefix) > len(rules[j].Prefix)
		}
		return rules[i].Prefix < rules[j].Prefix
	})
	return rules, errs
}

// match returns the longest-prefix rule applying to the normalized path, or
// the default rule.
func (l *Limiter) match(path string) Rule {
	for _, rule := range l.rules {
		if strings.HasPrefix(path, rule.Prefix) {
			return rule
		}
	}
	return l.defaultRule
}
