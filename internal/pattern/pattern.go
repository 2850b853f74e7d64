// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package pattern implements the tiered attack-signature catalog. Every
// signature is compiled once at package initialization and shared read-only
// by every concurrent scan; a Set is immutable once built.

package pattern

import (
	"regexp"

	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
)

// Tier is the sensitivity level controlling how many attack signatures are
// active. Tiers are strictly monotonic: a tier includes every signature of
// the tiers below it.
type Tier int

const (
	TierLow Tier = iota + 1
	TierMedium
	TierHigh
)

// Tier string representations.
const (
	TierLowString    = "low"
	TierMediumString = "medium"
	TierHighString   = "high"
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return TierLowString
	case TierMedium:
		return TierMediumString
	case TierHigh:
		return TierHighString
	}
	return "unknown"
}

// ParseTier returns the tier corresponding to the given string
// representation.
func ParseTier(tier string) (Tier, error) {
	switch tier {
	case TierLowString:
		return TierLow, nil
	case TierMediumString:
		return TierMedium, nil
	case TierHighString:
		return TierHigh, nil
	default:
		return 0, wderrors.Errorf("unknown security tier `%s`", tier)
	}
}

// AttackType tags the attack family a signature belongs to.
type AttackType string

const (
	AttackXSS              AttackType = "xss"
	AttackSQLInjection     AttackType = "sqli"
	AttackCommandInjection AttackType = "command_injection"
	AttackPathTraversal    AttackType = "path_traversal"
	AttackSensitiveData    AttackType = "sensitive_data"
)

// Pattern is a single compiled attack signature.
type Pattern struct {
	Type   AttackType
	Regexp *regexp.Regexp
}

// family is the per-attack-family signature table, one ordered list of
// signatures per tier. Signatures are case-insensitive; XSS markup
// signatures additionally use `(?s)` so that script tags spanning several
// lines still match.
type family struct {
	attackType AttackType
	tiers      [3][]*regexp.Regexp
}

var families = []family{
	{
		attackType: AttackXSS,
		tiers: [3][]*regexp.Regexp{
			{
				regexp.MustCompile(`(?is)<\s*script[^>]*>`),
				regexp.MustCompile(`(?i)javascript\s*:`),
				regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus|blur|submit)\s*=`),
			},
			{
				regexp.MustCompile(`(?is)<\s*(iframe|object|embed|applet|meta)\b`),
				regexp.MustCompile(`(?i)document\s*\.\s*(cookie|write|location)`),
				regexp.MustCompile(`(?i)window\s*\.\s*location`),
				regexp.MustCompile(`(?i)\b(alert|confirm|prompt)\s*\(`),
				regexp.MustCompile(`(?i)vbscript\s*:`),
				regexp.MustCompile(`(?i)expression\s*\(`),
			},
			{
				regexp.MustCompile(`(?is)<\s*img[^>]+(src|onerror)\s*=`),
				regexp.MustCompile(`(?i)\b(eval|setTimeout|setInterval|Function)\s*\(`),
				regexp.MustCompile(`(?i)(src|href|data)\s*=\s*["']?\s*data:text/html`),
				regexp.MustCompile(`(?i)String\s*\.\s*fromCharCode\s*\(`),
			},
		},
	},
	{
		attackType: AttackSQLInjection,
		tiers: [3][]*regexp.Regexp{
			{
				regexp.MustCompile(`(?i)\bunion(\s|\+|/\*.*?\*/)+(all(\s|\+)+)?select\b`),
				regexp.MustCompile(`(?i)(;|')\s*(drop|delete|truncate|alter)\s+(table|from|database)\b`),
				regexp.MustCompile(`(?i)'\s*(or|and)\s+'?\d+'?\s*=\s*'?\d+`),
			},
			{
				regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b.+\b(from|into|set|where)\b`),
				regexp.MustCompile(`(?i)\b(benchmark|sleep|pg_sleep)\s*\(`),
				regexp.MustCompile(`(?i)\bwaitfor\s+delay\b`),
				regexp.MustCompile(`(?i)\b(information_schema|sysobjects|pg_catalog)\b`),
				regexp.MustCompile(`(?i)\bload_file\s*\(|\binto\s+(out|dump)file\b`),
			},
			{
				regexp.MustCompile(`(?i)\b(and|or)\b\s+\d+\s*=\s*\d+`),
				regexp.MustCompile(`(?i)(--|#|/\*)\s*$`),
				regexp.MustCompile(`(?i)\b(cast|convert|concat_ws|group_concat)\s*\(`),
				regexp.MustCompile(`(?i)(%27|')\s*(%6f|o)(%72|r)\b`),
			},
		},
	},
	{
		attackType: AttackCommandInjection,
		tiers: [3][]*regexp.Regexp{
			{
				regexp.MustCompile(`(?i)[;&|]\s*(cat|ls|rm|wget|curl|nc|ncat|bash|sh|cmd|powershell)\b`),
				regexp.MustCompile("\\$\\([^)]+\\)|`[^`]+`"),
			},
			{
				regexp.MustCompile(`(?i)(^|[;&|])\s*(ping|nslookup|whoami|ifconfig|ipconfig|netstat|uname|id)\b`),
				regexp.MustCompile(`(?i)/etc/(passwd|shadow|hosts|group)\b`),
				regexp.MustCompile(`(?i)\b(chmod|chown|kill|pkill|nohup)\s+`),
			},
			{
				regexp.MustCompile(`(?i)(\|\||&&)\s*[a-z_/]+`),
				regexp.MustCompile(`(?i)(%0a|%0d)\s*(cat|ls|rm|wget|curl|sh)\b`),
				regexp.MustCompile(`(?i)\b(python|python3|perl|ruby|php)\s+-[cer]\b`),
			},
		},
	},
	{
		attackType: AttackPathTraversal,
		tiers: [3][]*regexp.Regexp{
			{
				regexp.MustCompile(`\.\./|\.\.\\`),
				regexp.MustCompile(`(?i)%2e%2e(%2f|%5c|/|\\)`),
			},
			{
				regexp.MustCompile(`(?i)(%252e%252e|%c0%ae|\.%2e|%2e\.)`),
				regexp.MustCompile(`(?i)/(proc/self|windows/system32)\b`),
				regexp.MustCompile(`(?i)\b(boot|win)\.ini\b`),
			},
			{
				regexp.MustCompile(`(?i)\b(file|php|zip|data|expect|glob|phar)://`),
				regexp.MustCompile(`\.\.;/`),
			},
		},
	},
	{
		attackType: AttackSensitiveData,
		tiers: [3][]*regexp.Regexp{
			{
				regexp.MustCompile(`(?i)-----BEGIN[ A-Z]*PRIVATE KEY-----`),
				regexp.MustCompile(`(?i)\b(api[_-]?key|secret[_-]?key|access[_-]?token)\s*[=:]\s*[^&\s]{8,}`),
			},
			{
				regexp.MustCompile(`(?i)\b(passwd|password|passphrase)\s*[=:]\s*[^&\s]{4,}`),
				regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
			},
			{
				// Credit card numbers with space, dash or no separators.
				regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`),
				regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
				regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.`),
			},
		},
	},
}

// Set is the effective, ordered signature list of a tier: the union of every
// family's signatures up to the tier, ordered by family and then by tier.
// Building a set is pure and deterministic; the same tier always yields the
// same ordered list.
type Set struct {
	tier     Tier
	patterns []Pattern
}

// NewSet builds the signature set of the given tier.
func NewSet(tier Tier) *Set {
	var patterns []Pattern
	for _, f := range families {
		for t := TierLow; t <= tier; t++ {
			for _, re := range f.tiers[t-1] {
				patterns = append(patterns, Pattern{Type: f.attackType, Regexp: re})
			}
		}
	}
	return &Set{
		tier:     tier,
		patterns: patterns,
	}
}

// Tier returns the tier the set was built for.
func (s *Set) Tier() Tier { return s.tier }

// Len returns the number of signatures in the set.
func (s *Set) Len() int { return len(s.patterns) }

// Patterns returns the ordered signature list.
func (s *Set) Patterns() []Pattern { return s.patterns }

// Match is the outcome of a positive signature match.
type Match struct {
	Type AttackType
	// Fragment is the matched substring. It is the only request content the
	// match carries and is used for security event reporting only.
	Fragment string
}

// MatchString returns the first signature matching the given value, in set
// order. Repeated calls with the same value always return the same match.
func (s *Set) MatchString(value string) (Match, bool) {
	for i := range s.patterns {
		p := &s.patterns[i]
		if fragment := p.Regexp.FindString(value); fragment != "" {
			return Match{Type: p.Type, Fragment: fragment}, true
		}
	}
	return Match{}, false
}
