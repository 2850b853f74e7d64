// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package protection composes the defense pipeline the middleware adapters
// hang off: block gate, exemption checks, attack scanner and rate limiter,
// in that fixed order, short-circuiting on the first rejection. Internal
// failures of the scanner or the limiter stages fail open so that an
// infrastructure outage never turns into a denial of service against
// legitimate users.

package protection

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/wardsec/go-ward/internal/actor"
	"github.com/wardsec/go-ward/internal/config"
	"github.com/wardsec/go-ward/internal/event"
	"github.com/wardsec/go-ward/internal/ledger"
	"github.com/wardsec/go-ward/internal/pattern"
	"github.com/wardsec/go-ward/internal/plog"
	"github.com/wardsec/go-ward/internal/ratelimit"
	"github.com/wardsec/go-ward/internal/scan"
	"github.com/wardsec/go-ward/internal/store"
	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
	"github.com/wardsec/go-ward/internal/wdlib/wdsafe"
)

// Principal is the authenticated principal of a request, supplied by the
// caller. The zero value stands for an anonymous request.
type Principal struct {
	// ID is the application-level user identifier.
	ID string
	// APIToken identifies API clients; it takes precedence over ID when
	// deriving the rate-limiting identity.
	APIToken string
	// Superuser principals are exempt from scanning and rate limiting.
	Superuser bool
}

// identity derives the rate-limiting client identity: API token over user
// identifier over client IP.
func (p *Principal) identity(clientIP net.IP) string {
	if p != nil {
		if p.APIToken != "" {
			return ratelimit.TokenIdentity(p.APIToken)
		}
		if p.ID != "" {
			return ratelimit.UserIdentity(p.ID)
		}
	}
	return ratelimit.IPIdentity(clientIP.String())
}

// Protector holds the pipeline components and drives them for each request.
type Protector struct {
	cfg      *config.Config
	patterns *pattern.Set
	actors   *actor.Store
	ledger   *ledger.Ledger
	limiter  *ratelimit.Limiter
	routes   *RouteTable
	sink     event.Sink
	logger   *plog.Logger
}

// New builds a protector from the configuration. The route table may be nil
// when no route carries exemption flags, and the sink may be nil when no
// audit collaborator is attached.
func New(cfg *config.Config, kv store.Store, routes *RouteTable, sink event.Sink, logger *plog.Logger) (*Protector, error) {
	tier, err := pattern.ParseTier(cfg.SecurityTier())
	if err != nil {
		return nil, wderrors.Wrap(err, "protection: could not create the protector")
	}

	// Fail-open errors repeat for as long as their cause lasts, eg. a store
	// outage spanning thousands of requests, so errors are logged with
	// exponential backoff.
	logger = &plog.Logger{DebugLevelLogger: plog.WithBackoff(logger)}

	actors := actor.NewStore(logger)
	if err := actors.SetIPExemptions(cfg.ExemptIPs()); err != nil {
		return nil, wderrors.Wrap(err, "protection: could not build the ip exemption store")
	}
	actors.SetExcludedPaths(cfg.ExcludedPaths())
	actors.SetUserExemptions(cfg.ExemptUsers())

	if sink == nil {
		sink = event.NullSink{}
	}

	return &Protector{
		cfg:      cfg,
		patterns: pattern.NewSet(tier),
		actors:   actors,
		ledger:   ledger.New(kv, cfg.MaxViolations(), cfg.BlockDuration(), cfg.ViolationTTL()),
		limiter:  ratelimit.NewLimiter(kv, cfg.RateRules(), cfg.RateLimitDefault(), cfg.RateLimitCooldown(), logger),
		routes:   routes,
		sink:     sink,
		logger:   logger,
	}, nil
}

// Unblock removes the block entry and the violation record of the IP, and
// records an audit event. It is usable while the block is still live.
func (p *Protector) Unblock(ctx context.Context, ip net.IP) error {
	if err := p.ledger.Unblock(ctx, ip.String()); err != nil {
		return err
	}
	p.emit(ctx, event.Record{
		Type:        event.TypeIPUnblocked,
		Description: "IP block and violation record removed by an administrator",
		ClientIP:    ip,
		Severity:    event.SeverityInfo,
	})
	return nil
}

// Verdict is the pipeline decision for one request, rendered by the
// middleware adapters.
type Verdict struct {
	Allowed bool
	// Status and Body describe the rejection response; only meaningful when
	// the request is not allowed.
	Status int
	Body   interface{}
	// Headers are attached to the response in every case, eg. the
	// rate-limit headers on both passed and rejected requests.
	Headers http.Header
}

// Rejection bodies.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type rateLimitBody struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	RequestCount int64  `json:"request_count,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Period       string `json:"period,omitempty"`
}

// blockedDetail is the fixed block response body. It deliberately does not
// say which rule triggered the original block.
const blockedDetail = "Your IP address has been temporarily blocked due to suspicious activity. Please try again later."

func blockedVerdict() Verdict {
	return Verdict{
		Status:  http.StatusForbidden,
		Body:    errorBody{Error: "Forbidden", Detail: blockedDetail},
		Headers: make(http.Header),
	}
}

func attackVerdict(attackType pattern.AttackType) Verdict {
	return Verdict{
		Status:  http.StatusForbidden,
		Body:    errorBody{Error: "Request blocked", Detail: "Malicious request payload detected: " + string(attackType)},
		Headers: make(http.Header),
	}
}

func rateLimitVerdict(d ratelimit.Decision) Verdict {
	headers := make(http.Header)
	setRateLimitHeaders(headers, d)
	headers.Set("Retry-After", strconv.Itoa(ceilSeconds(d.RetryAfter)))
	return Verdict{
		Status: http.StatusTooManyRequests,
		Body: rateLimitBody{
			Error:        "Rate limit exceeded",
			Message:      "Too many requests. Please retry later.",
			RequestCount: d.Count,
			Limit:        d.Limit,
			Period:       d.Period.String(),
		},
		Headers: headers,
	}
}

func allowedVerdict() Verdict {
	return Verdict{Allowed: true, Headers: make(http.Header)}
}

// setRateLimitHeaders sets both the legacy X-RateLimit-* family and the
// standard RateLimit-* family.
func setRateLimitHeaders(h http.Header, d ratelimit.Decision) {
	limit := strconv.Itoa(d.Limit)
	remaining := strconv.Itoa(d.Remaining)
	reset := strconv.Itoa(ceilSeconds(d.RetryAfter))

	h.Set("X-RateLimit-Limit", limit)
	h.Set("X-RateLimit-Remaining", remaining)
	h.Set("X-RateLimit-Reset", reset)
	h.Set("RateLimit-Limit", limit)
	h.Set("RateLimit-Remaining", remaining)
	h.Set("RateLimit-Reset", reset)
}

func ceilSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Evaluate runs the request through the pipeline and returns the decision.
// The request body is restored to a readable state after scanning so that
// the application handler can consume it.
func (p *Protector) Evaluate(r *http.Request, principal *Principal) Verdict {
	ctx := r.Context()
	clientIP := scan.ClientIP(r.RemoteAddr, r.Header, p.cfg.HTTPClientIPHeader())

	// The block gate comes first: a blocked IP is rejected before any
	// exemption applies, so an attacker cannot escape a block through an
	// excluded path or by presenting credentials.
	if blocked := p.checkBlocked(ctx, clientIP); blocked {
		return blockedVerdict()
	}

	if p.actors.IsPathExcluded(r.URL.Path) {
		return allowedVerdict()
	}

	flags := p.routes.Lookup(r.URL.Path)
	exempt := p.isExemptPrincipal(clientIP, principal)

	if p.cfg.WAFEnabled() && !flags.WAFExempt && !exempt {
		if verdict, rejected := p.scanStage(ctx, r, clientIP, principal); rejected {
			return verdict
		}
	}

	if p.cfg.RateLimitEnabled() && !flags.RateLimitExempt && !exempt {
		return p.rateLimitStage(ctx, r, clientIP, principal)
	}

	return allowedVerdict()
}

// checkBlocked consults the block gate, failing open when the store is
// unreachable.
func (p *Protector) checkBlocked(ctx context.Context, clientIP net.IP) bool {
	var blocked bool
	err := wdsafe.Call(func() (err error) {
		blocked, err = p.ledger.IsBlocked(ctx, clientIP.String())
		return err
	})
	if err != nil {
		p.failOpen(err, "block gate")
		return false
	}
	return blocked
}

func (p *Protector) isExemptPrincipal(clientIP net.IP, principal *Principal) bool {
	if principal != nil {
		if principal.Superuser {
			return true
		}
		if principal.ID != "" && p.actors.IsUserExempt(principal.ID) {
			return true
		}
	}
	exempt, _, err := p.actors.IsIPExempt(clientIP)
	if err != nil {
		p.logger.Error(wderrors.Wrap(err, "protection: ip exemption lookup failed"))
		return false
	}
	return exempt
}

// scanStage extracts the request surface and scans it. A detected attack is
// recorded against the client IP; crossing the violation threshold returns
// the generic block response instead of the attack response. Internal
// failures fail open.
func (p *Protector) scanStage(ctx context.Context, r *http.Request, clientIP net.IP, principal *Principal) (verdict Verdict, rejected bool) {
	var result scan.Result
	err := wdsafe.Call(func() error {
		target := scan.Extract(r, p.cfg.MaxBodyScanSize())
		result = scan.Scan(target, p.patterns)
		return nil
	})
	if err != nil {
		p.failOpen(err, "attack scanner")
		return Verdict{}, false
	}
	if !result.Attack {
		return Verdict{}, false
	}

	p.emit(ctx, event.Record{
		Type:        event.TypeAttackDetected,
		Description: "attack pattern matched in the request",
		Principal:   principalID(principal),
		ClientIP:    clientIP,
		Severity:    event.SeverityHigh,
		Details: map[string]interface{}{
			"attack_type": string(result.Type),
			"surface":     result.Surface,
			"fragment":    result.Fragment,
			"path":        r.URL.Path,
		},
	})

	// Violation recording is best-effort: the attack rejection stands even
	// when the ledger cannot be updated.
	var count int64
	var blocked bool
	err = wdsafe.Call(func() (err error) {
		count, blocked, err = p.ledger.RecordViolation(ctx, clientIP.String())
		return err
	})
	if err != nil {
		p.logger.Error(wderrors.Wrap(err, "protection: could not record the violation"))
		return attackVerdict(result.Type), true
	}

	if blocked {
		p.emit(ctx, event.Record{
			Type:        event.TypeIPBlocked,
			Description: "IP blocked after repeated attack violations",
			Principal:   principalID(principal),
			ClientIP:    clientIP,
			Severity:    event.SeverityCritical,
			Details: map[string]interface{}{
				"violations":     count,
				"block_duration": p.cfg.BlockDuration().String(),
			},
		})
		return blockedVerdict(), true
	}

	return attackVerdict(result.Type), true
}

// rateLimitStage counts the request against its quota window. Internal
// failures fail open.
func (p *Protector) rateLimitStage(ctx context.Context, r *http.Request, clientIP net.IP, principal *Principal) Verdict {
	identity := principal.identity(clientIP)
	path := ratelimit.NormalizePath(r.URL.Path)

	var decision ratelimit.Decision
	err := wdsafe.Call(func() (err error) {
		decision, err = p.limiter.Allow(ctx, identity, path)
		return err
	})
	if err != nil {
		p.failOpen(err, "rate limiter")
		return allowedVerdict()
	}

	if !decision.Allowed {
		p.emit(ctx, event.Record{
			Type:        event.TypeRateLimitExceeded,
			Description: "request quota exceeded",
			Principal:   principalID(principal),
			ClientIP:    clientIP,
			Severity:    event.SeverityWarning,
			Details: map[string]interface{}{
				"identity":      identity,
				"path":          path,
				"request_count": decision.Count,
				"limit":         decision.Limit,
			},
		})
		return rateLimitVerdict(decision)
	}

	if decision.NearLimit {
		p.emit(ctx, event.Record{
			Type:        event.TypeRateLimitWarning,
			Description: "request quota nearly exhausted",
			Principal:   principalID(principal),
			ClientIP:    clientIP,
			Severity:    event.SeverityWarning,
			Details: map[string]interface{}{
				"identity":      identity,
				"path":          path,
				"request_count": decision.Count,
				"limit":         decision.Limit,
			},
		})
	}

	verdict := allowedVerdict()
	setRateLimitHeaders(verdict.Headers, decision)
	return verdict
}

// failOpen logs an internal pipeline failure and lets the request through.
// Store outages and stage panics both land here.
func (p *Protector) failOpen(err error, stage string) {
	p.logger.Error(wderrors.Wrapf(err, "protection: %s failed, letting the request through", stage))
}

// emit delivers a security event to the sink, best-effort.
func (p *Protector) emit(ctx context.Context, record event.Record) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := p.sink.RecordSecurityEvent(ctx, record); err != nil {
		p.logger.Error(wderrors.Wrap(err, "protection: could not record the security event"))
	}
}

func principalID(principal *Principal) string {
	if principal == nil {
		return ""
	}
	return principal.ID
}
