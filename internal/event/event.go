// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package event defines the security event records produced by the pipeline
// and the audit sink collaborator interface they are delivered to. Delivery
// is best-effort: a sink failure never affects the block/allow decision.

package event

import (
	"context"
	"net"
	"sync"
	"time"
)

// Security event types.
const (
	TypeAttackDetected    = "attack_detected"
	TypeIPBlocked         = "ip_blocked"
	TypeIPUnblocked       = "ip_unblocked"
	TypeRateLimitExceeded = "rate_limit_exceeded"
	TypeRateLimitWarning  = "rate_limit_warning"
)

// Severity of a security event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Record is a single structured security event.
type Record struct {
	Type        string
	Description string
	// Principal is the authenticated principal identifier, empty for
	// anonymous requests.
	Principal string
	ClientIP  net.IP
	Severity  Severity
	Timestamp time.Time
	// Details carries event-specific context, eg. the attack type and the
	// matched fragment. It must not carry request content beyond the matched
	// substring.
	Details map[string]interface{}
}

// Sink is the audit collaborator accepting security event records. It is
// called exactly once per detected event.
type Sink interface {
	RecordSecurityEvent(ctx context.Context, record Record) error
}

// NullSink drops every record.
type NullSink struct{}

var _ Sink = NullSink{}

func (NullSink) RecordSecurityEvent(context.Context, Record) error { return nil }

// MemorySink buffers records in memory. Test helper.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

var _ Sink = (*MemorySink)(nil)

func (s *MemorySink) RecordSecurityEvent(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a snapshot of the buffered records.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Record, len(s.records))
	copy(snapshot, s.records)
	return snapshot
}

// LastRecord returns the most recent record, if any.
func (s *MemorySink) LastRecord() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}
