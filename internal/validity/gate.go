// Package validity classifies supplier offers by price age.
package validity

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Default freshness thresholds in days.
const (
	DefaultMaxAgeDays     = 14
	DefaultBlockAfterDays = 28
)

// Status is the freshness class of an offer.
type Status string

const (
	// StatusFresh offers are usable without confirmation.
	StatusFresh Status = "fresh"
	// StatusStale offers are usable only with explicit confirmation.
	StatusStale Status = "stale"
	// StatusBlocked offers can never be used.
	StatusBlocked Status = "blocked"
)

// Reason explains a blocked or stale verdict.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoCapturedAt Reason = "no_captured_at"
	ReasonTooOld       Reason = "too_old"
	ReasonPastMaxAge   Reason = "past_max_age"
)

// Verdict is the result of evaluating one offer against the gate.
type Verdict struct {
	Status     Status
	Reason     Reason
	AgeDays    float64
	CapturedAt time.Time
	// Expired is set when valid_until is present and has passed. It never
	// rejects the offer on its own.
	Expired bool
}

// Usable reports whether the offer may be used, given the caller's stale
// confirmation.
func (v Verdict) Usable(confirmStale bool) bool {
	switch v.Status {
	case StatusFresh:
		return true
	case StatusStale:
		return confirmStale
	default:
		return false
	}
}

// Gate holds the freshness thresholds.
type Gate struct {
	MaxAgeDays     int `json:"max_age_days" mapstructure:"max_age_days"`
	BlockAfterDays int `json:"block_after_days" mapstructure:"block_after_days"`
}

// DefaultGate returns a gate with the default thresholds.
func DefaultGate() Gate {
	return Gate{MaxAgeDays: DefaultMaxAgeDays, BlockAfterDays: DefaultBlockAfterDays}
}

// Validate checks that the thresholds are ordered and positive.
func (g Gate) Validate() error {
	if g.MaxAgeDays <= 0 {
		return eris.Errorf("validity: max_age_days must be positive, got %d", g.MaxAgeDays)
	}
	if g.BlockAfterDays < g.MaxAgeDays {
		return eris.Errorf("validity: block_after_days (%d) must be >= max_age_days (%d)", g.BlockAfterDays, g.MaxAgeDays)
	}
	return nil
}

// Check evaluates captured_at and valid_until against now.
func (g Gate) Check(capturedAt, validUntil string, now time.Time) Verdict {
	captured, ok := ParseTimestamp(capturedAt)
	if !ok {
		return Verdict{Status: StatusBlocked, Reason: ReasonNoCapturedAt}
	}

	v := Verdict{
		Status:     StatusFresh,
		AgeDays:    AgeDays(captured, now),
		CapturedAt: captured,
	}
	if until, ok := ParseTimestamp(validUntil); ok && now.After(until) {
		v.Expired = true
	}

	switch {
	case v.AgeDays > float64(g.BlockAfterDays):
		v.Status = StatusBlocked
		v.Reason = ReasonTooOld
	case v.AgeDays > float64(g.MaxAgeDays):
		v.Status = StatusStale
		v.Reason = ReasonPastMaxAge
	}
	return v
}

// AgeDays returns the fractional days between from and to, never negative.
func AgeDays(from, to time.Time) float64 {
	d := to.Sub(from).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an offer timestamp. Values without a zone are taken
// as UTC. Blank or unparseable values report false.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
