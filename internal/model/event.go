package model

import (
	"strings"
	"time"
)

// Event represents a single decoded log line.
type Event struct {
	Timestamp time.Time `json:"ts"` // always UTC
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	SourceIP  string    `json:"src_ip"`
	Line      int       `json:"-"` // 1-based line number in the source file
}

// Filter is the set of optional predicates applied to every event.
// Empty strings and nil bounds mean the predicate is unset.
type Filter struct {
	SourceIP string     // exact match
	Contains string     // case-insensitive substring of Message
	Since    *time.Time // inclusive lower bound
	Until    *time.Time // inclusive upper bound
}

// Match reports whether e passes all active predicates.
func (f Filter) Match(e Event) bool {
	if f.SourceIP != "" && e.SourceIP != f.SourceIP {
		return false
	}
	if f.Contains != "" && !ContainsFold(e.Message, f.Contains) {
		return false
	}
	return f.InRange(e.Timestamp)
}

// InRange reports whether ts lies within [Since, Until].
func (f Filter) InRange(ts time.Time) bool {
	if f.Since != nil && ts.Before(*f.Since) {
		return false
	}
	if f.Until != nil && ts.After(*f.Until) {
		return false
	}
	return true
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return f.SourceIP == "" && f.Contains == "" && f.Since == nil && f.Until == nil
}

// ContainsFold is a case-insensitive strings.Contains.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
