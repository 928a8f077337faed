// Package listing defines the lifecycle state machine for marketplace
// listings and the canonical-URL rules used for deduplication.
//
// Valid status graph:
//
//	new ──► analyzed ──► match_found ──► ignored
//	 │                       ▲              ▲
//	 └───────────────────────┘              │
//	                         analyzed ──────┘
//
// ignored is terminal. A listing that was never scored (oracle failed for
// every profile) stays new and is picked up again on the next cycle.
package listing

import (
	"fmt"
	"strings"
)

// Status values mirror the status column on the listings table.
type Status string

const (
	StatusNew        Status = "new"
	StatusAnalyzed   Status = "analyzed"
	StatusMatchFound Status = "match_found"
	StatusIgnored    Status = "ignored"
)

// validTransitions lists every allowed (from → to) pair. Progression is
// strictly monotonic: a listing never moves back toward new.
var validTransitions = map[Status][]Status{
	StatusNew:        {StatusAnalyzed, StatusMatchFound},
	StatusAnalyzed:   {StatusMatchFound, StatusIgnored},
	StatusMatchFound: {StatusIgnored},
	// ignored is terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusNew, StatusAnalyzed, StatusMatchFound, StatusIgnored:
		return st, nil
	}
	return "", fmt.Errorf("unknown listing status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsMatch returns true when status is match_found (the listing crossed the
// match threshold for at least one profile).
func IsMatch(s Status) bool { return s == StatusMatchFound }

// CanonicalURL reduces a raw listing URL to the dedup key: the URL with its
// query string and fragment stripped. Two scrapes of the same item that
// differ only in tracking parameters map to one listing row.
func CanonicalURL(raw string) string {
	u := strings.TrimSpace(raw)
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return u
}
