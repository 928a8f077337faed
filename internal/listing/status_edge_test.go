package listing_test

// ── Additional edge-case tests ────────────────────────────────────────────
//
// This file extends status_test.go with ParseStatus strictness cases and
// the CanonicalURL dedup-key rules. The core state-machine matrix is
// already covered in status_test.go.

import (
	"testing"

	"retrievr/monitor-service/internal/listing"
)

// ParseStatus must be case-sensitive — uppercase variants must not be valid.
func TestParseStatus_CaseSensitive(t *testing.T) {
	uppercase := []string{"NEW", "Analyzed", "MATCH_FOUND", "Ignored"}
	for _, s := range uppercase {
		_, err := listing.ParseStatus(s)
		if err == nil {
			t.Errorf("ParseStatus(%q) should reject non-lowercase value, got nil error", s)
		}
	}
}

// ParseStatus must reject whitespace-padded strings.
func TestParseStatus_WithWhitespace(t *testing.T) {
	padded := []string{" new", "new ", " analyzed "}
	for _, s := range padded {
		_, err := listing.ParseStatus(s)
		if err == nil {
			t.Errorf("ParseStatus(%q) should reject padded value, got nil error", s)
		}
	}
}

// All four constants must round-trip through ParseStatus without error.
func TestParseStatus_AllConstantsRoundTrip(t *testing.T) {
	all := []listing.Status{
		listing.StatusNew,
		listing.StatusAnalyzed,
		listing.StatusMatchFound,
		listing.StatusIgnored,
	}
	for _, s := range all {
		got, err := listing.ParseStatus(string(s))
		if err != nil {
			t.Errorf("ParseStatus(%q) unexpected error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

// new is the mandatory initial state for any listing.
// Verify it is never reachable from any other state.
func TestIsTransitionAllowed_NewIsNeverReachable(t *testing.T) {
	sources := []listing.Status{
		listing.StatusAnalyzed,
		listing.StatusMatchFound,
		listing.StatusIgnored,
	}
	for _, from := range sources {
		if listing.IsTransitionAllowed(from, listing.StatusNew) {
			t.Errorf(
				"IsTransitionAllowed(%s → new) must be false: new is only an initial state",
				from,
			)
		}
	}
}

// ── CanonicalURL ───────────────────────────────────────────────────────────

func TestCanonicalURL_StripsQueryAndFragment(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"https://sfbay.craigslist.org/sby/bik/d/trek-domane/7712.html", "https://sfbay.craigslist.org/sby/bik/d/trek-domane/7712.html"},
		{"https://www.ebay.com/itm/1234?hash=abc&_trkparms=xyz", "https://www.ebay.com/itm/1234"},
		{"https://www.ebay.com/itm/1234#shipping", "https://www.ebay.com/itm/1234"},
		{"https://www.ebay.com/itm/1234?campid=5#top", "https://www.ebay.com/itm/1234"},
		{"  https://example.com/a  ", "https://example.com/a"},
		{"", ""},
	}
	for _, c := range cases {
		if got := listing.CanonicalURL(c.raw); got != c.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

// Two raw URLs that differ only in tracking parameters must share a dedup key.
func TestCanonicalURL_SameKeyForTrackedVariants(t *testing.T) {
	a := listing.CanonicalURL("https://www.ebay.com/itm/99?src=email")
	b := listing.CanonicalURL("https://www.ebay.com/itm/99?src=push&ref=2")
	if a != b {
		t.Errorf("variants canonicalized to %q and %q, want equal", a, b)
	}
}
