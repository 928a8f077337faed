package scraper

import (
	"strconv"
	"strings"
)

// CleanPrice extracts a numeric price from raw marketplace text such as
// "$1,200", "£450 OBO" or "$300 - $400". Ranges resolve to their first
// value. Returns nil when no price can be read ("Free", "SOLD", "").
func CleanPrice(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if i := strings.IndexAny(s, "-–"); i > 0 {
		s = s[:i]
	}
	s = strings.NewReplacer("$", "", "£", "", "€", "", ",", "", " ", "").Replace(s)

	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return nil
	}
	return &v
}

// CleanText collapses runs of whitespace (including newlines from scraped
// markup) to single spaces and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
