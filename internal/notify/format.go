package notify

import (
	"fmt"
	"strings"
	"unicode"

	"retrievr/monitor-service/internal/model"
)

const smsMaxLen = 1600

// priorityTag picks the display banner for an alert. The cutoffs here are
// display-only; the dispatch decision lives in Policy.
func priorityTag(a model.Alert) string {
	switch {
	case a.Result.Recommendation == model.RecommendationHighPriority || a.Result.MatchScore >= 8:
		return "🚨 HIGH PRIORITY"
	case a.Result.MatchScore >= 6:
		return "⚠️ POTENTIAL MATCH"
	default:
		return "📍 POSSIBLE MATCH"
	}
}

func itemDescription(p model.SearchProfile) string {
	desc := strings.TrimSpace(strings.TrimSpace(p.ItemMake) + " " + strings.TrimSpace(p.ItemModel))
	if desc == "" {
		return "your item"
	}
	return desc
}

func priceText(p *float64) string {
	if p == nil {
		return "Unknown"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// EmailSubject is the one-line summary for the owner's inbox.
func EmailSubject(a model.Alert) string {
	return fmt.Sprintf("%s: %s spotted on %s", priorityTag(a), itemDescription(a.Profile), capitalize(a.Listing.Marketplace))
}

// EmailBody is the full plain-text alert: listing details, the analysis
// that flagged it, and the safety instructions.
func EmailBody(a model.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", priorityTag(a))
	fmt.Fprintf(&b, "A listing matching %s was found on %s.\n\n",
		itemDescription(a.Profile), capitalize(a.Listing.Marketplace))

	fmt.Fprintf(&b, "Listing: %s\n", a.Listing.Title)
	fmt.Fprintf(&b, "Price: %s\n", priceText(a.Listing.Price))
	fmt.Fprintf(&b, "Location: %s\n", fallbackText(a.Listing.Location, "Unknown"))
	fmt.Fprintf(&b, "View: %s\n\n", a.Listing.URL)

	fmt.Fprintf(&b, "Match score: %.1f/10 (confidence: %s)\n\n", a.Result.MatchScore, a.Result.ConfidenceLevel)
	fmt.Fprintf(&b, "Analysis:\n%s\n", a.Result.Reasoning)

	if len(a.Result.KeyIndicators) > 0 {
		b.WriteString("\nMatching factors:\n")
		for _, ind := range a.Result.KeyIndicators {
			fmt.Fprintf(&b, "  - %s\n", ind)
		}
	}
	if len(a.Result.Concerns) > 0 {
		b.WriteString("\nThings to verify:\n")
		for _, c := range a.Result.Concerns {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}

	b.WriteString("\nContact police if this is your item. Do NOT contact the seller directly.\n\n-Retrievr\n")
	return b.String()
}

// SMSText is the short-form alert, truncated to the carrier limit.
func SMSText(a model.Alert) string {
	msg := fmt.Sprintf(`%s

%s found on %s!

Score: %.1f/10
Price: %s
Location: %s

View: %s

Contact police if this is your item. Do NOT contact the seller directly.

-Retrievr`,
		priorityTag(a),
		itemDescription(a.Profile),
		capitalize(a.Listing.Marketplace),
		a.Result.MatchScore,
		priceText(a.Listing.Price),
		fallbackText(a.Listing.Location, "Unknown"),
		a.Listing.URL,
	)

	if r := []rune(msg); len(r) > smsMaxLen {
		msg = string(r[:smsMaxLen-3]) + "..."
	}
	return msg
}

// TelegramText is the ops-feed rendering: same facts as the SMS plus the
// profile it hit, for whoever watches the channel.
func TelegramText(a model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", priorityTag(a))
	fmt.Fprintf(&b, "Profile: %s\n", a.Profile.Name)
	fmt.Fprintf(&b, "Listing: %s (%s)\n", a.Listing.Title, capitalize(a.Listing.Marketplace))
	fmt.Fprintf(&b, "Score: %.1f/10, %s, %s\n", a.Result.MatchScore, a.Result.ConfidenceLevel, a.Result.Recommendation)
	fmt.Fprintf(&b, "Price: %s, Location: %s\n", priceText(a.Listing.Price), fallbackText(a.Listing.Location, "Unknown"))
	fmt.Fprintf(&b, "%s", a.Listing.URL)
	return b.String()
}

func fallbackText(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
