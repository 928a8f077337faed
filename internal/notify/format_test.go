package notify

import (
	"strings"
	"testing"

	"retrievr/monitor-service/internal/model"
)

func formatAlert() model.Alert {
	price := 450.0
	return model.Alert{
		Result: model.AnalysisResult{
			MatchScore:      8.5,
			ConfidenceLevel: "high",
			Reasoning:       "make, model and color all match",
			KeyIndicators:   []string{"exact model", "matching scratch"},
			Concerns:        []string{"no serial number shown"},
			Recommendation:  model.RecommendationHighPriority,
		},
		Listing: model.Listing{
			Title:       "Trek Domane SL 7 54cm",
			Price:       &price,
			Location:    "oakland",
			Marketplace: "craigslist",
			URL:         "https://sfbay.craigslist.org/bik/123.html",
		},
		Profile: model.SearchProfile{
			Name:      "My Trek",
			ItemMake:  "Trek",
			ItemModel: "Domane SL 7",
		},
	}
}

func TestPriorityTag(t *testing.T) {
	cases := []struct {
		name  string
		score float64
		rec   string
		want  string
	}{
		{"score at high cutoff", 8.0, model.RecommendationInvestigate, "🚨 HIGH PRIORITY"},
		{"high priority rec below cutoff", 6.5, model.RecommendationHighPriority, "🚨 HIGH PRIORITY"},
		{"mid score", 6.0, model.RecommendationInvestigate, "⚠️ POTENTIAL MATCH"},
		{"low score", 5.9, model.RecommendationIgnore, "📍 POSSIBLE MATCH"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := model.Alert{Result: model.AnalysisResult{MatchScore: tc.score, Recommendation: tc.rec}}
			if got := priorityTag(a); got != tc.want {
				t.Errorf("priorityTag(score=%.1f, rec=%s) = %q, want %q", tc.score, tc.rec, got, tc.want)
			}
		})
	}
}

func TestEmailSubject(t *testing.T) {
	got := EmailSubject(formatAlert())
	want := "🚨 HIGH PRIORITY: Trek Domane SL 7 spotted on Craigslist"
	if got != want {
		t.Errorf("EmailSubject() = %q, want %q", got, want)
	}
}

func TestEmailBody_CarriesAnalysisAndSafetyNote(t *testing.T) {
	body := EmailBody(formatAlert())

	for _, want := range []string{
		"Trek Domane SL 7 54cm",
		"Price: $450.00",
		"Match score: 8.5/10 (confidence: high)",
		"make, model and color all match",
		"Matching factors:",
		"  - exact model",
		"Things to verify:",
		"  - no serial number shown",
		"Do NOT contact the seller directly",
		"-Retrievr",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("EmailBody missing %q", want)
		}
	}
}

func TestEmailSubject_FallsBackWhenProfileBare(t *testing.T) {
	a := formatAlert()
	a.Profile.ItemMake = ""
	a.Profile.ItemModel = ""

	if got := EmailSubject(a); !strings.Contains(got, "your item") {
		t.Errorf("EmailSubject() = %q, want item fallback", got)
	}
}

func TestSMSText_StaysWithinCarrierLimit(t *testing.T) {
	a := formatAlert()
	a.Result.Reasoning = strings.Repeat("x", 3000)
	a.Listing.Title = strings.Repeat("é", 2000) // multi-byte runes

	msg := SMSText(a)
	if n := len([]rune(msg)); n > smsMaxLen {
		t.Errorf("SMSText length = %d runes, want <= %d", n, smsMaxLen)
	}
	if !strings.HasSuffix(msg, "...") {
		t.Error("truncated SMSText should end with ellipsis")
	}
}

func TestSMSText_ShortMessageUntouched(t *testing.T) {
	msg := SMSText(formatAlert())
	if strings.HasSuffix(msg, "...") {
		t.Error("short SMSText should not be truncated")
	}
	for _, want := range []string{"Score: 8.5/10", "View: https://sfbay.craigslist.org/bik/123.html", "-Retrievr"} {
		if !strings.Contains(msg, want) {
			t.Errorf("SMSText missing %q", want)
		}
	}
}

func TestTelegramText_IncludesProfileAndRecommendation(t *testing.T) {
	msg := TelegramText(formatAlert())
	for _, want := range []string{"Profile: My Trek", "high_priority", "Score: 8.5/10"} {
		if !strings.Contains(msg, want) {
			t.Errorf("TelegramText missing %q", want)
		}
	}
}
