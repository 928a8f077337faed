package matcher

import (
	"errors"
	"strings"
	"testing"

	"retrievr/monitor-service/internal/model"
)

func validResponse() matchResponse {
	return matchResponse{
		MatchScore:      7.5,
		ConfidenceLevel: "high",
		Reasoning:       "make and model match, same color",
		KeyIndicators:   []string{"exact model"},
		Concerns:        []string{"no serial number visible"},
		Recommendation:  model.RecommendationInvestigate,
	}
}

func TestValidateResponse_AcceptsWellFormed(t *testing.T) {
	if err := validateResponse(validResponse()); err != nil {
		t.Fatalf("validateResponse() = %v, want nil", err)
	}

	// Both ends of the score scale are legal.
	for _, score := range []float64{0, 10} {
		r := validResponse()
		r.MatchScore = score
		if err := validateResponse(r); err != nil {
			t.Errorf("validateResponse(score=%.0f) = %v, want nil", score, err)
		}
	}
}

func TestValidateResponse_RejectsMalformed(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*matchResponse)
	}{
		{"score below zero", func(r *matchResponse) { r.MatchScore = -0.1 }},
		{"score above ten", func(r *matchResponse) { r.MatchScore = 10.5 }},
		{"unknown confidence", func(r *matchResponse) { r.ConfidenceLevel = "certain" }},
		{"unknown recommendation", func(r *matchResponse) { r.Recommendation = "call police" }},
		{"blank reasoning", func(r *matchResponse) { r.Reasoning = "   " }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validResponse()
			tc.mutate(&r)

			err := validateResponse(r)
			if err == nil {
				t.Fatal("validateResponse() = nil, want error")
			}
			var ire *InvalidResponseError
			if !errors.As(err, &ire) {
				t.Fatalf("error type = %T, want *InvalidResponseError", err)
			}
		})
	}
}

func TestBuildAnalysisPrompt_IncludesProfileAndListing(t *testing.T) {
	price := 450.0
	l := model.Listing{
		Title:       "Trek Domane SL 7 54cm",
		Description: "barely used, quick sale",
		Price:       &price,
		Location:    "oakland",
		Marketplace: "craigslist",
		URL:         "https://sfbay.craigslist.org/bik/123.html",
		ImageURLs:   []string{"a.jpg", "b.jpg"},
	}
	p := model.SearchProfile{
		ItemMake:       "Trek",
		ItemModel:      "Domane SL 7",
		Color:          "blue",
		UniqueFeatures: "scratch on top tube",
		SearchTerms:    []string{"54cm", "ultegra"},
	}

	prompt := buildAnalysisPrompt(l, p)

	for _, want := range []string{
		"--- STOLEN ITEM DETAILS ---",
		"--- MARKETPLACE LISTING ---",
		"--- ANALYSIS TASK ---",
		"Make: Trek",
		"Model: Domane SL 7",
		"Unique Features: scratch on top tube",
		"Additional Search Terms: 54cm, ultegra",
		"Title: Trek Domane SL 7 54cm",
		"Price: $450.00",
		"Images Available: 2 images",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildAnalysisPrompt_FallsBackOnMissingFields(t *testing.T) {
	prompt := buildAnalysisPrompt(model.Listing{}, model.SearchProfile{})

	for _, want := range []string{
		"Make: Unknown",
		"Description: No description provided",
		"Unique Features: None specified",
		"Price: Unknown",
		"Title: No title",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing fallback %q", want)
		}
	}
}

func TestInvalidResponseError_Message(t *testing.T) {
	err := &InvalidResponseError{Reason: "empty reasoning"}
	if got := err.Error(); got != "invalid model response: empty reasoning" {
		t.Errorf("Error() = %q", got)
	}
}
