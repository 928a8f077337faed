package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"retrievr/monitor-service/internal/model"
)

const craigslistMaxItems = 100

// CraigslistScraper fetches listings from a Craigslist regional site's
// for-sale search RSS feed. No credentials required.
type CraigslistScraper struct {
	site   string // craigslist subdomain, e.g. "sfbay"
	pacer  *Pacer
	parser *gofeed.Parser
}

// NewCraigslistScraper constructs an adapter for the given regional site.
func NewCraigslistScraper(site string, pacer *Pacer) *CraigslistScraper {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: httpTimeout}
	return &CraigslistScraper{site: site, pacer: pacer, parser: parser}
}

// Marketplace returns the registry name for this adapter.
func (s *CraigslistScraper) Marketplace() string { return "craigslist" }

// Search fetches and parses the search feed for the query. Craigslist sites
// are regional, so q.Location is already encoded in the site choice.
func (s *CraigslistScraper) Search(ctx context.Context, q Query) ([]model.RawListing, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	feedURL := fmt.Sprintf("https://%s.craigslist.org/search/sss?format=rss&query=%s",
		s.site, url.QueryEscape(q.Text))

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch craigslist feed: %w", err)
	}

	count := len(feed.Items)
	if count > craigslistMaxItems {
		count = craigslistMaxItems
	}

	results := make([]model.RawListing, 0, count)
	for _, item := range feed.Items[:count] {
		if item.Link == "" {
			continue
		}

		var images []string
		for _, enc := range item.Enclosures {
			if enc.URL != "" {
				images = append(images, enc.URL)
			}
		}

		results = append(results, model.RawListing{
			URL:         item.Link,
			Title:       CleanText(item.Title),
			Description: CleanText(item.Description),
			Price:       priceFromTitle(item.Title),
			Location:    s.site,
			ImageURLs:   images,
			Marketplace: s.Marketplace(),
			ExternalID:  postIDFromLink(item.Link),
		})
	}

	return results, nil
}

// priceFromTitle pulls the "$1,200" style price craigslist appends to feed
// titles. Returns nil when the title carries no price.
func priceFromTitle(title string) *float64 {
	i := strings.LastIndexByte(title, '$')
	if i < 0 {
		return nil
	}
	return CleanPrice(title[i:])
}

// postIDFromLink extracts the numeric post id, the last path segment of a
// craigslist listing URL minus the ".html" suffix.
func postIDFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	seg := u.Path
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	return strings.TrimSuffix(seg, ".html")
}
