package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"retrievr/monitor-service/internal/model"
)

const (
	ebayBaseURL  = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	ebayPageSize = 50
	ebayMaxPages = 3 // max 150 results per query
)

// EbayScraper fetches listings from the eBay Browse API, newest first.
// If AppToken is empty, Search returns (nil, nil) gracefully — the pool
// simply skips eBay for that cycle and logs a warning.
type EbayScraper struct {
	AppToken string
	pacer    *Pacer
	client   *http.Client
}

// NewEbayScraper constructs an adapter with a shared HTTP client.
func NewEbayScraper(appToken string, pacer *Pacer) *EbayScraper {
	return &EbayScraper{
		AppToken: appToken,
		pacer:    pacer,
		client:   &http.Client{Timeout: httpTimeout},
	}
}

// Marketplace returns the registry name for this adapter.
func (s *EbayScraper) Marketplace() string { return "ebay" }

// ebaySearchResponse mirrors the top-level Browse API search response.
type ebaySearchResponse struct {
	ItemSummaries []ebayItemSummary `json:"itemSummaries"`
	Total         int               `json:"total"`
}

// ebayItemSummary mirrors a single Browse API item summary.
type ebayItemSummary struct {
	ItemID           string       `json:"itemId"`
	Title            string       `json:"title"`
	ShortDescription string       `json:"shortDescription"`
	Price            ebayPrice    `json:"price"`
	ItemWebURL       string       `json:"itemWebUrl"`
	Image            ebayImage    `json:"image"`
	AdditionalImages []ebayImage  `json:"additionalImages"`
	ItemLocation     ebayLocation `json:"itemLocation"`
}

type ebayPrice struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ebayImage struct {
	ImageURL string `json:"imageUrl"`
}

type ebayLocation struct {
	City            string `json:"city"`
	StateOrProvince string `json:"stateOrProvince"`
}

// Search retrieves all available items for the query, iterating offsets
// until no more results or ebayMaxPages is reached. Returns nil without
// error when the app token is missing.
func (s *EbayScraper) Search(ctx context.Context, q Query) ([]model.RawListing, error) {
	if s.AppToken == "" {
		log.Println("[scraper] EBAY_APP_TOKEN not set — skipping eBay scrape")
		return nil, nil
	}

	var results []model.RawListing

	for page := 0; page < ebayMaxPages; page++ {
		batch, err := s.searchPage(ctx, q, page*ebayPageSize)
		if err != nil {
			return results, fmt.Errorf("offset %d: %w", page*ebayPageSize, err)
		}
		if len(batch) == 0 {
			break // No more results
		}
		results = append(results, batch...)
		if len(batch) < ebayPageSize {
			break // Last page
		}
	}

	return results, nil
}

func (s *EbayScraper) searchPage(ctx context.Context, q Query, offset int) ([]model.RawListing, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("limit", strconv.Itoa(ebayPageSize))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sort", "newlyListed")

	reqURL := ebayBaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.AppToken)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", "EBAY_US")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ebay returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp ebaySearchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	results := make([]model.RawListing, 0, len(apiResp.ItemSummaries))
	for _, item := range apiResp.ItemSummaries {
		images := make([]string, 0, 1+len(item.AdditionalImages))
		if item.Image.ImageURL != "" {
			images = append(images, item.Image.ImageURL)
		}
		for _, img := range item.AdditionalImages {
			if img.ImageURL != "" {
				images = append(images, img.ImageURL)
			}
		}

		location := item.ItemLocation.City
		if item.ItemLocation.StateOrProvince != "" {
			if location != "" {
				location += ", "
			}
			location += item.ItemLocation.StateOrProvince
		}

		results = append(results, model.RawListing{
			URL:         item.ItemWebURL,
			Title:       CleanText(item.Title),
			Description: CleanText(item.ShortDescription),
			Price:       CleanPrice(item.Price.Value),
			Location:    location,
			ImageURLs:   images,
			Marketplace: s.Marketplace(),
			ExternalID:  item.ItemID,
		})
	}

	return results, nil
}
