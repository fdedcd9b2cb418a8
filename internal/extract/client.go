package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"caringest/internal/domain"

	"go.uber.org/zap"
)

// Client calls the Firecrawl scrape API to turn rendered listing pages into
// structured records. One request per page; the service does the browser
// work, we just describe the fields we want.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	waitForMs  int
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, waitForMs int, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		waitForMs:  waitForMs,
		logger:     logger,
	}
}

type scrapeRequest struct {
	URL             string      `json:"url"`
	Formats         []string    `json:"formats"`
	Extract         extractSpec `json:"extract"`
	WaitFor         int         `json:"waitFor"`
	OnlyMainContent bool        `json:"onlyMainContent"`
}

type extractSpec struct {
	Prompt string         `json:"prompt"`
	Schema map[string]any `json:"schema"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		// Older API versions nest under "json", newer under "extract".
		Extract extractPayload `json:"extract"`
		JSON    extractPayload `json:"json"`
	} `json:"data"`
}

type extractPayload struct {
	Listings []domain.RawListing `json:"listings"`
	ImageURL json.RawMessage     `json:"image_url"`
}

func listingFields() map[string]any {
	str := map[string]any{"type": "string"}
	num := map[string]any{"type": "number"}
	return map[string]any{
		"title":        str,
		"price":        num,
		"year":         num,
		"mileage":      num,
		"transmission": str,
		"fuel_type":    str,
		"location":     str,
		"image_url":    str,
		"source_url":   str,
	}
}

func listingsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"listings": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": listingFields(),
					"required":   []string{"title"},
				},
			},
		},
	}
}

func imageSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"image_url": map[string]any{"type": "string"},
		},
	}
}

// Listings extracts up to limit car listings from a search results page.
func (c *Client) Listings(ctx context.Context, pageURL string, limit int) ([]domain.RawListing, error) {
	prompt := fmt.Sprintf("Extract up to %d used or preowned car listings from this page. "+
		"For each listing extract: title (full car name with year, make, model), "+
		"price (as a number in Rands without currency symbols), year (4 digit year), "+
		"mileage (in kilometers as a number without 'km'), transmission (manual or automatic), "+
		"fuel_type (petrol, diesel, hybrid, or electric), location (city or area), "+
		"image_url (main car image URL), and source_url (direct link to the listing).", limit)

	payload, err := c.scrape(ctx, scrapeRequest{
		URL:             pageURL,
		Formats:         []string{"extract"},
		Extract:         extractSpec{Prompt: prompt, Schema: listingsSchema()},
		WaitFor:         c.waitForMs,
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, err
	}

	listings := payload.Listings
	if len(listings) > limit {
		listings = listings[:limit]
	}
	return listings, nil
}

// ListingImage extracts the main vehicle image URL from a single listing
// page. Returns the empty string when the page has no usable image.
func (c *Client) ListingImage(ctx context.Context, pageURL string) (string, error) {
	payload, err := c.scrape(ctx, scrapeRequest{
		URL:     pageURL,
		Formats: []string{"extract"},
		Extract: extractSpec{
			Prompt: "Extract the main vehicle listing image URL from this page. " +
				"Return only a direct image URL if present.",
			Schema: imageSchema(),
		},
		WaitFor:         c.waitForMs,
		OnlyMainContent: true,
	})
	if err != nil {
		return "", err
	}
	return decodeImageURL(payload.ImageURL), nil
}

func (c *Client) scrape(ctx context.Context, reqBody scrapeRequest) (*extractPayload, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close()

	var parsed scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode scrape response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.Success {
		c.logger.Warn("extraction API returned failure",
			zap.String("url", reqBody.URL),
			zap.Int("status", resp.StatusCode),
			zap.String("api_error", parsed.Error))
		return nil, fmt.Errorf("extraction failed for %s: %s", reqBody.URL, parsed.Error)
	}

	if len(parsed.Data.Extract.Listings) > 0 || len(parsed.Data.Extract.ImageURL) > 0 {
		return &parsed.Data.Extract, nil
	}
	return &parsed.Data.JSON, nil
}

// decodeImageURL tolerates the extraction service returning either a single
// string or an array of strings for image_url.
func decodeImageURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}
