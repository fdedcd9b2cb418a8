package domain

import "time"

// RawListing is what the extraction API gives us for one vehicle, after
// boundary default-filling. SiteName is carried along so downstream stages
// can attribute the listing without re-resolving the site config.
type RawListing struct {
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	Year         int     `json:"year"`
	Mileage      int     `json:"mileage"`
	Transmission string  `json:"transmission"`
	FuelType     string  `json:"fuel_type"`
	Location     string  `json:"location"`
	ImageURL     string  `json:"image_url"`
	SourceURL    string  `json:"source_url"`
	SiteName     string  `json:"-"`
}

// ListingRecord is the persisted shape. The table started life as an events
// table, which is why a car listing has a ticket price and a target date.
type ListingRecord struct {
	ID                 int64
	Title              string
	Description        string
	Date               string
	Time               string
	Address            string
	City               string
	Country            string
	BackgroundImageURL string
	TargetDate         time.Time
	Creator            string
	Category           string
	TicketPrice        float64
	Year               int
	Mileage            int
	Transmission       string
	FuelType           string
	Condition          string
	SourceURL          string
	IsScraped          bool
	CreatedBy          *string // always nil for scraped records
}

// ScrapeRequest is the payload for the scrape and refresh endpoints.
type ScrapeRequest struct {
	Limit    int  `json:"limit"`
	Fallback bool `json:"fallback"`
}

// ScrapeSummary reports the outcome of one pipeline run. Inserted less than
// TotalScraped is a normal outcome, not an error.
type ScrapeSummary struct {
	Inserted     int    `json:"inserted"`
	Skipped      int    `json:"skipped"`
	TotalScraped int    `json:"total_scraped"`
	Sites        int    `json:"sites"`
	Message      string `json:"message"`
}

// RefreshSummary reports the outcome of one image refresh run.
type RefreshSummary struct {
	Updated int    `json:"updated"`
	Scanned int    `json:"scanned"`
	Message string `json:"message"`
}

// ImageUpdate is a minimal upsert payload for the image refresh job.
type ImageUpdate struct {
	ID                 int64
	BackgroundImageURL string
}

// ScrapedListing is the projection the image refresher works from.
type ScrapedListing struct {
	ID                 int64
	Title              string
	SourceURL          string
	BackgroundImageURL string
}
