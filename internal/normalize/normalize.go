package normalize

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"caringest/internal/domain"
)

// Policy controls how missing extraction fields are filled at the boundary.
// Different deployments want different behavior: the cron variant zero-fills
// missing prices, the daily variant invents plausible ones so the storefront
// never shows R0. Synthetic fill is opt-in.
type Policy struct {
	Location  string
	Country   string
	Synthetic bool
}

// Normalizer applies default-filling and builds persisted records from raw
// extraction output. Safe for concurrent use.
type Normalizer struct {
	policy Policy
	brands *BrandClassifier
	now    func() time.Time
}

func NewNormalizer(policy Policy, brands *BrandClassifier) *Normalizer {
	if policy.Location == "" {
		policy.Location = "South Africa"
	}
	if policy.Country == "" {
		policy.Country = policy.Location
	}
	return &Normalizer{policy: policy, brands: brands, now: time.Now}
}

// ApplyDefaults fills every optional field of a raw listing in place so that
// downstream stages never see a missing value. SearchURL is the site's search
// page, used as the source_url of last resort.
func (n *Normalizer) ApplyDefaults(raw *domain.RawListing, siteName, baseURL, searchURL string) {
	if raw.Title == "" {
		raw.Title = "Unknown Vehicle"
	}
	if raw.Price == 0 && n.policy.Synthetic {
		raw.Price = float64(rand.Intn(500000) + 50000)
	}
	if raw.Year == 0 {
		if y := ParseYear(raw.Title); y != "" {
			raw.Year, _ = strconv.Atoi(y)
		} else {
			raw.Year = n.now().Year()
		}
	}
	if raw.Mileage == 0 && n.policy.Synthetic {
		raw.Mileage = rand.Intn(150000) + 10000
	}
	raw.Transmission = strings.ToLower(raw.Transmission)
	if raw.Transmission == "" {
		raw.Transmission = "manual"
	}
	raw.FuelType = strings.ToLower(raw.FuelType)
	if raw.FuelType == "" {
		raw.FuelType = "petrol"
	}
	if raw.Location == "" {
		raw.Location = n.policy.Location
	}
	raw.SourceURL = ResolveAbsoluteURL(raw.SourceURL, baseURL)
	if raw.SourceURL == "" {
		raw.SourceURL = searchURL
	}
	raw.ImageURL = ResolveImageURL(raw.ImageURL, baseURL, raw.Title)
	raw.SiteName = siteName
}

// BuildRecord maps a default-filled raw listing onto the persisted listing
// shape. Scraped records never have a creating user.
func (n *Normalizer) BuildRecord(raw domain.RawListing) domain.ListingRecord {
	now := n.now()
	return domain.ListingRecord{
		Title:              raw.Title,
		Description:        fmt.Sprintf("%s. Listed on %s.", raw.Title, raw.SiteName),
		Date:               now.Format("2 January 2006"),
		Time:               "Available Now",
		Address:            raw.Location,
		City:               raw.Location,
		Country:            n.policy.Country,
		BackgroundImageURL: raw.ImageURL,
		TargetDate:         now,
		Creator:            raw.SiteName,
		Category:           n.brands.Classify(raw.Title),
		TicketPrice:        raw.Price,
		Year:               raw.Year,
		Mileage:            raw.Mileage,
		Transmission:       raw.Transmission,
		FuelType:           raw.FuelType,
		Condition:          "good",
		SourceURL:          raw.SourceURL,
		IsScraped:          true,
		CreatedBy:          nil,
	}
}

// BuildRecords maps a batch.
func (n *Normalizer) BuildRecords(raws []domain.RawListing) []domain.ListingRecord {
	records := make([]domain.ListingRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, n.BuildRecord(raw))
	}
	return records
}
