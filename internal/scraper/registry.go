package scraper

import "caringest/internal/normalize"

// SiteConfig identifies one target listing site.
type SiteConfig struct {
	Key       string
	Name      string
	BaseURL   string
	SearchURL string
}

// Registry is the immutable set of sites a pipeline run covers. Injected
// rather than ambient so tests can substitute their own.
type Registry struct {
	sites []SiteConfig
}

func NewRegistry(sites []SiteConfig) Registry {
	return Registry{sites: sites}
}

// DefaultRegistry returns the South African used-car sites the service
// scrapes in production.
func DefaultRegistry() Registry {
	return NewRegistry([]SiteConfig{
		{Key: "carfind", Name: "CarFind", BaseURL: "https://www.carfind.co.za", SearchURL: "https://www.carfind.co.za/used-cars"},
		{Key: "cittoncars", Name: "Citton Cars", BaseURL: "https://www.cittoncars.co.za", SearchURL: "https://www.cittoncars.co.za/used-cars/"},
		{Key: "surf4cars", Name: "Surf4Cars", BaseURL: "https://www.surf4cars.co.za", SearchURL: "https://www.surf4cars.co.za/used-cars-for-sale-in-south-africa"},
		{Key: "carchaser", Name: "CarChaser", BaseURL: "https://www.carchaser.co.za", SearchURL: "https://www.carchaser.co.za/used-cars-for-sale"},
		{Key: "carscoza", Name: "Cars.co.za", BaseURL: "https://www.cars.co.za", SearchURL: "https://www.cars.co.za/usedcars"},
		{Key: "autotrader", Name: "AutoTrader", BaseURL: "https://www.autotrader.co.za", SearchURL: "https://www.autotrader.co.za/cars-for-sale"},
		{Key: "webuycars", Name: "WeBuyCars", BaseURL: "https://www.webuycars.co.za", SearchURL: "https://www.webuycars.co.za/buy-a-car"},
	})
}

// Sites returns the configured sites in registration order.
func (r Registry) Sites() []SiteConfig {
	return r.sites
}

// Lookup finds a site by key.
func (r Registry) Lookup(key string) (SiteConfig, bool) {
	for _, s := range r.sites {
		if s.Key == key {
			return s, true
		}
	}
	return SiteConfig{}, false
}

// Attributions converts the registry to the shape the synthetic listing
// generator consumes.
func (r Registry) Attributions() []normalize.SiteAttribution {
	out := make([]normalize.SiteAttribution, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, normalize.SiteAttribution{Name: s.Name, SearchURL: s.SearchURL})
	}
	return out
}
