package normalize

import "strings"

// brandKeyword maps a substring found in listing titles to a canonical
// category tag. A slice, not a map: first match wins, so iteration order is
// part of the contract ("mercedes-benz" must be reachable even though
// "mercedes" also matches, and "vw" aliases to volkswagen).
type brandKeyword struct {
	keyword string
	tag     string
}

// defaultBrandTable covers the brands seen on South African listing sites.
var defaultBrandTable = []brandKeyword{
	{"toyota", "toyota"},
	{"volkswagen", "volkswagen"},
	{"vw", "volkswagen"},
	{"mazda", "mazda"},
	{"hyundai", "hyundai"},
	{"bmw", "bmw"},
	{"mercedes-benz", "mercedes"},
	{"mercedes", "mercedes"},
	{"ford", "ford"},
	{"nissan", "nissan"},
	{"honda", "honda"},
	{"audi", "audi"},
	{"kia", "kia"},
	{"chevrolet", "chevrolet"},
	{"opel", "opel"},
	{"renault", "renault"},
	{"suzuki", "suzuki"},
	{"isuzu", "isuzu"},
	{"jeep", "jeep"},
	{"land rover", "land rover"},
	{"porsche", "porsche"},
	{"volvo", "volvo"},
	{"peugeot", "peugeot"},
	{"fiat", "fiat"},
	{"mitsubishi", "mitsubishi"},
	{"subaru", "subaru"},
	{"lexus", "lexus"},
	{"jaguar", "jaguar"},
	{"mini", "mini"},
	{"alfa romeo", "alfa romeo"},
	{"haval", "haval"},
	{"gwm", "gwm"},
	{"chery", "chery"},
	{"baic", "baic"},
	{"mahindra", "mahindra"},
	{"tata", "tata"},
}

// BrandClassifier tags listing titles with a canonical brand category.
type BrandClassifier struct {
	table []brandKeyword
}

// NewBrandClassifier returns a classifier over the default brand table.
func NewBrandClassifier() *BrandClassifier {
	return &BrandClassifier{table: defaultBrandTable}
}

// Classify returns the category tag for the first brand keyword found in the
// title, case-insensitively, or "other" when no keyword matches.
func (c *BrandClassifier) Classify(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range c.table {
		if strings.Contains(lower, entry.keyword) {
			return entry.tag
		}
	}
	return "other"
}
