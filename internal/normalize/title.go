package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	yearRegexp    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	mileageRegexp = regexp.MustCompile(`(?i)(\d[\d\s]*)\s*(km|kilometers?)`)
	digitsRegexp  = regexp.MustCompile(`[^0-9]`)
)

// maxModelTokens caps how much of a long title is kept as the model name.
const maxModelTokens = 3

// ParseMakeModel extracts a best-effort (make, model) pair from a free-text
// listing title. The year token is stripped first so "2019 Toyota Corolla"
// yields make "Toyota", not "2019". Both fall back to the literal "car" when
// the title carries nothing usable.
func ParseMakeModel(title string) (make, model string) {
	cleaned := strings.TrimSpace(yearRegexp.ReplaceAllString(title, ""))
	parts := strings.Fields(cleaned)
	if len(parts) == 0 {
		return "car", "car"
	}
	make = parts[0]
	rest := parts[1:]
	if len(rest) > maxModelTokens {
		rest = rest[:maxModelTokens]
	}
	model = strings.Join(rest, " ")
	if model == "" {
		model = "car"
	}
	return make, model
}

// ParseYear returns the first 4-digit year token in the text, or the empty
// string when there is none.
func ParseYear(text string) string {
	return yearRegexp.FindString(text)
}

// ParseMileage pulls a kilometer reading out of free text, e.g.
// "45 000 km" -> 45000. Returns 0 when no mileage is present.
func ParseMileage(text string) int {
	m := mileageRegexp.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.ReplaceAll(m[1], " ", ""))
	return n
}

// ParsePrice scrubs everything but digits from a price string, so
// "R 249,900" and "249900" both parse to 249900. Returns 0 on no digits.
func ParsePrice(text string) int {
	cleaned := digitsRegexp.ReplaceAllString(text, "")
	n, _ := strconv.Atoi(cleaned)
	return n
}
