package normalize

import (
	"fmt"
	"net/url"
	"strings"
)

// blockedImageHosts are stock-photo and placeholder services that extraction
// sometimes returns instead of real listing photography. Subdomains of these
// hosts are blocked too.
var blockedImageHosts = map[string]struct{}{
	"source.unsplash.com": {},
	"images.unsplash.com": {},
	"via.placeholder.com": {},
	"placehold.co":        {},
}

const fallbackImageBase = "https://source.unsplash.com/800x600/?"

// ResolveAbsoluteURL resolves a possibly-relative URL against the page it
// came from. Handles protocol-relative, root-relative, and already-absolute
// inputs. Returns the empty string when the input cannot be resolved.
func ResolveAbsoluteURL(raw, pageURL string) string {
	if raw == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	rel, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(rel).String()
}

// IsRealImageURL reports whether a URL plausibly points at actual listing
// photography: http(s), not on a blocked stock/placeholder host (or any
// subdomain of one), and not containing "placeholder" anywhere.
func IsRealImageURL(imageURL string) bool {
	if imageURL == "" {
		return false
	}
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if _, blocked := blockedImageHosts[host]; blocked {
		return false
	}
	for blocked := range blockedImageHosts {
		if strings.HasSuffix(host, "."+blocked) {
			return false
		}
	}
	return !strings.Contains(strings.ToLower(imageURL), "placeholder")
}

// FallbackImageURL builds the deterministic query-image URL used when no
// real photo can be resolved for a listing.
func FallbackImageURL(title string) string {
	make, model := ParseMakeModel(title)
	query := strings.TrimSpace(fmt.Sprintf("%s %s %s car", ParseYear(title), make, model))
	return fallbackImageBase + url.QueryEscape(query)
}

// ResolveImageURL turns whatever the extractor handed us into a usable image
// URL: absolutize against the source page, keep it if it looks like a real
// photo, otherwise synthesize the deterministic fallback from the title.
func ResolveImageURL(raw, pageURL, title string) string {
	resolved := ResolveAbsoluteURL(raw, pageURL)
	if IsRealImageURL(resolved) {
		return resolved
	}
	return FallbackImageURL(title)
}
