package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func scrapeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scrape" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestListingsExtractPayloadShape(t *testing.T) {
	srv := scrapeServer(t, http.StatusOK, `{
		"success": true,
		"data": {"extract": {"listings": [
			{"title": "2019 Toyota Corolla", "price": 250000, "source_url": "https://x/1"},
			{"title": "2020 VW Polo", "price": 300000, "source_url": "https://x/2"}
		]}}
	}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 3000, zap.NewNop())
	listings, err := c.Listings(context.Background(), "https://site/search", 10)
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings; want 2", len(listings))
	}
	if listings[0].Title != "2019 Toyota Corolla" || listings[0].Price != 250000 {
		t.Errorf("listing[0] = %+v", listings[0])
	}
}

func TestListingsJSONPayloadShape(t *testing.T) {
	// Older API versions nest the extraction under data.json.
	srv := scrapeServer(t, http.StatusOK, `{
		"success": true,
		"data": {"json": {"listings": [
			{"title": "2019 Toyota Corolla", "source_url": "https://x/1"}
		]}}
	}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 3000, zap.NewNop())
	listings, err := c.Listings(context.Background(), "https://site/search", 10)
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("got %d listings; want 1", len(listings))
	}
}

func TestListingsTruncatesToLimit(t *testing.T) {
	srv := scrapeServer(t, http.StatusOK, `{
		"success": true,
		"data": {"extract": {"listings": [
			{"title": "A", "source_url": "https://x/1"},
			{"title": "B", "source_url": "https://x/2"},
			{"title": "C", "source_url": "https://x/3"}
		]}}
	}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 3000, zap.NewNop())
	listings, err := c.Listings(context.Background(), "https://site/search", 2)
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(listings) != 2 {
		t.Errorf("got %d listings; want 2 after truncation", len(listings))
	}
}

func TestListingsAPIFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadGateway, `{"success": false, "error": "upstream"}`},
		{"logical failure", http.StatusOK, `{"success": false, "error": "rate limited"}`},
	}

	for _, tt := range tests {
		srv := scrapeServer(t, tt.status, tt.body)
		c := NewClient(srv.URL, "test-key", 3000, zap.NewNop())
		if _, err := c.Listings(context.Background(), "https://site/search", 10); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
		srv.Close()
	}
}

func TestListingsSendsSchemaRequest(t *testing.T) {
	var captured scrapeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"success": true, "data": {"extract": {"listings": []}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 4000, zap.NewNop())
	if _, err := c.Listings(context.Background(), "https://site/search", 10); err != nil {
		t.Fatalf("Listings: %v", err)
	}

	if captured.URL != "https://site/search" {
		t.Errorf("request url = %q", captured.URL)
	}
	if captured.WaitFor != 4000 {
		t.Errorf("waitFor = %d; want 4000", captured.WaitFor)
	}
	if !captured.OnlyMainContent {
		t.Error("onlyMainContent not set")
	}
	if len(captured.Formats) != 1 || captured.Formats[0] != "extract" {
		t.Errorf("formats = %v", captured.Formats)
	}
	if captured.Extract.Prompt == "" || captured.Extract.Schema == nil {
		t.Error("extraction prompt/schema missing")
	}
}

func TestListingImage(t *testing.T) {
	srv := scrapeServer(t, http.StatusOK, `{
		"success": true,
		"data": {"extract": {"image_url": "https://img.example/car.jpg"}}
	}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 3000, zap.NewNop())
	img, err := c.ListingImage(context.Background(), "https://site/listing/1")
	if err != nil {
		t.Fatalf("ListingImage: %v", err)
	}
	if img != "https://img.example/car.jpg" {
		t.Errorf("img = %q", img)
	}
}

func TestDecodeImageURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"https://img.example/a.jpg"`, "https://img.example/a.jpg"},
		{`["https://img.example/a.jpg", "https://img.example/b.jpg"]`, "https://img.example/a.jpg"},
		{`[]`, ""},
		{`null`, ""},
		{``, ""},
		{`42`, ""},
	}

	for _, tt := range tests {
		if got := decodeImageURL(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("decodeImageURL(%s) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}
