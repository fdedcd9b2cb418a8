package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"caringest/internal/domain"
	"caringest/internal/monitoring"
	"caringest/internal/normalize"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// fakeExtractor serves canned listings per search URL and records the limits
// it was called with.
type fakeExtractor struct {
	mu       sync.Mutex
	listings map[string][]domain.RawListing
	errs     map[string]error
	delay    map[string]time.Duration
	calls    map[string]int
	limits   map[string]int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		listings: make(map[string][]domain.RawListing),
		errs:     make(map[string]error),
		delay:    make(map[string]time.Duration),
		calls:    make(map[string]int),
		limits:   make(map[string]int),
	}
}

func (f *fakeExtractor) Listings(ctx context.Context, pageURL string, limit int) ([]domain.RawListing, error) {
	if d := f.delay[pageURL]; d > 0 {
		time.Sleep(d)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[pageURL]++
	f.limits[pageURL] = limit
	if err := f.errs[pageURL]; err != nil {
		return nil, err
	}
	out := f.listings[pageURL]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeStore keeps records in memory and can be told to pre-exist URLs.
type fakeStore struct {
	mu       sync.Mutex
	existing map[string]struct{}
	inserted []domain.ListingRecord
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{existing: make(map[string]struct{})}
	for _, u := range existing {
		s.existing[u] = struct{}{}
	}
	return s
}

func (s *fakeStore) ExistingSourceURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, u := range urls {
		if _, ok := s.existing[u]; ok {
			out[u] = struct{}{}
		}
	}
	return out, nil
}

func (s *fakeStore) InsertListings(ctx context.Context, records []domain.ListingRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range records {
		if _, dup := s.existing[r.SourceURL]; dup {
			continue
		}
		s.existing[r.SourceURL] = struct{}{}
		s.inserted = append(s.inserted, r)
		count++
	}
	return count, nil
}

func testRegistry(n int) Registry {
	sites := []SiteConfig{
		{Key: "alpha", Name: "Alpha Cars", BaseURL: "https://alpha.example", SearchURL: "https://alpha.example/search"},
		{Key: "beta", Name: "Beta Motors", BaseURL: "https://beta.example", SearchURL: "https://beta.example/search"},
		{Key: "gamma", Name: "Gamma Auto", BaseURL: "https://gamma.example", SearchURL: "https://gamma.example/search"},
		{Key: "delta", Name: "Delta Wheels", BaseURL: "https://delta.example", SearchURL: "https://delta.example/search"},
		{Key: "epsilon", Name: "Epsilon Drive", BaseURL: "https://epsilon.example", SearchURL: "https://epsilon.example/search"},
	}
	return NewRegistry(sites[:n])
}

func testPipeline(reg Registry, ex Extractor, store ListingStore, opts Options) *Pipeline {
	n := normalize.NewNormalizer(normalize.Policy{Location: "South Africa"}, normalize.NewBrandClassifier())
	m := monitoring.NewMetricsWith(prometheus.NewRegistry())
	return NewPipeline(reg, ex, store, nil, n, m, zap.NewNop(), opts)
}

func listing(title, sourceURL string) domain.RawListing {
	return domain.RawListing{Title: title, SourceURL: sourceURL}
}

func TestDedupeBySourceURL(t *testing.T) {
	in := []domain.RawListing{
		listing("A", "https://x/1"),
		listing("B", "https://x/2"),
		listing("A again", "https://x/1"),
		listing("no url", ""),
	}

	out := dedupeBySourceURL(in)
	if len(out) != 2 {
		t.Fatalf("got %d listings; want 2", len(out))
	}
	if out[0].Title != "A" || out[1].Title != "B" {
		t.Errorf("dedup must keep first-seen in order; got %q, %q", out[0].Title, out[1].Title)
	}
}

func TestRunAllSitesEmpty(t *testing.T) {
	reg := testRegistry(3)
	ex := newFakeExtractor() // every site returns nothing
	p := testPipeline(reg, ex, newFakeStore(), Options{DefaultTotal: 50})

	summary, err := p.Run(context.Background(), domain.ScrapeRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Inserted != 0 {
		t.Errorf("Inserted = %d; want 0", summary.Inserted)
	}
	if summary.Message != "No listings found to import" {
		t.Errorf("Message = %q", summary.Message)
	}
}

func TestRunDeduplicatesAcrossSites(t *testing.T) {
	reg := testRegistry(2)
	ex := newFakeExtractor()
	// Same car cross-posted on both sites.
	ex.listings["https://alpha.example/search"] = []domain.RawListing{listing("2019 Toyota Corolla", "https://x/y")}
	ex.listings["https://beta.example/search"] = []domain.RawListing{listing("2019 Toyota Corolla", "https://x/y")}
	store := newFakeStore()
	p := testPipeline(reg, ex, store, Options{DefaultTotal: 50})

	summary, err := p.Run(context.Background(), domain.ScrapeRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Inserted != 1 {
		t.Errorf("Inserted = %d; want 1", summary.Inserted)
	}
	if len(store.inserted) != 1 {
		t.Errorf("store holds %d records; want 1", len(store.inserted))
	}
}

func TestRunExcludesPersistedListings(t *testing.T) {
	reg := testRegistry(1)
	ex := newFakeExtractor()
	ex.listings["https://alpha.example/search"] = []domain.RawListing{
		listing("2019 Toyota Corolla", "https://alpha.example/cars/1"),
		listing("2020 VW Polo", "https://alpha.example/cars/2"),
	}
	store := newFakeStore("https://alpha.example/cars/1")
	p := testPipeline(reg, ex, store, Options{DefaultTotal: 50})

	summary, err := p.Run(context.Background(), domain.ScrapeRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Inserted != 1 {
		t.Errorf("Inserted = %d; want 1", summary.Inserted)
	}
	if summary.Skipped != 1 {
		t.Errorf("Skipped = %d; want 1", summary.Skipped)
	}
	if summary.TotalScraped != 2 {
		t.Errorf("TotalScraped = %d; want 2", summary.TotalScraped)
	}
}

func TestRunAllListingsAlreadyExist(t *testing.T) {
	reg := testRegistry(1)
	ex := newFakeExtractor()
	ex.listings["https://alpha.example/search"] = []domain.RawListing{
		listing("2019 Toyota Corolla", "https://alpha.example/cars/1"),
	}
	store := newFakeStore("https://alpha.example/cars/1")
	p := testPipeline(reg, ex, store, Options{DefaultTotal: 50})

	summary, err := p.Run(context.Background(), domain.ScrapeRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Inserted != 0 || summary.Message != "All listings already exist" {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunPerSiteLimit(t *testing.T) {
	reg := testRegistry(5)
	ex := newFakeExtractor()
	p := testPipeline(reg, ex, newFakeStore(), Options{DefaultTotal: 50, SiteOverhead: 2})

	if _, err := p.Run(context.Background(), domain.ScrapeRequest{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// ceil(50/5) + 2 overhead
	for _, site := range reg.Sites() {
		if got := ex.limits[site.SearchURL]; got != 12 {
			t.Errorf("limit for %s = %d; want 12", site.Key, got)
		}
	}
}

func TestRunFailingSiteDoesNotSuppressOthers(t *testing.T) {
	reg := testRegistry(3)
	ex := newFakeExtractor()
	ex.errs["https://alpha.example/search"] = errors.New("boom")
	ex.delay["https://beta.example/search"] = 50 * time.Millisecond
	ex.listings["https://beta.example/search"] = []domain.RawListing{listing("2019 Toyota Corolla", "https://beta.example/cars/1")}
	ex.listings["https://gamma.example/search"] = []domain.RawListing{listing("2020 VW Polo", "https://gamma.example/cars/2")}
	store := newFakeStore()
	p := testPipeline(reg, ex, store, Options{DefaultTotal: 50})

	summary, err := p.Run(context.Background(), domain.ScrapeRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Inserted != 2 {
		t.Errorf("Inserted = %d; want 2 despite one failing site", summary.Inserted)
	}
}

func TestRunConcurrencyCap(t *testing.T) {
	reg := testRegistry(5)
	ex := newFakeExtractor()
	p := testPipeline(reg, ex, newFakeStore(), Options{DefaultTotal: 50, MaxConcurrent: 2})

	if _, err := p.Run(context.Background(), domain.ScrapeRequest{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, site := range reg.Sites() {
		if ex.calls[site.SearchURL] != 1 {
			t.Errorf("site %s called %d times; want 1", site.Key, ex.calls[site.SearchURL])
		}
	}
}

func TestRunFallbackGeneratesListings(t *testing.T) {
	reg := testRegistry(2)
	ex := newFakeExtractor()
	store := newFakeStore()
	p := testPipeline(reg, ex, store, Options{DefaultTotal: 10})

	summary, err := p.Run(context.Background(), domain.ScrapeRequest{Limit: 10, Fallback: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Inserted != 10 {
		t.Errorf("Inserted = %d; want 10 synthetic listings", summary.Inserted)
	}
	// Fallback mode must not touch the extraction API.
	for url, n := range ex.calls {
		if n > 0 {
			t.Errorf("extractor called for %s in fallback mode", url)
		}
	}
}

func TestRunSiteUnknownKey(t *testing.T) {
	p := testPipeline(testRegistry(2), newFakeExtractor(), newFakeStore(), Options{})

	_, err := p.RunSite(context.Background(), "nope", 10)
	if !errors.Is(err, ErrUnknownSite) {
		t.Errorf("err = %v; want ErrUnknownSite", err)
	}
}

func TestRunSite(t *testing.T) {
	reg := testRegistry(2)
	ex := newFakeExtractor()
	ex.listings["https://alpha.example/search"] = []domain.RawListing{
		listing("2019 Toyota Corolla", "https://alpha.example/cars/1"),
	}
	store := newFakeStore()
	p := testPipeline(reg, ex, store, Options{DefaultTotal: 50})

	summary, err := p.RunSite(context.Background(), "alpha", 10)
	if err != nil {
		t.Fatalf("RunSite: %v", err)
	}
	if summary.Inserted != 1 {
		t.Errorf("Inserted = %d; want 1", summary.Inserted)
	}
	if ex.calls["https://beta.example/search"] != 0 {
		t.Error("single-site run must not touch other sites")
	}
}
