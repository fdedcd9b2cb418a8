package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"caringest/internal/domain"
	"caringest/internal/monitoring"
	"caringest/internal/normalize"

	"go.uber.org/zap"
)

// ErrUnknownSite is returned by RunSite for keys not in the registry.
var ErrUnknownSite = errors.New("unknown site")

// Extractor turns a search results page into raw listings.
type Extractor interface {
	Listings(ctx context.Context, pageURL string, limit int) ([]domain.RawListing, error)
}

// ListingStore is the persistence surface the pipeline needs.
type ListingStore interface {
	ExistingSourceURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	InsertListings(ctx context.Context, records []domain.ListingRecord) (int, error)
}

// RecentURLCache is an optional fast pre-filter in front of the database
// existence check. A nil cache is skipped.
type RecentURLCache interface {
	SeenURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	MarkIngested(ctx context.Context, urls []string) error
}

// Options tune one pipeline instance.
type Options struct {
	DefaultTotal  int  // target listing count when the request doesn't say
	SiteOverhead  int  // extra per-site headroom for expected dedup loss
	MaxConcurrent int  // cap on simultaneous site extractions; 0 = uncapped
	SyntheticFill bool // top up with generated listings when scraping undershoots
}

// Pipeline is one configurable ingestion run: fan-out extraction across the
// registry, two-stage dedup, batch persistence.
type Pipeline struct {
	registry   Registry
	extractor  Extractor
	store      ListingStore
	cache      RecentURLCache
	normalizer *normalize.Normalizer
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	opts       Options
}

func NewPipeline(reg Registry, ex Extractor, store ListingStore, cache RecentURLCache,
	n *normalize.Normalizer, m *monitoring.Metrics, l *zap.Logger, opts Options) *Pipeline {
	if opts.DefaultTotal <= 0 {
		opts.DefaultTotal = 50
	}
	return &Pipeline{
		registry:   reg,
		extractor:  ex,
		store:      store,
		cache:      cache,
		normalizer: n,
		metrics:    m,
		logger:     l,
		opts:       opts,
	}
}

// Run scrapes every configured site and ingests the result.
func (p *Pipeline) Run(ctx context.Context, req domain.ScrapeRequest) (domain.ScrapeSummary, error) {
	total := req.Limit
	if total <= 0 {
		total = p.opts.DefaultTotal
	}
	sites := p.registry.Sites()
	if len(sites) == 0 {
		return domain.ScrapeSummary{Message: "No sites configured"}, nil
	}

	var all []domain.RawListing
	if !req.Fallback {
		perSite := ceilDiv(total, len(sites)) + p.opts.SiteOverhead
		all = p.scrapeAll(ctx, sites, perSite)
	}

	// Top up with synthetic listings when scraping undershoots and the
	// deployment has opted in (or the caller asked for fallback outright).
	if (req.Fallback || p.opts.SyntheticFill) && len(all) < total {
		missing := total - len(all)
		p.logger.Info("generating fallback listings", zap.Int("count", missing))
		all = append(all, normalize.GenerateFallbackListings(missing, p.registry.Attributions())...)
	}

	return p.ingest(ctx, all, total, len(sites))
}

// RunSite scrapes a single site by registry key.
func (p *Pipeline) RunSite(ctx context.Context, siteKey string, limit int) (domain.ScrapeSummary, error) {
	site, ok := p.registry.Lookup(siteKey)
	if !ok {
		return domain.ScrapeSummary{}, fmt.Errorf("%w: %q", ErrUnknownSite, siteKey)
	}
	if limit <= 0 {
		limit = p.opts.DefaultTotal
	}
	listings := p.scrapeSite(ctx, site, limit)
	return p.ingest(ctx, listings, limit, 1)
}

// scrapeAll issues one extraction per site concurrently and joins all
// results. A failing site contributes nothing; it never blocks the others.
func (p *Pipeline) scrapeAll(ctx context.Context, sites []SiteConfig, perSite int) []domain.RawListing {
	results := make([][]domain.RawListing, len(sites))

	var sem chan struct{}
	if p.opts.MaxConcurrent > 0 {
		sem = make(chan struct{}, p.opts.MaxConcurrent)
	}

	var wg sync.WaitGroup
	for i, site := range sites {
		wg.Add(1)
		go func(i int, site SiteConfig) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = p.scrapeSite(ctx, site, perSite)
		}(i, site)
	}
	wg.Wait()

	var all []domain.RawListing
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

func (p *Pipeline) scrapeSite(ctx context.Context, site SiteConfig, limit int) []domain.RawListing {
	p.logger.Info("scraping site", zap.String("site", site.Name), zap.Int("limit", limit))

	listings, err := p.extractor.Listings(ctx, site.SearchURL, limit)
	if err != nil {
		// A failed site is a zero-listing site, never a failed run.
		p.logger.Warn("site extraction failed", zap.String("site", site.Name), zap.Error(err))
		p.metrics.IncErrorsTotal("extract_failed")
		return nil
	}

	for i := range listings {
		p.normalizer.ApplyDefaults(&listings[i], site.Name, site.BaseURL, site.SearchURL)
	}
	p.metrics.AddListingsExtracted(site.Key, len(listings))
	p.logger.Info("site scraped", zap.String("site", site.Name), zap.Int("listings", len(listings)))
	return listings
}

// ingest dedupes candidates and persists the survivors.
func (p *Pipeline) ingest(ctx context.Context, all []domain.RawListing, total, siteCount int) (domain.ScrapeSummary, error) {
	unique := dedupeBySourceURL(all)
	if len(unique) > total {
		unique = unique[:total]
	}

	if len(unique) == 0 {
		return domain.ScrapeSummary{
			Sites:   siteCount,
			Message: "No listings found to import",
		}, nil
	}

	fresh, err := p.filterExisting(ctx, unique)
	if err != nil {
		return domain.ScrapeSummary{}, err
	}

	summary := domain.ScrapeSummary{
		TotalScraped: len(unique),
		Skipped:      len(unique) - len(fresh),
		Sites:        siteCount,
	}

	if len(fresh) == 0 {
		summary.Message = "All listings already exist"
		return summary, nil
	}

	records := p.normalizer.BuildRecords(fresh)
	inserted, err := p.store.InsertListings(ctx, records)
	if err != nil {
		return domain.ScrapeSummary{}, fmt.Errorf("persist listings: %w", err)
	}
	summary.Inserted = inserted
	summary.Message = fmt.Sprintf("Imported %d new listings from %d sites", inserted, siteCount)
	p.metrics.AddListingsInserted(inserted)

	if p.cache != nil {
		urls := make([]string, 0, len(fresh))
		for _, l := range fresh {
			urls = append(urls, l.SourceURL)
		}
		if err := p.cache.MarkIngested(ctx, urls); err != nil {
			p.logger.Warn("failed to mark ingested urls in cache", zap.Error(err))
		}
	}

	p.logger.Info("pipeline run complete",
		zap.Int("inserted", summary.Inserted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("total_scraped", summary.TotalScraped))
	return summary, nil
}

// filterExisting drops candidates whose source_url is already persisted.
// The cache answers first when present; the database check is authoritative
// for whatever the cache has not seen.
func (p *Pipeline) filterExisting(ctx context.Context, candidates []domain.RawListing) ([]domain.RawListing, error) {
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.SourceURL)
	}

	seen := make(map[string]struct{})
	if p.cache != nil {
		cached, err := p.cache.SeenURLs(ctx, urls)
		if err != nil {
			p.logger.Warn("recent-url cache lookup failed", zap.Error(err))
		} else {
			seen = cached
		}
	}

	remaining := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; !ok {
			remaining = append(remaining, u)
		}
	}
	if len(remaining) > 0 {
		existing, err := p.store.ExistingSourceURLs(ctx, remaining)
		if err != nil {
			return nil, fmt.Errorf("check existing source urls: %w", err)
		}
		for u := range existing {
			seen[u] = struct{}{}
		}
	}

	fresh := make([]domain.RawListing, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.SourceURL]; !ok {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}

// dedupeBySourceURL keeps the first listing seen for each source_url,
// preserving input order.
func dedupeBySourceURL(listings []domain.RawListing) []domain.RawListing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]domain.RawListing, 0, len(listings))
	for _, l := range listings {
		if l.SourceURL == "" {
			continue
		}
		if _, dup := seen[l.SourceURL]; dup {
			continue
		}
		seen[l.SourceURL] = struct{}{}
		out = append(out, l)
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
