package refresh

import (
	"context"
	"fmt"

	"caringest/internal/domain"
	"caringest/internal/monitoring"
	"caringest/internal/normalize"

	"go.uber.org/zap"
)

// ImageExtractor asks the extraction API for a listing page's main image.
type ImageExtractor interface {
	ListingImage(ctx context.Context, pageURL string) (string, error)
}

// PageFetcher pulls an image URL straight off the page, bypassing the
// extraction API. Both the static-HTML and headless-browser fetchers
// implement it.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Store is the persistence surface the refresher needs.
type Store interface {
	ScrapedListings(ctx context.Context, limit int) ([]domain.ScrapedListing, error)
	UpsertImages(ctx context.Context, updates []domain.ImageUpdate) (int, error)
}

// Refresher repairs the image URLs of previously-scraped listings. It tries
// progressively cheaper-to-worse sources: extraction API, static og:image,
// rendered DOM, and skips listings where nothing real turns up.
type Refresher struct {
	store        Store
	extractor    ImageExtractor
	pageFetcher  PageFetcher // optional
	browser      PageFetcher // optional
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	defaultLimit int
}

func NewRefresher(store Store, ex ImageExtractor, page, browser PageFetcher,
	m *monitoring.Metrics, l *zap.Logger, defaultLimit int) *Refresher {
	if defaultLimit <= 0 {
		defaultLimit = 500
	}
	return &Refresher{
		store:        store,
		extractor:    ex,
		pageFetcher:  page,
		browser:      browser,
		metrics:      m,
		logger:       l,
		defaultLimit: defaultLimit,
	}
}

// Run re-derives image URLs for up to limit scraped listings and persists
// only the ones that changed. With deterministic set, no network calls are
// made: every listing gets the synthesized query-image URL for its title.
func (r *Refresher) Run(ctx context.Context, limit int, deterministic bool) (domain.RefreshSummary, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}

	listings, err := r.store.ScrapedListings(ctx, limit)
	if err != nil {
		return domain.RefreshSummary{}, fmt.Errorf("load scraped listings: %w", err)
	}
	if len(listings) == 0 {
		return domain.RefreshSummary{Message: "No listings found to update"}, nil
	}

	var updates []domain.ImageUpdate
	for _, listing := range listings {
		var newURL string
		if deterministic {
			newURL = normalize.FallbackImageURL(listing.Title)
		} else {
			if listing.SourceURL == "" {
				continue
			}
			newURL = r.resolveLiveImage(ctx, listing.SourceURL)
			if newURL == "" {
				continue
			}
		}
		if newURL == listing.BackgroundImageURL {
			continue
		}
		updates = append(updates, domain.ImageUpdate{ID: listing.ID, BackgroundImageURL: newURL})
	}

	updated := 0
	if len(updates) > 0 {
		updated, err = r.store.UpsertImages(ctx, updates)
		if err != nil {
			return domain.RefreshSummary{}, fmt.Errorf("persist image updates: %w", err)
		}
	}
	r.metrics.AddImagesRefreshed(updated)

	summary := domain.RefreshSummary{
		Updated: updated,
		Scanned: len(listings),
		Message: fmt.Sprintf("Updated %d listings with verified listing images.", updated),
	}
	r.logger.Info("image refresh complete",
		zap.Int("updated", summary.Updated), zap.Int("scanned", summary.Scanned))
	return summary, nil
}

// resolveLiveImage walks the source chain for one listing page and returns
// the first URL that passes the real-image predicate, or the empty string.
func (r *Refresher) resolveLiveImage(ctx context.Context, sourceURL string) string {
	if raw, err := r.extractor.ListingImage(ctx, sourceURL); err != nil {
		r.logger.Warn("image extraction failed", zap.String("source_url", sourceURL), zap.Error(err))
		r.metrics.IncErrorsTotal("image_fetch_failed")
	} else if resolved := normalize.ResolveAbsoluteURL(raw, sourceURL); normalize.IsRealImageURL(resolved) {
		return resolved
	}

	for _, fetcher := range []PageFetcher{r.pageFetcher, r.browser} {
		if fetcher == nil {
			continue
		}
		raw, err := fetcher.Fetch(ctx, sourceURL)
		if err != nil {
			r.logger.Debug("page image fetch failed", zap.String("source_url", sourceURL), zap.Error(err))
			continue
		}
		if resolved := normalize.ResolveAbsoluteURL(raw, sourceURL); normalize.IsRealImageURL(resolved) {
			return resolved
		}
	}
	return ""
}
