package storage

import (
	"context"
	"fmt"

	"caringest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore handles interactions with the PostgreSQL listings table.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	insertBatchSize int
	upsertBatchSize int
}

func NewPostgresStore(ctx context.Context, connStr string, insertBatchSize, upsertBatchSize int, logger *zap.Logger) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	s := &PostgresStore{
		db:              db,
		logger:          logger,
		insertBatchSize: insertBatchSize,
		upsertBatchSize: upsertBatchSize,
	}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// migrate creates the listings table. The unique index on source_url is what
// makes concurrent pipeline runs safe: the read-then-write existence check
// has a race window, and conflict-on-insert is the authoritative dedup signal.
func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id                   BIGSERIAL PRIMARY KEY,
			title                TEXT        NOT NULL,
			description          TEXT        NOT NULL DEFAULT '',
			date                 TEXT        NOT NULL DEFAULT '',
			time                 TEXT        NOT NULL DEFAULT '',
			address              TEXT        NOT NULL DEFAULT '',
			city                 TEXT        NOT NULL DEFAULT '',
			country              TEXT        NOT NULL DEFAULT '',
			background_image_url TEXT        NOT NULL DEFAULT '',
			target_date          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			creator              TEXT        NOT NULL DEFAULT '',
			category             TEXT        NOT NULL DEFAULT 'other',
			ticket_price         NUMERIC(12,2) NOT NULL DEFAULT 0,
			year                 INT         NOT NULL DEFAULT 0,
			mileage              INT         NOT NULL DEFAULT 0,
			transmission         TEXT        NOT NULL DEFAULT 'manual',
			fuel_type            TEXT        NOT NULL DEFAULT 'petrol',
			condition            TEXT        NOT NULL DEFAULT 'good',
			source_url           TEXT,
			is_scraped           BOOLEAN     NOT NULL DEFAULT FALSE,
			created_by           TEXT,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_source_url
			ON listings(source_url) WHERE source_url IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_listings_is_scraped ON listings(is_scraped);
		CREATE INDEX IF NOT EXISTS idx_listings_category   ON listings(category);
	`)
	return err
}

// ExistingSourceURLs returns which of the given source URLs already have a
// persisted listing.
func (s *PostgresStore) ExistingSourceURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(urls) == 0 {
		return existing, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT source_url FROM listings WHERE source_url = ANY($1)`, urls)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		existing[u] = struct{}{}
	}
	return existing, rows.Err()
}

// InsertListings persists records in fixed-size batches. A failed batch is
// logged and skipped; later batches are still attempted. Returns the number
// of rows actually inserted, which excludes source_url conflicts.
func (s *PostgresStore) InsertListings(ctx context.Context, records []domain.ListingRecord) (int, error) {
	inserted := applyBatches(len(records), s.insertBatchSize,
		func(start, end int) (int, error) {
			return s.insertBatch(ctx, records[start:end])
		},
		func(start, end int, err error) {
			s.logger.Error("listing batch insert failed",
				zap.Int("batch_start", start), zap.Int("batch_size", end-start), zap.Error(err))
		})
	return inserted, nil
}

func (s *PostgresStore) insertBatch(ctx context.Context, records []domain.ListingRecord) (int, error) {
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO listings (
				title, description, date, time, address, city, country,
				background_image_url, target_date, creator, category,
				ticket_price, year, mileage, transmission, fuel_type,
				condition, source_url, is_scraped, created_by
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
			ON CONFLICT (source_url) WHERE source_url IS NOT NULL DO NOTHING`,
			r.Title, r.Description, r.Date, r.Time, r.Address, r.City, r.Country,
			r.BackgroundImageURL, r.TargetDate, r.Creator, r.Category,
			r.TicketPrice, r.Year, r.Mileage, r.Transmission, r.FuelType,
			r.Condition, r.SourceURL, r.IsScraped, r.CreatedBy)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	count := 0
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return count, err
		}
		count += int(tag.RowsAffected())
	}
	return count, nil
}

// ScrapedListings returns up to limit scraped records, oldest first, for the
// image refresh job.
func (s *PostgresStore) ScrapedListings(ctx context.Context, limit int) ([]domain.ScrapedListing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, COALESCE(source_url, ''), background_image_url
		FROM listings
		WHERE is_scraped = TRUE
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []domain.ScrapedListing
	for rows.Next() {
		var l domain.ScrapedListing
		if err := rows.Scan(&l.ID, &l.Title, &l.SourceURL, &l.BackgroundImageURL); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// UpsertImages applies image updates keyed by listing id, in batches, with
// the same partial-failure tolerance as InsertListings. Returns rows updated.
func (s *PostgresStore) UpsertImages(ctx context.Context, updates []domain.ImageUpdate) (int, error) {
	updated := applyBatches(len(updates), s.upsertBatchSize,
		func(start, end int) (int, error) {
			return s.upsertImageBatch(ctx, updates[start:end])
		},
		func(start, end int, err error) {
			s.logger.Error("image batch upsert failed",
				zap.Int("batch_start", start), zap.Int("batch_size", end-start), zap.Error(err))
		})
	return updated, nil
}

func (s *PostgresStore) upsertImageBatch(ctx context.Context, updates []domain.ImageUpdate) (int, error) {
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE listings SET background_image_url = $2 WHERE id = $1`,
			u.ID, u.BackgroundImageURL)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	count := 0
	for range updates {
		tag, err := results.Exec()
		if err != nil {
			return count, err
		}
		count += int(tag.RowsAffected())
	}
	return count, nil
}
