package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS product_records (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		brand TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		discounted_price DOUBLE PRECISION NOT NULL,
		discount_percentage INTEGER NOT NULL,
		unit TEXT NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT NOT NULL,
		availability TEXT NOT NULL,
		rating DOUBLE PRECISION NOT NULL,
		image_url TEXT NOT NULL,
		location_name TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		inventory INTEGER NOT NULL,
		scraped_at TIMESTAMPTZ NOT NULL
	)
`

const postgresInsert = `
	INSERT INTO product_records
	(run_id, product_id, product_name, brand, price, discounted_price, discount_percentage,
	 unit, category, subcategory, availability, rating, image_url, location_name,
	 latitude, longitude, inventory, scraped_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`

// PostgresWriter appends records to a product_records table through a pgx
// pool, one batch round trip per Write.
type PostgresWriter struct {
	pool    *pgxpool.Pool
	runID   uuid.UUID
	timeout time.Duration
	mu      sync.Mutex
}

// NewPostgresWriter connects to dsn and ensures the table exists.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres table: %w", err)
	}

	return &PostgresWriter{
		pool:    pool,
		runID:   uuid.New(),
		timeout: 30 * time.Second,
	}, nil
}

// RunID identifies the rows written by this writer.
func (pw *PostgresWriter) RunID() string {
	return pw.runID.String()
}

// Write queues one insert per record and sends them as a single batch.
func (pw *PostgresWriter) Write(records []*models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), pw.timeout)
	defer cancel()

	b := &pgx.Batch{}
	for _, r := range records {
		b.Queue(postgresInsert,
			pw.runID, r.ProductID, r.ProductName, r.Brand, r.Price, r.DiscountedPrice, r.DiscountPercentage,
			r.Unit, r.Category, r.Subcategory, string(r.Availability), r.Rating, r.ImageURL, r.LocationName,
			r.Latitude, r.Longitude, r.Inventory, r.ScrapedAt.UTC(),
		)
	}

	br := pw.pool.SendBatch(ctx, b)
	for i := 0; i < len(records); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert postgres record %s: %w", records[i].ProductID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close postgres batch: %w", err)
	}
	return nil
}

// Close releases the pool.
func (pw *PostgresWriter) Close() error {
	pw.pool.Close()
	return nil
}

// Validate ensures this run stored at least one row.
func (pw *PostgresWriter) Validate() error {
	count, err := pw.Count(context.Background())
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("postgres table has no rows for run %s", pw.runID)
	}
	return nil
}

// Count returns the number of rows written by this run.
func (pw *PostgresWriter) Count(ctx context.Context) (int, error) {
	var count int
	if err := pw.pool.QueryRow(ctx, `SELECT COUNT(*) FROM product_records WHERE run_id = $1`, pw.runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count postgres rows: %w", err)
	}
	return count, nil
}
