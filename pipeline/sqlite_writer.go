package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS product_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		brand TEXT NOT NULL,
		price REAL NOT NULL,
		discounted_price REAL NOT NULL,
		discount_percentage INTEGER NOT NULL,
		unit TEXT NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT NOT NULL,
		availability TEXT NOT NULL,
		rating REAL NOT NULL,
		image_url TEXT NOT NULL,
		location_name TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		inventory INTEGER NOT NULL,
		scraped_at TEXT NOT NULL
	)
`

const sqliteInsert = `
	INSERT INTO product_records
	(run_id, product_id, product_name, brand, price, discounted_price, discount_percentage,
	 unit, category, subcategory, availability, rating, image_url, location_name,
	 latitude, longitude, inventory, scraped_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// SQLiteWriter appends records to a product_records table. Every writer
// instance tags its rows with its own run id.
type SQLiteWriter struct {
	db    *sql.DB
	runID string
	mu    sync.Mutex
}

// NewSQLiteWriter opens (or creates) the database file and its table.
func NewSQLiteWriter(filename string) (*SQLiteWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite table: %w", err)
	}

	return &SQLiteWriter{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies the rows written by this writer.
func (sw *SQLiteWriter) RunID() string {
	return sw.runID
}

// Write inserts records in a single transaction.
func (sw *SQLiteWriter) Write(records []*models.ProductRecord) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	ctx := context.Background()
	tx, err := sw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare sqlite insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			sw.runID, r.ProductID, r.ProductName, r.Brand, r.Price, r.DiscountedPrice, r.DiscountPercentage,
			r.Unit, r.Category, r.Subcategory, string(r.Availability), r.Rating, r.ImageURL, r.LocationName,
			r.Latitude, r.Longitude, r.Inventory, r.ScrapedAt.UTC().Format(models.ScrapedAtLayout),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert sqlite record %s: %w", r.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite transaction: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.db.Close()
}

// Validate ensures this run stored at least one row.
func (sw *SQLiteWriter) Validate() error {
	count, err := sw.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("sqlite table has no rows for run %s", sw.runID)
	}
	return nil
}

// Count returns the number of rows written by this run.
func (sw *SQLiteWriter) Count() (int, error) {
	var count int
	err := sw.db.QueryRow(`SELECT COUNT(*) FROM product_records WHERE run_id = ?`, sw.runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sqlite rows: %w", err)
	}
	return count, nil
}
