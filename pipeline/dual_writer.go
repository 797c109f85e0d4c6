// Package pipeline batches product records into CSV, JSONL, SQLite or Postgres outputs.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// MultiWriter fans every batch out to several named outputs.
type MultiWriter struct {
	names   []string
	writers []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter returns an empty fan-out; register outputs with Add.
func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}

// Add registers another output.
func (mw *MultiWriter) Add(name string, w OutputWriter) *MultiWriter {
	mw.names = append(mw.names, name)
	mw.writers = append(mw.writers, w)
	return mw
}

// NewDualWriter writes the CSV export and its JSONL twin side by side.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create json writer: %w", err)
	}
	return NewMultiWriter().Add("csv", csvWriter).Add("json", jsonWriter), nil
}

// Write stops at the first output that fails.
func (mw *MultiWriter) Write(records []*models.ProductRecord) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return fmt.Errorf("%s write: %w", mw.names[i], err)
		}
	}
	return nil
}

// Close closes every output and joins their errors.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.each("close", OutputWriter.Close)
}

// Validate validates every output and joins their errors.
func (mw *MultiWriter) Validate() error {
	return mw.each("validate", OutputWriter.Validate)
}

func (mw *MultiWriter) each(op string, fn func(OutputWriter) error) error {
	var errs []error
	for i, w := range mw.writers {
		if err := fn(w); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", mw.names[i], op, err))
		}
	}
	return errors.Join(errs...)
}
