package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

// PageFetcher performs a single listing call.
type PageFetcher interface {
	FetchPage(ctx context.Context, req models.PageRequest) (models.RawResponse, error)
}

type pageDecision int

const (
	decisionContinue pageDecision = iota
	decisionStop
)

// TaskStats counts what happened during one task's pagination run.
type TaskStats struct {
	Pages        int
	RateLimited  int
	SkippedPages int
}

// Paginator drives one task's pagination run: it fetches pages, tracks the
// identifiers already returned, advances the offset and decides when to stop.
type Paginator struct {
	cfg     *config.Config
	fetcher PageFetcher
	metrics *Metrics
	sleep   sleeper
	now     func() time.Time
}

// NewPaginator builds a paginator over fetcher.
func NewPaginator(cfg *config.Config, fetcher PageFetcher, metrics *Metrics) *Paginator {
	return &Paginator{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// Harvest runs the task to completion. A failure before any record was
// collected is returned as a hard failure; later failures skip the page.
// On cancellation the records gathered so far are returned with ctx.Err(),
// and when MaxSkippedPages is hit they are returned with an ErrSkipLimit.
func (p *Paginator) Harvest(ctx context.Context, task models.ScrapeTask) ([]*models.ProductRecord, TaskStats, error) {
	var (
		records []*models.ProductRecord
		seen    []string
		stats   TaskStats
		offset  int
		skipped int
	)
	meta := parser.MetaFor(task)

	slog.Info("starting category",
		slog.Int("l0_cat", task.L0Cat),
		slog.Int("l1_cat", task.L1Cat),
		slog.Float64("latitude", task.Latitude),
		slog.Float64("longitude", task.Longitude),
	)

	for {
		if err := ctx.Err(); err != nil {
			return records, stats, err
		}

		req := models.PageRequest{
			Task:    task,
			Offset:  offset,
			Limit:   models.PageSize,
			SeenIDs: seen,
		}
		raw, err := p.fetcher.FetchPage(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return records, stats, ctx.Err()
			}
			if IsRateLimited(err) {
				stats.RateLimited++
				p.metrics.IncRateLimited()
				slog.Warn("rate limited, cooling down",
					slog.Int("offset", offset),
					slog.Duration("cooldown", p.cfg.RateLimitCooldown.Duration),
				)
				if err := p.sleep(ctx, p.cfg.RateLimitCooldown.Duration); err != nil {
					return records, stats, err
				}
				continue
			}
			if len(records) == 0 {
				return nil, stats, fmt.Errorf("category %d/%d: %w", task.L0Cat, task.L1Cat, err)
			}

			skipped++
			stats.SkippedPages++
			p.metrics.IncSkippedPages()
			slog.Error("page failed, skipping ahead",
				slog.Int("offset", offset),
				slog.Int("collected", len(records)),
				slog.Any("error", err),
			)
			if max := p.cfg.MaxSkippedPages; max > 0 && skipped >= max {
				slog.Warn("too many consecutive failed pages, ending category early",
					slog.Int("skipped", skipped),
					slog.Int("collected", len(records)),
				)
				return records, stats, ErrSkipLimit{Skipped: skipped, Err: err}
			}
			offset += models.PageSize
			continue
		}
		skipped = 0

		page, decision := p.evaluate(raw, meta)
		if decision == decisionStop && len(page) == 0 {
			slog.Info("no products in response, ending pagination", slog.Int("offset", offset))
			break
		}

		records = append(records, page...)
		seen = appendIdentifiers(seen, page)
		stats.Pages++
		p.metrics.AddItems(len(page))

		slog.Info("page harvested",
			slog.Int("offset", offset),
			slog.Int("batch", len(page)),
			slog.Int("total", len(records)),
		)

		if decision == decisionContinue && p.cfg.MaxPages > 0 && stats.Pages >= p.cfg.MaxPages {
			decision = decisionStop
		}
		if decision == decisionContinue {
			offset += models.PageSize
		}

		if err := p.sleep(ctx, p.cfg.PageDelay.Duration); err != nil {
			return records, stats, err
		}
		if decision == decisionStop {
			break
		}
	}

	slog.Info("category complete", slog.Int("products", len(records)), slog.Int("pages", stats.Pages))
	return records, stats, nil
}

// evaluate normalizes a page and decides whether another page follows: a
// full page, or an explicit has-more flag, means continue.
func (p *Paginator) evaluate(raw models.RawResponse, meta parser.TaskMeta) ([]*models.ProductRecord, pageDecision) {
	if len(raw) == 0 {
		return nil, decisionStop
	}
	page := parser.NormalizeAll(parser.Unwrap(raw), meta, p.now())
	if len(page) == 0 {
		return nil, decisionStop
	}
	if len(page) >= models.PageSize || parser.HasMore(raw) {
		return page, decisionContinue
	}
	return page, decisionStop
}

// appendIdentifiers grows the task's seen-identifier list with this page's
// non-empty product ids.
func appendIdentifiers(seen []string, page []*models.ProductRecord) []string {
	for _, record := range page {
		if record.ProductID != "" {
			seen = append(seen, record.ProductID)
		}
	}
	return seen
}
