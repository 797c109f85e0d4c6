package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// RecordSink receives each task's records as soon as the task finishes.
type RecordSink interface {
	Process(records ...*models.ProductRecord) error
}

type taskHarvester interface {
	Harvest(ctx context.Context, task models.ScrapeTask) ([]*models.ProductRecord, TaskStats, error)
}

// Scraper runs a list of tasks one after another. A failing task is logged
// and recorded; it never stops the tasks that follow it.
type Scraper struct {
	cfg       *config.Config
	client    *Client
	harvester taskHarvester
	sleep     sleeper
	Metrics   *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	client, err := NewClient(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		cfg:       cfg,
		client:    client,
		harvester: NewPaginator(cfg, client, metrics),
		sleep:     sleepContext,
		Metrics:   metrics,
	}, nil
}

// Client exposes the request orchestrator, mainly so tests can swap its transport.
func (s *Scraper) Client() *Client {
	return s.client
}

// Run harvests every task in order, pausing TaskDelay between tasks, and
// returns the concatenation of all records in task order. Failed tasks
// contribute no records; truncated and cancelled ones keep theirs. When ctx is
// cancelled the records gathered so far are kept and the remaining tasks are
// reported as skipped. sink may be nil.
func (s *Scraper) Run(ctx context.Context, tasks []models.ScrapeTask, sink RecordSink) (*models.HarvestResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.HarvestResult{
		Total:     len(tasks),
		StartTime: time.Now(),
		Reports:   make([]models.TaskReport, 0, len(tasks)),
	}

	slog.Info("starting harvest", slog.Int("tasks", len(tasks)))

	for i, task := range tasks {
		if ctx.Err() != nil {
			s.skipRemaining(result, tasks[i:])
			break
		}

		report := models.TaskReport{Task: task}
		slog.Info("processing task",
			slog.Int("task", i+1),
			slog.Int("of", len(tasks)),
			slog.String("label", report.Label()),
		)

		records, stats, err := s.harvester.Harvest(ctx, task)
		result.RateLimitCount += stats.RateLimited
		result.SkippedPages += stats.SkippedPages

		var skipLimit ErrSkipLimit
		switch {
		case err == nil:
			report.Status = models.TaskCompleted
			result.Completed++
		case errors.As(err, &skipLimit):
			report.Status = models.TaskTruncated
			report.Err = err
			slog.Warn("task ended early",
				slog.String("label", report.Label()),
				slog.Int("records", len(records)),
				slog.Any("error", err),
			)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			report.Status = models.TaskCancelled
			report.Err = err
		default:
			report.Status = models.TaskFailed
			report.Err = err
			records = nil
			slog.Error("task failed",
				slog.String("label", report.Label()),
				slog.String("category", errorTypeLabel(err)),
				slog.Any("error", err),
			)
		}

		report.Records = len(records)
		result.Records = append(result.Records, records...)
		result.Reports = append(result.Reports, report)
		s.Metrics.IncTask(string(report.Status))

		if sink != nil && len(records) > 0 {
			if err := sink.Process(records...); err != nil {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
		}

		if report.Status == models.TaskCompleted {
			slog.Info("task complete",
				slog.String("label", report.Label()),
				slog.Int("records", report.Records),
			)
		}

		if i < len(tasks)-1 && ctx.Err() == nil {
			if err := s.sleep(ctx, s.cfg.TaskDelay.Duration); err != nil {
				s.skipRemaining(result, tasks[i+1:])
				break
			}
		}
	}

	result.EndTime = time.Now()
	if s.client != nil {
		result.RequestCount = s.client.Requests()
		result.RetryCount = s.client.Retries()
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Scraper) skipRemaining(result *models.HarvestResult, tasks []models.ScrapeTask) {
	for _, task := range tasks {
		result.Reports = append(result.Reports, models.TaskReport{
			Task:   task,
			Status: models.TaskSkipped,
			Err:    context.Canceled,
		})
		s.Metrics.IncTask(string(models.TaskSkipped))
	}
	if len(tasks) > 0 {
		slog.Warn("harvest interrupted, remaining tasks skipped", slog.Int("skipped", len(tasks)))
	}
}
