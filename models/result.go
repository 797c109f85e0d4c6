package models

import (
	"fmt"
	"time"
)

// TaskStatus is the terminal state of one task in a harvest run.
type TaskStatus string

const (
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
	TaskSkipped   TaskStatus = "skipped"
	// TaskTruncated keeps its records but stopped before the listing ended.
	TaskTruncated TaskStatus = "truncated"
)

// TaskReport records how a single task ended.
type TaskReport struct {
	Task    ScrapeTask
	Status  TaskStatus
	Records int
	Err     error
}

// Label identifies the task in logs and summaries.
func (r TaskReport) Label() string {
	return fmt.Sprintf("%s - %s (%d/%d)", r.Task.LocationName, r.Task.CategoryName, r.Task.L0Cat, r.Task.L1Cat)
}

// HarvestResult holds the overall result of a harvest run.
type HarvestResult struct {
	Records        []*ProductRecord
	Reports        []TaskReport
	Completed      int
	Total          int
	StartTime      time.Time
	EndTime        time.Time
	RequestCount   int
	RetryCount     int
	RateLimitCount int
	SkippedPages   int
}

// Failed returns the reports of tasks that did not complete.
func (r *HarvestResult) Failed() []TaskReport {
	var out []TaskReport
	for _, report := range r.Reports {
		if report.Status != TaskCompleted {
			out = append(out, report)
		}
	}
	return out
}
