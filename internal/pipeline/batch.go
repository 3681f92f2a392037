package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/safemac-dev/safemac/internal/model"
)

// BatchProcessor checks multiple sites one after another with one pipeline.
//
// Design decision: a single pipeline instance is reused because steps carry
// no per-site state; the log sink they write to hands out a fresh site
// directory for every site.
type BatchProcessor struct {
	pipeline *Pipeline

	// runID tags every report of the batch.
	runID string

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithRunID sets the run ID stamped on every report.
// A random UUID is used if not specified.
func WithRunID(id string) BatchOption {
	return func(b *BatchProcessor) {
		if id != "" {
			b.runID = id
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(p *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipeline: p,
		runID:    uuid.NewString(),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// RunID returns the run ID of the batch.
func (bp *BatchProcessor) RunID() string {
	return bp.runID
}

// ProcessBatch checks every site in order and returns one report per site
// that was started. A missing site gets a report carrying
// model.ErrSiteNotFound and the batch moves on.
//
// Cancelling ctx stops the batch before the next site; the partial report
// of the interrupted site is included and ctx.Err() is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sites []string) ([]*model.CheckReport, error) {
	reports := make([]*model.CheckReport, 0, len(sites))
	err := bp.ProcessBatchWithCallback(ctx, sites, func(report *model.CheckReport, _ int) {
		reports = append(reports, report)
	})
	return reports, err
}

// ProcessBatchWithCallback checks sites in order and calls callback with
// each finished report and its index in sites. The callback runs in the
// caller goroutine.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sites []string,
	callback func(report *model.CheckReport, index int),
) error {
	bp.logger.Info("starting check batch",
		"run_id", bp.runID,
		"total_sites", len(sites),
	)
	startTime := time.Now()

	for i, site := range sites {
		if err := ctx.Err(); err != nil {
			bp.logger.Warn("check batch cancelled", "remaining", len(sites)-i)
			return err
		}

		bp.logger.Info("checking site",
			"site", site,
			"index", i+1,
			"total", len(sites),
		)

		report := model.NewCheckReport(bp.runID, site)
		err := bp.checkSite(ctx, report)
		report.FinishedAt = time.Now()
		callback(report, i)

		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	bp.logger.Info("check batch complete",
		"total_sites", len(sites),
		"elapsed", time.Since(startTime),
	)
	return nil
}

func (bp *BatchProcessor) checkSite(ctx context.Context, report *model.CheckReport) error {
	info, err := os.Stat(report.Site)
	if err != nil || !info.IsDir() {
		report.Errors = append(report.Errors, fmt.Sprintf("%v: %s", model.ErrSiteNotFound, report.Site))
		bp.logger.Warn("site does not exist, skipping", "site", report.Site)
		return nil
	}

	if err := bp.pipeline.Execute(ctx, report); err != nil {
		bp.logger.Warn("check failed", "site", report.Site, "error", err)
		return err
	}
	return nil
}
