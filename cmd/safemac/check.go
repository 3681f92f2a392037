package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/safemac-dev/safemac/internal/database"
	"github.com/safemac-dev/safemac/internal/detect"
	"github.com/safemac-dev/safemac/internal/logsink"
	"github.com/safemac-dev/safemac/internal/model"
	"github.com/safemac-dev/safemac/internal/pipeline"
	"github.com/safemac-dev/safemac/internal/report"
	"github.com/spf13/cobra"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [site...]",
		Short: "Check sites for MacCMS malware",
		Long: `Check runs the malware detectors against each site, in order:

  1. planted files (application/extra/active.php, system.php)
     offered for quarantine: renamed to a .lock extension
  2. hijacked application/extra/addons.php
     offered for replacement with the clean file after a verified backup
  3. script patterns in .js files and template .html files, with hit logs
     per pattern, plus templates loading scripts from other hosts

Without arguments every site in the site list is checked. Every
modification is confirmed interactively unless --yes is given; --dry-run
reports without modifying anything.

WARNING: remediation changes site files. Back up the sites first.

Examples:
  # Check every listed site, asking before each change
  safemac check

  # Report only, as JSON
  safemac check --dry-run --json

  # Check one site and approve every remediation
  safemac check --yes /www/wwwroot/movie`,
		Args: cobra.ArbitraryArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().BoolP("yes", "y", false,
		"Approve every remediation without asking")
	cmd.Flags().BoolP("dry-run", "n", false,
		"Report findings without modifying any file")
	cmd.Flags().Bool("no-external-scripts", false,
		"Skip the external script check on templates")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	sites, err := a.resolveSites(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	_, err = a.checkSites(ctx, sites)
	return err
}

// checkSites runs the check pipeline over sites, records the run and
// writes the report. An interrupted run still reports what it found.
func (a *app) checkSites(ctx context.Context, sites []string) ([]*model.CheckReport, error) {
	sink, err := logsink.New(a.cfg.LogDir, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create hit log directory: %w", err)
	}

	confirm := detect.Confirmer(a.con.Confirm)
	if a.cfg.AssumeYes {
		confirm = detect.Always
	}

	p, err := pipeline.DefaultPipeline(a.cfg.Rules, sink,
		[]pipeline.Option{
			pipeline.WithLogger(a.logger),
			pipeline.WithContinueOnError(true),
		},
		pipeline.WithPipelineConfirmer(confirm),
		pipeline.WithPipelineDryRun(a.cfg.DryRun),
		pipeline.WithPipelineExternalScripts(a.cfg.ExternalScripts),
		pipeline.WithPipelineStepLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid detection rules: %w", err)
	}

	db := a.openHistory()
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	bp := pipeline.NewBatchProcessor(p, pipeline.WithBatchLogger(a.logger))
	a.con.Warn("Starting malware check of %d site(s), run %s", len(sites), bp.RunID())
	a.con.Warn("Hit logs: %s", sink.Dir())
	a.con.Println()

	reports := make([]*model.CheckReport, 0, len(sites))
	batchErr := bp.ProcessBatchWithCallback(ctx, sites, func(r *model.CheckReport, index int) {
		reports = append(reports, r)
		a.printCheckProgress(r, index, len(sites))
		a.saveCheckReport(ctx, db, r)
	})

	if batchErr != nil && !errors.Is(batchErr, context.Canceled) {
		return reports, batchErr
	}
	if batchErr != nil {
		a.con.Fail("Check interrupted; reporting partial results.")
	}

	if err := a.writeCheckReport(reports); err != nil {
		return reports, err
	}
	return reports, nil
}

// printCheckProgress prints one line per finished site.
func (a *app) printCheckProgress(r *model.CheckReport, index, total int) {
	prefix := fmt.Sprintf("[%d/%d] %s:", index+1, total, r.Site)
	switch {
	case len(r.Errors) > 0 && !r.HasFindings():
		a.con.Fail("%s %d error(s)", prefix, len(r.Errors))
	case r.HasFindings():
		a.con.Fail("%s %d finding(s), %d file(s) scanned", prefix, len(r.Findings), r.Summary.FilesScanned)
	default:
		a.con.Success("%s clean, %d file(s) scanned", prefix, r.Summary.FilesScanned)
	}
}

// saveCheckReport records r in the history database, if one is open.
// History failures are logged and never fail the check.
func (a *app) saveCheckReport(ctx context.Context, db *database.HistoryDB, r *model.CheckReport) {
	if db == nil {
		return
	}
	// The check itself may have been interrupted; the record is still written.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if _, err := db.SaveCheckReport(ctx, r); err != nil {
		a.logger.Error("failed to save check report", "site", r.Site, "error", err)
	}
}

// writeCheckReport writes the reports in the configured format.
func (a *app) writeCheckReport(reports []*model.CheckReport) error {
	out, closeOut, err := a.openOutput()
	if err != nil {
		return err
	}

	_, err = a.reportWriter(out).WriteChecks(reports)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if a.cfg.ReportFile != "" {
		a.con.Success("Report written to %s", a.cfg.ReportFile)
	}
	return nil
}

// reportWriter returns the writer for the configured report format.
func (a *app) reportWriter(out io.Writer) report.Writer {
	switch {
	case a.cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case a.cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(a.cfg.Verbose))
	}
}
