// Package main provides safemac-lock, the non-interactive lock entry point
// for cron jobs and deployment hooks.
//
// Usage:
//
//	safemac-lock lock
//	safemac-lock unlock
//
// The operation is applied to every site in the site list, using the same
// configuration file lookup as safemac.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/safemac-dev/safemac/internal/attr"
	"github.com/safemac-dev/safemac/internal/config"
	"github.com/safemac-dev/safemac/internal/database"
	safelog "github.com/safemac-dev/safemac/internal/log"
	"github.com/safemac-dev/safemac/internal/model"
	"github.com/safemac-dev/safemac/internal/protect"
	"github.com/safemac-dev/safemac/internal/sitelist"
)

const usage = `Usage: safemac-lock [lock|unlock]
  lock    - make the core files of every listed site immutable
  unlock  - clear the immutable attribute on every listed site
`

// runner holds what one invocation needs. Tests replace newOperator.
type runner struct {
	cfg         *config.Config
	stdout      io.Writer
	stderr      io.Writer
	logger      *slog.Logger
	newOperator func(probe string) attr.Operator
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprint(stderr, usage)
		return 1
	}
	op, err := model.ParseOperation(args[0])
	if err != nil {
		fmt.Fprint(stderr, usage)
		return 1
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	r := &runner{
		cfg:    cfg,
		stdout: stdout,
		stderr: stderr,
		logger: safelog.NewLogger(stderr, cfg.Verbose),
		newOperator: func(probe string) attr.Operator {
			if cfg.AttrBackend == config.BackendChattr {
				return attr.NewChattrOperator()
			}
			return attr.NewIoctlOperator(probe)
		},
	}
	if err := r.execute(ctx, op); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// loadConfig returns the defaults merged with the config file, if any.
// SAFEMAC_SITE_LIST overrides the site list location.
func loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if path := config.FindConfigFile(""); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	}
	if v := os.Getenv("SAFEMAC_SITE_LIST"); v != "" {
		cfg.SiteListPath = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// errIncomplete is returned when at least one site did not complete.
var errIncomplete = errors.New("operation did not complete on every site")

// execute applies op to every listed site and prints one line per site.
func (r *runner) execute(ctx context.Context, op model.Operation) error {
	sites, err := sitelist.Read(r.cfg.SiteListPath)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		return fmt.Errorf("no sites in %s (run 'safemac scan' first)", r.cfg.SiteListPath)
	}

	probe := ""
	for _, s := range sites {
		if fi, err := os.Stat(s); err == nil && fi.IsDir() {
			probe = s
			break
		}
	}

	engine, err := protect.New(r.newOperator(probe), r.cfg.Protection,
		protect.WithLogger(r.logger),
		protect.WithConcurrency(r.cfg.Concurrency),
	)
	if err != nil {
		return err
	}

	results, err := engine.ProcessSites(ctx, sites, op)
	if err != nil {
		return err
	}

	ok := color.New(color.FgGreen)
	fail := color.New(color.FgRed, color.Bold)
	failed := 0
	for _, res := range results {
		if res.OK {
			ok.Fprintf(r.stdout, "[OK]   %s %s (%d entries)\n", op, res.Site, res.Entries)
			continue
		}
		failed++
		msg := res.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("%d entries failed", res.Failures)
		}
		fail.Fprintf(r.stdout, "[FAIL] %s %s: %s\n", op, res.Site, msg)
	}

	r.record(ctx, results)

	if failed > 0 {
		return fmt.Errorf("%s: %d of %d site(s) failed: %w", op, failed, len(results), errIncomplete)
	}
	return nil
}

// record stores the run in the history database. Failures are logged only.
func (r *runner) record(ctx context.Context, results []model.SiteResult) {
	if !r.cfg.SaveToDB {
		return
	}
	db, err := database.Open(r.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		r.logger.Warn("history disabled: cannot open database", "dir", r.cfg.DBDir, "error", err)
		return
	}
	defer func() { _ = db.Close() }()

	if err := db.SaveProtectionRun(context.WithoutCancel(ctx), uuid.NewString(), results); err != nil {
		r.logger.Error("failed to save protection run", "error", err)
	}
}
