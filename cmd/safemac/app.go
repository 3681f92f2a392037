package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/safemac-dev/safemac/internal/config"
	"github.com/safemac-dev/safemac/internal/database"
	safelog "github.com/safemac-dev/safemac/internal/log"
	"github.com/safemac-dev/safemac/internal/sitelist"
	"github.com/spf13/cobra"
)

// errNoSites is returned when an operation has no site to work on.
var errNoSites = errors.New("no sites to process")

// app bundles what every command needs: the merged configuration, the
// logger and the console.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	con    *console
	stdout io.Writer
}

// newApp builds the configuration from defaults, the config file and the
// flags of cmd, then validates it.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger := safelog.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	if flagBool(cmd, "log-json") {
		logger = safelog.NewJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	}
	slog.SetDefault(logger)

	// A machine-readable report on stdout gets stdout to itself.
	conOut := cmd.OutOrStdout()
	if (cfg.JSONReport || cfg.MarkdownReport) && cfg.ReportFile == "" {
		conOut = cmd.ErrOrStderr()
	}

	noColor := flagBool(cmd, "no-color")
	return &app{
		cfg:    cfg,
		logger: logger,
		con:    newConsole(conOut, cmd.InOrStdin(), noColor),
		stdout: cmd.OutOrStdout(),
	}, nil
}

// loadConfig merges defaults, the config file and command flags, in that
// order. Only flags the user actually set override the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	fs := cmd.Flags()

	cfg.ConfigFilePath = flagString(cmd, "config")

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if dir := flagString(cmd, "data-dir"); dir != "" {
		cfg.SiteListPath = filepath.Join(dir, config.SiteListFileName)
		cfg.LogDir = filepath.Join(dir, config.LogDirName)
		cfg.DBDir = dir
	}

	stringFlags := map[string]*string{
		"site-list": &cfg.SiteListPath,
		"log-dir":   &cfg.LogDir,
		"output":    &cfg.ReportFile,
		"backend":   &cfg.AttrBackend,
	}
	boolFlags := map[string]*bool{
		"verbose":  &cfg.Verbose,
		"dry-run":  &cfg.DryRun,
		"yes":      &cfg.AssumeYes,
		"json":     &cfg.JSONReport,
		"markdown": &cfg.MarkdownReport,
	}
	// --no-* flags switch a default-on setting off.
	negatedFlags := map[string]*bool{
		"no-demo-override":    &cfg.DemoOverride,
		"no-external-scripts": &cfg.ExternalScripts,
		"no-history":          &cfg.SaveToDB,
	}
	intFlags := map[string]*int{
		"threshold":   &cfg.Threshold,
		"concurrency": &cfg.Concurrency,
	}

	for name, dst := range stringFlags {
		if fs.Changed(name) {
			v, err := fs.GetString(name)
			if err != nil {
				return nil, err
			}
			*dst = v
		}
	}
	for name, dst := range boolFlags {
		if fs.Changed(name) {
			v, err := fs.GetBool(name)
			if err != nil {
				return nil, err
			}
			*dst = v
		}
	}
	for name, dst := range negatedFlags {
		if fs.Changed(name) {
			v, err := fs.GetBool(name)
			if err != nil {
				return nil, err
			}
			*dst = !v
		}
	}
	for name, dst := range intFlags {
		if fs.Changed(name) {
			v, err := fs.GetInt(name)
			if err != nil {
				return nil, err
			}
			*dst = v
		}
	}

	return cfg, nil
}

// flagString returns the value of a string flag, or "" if cmd has no such flag.
func flagString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}

// flagBool returns the value of a bool flag, or false if cmd has no such flag.
func flagBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openHistory opens the history database when history is enabled. It
// returns nil when history is off or the database cannot be opened; the
// latter is logged and never stops the run.
func (a *app) openHistory() *database.HistoryDB {
	if !a.cfg.SaveToDB {
		return nil
	}
	db, err := database.Open(a.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		a.logger.Warn("history disabled: cannot open database", "dir", a.cfg.DBDir, "error", err)
		return nil
	}
	a.logger.Debug("history database opened", "path", db.Path())
	return db
}

// resolveSites returns args when given, otherwise the site list. An empty
// result is errNoSites.
func (a *app) resolveSites(args []string) ([]string, error) {
	if len(args) > 0 {
		sites := make([]string, 0, len(args))
		for _, s := range args {
			abs, err := filepath.Abs(s)
			if err != nil {
				return nil, fmt.Errorf("invalid site path %q: %w", s, err)
			}
			sites = append(sites, abs)
		}
		return sites, nil
	}

	sites, err := sitelist.Read(a.cfg.SiteListPath)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("%w: %s is empty or missing (run 'safemac scan' first)", errNoSites, a.cfg.SiteListPath)
	}
	return sites, nil
}

// openOutput returns the report destination: the configured report file
// (created with 0600 permissions, parents as needed) or stdout.
func (a *app) openOutput() (io.Writer, func() error, error) {
	if a.cfg.ReportFile == "" {
		return a.stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(a.cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports name infected paths and backups; keep them owner-only.
	f, err := os.OpenFile(a.cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
