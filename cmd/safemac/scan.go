package main

import (
	"context"
	"fmt"
	"os"

	"github.com/safemac-dev/safemac/internal/classify"
	"github.com/safemac-dev/safemac/internal/config"
	"github.com/safemac-dev/safemac/internal/sitelist"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [base-path...]",
		Short: "Find MacCMS sites and rewrite the site list",
		Long: `Scan walks the base paths looking for MacCMS installation roots and
rewrites the site list with what it finds.

A directory is a site when enough marker directories and files are its
immediate children (application, runtime, thinkphp, template, api.php,
install.php). A directory named "demo" that contains an application
directory is accepted regardless of score unless --no-demo-override is given.

Without arguments the common web roots of BT panel, LNMP, Apache, Nginx and
XAMPP installs are searched, plus /home.

Examples:
  # Rescan the default web roots
  safemac scan

  # Only look under one directory
  safemac scan /data/www

  # Show what would be listed without rewriting the list
  safemac scan --dry-run`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().Int("threshold", config.DefaultThreshold,
		"Number of marker features required to classify a directory as a site")
	cmd.Flags().Bool("no-demo-override", false,
		"Do not accept demo directories below the threshold")
	cmd.Flags().Bool("dry-run", false,
		"Print the sites found without rewriting the site list")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		a.cfg.BasePaths = args
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	_, err = a.scanSites(ctx)
	return err
}

// scanSites classifies the configured base paths, rewrites the site list
// unless this is a dry run, and prints the result.
func (a *app) scanSites(ctx context.Context) ([]string, error) {
	c := classify.New(
		classify.WithLogger(a.logger),
		classify.WithThreshold(a.cfg.Threshold),
		classify.WithDemoOverride(a.cfg.DemoOverride),
	)

	for _, base := range a.cfg.BasePaths {
		if fi, err := os.Stat(base); err == nil && fi.IsDir() {
			a.con.Warn("Scanning path: %s", base)
		} else {
			a.con.Warn("Path does not exist, skipping: %s", base)
		}
	}

	sites, err := c.ScanRoots(ctx, a.cfg.BasePaths)
	if err != nil {
		return nil, fmt.Errorf("site scan aborted: %w", err)
	}
	paths := classify.SitePaths(sites)

	if !a.cfg.DryRun {
		if err := sitelist.Write(a.cfg.SiteListPath, paths); err != nil {
			return nil, err
		}
	}

	a.con.Println()
	if len(sites) == 0 {
		a.con.Fail("No MacCMS sites found.")
		a.con.Warn("If a site exists, add its root directory to %s by hand.", a.cfg.SiteListPath)
		a.con.Println()
		return paths, nil
	}

	a.con.Success("Scan complete: %d MacCMS site(s) found.", len(sites))
	a.con.Println()
	for i, s := range sites {
		note := ""
		if s.Override && s.Score < a.cfg.Threshold {
			note = " (demo)"
		}
		a.con.Printf("%2d. %s%s\n", i+1, s.RootPath, note)
	}
	a.con.Println()
	if a.cfg.DryRun {
		a.con.Warn("Dry run: %s was not modified.", a.cfg.SiteListPath)
	} else {
		a.con.Warn("Check that these are the right site roots. They were written to %s.", a.cfg.SiteListPath)
		a.con.Warn("Edit that file to remove directories that should not be handled.")
	}
	a.con.Println()
	return paths, nil
}
