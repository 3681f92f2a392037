package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/safemac-dev/safemac/internal/attr"
	"github.com/safemac-dev/safemac/internal/config"
	"github.com/safemac-dev/safemac/internal/model"
	"github.com/safemac-dev/safemac/internal/protect"
	"github.com/spf13/cobra"
)

// errSitesFailed is returned by the non-interactive entry points when at
// least one site did not complete.
var errSitesFailed = errors.New("one or more sites failed")

// NewLockCmd creates the lock command.
func NewLockCmd() *cobra.Command {
	return newProtectCmd(model.OperationLock, `Lock makes the core of each site immutable with the file system's
immutable attribute (chattr +i): the application, thinkphp, template,
static and vendor directories and the PHP files in the site root.
Cache and upload directories (runtime, upload, ...) are then made writable
again, so the site keeps working while its code cannot be modified.

Remember to unlock before upgrading MacCMS or installing plugins.

Examples:
  # Lock every site in the site list
  safemac lock --all

  # Lock one site with the chattr binary instead of the ioctl
  safemac lock --backend chattr /www/wwwroot/movie`)
}

// NewUnlockCmd creates the unlock command.
func NewUnlockCmd() *cobra.Command {
	return newProtectCmd(model.OperationUnlock, `Unlock clears the immutable attribute on every file and directory of
each site.

Examples:
  # Unlock every site in the site list
  safemac unlock --all

  # Unlock one site
  safemac unlock /www/wwwroot/movie`)
}

// newProtectCmd builds the lock or unlock command; they share every flag.
func newProtectCmd(op model.Operation, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(op) + " [site...]",
		Short: titleOp(op) + " website files against modification",
		Long:  long,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProtectCmd(cmd, args, op)
		},
	}

	cmd.Flags().BoolP("all", "a", false,
		"Process every site in the site list")
	cmd.Flags().String("backend", config.BackendIoctl,
		"Immutable attribute mechanism: ioctl or chattr")
	cmd.Flags().Int("concurrency", 0,
		"Maximum number of sites processed at once (0: all)")
	cmd.Flags().BoolP("dry-run", "n", false,
		"Walk the sites without changing any attribute")
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

// runProtectCmd executes lock or unlock.
func runProtectCmd(cmd *cobra.Command, args []string, op model.Operation) error {
	all := flagBool(cmd, "all")
	if all && len(args) > 0 {
		return errors.New("--all cannot be combined with site arguments")
	}
	if !all && len(args) == 0 {
		return fmt.Errorf("%w: name the sites to %s or use --all", errNoSites, op)
	}

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

	results, err := a.protectSites(ctx, op, sites)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.OK {
			return fmt.Errorf("%s: %w", op, errSitesFailed)
		}
	}
	return nil
}

// newOperator returns the attribute operator for the configured backend.
// A dry run never touches real attributes.
func (a *app) newOperator(sites []string) attr.Operator {
	if a.cfg.DryRun {
		return attr.NewMemoryOperator()
	}
	if a.cfg.AttrBackend == config.BackendChattr {
		return attr.NewChattrOperator()
	}
	probe := ""
	for _, s := range sites {
		if fi, err := os.Stat(s); err == nil && fi.IsDir() {
			probe = s
			break
		}
	}
	return attr.NewIoctlOperator(probe)
}

// protectSites runs op over sites in parallel, prints one line per site,
// records the run and writes a report when a format or file was requested.
func (a *app) protectSites(ctx context.Context, op model.Operation, sites []string) ([]model.SiteResult, error) {
	engine, err := protect.New(a.newOperator(sites), a.cfg.Protection,
		protect.WithLogger(a.logger),
		protect.WithConcurrency(a.cfg.Concurrency),
	)
	if err != nil {
		return nil, err
	}

	verb := "Locking"
	if op == model.OperationUnlock {
		verb = "Unlocking"
	}
	a.con.Warn("%s %d site(s)...", verb, len(sites))

	results, err := engine.ProcessSites(ctx, sites, op)
	if err != nil {
		a.con.Fail("%s failed: %v", titleOp(op), err)
		return nil, err
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.OK:
			a.con.Success("  [OK]   %s (%d entries)", r.Site, r.Entries)
		case r.ErrorMessage != "":
			failed++
			a.con.Fail("  [FAIL] %s: %s", r.Site, r.ErrorMessage)
		default:
			failed++
			a.con.Fail("  [FAIL] %s: %d of %d entries failed", r.Site, r.Failures, r.Entries+r.Failures)
		}
	}

	if failed == 0 {
		a.con.Success("%s complete.", titleOp(op))
	} else {
		a.con.Fail("%s finished with %d failed site(s).", titleOp(op), failed)
	}
	if a.cfg.DryRun {
		a.con.Warn("Dry run: no attribute was changed.")
	}
	a.con.Println()

	if !a.cfg.DryRun {
		a.saveProtectionRun(ctx, results)
	}

	if a.cfg.JSONReport || a.cfg.MarkdownReport || a.cfg.ReportFile != "" {
		out, closeOut, err := a.openOutput()
		if err != nil {
			return results, err
		}
		_, err = a.reportWriter(out).WriteProtection(op, results)
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		if err != nil {
			return results, fmt.Errorf("failed to write report: %w", err)
		}
	}

	return results, nil
}

// saveProtectionRun records results under a fresh run ID. History failures
// are logged and never fail the run.
func (a *app) saveProtectionRun(ctx context.Context, results []model.SiteResult) {
	db := a.openHistory()
	if db == nil {
		return
	}
	defer func() { _ = db.Close() }()

	if err := db.SaveProtectionRun(context.WithoutCancel(ctx), uuid.NewString(), results); err != nil {
		a.logger.Error("failed to save protection run", "error", err)
	}
}

func titleOp(op model.Operation) string {
	s := string(op)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
