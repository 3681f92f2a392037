package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/safemac-dev/safemac/internal/database"
	"github.com/safemac-dev/safemac/internal/model"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs shown per section.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show past checks, remediations and lock runs",
		Long: `History lists what earlier runs recorded in the history database:
malware checks with their finding counts and lock/unlock runs.

With --remediations it lists every quarantined or replaced file together
with where the original content now lives, which is what you need to undo
a remediation.

Examples:
  # Recent runs for every site
  safemac history

  # Everything recorded for one site
  safemac history --limit 0 /www/wwwroot/movie

  # Files that were quarantined or replaced
  safemac history --remediations`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs per section (0: all)")
	cmd.Flags().BoolP("remediations", "r", false,
		"List quarantined and replaced files instead of runs")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	site := ""
	if len(args) == 1 {
		site, err = filepath.Abs(args[0])
		if err != nil {
			return err
		}
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(a.cfg.DBDir, opts)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		a.con.Warn("No history recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()

	if flagBool(cmd, "remediations") {
		records, err := db.GetRemediations(ctx, site)
		if err != nil {
			return err
		}
		a.printRemediations(records)
		return nil
	}

	checks, err := db.GetCheckHistory(ctx, site, limit)
	if err != nil {
		return err
	}
	runs, err := db.GetProtectionHistory(ctx, site, limit)
	if err != nil {
		return err
	}
	a.printCheckHistory(checks)
	a.printProtectionHistory(runs)
	return nil
}

const historyTimeLayout = "2006-01-02 15:04:05"

func (a *app) printCheckHistory(checks []database.CheckReportMetadata) {
	a.con.Header("Malware checks")
	if len(checks) == 0 {
		a.con.Println("  none")
		a.con.Println()
		return
	}
	for _, c := range checks {
		line := fmt.Sprintf("  %s  %-40s %3d finding(s)  %s",
			c.StartedAt.Local().Format(historyTimeLayout), c.Site, c.FindingCount, riskText(c.RiskSummary))
		if c.Cancelled {
			line += "  (interrupted)"
		}
		if c.FindingCount > 0 {
			a.con.Fail("%s", line)
		} else {
			a.con.Success("%s", line)
		}
	}
	a.con.Println()
}

// riskText renders a risk summary in severity order, skipping zero counts.
func riskText(summary map[string]int) string {
	order := []model.Severity{
		model.SeverityCritical,
		model.SeverityHigh,
		model.SeverityMedium,
		model.SeverityLow,
		model.SeverityInfo,
	}
	parts := make([]string, 0, len(order))
	for _, sev := range order {
		if n := summary[sev.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", sev, n))
		}
	}
	return strings.Join(parts, " ")
}

func (a *app) printProtectionHistory(runs []database.ProtectionRecord) {
	a.con.Header("Lock and unlock runs")
	if len(runs) == 0 {
		a.con.Println("  none")
		a.con.Println()
		return
	}
	for _, r := range runs {
		line := fmt.Sprintf("  %s  %-6s %-40s %d entries",
			r.RecordedAt.Local().Format(historyTimeLayout), r.Operation, r.Site, r.Entries)
		if r.OK {
			a.con.Success("%s", line)
			continue
		}
		if r.Error != "" {
			line += ": " + r.Error
		} else {
			line += fmt.Sprintf(", %d failed", r.Failures)
		}
		a.con.Fail("%s", line)
	}
	a.con.Println()
}

func (a *app) printRemediations(records []database.FindingRecord) {
	a.con.Header("Remediated files")
	if len(records) == 0 {
		a.con.Println("  none")
		return
	}
	for _, r := range records {
		a.con.Warn("  [%s] %s", r.Action, r.Path)
		if r.BackupPath != "" {
			a.con.Printf("      original content: %s\n", r.BackupPath)
		}
		if r.Digest != "" {
			a.con.Printf("      sha3-256: %s\n", r.Digest)
		}
		a.con.Printf("      rule: %s, run: %s\n", r.Rule, r.RunID)
	}
}
