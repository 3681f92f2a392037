package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/safemac-dev/safemac/internal/model"
)

// timeLayout is the timestamp format used in text and Markdown reports.
const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting and findings grouped by severity.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// Colored progress output belongs to the CLI, not to the report.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sites and severities with no findings are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with impact text and failed paths.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteChecks outputs the check reports in human-readable format.
func (w *SimpleWriter) WriteChecks(reports []*model.CheckReport) (int, error) {
	var sb strings.Builder
	summary := Summarize(reports)

	writeBanner(&sb, "MALWARE CHECK REPORT")
	w.writeCheckSummary(&sb, summary)

	for _, r := range reports {
		if r == nil {
			continue
		}
		if !r.HasFindings() && len(r.Errors) == 0 && !w.showEmpty {
			continue
		}
		w.writeSite(&sb, r)
	}

	writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// writeCheckSummary writes the severity summary section.
func (w *SimpleWriter) writeCheckSummary(sb *strings.Builder, s CheckSummary) {
	writeSection(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Sites checked:   %d\n", s.Sites)
	fmt.Fprintf(sb, "  Sites infected:  %d\n", s.SitesWithFindings)
	fmt.Fprintf(sb, "  Files scanned:   %d\n", s.FilesScanned)
	fmt.Fprintf(sb, "  Remediated:      %d\n", s.Remediated)
	if s.Cancelled {
		sb.WriteString("  Status:          INTERRUPTED (partial results)\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  CRITICAL: %d\n", s.Critical)
	fmt.Fprintf(sb, "  HIGH:     %d\n", s.High)
	fmt.Fprintf(sb, "  MEDIUM:   %d\n", s.Medium)
	fmt.Fprintf(sb, "  LOW:      %d\n", s.Low)
	fmt.Fprintf(sb, "  INFO:     %d\n", s.Info)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d findings\n\n", s.Total())
}

// writeSite writes one site's findings grouped by severity.
func (w *SimpleWriter) writeSite(sb *strings.Builder, r *model.CheckReport) {
	writeSection(sb, "SITE "+r.Site)

	if !r.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Checked:  %s\n", r.StartedAt.Format(timeLayout))
	}
	if r.Summary.LogDir != "" {
		fmt.Fprintf(sb, "Logs:     %s\n", r.Summary.LogDir)
	}
	if r.Cancelled {
		sb.WriteString("Status:   INTERRUPTED\n")
	}
	sb.WriteString("\n")

	for _, sev := range severityOrder {
		findings := findingsOfSeverity(r, sev)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}
		w.writeFindingsForSeverity(sb, sev, findings)
	}

	if len(r.Errors) > 0 {
		sb.WriteString("[x] ERRORS\n")
		for _, e := range r.Errors {
			fmt.Fprintf(sb, "  * %s\n", e)
		}
		sb.WriteString("\n")
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *SimpleWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.Finding) {
	fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(severity), severity.String())

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, f := range findings {
		fmt.Fprintf(sb, "  * %s: %s\n", f.Rule, f.Path)
		if f.Detail != "" {
			fmt.Fprintf(sb, "    Detail: %s\n", f.Detail)
		}
		if f.Action != model.ActionNone {
			fmt.Fprintf(sb, "    Action: %s\n", f.Action)
		}
		if f.BackupPath != "" {
			fmt.Fprintf(sb, "    Backup: %s\n", f.BackupPath)
		}
		if f.Error != "" {
			fmt.Fprintf(sb, "    Error:  %s\n", f.Error)
		}
		if w.verbose {
			if f.Digest != "" {
				fmt.Fprintf(sb, "    SHA3-256: %s\n", f.Digest)
			}
			fmt.Fprintf(sb, "    Impact: %s\n", model.GetFindingInfo(f.Kind).Impact)
		}
	}
	sb.WriteString("\n")
}

// WriteProtection outputs the per-site lock or unlock results.
func (w *SimpleWriter) WriteProtection(op model.Operation, results []model.SiteResult) (int, error) {
	var sb strings.Builder
	s := SummarizeProtection(results)

	writeBanner(&sb, strings.ToUpper(string(op))+" REPORT")
	writeSection(&sb, "SITES")

	for _, r := range results {
		status := "OK"
		if !r.OK {
			status = "FAIL"
		}
		fmt.Fprintf(&sb, "  [%-4s] %s  entries=%d failures=%d elapsed=%s\n",
			status, r.Site, r.Entries, r.Failures, r.Elapsed.Round(time.Millisecond))
		if r.ErrorMessage != "" {
			fmt.Fprintf(&sb, "         error: %s\n", r.ErrorMessage)
		}
		if w.verbose {
			for _, f := range r.Failed {
				fmt.Fprintf(&sb, "         - %s\n", f)
			}
			if len(r.Kept) > 0 {
				fmt.Fprintf(&sb, "         writable: %s\n", strings.Join(r.Kept, ", "))
			}
		}
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "  %d site(s), %d ok, %d failed, %d entries, %d entry failures\n\n",
		s.Sites, s.OK, s.Failed, s.Entries, s.Failures)

	writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := (70 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by safemac\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
