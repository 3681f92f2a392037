package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/safemac-dev/safemac/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for incident tickets and handover notes.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteChecks outputs the check reports in Markdown format.
func (w *MarkdownWriter) WriteChecks(reports []*model.CheckReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := Summarize(reports)

	md.H1("safemac Malware Check Report")
	md.PlainText("")

	w.writeSummary(md, summary)

	for _, r := range reports {
		if r == nil {
			continue
		}
		w.writeSite(md, r)
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeSummary writes the run summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s CheckSummary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Sites Checked", strconv.Itoa(s.Sites)},
			{"Sites With Findings", strconv.Itoa(s.SitesWithFindings)},
			{"Files Scanned", strconv.Itoa(s.FilesScanned)},
			{"Remediated", strconv.Itoa(s.Remediated)},
			{"Status", statusText(s)},
		},
	})
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(s.Critical)},
			{"🟠 High", strconv.Itoa(s.High)},
			{"🟡 Medium", strconv.Itoa(s.Medium)},
			{"🔵 Low", strconv.Itoa(s.Low)},
			{"⚪ Info", strconv.Itoa(s.Info)},
			{"**Total**", "**" + strconv.Itoa(s.Total()) + "**"},
		},
	})
	md.PlainText("")

	if s.Total() > 0 {
		w.writePieChart(md, s)
	}

	w.writeAlert(md, s)
}

// statusText returns the status text for the run.
func statusText(s CheckSummary) string {
	switch {
	case s.Cancelled:
		return "⚠️ Interrupted (partial results)"
	case s.Errors > 0:
		return "❌ Completed with " + strconv.Itoa(s.Errors) + " error(s)"
	default:
		return "✅ Complete"
	}
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s CheckSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)

	labels := map[model.Severity]string{
		model.SeverityCritical: "Critical",
		model.SeverityHigh:     "High",
		model.SeverityMedium:   "Medium",
		model.SeverityLow:      "Low",
		model.SeverityInfo:     "Info",
	}
	for _, sev := range severityOrder {
		if n := s.Count(sev); n > 0 {
			chart.LabelAndIntValue(labels[sev], uint64(n)) //nolint:gosec // n is positive
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s CheckSummary) {
	switch {
	case s.Critical > 0:
		md.Cautionf(
			"Planted backdoor files found! %d critical finding(s) require immediate attention.",
			s.Critical,
		)
	case s.High > 0:
		md.Warningf(
			"Hijacked configuration found. %d high severity finding(s) should be addressed.",
			s.High,
		)
	case s.Medium > 0:
		md.Importantf(
			"Suspicious script content found. %d file(s) need review.",
			s.Medium,
		)
	case s.Total() > 0:
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No compromise indicators detected.")
	}
	md.PlainText("")
}

// writeSite writes one site's findings grouped by severity.
func (w *MarkdownWriter) writeSite(md *markdown.Markdown, r *model.CheckReport) {
	md.H2("Site `" + r.Site + "`")
	md.PlainText("")

	if r.Summary.LogDir != "" {
		md.PlainText("Hit logs: `" + r.Summary.LogDir + "`")
		md.PlainText("")
	}

	if !r.HasFindings() {
		md.PlainText("No findings.")
		md.PlainText("")
	}

	headers := map[model.Severity]string{
		model.SeverityCritical: "🔴 Critical",
		model.SeverityHigh:     "🟠 High",
		model.SeverityMedium:   "🟡 Medium",
		model.SeverityLow:      "🔵 Low",
		model.SeverityInfo:     "⚪ Info",
	}
	for _, sev := range severityOrder {
		findings := findingsOfSeverity(r, sev)
		if len(findings) == 0 {
			continue
		}
		md.H3(headers[sev])
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}

	if len(r.Errors) > 0 {
		md.H3("Errors")
		md.PlainText("")
		md.BulletList(r.Errors...)
		md.PlainText("")
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{
			f.Rule,
			"`" + truncateString(f.Path, 80) + "`",
			dashIfEmpty(truncateString(f.Detail, 60)),
			dashIfEmpty(string(f.Action)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Rule", "Path", "Detail", "Action"},
		Rows:   rows,
	})
	md.PlainText("")

	// Remediation details are collapsed so the tables stay readable.
	for _, f := range findings {
		var lines []string
		if f.BackupPath != "" {
			lines = append(lines, "Backup: "+f.BackupPath)
		}
		if f.Digest != "" {
			lines = append(lines, "SHA3-256: "+f.Digest)
		}
		if f.Error != "" {
			lines = append(lines, "Error: "+f.Error)
		}
		if len(lines) > 0 {
			md.Details(f.Rule+" "+f.Path, strings.Join(lines, "\n"))
		}
	}
	md.PlainText("")
}

// WriteProtection outputs the protection results in Markdown format.
func (w *MarkdownWriter) WriteProtection(op model.Operation, results []model.SiteResult) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := SummarizeProtection(results)

	md.H1("safemac " + titleCase(string(op)) + " Report")
	md.PlainText("")

	rows := make([][]string, len(results))
	for i, r := range results {
		status := "✅"
		if !r.OK {
			status = "❌"
		}
		rows[i] = []string{
			"`" + r.Site + "`",
			status,
			strconv.Itoa(r.Entries),
			strconv.Itoa(r.Failures),
			dashIfEmpty(r.ErrorMessage),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Site", "Status", "Entries", "Failures", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Failed > 0 {
		md.Warningf("%d of %d site(s) failed to %s completely.", s.Failed, s.Sites, op)
	} else {
		md.Tip("Every site completed.")
	}
	md.PlainText("")

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by safemac*")
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
