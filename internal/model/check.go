package model

import (
	"time"
)

// FindingKind identifies which detector produced a finding.
type FindingKind string

const (
	// KindExactFile is produced by exact-file signatures.
	KindExactFile FindingKind = "exact_file"
	// KindHijack is produced by content hijack signatures.
	KindHijack FindingKind = "hijack"
	// KindPattern is produced by the pattern-frequency scan.
	KindPattern FindingKind = "pattern"
	// KindExternalScript is produced by the template script-source check.
	KindExternalScript FindingKind = "external_script"
)

// Action records what was done about a finding.
type Action string

const (
	// ActionNone means the finding was reported only.
	ActionNone Action = ""
	// ActionQuarantined means the file was renamed to an inert extension.
	ActionQuarantined Action = "quarantined"
	// ActionReplaced means the file was backed up and overwritten with clean content.
	ActionReplaced Action = "replaced"
	// ActionDeclined means the operator declined the remediation.
	ActionDeclined Action = "declined"
	// ActionFailed means the remediation was attempted and failed.
	ActionFailed Action = "failed"
)

// Finding is a single detection result.
type Finding struct {
	// Rule is the name of the signature that matched.
	Rule string `json:"rule"`

	// Kind identifies the detector.
	Kind FindingKind `json:"kind"`

	// Severity is derived from Kind.
	Severity Severity `json:"-"`

	// SeverityText is the string form of Severity for JSON output.
	SeverityText string `json:"severity"`

	// Path is the absolute path of the offending file.
	Path string `json:"path"`

	// Count is the number of matches (pattern findings) or 1.
	Count int `json:"count"`

	// Patterns holds per-pattern counts for pattern findings, in rule order.
	Patterns []PatternCount `json:"patterns,omitempty"`

	// Detail is a short human-readable explanation.
	Detail string `json:"detail,omitempty"`

	// Action is the remediation outcome.
	Action Action `json:"action,omitempty"`

	// BackupPath is where the original content now lives after remediation.
	BackupPath string `json:"backup_path,omitempty"`

	// Digest is the SHA3-256 of the original content, hex encoded.
	Digest string `json:"digest,omitempty"`

	// Error is the remediation error, if any.
	Error string `json:"error,omitempty"`
}

// PatternCount is the number of matches of one pattern in one file.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// NewFinding creates a Finding with severity filled in from its kind.
func NewFinding(rule string, kind FindingKind, path string) Finding {
	sev := GetSeverity(kind)
	return Finding{
		Rule:         rule,
		Kind:         kind,
		Severity:     sev,
		SeverityText: sev.String(),
		Path:         path,
		Count:        1,
	}
}

// ScanSummary summarizes a pattern-frequency scan of one site.
type ScanSummary struct {
	// FilesScanned is the number of files examined.
	FilesScanned int `json:"files_scanned"`

	// SuspiciousFiles is the number of files with at least one match.
	SuspiciousFiles int `json:"suspicious_files"`

	// LogDir is the per-site log directory of this run.
	LogDir string `json:"log_dir"`

	// Artifacts lists the log files kept after finalization.
	Artifacts []string `json:"artifacts,omitempty"`
}

// CheckReport is the result of running every detector against one site.
type CheckReport struct {
	// RunID identifies the check run this report belongs to.
	RunID string `json:"run_id"`

	// Site is the checked site root.
	Site string `json:"site"`

	// StartedAt and FinishedAt bound the check.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Findings in detection order.
	Findings []Finding `json:"findings,omitempty"`

	// Summary of the pattern scan.
	Summary ScanSummary `json:"summary"`

	// PerformedSteps lists the detector steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Errors collects non-fatal step errors.
	Errors []string `json:"errors,omitempty"`

	// Cancelled is true if the check was interrupted.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewCheckReport creates an empty report for a site.
func NewCheckReport(runID, site string) *CheckReport {
	return &CheckReport{
		RunID:     runID,
		Site:      site,
		StartedAt: time.Now(),
		Findings:  make([]Finding, 0),
	}
}

// AddFinding appends a finding.
func (r *CheckReport) AddFinding(f Finding) {
	r.Findings = append(r.Findings, f)
}

// HasFindings reports whether anything was detected.
func (r *CheckReport) HasFindings() bool {
	return len(r.Findings) > 0
}

// CountBySeverity returns the number of findings at the given severity.
func (r *CheckReport) CountBySeverity(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// FindingsOfKind returns the findings produced by one detector.
func (r *CheckReport) FindingsOfKind(kind FindingKind) []Finding {
	out := make([]Finding, 0)
	for _, f := range r.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}
