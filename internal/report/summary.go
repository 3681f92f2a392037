package report

import (
	"github.com/safemac-dev/safemac/internal/model"
)

// CheckSummary aggregates the reports of one check run.
type CheckSummary struct {
	Sites             int  `json:"sites"`
	SitesWithFindings int  `json:"sites_with_findings"`
	FilesScanned      int  `json:"files_scanned"`
	Critical          int  `json:"critical"`
	High              int  `json:"high"`
	Medium            int  `json:"medium"`
	Low               int  `json:"low"`
	Info              int  `json:"info"`
	Remediated        int  `json:"remediated"`
	Errors            int  `json:"errors"`
	Cancelled         bool `json:"cancelled,omitempty"`
}

// Summarize computes the CheckSummary of reports. Nil reports are skipped.
func Summarize(reports []*model.CheckReport) CheckSummary {
	var s CheckSummary
	for _, r := range reports {
		if r == nil {
			continue
		}
		s.Sites++
		if r.HasFindings() {
			s.SitesWithFindings++
		}
		s.FilesScanned += r.Summary.FilesScanned
		s.Errors += len(r.Errors)
		if r.Cancelled {
			s.Cancelled = true
		}
		for _, f := range r.Findings {
			switch f.Severity {
			case model.SeverityCritical:
				s.Critical++
			case model.SeverityHigh:
				s.High++
			case model.SeverityMedium:
				s.Medium++
			case model.SeverityLow:
				s.Low++
			default:
				s.Info++
			}
			if f.Action == model.ActionQuarantined || f.Action == model.ActionReplaced {
				s.Remediated++
			}
		}
	}
	return s
}

// Total returns the number of findings across every severity.
func (s CheckSummary) Total() int {
	return s.Critical + s.High + s.Medium + s.Low + s.Info
}

// Count returns the number of findings at one severity.
func (s CheckSummary) Count(sev model.Severity) int {
	switch sev {
	case model.SeverityCritical:
		return s.Critical
	case model.SeverityHigh:
		return s.High
	case model.SeverityMedium:
		return s.Medium
	case model.SeverityLow:
		return s.Low
	default:
		return s.Info
	}
}

// ProtectionSummary aggregates the results of one lock or unlock run.
type ProtectionSummary struct {
	Sites    int `json:"sites"`
	OK       int `json:"ok"`
	Failed   int `json:"failed"`
	Entries  int `json:"entries"`
	Failures int `json:"failures"`
}

// SummarizeProtection computes the ProtectionSummary of results.
func SummarizeProtection(results []model.SiteResult) ProtectionSummary {
	var s ProtectionSummary
	for _, r := range results {
		s.Sites++
		if r.OK {
			s.OK++
		} else {
			s.Failed++
		}
		s.Entries += r.Entries
		s.Failures += r.Failures
	}
	return s
}

// findingsOfSeverity returns the findings of r at sev in detection order.
func findingsOfSeverity(r *model.CheckReport, sev model.Severity) []model.Finding {
	out := make([]model.Finding, 0)
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}
