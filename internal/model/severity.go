package model

// Severity represents how strongly a finding indicates a compromise.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. The String() method provides
// human-readable output when needed.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct security impact.
	SeverityInfo Severity = iota

	// SeverityLow indicates indicators that are common in legitimate code too.
	// Example: a template loading a script from another host.
	SeverityLow

	// SeverityMedium indicates suspicious script content that needs a human look.
	// Example: a JavaScript file matching the injected-script patterns.
	SeverityMedium

	// SeverityHigh indicates a configuration file that was very likely tampered with.
	// Example: a hijacked addons.php.
	SeverityHigh

	// SeverityCritical indicates a known planted file.
	// Example: application/extra/active.php.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// FindingInfo contains metadata about a finding kind including severity,
// impact description, and remediation recommendation.
type FindingInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// findingInfoMapping maps finding kinds to their metadata.
// This centralized mapping keeps text and JSON reports consistent.
var findingInfoMapping = map[FindingKind]FindingInfo{
	KindExactFile: {
		Severity:       SeverityCritical,
		Impact:         "A file known to be planted by MacCMS malware exists. It acts as a backdoor entry point.",
		Recommendation: "Quarantine the file, then lock the site so it cannot be planted again.",
	},
	KindHijack: {
		Severity:       SeverityHigh,
		Impact:         "The addons configuration was replaced. The replacement loads remote code on every request.",
		Recommendation: "Overwrite it with the clean template. Installed plugins will be disabled and must be re-enabled.",
	},
	KindPattern: {
		Severity:       SeverityMedium,
		Impact:         "Script content matches patterns used by injected redirect and ad code.",
		Recommendation: "Review the listed files against a clean copy of the theme or release.",
	},
	KindExternalScript: {
		Severity:       SeverityLow,
		Impact:         "A template loads JavaScript from another host. Injected templates commonly do this.",
		Recommendation: "Confirm the host is expected; otherwise restore the template from a clean copy.",
	},
}

// GetSeverity returns the severity level for a finding kind.
// Unknown kinds are reported as informational.
func GetSeverity(kind FindingKind) Severity {
	if info, ok := findingInfoMapping[kind]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetFindingInfo returns the complete metadata for a finding kind.
func GetFindingInfo(kind FindingKind) FindingInfo {
	if info, ok := findingInfoMapping[kind]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityInfo,
		Impact:         "Informational finding.",
		Recommendation: "Review this finding for potential security implications.",
	}
}
