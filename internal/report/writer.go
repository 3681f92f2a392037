package report

import (
	"io"

	"github.com/safemac-dev/safemac/internal/model"
)

// Writer defines the interface for report output.
// Implementations write check and protection results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files or stdout with the same API.
type Writer interface {
	// WriteChecks outputs the reports of one check run.
	// Returns the number of bytes written and any error encountered.
	WriteChecks(reports []*model.CheckReport) (int, error)

	// WriteProtection outputs the per-site results of one lock or unlock run.
	WriteProtection(op model.Operation, results []model.SiteResult) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteChecks outputs the reports to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteChecks(reports []*model.CheckReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteChecks(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteProtection outputs the protection results to all configured Writers.
func (m *MultiWriter) WriteProtection(op model.Operation, results []model.SiteResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteProtection(op, results)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// severityOrder lists severities from most to least severe.
var severityOrder = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
	model.SeverityInfo,
}
