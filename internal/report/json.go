package report

import (
	"encoding/json"
	"io"

	"github.com/safemac-dev/safemac/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is written into every document when non-empty.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the safemac version in the output documents.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// CheckDocument is the JSON document of one check run.
//
// Design decision: We wrap the reports rather than emitting a bare array
// because this allows us to add output-specific fields (version, summary)
// without polluting the core data structures.
type CheckDocument struct {
	Version string               `json:"version,omitempty"`
	RunID   string               `json:"run_id,omitempty"`
	Summary CheckSummary         `json:"summary"`
	Reports []*model.CheckReport `json:"reports"`
}

// ProtectionDocument is the JSON document of one lock or unlock run.
type ProtectionDocument struct {
	Version   string             `json:"version,omitempty"`
	Operation model.Operation    `json:"operation"`
	Summary   ProtectionSummary  `json:"summary"`
	Results   []protectionResult `json:"results"`
}

// protectionResult adds the elapsed time in milliseconds to a SiteResult.
type protectionResult struct {
	model.SiteResult
	ElapsedMS int64 `json:"elapsed_ms"`
}

// WriteChecks outputs the check reports as a CheckDocument.
func (w *JSONWriter) WriteChecks(reports []*model.CheckReport) (int, error) {
	doc := CheckDocument{
		Version: w.version,
		Summary: Summarize(reports),
		Reports: make([]*model.CheckReport, 0, len(reports)),
	}
	for _, r := range reports {
		if r == nil {
			continue
		}
		if doc.RunID == "" {
			doc.RunID = r.RunID
		}
		doc.Reports = append(doc.Reports, r)
	}
	return w.writeJSON(doc)
}

// WriteProtection outputs the protection results as a ProtectionDocument.
func (w *JSONWriter) WriteProtection(op model.Operation, results []model.SiteResult) (int, error) {
	doc := ProtectionDocument{
		Version:   w.version,
		Operation: op,
		Summary:   SummarizeProtection(results),
		Results:   make([]protectionResult, len(results)),
	}
	for i, r := range results {
		doc.Results[i] = protectionResult{
			SiteResult: r,
			ElapsedMS:  r.Elapsed.Milliseconds(),
		}
	}
	return w.writeJSON(doc)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
