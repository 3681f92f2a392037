package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/safemac-dev/safemac/internal/detect"
	"github.com/safemac-dev/safemac/internal/logsink"
	"github.com/safemac-dev/safemac/internal/model"
)

// Remediation controls whether steps may modify the site.
type Remediation struct {
	// Confirm is asked before every modification. Nil declines everything.
	Confirm detect.Confirmer

	// DryRun reports findings without asking or modifying anything.
	DryRun bool
}

// approve asks for permission. The returned action is what to record when
// permission is not granted.
func (r Remediation) approve(prompt string) (bool, model.Action) {
	if r.DryRun {
		return false, model.ActionNone
	}
	confirm := r.Confirm
	if confirm == nil {
		confirm = detect.Never
	}
	if !confirm(prompt) {
		return false, model.ActionDeclined
	}
	return true, model.ActionNone
}

// ExactFileStep reports planted files and offers to quarantine them.
type ExactFileStep struct {
	rules       []model.ExactFileSignature
	remediation Remediation
	logger      *slog.Logger
}

// NewExactFileStep creates an exact-file detection step.
func NewExactFileStep(rules []model.ExactFileSignature, remediation Remediation, logger *slog.Logger) *ExactFileStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExactFileStep{rules: rules, remediation: remediation, logger: logger}
}

// Name returns the step name.
func (s *ExactFileStep) Name() string {
	return "exact_file"
}

// Do executes the exact-file step.
func (s *ExactFileStep) Do(_ context.Context, report *model.CheckReport) error {
	for _, rule := range s.rules {
		for _, hit := range detect.DetectExactFile(report.Site, rule) {
			f := model.NewFinding(hit.Rule, model.KindExactFile, hit.Path)
			f.Detail = "known planted file"

			ok, action := s.remediation.approve(fmt.Sprintf("Quarantine %s?", hit.Path))
			f.Action = action
			if ok {
				target, err := detect.Quarantine(hit.Path)
				if err != nil {
					f.Action = model.ActionFailed
					f.Error = err.Error()
					s.logger.Warn("quarantine failed", "path", hit.Path, "error", err)
				} else {
					f.Action = model.ActionQuarantined
					f.BackupPath = target
					s.logger.Info("file quarantined", "path", hit.Path, "target", target)
				}
			}
			report.AddFinding(f)
		}
	}
	return nil
}

// HijackStep reports hijacked configuration files and offers to overwrite
// them with known-good content.
type HijackStep struct {
	rules       []model.ContentHijackSignature
	remediation Remediation
	logger      *slog.Logger
}

// NewHijackStep creates a content hijack detection step.
func NewHijackStep(rules []model.ContentHijackSignature, remediation Remediation, logger *slog.Logger) *HijackStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HijackStep{rules: rules, remediation: remediation, logger: logger}
}

// Name returns the step name.
func (s *HijackStep) Name() string {
	return "hijack"
}

// Do executes the hijack step. Unreadable files are recorded in the report
// and the remaining rules still run.
func (s *HijackStep) Do(_ context.Context, report *model.CheckReport) error {
	for _, rule := range s.rules {
		hit, err := detect.DetectHijack(report.Site, rule)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", rule.Name, err))
			s.logger.Warn("hijack check failed", "rule", rule.Name, "error", err)
			continue
		}
		if hit == nil {
			continue
		}

		f := model.NewFinding(hit.Rule, model.KindHijack, hit.Path)
		f.Detail = hit.Reason
		f.Digest = hit.Digest

		prompt := fmt.Sprintf("Overwrite %s with clean content? Installed plugins will be disabled.", hit.Path)
		ok, action := s.remediation.approve(prompt)
		f.Action = action
		if ok {
			if err := detect.ReplaceWithClean(hit, rule); err != nil {
				f.Action = model.ActionFailed
				f.Error = err.Error()
				s.logger.Warn("clean overwrite failed", "path", hit.Path, "error", err)
			} else {
				f.Action = model.ActionReplaced
				s.logger.Info("file replaced with clean content", "path", hit.Path, "backup", hit.BackupPath)
			}
			f.BackupPath = hit.BackupPath
		}
		report.AddFinding(f)
	}
	return nil
}

// PatternScanStep runs the pattern-frequency scan and writes hit logs.
type PatternScanStep struct {
	scanner *detect.PatternScanner
	sink    *logsink.Sink
}

// NewPatternScanStep creates a pattern scan step writing to sink.
func NewPatternScanStep(scanner *detect.PatternScanner, sink *logsink.Sink) *PatternScanStep {
	return &PatternScanStep{scanner: scanner, sink: sink}
}

// Name returns the step name.
func (s *PatternScanStep) Name() string {
	return "pattern_scan"
}

// Do executes the pattern scan step. A cancelled scan still records the
// files examined so far.
func (s *PatternScanStep) Do(ctx context.Context, report *model.CheckReport) error {
	result, err := s.scanner.Scan(ctx, report.Site, s.sink)
	report.Summary = result.Summary

	for _, fh := range result.Files {
		f := model.NewFinding("pattern", model.KindPattern, fh.Path)
		f.Count = fh.Total
		f.Patterns = nonZero(fh.Counts)
		f.Detail = describeCounts(f.Patterns)
		report.AddFinding(f)
	}
	for _, sh := range result.Scripts {
		f := model.NewFinding(detect.ExternalScriptLog, model.KindExternalScript, sh.Path)
		f.Count = len(sh.Sources)
		f.Detail = strings.Join(sh.Sources, " ")
		report.AddFinding(f)
	}
	report.Errors = append(report.Errors, result.Errors...)

	return err
}

func nonZero(counts []model.PatternCount) []model.PatternCount {
	out := make([]model.PatternCount, 0, len(counts))
	for _, c := range counts {
		if c.Count > 0 {
			out = append(out, c)
		}
	}
	return out
}

func describeCounts(counts []model.PatternCount) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s=%d", c.Pattern, c.Count)
	}
	return strings.Join(parts, ", ")
}

// DefaultPipelineConfig holds configuration for the default check pipeline.
type DefaultPipelineConfig struct {
	Remediation     Remediation
	ExternalScripts bool
	Logger          *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineConfirmer sets the confirmer asked before remediation.
func WithPipelineConfirmer(confirm detect.Confirmer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Remediation.Confirm = confirm
	}
}

// WithPipelineDryRun disables every remediation.
func WithPipelineDryRun(dryRun bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Remediation.DryRun = dryRun
	}
}

// WithPipelineExternalScripts toggles the external script check on templates.
func WithPipelineExternalScripts(enabled bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ExternalScripts = enabled
	}
}

// WithPipelineStepLogger sets the logger used by the steps.
func WithPipelineStepLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the standard check pipeline: exact-file, hijack,
// then pattern scan. It fails only when a pattern signature is invalid.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts step config options (WithPipelineConfirmer, etc).
func DefaultPipeline(rules model.RuleSet, sink *logsink.Sink, pipelineOpts []Option, configOpts ...DefaultPipelineOption) (*Pipeline, error) {
	cfg := &DefaultPipelineConfig{ExternalScripts: true}
	for _, opt := range configOpts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	scanner, err := detect.NewPatternScanner(rules.Patterns,
		detect.WithScannerLogger(cfg.Logger),
		detect.WithExternalScripts(cfg.ExternalScripts),
	)
	if err != nil {
		return nil, err
	}

	p := New(pipelineOpts...)
	p.AddSteps(
		NewExactFileStep(rules.ExactFiles, cfg.Remediation, cfg.Logger),
		NewHijackStep(rules.Hijacks, cfg.Remediation, cfg.Logger),
		NewPatternScanStep(scanner, sink),
	)
	return p, nil
}
