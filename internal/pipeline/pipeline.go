package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/safemac-dev/safemac/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the report built so far.
type Step interface {
	// Do executes the step against report.Site.
	// Non-critical problems are recorded in the report and nil is returned.
	Do(ctx context.Context, report *model.CheckReport) error

	// Name returns the step's name for logging and the report.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors
// are recorded in the report, but subsequent steps still execute.
//
// Design decision: a hijack check that cannot read addons.php says nothing
// about planted JS, so the check command always enables this. The default
// stays stop-on-error for callers that compose their own pipelines.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence against report.Site.
//
// Cancellation is checked before each step; a cancelled context marks the
// report as cancelled and returns ctx.Err(). Work already done stays done.
//
// Returns the first step error if continueOnError is false, or nil if all
// steps ran (step errors are recorded in report.Errors).
func (p *Pipeline) Execute(ctx context.Context, report *model.CheckReport) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			report.Cancelled = true
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"site", report.Site,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"site", report.Site,
				"error", err,
			)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", step.Name(), err))

			if ctx.Err() != nil {
				report.Cancelled = true
				report.PerformedSteps = append(report.PerformedSteps, step.Name())
				return ctx.Err()
			}
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"site", report.Site,
			)
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
