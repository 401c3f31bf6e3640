package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/wikimirror/internal/auth"
	"github.com/nao1215/wikimirror/internal/model"
)

// Job carries one page through the pipeline. The crawler seeds it with the
// tree node, the session snapshot, and the fetched body; each step fills in
// its slice of the outcome.
type Job struct {
	// Node is the tree node being mirrored.
	Node model.TreeNode

	// Snapshot is the authenticated session, used by extraction to
	// download attachments.
	Snapshot auth.Snapshot

	// Body is the decoded page HTML as fetched.
	Body string

	// OutputPath is the page's relative output directory under the mirror
	// root. Empty for a page mirrored without a navigation tree; the
	// exporter then derives a directory from the title.
	OutputPath string

	// Page is the parsed content. Set by extraction.
	Page model.PageContent

	// Attachments are the processed attachments. Set by extraction.
	Attachments []model.Attachment

	// Markdown is the optimized document body. Set by optimization.
	Markdown string

	// Result accumulates the per-page outcome. The crawler pre-fills the
	// fetch bookkeeping (attempts, fingerprint); steps add theirs.
	Result model.PageResult
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// job from previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration and collaborators
// 2. It provides a Name() method for logging and debugging
// 3. Tests can run a single stage against a handcrafted Job
type Step interface {
	// Do executes the pipeline step. An error fails this page;
	// ErrPageNotReady instead asks the crawler to fetch it again.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	// Set default logger if not provided
	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence. It stops on the first
// error: a failed stage leaves nothing meaningful for later stages, and
// the retry decision belongs to the crawler, not to the pipeline.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps should handle their own timeouts. This allows
// graceful cleanup between steps while still respecting cancellation.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		// Check for cancellation before starting each step
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline canceled",
				"step", step.Name(),
				"page", job.Node.PageID,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
			// Continue with execution
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"page", job.Node.PageID,
			"title", job.Node.Title,
		)

		if err := step.Do(ctx, job); err != nil {
			// Waiting on the render queue is normal flow, not a failure.
			if errors.Is(err, ErrPageNotReady) {
				p.logger.Debug("page not rendered yet",
					"step", step.Name(),
					"page", job.Node.PageID,
				)
				return err
			}
			p.logger.Error("step failed",
				"step", step.Name(),
				"page", job.Node.PageID,
				"error", err,
			)
			return err
		}
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
