// Package checker runs an ordered checklist of named checks, one at a time, and keeps a
// pass/fail tally of their assertions.
//
// Checks run strictly in registration order and never concurrently: a later check may
// read state an earlier one captured. A failing check, whether its operation errors,
// panics, times out or its validator rejects the result, never stops the run.
package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nimburion/docprobe/pkg/observability/logger"
	"github.com/nimburion/docprobe/pkg/observability/metrics"
	"github.com/nimburion/docprobe/pkg/observability/tracing"
	"github.com/nimburion/docprobe/pkg/resilience"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("checklist already run")
	// ErrNilOperation is recorded for an entry registered without an operation.
	ErrNilOperation = errors.New("check has no operation")
)

type entry struct {
	name      string
	operation Operation
	validator Validator
}

// Checker holds the checklist and its tally. It is not safe for concurrent use.
type Checker struct {
	entries  []entry
	log      logger.Logger
	out      io.Writer
	timeout  time.Duration
	metrics  *metrics.CheckCollectors
	tracer   trace.Tracer
	expected int
	now      func() time.Time

	started bool
	report  Report
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger used for per-check diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(c *Checker) {
		if log != nil {
			c.log = log
		}
	}
}

// WithOutput prints one status line per check to w as the run progresses.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.out = w
	}
}

// WithCheckTimeout bounds every operation. Exceeding it fails the check with
// FailureTimedOut. Zero disables the bound.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.timeout = d
	}
}

// WithMetrics records every check into the registry's check collectors.
func WithMetrics(registry *metrics.Registry) Option {
	return func(c *Checker) {
		if registry != nil {
			c.metrics = registry.Checks()
		}
	}
}

// WithTracer wraps every check in a span from tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Checker) {
		c.tracer = tracer
	}
}

// WithExpected sets the number of assertions the checklist is expected to produce.
// It only affects reporting.
func WithExpected(n int) Option {
	return func(c *Checker) {
		c.expected = n
	}
}

// New creates an empty checklist.
func New(opts ...Option) *Checker {
	c := &Checker{
		log: logger.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.report.Expected = c.expected
	return c
}

// Add appends a check. A nil validator accepts any successful result.
// Checks added once Run has started are ignored.
func (c *Checker) Add(name string, operation Operation, validator Validator) {
	if c.started {
		c.log.Warn("check registered after run started; ignoring", "check", name)
		return
	}
	c.entries = append(c.entries, entry{name: name, operation: operation, validator: validator})
}

// AddFunc is Add with a plain validator function.
func (c *Checker) AddFunc(name string, operation Operation, validate func(result any) Outcome) {
	var v Validator
	if validate != nil {
		v = ValidatorFunc(validate)
	}
	c.Add(name, operation, v)
}

// Register adds a check whose operation and validator share the result type T.
func Register[T any](c *Checker, name string, operation func(context.Context) (T, error), validate func(T) Outcome) {
	var op Operation
	if operation != nil {
		op = func(ctx context.Context) (any, error) {
			return operation(ctx)
		}
	}
	var v Validator
	if validate != nil {
		v = ValidatorFunc(func(result any) Outcome {
			typed, _ := result.(T)
			return validate(typed)
		})
	}
	c.Add(name, op, v)
}

// Len returns the number of registered checks.
func (c *Checker) Len() int {
	return len(c.entries)
}

// Tally returns the counters recorded so far.
func (c *Checker) Tally() Tally {
	return c.report.Tally
}

// Report returns the results recorded so far.
func (c *Checker) Report() Report {
	r := c.report
	r.Entries = append([]EntryResult(nil), c.report.Entries...)
	return r
}

// Run executes every check in registration order and returns once all were attempted.
// The returned error is non-nil only when the checklist was already run; failed checks
// are reported through the Report.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	if c.started {
		return c.Report(), ErrAlreadyRun
	}
	c.started = true
	log := c.log.WithContext(ctx)
	start := c.now()

	log.Info("checklist started", "checks", len(c.entries))
	for i, e := range c.entries {
		res := c.runEntry(ctx, log, i, e)
		c.report.Entries = append(c.report.Entries, res)
		c.report.Passed += res.Passed
		c.report.Failed += res.Failed
	}

	c.report.Duration = c.now().Sub(start)
	c.metrics.MarkRunFinished(c.now())
	log.Info("checklist finished",
		"passed", c.report.Passed,
		"failed", c.report.Failed,
		"duration", c.report.Duration,
	)
	return c.Report(), nil
}

func (c *Checker) runEntry(ctx context.Context, log logger.Logger, index int, e entry) EntryResult {
	name := e.name
	if name == "" {
		name = fmt.Sprintf("check #%d", index+1)
	}
	res := EntryResult{Index: index, Name: name}
	log = log.With("check", name, "index", index)

	ctx, span := tracing.StartCheckSpan(ctx, c.tracer, index, name)
	defer span.End()

	started := c.now()
	result, err := c.invoke(ctx, e.operation)
	res.Duration = c.now().Sub(started)

	if err != nil {
		res.Failed = 1
		res.Err = err
		res.Kind = FailureOperation
		if resilience.IsTimeout(err) {
			res.Kind = FailureTimedOut
		}
		tracing.RecordError(span, err)
		log.Error("check operation failed", "kind", string(res.Kind), "error", err)
	} else {
		res.Result = result
		outcome, verr := evaluate(e.validator, result)
		if verr != nil {
			res.Failed = 1
			res.Err = verr
			tracing.RecordError(span, verr)
		} else {
			res.Outcome = outcome
			res.Passed, res.Failed = outcome.Counts()
		}
		if res.Failed > 0 {
			res.Kind = FailureAssertion
			log.Error("check failed",
				"result", result,
				"passed", res.Passed,
				"failed", res.Failed,
				"error", res.Err,
			)
		} else {
			log.Info("check passed", "result", result, "assertions", res.Passed)
		}
	}

	tracing.RecordCheckOutcome(span, res.Passed, res.Failed)
	c.metrics.ObserveCheck(name, res.Passed, res.Failed, string(res.Kind), res.Duration)
	if c.out != nil {
		printEntry(c.out, res)
	}
	return res
}

func (c *Checker) invoke(ctx context.Context, op Operation) (any, error) {
	if op == nil {
		return nil, ErrNilOperation
	}
	return resilience.Call(ctx, c.timeout, func(ctx context.Context) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("operation panicked: %v", r)
			}
		}()
		return op(ctx)
	})
}

func evaluate(v Validator, result any) (outcome Outcome, err error) {
	if v == nil {
		return Single(true), nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panicked: %v", r)
		}
	}()
	return v.Evaluate(result), nil
}
