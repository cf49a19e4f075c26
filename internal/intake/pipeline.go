// Package intake runs a public registration through its ordered side
// effects: organizer notification, store insert and legacy roster append.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/domain/settings"
	"github.com/Togather-Foundation/registration/internal/email"
	"github.com/Togather-Foundation/registration/internal/metrics"
	"github.com/Togather-Foundation/registration/internal/telemetry"
)

const tracerName = "github.com/Togather-Foundation/registration/internal/intake"

// ErrRegistrationClosed is returned while the registrations-open flag is off.
var ErrRegistrationClosed = errors.New("registrations are closed")

// Policy declares what a step failure means for the whole submission.
type Policy int

const (
	// Mandatory failures stop the pipeline and fail the submission.
	Mandatory Policy = iota
	// BestEffort failures are recorded and the pipeline continues.
	BestEffort
)

func (p Policy) String() string {
	if p == Mandatory {
		return "mandatory"
	}
	return "best_effort"
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Step names.
const (
	StepNotify = "notify"
	StepStore  = "store"
	StepRoster = "roster"
)

type StepResult struct {
	Name   string `json:"name"`
	Policy Policy `json:"policy"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Result summarizes one submission. Registration is nil unless the store
// step succeeded.
type Result struct {
	Input                   registrations.Input
	Registration            *registrations.Registration
	Steps                   []StepResult
	ParticipantEmailSkipped bool
}

// Step reports the outcome of the named step.
func (r Result) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// StepError is returned when a mandatory step fails.
type StepError struct {
	Step   string
	Err    error
	Result Result
}

func (e *StepError) Error() string {
	return fmt.Sprintf("intake step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ConfigurationError is the cause of a StepError when a mandatory step has
// no configured backend.
type ConfigurationError struct {
	Step string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s backend is not configured", e.Step)
}

// Notifier delivers the organizer and participant emails. email.Service and
// relayclient.Client satisfy it.
type Notifier interface {
	SendRegistration(ctx context.Context, p email.Participant) (email.SendResult, error)
}

// Store persists a registration. registrations.Service satisfies it.
type Store interface {
	Create(ctx context.Context, in registrations.Input) (*registrations.Registration, error)
}

// RosterAppender adds a name to the legacy roster file. roster.Appender and
// relayclient.Client satisfy it.
type RosterAppender interface {
	Append(ctx context.Context, name string) error
}

// FlagReader reads the registrations-open flag. settings.Service satisfies it.
type FlagReader interface {
	Get(ctx context.Context, key string) (bool, error)
}

// Step is one side effect of a submission. Run returns errSkipped when its
// backend is not configured: best-effort steps are then skipped and
// mandatory steps fail with *ConfigurationError.
type Step struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context, state *Result) error
}

var errSkipped = errors.New("step skipped")

// Pipeline validates a submission and runs its steps in order.
type Pipeline struct {
	flags  FlagReader
	steps  []Step
	logger zerolog.Logger
}

// Dependencies wires the default steps. Store and Roster may be nil, in which
// case the matching step is skipped. A nil or unconfigured Notifier fails
// every submission.
type Dependencies struct {
	Flags    FlagReader
	Notifier Notifier
	Store    Store
	Roster   RosterAppender
}

// New builds the standard pipeline: notify (mandatory), then store and
// roster (best effort).
func New(deps Dependencies, logger zerolog.Logger) *Pipeline {
	return NewWithSteps(deps.Flags, []Step{
		{Name: StepNotify, Policy: Mandatory, Run: notifyStep(deps.Notifier)},
		{Name: StepStore, Policy: BestEffort, Run: storeStep(deps.Store)},
		{Name: StepRoster, Policy: BestEffort, Run: rosterStep(deps.Roster)},
	}, logger)
}

func NewWithSteps(flags FlagReader, steps []Step, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		flags:  flags,
		steps:  steps,
		logger: logger.With().Str("component", "intake").Logger(),
	}
}

// Submit validates in and runs every step. Closed registrations and invalid
// input are rejected before any step runs. A mandatory failure is returned
// as *StepError and later steps do not run.
func (p *Pipeline) Submit(ctx context.Context, in registrations.Input) (Result, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "intake.Submit")
	defer span.End()

	start := time.Now()
	defer func() { metrics.PipelineDuration.Observe(time.Since(start).Seconds()) }()

	if p.flags != nil {
		open, err := p.flags.Get(ctx, settings.RegistrationsOpen)
		if err != nil {
			return Result{}, fmt.Errorf("read %s: %w", settings.RegistrationsOpen, err)
		}
		if !open {
			span.SetStatus(codes.Error, "closed")
			return Result{}, ErrRegistrationClosed
		}
	}

	in = registrations.Normalize(in)
	if err := registrations.Validate(in); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return Result{}, err
	}

	result := Result{Input: in, Steps: make([]StepResult, 0, len(p.steps))}
	for _, step := range p.steps {
		sr, err := p.run(ctx, step, &result)
		result.Steps = append(result.Steps, sr)
		if err != nil && step.Policy == Mandatory {
			span.SetStatus(codes.Error, sr.Error)
			return result, &StepError{Step: step.Name, Err: err, Result: result}
		}
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, step Step, state *Result) (StepResult, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "intake.step."+step.Name)
	span.SetAttributes(
		attribute.String("intake.step", step.Name),
		attribute.String("intake.policy", step.Policy.String()),
	)
	defer span.End()

	sr := StepResult{Name: step.Name, Policy: step.Policy}
	err := step.Run(ctx, state)
	if errors.Is(err, errSkipped) && step.Policy == Mandatory {
		err = &ConfigurationError{Step: step.Name}
	}
	switch {
	case errors.Is(err, errSkipped):
		err = nil
		sr.Status = StatusSkipped
		p.logger.Debug().Str("step", step.Name).Msg("step not configured, skipped")
	case err != nil:
		sr.Status = StatusFailed
		sr.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		event := p.logger.Warn()
		if step.Policy == Mandatory {
			event = p.logger.Error()
		}
		event.Err(err).Str("step", step.Name).Str("policy", step.Policy.String()).
			Str("participant", state.Input.Name).Msg("intake step failed")
	default:
		sr.Status = StatusSucceeded
	}
	span.SetAttributes(attribute.String("intake.status", string(sr.Status)))
	metrics.PipelineSteps.WithLabelValues(step.Name, string(sr.Status)).Inc()
	return sr, err
}
