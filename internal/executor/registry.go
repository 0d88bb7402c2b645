// Package executor holds the pluggable implementations behind each failover
// step. Compute steps run against the Nomad clusters directly; everything
// touching systems outside the orchestrator's reach (database promotion,
// DNS, replication sync) is delegated to an automation webhook.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// StepFunc executes one named step for the given direction.
type StepFunc func(ctx context.Context, direction model.Direction) error

// FallbackFunc handles steps with no registered handler; it additionally
// receives the step name it was invoked for.
type FallbackFunc func(ctx context.Context, step string, direction model.Direction) error

// Registry routes step names to their handlers, with an optional fallback
// for steps that have no local implementation.
type Registry struct {
	handlers map[string]StepFunc
	fallback FallbackFunc
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]StepFunc),
		logger:   logger,
	}
}

// Register binds a handler to a step name, replacing any previous binding.
func (r *Registry) Register(step string, fn StepFunc) {
	r.handlers[step] = fn
}

// SetFallback installs the handler used for steps with no registered one.
func (r *Registry) SetFallback(fn FallbackFunc) {
	r.fallback = fn
}

// Execute runs the handler for the named step.
func (r *Registry) Execute(ctx context.Context, step string, direction model.Direction) error {
	r.logger.Debug("executing step",
		slog.String("step", step),
		slog.String("direction", string(direction)),
	)

	if fn, ok := r.handlers[step]; ok {
		return fn(ctx, direction)
	}
	if r.fallback == nil {
		return fmt.Errorf("%w: %s", model.ErrUnknownStep, step)
	}
	return r.fallback(ctx, step, direction)
}
