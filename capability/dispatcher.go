package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/internal/util"
	"github.com/famulus-ai/famulus/logging"
)

// Options holds dependency + configuration overrides passed to
// NewDispatcher().
type Options struct {
	// Logger receives structured diagnostics.
	Logger logging.Logger
}

// DispatchLogger is implemented by loggers that record action dispatch
// outcomes. *logging.RuntimeLogger satisfies it; plain loggers fall back to
// generic structured lines.
type DispatchLogger interface {
	LogActionDispatch(requested, resolved string, dur time.Duration, err error)
}

// Dispatcher resolves and runs capabilities against a registry. Public
// methods are safe for concurrent use once registration is finished.
type Dispatcher struct {
	registry *Registry
	logger   logging.Logger
}

// NewDispatcher constructs a Dispatcher with optional overrides.
func NewDispatcher(registry *Registry, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Dispatcher{registry: registry, logger: opts.Logger}
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// ProcessAction resolves the action named by the response and runs its
// handler. A response naming no action, or naming one that resolves to
// nothing, is logged and skipped; at most one action executes per response.
func (d *Dispatcher) ProcessAction(ctx context.Context, rt core.Runtime, message, response *core.Memory, state *core.State, callback core.HandlerCallback) error {
	requested := response.Content.Action
	if requested == "" {
		d.logger.Debug("Response names no action, skipping dispatch")
		return nil
	}

	start := time.Now()
	action, ok := d.registry.ResolveAction(requested)
	if !ok {
		d.logDispatch(requested, "", time.Since(start), nil)
		return nil
	}
	if action.Handler == nil {
		d.logDispatch(requested, action.Name, time.Since(start), nil)
		return nil
	}

	err := action.Handler(ctx, rt, message, state, nil, callback)
	d.logDispatch(requested, action.Name, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("action %s: %w", action.Name, err)
	}
	return nil
}

func (d *Dispatcher) logDispatch(requested, resolved string, dur time.Duration, err error) {
	if dl, ok := d.logger.(DispatchLogger); ok {
		dl.LogActionDispatch(requested, resolved, dur, err)
		return
	}
	switch {
	case err != nil:
		d.logger.Error("Action dispatch failed",
			"requested_action", requested, "resolved_action", resolved, "duration", dur, "error", err)
	case resolved == "":
		d.logger.Warn("Action dispatch found no match", "requested_action", requested)
	default:
		d.logger.Debug("Action dispatch completed",
			"requested_action", requested, "resolved_action", resolved, "duration", dur)
	}
}

// ValidActions runs every registered action's validation predicate
// concurrently and returns the passing subset in registration order. A
// predicate error aborts the whole call.
func (d *Dispatcher) ValidActions(ctx context.Context, rt core.Runtime, message *core.Memory, state *core.State) ([]core.Action, error) {
	actions := d.registry.Actions()
	passed := make([]bool, len(actions))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range actions {
		if a.Validate == nil {
			passed[i] = true
			continue
		}
		g.Go(func() error {
			ok, err := a.Validate(gctx, rt, message, state)
			if err != nil {
				return fmt.Errorf("validate action %s: %w", a.Name, err)
			}
			passed[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var valid []core.Action
	for i, a := range actions {
		if passed[i] {
			valid = append(valid, a)
		}
	}
	return valid, nil
}

// ValidEvaluators runs every registered evaluator's validation predicate
// concurrently and returns the passing subset in registration order.
// AlwaysRun evaluators pass without consulting their predicate.
func (d *Dispatcher) ValidEvaluators(ctx context.Context, rt core.Runtime, message *core.Memory, state *core.State) ([]core.Evaluator, error) {
	evaluators := d.registry.Evaluators()
	passed := make([]bool, len(evaluators))

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range evaluators {
		if e.AlwaysRun || e.Validate == nil {
			passed[i] = true
			continue
		}
		g.Go(func() error {
			ok, err := e.Validate(gctx, rt, message, state)
			if err != nil {
				return fmt.Errorf("validate evaluator %s: %w", e.Name, err)
			}
			passed[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var valid []core.Evaluator
	for i, e := range evaluators {
		if passed[i] {
			valid = append(valid, e)
		}
	}
	return valid, nil
}

// evaluationTemplate asks the model to rank which eligible evaluators should
// run for the conversation at hand.
const evaluationTemplate = `TASK: Based on the conversation and the descriptions below, decide which evaluators should run.

Evaluators:
{{.evaluators}}

{{.evaluatorExamples}}

Recent conversation:
{{.recentMessages}}

Respond with a JSON array containing the names of evaluators that should run, chosen from: {{.evaluatorNames}}. Respond with [] if none apply.`

// Evaluate selects and runs the evaluators for a finished exchange.
// Validation gates eligibility and the model's ranking gates execution: an
// evaluator's handler runs only when both agree, except AlwaysRun evaluators,
// which skip the ranking. Returns the names of the evaluators that ran.
func (d *Dispatcher) Evaluate(ctx context.Context, rt core.Runtime, message *core.Memory, state *core.State, callback core.HandlerCallback) ([]string, error) {
	eligible, err := d.ValidEvaluators(ctx, rt, message, state)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	chosen := make(map[string]bool, len(eligible))
	needRanking := false
	for _, e := range eligible {
		if e.AlwaysRun {
			chosen[e.Name] = true
		} else {
			needRanking = true
		}
	}

	if needRanking {
		values := map[string]any{
			"evaluators":        FormatEvaluators(eligible),
			"evaluatorNames":    FormatEvaluatorNames(eligible),
			"evaluatorExamples": FormatEvaluatorExamples(eligible),
			"recentMessages":    "",
		}
		if state != nil {
			values["recentMessages"] = state.RecentMessages
		}
		prompt, err := util.RenderTemplate(evaluationTemplate, values)
		if err != nil {
			return nil, fmt.Errorf("render evaluation prompt: %w", err)
		}

		ranked, err := rt.Completion().CompleteStringArray(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("rank evaluators: %w", err)
		}
		for _, name := range ranked {
			for _, e := range eligible {
				if e.Name == name {
					chosen[name] = true
				}
			}
		}
	}

	var ran []string
	for _, e := range eligible {
		if !chosen[e.Name] || e.Handler == nil {
			continue
		}
		if err := e.Handler(ctx, rt, message, state, nil, callback); err != nil {
			return ran, fmt.Errorf("evaluator %s: %w", e.Name, err)
		}
		ran = append(ran, e.Name)
	}
	return ran, nil
}

// FetchProviderContext concurrently collects every registered provider's
// contextual text and joins the non-empty results with newlines, preserving
// registration order. A provider error aborts the whole call.
func (d *Dispatcher) FetchProviderContext(ctx context.Context, rt core.Runtime, message *core.Memory, state *core.State) (string, error) {
	providers := d.registry.Providers()
	texts := make([]string, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		if p.Get == nil {
			continue
		}
		g.Go(func() error {
			text, err := p.Get(gctx, rt, message, state)
			if err != nil {
				return fmt.Errorf("provider %s: %w", p.Name, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var nonEmpty []string
	for _, t := range texts {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	return strings.Join(nonEmpty, "\n"), nil
}
