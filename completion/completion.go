package completion

import (
	"context"
	"time"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/logging"
	"github.com/famulus-ai/famulus/model"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Backoff paces transport retries and the pause between parse retries.
	Backoff Backoff
	// Hooks observe the call lifecycle.
	Hooks *HookManager
	// Logger receives structured diagnostics.
	Logger logging.Logger
	// Stop sequences forwarded with every request.
	Stop []string
	// Temperature for sampling. Zero defers to the model adapter default.
	Temperature float64
	// MaxTokens caps response length. Zero defers to the model adapter.
	MaxTokens int
}

// CallLogger is implemented by loggers that record per-attempt completion
// summaries. *logging.RuntimeLogger satisfies it; plain loggers fall back to
// generic structured lines.
type CallLogger interface {
	LogCompletionCall(model string, attempts int, dur time.Duration, success bool, err error)
}

// Client implements core.CompletionService on top of a model.Completer.
// Public methods are safe for concurrent use.
type Client struct {
	completer model.Completer

	backoff     Backoff
	hooks       *HookManager
	logger      logging.Logger
	stop        []string
	temperature float64
	maxTokens   int
}

var _ core.CompletionService = (*Client)(nil)

// New constructs a Client with optional overrides.
func New(completer model.Completer, optFns ...func(o *Options)) *Client {
	opts := Options{
		Backoff: DefaultBackoff(),
		Hooks:   NewHookManager(),
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Hooks == nil {
		opts.Hooks = NewHookManager()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Client{
		completer:   completer,
		backoff:     opts.Backoff,
		hooks:       opts.Hooks,
		logger:      opts.Logger,
		stop:        opts.Stop,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Hooks returns the client's hook manager so callers can register hooks
// after construction.
func (c *Client) Hooks() *HookManager { return c.hooks }

// Complete performs one logical completion. Transport failures are retried
// per the backoff policy; once MaxAttempts remote calls have failed the
// method returns a core.CompletionExhaustedError wrapping the last error.
// A hook error or context cancellation ends the call immediately.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	maxAttempts := c.backoff.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	req := c.request(prompt)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.hooks.ExecuteHooks(ctx, HookBeforeRequest, &HookContext{
			Prompt:  prompt,
			Attempt: attempt,
		}); err != nil {
			return "", err
		}

		start := time.Now()
		text, err := c.completer.Complete(ctx, req)
		dur := time.Since(start)

		if err == nil {
			c.logCall(attempt, dur, true, nil)
			if err := c.hooks.ExecuteHooks(ctx, HookAfterRequest, &HookContext{
				Prompt:   prompt,
				Attempt:  attempt,
				Response: text,
			}); err != nil {
				return "", err
			}
			return text, nil
		}

		lastErr = err
		c.logCall(attempt, dur, false, err)

		delay := c.backoff.Delay(attempt)
		if hookErr := c.hooks.ExecuteHooks(ctx, HookTransportError, &HookContext{
			Prompt:  prompt,
			Attempt: attempt,
			Err:     err,
			Delay:   delay,
		}); hookErr != nil {
			return "", hookErr
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", &core.CompletionExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

func (c *Client) request(prompt string) model.Request {
	return model.Request{
		Messages:    []model.Message{{Role: model.RoleUser, Content: prompt}},
		Stop:        c.stop,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

func (c *Client) logCall(attempt int, dur time.Duration, success bool, err error) {
	if cl, ok := c.logger.(CallLogger); ok {
		cl.LogCompletionCall(c.completer.Info().Name, attempt, dur, success, err)
		return
	}
	if success {
		c.logger.Debug("Completion call succeeded",
			"model", c.completer.Info().Name, "attempt", attempt, "duration", dur)
		return
	}
	c.logger.Warn("Completion call failed",
		"model", c.completer.Info().Name, "attempt", attempt, "duration", dur, "error", err)
}
