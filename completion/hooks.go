package completion

import (
	"context"
	"time"
)

// HookType identifies the lifecycle points of a completion call where hooks
// run.
type HookType string

const (
	// HookBeforeRequest fires before every remote attempt, including
	// retries. Use for request auditing or rate limiting.
	HookBeforeRequest HookType = "before_request"

	// HookAfterRequest fires after a remote attempt succeeds. Use for
	// response logging or metrics collection.
	HookAfterRequest HookType = "after_request"

	// HookTransportError fires after a remote attempt fails, before the
	// backoff pause. Use for alerting or to abort early.
	HookTransportError HookType = "transport_error"

	// HookParseFailure fires when a typed wrapper rejects a response. Use
	// to observe malformed model output or to bound the parse-retry loop.
	HookParseFailure HookType = "parse_failure"
)

// HookContext carries the details of the lifecycle point being observed.
// Fields are populated as applicable for the hook type.
type HookContext struct {
	// Prompt is the text sent to the model.
	Prompt string

	// Attempt is the 1-based number of the remote attempt. Zero for
	// parse-failure hooks, which sit above the attempt loop.
	Attempt int

	// Response is the model output. Set for after_request and
	// parse_failure hooks.
	Response string

	// Kind names the expected response shape for parse_failure hooks.
	Kind string

	// Err is the transport or parse error for the two failure hooks.
	Err error

	// Delay is the pause the client will take before the next attempt.
	// Set for transport_error hooks.
	Delay time.Duration
}

// Hook observes one lifecycle point of a completion call. Returning an error
// aborts the call and surfaces the error to the caller, which is how policy
// hooks (budgets, circuit breakers) stop a retry loop from the outside.
type Hook interface {
	// Type returns the lifecycle point this hook handles.
	Type() HookType

	// Execute runs the hook. An error terminates the completion call.
	Execute(ctx context.Context, hookCtx *HookContext) error
}

// FunctionHook wraps a plain function as a Hook, for hooks that need no
// state of their own.
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hookCtx *HookContext) error
}

// NewFunctionHook creates a hook from a function for the given lifecycle
// point.
func NewFunctionHook(
	hookType HookType,
	fn func(ctx context.Context, hookCtx *HookContext) error,
) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type returns the lifecycle point this hook handles.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute calls the wrapped function.
func (h *FunctionHook) Execute(ctx context.Context, hookCtx *HookContext) error {
	return h.fn(ctx, hookCtx)
}

// HookManager routes lifecycle events to registered hooks. Registration is
// not safe for concurrent use; once registration is complete, execution is.
// Hooks run in registration order and the first error stops the chain.
type HookManager struct {
	hooks map[HookType][]Hook
}

// NewHookManager creates an empty manager.
func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[HookType][]Hook)}
}

// Register adds a hook for its declared lifecycle point. Multiple hooks per
// point run in registration order.
func (m *HookManager) Register(hook Hook) {
	m.hooks[hook.Type()] = append(m.hooks[hook.Type()], hook)
}

// ExecuteHooks runs every hook registered for the lifecycle point. The first
// hook error is returned and later hooks are skipped.
func (m *HookManager) ExecuteHooks(ctx context.Context, hookType HookType, hookCtx *HookContext) error {
	for _, hook := range m.hooks[hookType] {
		if err := hook.Execute(ctx, hookCtx); err != nil {
			return err
		}
	}
	return nil
}
