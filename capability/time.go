package capability

import (
	"context"
	"time"

	"github.com/famulus-ai/famulus/core"
)

// TimeProviderOptions holds dependency overrides passed to NewTimeProvider().
type TimeProviderOptions struct {
	// Now supplies the clock. Defaults to time.Now; tests inject a fixed
	// instant.
	Now func() time.Time
}

// NewTimeProvider returns the provider that folds the current UTC time into
// every state snapshot, giving the model a stable notion of "now".
func NewTimeProvider(optFns ...func(o *TimeProviderOptions)) core.Provider {
	opts := TimeProviderOptions{
		Now: time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return core.Provider{
		Name: "TIME",
		Get: func(context.Context, core.Runtime, *core.Memory, *core.State) (string, error) {
			return "The current time is: " + opts.Now().UTC().Format("Monday, January 2, 2006 at 15:04 UTC"), nil
		},
	}
}
