package character

import (
	"os"

	"github.com/famulus-ai/famulus/core"
)

// ResolverOptions holds dependency overrides passed to NewResolver().
type ResolverOptions struct {
	// LookupEnv resolves a process environment variable. Defaults to
	// os.LookupEnv; tests inject a map-backed lookup.
	LookupEnv func(key string) (string, bool)
}

// Resolver answers configuration lookups for one character. Resolution order
// is character secrets, then character settings, then the process
// environment; the first layer that defines the key wins, even with an empty
// value.
type Resolver struct {
	character core.Character
	lookupEnv func(key string) (string, bool)
}

// NewResolver constructs a Resolver with optional overrides.
func NewResolver(c core.Character, optFns ...func(o *ResolverOptions)) *Resolver {
	opts := ResolverOptions{
		LookupEnv: os.LookupEnv,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Resolver{character: c, lookupEnv: opts.LookupEnv}
}

// Get resolves a configuration key, returning the empty string when no layer
// defines it.
func (r *Resolver) Get(key string) string {
	v, _ := r.Lookup(key)
	return v
}

// Lookup resolves a configuration key and reports whether any layer defined
// it.
func (r *Resolver) Lookup(key string) (string, bool) {
	if v, ok := r.character.Secrets[key]; ok {
		return v, true
	}
	if v, ok := r.character.Settings[key]; ok {
		return v, true
	}
	return r.lookupEnv(key)
}

// Require resolves a key that must be present and non-empty, failing with a
// core.MissingCredentialError otherwise. The error is fatal for the
// component that needs the credential, never for the whole runtime.
func (r *Resolver) Require(key string) (string, error) {
	v, ok := r.Lookup(key)
	if !ok || v == "" {
		return "", &core.MissingCredentialError{Key: key}
	}
	return v, nil
}
