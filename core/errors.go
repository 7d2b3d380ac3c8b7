package core

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// DuplicateIDError reports a memory create whose id already exists within the
// namespace and room. The original record is left untouched.
type DuplicateIDError struct {
	Table string `json:"table"` // namespace of the collision
	ID    string `json:"id"`    // colliding memory id
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("memory store: duplicate id %s in table %s", e.ID, e.Table)
}

// NewDuplicateIDError creates a DuplicateIDError for the given table and id.
func NewDuplicateIDError(table, id string) *DuplicateIDError {
	return &DuplicateIDError{Table: table, ID: id}
}

// IsDuplicateID reports whether err wraps a DuplicateIDError.
func IsDuplicateID(err error) bool {
	var d *DuplicateIDError
	return errors.As(err, &d)
}

// CompletionExhaustedError reports that a completion call failed after the
// bounded number of transport attempts. Err holds the last transport error.
type CompletionExhaustedError struct {
	Attempts int   `json:"attempts"`
	Err      error `json:"-"`
}

func (e *CompletionExhaustedError) Error() string {
	return fmt.Sprintf("completion: exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CompletionExhaustedError) Unwrap() error { return e.Err }

// IsCompletionExhausted reports whether err wraps a CompletionExhaustedError.
func IsCompletionExhausted(err error) bool {
	var c *CompletionExhaustedError
	return errors.As(err, &c)
}

// ParseError reports that a completion answered in an unexpected shape. The
// typed completion wrappers treat it as transient and re-issue the remote
// call; it only reaches a caller through context cancellation paths.
type ParseError struct {
	Kind string `json:"kind"` // expected shape: boolean, string array, object array, message
	Raw  string `json:"raw"`  // offending model output, truncated for logs
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		cut := 120
		// Back off to a rune boundary so the cut never splits a multi-byte
		// sequence.
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut] + "..."
	}
	return fmt.Sprintf("completion: response is not a valid %s: %q", e.Kind, raw)
}

// NewParseError creates a ParseError for the expected kind and raw output.
func NewParseError(kind, raw string) *ParseError {
	return &ParseError{Kind: kind, Raw: raw}
}

// IsParseError reports whether err wraps a ParseError.
func IsParseError(err error) bool {
	var p *ParseError
	return errors.As(err, &p)
}

// MissingCredentialError reports an absent required secret. It is fatal for
// the component that needs the credential, never for the whole runtime.
type MissingCredentialError struct {
	Key string `json:"key"`
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("config: missing required credential %q", e.Key)
}

// IsMissingCredential reports whether err wraps a MissingCredentialError.
func IsMissingCredential(err error) bool {
	var m *MissingCredentialError
	return errors.As(err, &m)
}
