package token

import "fmt"

// Codec converts between text and the integer token ids of a model
// vocabulary. Implementations must be safe for concurrent use.
type Codec interface {
	// Encode converts text to token ids.
	Encode(text string) ([]int, error)

	// Decode converts token ids back to text.
	Decode(tokens []int) (string, error)
}

// Count returns the number of tokens codec produces for text.
func Count(codec Codec, text string) (int, error) {
	tokens, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return len(tokens), nil
}

// TruncateToBudget trims text so it fits within maxTokens tokens. When the
// text already fits it is returned unchanged. Otherwise the leading tokens
// are dropped and the trailing maxTokens tokens are kept, so the most recent
// end of a transcript survives trimming. A budget of zero or less yields the
// empty string.
func TruncateToBudget(codec Codec, text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}

	tokens, err := codec.Encode(text)
	if err != nil {
		return "", fmt.Errorf("truncate to budget: %w", err)
	}
	if len(tokens) <= maxTokens {
		return text, nil
	}

	kept, err := codec.Decode(tokens[len(tokens)-maxTokens:])
	if err != nil {
		return "", fmt.Errorf("truncate to budget: %w", err)
	}
	return kept, nil
}
