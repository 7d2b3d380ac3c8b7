package token

import (
	"fmt"
	"iter"
)

// Chunk is one window of a chunked text. Core is the exact decoding of the
// window's tokens; Text widens Core with up to the requested number of bleed
// characters on each side, taken verbatim from the original text so a reader
// of the chunk sees its surrounding context.
type Chunk struct {
	Text  string
	Core  string
	Start int // index of the window's first token
	End   int // one past the index of the window's last token
}

// Chunks splits text into consecutive windows of at most size tokens and
// returns them as a finite, restartable sequence: iterating again yields the
// same chunks. The Core fields of all chunks concatenate back to text
// exactly. Bleed characters are sourced from the original character stream,
// not re-decoded tokens, so they are correct even across window boundaries
// that split a token run.
//
// The codec must be lossless (Decode(Encode(text)) == text), which holds for
// SimpleCodec and BPE-style codecs.
func Chunks(codec Codec, text string, size, bleed int) (iter.Seq[Chunk], error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if bleed < 0 {
		return nil, fmt.Errorf("chunk bleed must not be negative, got %d", bleed)
	}

	tokens, err := codec.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("chunk text: %w", err)
	}

	runes := []rune(text)
	chunks := make([]Chunk, 0, (len(tokens)+size-1)/size)
	pos := 0 // rune offset of the current window within text
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		core, err := codec.Decode(tokens[start:end])
		if err != nil {
			return nil, fmt.Errorf("chunk text: %w", err)
		}

		n := len([]rune(core))
		lo := max(pos-bleed, 0)
		hi := min(pos+n+bleed, len(runes))
		chunks = append(chunks, Chunk{
			Text:  string(runes[lo:hi]),
			Core:  core,
			Start: start,
			End:   end,
		})
		pos += n
	}

	return func(yield func(Chunk) bool) {
		for _, c := range chunks {
			if !yield(c) {
				return
			}
		}
	}, nil
}
