package token

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// SimpleCodec is a deterministic word-boundary codec. A run of letters and
// digits is one token, optionally absorbing a single preceding space the way
// BPE vocabularies carry " word" pieces; every other rune is its own token.
// Ids are interned per instance on first sight.
//
// The codec is lossless: Decode(Encode(text)) reproduces text exactly, which
// makes truncation and chunking behave correctly. Counts approximate
// GPT-family granularity closely enough for budget enforcement.
type SimpleCodec struct {
	mu     sync.RWMutex
	ids    map[string]int
	pieces []string
}

var _ Codec = (*SimpleCodec)(nil)

// NewSimpleCodec creates an empty codec. Vocabulary grows as texts are
// encoded.
func NewSimpleCodec() *SimpleCodec {
	return &SimpleCodec{ids: make(map[string]int)}
}

// Encode implements the Codec interface.
func (c *SimpleCodec) Encode(text string) ([]int, error) {
	runes := []rune(text)
	tokens := make([]int, 0, len(runes)/4+1)

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(runes); {
		start := i
		switch {
		case isWordRune(runes[i]):
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
		case runes[i] == ' ' && i+1 < len(runes) && isWordRune(runes[i+1]):
			i++
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
		default:
			i++
		}
		tokens = append(tokens, c.intern(string(runes[start:i])))
	}
	return tokens, nil
}

// Decode implements the Codec interface. It fails on ids the codec has never
// issued.
func (c *SimpleCodec) Decode(tokens []int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	for _, id := range tokens {
		if id < 0 || id >= len(c.pieces) {
			return "", fmt.Errorf("decode: unknown token id %d", id)
		}
		b.WriteString(c.pieces[id])
	}
	return b.String(), nil
}

func (c *SimpleCodec) intern(piece string) int {
	if id, ok := c.ids[piece]; ok {
		return id
	}
	id := len(c.pieces)
	c.ids[piece] = id
	c.pieces = append(c.pieces, piece)
	return id
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
