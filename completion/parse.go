package completion

import (
	"encoding/json"
	"strings"

	"github.com/famulus-ai/famulus/core"
)

// ParseBoolean scans text for a verdict token. The first TRUE/YES or
// FALSE/NO word wins, so a model may reason before answering. Punctuation
// around the token is ignored.
func ParseBoolean(text string) (bool, error) {
	for _, field := range strings.Fields(strings.ToUpper(text)) {
		switch strings.Trim(field, ".,!?:;\"'()[]{}*") {
		case "TRUE", "YES":
			return true, nil
		case "FALSE", "NO":
			return false, nil
		}
	}
	return false, core.NewParseError("boolean", text)
}

// ParseStringArray extracts the first JSON array in text and decodes it as
// strings.
func ParseStringArray(text string) ([]string, error) {
	raw, ok := extractJSON(text, '[', ']')
	if !ok {
		return nil, core.NewParseError("string array", text)
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, core.NewParseError("string array", text)
	}
	return out, nil
}

// ParseObjectArray extracts the first JSON array in text and decodes its
// elements as objects.
func ParseObjectArray(text string) ([]map[string]any, error) {
	raw, ok := extractJSON(text, '[', ']')
	if !ok {
		return nil, core.NewParseError("object array", text)
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, core.NewParseError("object array", text)
	}
	return out, nil
}

// ParseStructuredMessage extracts the first JSON object in text and decodes
// it as a message. A message without text is rejected.
func ParseStructuredMessage(text string) (*core.StructuredMessage, error) {
	raw, ok := extractJSON(text, '{', '}')
	if !ok {
		return nil, core.NewParseError("message", text)
	}
	var msg core.StructuredMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, core.NewParseError("message", text)
	}
	if msg.Text == "" {
		return nil, core.NewParseError("message", text)
	}
	return &msg, nil
}

// extractJSON returns the slice of text from the first opening to the last
// closing delimiter. A fenced code block, when present, is searched instead
// of the full text since that is where chat models put structured answers.
func extractJSON(text string, opening, closing byte) (string, bool) {
	if inner, ok := fencedBlock(text); ok {
		text = inner
	}
	start := strings.IndexByte(text, opening)
	end := strings.LastIndexByte(text, closing)
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// fencedBlock returns the body of the first ``` fence, skipping the info
// string on the opening line.
func fencedBlock(text string) (string, bool) {
	const fence = "```"
	start := strings.Index(text, fence)
	if start == -1 {
		return "", false
	}
	rest := text[start+len(fence):]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, fence)
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}
