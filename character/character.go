// Package character loads persona definitions from JSON or YAML files and
// resolves per-agent configuration with the precedence character secrets,
// then character settings, then the process environment.
package character

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/famulus-ai/famulus/core"
)

// stringList decodes either a single string or a list of strings, so short
// character files can write `bio: "one line"` instead of a one-element list.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var one string
		if err := node.Decode(&one); err != nil {
			return err
		}
		*s = []string{one}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return err
	}
	*s = many
	return nil
}

// fileCharacter is the on-disk shape of a character definition. It differs
// from core.Character only in accepting a bare string for Bio.
type fileCharacter struct {
	ID              string                    `json:"id" yaml:"id"`
	Name            string                    `json:"name" yaml:"name"`
	Bio             stringList                `json:"bio" yaml:"bio"`
	Lore            []string                  `json:"lore" yaml:"lore"`
	Topics          []string                  `json:"topics" yaml:"topics"`
	Adjectives      []string                  `json:"adjectives" yaml:"adjectives"`
	MessageExamples [][]core.MessageExample   `json:"messageExamples" yaml:"messageExamples"`
	PostExamples    []string                  `json:"postExamples" yaml:"postExamples"`
	Style           core.Style                `json:"style" yaml:"style"`
	Settings        map[string]string         `json:"settings" yaml:"settings"`
	Secrets         map[string]string         `json:"secrets" yaml:"secrets"`
}

func (f fileCharacter) toCore() core.Character {
	return core.Character{
		ID:              f.ID,
		Name:            f.Name,
		Bio:             f.Bio,
		Lore:            f.Lore,
		Topics:          f.Topics,
		Adjectives:      f.Adjectives,
		MessageExamples: f.MessageExamples,
		PostExamples:    f.PostExamples,
		Style:           f.Style,
		Settings:        f.Settings,
		Secrets:         f.Secrets,
	}
}

// Load reads a character definition from path, choosing the decoder by file
// extension (.json, .yaml or .yml). The returned character is validated and
// carries a deterministic id derived from its name when the file supplies
// none.
func Load(path string) (core.Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Character{}, fmt.Errorf("read character file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return Parse(data, "json")
	case ".yaml", ".yml":
		return Parse(data, "yaml")
	default:
		return core.Character{}, fmt.Errorf("unsupported character file extension %q", ext)
	}
}

// Parse decodes a character definition from raw bytes in the given format
// ("json" or "yaml"), validates it and fills in a deterministic id.
func Parse(data []byte, format string) (core.Character, error) {
	var fc fileCharacter
	switch format {
	case "json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return core.Character{}, fmt.Errorf("parse character json: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return core.Character{}, fmt.Errorf("parse character yaml: %w", err)
		}
	default:
		return core.Character{}, fmt.Errorf("unsupported character format %q", format)
	}

	c := fc.toCore()
	if err := Validate(c); err != nil {
		return core.Character{}, err
	}
	if c.ID == "" {
		c.ID = core.DeterministicID("character", c.Name)
	}
	return c, nil
}

// Validate checks a character definition for the fields the runtime cannot
// work without.
func Validate(c core.Character) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("character: name is required")
	}
	return nil
}
