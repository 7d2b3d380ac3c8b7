package core

// MessageExample is one turn of an example conversation used to steer the
// model's voice. User names the speaker; the literal "{{user1}}" style
// placeholders are substituted with sampled actor names at prompt time.
type MessageExample struct {
	User    string  `json:"user" yaml:"user"`
	Content Content `json:"content" yaml:"content"`
}

// Style carries writing directions applied to every prompt (All), to chat
// responses (Chat) and to post generation (Post).
type Style struct {
	All  []string `json:"all,omitempty" yaml:"all,omitempty"`
	Chat []string `json:"chat,omitempty" yaml:"chat,omitempty"`
	Post []string `json:"post,omitempty" yaml:"post,omitempty"`
}

// Character is a persona definition: identity, voice and per-agent
// configuration. Settings hold non-secret configuration (model identifier,
// embedding model identifier); Secrets hold credentials. Setting resolution
// order is Secrets, then Settings, then the process environment.
type Character struct {
	ID              string             `json:"id,omitempty" yaml:"id,omitempty"`
	Name            string             `json:"name" yaml:"name"`
	Bio             []string           `json:"bio,omitempty" yaml:"bio,omitempty"`
	Lore            []string           `json:"lore,omitempty" yaml:"lore,omitempty"`
	Topics          []string           `json:"topics,omitempty" yaml:"topics,omitempty"`
	Adjectives      []string           `json:"adjectives,omitempty" yaml:"adjectives,omitempty"`
	MessageExamples [][]MessageExample `json:"messageExamples,omitempty" yaml:"messageExamples,omitempty"`
	PostExamples    []string           `json:"postExamples,omitempty" yaml:"postExamples,omitempty"`
	Style           Style              `json:"style,omitempty" yaml:"style,omitempty"`
	Settings        map[string]string  `json:"settings,omitempty" yaml:"settings,omitempty"`
	Secrets         map[string]string  `json:"secrets,omitempty" yaml:"secrets,omitempty"`
}
