package capability

import (
	"fmt"
	"strings"

	"github.com/famulus-ai/famulus/core"
)

// exampleNames fill the {{user1}}-style placeholders of capability examples
// so prompts show concrete speakers.
var exampleNames = []string{"Alice", "Bob", "Charlie", "Dana", "Evan"}

// FormatActionNames renders the catalog of action names offered to the model
// as a comma-separated list.
func FormatActionNames(actions []core.Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// FormatActions renders one "NAME: description" line per action.
func FormatActions(actions []core.Action) string {
	lines := make([]string, len(actions))
	for i, a := range actions {
		lines[i] = fmt.Sprintf("%s: %s", a.Name, a.Description)
	}
	return strings.Join(lines, "\n")
}

// FormatActionExamples samples up to count example conversations across the
// actions, substituting placeholder speakers with shuffled names. The intn
// argument is the random source (see state composition's injectable
// sampling); passing a deterministic intn yields a deterministic catalog.
func FormatActionExamples(actions []core.Action, count int, intn func(n int) int) string {
	type example struct {
		turns []core.MessageExample
	}
	var pool []example
	for _, a := range actions {
		for _, turns := range a.Examples {
			pool = append(pool, example{turns: turns})
		}
	}
	if len(pool) == 0 || count <= 0 {
		return ""
	}

	// Partial Fisher-Yates: the first count slots end up uniformly sampled.
	if count > len(pool) {
		count = len(pool)
	}
	for i := 0; i < count; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	var blocks []string
	for _, ex := range pool[:count] {
		replacer := NewPlaceholderReplacer(intn)
		var lines []string
		for _, turn := range ex.turns {
			line := fmt.Sprintf("%s: %s", replacer.Replace(turn.User), replacer.Replace(turn.Content.Text))
			if turn.Content.Action != "" {
				line += fmt.Sprintf(" (%s)", turn.Content.Action)
			}
			lines = append(lines, line)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// NewPlaceholderReplacer maps {{user1}}..{{userN}} onto a shuffled copy of
// the example names. The state composer uses the same replacer for character
// message examples so speakers stay consistent within one prompt.
func NewPlaceholderReplacer(intn func(n int) int) *strings.Replacer {
	names := append([]string(nil), exampleNames...)
	for i := range names {
		j := i + intn(len(names)-i)
		names[i], names[j] = names[j], names[i]
	}

	pairs := make([]string, 0, len(names)*2)
	for i, name := range names {
		pairs = append(pairs, fmt.Sprintf("{{user%d}}", i+1), name)
	}
	return strings.NewReplacer(pairs...)
}

// FormatEvaluatorNames renders the catalog of evaluator names as a
// comma-separated list.
func FormatEvaluatorNames(evaluators []core.Evaluator) string {
	names := make([]string, len(evaluators))
	for i, e := range evaluators {
		names[i] = e.Name
	}
	return strings.Join(names, ", ")
}

// FormatEvaluators renders one "NAME: description" line per evaluator.
func FormatEvaluators(evaluators []core.Evaluator) string {
	lines := make([]string, len(evaluators))
	for i, e := range evaluators {
		lines[i] = fmt.Sprintf("%s: %s", e.Name, e.Description)
	}
	return strings.Join(lines, "\n")
}

// FormatEvaluatorExamples renders the documented example runs of the
// evaluators: context, conversation and expected outcome per example.
func FormatEvaluatorExamples(evaluators []core.Evaluator) string {
	var blocks []string
	for _, e := range evaluators {
		for _, ex := range e.Examples {
			var b strings.Builder
			fmt.Fprintf(&b, "Context:\n%s\n\nMessages:\n", ex.Context)
			for _, turn := range ex.Messages {
				fmt.Fprintf(&b, "%s: %s\n", turn.User, turn.Content.Text)
			}
			fmt.Fprintf(&b, "\nOutcome:\n%s", ex.Outcome)
			blocks = append(blocks, b.String())
		}
	}
	return strings.Join(blocks, "\n\n")
}
