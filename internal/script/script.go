// Package script validates two-speaker dialogue scripts produced by a
// schema-constrained generation call.
package script

import (
	"errors"
	"fmt"
	"strings"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

// State tracks a script through generation and validation.
type State string

const (
	StateGenerating State = "GENERATING"
	StateValidating State = "VALIDATING"
	StateValid      State = "VALID"
	StateRejected   State = "REJECTED"
)

// ErrEmptyDialogue is returned for a script without lines.
var ErrEmptyDialogue = errors.New("script has no dialogue")

// RejectedError reports the first invalid line of a script.
type RejectedError struct {
	Index  int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("script rejected at line %d: %s", e.Index, e.Reason)
}

// Schema is the JSON schema the generator is constrained to.
func Schema() ports.JSONSchema {
	speakers := make([]any, 0, len(domain.Speakers))
	for _, s := range domain.Speakers {
		speakers = append(speakers, string(s))
	}
	return ports.JSONSchema{
		Name: "podcast_script",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"dialogue": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"speaker": map[string]any{"type": "string", "enum": speakers},
							"text":    map[string]any{"type": "string", "minLength": 1},
						},
						"required":             []any{"speaker", "text"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []any{"dialogue"},
			"additionalProperties": false,
		},
	}
}

// Validate re-checks every line after generation. Speakers and text are
// trimmed and speakers normalized to their canonical value; the first
// invalid line rejects the whole script. Order is preserved.
func Validate(raw domain.PodcastScript) (domain.PodcastScript, State, error) {
	if len(raw.Dialogue) == 0 {
		return domain.PodcastScript{}, StateRejected, ErrEmptyDialogue
	}

	out := make([]domain.DialogueLine, 0, len(raw.Dialogue))
	for i, line := range raw.Dialogue {
		speaker, ok := domain.ParseSpeaker(string(line.Speaker))
		if !ok {
			return domain.PodcastScript{}, StateRejected, &RejectedError{Index: i, Reason: fmt.Sprintf("unknown speaker %q", line.Speaker)}
		}
		text := strings.TrimSpace(line.Text)
		if text == "" {
			return domain.PodcastScript{}, StateRejected, &RejectedError{Index: i, Reason: "empty text"}
		}
		out = append(out, domain.DialogueLine{Speaker: speaker, Text: text})
	}
	return domain.PodcastScript{Dialogue: out}, StateValid, nil
}
