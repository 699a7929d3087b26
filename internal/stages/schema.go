package stages

import "github.com/abhisek/questforge/internal/llm"

var stringArray = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

// StagesSchema constrains a decomposition reply.
var StagesSchema = &llm.Schema{
	Name:        "quest-stages",
	Description: "Ordered learning stages for one quest",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stages": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title": map[string]any{
							"type":        "string",
							"description": "Short stage name (2-6 words)",
						},
						"capability": map[string]any{
							"type":        "string",
							"description": "What the learner can do after this stage, starting with a verb",
						},
						"artifact": map[string]any{
							"type":        "string",
							"description": "Concrete thing the learner produces",
						},
						"intentional_failure": map[string]any{
							"type":        "string",
							"description": "A mistake the learner should make on purpose",
						},
						"consequence": map[string]any{
							"type":        "string",
							"description": "What goes wrong when that mistake is made",
						},
						"recovery": map[string]any{
							"type":        "string",
							"description": "How the learner fixes it",
						},
						"topics": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "1-4 lowercase topic keywords",
						},
						"locked_variables": stringArray,
					},
					"required":             []any{"title", "capability", "artifact", "intentional_failure", "consequence", "recovery", "topics", "locked_variables"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"stages"},
		"additionalProperties": false,
	},
}
