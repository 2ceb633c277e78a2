package questiongen

import "medquiz-service/internal/llm"

// QuestionSchema is the structured output requested for generated questions.
var QuestionSchema = &llm.Schema{
	Name:        "mcq-question",
	Description: "A single four-option multiple choice question for medical exam practice",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question stem, self-contained, without the options",
			},
			"options": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    4,
				"maxItems":    4,
				"description": "Exactly four option texts in display order, without A)/B) prefixes",
			},
			"correct_label": map[string]any{
				"type":        "string",
				"enum":        []any{"A", "B", "C", "D"},
				"description": "Label of the correct option; A is the first option",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "Why the correct option is right and the others are wrong",
			},
		},
		"required":             []any{"question", "options", "correct_label", "explanation"},
		"additionalProperties": false,
	},
}
