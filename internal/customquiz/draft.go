package customquiz

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"medquiz-service/internal/domain"
)

// SharePath is the client route at which a quiz can be attempted.
func SharePath(id string) string {
	return "/custom-quiz/" + id
}

// ShareURL prefixes SharePath with baseURL when one is configured.
func ShareURL(baseURL, id string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return base + SharePath(id)
}

// ReadDraft decodes a YAML quiz draft.
//
//	title: Cardiology basics
//	secondsPerQuestion: 30
//	questions:
//	  - prompt: Which valve ...
//	    options: [Mitral, Tricuspid, Aortic, Pulmonary]
//	    correctLabel: A
//	    explanation: ...
func ReadDraft(r io.Reader) (domain.QuizDraft, error) {
	var d domain.QuizDraft
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return domain.QuizDraft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}
