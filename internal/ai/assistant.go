// Package ai describes how applicants are scored by a language model.
package ai

import "context"

// InvalidJSON is the Evaluation error for responses that are not a JSON object.
const InvalidJSON = "invalid JSON from model"

// Evaluation is a parsed model response. Nil fields were missing or invalid
// and are not written back.
type Evaluation struct {
	Summary   *string
	Score     *int
	FollowUps []string

	// Error is set when the response could not be parsed; Raw keeps the text.
	Error string
	Raw   string
}

func (e *Evaluation) Failed() bool {
	return e.Error != ""
}

// Scorer evaluates an applicant snapshot.
type Scorer interface {
	Score(ctx context.Context, snapshot string) (*Evaluation, error)
	Model() string
}
