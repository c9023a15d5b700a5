// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package questionnaire

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownSection  = errors.New("unknown section")
	ErrUnknownQuestion = errors.New("unknown question")
)

// ValidationError reports a single answer that blocks leaving its section.
type ValidationError struct {
	QuestionID string `json:"question_id"`
	Reason     string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %s: %s", e.QuestionID, e.Reason)
}

// ValidationErrors collects every failing question in a section.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.As find the individual ValidationError values.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, v := range e {
		out[i] = v
	}
	return out
}
