// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package questionnaire

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

// Strategy applies a section's format rules to a non-blank answer. Blank
// answers are handled by the completion check before a strategy runs.
type Strategy interface {
	Check(q types.Question, value string) *ValidationError
}

// plainStrategy accepts any non-blank answer.
type plainStrategy struct{}

func (plainStrategy) Check(types.Question, string) *ValidationError { return nil }

// narrativeStrategy enforces a minimum length on free-text answers.
type narrativeStrategy struct {
	minLength int
}

func (s narrativeStrategy) Check(q types.Question, value string) *ValidationError {
	if q.Kind == types.KindSingleChoice {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(value)) < s.minLength {
		return &ValidationError{
			QuestionID: q.ID,
			Reason:     fmt.Sprintf("answer must be at least %d characters", s.minLength),
		}
	}
	return nil
}

// choiceStrategy requires single-choice answers to be one of the options.
type choiceStrategy struct{}

func (choiceStrategy) Check(q types.Question, value string) *ValidationError {
	if q.Kind == types.KindSingleChoice && !q.HasOption(value) {
		return &ValidationError{
			QuestionID: q.ID,
			Reason:     fmt.Sprintf("%q is not one of the available options", value),
		}
	}
	return nil
}

// strategyFor resolves a section's strategy. Unknown names were rejected by
// Validate, so they fall back to the plain strategy here.
func strategyFor(s types.Section) Strategy {
	switch s.Strategy {
	case types.StrategyNarrative:
		return narrativeStrategy{minLength: s.MinLength}
	case types.StrategyChoice:
		return choiceStrategy{}
	default:
		return plainStrategy{}
	}
}
