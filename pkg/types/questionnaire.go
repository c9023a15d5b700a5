// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// InputKind selects how a question is answered.
type InputKind string

const (
	KindText         InputKind = "text"
	KindSingleChoice InputKind = "single_choice"
)

// Dependency makes a question visible only while another question's current
// answer equals Expected. Comparison is exact string equality.
type Dependency struct {
	// QuestionID is the question whose answer controls visibility.
	QuestionID string `json:"question" yaml:"question"`

	// Expected is the answer value that makes the dependent question visible.
	Expected string `json:"equals" yaml:"equals"`
}

// Question is a single input in the questionnaire.
type Question struct {
	// ID is unique within the QuestionSet.
	ID string `json:"id" yaml:"id"`

	// Text is the prompt shown to the candidate.
	Text string `json:"text" yaml:"text"`

	// Kind is text or single_choice. Empty means text.
	Kind InputKind `json:"kind" yaml:"kind"`

	// Options lists the allowed values for single_choice questions.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`

	// Required marks questions that must be answered before leaving the section.
	Required bool `json:"required" yaml:"required"`

	// DependsOn is nil for questions that are always visible.
	DependsOn *Dependency `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// AIAssist marks questions whose answer may be drafted by the generator.
	AIAssist bool `json:"ai_assist,omitempty" yaml:"ai_assist,omitempty"`
}

// HasOption reports whether value is one of the question's options.
func (q Question) HasOption(value string) bool {
	for _, o := range q.Options {
		if o == value {
			return true
		}
	}
	return false
}

// StrategyName selects the validation rules applied to a section's answers.
type StrategyName string

const (
	StrategyDefault   StrategyName = "default"
	StrategyNarrative StrategyName = "narrative"
	StrategyChoice    StrategyName = "choice"
)

// Section groups questions on one questionnaire page.
type Section struct {
	ID          string       `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	Strategy    StrategyName `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// MinLength is the minimum trimmed answer length for the narrative strategy.
	MinLength int `json:"min_length,omitempty" yaml:"min_length,omitempty"`

	Questions []Question `json:"questions" yaml:"questions"`
}

// QuestionSet is the ordered list of sections loaded for a session. It is not
// modified after loading.
type QuestionSet struct {
	Sections []Section `json:"sections" yaml:"sections"`
}

// QuestionCount returns the total number of questions across all sections.
func (qs QuestionSet) QuestionCount() int {
	n := 0
	for _, s := range qs.Sections {
		n += len(s.Questions)
	}
	return n
}

// AnswerMap maps question ids to the candidate's current answer. Keys exist
// only for questions that have been touched.
type AnswerMap map[string]string

// Answered reports whether the question has a non-blank answer.
func (m AnswerMap) Answered(questionID string) bool {
	return strings.TrimSpace(m[questionID]) != ""
}

// Clone returns an independent copy. Cloning a nil map returns an empty map.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same keys and values.
func (m AnswerMap) Equal(other AnswerMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
