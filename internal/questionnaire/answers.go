// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package questionnaire

import (
	"sync"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

// AnswerStore holds the AnswerMap of one in-progress session. Readers get
// copies; the live map never leaves the store.
type AnswerStore struct {
	mu      sync.RWMutex
	answers types.AnswerMap
	version uint64
}

// NewAnswerStore returns a store seeded with a copy of initial.
func NewAnswerStore(initial types.AnswerMap) *AnswerStore {
	return &AnswerStore{answers: initial.Clone()}
}

// Set records an answer. Blank values are stored as typed so that clearing a
// field is persisted too.
func (s *AnswerStore) Set(questionID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.answers[questionID]; ok && old == value {
		return
	}
	s.answers[questionID] = value
	s.version++
}

// Get returns the raw stored answer, including answers of hidden questions.
func (s *AnswerStore) Get(questionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.answers[questionID]
	return v, ok
}

// Snapshot returns a copy of the current answers.
func (s *AnswerStore) Snapshot() types.AnswerMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answers.Clone()
}

// Replace swaps in a copy of answers, as when a draft is restored.
func (s *AnswerStore) Replace(answers types.AnswerMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = answers.Clone()
	s.version++
}

// Version increases on every change. Persisters use it to skip redundant saves.
func (s *AnswerStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
