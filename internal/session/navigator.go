// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdiddy/dossier-engine/internal/questionnaire"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

// DraftSaver saves the draft on forward transitions.
type DraftSaver interface {
	Save(ctx context.Context) error
}

// AnswerSource provides the answers the navigator validates.
type AnswerSource interface {
	Snapshot() types.AnswerMap
}

// Step is the result of a forward transition.
type Step struct {
	// Index is the section index after the transition.
	Index int `json:"index"`

	// Handoff is set when next was called on the last section. The index
	// does not change; the questionnaire is finished.
	Handoff bool `json:"handoff"`
}

// Navigator is the section state machine. The state is the current section
// index, starting at 0.
type Navigator struct {
	graph   *questionnaire.Graph
	answers AnswerSource
	saver   DraftSaver
	logger  *slog.Logger

	mu    sync.Mutex
	index int
}

// NewNavigator creates a navigator at section 0.
func NewNavigator(graph *questionnaire.Graph, answers AnswerSource, saver DraftSaver, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{graph: graph, answers: answers, saver: saver, logger: logger}
}

// Index returns the current section index.
func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// Next leaves the current section if it is complete. It returns
// questionnaire.ValidationErrors when it is not. Otherwise it saves the draft
// and advances, or reports a handoff on the last section. A failed draft save
// does not stop the transition.
func (n *Navigator) Next(ctx context.Context) (Step, error) {
	from := n.Index()
	sec, ok := n.graph.Section(from)
	if !ok {
		return Step{Index: from}, fmt.Errorf("section index %d out of range", from)
	}
	if err := n.graph.ValidateSection(sec.ID, n.answers.Snapshot()); err != nil {
		return Step{Index: from}, err
	}

	if n.saver != nil {
		if err := n.saver.Save(ctx); err != nil {
			n.logger.Warn("draft save on next failed", "section", sec.ID, "error", err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index != from {
		// Moved by another event while the draft was saving.
		return Step{Index: n.index}, nil
	}
	if from == n.graph.SectionCount()-1 {
		return Step{Index: from, Handoff: true}, nil
	}
	n.index = from + 1
	return Step{Index: n.index}, nil
}

// Previous moves back one section. It is always allowed and never saves.
func (n *Navigator) Previous() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index > 0 {
		n.index--
	}
	return n.index
}

// Goto jumps to section i, as when resuming a draft.
func (n *Navigator) Goto(i int) error {
	if i < 0 || i >= n.graph.SectionCount() {
		return fmt.Errorf("section index %d out of range", i)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.index = i
	return nil
}

// FirstIncomplete returns the index of the first section that cannot be left
// yet, or the last section when all are complete.
func FirstIncomplete(graph *questionnaire.Graph, answers types.AnswerMap) int {
	for i, s := range graph.Sections() {
		if graph.ValidateSection(s.ID, answers) != nil {
			return i
		}
	}
	if n := graph.SectionCount(); n > 0 {
		return n - 1
	}
	return 0
}
