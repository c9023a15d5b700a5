// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package questionnaire

import (
	"fmt"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

// Graph is the read-only view of a QuestionSet used to evaluate visibility.
// Section strategies are resolved once when the graph is built.
type Graph struct {
	set        *types.QuestionSet
	questions  map[string]types.Question
	sectionIdx map[string]int
	strategies map[string]Strategy
}

// NewGraph validates set and indexes it for lookups.
func NewGraph(set *types.QuestionSet) (*Graph, error) {
	if set == nil {
		return nil, fmt.Errorf("question set is nil")
	}
	if err := Validate(set); err != nil {
		return nil, err
	}

	g := &Graph{
		set:        set,
		questions:  make(map[string]types.Question),
		sectionIdx: make(map[string]int, len(set.Sections)),
		strategies: make(map[string]Strategy, len(set.Sections)),
	}
	for i, s := range set.Sections {
		g.sectionIdx[s.ID] = i
		g.strategies[s.ID] = strategyFor(s)
		for _, q := range s.Questions {
			g.questions[q.ID] = q
		}
	}
	return g, nil
}

// QuestionSet returns the underlying set.
func (g *Graph) QuestionSet() *types.QuestionSet { return g.set }

// Sections returns the sections in order.
func (g *Graph) Sections() []types.Section { return g.set.Sections }

// SectionCount returns the number of sections.
func (g *Graph) SectionCount() int { return len(g.set.Sections) }

// Section returns the section at index i.
func (g *Graph) Section(i int) (types.Section, bool) {
	if i < 0 || i >= len(g.set.Sections) {
		return types.Section{}, false
	}
	return g.set.Sections[i], true
}

// SectionIndex returns the position of the section with the given id.
func (g *Graph) SectionIndex(id string) (int, bool) {
	i, ok := g.sectionIdx[id]
	return i, ok
}

// Question looks up a question by id.
func (g *Graph) Question(id string) (types.Question, bool) {
	q, ok := g.questions[id]
	return q, ok
}

// TotalQuestions returns the number of questions in the set.
func (g *Graph) TotalQuestions() int { return len(g.questions) }

// IsVisible reports whether q is shown for the given answers. A question
// whose controlling question has never been answered is hidden.
func (g *Graph) IsVisible(q types.Question, answers types.AnswerMap) bool {
	if q.DependsOn == nil {
		return true
	}
	v, ok := answers[q.DependsOn.QuestionID]
	return ok && v == q.DependsOn.Expected
}

// VisibleQuestions returns the questions of a section visible for answers,
// in definition order.
func (g *Graph) VisibleQuestions(sectionID string, answers types.AnswerMap) ([]types.Question, error) {
	i, ok := g.sectionIdx[sectionID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSection, sectionID)
	}
	var out []types.Question
	for _, q := range g.set.Sections[i].Questions {
		if g.IsVisible(q, answers) {
			out = append(out, q)
		}
	}
	return out, nil
}

// VisibleAnswers returns a copy of answers without entries for hidden
// questions or unknown ids. The input map is not modified, so re-enabling a
// condition restores the earlier answer.
func (g *Graph) VisibleAnswers(answers types.AnswerMap) types.AnswerMap {
	out := make(types.AnswerMap, len(answers))
	for id, v := range answers {
		q, ok := g.questions[id]
		if !ok || !g.IsVisible(q, answers) {
			continue
		}
		out[id] = v
	}
	return out
}

// ValidateSection returns ValidationErrors for every visible required question
// that is unanswered and every answer that fails the section's format rules.
// Optional questions left blank pass. It returns nil when the section may be
// left.
func (g *Graph) ValidateSection(sectionID string, answers types.AnswerMap) error {
	visible, err := g.VisibleQuestions(sectionID, answers)
	if err != nil {
		return err
	}
	strategy := g.strategies[sectionID]

	var errs ValidationErrors
	for _, q := range visible {
		if !answers.Answered(q.ID) {
			if q.Required {
				errs = append(errs, &ValidationError{QuestionID: q.ID, Reason: "an answer is required"})
			}
			continue
		}
		if verr := strategy.Check(q, answers[q.ID]); verr != nil {
			errs = append(errs, verr)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
