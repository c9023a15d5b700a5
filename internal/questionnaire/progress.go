// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package questionnaire

import (
	"math"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

// SectionProgress returns the percentage (0-100, rounded) of visible
// questions in the section that are answered. A section with no visible
// questions reports 100.
func SectionProgress(g *Graph, sectionID string, answers types.AnswerMap) (int, error) {
	visible, err := g.VisibleQuestions(sectionID, answers)
	if err != nil {
		return 0, err
	}
	if len(visible) == 0 {
		return 100, nil
	}
	answered := 0
	for _, q := range visible {
		if answers.Answered(q.ID) {
			answered++
		}
	}
	return percent(answered, len(visible)), nil
}

// GlobalProgress returns the percentage of all questions in the set that are
// answered and currently visible. Hidden answers count as absent.
func GlobalProgress(g *Graph, answers types.AnswerMap) int {
	total := g.TotalQuestions()
	if total == 0 {
		return 100
	}
	answered := 0
	for _, s := range g.Sections() {
		for _, q := range s.Questions {
			if g.IsVisible(q, answers) && answers.Answered(q.ID) {
				answered++
			}
		}
	}
	return percent(answered, total)
}

// SectionComplete reports whether every visible required question in the
// section is answered. Progress still counts optional questions.
func SectionComplete(g *Graph, sectionID string, answers types.AnswerMap) (bool, error) {
	visible, err := g.VisibleQuestions(sectionID, answers)
	if err != nil {
		return false, err
	}
	for _, q := range visible {
		if q.Required && !answers.Answered(q.ID) {
			return false, nil
		}
	}
	return true, nil
}

// SectionStatus is the progress summary of one section.
type SectionStatus struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Progress int    `json:"progress"`
	Complete bool   `json:"complete"`
}

// Summarize returns the status of every section in order.
func Summarize(g *Graph, answers types.AnswerMap) []SectionStatus {
	out := make([]SectionStatus, 0, g.SectionCount())
	for _, s := range g.Sections() {
		// Section ids come from the graph itself, so lookups cannot fail.
		p, _ := SectionProgress(g, s.ID, answers)
		c, _ := SectionComplete(g, s.ID, answers)
		out = append(out, SectionStatus{ID: s.ID, Title: s.Title, Progress: p, Complete: c})
	}
	return out
}

func percent(n, d int) int {
	return int(math.Round(float64(n) * 100 / float64(d)))
}
