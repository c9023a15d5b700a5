// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DossierSection is one generated, user-editable block of the dossier. Its ID
// is minted by the system and is unrelated to questionnaire section ids.
type DossierSection struct {
	ID      string `json:"section_id" yaml:"section_id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// Dossier is the assembled application document.
type Dossier struct {
	ID       string           `json:"id" yaml:"id"`
	Sections []DossierSection `json:"sections" yaml:"sections"`

	// Answers is the AnswerMap the dossier was assembled from. It is kept as
	// context for regenerating individual sections.
	Answers AnswerMap `json:"answers,omitempty" yaml:"answers,omitempty"`

	// Context holds the auxiliary inputs given to the generator at assembly.
	Context AuxiliaryContext `json:"context,omitempty" yaml:"context,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// SectionIndex returns the position of the section with the given id, or -1.
func (d *Dossier) SectionIndex(id string) int {
	for i, s := range d.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// GeneratedSection is a (title, content) pair returned by the generator.
type GeneratedSection struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// DocumentRef points to a supporting document uploaded by the candidate.
// Upload storage is external; only the reference travels with the dossier.
type DocumentRef struct {
	Name string `json:"name" yaml:"name"`
	URI  string `json:"uri" yaml:"uri"`

	// Summary is optional extracted text handed to the generator.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// AuxiliaryContext carries generation inputs other than the answers.
type AuxiliaryContext struct {
	Documents []DocumentRef `json:"documents,omitempty" yaml:"documents,omitempty"`
}
