// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dossier turns answers into an editable, sectioned document and
// keeps the per-section edit, save and regeneration state of that document.
package dossier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

// Generator is the text-generation collaborator.
type Generator interface {
	GenerateDossier(ctx context.Context, answers types.AnswerMap, aux types.AuxiliaryContext) ([]types.GeneratedSection, error)
	RegenerateSection(ctx context.Context, title string, answers types.AnswerMap, aux types.AuxiliaryContext) (string, error)
}

// Store persists dossiers for one session.
type Store interface {
	// SaveDossier replaces the stored dossier with d.
	SaveDossier(ctx context.Context, d *types.Dossier) error

	// LoadLatestDossier returns the most recently saved dossier. found is
	// false when none exists.
	LoadLatestDossier(ctx context.Context) (d *types.Dossier, found bool, err error)
}

// AnswerFilter narrows the answers handed to the generator.
type AnswerFilter func(types.AnswerMap) types.AnswerMap

// Assembler produces the initial dossier.
type Assembler struct {
	gen    Generator
	filter AnswerFilter
	logger *slog.Logger
	now    func() time.Time
}

// NewAssembler creates an Assembler. filter and logger may be nil.
func NewAssembler(gen Generator, filter AnswerFilter, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{gen: gen, filter: filter, logger: logger, now: time.Now}
}

// Assemble calls the generator once and builds a dossier whose sections carry
// freshly minted ids. On failure nothing is returned; calling again starts over.
func (a *Assembler) Assemble(ctx context.Context, answers types.AnswerMap, aux types.AuxiliaryContext) (*types.Dossier, error) {
	stored := answers.Clone()
	input := stored
	if a.filter != nil {
		input = a.filter(stored)
	}

	generated, err := a.gen.GenerateDossier(ctx, input, aux)
	if err != nil {
		a.logger.Warn("dossier assembly failed", "error", err)
		return nil, &GenerationError{Op: "assembling dossier", Err: err}
	}
	if len(generated) == 0 {
		return nil, &GenerationError{Op: "assembling dossier", Err: fmt.Errorf("generator returned no sections")}
	}

	d := &types.Dossier{
		ID:        NewID(),
		Sections:  make([]types.DossierSection, 0, len(generated)),
		Answers:   stored,
		Context:   aux,
		UpdatedAt: a.now(),
	}
	used := make(map[string]bool, len(generated))
	for _, g := range generated {
		id := MintUniqueID(func(s string) bool { return used[s] })
		used[id] = true
		d.Sections = append(d.Sections, types.DossierSection{ID: id, Title: g.Title, Content: g.Content})
	}

	a.logger.Info("dossier assembled", "dossier", d.ID, "sections", len(d.Sections))
	return d, nil
}
