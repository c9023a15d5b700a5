// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dossier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pdiddy/dossier-engine/internal/notify"
)

// Regenerator rewrites one section of the editor's dossier at a time per
// section id. Different sections may regenerate concurrently.
type Regenerator struct {
	gen      Generator
	editor   *Editor
	filter   AnswerFilter
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewRegenerator creates a Regenerator working on editor. filter, notifier
// and logger may be nil.
func NewRegenerator(gen Generator, editor *Editor, filter AnswerFilter, notifier notify.Notifier, logger *slog.Logger) *Regenerator {
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Regenerator{gen: gen, editor: editor, filter: filter, notifier: notifier, logger: logger}
}

// Regenerate asks the generator for new content for sectionID and installs
// it. A request for a section that is already regenerating fails with
// ErrConflict before the generator is called. When generation fails the
// section keeps its content.
//
// The new content is returned once generation succeeds. If storing it fails
// the section stays dirty and the user is notified; the next Save retries.
// If the dossier was reassembled meanwhile the content is dropped and
// ErrDossierReplaced is returned.
func (r *Regenerator) Regenerate(ctx context.Context, sectionID string) (string, error) {
	ticket, err := r.editor.startRegeneration(sectionID)
	if err != nil {
		return "", err
	}
	defer r.editor.endRegeneration(sectionID, ticket)

	answers := ticket.answers
	if r.filter != nil {
		answers = r.filter(answers)
	}

	content, err := r.gen.RegenerateSection(ctx, ticket.title, answers, ticket.aux)
	if err != nil {
		r.logger.Warn("section regeneration failed", "section", sectionID, "error", err)
		r.notifier.Notify(notify.KindError, "The section could not be regenerated. Its previous content was kept.")
		return "", &GenerationError{Op: "regenerating section", Err: err}
	}

	if err := r.editor.applyRegeneration(ctx, sectionID, ticket, content); err != nil {
		var perr *PersistError
		if !errors.As(err, &perr) {
			r.logger.Info("regenerated section discarded", "section", sectionID, "error", err)
			return "", err
		}
		r.logger.Warn("regenerated section not stored", "section", sectionID, "error", err)
	}
	return content, nil
}

// Regenerating reports whether sectionID has a regeneration in flight.
func (r *Regenerator) Regenerating(sectionID string) bool {
	r.editor.mu.Lock()
	defer r.editor.mu.Unlock()
	return r.editor.regenerating[sectionID]
}
