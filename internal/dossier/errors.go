// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dossier

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict rejects a regeneration for a section that is already
	// regenerating. No generator call is made.
	ErrConflict = errors.New("this section is already being regenerated")

	ErrSectionNotFound = errors.New("section not found")
	ErrNoDossier       = errors.New("no dossier has been assembled yet")

	// ErrUnsavedChanges is returned when entering edit mode would discard
	// another section's unsaved edits. Retry with discard to confirm.
	ErrUnsavedChanges = errors.New("another section has unsaved changes")

	// ErrSectionLocked is returned for edits to a section that is regenerating.
	ErrSectionLocked = errors.New("this section is being regenerated and cannot be edited")

	ErrNotEditing   = errors.New("this section is not in edit mode")
	ErrSaveInFlight = errors.New("the dossier is already being saved")

	// ErrDossierReplaced is returned by a regeneration that finished after a
	// new dossier was assembled. Its content is discarded.
	ErrDossierReplaced = errors.New("the dossier was reassembled while this section was being regenerated")

	// ErrInvalidPosition rejects a move to an index outside the section list.
	ErrInvalidPosition = errors.New("that position is outside the dossier")
)

// GenerationError means the generator could not produce text. Assembly fails
// as a whole; a failed regeneration leaves the section as it was.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: text generation is unavailable right now: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistError means the document store did not accept a write. The
// in-memory state is kept and the next save retries it.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: the dossier could not be saved: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
