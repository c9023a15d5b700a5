// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dossier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/dossier-engine/internal/notify"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

// DefaultDeleteWindow is how long a first delete click stays armed.
const DefaultDeleteWindow = 3 * time.Second

const (
	defaultSectionTitle = "New section"
	persistFailedMsg    = "Your changes to the dossier could not be saved. Please try again."
)

// SectionView is a DossierSection as the UI shows it: the edit buffer plus
// status flags.
type SectionView struct {
	ID           string `json:"section_id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Dirty        bool   `json:"dirty"`
	Editing      bool   `json:"editing"`
	Regenerating bool   `json:"regenerating"`
	Saving       bool   `json:"saving"`
	DeleteArmed  bool   `json:"delete_armed"`
}

// EditorOptions configures an Editor. Zero values pick defaults.
type EditorOptions struct {
	Notifier     notify.Notifier
	Logger       *slog.Logger
	DeleteWindow time.Duration
	Now          func() time.Time
}

// entry pairs the last persisted version of a section with its edit buffer.
type entry struct {
	id    string
	saved types.DossierSection
	buf   types.DossierSection
}

func (e *entry) dirty() bool {
	return e.saved.Title != e.buf.Title || e.saved.Content != e.buf.Content
}

// Editor owns the session's dossier after assembly. It tracks unsaved edits
// per section, enforces single-section edit mode, and writes the section list
// to the Store.
type Editor struct {
	store    Store
	notifier notify.Notifier
	logger   *slog.Logger
	window   time.Duration
	now      func() time.Time

	// writeMu orders store writes so each one reflects the state left by the
	// previous one.
	writeMu sync.Mutex

	mu           sync.Mutex
	meta         *types.Dossier
	entries      []*entry
	editing      string
	regenerating map[string]bool
	loads        uint64
	saving       bool
	writes       int

	// structureGen counts membership and order changes; structureSaved is
	// the generation last accepted by the store.
	structureGen   int
	structureSaved int

	armedID string
	armedAt time.Time
}

// NewEditor creates an empty Editor.
func NewEditor(store Store, opts EditorOptions) *Editor {
	e := &Editor{
		store:        store,
		notifier:     opts.Notifier,
		logger:       opts.Logger,
		window:       opts.DeleteWindow,
		now:          opts.Now,
		regenerating: map[string]bool{},
	}
	if e.notifier == nil {
		e.notifier = notify.Discard
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.window <= 0 {
		e.window = DefaultDeleteWindow
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Load replaces the editor state with d, treating d as already persisted.
func (e *Editor) Load(d *types.Dossier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadLocked(d)
}

func (e *Editor) loadLocked(d *types.Dossier) {
	meta := *d
	meta.Sections = nil
	meta.Answers = d.Answers.Clone()
	e.meta = &meta

	e.entries = make([]*entry, 0, len(d.Sections))
	for _, s := range d.Sections {
		e.entries = append(e.entries, &entry{id: s.ID, saved: s, buf: s})
	}
	e.editing = ""
	e.armedID = ""
	e.regenerating = map[string]bool{}
	e.loads++
	e.structureGen, e.structureSaved = 0, 0
}

// Replace loads d and writes it to the store. When the write fails d stays
// loaded and marked unsaved.
func (e *Editor) Replace(ctx context.Context, d *types.Dossier) error {
	e.mu.Lock()
	e.loadLocked(d)
	e.structureGen++
	e.mu.Unlock()
	return e.persist(ctx, "saving dossier", savedVersion)
}

// Resume loads the latest stored dossier. It reports whether one was found.
func (e *Editor) Resume(ctx context.Context) (bool, error) {
	d, found, err := e.store.LoadLatestDossier(ctx)
	if err != nil {
		return false, fmt.Errorf("loading latest dossier: %w", err)
	}
	if !found {
		return false, nil
	}
	e.Load(d)
	return true, nil
}

// HasDossier reports whether a dossier is loaded.
func (e *Editor) HasDossier() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta != nil
}

// Dossier returns a copy of the dossier as currently displayed, including
// unsaved edits.
func (e *Editor) Dossier() (*types.Dossier, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.meta == nil {
		return nil, ErrNoDossier
	}
	return e.snapshotLocked(bufferVersion), nil
}

// Sections lists every section in order with its status flags.
func (e *Editor) Sections() []SectionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	out := make([]SectionView, 0, len(e.entries))
	for _, ent := range e.entries {
		out = append(out, SectionView{
			ID:           ent.id,
			Title:        ent.buf.Title,
			Content:      ent.buf.Content,
			Dirty:        ent.dirty(),
			Editing:      e.editing == ent.id,
			Regenerating: e.regenerating[ent.id],
			Saving:       e.writes > 0,
			DeleteArmed:  e.armedLocked(ent.id, now),
		})
	}
	return out
}

// Dirty reports whether anything differs from what the store last accepted.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.structureGen != e.structureSaved {
		return true
	}
	for _, ent := range e.entries {
		if ent.dirty() {
			return true
		}
	}
	return false
}

// Editing returns the id of the section in edit mode, or "".
func (e *Editor) Editing() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editing
}

// BeginEdit puts a section in edit mode. If another section has unsaved
// edits the call fails with ErrUnsavedChanges unless discard is set, in which
// case those edits are dropped.
func (e *Editor) BeginEdit(id string, discard bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.editableLocked(id); err != nil {
		return err
	}
	var others []*entry
	for _, ent := range e.entries {
		if ent.id != id && ent.dirty() {
			others = append(others, ent)
		}
	}
	if len(others) > 0 && !discard {
		return ErrUnsavedChanges
	}
	for _, ent := range others {
		ent.buf = ent.saved
	}
	e.editing = id
	return nil
}

// UpdateBuffer replaces the edit buffer of the section in edit mode.
func (e *Editor) UpdateBuffer(id, title, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.editableLocked(id)
	if err != nil {
		return err
	}
	if e.editing != id {
		return ErrNotEditing
	}
	ent.buf.Title = title
	ent.buf.Content = content
	return nil
}

// CancelEdit drops the section's unsaved edits and leaves edit mode.
func (e *Editor) CancelEdit(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.editableLocked(id)
	if err != nil {
		return err
	}
	ent.buf = ent.saved
	if e.editing == id {
		e.editing = ""
	}
	return nil
}

// Save writes the edit buffers of all sections in one store call. On success
// nothing is dirty and no section is in edit mode.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.meta == nil {
		e.mu.Unlock()
		return ErrNoDossier
	}
	if e.saving {
		e.mu.Unlock()
		return ErrSaveInFlight
	}
	e.saving = true
	e.mu.Unlock()

	err := e.persist(ctx, "saving dossier", bufferVersion)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		return err
	}
	e.editing = ""
	return nil
}

// Delete handles one click on a section's delete control. The first click
// arms it; a second click on the same section within the delete window
// removes the section and persists the list. deleted reports which happened.
func (e *Editor) Delete(ctx context.Context, id string) (deleted bool, err error) {
	e.mu.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return false, ErrSectionNotFound
	}
	if e.regenerating[id] {
		e.mu.Unlock()
		return false, ErrSectionLocked
	}

	now := e.now()
	if !e.armedLocked(id, now) {
		e.armedID, e.armedAt = id, now
		e.mu.Unlock()
		return false, nil
	}

	e.armedID = ""
	e.entries = append(e.entries[:i], e.entries[i+1:]...)
	if e.editing == id {
		e.editing = ""
	}
	e.structureGen++
	e.mu.Unlock()

	e.logger.Info("dossier section deleted", "section", id)
	return true, e.persist(ctx, "deleting section", savedVersion)
}

// DeleteArmed reports whether the next delete click on id confirms.
func (e *Editor) DeleteArmed(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armedLocked(id, e.now())
}

// Add appends a section with a fresh id and persists the list. A blank title
// becomes "New section".
func (e *Editor) Add(ctx context.Context, title, content string) (types.DossierSection, error) {
	e.mu.Lock()
	if e.meta == nil {
		e.mu.Unlock()
		return types.DossierSection{}, ErrNoDossier
	}
	if strings.TrimSpace(title) == "" {
		title = defaultSectionTitle
	}
	id := MintUniqueID(func(s string) bool { return e.indexLocked(s) >= 0 })
	s := types.DossierSection{ID: id, Title: title, Content: content}
	e.entries = append(e.entries, &entry{id: id, saved: s, buf: s})
	e.structureGen++
	e.mu.Unlock()

	return s, e.persist(ctx, "adding section", savedVersion)
}

// Move places a section at index and persists the new order.
func (e *Editor) Move(ctx context.Context, id string, index int) error {
	e.mu.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return ErrSectionNotFound
	}
	if index < 0 || index >= len(e.entries) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d not in 0-%d", ErrInvalidPosition, index, len(e.entries)-1)
	}
	if i == index {
		e.mu.Unlock()
		return nil
	}
	ent := e.entries[i]
	e.entries = append(e.entries[:i], e.entries[i+1:]...)
	e.entries = append(e.entries[:index], append([]*entry{ent}, e.entries[index:]...)...)
	e.structureGen++
	e.mu.Unlock()

	return e.persist(ctx, "moving section", savedVersion)
}

// regenTicket is what a regeneration needs from the editor. loads ties it to
// the dossier that was loaded when the section was locked.
type regenTicket struct {
	title   string
	answers types.AnswerMap
	aux     types.AuxiliaryContext
	loads   uint64
}

// startRegeneration locks a section for regeneration and returns its
// generation context.
func (e *Editor) startRegeneration(id string) (regenTicket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.meta == nil {
		return regenTicket{}, ErrNoDossier
	}
	i := e.indexLocked(id)
	if i < 0 {
		return regenTicket{}, ErrSectionNotFound
	}
	if e.regenerating[id] {
		return regenTicket{}, ErrConflict
	}
	e.regenerating[id] = true
	if e.armedID == id {
		e.armedID = ""
	}
	return regenTicket{
		title:   e.entries[i].buf.Title,
		answers: e.meta.Answers.Clone(),
		aux:     e.meta.Context,
		loads:   e.loads,
	}, nil
}

// applyRegeneration installs new content for one section and persists it.
// Other sections are written at their last saved version, so their unsaved
// edits stay unsaved. It fails with ErrDossierReplaced when another dossier
// was loaded after the section was locked.
func (e *Editor) applyRegeneration(ctx context.Context, id string, t regenTicket, content string) error {
	e.mu.Lock()
	if e.loads != t.loads {
		e.mu.Unlock()
		return ErrDossierReplaced
	}
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return ErrSectionNotFound
	}
	e.entries[i].buf.Content = content
	e.mu.Unlock()

	return e.persist(ctx, "saving regenerated section", func(ent *entry) types.DossierSection {
		if ent.id == id {
			return types.DossierSection{ID: id, Title: ent.saved.Title, Content: ent.buf.Content}
		}
		return ent.saved
	})
}

// endRegeneration unlocks the section. Locks taken on a dossier that has
// since been replaced are already gone.
func (e *Editor) endRegeneration(id string, t regenTicket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loads == t.loads {
		delete(e.regenerating, id)
	}
}

func savedVersion(ent *entry) types.DossierSection  { return ent.saved }
func bufferVersion(ent *entry) types.DossierSection { return ent.buf }

// persist writes the section list, choosing each section's version with pick,
// and records what the store accepted.
func (e *Editor) persist(ctx context.Context, op string, pick func(*entry) types.DossierSection) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if e.meta == nil {
		e.mu.Unlock()
		return ErrNoDossier
	}
	snap := e.snapshotLocked(pick)
	snap.UpdatedAt = e.now()
	gen := e.structureGen
	e.writes++
	e.mu.Unlock()

	err := e.store.SaveDossier(ctx, snap)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.writes--
	if err != nil {
		e.logger.Warn("dossier save failed", "op", op, "dossier", snap.ID, "error", err)
		e.notifier.Notify(notify.KindTransient, persistFailedMsg)
		return &PersistError{Op: op, Err: err}
	}
	if e.meta == nil || e.meta.ID != snap.ID {
		return nil
	}
	for _, s := range snap.Sections {
		if i := e.indexLocked(s.ID); i >= 0 {
			e.entries[i].saved = s
		}
	}
	if gen > e.structureSaved {
		e.structureSaved = gen
	}
	e.meta.UpdatedAt = snap.UpdatedAt
	return nil
}

func (e *Editor) snapshotLocked(pick func(*entry) types.DossierSection) *types.Dossier {
	d := *e.meta
	d.Answers = e.meta.Answers.Clone()
	d.Sections = make([]types.DossierSection, 0, len(e.entries))
	for _, ent := range e.entries {
		s := pick(ent)
		s.ID = ent.id
		d.Sections = append(d.Sections, s)
	}
	return &d
}

func (e *Editor) editableLocked(id string) (*entry, error) {
	i := e.indexLocked(id)
	if i < 0 {
		return nil, ErrSectionNotFound
	}
	if e.regenerating[id] {
		return nil, ErrSectionLocked
	}
	return e.entries[i], nil
}

func (e *Editor) indexLocked(id string) int {
	for i, ent := range e.entries {
		if ent.id == id {
			return i
		}
	}
	return -1
}

func (e *Editor) armedLocked(id string, now time.Time) bool {
	return e.armedID == id && now.Sub(e.armedAt) <= e.window
}
