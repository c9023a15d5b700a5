// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dossier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dossier-engine/internal/notify"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

// --- fakes ---

type fakeGen struct {
	mu         sync.Mutex
	sections   []types.GeneratedSection
	genErr     error
	regenErr   error
	gotAnswers types.AnswerMap
	genCalls   int
	regenCalls map[string]int

	// block holds regenerations of the given title until the channel closes.
	block   map[string]chan struct{}
	entered chan string
}

func newFakeGen() *fakeGen {
	return &fakeGen{regenCalls: map[string]int{}, block: map[string]chan struct{}{}, entered: make(chan string, 8)}
}

func (g *fakeGen) GenerateDossier(_ context.Context, answers types.AnswerMap, _ types.AuxiliaryContext) ([]types.GeneratedSection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.genCalls++
	g.gotAnswers = answers
	return g.sections, g.genErr
}

func (g *fakeGen) RegenerateSection(_ context.Context, title string, _ types.AnswerMap, _ types.AuxiliaryContext) (string, error) {
	g.mu.Lock()
	g.regenCalls[title]++
	gate := g.block[title]
	err := g.regenErr
	g.mu.Unlock()

	g.entered <- title
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return "regenerated " + title, nil
}

func (g *fakeGen) calls(title string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.regenCalls[title]
}

type memStore struct {
	mu     sync.Mutex
	saves  []*types.Dossier
	err    error
	latest *types.Dossier
}

func (s *memStore) SaveDossier(_ context.Context, d *types.Dossier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *d
	cp.Sections = append([]types.DossierSection(nil), d.Sections...)
	s.saves = append(s.saves, &cp)
	s.latest = &cp
	return nil
}

func (s *memStore) LoadLatestDossier(context.Context) (*types.Dossier, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, false, nil
	}
	return s.latest, true, nil
}

func (s *memStore) last() *types.Dossier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *memStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (r *recordingNotifier) Notify(kind notify.Kind, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func sampleDossier() *types.Dossier {
	return &types.Dossier{
		ID: "d1",
		Sections: []types.DossierSection{
			{ID: "a", Title: "A", Content: "alpha"},
			{ID: "b", Title: "B", Content: "beta"},
			{ID: "c", Title: "C", Content: "gamma"},
		},
		Answers: types.AnswerMap{"name": "Ada"},
	}
}

func newTestEditor(store *memStore) (*Editor, *fakeClock, *recordingNotifier) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	notes := &recordingNotifier{}
	e := NewEditor(store, EditorOptions{Notifier: notes, Now: clk.now})
	e.Load(sampleDossier())
	return e, clk, notes
}

func contentOf(d *types.Dossier, id string) string {
	if i := d.SectionIndex(id); i >= 0 {
		return d.Sections[i].Content
	}
	return ""
}

// --- assembler ---

func TestAssembleMintsFreshIDs(t *testing.T) {
	gen := newFakeGen()
	gen.sections = []types.GeneratedSection{{Title: "Intro", Content: "..."}}
	a := NewAssembler(gen, nil, nil)

	d, err := a.Assemble(context.Background(), types.AnswerMap{"foo": "bar"}, types.AuxiliaryContext{})
	require.NoError(t, err)
	require.Len(t, d.Sections, 1)

	s := d.Sections[0]
	assert.NotEqual(t, "Intro", s.ID)
	_, perr := uuid.Parse(s.ID)
	assert.NoError(t, perr)
	assert.Equal(t, "Intro", s.Title)
	assert.Equal(t, "...", s.Content)
	assert.Equal(t, types.AnswerMap{"foo": "bar"}, d.Answers)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, 1, gen.genCalls)
}

func TestAssembleIDsAreDistinct(t *testing.T) {
	gen := newFakeGen()
	gen.sections = []types.GeneratedSection{{Title: "Same"}, {Title: "Same"}, {Title: "Same"}}
	d, err := NewAssembler(gen, nil, nil).Assemble(context.Background(), types.AnswerMap{}, types.AuxiliaryContext{})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, s := range d.Sections {
		assert.False(t, seen[s.ID])
		seen[s.ID] = true
	}
}

func TestAssembleFailsAtomically(t *testing.T) {
	gen := newFakeGen()
	gen.genErr = errors.New("503 overloaded")

	d, err := NewAssembler(gen, nil, nil).Assemble(context.Background(), types.AnswerMap{"foo": "bar"}, types.AuxiliaryContext{})
	assert.Nil(t, d)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, err.Error(), "503 overloaded")

	gen.genErr = nil
	gen.sections = nil
	_, err = NewAssembler(gen, nil, nil).Assemble(context.Background(), types.AnswerMap{}, types.AuxiliaryContext{})
	assert.ErrorAs(t, err, &genErr)
}

func TestAssembleFilterNarrowsGeneratorInput(t *testing.T) {
	gen := newFakeGen()
	gen.sections = []types.GeneratedSection{{Title: "Intro"}}
	drop := func(m types.AnswerMap) types.AnswerMap {
		out := m.Clone()
		delete(out, "hidden")
		return out
	}

	d, err := NewAssembler(gen, drop, nil).Assemble(context.Background(), types.AnswerMap{"shown": "1", "hidden": "2"}, types.AuxiliaryContext{})
	require.NoError(t, err)
	assert.Equal(t, types.AnswerMap{"shown": "1"}, gen.gotAnswers)
	assert.Equal(t, types.AnswerMap{"shown": "1", "hidden": "2"}, d.Answers)
}

// --- regenerator ---

func TestRegenerateLeavesOtherSectionsAlone(t *testing.T) {
	store := &memStore{}
	e, _, _ := newTestEditor(store)
	gen := newFakeGen()
	r := NewRegenerator(gen, e, nil, nil, nil)

	require.NoError(t, e.BeginEdit("b", false))
	require.NoError(t, e.UpdateBuffer("b", "B", "beta, unsaved"))

	content, err := r.Regenerate(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "regenerated A", content)

	d, err := e.Dossier()
	require.NoError(t, err)
	assert.Equal(t, "regenerated A", contentOf(d, "a"))
	assert.Equal(t, "beta, unsaved", contentOf(d, "b"))
	assert.Equal(t, "gamma", contentOf(d, "c"))

	saved := store.last()
	require.NotNil(t, saved)
	assert.Equal(t, "regenerated A", contentOf(saved, "a"))
	assert.Equal(t, "beta", contentOf(saved, "b"), "unsaved edits stay unsaved")

	views := e.Sections()
	assert.False(t, views[0].Dirty)
	assert.True(t, views[1].Dirty)
	assert.Equal(t, "b", e.Editing())
}

func TestRegenerateConflictAndConcurrency(t *testing.T) {
	store := &memStore{}
	e, _, _ := newTestEditor(store)
	gen := newFakeGen()
	gateA := make(chan struct{})
	gen.block["A"] = gateA
	r := NewRegenerator(gen, e, nil, nil, nil)

	doneA := make(chan error, 1)
	go func() {
		_, err := r.Regenerate(context.Background(), "a")
		doneA <- err
	}()
	require.Equal(t, "A", <-gen.entered)
	assert.True(t, r.Regenerating("a"))

	_, err := r.Regenerate(context.Background(), "a")
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, gen.calls("A"), "the rejected request never reached the generator")

	assert.ErrorIs(t, e.BeginEdit("a", true), ErrSectionLocked)
	_, err = e.Delete(context.Background(), "a")
	assert.ErrorIs(t, err, ErrSectionLocked)

	content, err := r.Regenerate(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "regenerated B", content)
	<-gen.entered

	close(gateA)
	require.NoError(t, <-doneA)
	assert.False(t, r.Regenerating("a"))

	d, _ := e.Dossier()
	assert.Equal(t, "regenerated A", contentOf(d, "a"))
	assert.Equal(t, "regenerated B", contentOf(d, "b"))
	assert.Equal(t, "gamma", contentOf(d, "c"))
	assert.False(t, e.Dirty())
}

func TestRegenerateFailureKeepsContent(t *testing.T) {
	store := &memStore{}
	e, _, _ := newTestEditor(store)
	gen := newFakeGen()
	gen.regenErr = errors.New("timeout")
	notes := &recordingNotifier{}
	r := NewRegenerator(gen, e, nil, notes, nil)

	_, err := r.Regenerate(context.Background(), "b")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)

	d, _ := e.Dossier()
	assert.Equal(t, "beta", contentOf(d, "b"))
	assert.Zero(t, store.count())
	assert.Equal(t, []notify.Kind{notify.KindError}, notes.kinds)
	assert.False(t, r.Regenerating("b"))
}

func TestRegenerateStoreFailureLeavesSectionDirty(t *testing.T) {
	store := &memStore{err: errors.New("store down")}
	e, _, notes := newTestEditor(store)
	r := NewRegenerator(newFakeGen(), e, nil, nil, nil)

	content, err := r.Regenerate(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "regenerated C", content)
	assert.True(t, e.Dirty())
	assert.Equal(t, []notify.Kind{notify.KindTransient}, notes.kinds)

	store.fail(nil)
	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, "regenerated C", contentOf(store.last(), "c"))
	assert.False(t, e.Dirty())
}

func TestRegenerateAfterReassemblyIsDiscarded(t *testing.T) {
	store := &memStore{}
	e, _, _ := newTestEditor(store)
	gen := newFakeGen()
	gate := make(chan struct{})
	gen.block["A"] = gate
	r := NewRegenerator(gen, e, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Regenerate(context.Background(), "a")
		done <- err
	}()
	require.Equal(t, "A", <-gen.entered)

	fresh := sampleDossier()
	fresh.ID = "d2"
	fresh.Sections[0].Content = "fresh alpha"
	require.NoError(t, e.Replace(context.Background(), fresh))
	assert.False(t, r.Regenerating("a"), "the new dossier starts unlocked")

	close(gate)
	assert.ErrorIs(t, <-done, ErrDossierReplaced)

	d, err := e.Dossier()
	require.NoError(t, err)
	assert.Equal(t, "d2", d.ID)
	assert.Equal(t, "fresh alpha", contentOf(d, "a"))
	assert.Equal(t, "fresh alpha", contentOf(store.last(), "a"))
	assert.False(t, e.Dirty())
}

func TestStaleRegenerationKeepsNewLock(t *testing.T) {
	e, _, _ := newTestEditor(&memStore{})
	gen := newFakeGen()
	gateOld := make(chan struct{})
	gen.block["A"] = gateOld
	r := NewRegenerator(gen, e, nil, nil, nil)

	oldDone := make(chan error, 1)
	go func() {
		_, err := r.Regenerate(context.Background(), "a")
		oldDone <- err
	}()
	require.Equal(t, "A", <-gen.entered)

	require.NoError(t, e.Replace(context.Background(), sampleDossier()))

	gateNew := make(chan struct{})
	gen.mu.Lock()
	gen.block["A"] = gateNew
	gen.mu.Unlock()
	newDone := make(chan error, 1)
	go func() {
		_, err := r.Regenerate(context.Background(), "a")
		newDone <- err
	}()
	require.Equal(t, "A", <-gen.entered)

	close(gateOld)
	assert.ErrorIs(t, <-oldDone, ErrDossierReplaced)
	assert.True(t, r.Regenerating("a"), "the finished stale request leaves the new lock alone")

	close(gateNew)
	require.NoError(t, <-newDone)
	d, _ := e.Dossier()
	assert.Equal(t, "regenerated A", contentOf(d, "a"))
}

func TestRegenerateUnknownSection(t *testing.T) {
	e, _, _ := newTestEditor(&memStore{})
	gen := newFakeGen()
	_, err := NewRegenerator(gen, e, nil, nil, nil).Regenerate(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrSectionNotFound)

	empty := NewEditor(&memStore{}, EditorOptions{})
	_, err = NewRegenerator(gen, empty, nil, nil, nil).Regenerate(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNoDossier)
}

// --- editor ---

func TestBeginEditAsksBeforeDiscarding(t *testing.T) {
	e, _, _ := newTestEditor(&memStore{})

	require.NoError(t, e.BeginEdit("a", false))
	require.NoError(t, e.UpdateBuffer("a", "A", "alpha edited"))
	assert.ErrorIs(t, e.UpdateBuffer("b", "B", "nope"), ErrNotEditing)

	assert.ErrorIs(t, e.BeginEdit("b", false), ErrUnsavedChanges)
	assert.Equal(t, "a", e.Editing())

	require.NoError(t, e.BeginEdit("b", true))
	assert.Equal(t, "b", e.Editing())
	d, _ := e.Dossier()
	assert.Equal(t, "alpha", contentOf(d, "a"))
	assert.False(t, e.Dirty())
}

func TestBeginEditSwitchesFreelyWhenClean(t *testing.T) {
	e, _, _ := newTestEditor(&memStore{})
	require.NoError(t, e.BeginEdit("a", false))
	require.NoError(t, e.BeginEdit("c", false))
	assert.Equal(t, "c", e.Editing())
	assert.ErrorIs(t, e.BeginEdit("nope", false), ErrSectionNotFound)
}

func TestCancelEdit(t *testing.T) {
	e, _, _ := newTestEditor(&memStore{})
	require.NoError(t, e.BeginEdit("a", false))
	require.NoError(t, e.UpdateBuffer("a", "A2", "x"))
	require.NoError(t, e.CancelEdit("a"))

	assert.Empty(t, e.Editing())
	assert.False(t, e.Dirty())
	assert.Equal(t, "A", e.Sections()[0].Title)
}

func TestSaveWritesAllBuffersInOneCall(t *testing.T) {
	store := &memStore{}
	e, _, _ := newTestEditor(store)

	require.NoError(t, e.BeginEdit("c", false))
	require.NoError(t, e.UpdateBuffer("c", "C, revised", "gamma revised"))
	require.True(t, e.Dirty())

	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, 1, store.count())
	saved := store.last()
	require.Len(t, saved.Sections, 3)
	assert.Equal(t, types.DossierSection{ID: "c", Title: "C, revised", Content: "gamma revised"}, saved.Sections[2])
	assert.Equal(t, types.AnswerMap{"name": "Ada"}, saved.Answers)
	assert.False(t, e.Dirty())
	assert.Empty(t, e.Editing())
}

func TestSaveFailureKeepsEdits(t *testing.T) {
	store := &memStore{err: errors.New("connection reset")}
	e, _, notes := newTestEditor(store)
	require.NoError(t, e.BeginEdit("a", false))
	require.NoError(t, e.UpdateBuffer("a", "A", "edited"))

	err := e.Save(context.Background())
	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.True(t, e.Dirty())
	assert.Equal(t, "a", e.Editing())
	assert.Len(t, notes.kinds, 1)
}

func TestSaveWithoutDossier(t *testing.T) {
	e := NewEditor(&memStore{}, EditorOptions{})
	assert.ErrorIs(t, e.Save(context.Background()), ErrNoDossier)
	_, err := e.Dossier()
	assert.ErrorIs(t, err, ErrNoDossier)
}

func TestDeleteNeedsTwoClicksWithinWindow(t *testing.T) {
	store := &memStore{}
	e, clk, _ := newTestEditor(store)
	ctx := context.Background()

	deleted, err := e.Delete(ctx, "b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, e.DeleteArmed("b"))

	clk.advance(4 * time.Second)
	assert.False(t, e.DeleteArmed("b"), "arming resets after the window")
	assert.Len(t, e.Sections(), 3)
	assert.Zero(t, store.count())

	deleted, err = e.Delete(ctx, "b")
	require.NoError(t, err)
	assert.False(t, deleted, "a click after the window only re-arms")

	clk.advance(2 * time.Second)
	deleted, err = e.Delete(ctx, "b")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, e.DeleteArmed("b"))

	require.Equal(t, 1, store.count())
	saved := store.last()
	require.Len(t, saved.Sections, 2)
	assert.Equal(t, -1, saved.SectionIndex("b"))
}

func TestDeleteArmIsPerSection(t *testing.T) {
	e, _, _ := newTestEditor(&memStore{})
	ctx := context.Background()

	_, err := e.Delete(ctx, "a")
	require.NoError(t, err)
	deleted, err := e.Delete(ctx, "b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.False(t, e.DeleteArmed("a"))
	assert.Len(t, e.Sections(), 3)
}

func TestDeletePersistsSavedVersions(t *testing.T) {
	store := &memStore{}
	e, _, _ := newTestEditor(store)
	ctx := context.Background()

	require.NoError(t, e.BeginEdit("a", false))
	require.NoError(t, e.UpdateBuffer("a", "A", "draft text"))
	_, _ = e.Delete(ctx, "c")
	deleted, err := e.Delete(ctx, "c")
	require.NoError(t, err)
	require.True(t, deleted)

	assert.Equal(t, "alpha", contentOf(store.last(), "a"))
	assert.True(t, e.Dirty())
}

func TestAddMintsUniqueIDAndPersists(t *testing.T) {
	store := &memStore{}
	e, _, _ := newTestEditor(store)

	s, err := e.Add(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.Equal(t, "New section", s.Title)
	assert.NotContains(t, []string{"a", "b", "c"}, s.ID)

	saved := store.last()
	require.Len(t, saved.Sections, 4)
	assert.Equal(t, s, saved.Sections[3])
	assert.False(t, e.Dirty())
}

func TestAddFailureMarksDirty(t *testing.T) {
	store := &memStore{err: errors.New("down")}
	e, _, _ := newTestEditor(store)

	_, err := e.Add(context.Background(), "Extra", "text")
	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.Len(t, e.Sections(), 4)
	assert.True(t, e.Dirty())

	store.fail(nil)
	require.NoError(t, e.Save(context.Background()))
	assert.False(t, e.Dirty())
}

func TestMove(t *testing.T) {
	store := &memStore{}
	e, _, _ := newTestEditor(store)

	require.NoError(t, e.Move(context.Background(), "c", 0))
	ids := []string{}
	for _, s := range store.last().Sections {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	assert.ErrorIs(t, e.Move(context.Background(), "a", 3), ErrInvalidPosition)
	assert.ErrorIs(t, e.Move(context.Background(), "a", -1), ErrInvalidPosition)
	assert.ErrorIs(t, e.Move(context.Background(), "x", 0), ErrSectionNotFound)
}

func TestReplaceAndResume(t *testing.T) {
	store := &memStore{}
	e := NewEditor(store, EditorOptions{})
	assert.False(t, e.HasDossier())

	found, err := e.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, e.Replace(context.Background(), sampleDossier()))
	assert.False(t, e.Dirty())

	other := NewEditor(store, EditorOptions{})
	found, err = other.Resume(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, other.Sections(), 3)
	assert.False(t, other.Dirty())
}

func TestMintUniqueID(t *testing.T) {
	calls := 0
	id := MintUniqueID(func(string) bool {
		calls++
		return calls < 3
	})
	assert.NotEmpty(t, id)
	assert.Equal(t, 3, calls)
}
