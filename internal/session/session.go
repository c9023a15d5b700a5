// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session ties the questionnaire, draft persistence and dossier
// editing of one candidate together behind a single facade.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/dossier-engine/internal/dossier"
	"github.com/pdiddy/dossier-engine/internal/draft"
	"github.com/pdiddy/dossier-engine/internal/notify"
	"github.com/pdiddy/dossier-engine/internal/questionnaire"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

// ErrNoGenerator is returned by operations that need text generation when
// none is configured.
var ErrNoGenerator = errors.New("text generation is not configured")

// Generator is the generation collaborator including answer suggestions.
type Generator interface {
	dossier.Generator
	SuggestAnswer(ctx context.Context, q types.Question, answers types.AnswerMap, aux types.AuxiliaryContext) (string, error)
}

// Store is the document store of one session.
type Store interface {
	draft.Store
	dossier.Store
}

// Options configures a Session.
type Options struct {
	Store     Store
	Generator Generator
	Cache     draft.Cache
	Notifier  notify.Notifier
	Logger    *slog.Logger

	DraftInterval        time.Duration
	TeardownTimeout      time.Duration
	DeleteWindow         time.Duration
	ExcludeHiddenAnswers bool
}

// Status is a snapshot of the questionnaire for display.
type Status struct {
	Index          int                           `json:"index"`
	SectionID      string                        `json:"section_id"`
	Sections       []questionnaire.SectionStatus `json:"sections"`
	GlobalProgress int                           `json:"global_progress"`
	DraftSaving    bool                          `json:"draft_saving"`
	LastSaved      time.Time                     `json:"last_saved,omitzero"`
	HasDossier     bool                          `json:"has_dossier"`
}

// Session is the state of one candidate: answers, position in the
// questionnaire, draft persistence, and the dossier once assembled.
type Session struct {
	graph     *questionnaire.Graph
	answers   *questionnaire.AnswerStore
	persister *draft.Persister
	nav       *Navigator
	editor    *dossier.Editor
	assembler *dossier.Assembler
	regen     *dossier.Regenerator
	gen       Generator
	filter    dossier.AnswerFilter
	notifier  notify.Notifier
	logger    *slog.Logger

	mu     sync.Mutex
	aux    types.AuxiliaryContext
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a session over graph. Start must be called to run the draft
// timer.
func New(graph *questionnaire.Graph, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}

	s := &Session{
		graph:    graph,
		answers:  questionnaire.NewAnswerStore(nil),
		gen:      opts.Generator,
		notifier: notifier,
		logger:   logger,
	}
	if opts.ExcludeHiddenAnswers {
		s.filter = graph.VisibleAnswers
	}

	s.persister = draft.NewPersister(opts.Store, s.answers, draft.Options{
		Cache:           opts.Cache,
		Notifier:        notifier,
		Logger:          logger.With("component", "draft"),
		Interval:        opts.DraftInterval,
		TeardownTimeout: opts.TeardownTimeout,
	})
	s.nav = NewNavigator(graph, s.answers, s.persister, logger)
	s.editor = dossier.NewEditor(opts.Store, dossier.EditorOptions{
		Notifier:     notifier,
		Logger:       logger.With("component", "dossier"),
		DeleteWindow: opts.DeleteWindow,
	})
	if opts.Generator != nil {
		s.assembler = dossier.NewAssembler(opts.Generator, s.filter, logger)
		s.regen = dossier.NewRegenerator(opts.Generator, s.editor, s.filter, notifier, logger)
	}
	return s
}

// Start runs the periodic draft save until Close.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.persister.Run(ctx)
	}()
}

// Close stops the draft timer and starts a best-effort final save. The
// returned channel closes when that save ends; callers need not wait.
func (s *Session) Close() <-chan struct{} {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return s.persister.SaveBestEffort()
}

// Resume restores the saved draft and positions the questionnaire at the
// first section that is not complete. It also loads the latest dossier so
// editing continues. found reports whether a draft existed.
func (s *Session) Resume(ctx context.Context) (found bool, err error) {
	answers, found, err := s.persister.Load(ctx)
	if err != nil {
		return false, err
	}
	if found {
		s.answers.Replace(answers)
		if err := s.nav.Goto(FirstIncomplete(s.graph, answers)); err != nil {
			return found, err
		}
	}

	if ok, err := s.editor.Resume(ctx); err != nil {
		s.logger.Warn("could not load latest dossier", "error", err)
		s.notifier.Notify(notify.KindTransient, "Your saved dossier could not be loaded right now.")
	} else if ok {
		s.logger.Info("dossier restored")
	}
	return found, nil
}

// Graph returns the question graph.
func (s *Session) Graph() *questionnaire.Graph { return s.graph }

// Answer records the answer to a question.
func (s *Session) Answer(questionID, value string) error {
	if _, ok := s.graph.Question(questionID); !ok {
		return fmt.Errorf("%w %q", questionnaire.ErrUnknownQuestion, questionID)
	}
	s.answers.Set(questionID, value)
	return nil
}

// AnswerFor returns the stored answer to a question.
func (s *Session) AnswerFor(questionID string) (string, bool) {
	return s.answers.Get(questionID)
}

// Answers returns a copy of all stored answers.
func (s *Session) Answers() types.AnswerMap { return s.answers.Snapshot() }

// VisibleQuestions returns the questions currently shown in a section.
func (s *Session) VisibleQuestions(sectionID string) ([]types.Question, error) {
	return s.graph.VisibleQuestions(sectionID, s.answers.Snapshot())
}

// Progress returns the section's progress and whether it is complete.
func (s *Session) Progress(sectionID string) (int, bool, error) {
	answers := s.answers.Snapshot()
	p, err := questionnaire.SectionProgress(s.graph, sectionID, answers)
	if err != nil {
		return 0, false, err
	}
	c, err := questionnaire.SectionComplete(s.graph, sectionID, answers)
	return p, c, err
}

// GlobalProgress returns the share of all questions answered.
func (s *Session) GlobalProgress() int {
	return questionnaire.GlobalProgress(s.graph, s.answers.Snapshot())
}

// Status returns a snapshot for display.
func (s *Session) Status() Status {
	answers := s.answers.Snapshot()
	idx := s.nav.Index()
	st := Status{
		Index:          idx,
		Sections:       questionnaire.Summarize(s.graph, answers),
		GlobalProgress: questionnaire.GlobalProgress(s.graph, answers),
		DraftSaving:    s.persister.Saving(),
		LastSaved:      s.persister.LastSaved(),
		HasDossier:     s.editor.HasDossier(),
	}
	if sec, ok := s.graph.Section(idx); ok {
		st.SectionID = sec.ID
	}
	return st
}

// Next leaves the current section. On the last section it assembles the
// dossier; a failed assembly leaves the step as a handoff so the caller can
// retry with Assemble.
func (s *Session) Next(ctx context.Context) (Step, error) {
	step, err := s.nav.Next(ctx)
	if err != nil || !step.Handoff {
		return step, err
	}
	if _, err := s.Assemble(ctx); err != nil {
		return step, err
	}
	return step, nil
}

// Previous moves back one section.
func (s *Session) Previous() int { return s.nav.Previous() }

// SetContext replaces the auxiliary generation context.
func (s *Session) SetContext(aux types.AuxiliaryContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aux = aux
}

func (s *Session) auxContext() types.AuxiliaryContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aux
}

// Assemble generates the dossier from the current answers and hands it to the
// editor. If the generated dossier cannot be stored it is still kept and the
// user is notified.
func (s *Session) Assemble(ctx context.Context) (*types.Dossier, error) {
	if s.assembler == nil {
		return nil, ErrNoGenerator
	}
	d, err := s.assembler.Assemble(ctx, s.answers.Snapshot(), s.auxContext())
	if err != nil {
		s.notifier.Notify(notify.KindError, "The dossier could not be generated. Please try again.")
		return nil, err
	}
	if err := s.editor.Replace(ctx, d); err != nil {
		s.logger.Warn("assembled dossier not stored", "dossier", d.ID, "error", err)
	}
	return d, nil
}

// Editor returns the dossier editor.
func (s *Session) Editor() *dossier.Editor { return s.editor }

// Regenerate rewrites one dossier section.
func (s *Session) Regenerate(ctx context.Context, sectionID string) (string, error) {
	if s.regen == nil {
		return "", ErrNoGenerator
	}
	return s.regen.Regenerate(ctx, sectionID)
}

// SuggestAnswer drafts an answer for a question flagged for AI assistance.
// The suggestion is returned and not stored.
func (s *Session) SuggestAnswer(ctx context.Context, questionID string) (string, error) {
	q, ok := s.graph.Question(questionID)
	if !ok {
		return "", fmt.Errorf("%w %q", questionnaire.ErrUnknownQuestion, questionID)
	}
	if !q.AIAssist {
		return "", &questionnaire.ValidationError{QuestionID: q.ID, Reason: "AI drafting is not available for this question"}
	}
	if s.gen == nil {
		return "", ErrNoGenerator
	}

	answers := s.answers.Snapshot()
	if s.filter != nil {
		answers = s.filter(answers)
	}
	text, err := s.gen.SuggestAnswer(ctx, q, answers, s.auxContext())
	if err != nil {
		return "", &dossier.GenerationError{Op: "suggesting answer", Err: err}
	}
	return text, nil
}

// SaveDraft saves the draft now.
func (s *Session) SaveDraft(ctx context.Context) error { return s.persister.Save(ctx) }
