// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package draft keeps a remote copy of the in-progress AnswerMap roughly in
// sync with the session. Saves are triggered by a timer, by forward section
// transitions, and best-effort on shutdown; concurrent triggers share the
// save already in flight.
package draft

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/dossier-engine/internal/notify"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

const (
	// DefaultInterval is the periodic save cadence.
	DefaultInterval = 30 * time.Second

	defaultTeardownTimeout = 2 * time.Second
	flightKey              = "draft"
)

// Store is the remote side of draft persistence.
type Store interface {
	// LoadDraft returns the last saved AnswerMap. found is false when no
	// draft exists, which is different from an empty saved draft.
	LoadDraft(ctx context.Context) (answers types.AnswerMap, found bool, err error)

	// SaveDraft replaces the stored draft. Saving the same map twice leaves
	// the store in the same state.
	SaveDraft(ctx context.Context, answers types.AnswerMap) error
}

// Source provides the answers to persist.
type Source interface {
	Snapshot() types.AnswerMap
	Version() uint64
}

// Options configures a Persister. Zero values pick defaults.
type Options struct {
	Cache           Cache
	Notifier        notify.Notifier
	Logger          *slog.Logger
	Interval        time.Duration
	TeardownTimeout time.Duration
}

// Persister synchronizes a Source to a Store.
type Persister struct {
	store           Store
	source          Source
	cache           Cache
	notifier        notify.Notifier
	logger          *slog.Logger
	interval        time.Duration
	teardownTimeout time.Duration

	flight singleflight.Group

	mu           sync.Mutex
	saving       bool
	lastSaved    time.Time
	savedVersion uint64
	everSaved    bool
}

// NewPersister creates a Persister for source.
func NewPersister(store Store, source Source, opts Options) *Persister {
	p := &Persister{
		store:           store,
		source:          source,
		cache:           opts.Cache,
		notifier:        opts.Notifier,
		logger:          opts.Logger,
		interval:        opts.Interval,
		teardownTimeout: opts.TeardownTimeout,
	}
	if p.cache == nil {
		p.cache = NewMemoryCache()
	}
	if p.notifier == nil {
		p.notifier = notify.Discard
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.teardownTimeout <= 0 {
		p.teardownTimeout = defaultTeardownTimeout
	}
	return p
}

// Save persists the current answers. If a save is already running, the call
// waits for it and returns its result instead of starting another.
func (p *Persister) Save(ctx context.Context) error {
	_, err, _ := p.flight.Do(flightKey, func() (any, error) {
		return nil, p.save(ctx)
	})
	return err
}

func (p *Persister) save(ctx context.Context) error {
	p.setSaving(true)
	defer p.setSaving(false)

	version := p.source.Version()
	answers := p.source.Snapshot()

	if err := p.cache.Save(answers); err != nil {
		p.logger.Warn("draft cache write failed", "error", err)
	}

	if err := p.store.SaveDraft(ctx, answers); err != nil {
		p.logger.Warn("draft save failed", "error", err)
		p.notifier.Notify(notify.KindTransient, "Your draft could not be saved. We will try again shortly.")
		return fmt.Errorf("saving draft: %w", err)
	}

	p.mu.Lock()
	p.lastSaved = time.Now()
	p.savedVersion = version
	p.everSaved = true
	p.mu.Unlock()

	p.logger.Debug("draft saved", "answers", len(answers))
	return nil
}

// Tick is the timer trigger. It saves only when the answers changed since the
// last successful save, so a failed save is retried on the next tick.
func (p *Persister) Tick(ctx context.Context) error {
	p.mu.Lock()
	upToDate := p.everSaved && p.savedVersion == p.source.Version()
	p.mu.Unlock()
	if upToDate {
		return nil
	}
	return p.Save(ctx)
}

// Run calls Tick on every interval until ctx is done. Errors are already
// reported through the notifier and never stop the loop.
func (p *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Tick(ctx)
		}
	}
}

// SaveBestEffort starts a save on shutdown without waiting for it. The
// returned channel closes when the attempt ends; callers may ignore it.
// Failures are logged only.
func (p *Persister) SaveBestEffort() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), p.teardownTimeout)
		defer cancel()
		if err := p.Save(ctx); err != nil {
			p.logger.Debug("teardown draft save abandoned", "error", err)
		}
	}()
	return done
}

// Load returns the last saved draft. When the store is unreachable it falls
// back to the local cache and tells the user.
func (p *Persister) Load(ctx context.Context) (types.AnswerMap, bool, error) {
	answers, found, err := p.store.LoadDraft(ctx)
	if err == nil {
		if found {
			if cerr := p.cache.Save(answers); cerr != nil {
				p.logger.Warn("draft cache write failed", "error", cerr)
			}
		}
		return answers, found, nil
	}

	p.logger.Warn("draft load failed, trying local cache", "error", err)
	cached, ok, cerr := p.cache.Load()
	if cerr == nil && ok {
		p.notifier.Notify(notify.KindTransient, "Could not reach the server; continuing from your locally saved answers.")
		return cached, true, nil
	}
	return nil, false, fmt.Errorf("loading draft: %w", err)
}

// Saving reports whether a save is in flight.
func (p *Persister) Saving() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saving
}

// LastSaved returns the time of the last successful save.
func (p *Persister) LastSaved() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSaved
}

func (p *Persister) setSaving(v bool) {
	p.mu.Lock()
	p.saving = v
	p.mu.Unlock()
}
