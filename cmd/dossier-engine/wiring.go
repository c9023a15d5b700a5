// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdiddy/dossier-engine/internal/draft"
	"github.com/pdiddy/dossier-engine/internal/generate"
	"github.com/pdiddy/dossier-engine/internal/questionnaire"
	"github.com/pdiddy/dossier-engine/internal/remote"
	"github.com/pdiddy/dossier-engine/internal/session"
	"github.com/pdiddy/dossier-engine/internal/store"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

// loadGraph reads the question set and builds its graph.
func loadGraph(cfg types.Config) (*questionnaire.Graph, error) {
	set, err := questionnaire.LoadQuestionSet(cfg.Questions.Path)
	if err != nil {
		return nil, err
	}
	return questionnaire.NewGraph(set)
}

// openSessionStore returns the document store of the configured session and
// a func that releases it.
func openSessionStore(cfg types.Config) (session.Store, func() error, error) {
	switch cfg.Store.Backend {
	case types.StoreSQLite, "":
		db, err := store.Open(cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		return db.Session(cfg.Draft.SessionID), db.Close, nil
	case types.StoreRemote:
		c, err := remote.NewClient(cfg.Store, cfg.Draft.SessionID)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q: use sqlite or remote", cfg.Store.Backend)
}

// newGenerator builds the text generator. Without credentials it returns nil
// so the server still runs the questionnaire.
func newGenerator(ctx context.Context, cfg types.Config, graph *questionnaire.Graph, logger *slog.Logger) (session.Generator, error) {
	if cfg.Generation.APIKey == "" {
		logger.Warn("no generation API key configured; dossier assembly is disabled",
			"provider", cfg.Generation.Provider)
		return nil, nil
	}
	backend, err := generate.NewBackend(ctx, generate.Config{
		Provider: cfg.Generation.Provider,
		Model:    cfg.Generation.Model,
		APIKey:   cfg.Generation.APIKey,
		BaseURL:  cfg.Generation.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("text generation ready", "backend", backend.Name())
	return generate.NewLLMGenerator(backend, graph.QuestionSet(), cfg.Generation, logger.With("component", "generate")), nil
}

// draftCache returns the local draft cache for cfg.
func draftCache(cfg types.DraftConfig) draft.Cache {
	if cfg.CachePath == "" {
		return draft.NewMemoryCache()
	}
	return draft.NewFileCache(cfg.CachePath)
}
