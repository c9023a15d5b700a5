// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

const (
	defaultMaxRetries = 3
	defaultMaxTokens  = 8192
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// LLMGenerator produces dossier text through a Backend.
type LLMGenerator struct {
	backend    Backend
	maxRetries int
	maxTokens  int
	timeout    time.Duration
	logger     *slog.Logger

	// order and labels come from the question set so prompts read as
	// "question text: answer" in questionnaire order.
	order  []string
	labels map[string]string
}

// NewLLMGenerator creates a generator. set may be nil, in which case answers
// are labeled by question id.
func NewLLMGenerator(backend Backend, set *types.QuestionSet, cfg types.GenerationConfig, logger *slog.Logger) *LLMGenerator {
	g := &LLMGenerator{
		backend:    backend,
		maxRetries: cfg.MaxRetries,
		maxTokens:  cfg.MaxTokens,
		timeout:    cfg.Timeout,
		logger:     logger,
		labels:     map[string]string{},
	}
	if g.maxRetries <= 0 {
		g.maxRetries = defaultMaxRetries
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if set != nil {
		for _, sec := range set.Sections {
			for _, q := range sec.Questions {
				g.order = append(g.order, q.ID)
				g.labels[q.ID] = q.Text
			}
		}
	}
	return g
}

// GenerateDossier asks for the whole dossier as ordered (title, content) pairs.
func (g *LLMGenerator) GenerateDossier(ctx context.Context, answers types.AnswerMap, aux types.AuxiliaryContext) ([]types.GeneratedSection, error) {
	prompt, err := render(dossierPromptTmpl, promptData{
		Answers:   g.answerLines(answers),
		Documents: aux.Documents,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	sections, err := callWithRetry(ctx, g, prompt, func(raw string) ([]types.GeneratedSection, error) {
		var out []types.GeneratedSection
		if err := decodeValidated(sectionsValidator, raw, &out); err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Title = strings.TrimSpace(out[i].Title)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("generating dossier: %w", err)
	}
	g.logger.Info("dossier generated", "backend", g.backend.Name(), "sections", len(sections))
	return sections, nil
}

// RegenerateSection asks for new content for one titled section.
func (g *LLMGenerator) RegenerateSection(ctx context.Context, title string, answers types.AnswerMap, aux types.AuxiliaryContext) (string, error) {
	prompt, err := render(sectionPromptTmpl, promptData{
		Title:     title,
		Answers:   g.answerLines(answers),
		Documents: aux.Documents,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	content, err := callWithRetry(ctx, g, prompt, func(raw string) (string, error) {
		var out struct {
			Content string `json:"content"`
		}
		if err := decodeValidated(contentValidator, raw, &out); err != nil {
			return "", err
		}
		return out.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("regenerating section %q: %w", title, err)
	}
	return content, nil
}

// SuggestAnswer drafts an answer to question from the answers given so far.
func (g *LLMGenerator) SuggestAnswer(ctx context.Context, question types.Question, answers types.AnswerMap, aux types.AuxiliaryContext) (string, error) {
	prompt, err := render(suggestPromptTmpl, promptData{
		Question:  question.Text,
		Answers:   g.answerLines(answers),
		Documents: aux.Documents,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	answer, err := callWithRetry(ctx, g, prompt, func(raw string) (string, error) {
		var out struct {
			Answer string `json:"answer"`
		}
		if err := decodeValidated(answerValidator, raw, &out); err != nil {
			return "", err
		}
		return strings.TrimSpace(out.Answer), nil
	})
	if err != nil {
		return "", fmt.Errorf("suggesting answer for %s: %w", question.ID, err)
	}
	return answer, nil
}

// callWithRetry calls the backend with exponential backoff. A response that
// fails decode counts as a failed attempt.
func callWithRetry[T any](ctx context.Context, g *LLMGenerator, prompt string, decode func(string) (T, error)) (T, error) {
	var zero T
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := Request{System: systemPrompt, Prompt: prompt, MaxTokens: g.maxTokens}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, err := g.backend.Complete(ctx, req)
		if err == nil {
			var out T
			out, err = decode(raw)
			if err == nil {
				return out, nil
			}
		}
		g.logger.Warn("generation attempt failed", "backend", g.backend.Name(), "attempt", attempt+1, "error", err)
		lastErr = err
	}
	return zero, fmt.Errorf("after %d retries: %w", g.maxRetries, lastErr)
}
