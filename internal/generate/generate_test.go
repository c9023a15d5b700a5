// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

func TestMain(m *testing.M) {
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// scriptedBackend returns its responses in order, repeating the last one.
type scriptedBackend struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Complete(_ context.Context, req Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.calls
	b.calls++
	b.prompts = append(b.prompts, req.Prompt)
	if i < len(b.errs) && b.errs[i] != nil {
		return "", b.errs[i]
	}
	if i >= len(b.responses) {
		i = len(b.responses) - 1
	}
	return b.responses[i], nil
}

func testSet() *types.QuestionSet {
	return &types.QuestionSet{Sections: []types.Section{
		{ID: "profile", Title: "Profile", Questions: []types.Question{
			{ID: "name", Text: "What is your full name?", Kind: types.KindText},
			{ID: "role", Text: "What is your current role?", Kind: types.KindText},
		}},
	}}
}

func TestGenerateDossier(t *testing.T) {
	backend := &scriptedBackend{responses: []string{"```json\n" + `[{"title":" Background ","content":"I am Ada."},{"title":"Practice","content":"I design engines."}]` + "\n```"}}
	g := NewLLMGenerator(backend, testSet(), types.GenerationConfig{}, nil)

	answers := types.AnswerMap{"role": "Engineer", "name": "Ada", "extra": "note", "blank": "  "}
	aux := types.AuxiliaryContext{Documents: []types.DocumentRef{{Name: "cv.pdf", Summary: "Ten years of practice"}}}

	got, err := g.GenerateDossier(context.Background(), answers, aux)
	require.NoError(t, err)
	assert.Equal(t, []types.GeneratedSection{
		{Title: "Background", Content: "I am Ada."},
		{Title: "Practice", Content: "I design engines."},
	}, got)

	require.Len(t, backend.prompts, 1)
	prompt := backend.prompts[0]
	assert.Contains(t, prompt, "- What is your full name?: Ada\n- What is your current role?: Engineer\n- extra: note")
	assert.NotContains(t, prompt, "blank")
	assert.Contains(t, prompt, "- cv.pdf: Ten years of practice")
}

func TestGenerateDossierRetriesMalformedOutput(t *testing.T) {
	backend := &scriptedBackend{
		errs:      []error{errors.New("503 overloaded")},
		responses: []string{"", "Sure! Here is your dossier.", `[{"title":"A","content":"a"}]`},
	}
	g := NewLLMGenerator(backend, nil, types.GenerationConfig{}, nil)

	got, err := g.GenerateDossier(context.Background(), types.AnswerMap{"q": "v"}, types.AuxiliaryContext{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, backend.calls)
}

func TestGenerateDossierRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty array", `[]`},
		{"missing title", `[{"content":"x"}]`},
		{"empty title", `[{"title":"","content":"x"}]`},
		{"object instead of array", `{"title":"x","content":"y"}`},
		{"not json", `here you go`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &scriptedBackend{responses: []string{tt.raw}}
			g := NewLLMGenerator(backend, nil, types.GenerationConfig{AIConfig: types.AIConfig{MaxRetries: 1}}, nil)

			_, err := g.GenerateDossier(context.Background(), types.AnswerMap{}, types.AuxiliaryContext{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOutput)
			assert.Equal(t, 2, backend.calls)
		})
	}
}

func TestGenerateDossierHonorsContext(t *testing.T) {
	backend := &scriptedBackend{responses: []string{"nope"}}
	g := NewLLMGenerator(backend, nil, types.GenerationConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.GenerateDossier(ctx, types.AnswerMap{}, types.AuxiliaryContext{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegenerateSection(t *testing.T) {
	backend := &scriptedBackend{responses: []string{`{"content":"Fresh text."}`}}
	g := NewLLMGenerator(backend, testSet(), types.GenerationConfig{}, nil)

	got, err := g.RegenerateSection(context.Background(), "Background", types.AnswerMap{"name": "Ada"}, types.AuxiliaryContext{})
	require.NoError(t, err)
	assert.Equal(t, "Fresh text.", got)
	assert.Contains(t, backend.prompts[0], "Section title: Background")
}

func TestSuggestAnswer(t *testing.T) {
	backend := &scriptedBackend{responses: []string{`{"answer":"  Lead engineer.  "}`}}
	g := NewLLMGenerator(backend, testSet(), types.GenerationConfig{}, nil)

	q := types.Question{ID: "role", Text: "What is your current role?"}
	got, err := g.SuggestAnswer(context.Background(), q, types.AnswerMap{}, types.AuxiliaryContext{})
	require.NoError(t, err)
	assert.Equal(t, "Lead engineer.", got)
	assert.Contains(t, backend.prompts[0], "Question: What is your current role?")
	assert.Contains(t, backend.prompts[0], "(none)")
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`[1]`, `[1]`},
		{"  {\"a\":1}\n", `{"a":1}`},
		{"```json\n[1]\n```", `[1]`},
		{"```\n[1]\n```  ", `[1]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFence(tt.in))
	}
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	_, err := NewBackend(ctx, Config{Provider: ProviderOpenAI})
	assert.ErrorContains(t, err, "API key is required")

	_, err = NewBackend(ctx, Config{Provider: "palm", APIKey: "k"})
	assert.ErrorContains(t, err, "unknown generation provider")

	b, err := NewBackend(ctx, Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, b.Name())

	b, err = NewBackend(ctx, Config{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, b.Name())
}

func TestAnthropicBackend(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": "hello"}},
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	b := NewAnthropicBackend(Config{APIKey: "test-key", Model: "claude-test", BaseURL: srv.URL})
	got, err := b.Complete(context.Background(), Request{System: "be brief", Prompt: "hi", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, 64, body["max_tokens"])
	assert.NotEmpty(t, body["system"])
}

func TestOpenAIBackend(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "hello"},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	b := NewOpenAIBackend(Config{APIKey: "test-key", Model: "gpt-test", BaseURL: srv.URL})
	got, err := b.Complete(context.Background(), Request{System: "be brief", Prompt: "hi", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, "gpt-test", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)
}

func TestGeminiBackend(t *testing.T) {
	var req struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		SystemInstruction *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"systemInstruction"`
		GenerationConfig struct {
			MaxOutputTokens int `json:"maxOutputTokens"`
		} `json:"generationConfig"`
	}
	var (
		mu    sync.Mutex
		path  string
		reply = "hello"
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		candidates := []map[string]any{}
		if reply != "" {
			candidates = append(candidates, map[string]any{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": reply}}},
				"finishReason": "STOP",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"candidates": candidates})
	}))
	defer srv.Close()

	ctx := context.Background()
	b, err := NewGeminiBackend(ctx, Config{APIKey: "test-key", Model: "gemini-test", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, b.Name())

	got, err := b.Complete(ctx, Request{System: "be brief", Prompt: "hi", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	mu.Lock()
	assert.Contains(t, path, "models/gemini-test:generateContent")
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "user", req.Contents[0].Role)
	require.Len(t, req.Contents[0].Parts, 1)
	assert.Equal(t, "hi", req.Contents[0].Parts[0].Text)
	require.NotNil(t, req.SystemInstruction)
	require.Len(t, req.SystemInstruction.Parts, 1)
	assert.Equal(t, "be brief", req.SystemInstruction.Parts[0].Text)
	assert.Equal(t, 64, req.GenerationConfig.MaxOutputTokens)
	reply = ""
	mu.Unlock()

	_, err = b.Complete(ctx, Request{Prompt: "hi", MaxTokens: 64})
	assert.ErrorContains(t, err, "no text content")
}
