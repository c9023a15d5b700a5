// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package remote talks to a document store over HTTP JSON. A Client is bound
// to one session and satisfies the draft and dossier store interfaces.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/dossier-engine/internal/httputil"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

const defaultTimeout = 15 * time.Second

// TransientError marks a failure that may succeed on retry: network errors,
// throttling and 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// StatusError is a non-success response the client does not retry.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("document store returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("document store returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is the remote store of one session.
type Client struct {
	base       string
	sessionID  string
	token      string
	maxRetries int
	http       *http.Client
}

// NewClient returns a client for sessionID against cfg.RemoteURL.
func NewClient(cfg types.StoreConfig, sessionID string) (*Client, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote store URL is required")
	}
	if _, err := url.Parse(cfg.RemoteURL); err != nil {
		return nil, fmt.Errorf("parsing remote store URL: %w", err)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:       strings.TrimRight(cfg.RemoteURL, "/"),
		sessionID:  sessionID,
		token:      cfg.Token,
		maxRetries: cfg.MaxRetries,
		http:       &http.Client{Timeout: timeout},
	}, nil
}

// SessionID returns the session the client is bound to.
func (c *Client) SessionID() string { return c.sessionID }

type draftBody struct {
	Answers types.AnswerMap `json:"answers"`
}

// LoadDraft fetches the session draft. A 404 means no draft was ever saved.
func (c *Client) LoadDraft(ctx context.Context) (types.AnswerMap, bool, error) {
	var body draftBody
	found, err := c.do(ctx, "loading draft", http.MethodGet, c.sessionPath("draft"), nil, &body)
	if err != nil || !found {
		return nil, false, err
	}
	if body.Answers == nil {
		body.Answers = types.AnswerMap{}
	}
	return body.Answers, true, nil
}

// SaveDraft replaces the session draft.
func (c *Client) SaveDraft(ctx context.Context, answers types.AnswerMap) error {
	if answers == nil {
		answers = types.AnswerMap{}
	}
	_, err := c.do(ctx, "saving draft", http.MethodPut, c.sessionPath("draft"), draftBody{Answers: answers}, nil)
	return err
}

// SaveDossier replaces the stored dossier d.ID.
func (c *Client) SaveDossier(ctx context.Context, d *types.Dossier) error {
	path := c.sessionPath("dossiers", d.ID)
	_, err := c.do(ctx, "saving dossier", http.MethodPut, path, d, nil)
	return err
}

// LoadLatestDossier fetches the most recently saved dossier of the session.
func (c *Client) LoadLatestDossier(ctx context.Context) (*types.Dossier, bool, error) {
	var d types.Dossier
	found, err := c.do(ctx, "loading dossier", http.MethodGet, c.sessionPath("dossiers", "latest"), nil, &d)
	if err != nil || !found {
		return nil, false, err
	}
	return &d, true, nil
}

func (c *Client) sessionPath(parts ...string) string {
	segs := []string{c.base, "sessions", url.PathEscape(c.sessionID)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}

// do issues one request. It returns found=false for a 404 and decodes a
// success body into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, target string, in, out any) (bool, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("%s: encoding body: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return false, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.maxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return false, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return true, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("%s: parsing response: %w", op, err)
		}
		return true, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	serr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	if httputil.Retryable(resp.StatusCode) || resp.StatusCode >= 500 {
		return false, &TransientError{Op: op, Err: serr}
	}
	return false, fmt.Errorf("%s: %w", op, serr)
}
