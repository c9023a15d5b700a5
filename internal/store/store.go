// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists drafts and dossiers in a local SQLite database.
// It is the stand-in for the remote document store: one database holds any
// number of sessions, each with one draft and its dossiers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

const (
	defaultDataDir = "data"
	dbFile         = "dossier.db"
)

// ErrNotFound is returned when a session has no stored dossier.
var ErrNotFound = errors.New("not found")

// Store manages the SQLite database.
type Store struct {
	db      *sql.DB
	dataDir string
	now     func() time.Time
}

// Open opens or creates the database at cfg.DataDir/dossier.db and creates
// the schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dataDir: dataDir, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the directory holding the database.
func (s *Store) DataDir() string { return s.dataDir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS drafts (
			session_id TEXT PRIMARY KEY,
			answers TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dossiers (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			answers TEXT,
			context TEXT,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dossiers_session ON dossiers(session_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS dossier_sections (
			dossier_id TEXT NOT NULL REFERENCES dossiers(id) ON DELETE CASCADE,
			section_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (dossier_id, section_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Session returns the view of the store for one session.
func (s *Store) Session(id string) *SessionStore {
	return &SessionStore{store: s, sessionID: id}
}

// SessionSummary describes one stored session.
type SessionSummary struct {
	SessionID      string    `json:"session_id" yaml:"session_id"`
	Answers        int       `json:"answers" yaml:"answers"`
	DraftUpdatedAt time.Time `json:"draft_updated_at" yaml:"draft_updated_at"`
	Dossiers       int       `json:"dossiers" yaml:"dossiers"`
}

// ListSessions returns every session that has a draft, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.session_id, d.answers, d.updated_at,
			(SELECT count(*) FROM dossiers x WHERE x.session_id = d.session_id)
		FROM drafts d
		ORDER BY d.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum     SessionSummary
			answers string
			updated int64
		)
		if err := rows.Scan(&sum.SessionID, &answers, &updated, &sum.Dossiers); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		var m types.AnswerMap
		if err := json.Unmarshal([]byte(answers), &m); err == nil {
			sum.Answers = len(m)
		}
		sum.DraftUpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// SessionStore implements draft and dossier persistence for one session.
type SessionStore struct {
	store     *Store
	sessionID string
}

// SessionID returns the session this view belongs to.
func (ss *SessionStore) SessionID() string { return ss.sessionID }

// LoadDraft returns the saved AnswerMap. found is false when the session has
// never saved a draft.
func (ss *SessionStore) LoadDraft(ctx context.Context) (types.AnswerMap, bool, error) {
	var raw string
	err := ss.store.db.QueryRowContext(ctx,
		`SELECT answers FROM drafts WHERE session_id = ?`, ss.sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying draft: %w", err)
	}

	answers := types.AnswerMap{}
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, false, fmt.Errorf("decoding draft: %w", err)
	}
	if answers == nil {
		answers = types.AnswerMap{}
	}
	return answers, true, nil
}

// SaveDraft replaces the session's draft.
func (ss *SessionStore) SaveDraft(ctx context.Context, answers types.AnswerMap) error {
	if answers == nil {
		answers = types.AnswerMap{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}
	_, err = ss.store.db.ExecContext(ctx,
		`INSERT INTO drafts (session_id, answers, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET answers=excluded.answers, updated_at=excluded.updated_at`,
		ss.sessionID, string(data), ss.store.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

// SaveDossier replaces the stored dossier d.ID and its full section list.
func (ss *SessionStore) SaveDossier(ctx context.Context, d *types.Dossier) error {
	answersJSON, err := json.Marshal(d.Answers)
	if err != nil {
		return fmt.Errorf("encoding answers: %w", err)
	}
	contextJSON, err := json.Marshal(d.Context)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}
	updated := d.UpdatedAt
	if updated.IsZero() {
		updated = ss.store.now()
	}

	tx, err := ss.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT session_id FROM dossiers WHERE id = ?`, d.ID).Scan(&owner)
	if err == nil && owner != ss.sessionID {
		return fmt.Errorf("dossier %s belongs to another session", d.ID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dossiers (id, session_id, answers, context, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET answers=excluded.answers, context=excluded.context, updated_at=excluded.updated_at`,
		d.ID, ss.sessionID, string(answersJSON), string(contextJSON), updated.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upserting dossier: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dossier_sections WHERE dossier_id = ?`, d.ID); err != nil {
		return fmt.Errorf("deleting old sections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dossier_sections (dossier_id, section_id, position, title, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, sec := range d.Sections {
		if _, err := stmt.ExecContext(ctx, d.ID, sec.ID, i, sec.Title, sec.Content); err != nil {
			return fmt.Errorf("inserting section %s: %w", sec.ID, err)
		}
	}

	return tx.Commit()
}

// LoadLatestDossier returns the session's most recently saved dossier.
func (ss *SessionStore) LoadLatestDossier(ctx context.Context) (*types.Dossier, bool, error) {
	var (
		d           types.Dossier
		answersJSON sql.NullString
		contextJSON sql.NullString
		updated     int64
	)
	err := ss.store.db.QueryRowContext(ctx,
		`SELECT id, answers, context, updated_at FROM dossiers
		 WHERE session_id = ? ORDER BY updated_at DESC LIMIT 1`, ss.sessionID,
	).Scan(&d.ID, &answersJSON, &contextJSON, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying dossier: %w", err)
	}
	d.UpdatedAt = time.Unix(0, updated).UTC()

	if answersJSON.Valid && answersJSON.String != "" {
		if err := json.Unmarshal([]byte(answersJSON.String), &d.Answers); err != nil {
			return nil, false, fmt.Errorf("decoding answers: %w", err)
		}
	}
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &d.Context); err != nil {
			return nil, false, fmt.Errorf("decoding context: %w", err)
		}
	}

	rows, err := ss.store.db.QueryContext(ctx,
		`SELECT section_id, title, content FROM dossier_sections
		 WHERE dossier_id = ? ORDER BY position`, d.ID)
	if err != nil {
		return nil, false, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	d.Sections = []types.DossierSection{}
	for rows.Next() {
		var sec types.DossierSection
		if err := rows.Scan(&sec.ID, &sec.Title, &sec.Content); err != nil {
			return nil, false, fmt.Errorf("scanning section: %w", err)
		}
		d.Sections = append(d.Sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("reading sections: %w", err)
	}
	return &d, true, nil
}
