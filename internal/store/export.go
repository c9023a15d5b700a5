// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

const exportDir = "exports"

// ExportEntry is the exported form of a dossier.
type ExportEntry struct {
	SessionID string                 `json:"session_id" yaml:"session_id"`
	DossierID string                 `json:"dossier_id" yaml:"dossier_id"`
	UpdatedAt string                 `json:"updated_at" yaml:"updated_at"`
	Sections  []types.DossierSection `json:"sections" yaml:"sections"`
	Documents []types.DocumentRef    `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// ExportYAML writes the latest dossier to dataDir/exports/<session>.yaml and
// returns the path. It returns ErrNotFound when the session has no dossier.
func (ss *SessionStore) ExportYAML(ctx context.Context) (string, error) {
	entry, err := ss.exportEntry(ctx)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return ss.writeExport(".yaml", data)
}

// ExportJSON writes the latest dossier to dataDir/exports/<session>.json and
// returns the path.
func (ss *SessionStore) ExportJSON(ctx context.Context) (string, error) {
	entry, err := ss.exportEntry(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return ss.writeExport(".json", data)
}

func (ss *SessionStore) exportEntry(ctx context.Context) (*ExportEntry, error) {
	d, found, err := ss.LoadLatestDossier(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("dossier for session %s: %w", ss.sessionID, ErrNotFound)
	}
	return &ExportEntry{
		SessionID: ss.sessionID,
		DossierID: d.ID,
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
		Sections:  d.Sections,
		Documents: d.Context.Documents,
	}, nil
}

func (ss *SessionStore) writeExport(ext string, data []byte) (string, error) {
	dir := filepath.Join(ss.store.dataDir, exportDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, ss.sessionID+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}
