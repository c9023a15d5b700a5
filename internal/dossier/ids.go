// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dossier

import "github.com/google/uuid"

// NewID returns a fresh random identifier.
func NewID() string { return uuid.NewString() }

// MintUniqueID returns a fresh id that taken reports as unused.
func MintUniqueID(taken func(string) bool) string {
	for {
		id := NewID()
		if !taken(id) {
			return id
		}
	}
}
