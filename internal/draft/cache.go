// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

// Cache is the local copy of the draft kept next to the session, so answers
// survive a store outage.
type Cache interface {
	Load() (types.AnswerMap, bool, error)
	Save(types.AnswerMap) error
}

// MemoryCache keeps the draft in process memory.
type MemoryCache struct {
	mu      sync.Mutex
	answers types.AnswerMap
	ok      bool
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Load() (types.AnswerMap, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok {
		return nil, false, nil
	}
	return c.answers.Clone(), true, nil
}

func (c *MemoryCache) Save(answers types.AnswerMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = answers.Clone()
	c.ok = true
	return nil
}

// cacheFile is the on-disk layout of a FileCache.
type cacheFile struct {
	Answers types.AnswerMap `yaml:"answers"`
}

// FileCache stores the draft as a YAML file.
type FileCache struct {
	mu   sync.Mutex
	path string
}

// NewFileCache returns a cache backed by path. The parent directory is
// created on first save.
func NewFileCache(path string) *FileCache { return &FileCache{path: path} }

func (c *FileCache) Load() (types.AnswerMap, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading draft cache: %w", err)
	}
	var f cacheFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, false, fmt.Errorf("parsing draft cache: %w", err)
	}
	if f.Answers == nil {
		f.Answers = types.AnswerMap{}
	}
	return f.Answers, true, nil
}

// Save writes the file atomically through a temp file and rename.
func (c *FileCache) Save(answers types.AnswerMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := yaml.Marshal(cacheFile{Answers: answers})
	if err != nil {
		return fmt.Errorf("marshaling draft cache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing draft cache: %w", err)
	}
	return os.Rename(tmp, c.path)
}
