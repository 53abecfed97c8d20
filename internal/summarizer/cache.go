package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileCache is a JSON object mapping source keys to summaries. Every Put
// rewrites the whole file through a temporary file and rename.
type FileCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// OpenFileCache loads the cache at path. A missing or unreadable file starts
// an empty cache.
func OpenFileCache(path string, log *slog.Logger) *FileCache {
	if log == nil {
		log = slog.Default()
	}
	c := &FileCache{path: path, entries: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("summary cache unreadable, starting empty", "path", path, "err", err)
		}
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		log.Warn("summary cache corrupt, starting empty", "path", path, "err", err)
		c.entries = map[string]string{}
	}
	return c
}

func (c *FileCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *FileCache) Put(_ context.Context, key, summary string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had := c.entries[key]
	c.entries[key] = summary
	if err := c.flush(); err != nil {
		if had {
			c.entries[key] = prev
		} else {
			delete(c.entries, key)
		}
		return err
	}
	return nil
}

// Len reports the number of cached summaries.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *FileCache) flush() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, c.path)
}
