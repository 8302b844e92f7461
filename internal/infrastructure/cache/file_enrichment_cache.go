package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
)

// FileEnrichmentCache keeps enrichment records in a single JSON file.
// Every Put rewrites the file through a temp file and a rename, so the file
// on disk always holds either the old or the new content in full.
type FileEnrichmentCache struct {
	mu      sync.RWMutex
	path    string
	window  time.Duration
	records map[string]enrichment.Record
	logger  *zap.Logger
	now     func() time.Time
	rename  func(oldpath, newpath string) error
	loadErr error
}

// NewFileEnrichmentCache loads path. A missing file is an empty cache; an
// unreadable or malformed one is logged and treated as empty.
func NewFileEnrichmentCache(path string, window time.Duration, logger *zap.Logger) *FileEnrichmentCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = enrichment.DefaultStalenessWindow
	}
	c := &FileEnrichmentCache{
		path:    path,
		window:  window,
		records: make(map[string]enrichment.Record),
		logger:  logger.Named("enrichment_cache"),
		now:     time.Now,
		rename:  os.Rename,
	}
	c.load()
	return c
}

func (c *FileEnrichmentCache) load() {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil {
		var records map[string]enrichment.Record
		if err = json.Unmarshal(data, &records); err == nil {
			if records != nil {
				c.records = records
			}
			c.logger.Info("Loaded enrichment cache",
				zap.String("path", c.path),
				zap.Int("entries", len(c.records)),
			)
			return
		}
	}

	c.loadErr = &enrichment.CacheCorruptionError{Source: c.path, Err: err}
	c.logger.Warn("Enrichment cache unreadable, starting empty",
		zap.String("path", c.path),
		zap.Error(c.loadErr),
	)
}

// LoadError returns the corruption found when the file was loaded, if any
func (c *FileEnrichmentCache) LoadError() error {
	return c.loadErr
}

// Get returns the record for productID unless it is missing or stale
func (c *FileEnrichmentCache) Get(_ context.Context, productID string) (enrichment.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.records[productID]
	if !ok || enrichment.IsStale(r, c.now(), c.window) {
		return enrichment.Record{}, false
	}
	return r, true
}

// Put stores record and persists the whole cache atomically. On failure
// neither the file nor the in-memory view changes.
func (c *FileEnrichmentCache) Put(_ context.Context, productID string, record enrichment.Record) error {
	if productID == "" {
		return fmt.Errorf("enrichment cache: empty product id")
	}
	if record.ProductID == "" {
		record.ProductID = productID
	}
	if record.FetchedAt.IsZero() {
		record.FetchedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]enrichment.Record, len(c.records)+1)
	for k, v := range c.records {
		next[k] = v
	}
	next[productID] = record

	if err := c.writeAtomic(next); err != nil {
		c.logger.Error("Failed to persist enrichment cache",
			zap.String("path", c.path),
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return err
	}
	c.records = next
	return nil
}

// Len returns the number of records held, stale ones included
func (c *FileEnrichmentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *FileEnrichmentCache) writeAtomic(records map[string]enrichment.Record) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("enrichment cache: create dir: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("enrichment cache: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("enrichment cache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("enrichment cache: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("enrichment cache: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("enrichment cache: close temp file: %w", err)
	}
	if err := c.rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("enrichment cache: replace file: %w", err)
	}
	return nil
}

var _ enrichment.Cache = (*FileEnrichmentCache)(nil)
