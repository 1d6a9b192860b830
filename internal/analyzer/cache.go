package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/antmicro/renode-models-analyzer/internal/report"
)

const cacheIndexVersion = 1

type cacheEntry struct {
	ContentHash     string `json:"content_hash"`
	ReportsPath     string `json:"reports_path"`
	ParserVersion   string `json:"parser_version"`
	ResolverVersion string `json:"resolver_version"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// reportsCache persists per-file peripheral reports keyed by content hash, so
// unchanged files skip parsing and resolution entirely.
type reportsCache struct {
	dir             string
	parserVersion   string
	resolverVersion string
	mu              sync.Mutex
	index           cacheIndex
}

func newReportsCache(dir, parserVersion, resolverVersion string) *reportsCache {
	return &reportsCache{
		dir:             dir,
		parserVersion:   parserVersion,
		resolverVersion: resolverVersion,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *reportsCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *reportsCache) reportsDir() string {
	return filepath.Join(c.dir, "reports")
}

func (c *reportsCache) reportsPathForFile(filePath string) string {
	h := sha256.Sum256([]byte(filePath))
	return filepath.Join(c.reportsDir(), hex.EncodeToString(h[:])+".json")
}

func (c *reportsCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	path := c.indexPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// Reset on version mismatch
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *reportsCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

func (c *reportsCache) Get(filePath, contentHash string) ([]report.PeripheralReport, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[filePath]
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	if entry.ContentHash != contentHash {
		return nil, false, nil
	}
	if entry.ParserVersion != c.parserVersion || entry.ResolverVersion != c.resolverVersion {
		return nil, false, nil
	}

	data, err := os.ReadFile(entry.ReportsPath)
	if err != nil {
		return nil, false, fmt.Errorf("read cached reports: %w", err)
	}
	var reports []report.PeripheralReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, false, fmt.Errorf("parse cached reports: %w", err)
	}
	return reports, true, nil
}

func (c *reportsCache) Put(filePath, contentHash string, reports []report.PeripheralReport) error {
	reportsPath := c.reportsPathForFile(filePath)
	if err := os.MkdirAll(filepath.Dir(reportsPath), 0o755); err != nil {
		return fmt.Errorf("cache reports dir: %w", err)
	}
	if err := writeJSONAtomic(reportsPath, reports); err != nil {
		return err
	}

	c.mu.Lock()
	c.index.Entries[filePath] = cacheEntry{
		ContentHash:     contentHash,
		ReportsPath:     reportsPath,
		ParserVersion:   c.parserVersion,
		ResolverVersion: c.resolverVersion,
	}
	c.mu.Unlock()
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
