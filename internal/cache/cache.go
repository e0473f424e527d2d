// Package cache keeps parsed input tables so repeated runs over unchanged
// files skip re-parsing.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ppiankov/floodclaims/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyVersion is bumped whenever the cached table encoding changes
const keyVersion = "floodclaims:tables:v1:"

// TableKey derives a cache key from a table file's identity: absolute path,
// size, modification time and the delimiter it is parsed with.
func TableKey(path string, info os.FileInfo, delim rune) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	h := sha256.New()
	h.Write([]byte(abs))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(string(delim)))
	return keyVersion + hex.EncodeToString(h.Sum(nil))
}

// TableCache stores parsed tables in an underlying byte cache
type TableCache struct {
	backend Cache
}

// NewTableCache wraps a byte cache
func NewTableCache(backend Cache) *TableCache {
	return &TableCache{backend: backend}
}

// Get returns a cached table, or false when absent or undecodable
func (c *TableCache) Get(key string) (*model.Table, bool) {
	data, ok := c.backend.Get(key)
	if !ok {
		return nil, false
	}
	var t model.Table
	if err := json.Unmarshal(data, &t); err != nil {
		_ = c.backend.Delete(key)
		return nil, false
	}
	return model.NewTableWithRows(t.Name, t.Key, t.Columns, t.Rows), true
}

// Set stores a table
func (c *TableCache) Set(key string, t *model.Table) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal table %s: %w", t.Name, err)
	}
	return c.backend.Set(key, data, 0)
}
