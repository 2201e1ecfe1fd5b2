package driver

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"svelab/internal/diag"
	"svelab/internal/elab"
	"svelab/internal/project"
)

// Current schema version - increment when DumpPayload format changes
const dumpCacheSchemaVersion uint16 = 1

// DumpCache хранит дампы иерархии по ключу входных данных на диске.
// Thread-safe for concurrent access.
type DumpCache struct {
	mu  sync.RWMutex
	dir string
}

// DumpPayload is one cached elaboration: the hierarchy dump and the sorted
// diagnostics. Spans stay valid because file ids are assigned in load order
// and the key covers every loaded file.
type DumpPayload struct {
	Schema      uint16
	Files       []string
	Root        *elab.DumpNode
	Diagnostics []diag.Diagnostic
}

// OpenDumpCache initializes a cache under $XDG_CACHE_HOME/app, falling back
// to ~/.cache/app.
func OpenDumpCache(app string) (*DumpCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return NewDumpCache(filepath.Join(base, app))
}

// NewDumpCache opens a cache rooted at dir.
func NewDumpCache(dir string) (*DumpCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DumpCache{dir: dir}, nil
}

func (c *DumpCache) pathFor(key project.Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, "dumps", hexKey+".mp")
}

// Put serializes and writes a payload to the cache.
func (c *DumpCache) Put(key project.Digest, payload *DumpPayload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads a payload. A missing entry is not an error.
func (c *DumpCache) Get(key project.Digest, out *DumpPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// DropAll removes every cached dump.
func (c *DumpCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
