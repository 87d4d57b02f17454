// Package pcache keeps decoded programs on disk, keyed by the SHA-256 of
// their source text, so repeated runs skip parsing.
package pcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"dlvm/internal/bytecode"
)

// Bump when Payload or bytecode.Instr changes shape.
const schemaVersion uint16 = 1

// Digest is the SHA-256 of a program's source.
type Digest [sha256.Size]byte

// Key hashes program source.
func Key(src []byte) Digest {
	return sha256.Sum256(src)
}

// Payload is what a cache file holds.
type Payload struct {
	Schema  uint16            `msgpack:"schema"`
	Program *bytecode.Program `msgpack:"program"`
}

// Cache is a directory of msgpack payloads. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Open returns the cache under $XDG_CACHE_HOME/<app>, falling back to
// ~/.cache/<app>.
func Open(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDir(filepath.Join(base, app))
}

// OpenDir returns a cache rooted at dir, creating it if needed.
func OpenDir(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "progs", hex.EncodeToString(key[:])+".mp")
}

// Put writes prog atomically.
func (c *Cache) Put(key Digest, prog *bytecode.Program) error {
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
	tmp := f.Name()
	defer os.Remove(tmp) //nolint:errcheck // gone after a successful rename

	if err := msgpack.NewEncoder(f).Encode(&Payload{Schema: schemaVersion, Program: prog}); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Get reads a cached program. A missing, stale or corrupt entry is a miss;
// only I/O failures other than absence are errors.
func (c *Cache) Get(key Digest) (*bytecode.Program, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var payload Payload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, false, nil
	}
	if payload.Schema != schemaVersion || payload.Program == nil {
		return nil, false, nil
	}
	if payload.Program.Labels == nil {
		payload.Program.Labels = map[string]int{}
	}
	return payload.Program, true, nil
}

// Load reads the program at path through the cache. hit reports whether
// parsing was skipped. Load errors are never cached.
func (c *Cache) Load(path string) (prog *bytecode.Program, hit bool, err error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read program: %w", err)
	}
	key := Key(src)
	if prog, ok, err := c.Get(key); err == nil && ok {
		prog.Name = path
		return prog, true, nil
	}
	prog, err = bytecode.Parse(path, src)
	if err != nil {
		return nil, false, err
	}
	if err := c.Put(key, prog); err != nil {
		return prog, false, fmt.Errorf("failed to write program cache: %w", err)
	}
	return prog, false, nil
}

// DropAll removes every cached entry.
func (c *Cache) DropAll() error {
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
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
