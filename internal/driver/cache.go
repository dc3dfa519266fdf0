package driver

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"p8sync/internal/cartsync"
	"p8sync/internal/source"
)

// Current schema version - increment when Entry format changes
const cacheSchemaVersion uint16 = 1

// DiskCache хранит запись о последней успешной синхронизации каждой пары.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Entry is what the cache remembers about one companion/cartridge pair.
type Entry struct {
	Schema uint16

	Lua  string
	Cart string

	// Options is a fingerprint of the preprocessor options the sync ran with.
	Options source.Digest

	Source        source.Digest
	IncludePaths  []string
	IncludeHashes []source.Digest

	// CartHash is the hash of the cartridge bytes right after the sync.
	CartHash source.Digest

	Time time.Time
}

// Snapshot is the current on-disk state of the files an Entry refers to.
type Snapshot struct {
	Options       source.Digest
	Source        source.Digest
	IncludeHashes []source.Digest
	CartHash      source.Digest
}

// OpenDiskCache initializes a disk cache under $XDG_CACHE_HOME/<app>
// (or ~/.cache/<app>).
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt uses dir as the cache root.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *DiskCache) pathFor(luaPath string) string {
	key := source.Sum([]byte(absPath(luaPath)))
	return filepath.Join(c.dir, "pairs", hex.EncodeToString(key[:])+".mp")
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Put serializes and writes an entry for luaPath.
func (c *DiskCache) Put(luaPath string, entry *Entry) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(luaPath)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "failed to remove temp file: %v\n", rmErr)
		}
	}()

	entry.Schema = cacheSchemaVersion
	if err := msgpack.NewEncoder(f).Encode(entry); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads the entry for luaPath. A missing entry or one written with a
// different schema reports false.
func (c *DiskCache) Get(luaPath string, out *Entry) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(luaPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, err
	}
	return out.Schema == cacheSchemaVersion, nil
}

// Drop removes the entry for luaPath, if any.
func (c *DiskCache) Drop(luaPath string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.pathFor(luaPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DropAll removes every entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}

// EntryFromReport builds the cache entry for a successful sync.
func EntryFromReport(rep cartsync.Report, options source.Digest) *Entry {
	e := &Entry{
		Lua:      rep.Lua,
		Cart:     rep.Cart,
		Options:  options,
		Source:   rep.Source,
		CartHash: rep.CartHash,
		Time:     time.Now(),
	}
	for _, inc := range rep.Includes {
		e.IncludePaths = append(e.IncludePaths, inc.Path)
		e.IncludeHashes = append(e.IncludeHashes, inc.Hash)
	}
	return e
}

// Fresh reports whether nothing the entry depends on has changed.
func Fresh(e *Entry, s Snapshot) bool {
	if e == nil || e.Schema != cacheSchemaVersion {
		return false
	}
	return e.Options == s.Options &&
		e.Source == s.Source &&
		e.CartHash == s.CartHash &&
		slices.Equal(e.IncludeHashes, s.IncludeHashes)
}

// TakeSnapshot hashes the files recorded in e as they are now. Text files
// go through a FileSet so the hashes match what a sync would compute.
func TakeSnapshot(e *Entry, options source.Digest) (Snapshot, error) {
	s := Snapshot{Options: options}
	files := source.NewFileSet()

	id, err := files.Load(e.Lua)
	if err != nil {
		return s, err
	}
	s.Source = files.Get(id).Hash

	for _, p := range e.IncludePaths {
		id, err := files.Load(p)
		if err != nil {
			return s, err
		}
		s.IncludeHashes = append(s.IncludeHashes, files.Get(id).Hash)
	}

	// #nosec G304 -- path recorded by a previous sync
	raw, err := os.ReadFile(e.Cart)
	if err != nil {
		return s, err
	}
	s.CartHash = source.Sum(raw)
	return s, nil
}

// OptionsKey fingerprints the options that change sync output.
func OptionsKey(opts cartsync.Options) source.Digest {
	defines := slices.Clone(opts.Defines)
	slices.Sort(defines)
	key := fmt.Sprintf("defines=%q mode=%s depth=%d", defines, opts.Mode, opts.MaxDepth)
	return source.Sum([]byte(key))
}
