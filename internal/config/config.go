// Package config reads p8sync.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"p8sync/internal/cartsync"
	"p8sync/internal/preproc"
	"p8sync/internal/watch"
)

// FileName is the name looked up by Find.
const FileName = "p8sync.toml"

type Config struct {
	Preprocess PreprocessConfig `toml:"preprocess"`
	Sync       SyncConfig       `toml:"sync"`
	Watch      WatchConfig      `toml:"watch"`
}

type PreprocessConfig struct {
	Defines         []string `toml:"defines"`
	NestedIncludes  bool     `toml:"nested_includes"`
	MaxIncludeDepth int      `toml:"max_include_depth"`
}

type SyncConfig struct {
	Backup       bool   `toml:"backup"`
	BackupSuffix string `toml:"backup_suffix"`
	Cache        bool   `toml:"cache"`
}

type WatchConfig struct {
	Recursive bool     `toml:"recursive"`
	Debounce  Duration `toml:"debounce"`
}

// Duration decodes TOML strings such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is found. Fields
// missing from a file keep these values.
func Default() Config {
	return Config{
		Preprocess: PreprocessConfig{MaxIncludeDepth: preproc.DefaultMaxDepth},
		Sync:       SyncConfig{Backup: true, BackupSuffix: ".bak", Cache: true},
		Watch:      WatchConfig{Recursive: true, Debounce: Duration{watch.DefaultDebounce}},
	}
}

// File is a loaded p8sync.toml.
type File struct {
	Path   string
	Root   string // directory holding the file
	Config Config
}

// Find walks up from startDir looking for p8sync.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the nearest p8sync.toml. When there is none it
// returns a File with an empty Path and the defaults.
func Discover(startDir string) (*File, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &File{Config: Default()}, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &File{Path: path, Root: filepath.Dir(path), Config: cfg}, nil
}

// Load decodes path on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("preprocess", "max_include_depth") && cfg.Preprocess.MaxIncludeDepth < 1 {
		return Config{}, fmt.Errorf("%s: [preprocess].max_include_depth must be at least 1", path)
	}
	for _, d := range cfg.Preprocess.Defines {
		if strings.TrimSpace(d) == "" {
			return Config{}, fmt.Errorf("%s: [preprocess].defines contains an empty label", path)
		}
	}
	if meta.IsDefined("sync", "backup_suffix") && strings.TrimSpace(cfg.Sync.BackupSuffix) == "" {
		return Config{}, fmt.Errorf("%s: [sync].backup_suffix must not be empty", path)
	}
	if cfg.Watch.Debounce.Duration < 0 {
		return Config{}, fmt.Errorf("%s: [watch].debounce must not be negative", path)
	}
	return cfg, nil
}

// SyncOptions converts the file settings into cartsync options.
func (c Config) SyncOptions() cartsync.Options {
	mode := preproc.IncludeSingle
	if c.Preprocess.NestedIncludes {
		mode = preproc.IncludeNested
	}
	opts := cartsync.DefaultOptions()
	opts.Defines = append([]string(nil), c.Preprocess.Defines...)
	opts.Mode = mode
	opts.MaxDepth = c.Preprocess.MaxIncludeDepth
	opts.Backup = c.Sync.Backup
	opts.BackupSuffix = c.Sync.BackupSuffix
	return opts
}

// WatchOptions converts the file settings into watcher options.
func (c Config) WatchOptions() watch.Options {
	d := c.Watch.Debounce.Duration
	if d == 0 {
		// 0 в файле означает "без задержки", а в watch.Options - значение по умолчанию
		d = -1
	}
	return watch.Options{Recursive: c.Watch.Recursive, Debounce: d}
}

// Template is written by "p8sync init".
const Template = `# p8sync configuration

[preprocess]
# labels defined before the first line of every companion file
defines = []
# expand --#include inside included files too
nested_includes = false
max_include_depth = 16

[sync]
backup = true
backup_suffix = ".bak"
cache = true

[watch]
recursive = true
debounce = "1s"
`
