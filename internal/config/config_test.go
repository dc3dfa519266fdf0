package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"p8sync/internal/preproc"
)

func write(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFull(t *testing.T) {
	path := write(t, t.TempDir(), `
[preprocess]
defines = ["debug", "plainlua"]
nested_includes = true
max_include_depth = 4

[sync]
backup = false
backup_suffix = ".orig"
cache = false

[watch]
recursive = false
debounce = "250ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Config{
		Preprocess: PreprocessConfig{Defines: []string{"debug", "plainlua"}, NestedIncludes: true, MaxIncludeDepth: 4},
		Sync:       SyncConfig{Backup: false, BackupSuffix: ".orig", Cache: false},
		Watch:      WatchConfig{Recursive: false, Debounce: Duration{250 * time.Millisecond}},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("cfg = %+v\nwant %+v", cfg, want)
	}

	opts := cfg.SyncOptions()
	if opts.Mode != preproc.IncludeNested || opts.MaxDepth != 4 || opts.Backup || opts.BackupSuffix != ".orig" {
		t.Fatalf("sync options = %+v", opts)
	}
	if w := cfg.WatchOptions(); w.Recursive || w.Debounce != 250*time.Millisecond {
		t.Fatalf("watch options = %+v", w)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := write(t, t.TempDir(), "[preprocess]\ndefines = [\"debug\"]\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Preprocess.Defines = []string{"debug"}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("cfg = %+v\nwant %+v", cfg, want)
	}
}

func TestTemplateMatchesDefault(t *testing.T) {
	path := write(t, t.TempDir(), Template)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Preprocess.Defines) != 0 {
		t.Fatalf("template defines = %v", cfg.Preprocess.Defines)
	}
	want := Default()
	want.Preprocess.Defines = cfg.Preprocess.Defines
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("template = %+v\nwant %+v", cfg, want)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		content string
		want    string
	}{
		"syntax":       {"[sync\n", "failed to parse TOML"},
		"unknown key":  {"[sync]\nbackups = true\n", "unknown keys: sync.backups"},
		"depth":        {"[preprocess]\nmax_include_depth = 0\n", "max_include_depth"},
		"empty label":  {"[preprocess]\ndefines = [\" \"]\n", "empty label"},
		"empty suffix": {"[sync]\nbackup_suffix = \"\"\n", "backup_suffix"},
		"bad duration": {"[watch]\ndebounce = \"soon\"\n", "failed to parse TOML"},
		"neg duration": {"[watch]\ndebounce = \"-1s\"\n", "negative"},
		"wrong type":   {"[sync]\nbackup = \"yes\"\n", "failed to parse TOML"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := write(t, t.TempDir(), tc.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestWatchOptionsZeroDebounce(t *testing.T) {
	cfg := Default()
	cfg.Watch.Debounce = Duration{}
	if d := cfg.WatchOptions().Debounce; d >= 0 {
		t.Fatalf("zero debounce must disable debouncing, got %v", d)
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	path := write(t, root, "")
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok, err := Find(deep)
	if err != nil || !ok {
		t.Fatalf("Find: %v %v", ok, err)
	}
	if got != path {
		t.Fatalf("got %q, want %q", got, path)
	}

	f, err := Discover(deep)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if f.Root != root || !reflect.DeepEqual(f.Config, Default()) {
		t.Fatalf("file = %+v", f)
	}
}

func TestDiscoverWithoutFile(t *testing.T) {
	f, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	// a stray p8sync.toml higher up (e.g. in $TMPDIR) would be picked up
	if f.Path != "" {
		t.Skipf("found %s above the temp dir", f.Path)
	}
	if !reflect.DeepEqual(f.Config, Default()) {
		t.Fatalf("config = %+v", f.Config)
	}
}
