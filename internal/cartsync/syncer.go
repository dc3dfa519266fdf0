package cartsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"p8sync/internal/cart"
	"p8sync/internal/diag"
	"p8sync/internal/preproc"
	"p8sync/internal/source"
	"p8sync/internal/trace"
)

// Options configures a Syncer.
type Options struct {
	Defines      []string // labels defined before the first line
	Mode         preproc.IncludeMode
	MaxDepth     int
	Backup       bool
	BackupSuffix string // defaults to ".bak"
	Reporter     diag.Reporter
}

// DefaultOptions mirrors the defaults of a fresh p8sync.toml.
func DefaultOptions() Options {
	return Options{
		Backup:       true,
		BackupSuffix: ".bak",
		MaxDepth:     preproc.DefaultMaxDepth,
	}
}

// Status is the outcome of a successful Sync.
type Status uint8

const (
	StatusWritten Status = iota + 1
	StatusUnchanged
)

func (s Status) String() string {
	switch s {
	case StatusWritten:
		return "written"
	case StatusUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Include is a file spliced in by --#include during a sync.
type Include struct {
	Name string // directive argument
	Path string
	Hash source.Digest
}

// Report describes one Sync.
type Report struct {
	Lua      string
	Cart     string
	Status   Status
	Backup   string // empty when no backup was written
	Source   source.Digest
	Includes []Include
	CartHash source.Digest // hash of the cartridge as it is on disk afterwards
	Code     int           // size of the new code region in bytes
	Expanded preproc.Result
}

// Syncer performs syncs with a fixed set of options. It holds no per-file
// state and may be used from several goroutines for distinct pairs.
type Syncer struct {
	opts Options
}

func New(opts Options) *Syncer {
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = ".bak"
	}
	return &Syncer{opts: opts}
}

// Options returns a copy of the options the Syncer was created with.
func (s *Syncer) Options() Options { return s.opts }

// Expanded is the preprocessed companion together with the files it came from.
type Expanded struct {
	Result   preproc.Result
	Source   *source.File
	Includes []Include
}

// Expand loads luaPath and runs the preprocessor on it without touching the
// cartridge.
func (s *Syncer) Expand(ctx context.Context, luaPath string) (Expanded, error) {
	files := source.NewFileSet()
	id, err := files.Load(luaPath)
	if err != nil {
		return Expanded{}, err
	}
	file := files.Get(id)

	resolver := preproc.DirResolver{Dir: filepath.Dir(luaPath), Files: files}
	res, err := preproc.Expand(ctx, file.Text(), preproc.Options{
		File:     filepath.ToSlash(filepath.Clean(luaPath)),
		Resolver: resolver,
		Defines:  s.opts.Defines,
		Mode:     s.opts.Mode,
		MaxDepth: s.opts.MaxDepth,
		Reporter: s.opts.Reporter,
	})
	if err != nil {
		return Expanded{}, err
	}

	out := Expanded{Result: res, Source: file}
	for _, name := range res.Includes {
		inc := Include{Name: name, Path: resolver.Path(name)}
		if f, ok := files.GetByPath(inc.Path); ok {
			inc.Hash = f.Hash
		}
		out.Includes = append(out.Includes, inc)
	}
	return out, nil
}

// Sync rewrites the code section of the cartridge next to luaPath.
func (s *Syncer) Sync(ctx context.Context, luaPath string) (Report, error) {
	ctx, span := trace.Start(ctx, trace.ScopeSync, "sync")
	defer span.End(luaPath)

	rep, err := s.sync(ctx, luaPath)
	if err != nil {
		trace.Error(trace.FromContext(ctx), "sync", err, span.ID())
		return rep, fmt.Errorf("sync %s: %w", filepath.Base(luaPath), err)
	}
	span.WithExtra("status", rep.Status.String())
	return rep, nil
}

func (s *Syncer) sync(ctx context.Context, luaPath string) (Report, error) {
	rep := Report{Lua: luaPath, Cart: cart.CartPath(luaPath)}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	exp, err := s.Expand(ctx, luaPath)
	if err != nil {
		return rep, err
	}
	rep.Source = exp.Source.Hash
	rep.Includes = exp.Includes
	rep.Expanded = exp.Result
	rep.Code = len(exp.Result.Text)

	// #nosec G304 -- cartridge path is derived from the companion path
	raw, err := os.ReadFile(rep.Cart)
	if err != nil {
		return rep, err
	}
	doc, err := cart.SplitFile(rep.Cart, string(raw))
	if err != nil {
		return rep, err
	}
	s.inspect(rep.Cart, doc, exp.Result.Text)

	if doc.Code == exp.Result.Text {
		rep.Status = StatusUnchanged
		rep.CartHash = source.Sum(raw)
		return rep, nil
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	if s.opts.Backup {
		rep.Backup = cart.BackupPath(rep.Cart, s.opts.BackupSuffix)
		if err := writeAtomic(rep.Cart, rep.Backup, raw); err != nil {
			return rep, fmt.Errorf("backup: %w", err)
		}
	}

	next := []byte(withCode(doc, exp.Result.Text).String())
	if err := writeAtomic(rep.Cart, rep.Cart, next); err != nil {
		return rep, err
	}
	rep.Status = StatusWritten
	rep.CartHash = source.Sum(next)
	return rep, nil
}

// withCode replaces the code region. A section marker that sat directly
// after "__lua__" gets a newline in front of it, so the next Split returns
// the same code.
func withCode(doc cart.Document, code string) cart.Document {
	if code != "" && doc.HasTail() && !strings.HasPrefix(doc.Tail, "\n") {
		doc.Tail = "\n" + doc.Tail
	}
	return doc.WithCode(code)
}

func (s *Syncer) inspect(cartPath string, doc cart.Document, code string) {
	pos := diag.Pos{File: filepath.ToSlash(filepath.Clean(cartPath))}
	if code == "" {
		diag.ReportInfo(s.opts.Reporter, diag.CartEmptyCode, pos, "code section will be empty")
	}
	if !doc.HasTail() {
		diag.ReportInfo(s.opts.Reporter, diag.CartNoSections, pos, "no section follows __lua__; code runs to the end of the file")
	}
}

// writeAtomic writes data to a temp file next to dst and renames it over dst.
// The file mode is taken from like when it exists.
func writeAtomic(like, dst string, data []byte) error {
	mode := os.FileMode(0o644)
	if st, err := os.Stat(like); err == nil {
		mode = st.Mode().Perm()
	}

	f, err := os.CreateTemp(filepath.Dir(dst), ".p8sync-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		// после успешного Rename файла уже нет
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "p8sync: failed to remove temp file: %v\n", rmErr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
