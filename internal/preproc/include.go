package preproc

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"p8sync/internal/diag"
	"p8sync/internal/source"
	"p8sync/internal/trace"
)

// IncludeExt is appended to the directive argument to form a file name.
const IncludeExt = ".lua"

// DefaultMaxDepth bounds include nesting in IncludeNested mode.
const DefaultMaxDepth = 16

// IncludeMode selects how included text is treated.
type IncludeMode uint8

const (
	// IncludeSingle splices included files once; their own --#include
	// lines are kept as ordinary lines.
	IncludeSingle IncludeMode = iota
	// IncludeNested expands includes recursively.
	IncludeNested
)

func (m IncludeMode) String() string {
	if m == IncludeNested {
		return "nested"
	}
	return "single"
}

// IncludeResolver returns the text of an included file. name is the
// directive argument as written, without the ".lua" extension.
type IncludeResolver interface {
	Resolve(name string) (string, error)
}

// DirResolver reads "<Dir>/<name>.lua". When Files is set, includes go
// through the FileSet and get the same BOM/CRLF/NFC treatment as the
// companion file.
type DirResolver struct {
	Dir   string
	Files *source.FileSet
}

// Path returns the file an include name refers to.
func (r DirResolver) Path(name string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(name)+IncludeExt)
}

func (r DirResolver) Resolve(name string) (string, error) {
	path := r.Path(name)
	if r.Files == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	id, err := r.Files.Load(path)
	if err != nil {
		return "", err
	}
	return r.Files.Get(id).Text(), nil
}

// MapResolver serves includes from memory, keyed by directive argument.
type MapResolver map[string]string

func (m MapResolver) Resolve(name string) (string, error) {
	text, ok := m[name]
	if !ok {
		return "", fmt.Errorf("%s%s: %w", name, IncludeExt, fs.ErrNotExist)
	}
	return text, nil
}

// srcLine is a line of the post-include text together with where it came from.
type srcLine struct {
	Text string
	Pos  diag.Pos
}

// splitLines splits text on "\n". A trailing newline does not produce an
// extra empty line, and empty text has no lines.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

type includer struct {
	opts     Options
	tracer   trace.Tracer
	parent   uint64
	included []string
	nested   int // --#include lines left as text in single mode
}

// expandIncludes runs pass 1 over the companion text.
func (in *includer) expandIncludes(ctx context.Context, text string) ([]srcLine, error) {
	_, span := trace.Start(ctx, trace.ScopePass, "include")
	in.tracer = trace.FromContext(ctx)
	in.parent = span.ID()
	out, err := in.splice(nil, text, in.opts.File, nil)
	span.WithExtra("files", fmt.Sprint(len(in.included))).End(in.opts.Mode.String())
	return out, err
}

// splice appends the lines of text to out. stack holds the names of the
// includes currently being expanded; it is empty for the companion itself.
func (in *includer) splice(out []srcLine, text, file string, stack []string) ([]srcLine, error) {
	for i, line := range splitLines(text) {
		pos := diag.Pos{File: file, Line: i + 1}
		d := Classify(line)
		if d.Kind != KindInclude {
			out = append(out, srcLine{Text: line, Pos: pos})
			continue
		}
		if len(stack) > 0 && in.opts.Mode != IncludeNested {
			in.nested++
			diag.ReportInfo(in.opts.Reporter, diag.PreNestedIncludeKept, pos,
				fmt.Sprintf("--#include %s inside an included file is kept as a comment", d.Arg))
			out = append(out, srcLine{Text: line, Pos: pos})
			continue
		}

		if slices.Contains(stack, d.Arg) {
			chain := append(slices.Clone(stack), d.Arg)
			return out, &IncludeCycleError{Chain: chain, At: pos}
		}
		if limit := in.maxDepth(); len(stack)+1 > limit {
			return out, &IncludeDepthError{Name: d.Arg, Depth: len(stack) + 1, Limit: limit, At: pos}
		}

		body, err := in.resolve(d.Arg)
		if err != nil {
			return out, &MissingIncludeError{Name: d.Arg, At: pos, Err: err}
		}
		trace.Point(in.tracer, trace.ScopeLine, "include", d.Arg, in.parent)
		in.note(d.Arg)
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		out, err = in.splice(out, body, in.fileOf(d.Arg), append(stack, d.Arg))
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// fileOf names an include in diagnostic positions. Resolvers that know
// the file on disk report its path.
func (in *includer) fileOf(name string) string {
	if p, ok := in.opts.Resolver.(interface{ Path(string) string }); ok {
		return filepath.ToSlash(p.Path(name))
	}
	return name + IncludeExt
}

func (in *includer) resolve(name string) (string, error) {
	if in.opts.Resolver == nil {
		return "", errNoResolver
	}
	return in.opts.Resolver.Resolve(name)
}

func (in *includer) maxDepth() int {
	if in.opts.MaxDepth > 0 {
		return in.opts.MaxDepth
	}
	return DefaultMaxDepth
}

func (in *includer) note(name string) {
	if !slices.Contains(in.included, name) {
		in.included = append(in.included, name)
	}
}
