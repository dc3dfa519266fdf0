package preproc

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"p8sync/internal/diag"
	"p8sync/internal/source"
)

func expand(t *testing.T, text string, opts Options) Result {
	t.Helper()
	res, err := Expand(context.Background(), text, opts)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	return res
}

func codes(bag *diag.Bag) []diag.Code {
	var out []diag.Code
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func TestClassify(t *testing.T) {
	cases := []struct {
		line string
		want Directive
	}{
		{"--#include lib/util", Directive{KindInclude, "lib/util"}},
		{"--#define debug", Directive{KindDefine, "debug"}},
		{"--#undefine debug", Directive{KindUndefine, "debug"}},
		{"--#if debug", Directive{KindIf, "debug"}},
		{"--#end debug", Directive{KindEnd, "debug"}},
		{"--#define  two", Directive{KindDefine, " two"}},
		{"--#define x ", Directive{KindDefine, "x "}},
		{"--#end", Directive{KindPlain, "--#end"}},
		{" --#if debug", Directive{KindPlain, " --#if debug"}},
		{"--#IF debug", Directive{KindPlain, "--#IF debug"}},
		{"--#ifdef debug", Directive{KindPlain, "--#ifdef debug"}},
		{"print(1)", Directive{KindPlain, "print(1)"}},
	}
	for _, tc := range cases {
		if got := Classify(tc.line); got != tc.want {
			t.Errorf("Classify(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestIsActiveCode(t *testing.T) {
	cases := []struct {
		name            string
		active, defined []string
		want            bool
	}{
		{"no open blocks", nil, nil, true},
		{"no open blocks with defines", nil, []string{"a"}, true},
		{"open undefined", []string{"a"}, nil, false},
		{"open defined", []string{"a"}, []string{"a"}, true},
		{"any open label defined", []string{"a", "b"}, []string{"b"}, true},
		{"disjoint", []string{"a", "b"}, []string{"c"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsActiveCode(NewLabelSet(tc.active...), NewLabelSet(tc.defined...)); got != tc.want {
				t.Fatalf("IsActiveCode = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDefineIfEnd(t *testing.T) {
	src := "--#define debug\n--#if debug\nprint('hi')\n--#end debug\n"
	if got := expand(t, src, Options{}).Text; got != "print('hi')\n" {
		t.Fatalf("with define: %q", got)
	}

	src = "--#if debug\nprint('hi')\n--#end debug\n"
	if got := expand(t, src, Options{}).Text; got != "" {
		t.Fatalf("without define: %q", got)
	}
}

func TestPredefinedLabels(t *testing.T) {
	src := "--#if debug\nok\n--#end debug\nrest\n"
	res := expand(t, src, Options{Defines: []string{"debug"}})
	if res.Text != "ok\nrest\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if !slices.Equal(res.Defined, []string{"debug"}) {
		t.Fatalf("defined = %v", res.Defined)
	}

	res = expand(t, "--#undefine debug\n--#if debug\nok\n--#end debug\n", Options{Defines: []string{"debug"}})
	if res.Text != "" || len(res.Defined) != 0 {
		t.Fatalf("undefine of predefined label: %q %v", res.Text, res.Defined)
	}
}

func TestLabelArgumentIsNotTrimmed(t *testing.T) {
	src := "--#define debug \n--#if debug\nx\n--#end debug\n"
	if got := expand(t, src, Options{}).Text; got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestIfUsesSetMembership(t *testing.T) {
	bag := diag.NewBag(10)
	src := "--#define a\n--#if a\n--#if a\nx\n--#end a\ny\n--#if b\nz\n"
	res := expand(t, src, Options{File: "game.lua", Reporter: diag.BagReporter{Bag: bag}})
	if res.Text != "x\ny\n" {
		t.Fatalf("text = %q", res.Text)
	}
	want := []diag.Code{diag.PreRedundantIf, diag.PreUnclosedIf}
	if got := codes(bag); !slices.Equal(got, want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
	if pos := bag.Items()[1].Primary; pos != (diag.Pos{File: "game.lua", Line: 7}) {
		t.Fatalf("unclosed --#if reported at %v", pos)
	}
}

func TestDirectiveWarnings(t *testing.T) {
	bag := diag.NewBag(10)
	src := "--#end debug\n--#if x\n--#ifdef y\nz\n--#undefine nope\n--#end\n"
	res := expand(t, src, Options{File: "game.lua", Reporter: diag.BagReporter{Bag: bag}})
	if res.Text != "" {
		t.Fatalf("text = %q", res.Text)
	}
	want := []diag.Code{
		diag.PreEndWithoutIf,
		diag.PreUnknownDirective,
		diag.PreUndefineUndefined,
		diag.PreEmptyLabel,
		diag.PreUnclosedIf,
	}
	if got := codes(bag); !slices.Equal(got, want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
	for _, d := range bag.Items() {
		if d.Severity != diag.SevWarning {
			t.Fatalf("%v has severity %v", d.Code, d.Severity)
		}
	}
}

func TestWarningsDoNotChangeOutput(t *testing.T) {
	src := "a\n--#end x\n--#bogus\nb\n"
	quiet := expand(t, src, Options{}).Text
	loud := expand(t, src, Options{Reporter: diag.BagReporter{Bag: diag.NewBag(10)}}).Text
	if quiet != loud || quiet != "a\n--#bogus\nb\n" {
		t.Fatalf("quiet %q, loud %q", quiet, loud)
	}
}

func TestInclude(t *testing.T) {
	files := MapResolver{"lib/util": "function f() end"}
	res := expand(t, "--#include lib/util\n", Options{Resolver: files})
	if res.Text != "function f() end\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if !slices.Equal(res.Includes, []string{"lib/util"}) {
		t.Fatalf("includes = %v", res.Includes)
	}
}

func TestIncludeKeepsLineBoundaries(t *testing.T) {
	files := MapResolver{
		"noeol": "f()",
		"eol":   "g()\n",
		"empty": "",
	}
	src := "a\n--#include noeol\nb\n--#include eol\nc\n--#include empty\nd"
	want := "a\nf()\nb\ng()\nc\n\nd\n"
	if got := expand(t, src, Options{Resolver: files}).Text; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIncludedDirectivesAreFiltered(t *testing.T) {
	files := MapResolver{"cfg": "--#define debug\n"}
	src := "--#include cfg\n--#if debug\nlog()\n--#end debug\n"
	if got := expand(t, src, Options{Resolver: files}).Text; got != "log()\n" {
		t.Fatalf("got %q", got)
	}
}

func TestSingleShotIncludeKeepsNestedDirective(t *testing.T) {
	files := MapResolver{"a": "--#include b\nA\n", "b": "B\n"}
	bag := diag.NewBag(10)
	res := expand(t, "--#include a\n", Options{Resolver: files, Reporter: diag.BagReporter{Bag: bag}})
	if res.Text != "--#include b\nA\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if got := codes(bag); !slices.Equal(got, []diag.Code{diag.PreNestedIncludeKept}) {
		t.Fatalf("codes = %v", got)
	}
	if pos := bag.Items()[0].Primary; pos != (diag.Pos{File: "a.lua", Line: 1}) {
		t.Fatalf("reported at %v", pos)
	}
}

func TestNestedInclude(t *testing.T) {
	files := MapResolver{"a": "--#include b\nA\n", "b": "B\n"}
	res := expand(t, "--#include a\nmain\n", Options{Resolver: files, Mode: IncludeNested})
	if res.Text != "B\nA\nmain\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if !slices.Equal(res.Includes, []string{"a", "b"}) {
		t.Fatalf("includes = %v", res.Includes)
	}
}

func TestNestedIncludeCycle(t *testing.T) {
	files := MapResolver{"a": "--#include b\n", "b": "x\n--#include a\n"}
	_, err := Expand(context.Background(), "--#include a\n", Options{File: "game.lua", Resolver: files, Mode: IncludeNested})
	var cycle *IncludeCycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected IncludeCycleError, got %v", err)
	}
	if !slices.Equal(cycle.Chain, []string{"a", "b", "a"}) {
		t.Fatalf("chain = %v", cycle.Chain)
	}
	if cycle.At != (diag.Pos{File: "b.lua", Line: 2}) {
		t.Fatalf("at = %v", cycle.At)
	}
}

func TestNestedIncludeDepth(t *testing.T) {
	files := MapResolver{"a": "--#include b\n", "b": "--#include c\n", "c": "c\n"}
	_, err := Expand(context.Background(), "--#include a\n", Options{Resolver: files, Mode: IncludeNested, MaxDepth: 2})
	var deep *IncludeDepthError
	if !errors.As(err, &deep) {
		t.Fatalf("expected IncludeDepthError, got %v", err)
	}
	if deep.Name != "c" || deep.Depth != 3 || deep.Limit != 2 {
		t.Fatalf("got %+v", deep)
	}
}

func TestMissingInclude(t *testing.T) {
	_, err := Expand(context.Background(), "x\n--#include nope\n", Options{File: "game.lua", Resolver: MapResolver{}})
	var missing *MissingIncludeError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingIncludeError, got %v", err)
	}
	if missing.Name != "nope" || missing.At != (diag.Pos{File: "game.lua", Line: 2}) {
		t.Fatalf("got %+v", missing)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist in chain, got %v", err)
	}

	if _, err := Expand(context.Background(), "--#include x\n", Options{}); !errors.As(err, &missing) {
		t.Fatalf("expected MissingIncludeError without resolver, got %v", err)
	}
}

func TestDirResolver(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lib", "util.lua"), []byte("\xEF\xBB\xBFfunction f() end\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	files := source.NewFileSet()
	r := DirResolver{Dir: dir, Files: files}
	res := expand(t, "--#include lib/util\nf()\n", Options{Resolver: r})
	if res.Text != "function f() end\nf()\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if _, ok := files.GetByPath(r.Path("lib/util")); !ok {
		t.Fatalf("include was not loaded through the file set")
	}

	if _, err := (DirResolver{Dir: dir}).Resolve("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRemoveCommentsSingle(t *testing.T) {
	src := "--#define removecommentssingle\nx=1 -- note\n-- note\n  -- indented\ny=2\n"
	res := expand(t, src, Options{})
	if res.Text != "x=1\ny=2\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if !res.Applied.RemoveCommentsSingle {
		t.Fatalf("RemoveCommentsSingle not reported")
	}
}

func TestRemoveCommentsSingleIsPerLine(t *testing.T) {
	src := "-- kept\n--#define removecommentssingle\n-- dropped\nc -- d\n--#undefine removecommentssingle\n-- kept too\n"
	if got := expand(t, src, Options{}).Text; got != "-- kept\nc\n-- kept too\n" {
		t.Fatalf("got %q", got)
	}
}

func TestRemoveBlockComments(t *testing.T) {
	src := "--#define removecomments\na\n--[[ one\ntwo ]]--\nb --[[x]]-- c\n"
	res := expand(t, src, Options{})
	if res.Text != "a\n\n\nb \n c\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if !res.Applied.RemoveComments || res.Applied.PlainLua {
		t.Fatalf("applied = %+v", res.Applied)
	}
}

func TestBlockCommentsUseFinalDefines(t *testing.T) {
	src := "--[[ c ]]--\n--#define removecomments\n--#undefine removecomments\n"
	if got := expand(t, src, Options{}).Text; got != "--[[ c ]]--\n" {
		t.Fatalf("got %q", got)
	}
}

func TestStripBlockCommentsShortestMatch(t *testing.T) {
	in := "a--[[1]]--b--[[2]]--c"
	if got := StripBlockComments(in); got != "a\nb\nc" {
		t.Fatalf("got %q", got)
	}
	if got := StripBlockComments("--[[ open"); got != "--[[ open" {
		t.Fatalf("unterminated comment changed: %q", got)
	}
}

func TestPlainLua(t *testing.T) {
	src := "--#define plainlua\nx += 1\nif (a != b) y()\n"
	res := expand(t, src, Options{})
	want := "x = x + 1\nif a ~= b then\n\ty()\nend\n"
	if res.Text != want {
		t.Fatalf("text = %q, want %q", res.Text, want)
	}
	if !res.Applied.PlainLua {
		t.Fatalf("PlainLua not reported")
	}
}

func TestSplitLines(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"\n", []string{""}},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\n\nb", []string{"a", "", "b"}},
	}
	for _, tc := range cases {
		if got := splitLines(tc.in); !slices.Equal(got, tc.want) {
			t.Errorf("splitLines(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDirResolverPositionsIncludesByPath(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"a", "b"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, sub, "util.lua"), []byte("--#end x\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	bag := diag.NewBag(10)
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	for _, sub := range []string{"a", "b"} {
		r := DirResolver{Dir: filepath.Join(dir, sub)}
		expand(t, "--#include util\n", Options{File: sub + "/game.lua", Resolver: r, Reporter: rep})
	}

	if bag.Len() != 2 {
		t.Fatalf("got %d diagnostics, want one per include file", bag.Len())
	}
	for i, sub := range []string{"a", "b"} {
		want := diag.Pos{File: filepath.ToSlash(filepath.Join(dir, sub, "util.lua")), Line: 1}
		if pos := bag.Items()[i].Primary; pos != want {
			t.Fatalf("diagnostic %d at %v, want %v", i, pos, want)
		}
	}
}
