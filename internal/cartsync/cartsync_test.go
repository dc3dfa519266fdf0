package cartsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"p8sync/internal/cart"
	"p8sync/internal/diag"
	"p8sync/internal/preproc"
	"p8sync/internal/source"
)

const cartHead = "pico-8 cartridge // http://www.pico-8.com\nversion 41\n__lua__\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSyncWritesCodeAndBackup(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	p8 := filepath.Join(dir, "game.p8")
	original := cartHead + "old()\n__gfx__\n0000\n__sfx__\n0100\n"
	writeFile(t, p8, original)
	writeFile(t, lua, "--#define debug\n--#if debug\nprint('hi')\n--#end debug\n")

	s := New(DefaultOptions())
	rep, err := s.Sync(context.Background(), lua)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Status != StatusWritten {
		t.Fatalf("status = %v", rep.Status)
	}

	want := cartHead + "print('hi')\n\n__gfx__\n0000\n__sfx__\n0100\n"
	got := readFile(t, p8)
	if got != want {
		t.Fatalf("cart =\n%q\nwant\n%q", got, want)
	}
	if rep.CartHash != source.Sum([]byte(want)) {
		t.Fatalf("cart hash does not match written bytes")
	}
	if rep.Backup != p8+".bak" {
		t.Fatalf("backup path = %q", rep.Backup)
	}
	if b := readFile(t, rep.Backup); b != original {
		t.Fatalf("backup = %q", b)
	}
}

func TestSyncSkipsUnchangedCode(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	p8 := filepath.Join(dir, "game.p8")
	writeFile(t, p8, cartHead+"x=1\n\n__gfx__\n")
	writeFile(t, lua, "x=1\n")

	rep, err := New(DefaultOptions()).Sync(context.Background(), lua)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Status != StatusUnchanged || rep.Backup != "" {
		t.Fatalf("report = %+v", rep)
	}
	if _, err := os.Stat(p8 + ".bak"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("backup written for unchanged cart: %v", err)
	}
}

func TestSyncIsStable(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	writeFile(t, filepath.Join(dir, "game.p8"), cartHead+"__gfx__\n")
	writeFile(t, lua, "a()\nb()\n")

	s := New(Options{})
	first, err := s.Sync(context.Background(), lua)
	if err != nil || first.Status != StatusWritten {
		t.Fatalf("first sync: %+v %v", first, err)
	}
	second, err := s.Sync(context.Background(), lua)
	if err != nil || second.Status != StatusUnchanged {
		t.Fatalf("second sync: %+v %v", second, err)
	}
	if first.CartHash != second.CartHash {
		t.Fatalf("cart hash changed between syncs")
	}
}

func TestSyncWithoutBackup(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	writeFile(t, filepath.Join(dir, "game.p8"), cartHead+"old\n__gfx__\n")
	writeFile(t, lua, "new\n")

	rep, err := New(Options{Backup: false}).Sync(context.Background(), lua)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Backup != "" {
		t.Fatalf("backup = %q", rep.Backup)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("unexpected files left behind: %v", entries)
	}
}

func TestSyncCustomBackupSuffix(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	writeFile(t, filepath.Join(dir, "game.p8"), cartHead+"old\n__gfx__\n")
	writeFile(t, lua, "new\n")

	rep, err := New(Options{Backup: true, BackupSuffix: ".orig"}).Sync(context.Background(), lua)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Backup != filepath.Join(dir, "game.p8.orig") {
		t.Fatalf("backup = %q", rep.Backup)
	}
}

func TestSyncMissingIncludeLeavesFilesAlone(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	p8 := filepath.Join(dir, "game.p8")
	original := cartHead + "old\n__gfx__\n"
	writeFile(t, p8, original)
	writeFile(t, lua, "--#include lib/missing\n")

	_, err := New(DefaultOptions()).Sync(context.Background(), lua)
	var missing *preproc.MissingIncludeError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingIncludeError, got %v", err)
	}
	if got := readFile(t, p8); got != original {
		t.Fatalf("cart modified: %q", got)
	}
	if _, err := os.Stat(p8 + ".bak"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("backup written on failure")
	}
}

func TestSyncRejectsBadCart(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	p8 := filepath.Join(dir, "game.p8")
	writeFile(t, p8, "pico-8 cartridge\n__gfx__\n")
	writeFile(t, lua, "x=1\n")

	_, err := New(DefaultOptions()).Sync(context.Background(), lua)
	var fe *cart.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if fe.Path != p8 {
		t.Fatalf("path = %q", fe.Path)
	}
}

func TestSyncMissingCart(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	writeFile(t, lua, "x=1\n")
	if _, err := New(DefaultOptions()).Sync(context.Background(), lua); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestSyncReportsIncludes(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	writeFile(t, filepath.Join(dir, "game.p8"), cartHead+"__gfx__\n")
	writeFile(t, filepath.Join(dir, "lib", "util.lua"), "function f() end\n")
	writeFile(t, lua, "--#include lib/util\nf()\n")

	rep, err := New(DefaultOptions()).Sync(context.Background(), lua)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(rep.Includes) != 1 {
		t.Fatalf("includes = %+v", rep.Includes)
	}
	inc := rep.Includes[0]
	if inc.Name != "lib/util" || inc.Path != filepath.Join(dir, "lib", "util.lua") {
		t.Fatalf("include = %+v", inc)
	}
	if inc.Hash != source.Sum([]byte("function f() end\n")) {
		t.Fatalf("include hash mismatch")
	}
	if rep.Source != source.Sum([]byte("--#include lib/util\nf()\n")) {
		t.Fatalf("source hash mismatch")
	}
}

func TestSyncCartInfoDiagnostics(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	writeFile(t, filepath.Join(dir, "game.p8"), cartHead+"old\n")
	writeFile(t, lua, "--#if never\nx\n--#end never\n")

	bag := diag.NewBag(10)
	opts := DefaultOptions()
	opts.Reporter = diag.BagReporter{Bag: bag}
	if _, err := New(opts).Sync(context.Background(), lua); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	var got []diag.Code
	for _, d := range bag.Items() {
		got = append(got, d.Code)
	}
	if !slices.Equal(got, []diag.Code{diag.CartEmptyCode, diag.CartNoSections}) {
		t.Fatalf("codes = %v", got)
	}
	if bag.HasWarnings() {
		t.Fatalf("cart notes must be informational")
	}
}

func TestSyncHonoursCancelledContext(t *testing.T) {
	dir := t.TempDir()
	lua := filepath.Join(dir, "game.lua")
	writeFile(t, filepath.Join(dir, "game.p8"), cartHead+"old\n__gfx__\n")
	writeFile(t, lua, "new\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(DefaultOptions()).Sync(ctx, lua); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBootstrap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.p8"), cartHead+"a()\n__gfx__\n")
	writeFile(t, filepath.Join(dir, "b.p8"), cartHead+"b()\n__gfx__\n")
	writeFile(t, filepath.Join(dir, "b.lua"), "mine\n")
	writeFile(t, filepath.Join(dir, "broken.p8"), "no code here\n")
	writeFile(t, filepath.Join(dir, "sub", "d.p8"), cartHead+"d()\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "hi\n")

	created, err := New(DefaultOptions()).Bootstrap(context.Background(), dir)
	var fe *cart.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError for broken.p8, got %v", err)
	}
	if !slices.Equal(created, []string{filepath.Join(dir, "a.lua")}) {
		t.Fatalf("created = %v", created)
	}
	if got := readFile(t, filepath.Join(dir, "a.lua")); got != "a()" {
		t.Fatalf("a.lua = %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "b.lua")); got != "mine\n" {
		t.Fatalf("existing companion overwritten: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "sub", "d.lua")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("bootstrap must not recurse")
	}
}

func TestBootstrapThenSyncRoundTrips(t *testing.T) {
	dir := t.TempDir()
	p8 := filepath.Join(dir, "game.p8")
	original := cartHead + "function _init()\n  x=0\nend\n__gfx__\n0000\n"
	writeFile(t, p8, original)

	s := New(DefaultOptions())
	created, err := s.Bootstrap(context.Background(), dir)
	if err != nil || len(created) != 1 {
		t.Fatalf("bootstrap: %v %v", created, err)
	}
	rep, err := s.Sync(context.Background(), created[0])
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	// the companion lacks the final newline, so sync adds one before the tail
	want := cartHead + "function _init()\n  x=0\nend\n\n__gfx__\n0000\n"
	if got := readFile(t, p8); got != want || rep.Status != StatusWritten {
		t.Fatalf("cart = %q (%v)", got, rep.Status)
	}
}
