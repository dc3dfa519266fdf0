// Package cart splits a PICO-8 text cartridge into the region before the
// __lua__ section, the Lua code itself, and everything after it.
package cart

import (
	"fmt"
	"regexp"
)

var (
	luaMarker = regexp.MustCompile(`(?m)^__lua__(?:\n|\z)`)
	// any section that may follow __lua__ closes the code region
	sectionMarker = regexp.MustCompile(`(?m)^__(?:gfx|gff|label|map|sfx|music)__(?:\n|\z)`)
)

// Document is a cartridge split into three regions. Only Code is ever
// rewritten; Head and Tail are carried through byte for byte.
type Document struct {
	Head string // up to and including the "__lua__" line
	Code string
	Tail string // from the newline before the next section marker; may be empty
}

// FormatError reports a cartridge whose __lua__ section cannot be located
// unambiguously.
type FormatError struct {
	Path   string
	Reason string
	Offset int // byte offset of the offending marker, -1 when absent
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "invalid cartridge: " + e.Reason
	}
	return fmt.Sprintf("%s: invalid cartridge: %s", e.Path, e.Reason)
}

// Split locates the single "__lua__" line and the next section marker.
// A cartridge with zero or several "__lua__" lines is rejected.
func Split(text string) (Document, error) {
	locs := luaMarker.FindAllStringIndex(text, 2)
	switch len(locs) {
	case 0:
		return Document{}, &FormatError{Reason: "missing __lua__ section", Offset: -1}
	case 1:
	default:
		return Document{}, &FormatError{Reason: "duplicate __lua__ section", Offset: locs[1][0]}
	}

	codeStart := locs[0][1]
	head := text[:codeStart]
	rest := text[codeStart:]

	m := sectionMarker.FindStringIndex(rest)
	if m == nil {
		return Document{Head: head, Code: rest}, nil
	}
	end := codeStart + m[0]
	if m[0] > 0 {
		// маркер всегда стоит в начале строки, перевод строки перед ним уходит в Tail
		end--
	}
	return Document{Head: head, Code: text[codeStart:end], Tail: text[end:]}, nil
}

// SplitFile is Split with the cartridge path attached to any FormatError.
func SplitFile(path, text string) (Document, error) {
	doc, err := Split(text)
	if fe, ok := err.(*FormatError); ok {
		fe.Path = path
	}
	return doc, err
}

// Join concatenates the regions verbatim. Structure is not re-validated.
func Join(head, code, tail string) string {
	return head + code + tail
}

func (d Document) String() string {
	return Join(d.Head, d.Code, d.Tail)
}

// WithCode returns a copy of d with the code region replaced.
func (d Document) WithCode(code string) Document {
	d.Code = code
	return d
}

// HasTail reports whether any section follows __lua__.
func (d Document) HasTail() bool {
	return d.Tail != ""
}
