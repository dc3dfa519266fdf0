package preproc

import (
	"strings"
)

// Kind tags a classified line.
type Kind uint8

const (
	KindPlain Kind = iota
	KindInclude
	KindDefine
	KindUndefine
	KindIf
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindInclude:
		return "include"
	case KindDefine:
		return "define"
	case KindUndefine:
		return "undefine"
	case KindIf:
		return "if"
	case KindEnd:
		return "end"
	default:
		return "plain"
	}
}

// Directive is one source line after classification. For every kind except
// KindPlain, Arg is the rest of the line after the directive prefix, taken
// as is (no trimming). For KindPlain, Arg holds the whole line.
type Directive struct {
	Kind Kind
	Arg  string
}

const directiveLead = "--#"

// Prefixes are matched at the very start of the line and are case-sensitive.
// The trailing space is part of the prefix.
var directivePrefixes = [...]struct {
	kind   Kind
	prefix string
}{
	{KindInclude, "--#include "},
	{KindDefine, "--#define "},
	{KindUndefine, "--#undefine "},
	{KindIf, "--#if "},
	{KindEnd, "--#end "},
}

// Classify maps a single line (without its newline) to a Directive.
func Classify(line string) Directive {
	if !strings.HasPrefix(line, directiveLead) {
		return Directive{Kind: KindPlain, Arg: line}
	}
	for _, p := range directivePrefixes {
		if strings.HasPrefix(line, p.prefix) {
			return Directive{Kind: p.kind, Arg: line[len(p.prefix):]}
		}
	}
	return Directive{Kind: KindPlain, Arg: line}
}

// directiveWord returns the word after "--#" for a line that looks like a
// directive, e.g. "ifdef" for "--#ifdef debug". ok is false for ordinary lines.
func directiveWord(line string) (word string, ok bool) {
	if !strings.HasPrefix(line, directiveLead) {
		return "", false
	}
	rest := line[len(directiveLead):]
	end := 0
	for end < len(rest) && isWordByte(rest[end]) {
		end++
	}
	if end == 0 {
		return "", false
	}
	return rest[:end], true
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// knownDirective reports whether word names one of the recognised directives.
func knownDirective(word string) bool {
	for _, p := range directivePrefixes {
		if p.prefix[len(directiveLead):len(p.prefix)-1] == word {
			return true
		}
	}
	return false
}
