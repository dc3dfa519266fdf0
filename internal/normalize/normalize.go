// Package normalize rewrites PICO-8 shorthand into plain Lua: compound
// assignment, "!=", single-line "if (cond) stmt" and "//" comments.
//
// Every rewrite is a best-effort textual substitution. Text that does not
// match the expected shape passes through untouched; nothing here returns an
// error.
package normalize

import (
	"regexp"
	"strings"
)

// Rule is a single named rewrite.
type Rule struct {
	Name  string
	Apply func(string) string
}

// updateOperators are rewritten in this order; each runs on the output of
// the previous one.
var updateOperators = []string{"+", "-", "*", "/", "%"}

const (
	lvalueClass = `[\w.\[\]/\-*+]+`
	rvalueClass = `[\w"']+`
)

var (
	compoundPatterns = buildCompoundPatterns()
	notEqualPattern  = regexp.MustCompile(`(` + lvalueClass + `)(\s*)!=(\s*)(` + rvalueClass + `)`)
	slashComment     = regexp.MustCompile(`(\s+)//(\s*)`)
)

type compoundPattern struct {
	op      string
	re      *regexp.Regexp
	replace string
}

func buildCompoundPatterns() []compoundPattern {
	out := make([]compoundPattern, 0, len(updateOperators))
	for _, op := range updateOperators {
		out = append(out, compoundPattern{
			op:      op,
			re:      regexp.MustCompile(`(` + lvalueClass + `)\s*` + regexp.QuoteMeta(op) + `=\s*(` + rvalueClass + `)`),
			replace: "${1} = ${1} " + op + " ${2}",
		})
	}
	return out
}

// Rules returns the rewrites in the order Normalize applies them.
func Rules() []Rule {
	return []Rule{
		{Name: "compound-assign", Apply: CompoundAssign},
		{Name: "not-equal", Apply: NotEqual},
		{Name: "paren-if", Apply: ParenIf},
		{Name: "slash-comment", Apply: SlashComments},
	}
}

// Normalize applies all rules in order.
func Normalize(text string) string {
	for _, r := range Rules() {
		text = r.Apply(text)
	}
	return text
}

// CompoundAssign rewrites "x += 1" into "x = x + 1" for + - * / %.
func CompoundAssign(text string) string {
	for _, p := range compoundPatterns {
		if !strings.Contains(text, p.op+"=") {
			continue
		}
		text = p.re.ReplaceAllString(text, p.replace)
	}
	return text
}

// NotEqual rewrites "a != b" into "a ~= b", keeping the whitespace around
// the operator as it was.
func NotEqual(text string) string {
	if !strings.Contains(text, "!=") {
		return text
	}
	return notEqualPattern.ReplaceAllString(text, "${1}${2}~=${3}${4}")
}

// SlashComments rewrites a "//" comment marker preceded by whitespace into "--".
func SlashComments(text string) string {
	if !strings.Contains(text, "//") {
		return text
	}
	return slashComment.ReplaceAllString(text, "${1}--${2}")
}
