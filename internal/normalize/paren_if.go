package normalize

import (
	"regexp"
	"strings"
)

// maxIfPasses bounds the fixed-point loop in ParenIf. One pass handles every
// line already in the text; further passes only pick up statements that were
// themselves shorthand ifs, so the nesting depth a real cart reaches is small.
const maxIfPasses = 8

var parenIfLine = regexp.MustCompile(`^([ \t]*)if\s*\(.*\).*$`)

// ParenIf rewrites single-line shorthand ifs
//
//	if (x>0) print(x)
//
// into a block
//
//	if x>0 then
//		print(x)
//	end
//
// keeping the indentation of the original line. Lines that already contain
// "then" anywhere are left alone.
func ParenIf(text string) string {
	for range maxIfPasses {
		next, changed := parenIfPass(text)
		text = next
		if !changed {
			break
		}
	}
	return text
}

func parenIfPass(text string) (string, bool) {
	if !strings.Contains(text, "if") {
		return text, false
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	changed := false
	for _, line := range lines {
		block, ok := rewriteParenIf(line)
		if !ok {
			out = append(out, line)
			continue
		}
		out = append(out, block...)
		changed = true
	}
	return strings.Join(out, "\n"), changed
}

func rewriteParenIf(line string) ([]string, bool) {
	if strings.Contains(line, "then") {
		return nil, false
	}
	m := parenIfLine.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	indent := m[1]
	cond, stmt, ok := SplitCondition(line[len(indent):])
	if !ok {
		return nil, false
	}
	cond = strings.TrimSpace(cond)
	stmt = strings.TrimSpace(stmt)
	if cond == "" || stmt == "" {
		return nil, false
	}
	return []string{
		indent + "if " + cond + " then",
		indent + "\t" + stmt,
		indent + "end",
	}, true
}

// SplitCondition finds the first balanced parenthesis group in s and returns
// its contents and whatever follows the closing paren. A ')' seen before the
// first '(' is ignored. ok is false when the group never closes.
func SplitCondition(s string) (cond, rest string, ok bool) {
	depth := 0
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			if start < 0 {
				start = i
			}
			depth++
		case ')':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start+1 : i], s[i+1:], true
			}
		}
	}
	return "", "", false
}
