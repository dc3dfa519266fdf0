package normalize

import (
	"strings"
	"testing"
)

func TestCompoundAssign(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"x += 1", "x = x + 1"},
		{"hp -= dmg", "hp = hp - dmg"},
		{"p.x*=2", "p.x = p.x * 2"},
		{"a[i] /= n", "a[i] = a[i] / n"},
		{"t %= 30", "t = t % 30"},
		{`s ..= "x"`, `s ..= "x"`},
		{"name += \"!\"", "name = name + \"!\""},
		// правая часть не идентификатор и не литерал - оставляем как есть
		{"x += -1", "x += -1"},
		{"y = y + 1", "y = y + 1"},
	}
	for _, tc := range cases {
		if got := CompoundAssign(tc.in); got != tc.want {
			t.Errorf("CompoundAssign(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCompoundAssignMultiline(t *testing.T) {
	in := "function _update()\n  x += 1\n  y -= vy\nend\n"
	want := "function _update()\n  x = x + 1\n  y = y - vy\nend\n"
	if got := CompoundAssign(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNotEqualPreservesWhitespace(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"a != b", "a ~= b"},
		{"a!=b", "a~=b"},
		{"if a   !=  b then", "if a   ~=  b then"},
		{"a ~= b", "a ~= b"},
		{`x!="s"`, `x~="s"`},
	}
	for _, tc := range cases {
		if got := NotEqual(tc.in); got != tc.want {
			t.Errorf("NotEqual(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParenIf(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "if (x>0) print(x)", "if x>0 then\n\tprint(x)\nend"},
		{"indented", "  if (btn(0)) x-=1", "  if btn(0) then\n  \tx-=1\n  end"},
		{"nested parens", "if ((a or b) and f(c)) go()", "if (a or b) and f(c) then\n\tgo()\nend"},
		{"no space", "if(k)stop()", "if k then\n\tstop()\nend"},
		{"already block", "if (x) then print(x) end", "if (x) then print(x) end"},
		{"no statement", "if (x)", "if (x)"},
		{"unbalanced", "if (a(b) c", "if (a(b) c"},
		{"not at line start", "x = 1 if (y) z()", "x = 1 if (y) z()"},
		{"elseif untouched", "elseif (x) y()", "elseif (x) y()"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParenIf(tc.in); got != tc.want {
				t.Fatalf("ParenIf(%q) =\n%q\nwant\n%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParenIfAdjacentLines(t *testing.T) {
	in := "if (a) f()\nif (b) g()\n"
	want := "if a then\n\tf()\nend\nif b then\n\tg()\nend\n"
	if got := ParenIf(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParenIfReachesFixedPoint(t *testing.T) {
	in := "if (a) if (b) c()"
	want := "if a then\n\tif b then\n\t\tc()\n\tend\nend"
	if got := ParenIf(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSplitCondition(t *testing.T) {
	cond, rest, ok := SplitCondition("if (f(x) > 0) y()")
	if !ok || cond != "f(x) > 0" || rest != " y()" {
		t.Fatalf("got %q %q %v", cond, rest, ok)
	}
	if _, _, ok := SplitCondition("if ) (x"); ok {
		t.Fatal("expected unbalanced input to fail")
	}
}

func TestSlashComments(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"x=1 // note", "x=1 -- note"},
		{"  // header", "  -- header"},
		{"url=\"http://x\"", "url=\"http://x\""},
		{"x=1 --already", "x=1 --already"},
	}
	for _, tc := range cases {
		if got := SlashComments(tc.in); got != tc.want {
			t.Errorf("SlashComments(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	src := strings.Join([]string{
		"function _update()",
		"  x += 1",
		"  hp -= dmg // ouch",
		"  if (x != 0) y *= 2",
		"  if (btn(4)) if (t%2==0) fire()",
		"end",
		"",
	}, "\n")

	once := Normalize(src)
	twice := Normalize(once)
	if once != twice {
		t.Fatalf("Normalize is not idempotent:\nonce:\n%s\ntwice:\n%s", once, twice)
	}

	want := strings.Join([]string{
		"function _update()",
		"  x = x + 1",
		"  hp = hp - dmg -- ouch",
		"  if x ~= 0 then",
		"  \ty = y * 2",
		"  end",
		"  if btn(4) then",
		"  \tif t%2==0 then",
		"  \t\tfire()",
		"  \tend",
		"  end",
		"end",
		"",
	}, "\n")
	if once != want {
		t.Fatalf("Normalize =\n%s\nwant\n%s", once, want)
	}
}

func TestRulesOrder(t *testing.T) {
	var names []string
	for _, r := range Rules() {
		names = append(names, r.Name)
	}
	if got := strings.Join(names, ","); got != "compound-assign,not-equal,paren-if,slash-comment" {
		t.Fatalf("rules order = %s", got)
	}
}
