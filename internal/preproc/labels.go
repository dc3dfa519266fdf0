package preproc

import (
	"slices"
)

// Built-in labels. Defining one switches the matching transformation on.
const (
	LabelRemoveComments       = "removecomments"
	LabelRemoveCommentsSingle = "removecommentssingle"
	LabelPlainLua             = "plainlua"
)

// LabelSet is a set of label names. The zero value is not usable; use NewLabelSet.
type LabelSet map[string]struct{}

func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func (s LabelSet) Has(label string) bool {
	_, ok := s[label]
	return ok
}

func (s LabelSet) Add(label string) { s[label] = struct{}{} }

func (s LabelSet) Remove(label string) { delete(s, label) }

func (s LabelSet) Len() int { return len(s) }

// Sorted returns the labels in lexical order.
func (s LabelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Intersects reports whether s and other share at least one label.
func (s LabelSet) Intersects(other LabelSet) bool {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for l := range small {
		if big.Has(l) {
			return true
		}
	}
	return false
}

// IsActiveCode decides whether a plain line is emitted: always when no
// --#if block is open, otherwise only when some open label is defined.
func IsActiveCode(active, defined LabelSet) bool {
	if active.Len() == 0 {
		return true
	}
	return active.Intersects(defined)
}

// Context is the label state of one preprocessing run.
type Context struct {
	Defined LabelSet
	Active  LabelSet
}

// NewContext returns a fresh context with predefined labels seeded into Defined.
func NewContext(predefined ...string) *Context {
	return &Context{
		Defined: NewLabelSet(predefined...),
		Active:  NewLabelSet(),
	}
}

// Apply updates the label sets for a define/undefine/if/end directive and
// reports whether d was consumed. Plain and include lines are not consumed.
func (c *Context) Apply(d Directive) bool {
	switch d.Kind {
	case KindDefine:
		c.Defined.Add(d.Arg)
	case KindUndefine:
		c.Defined.Remove(d.Arg)
	case KindIf:
		c.Active.Add(d.Arg)
	case KindEnd:
		c.Active.Remove(d.Arg)
	default:
		return false
	}
	return true
}

// ActiveCode reports IsActiveCode for the current state.
func (c *Context) ActiveCode() bool {
	return IsActiveCode(c.Active, c.Defined)
}
