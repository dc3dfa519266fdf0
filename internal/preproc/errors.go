package preproc

import (
	"errors"
	"fmt"
	"strings"

	"p8sync/internal/diag"
)

var errNoResolver = errors.New("no include resolver configured")

// MissingIncludeError reports an --#include whose target could not be read.
// It aborts the run.
type MissingIncludeError struct {
	Name string   // argument of the directive, without ".lua"
	At   diag.Pos // the --#include line
	Err  error
}

func (e *MissingIncludeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: cannot include %q: %v", e.At, e.Name+".lua", e.Err)
	}
	return fmt.Sprintf("%s: cannot include %q", e.At, e.Name+".lua")
}

func (e *MissingIncludeError) Unwrap() error { return e.Err }

// IncludeCycleError is returned in nested mode when a file includes itself,
// directly or through other files.
type IncludeCycleError struct {
	Chain []string // include names, first repeated at the end
	At    diag.Pos
}

func (e *IncludeCycleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: include cycle: %s", e.At, strings.Join(e.Chain, " -> "))
}

// IncludeDepthError is returned in nested mode when includes nest deeper
// than the configured limit.
type IncludeDepthError struct {
	Name  string
	Depth int
	Limit int
	At    diag.Pos
}

func (e *IncludeDepthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: include %q nested %d deep (limit %d)", e.At, e.Name, e.Depth, e.Limit)
}
