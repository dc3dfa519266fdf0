package diag

import "fmt"

// Pos points at a line of a companion or included file.
type Pos struct {
	File string
	Line int // 1-based; 0 means "whole file"
}

func (p Pos) String() string {
	if p.Line <= 0 {
		return p.File
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Pos
}

// FormatShort renders the diagnostic on one line:
//
//	warning PRE1002 game.lua:12 --#end debug without --#if
func (d Diagnostic) FormatShort() string {
	return fmt.Sprintf("%s %s %s %s", d.Severity.Label(), d.Code.ID(), d.Primary, d.Message)
}

func New(sev Severity, code Code, primary Pos, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}
