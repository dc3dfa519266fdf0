package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Препроцессор
	PreInfo              Code = 1000
	PreUnknownDirective  Code = 1001
	PreEndWithoutIf      Code = 1002
	PreUnclosedIf        Code = 1003
	PreEmptyLabel        Code = 1004
	PreNestedIncludeKept Code = 1005
	PreUndefineUndefined Code = 1006
	PreRedundantIf       Code = 1007

	// Картридж
	CartInfo       Code = 2000
	CartEmptyCode  Code = 2001
	CartNoSections Code = 2002
)

var codeDescription = map[Code]string{
	UnknownCode:          "Unknown error",
	PreInfo:              "Preprocessor information",
	PreUnknownDirective:  "Unknown preprocessor directive",
	PreEndWithoutIf:      "--#end without matching --#if",
	PreUnclosedIf:        "--#if block is never closed",
	PreEmptyLabel:        "Directive without a label",
	PreNestedIncludeKept: "Include inside an included file is not expanded",
	PreUndefineUndefined: "--#undefine of a label that is not defined",
	PreRedundantIf:       "--#if for a label that is already active",
	CartInfo:             "Cartridge information",
	CartEmptyCode:        "Cartridge code section is empty",
	CartNoSections:       "Cartridge has no section after __lua__",
}

// ID returns the stable short form, e.g. "PRE1002".
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("PRE%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("CRT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	if desc, ok := codeDescription[c]; ok {
		return desc
	}
	return codeDescription[UnknownCode]
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
