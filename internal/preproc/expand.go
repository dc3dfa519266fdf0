package preproc

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"p8sync/internal/diag"
	"p8sync/internal/normalize"
	"p8sync/internal/trace"
)

var (
	blockComment    = regexp.MustCompile(`(?s)--\[\[.*?\]\]--`)
	fullLineComment = regexp.MustCompile(`^\s*--.*$`)
	trailingComment = regexp.MustCompile(`\s*--.*$`)
)

// Options configures one Expand run.
type Options struct {
	File     string // name of the companion file, used in diagnostics
	Resolver IncludeResolver
	Defines  []string // labels defined before the first line
	Mode     IncludeMode
	MaxDepth int // nested mode only; 0 means DefaultMaxDepth
	Reporter diag.Reporter
}

// Transforms records which built-in labels were defined when their pass ran.
type Transforms struct {
	RemoveComments       bool
	RemoveCommentsSingle bool // defined at some point during filtering
	PlainLua             bool
}

// Result is the outcome of Expand.
type Result struct {
	Text     string
	Defined  []string // labels defined at end of input, sorted
	Includes []string // include names in first-use order
	Applied  Transforms
}

// Expand runs the whole pipeline on the companion text: include splicing,
// directive filtering, block comment removal and, when "plainlua" is
// defined, syntax normalization. Warnings go to opts.Reporter and never
// change the output.
func Expand(ctx context.Context, text string, opts Options) (Result, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "expand")
	defer span.End(opts.File)

	in := &includer{opts: opts}
	lines, err := in.expandIncludes(ctx, text)
	if err != nil {
		trace.Error(trace.FromContext(ctx), "include", err, span.ID())
		return Result{}, err
	}

	pctx := NewContext(opts.Defines...)
	res := Result{Includes: in.included}
	res.Text, res.Applied.RemoveCommentsSingle = filterLines(ctx, pctx, lines, opts.Reporter)

	if pctx.Defined.Has(LabelRemoveComments) {
		res.Applied.RemoveComments = true
		res.Text = runPass(ctx, "comments", res.Text, StripBlockComments)
	}
	if pctx.Defined.Has(LabelPlainLua) {
		res.Applied.PlainLua = true
		res.Text = runPass(ctx, "normalize", res.Text, normalize.Normalize)
	}
	res.Defined = pctx.Defined.Sorted()
	return res, nil
}

func runPass(ctx context.Context, name, text string, fn func(string) string) string {
	_, span := trace.Start(ctx, trace.ScopePass, name)
	out := fn(text)
	span.WithExtra("in", fmt.Sprint(len(text))).WithExtra("out", fmt.Sprint(len(out))).End("")
	return out
}

// filterLines is pass 2. It consumes define/undefine/if/end lines, applies
// single-line comment removal while "removecommentssingle" is defined and
// keeps the lines that IsActiveCode admits. Every kept line ends in "\n".
func filterLines(ctx context.Context, pctx *Context, lines []srcLine, r diag.Reporter) (string, bool) {
	_, span := trace.Start(ctx, trace.ScopePass, "filter")
	tr := trace.FromContext(ctx)

	var (
		sb       strings.Builder
		single   bool
		kept     int
		openedAt = make(map[string]diag.Pos)
	)
	for _, ln := range lines {
		d := Classify(ln.Text)
		switch d.Kind {
		case KindDefine, KindUndefine, KindIf, KindEnd:
			checkDirective(pctx, d, ln.Pos, openedAt, r)
			pctx.Apply(d)
			trace.Point(tr, trace.ScopeLine, d.Kind.String(), d.Arg, span.ID())
			continue
		}
		if word, ok := directiveWord(ln.Text); ok && d.Kind == KindPlain {
			reportUnknown(word, ln.Pos, r)
		}

		line := ln.Text
		if pctx.Defined.Has(LabelRemoveCommentsSingle) {
			single = true
			if fullLineComment.MatchString(line) {
				continue
			}
			line = trailingComment.ReplaceAllString(line, "")
		}
		if pctx.ActiveCode() {
			sb.WriteString(line)
			sb.WriteByte('\n')
			kept++
		}
	}

	for _, label := range pctx.Active.Sorted() {
		diag.ReportWarning(r, diag.PreUnclosedIf, openedAt[label],
			fmt.Sprintf("--#if %s is never closed", label))
	}
	span.WithExtra("lines", fmt.Sprint(len(lines))).WithExtra("kept", fmt.Sprint(kept)).End("")
	return sb.String(), single
}

// checkDirective reports suspicious directives before they are applied.
func checkDirective(pctx *Context, d Directive, pos diag.Pos, openedAt map[string]diag.Pos, r diag.Reporter) {
	if d.Arg == "" {
		diag.ReportWarning(r, diag.PreEmptyLabel, pos,
			fmt.Sprintf("--#%s with an empty label", d.Kind))
	}
	switch d.Kind {
	case KindUndefine:
		if !pctx.Defined.Has(d.Arg) {
			diag.ReportWarning(r, diag.PreUndefineUndefined, pos,
				fmt.Sprintf("--#undefine %s: label is not defined", d.Arg))
		}
	case KindIf:
		if pctx.Active.Has(d.Arg) {
			diag.ReportWarning(r, diag.PreRedundantIf, pos,
				fmt.Sprintf("--#if %s: block is already open since %s", d.Arg, openedAt[d.Arg]))
			return
		}
		openedAt[d.Arg] = pos
	case KindEnd:
		if !pctx.Active.Has(d.Arg) {
			diag.ReportWarning(r, diag.PreEndWithoutIf, pos,
				fmt.Sprintf("--#end %s without matching --#if", d.Arg))
			return
		}
		delete(openedAt, d.Arg)
	}
}

func reportUnknown(word string, pos diag.Pos, r diag.Reporter) {
	if knownDirective(word) {
		// "--#if" with no space and no label
		diag.ReportWarning(r, diag.PreEmptyLabel, pos,
			fmt.Sprintf("--#%s without a label is kept as a comment", word))
		return
	}
	diag.ReportWarning(r, diag.PreUnknownDirective, pos,
		fmt.Sprintf("unknown directive --#%s is kept as a comment", word))
}

// StripBlockComments replaces every "--[[ ... ]]--" span, shortest match
// first, with a single newline.
func StripBlockComments(text string) string {
	if !strings.Contains(text, "--[[") {
		return text
	}
	return blockComment.ReplaceAllString(text, "\n")
}
