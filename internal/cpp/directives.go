package cpp

import (
	"fmt"
	"strings"

	"github.com/ppstep/ppstep/internal/ppengine"
	"github.com/ppstep/ppstep/internal/pptok"
)

// handleDirectiveLine consumes one whole logical line starting with
// '#' and dispatches it, the way andrewchambers-cc's handleDirective
// does, but at line granularity rather than via a DIRECTIVE token kind
// (this engine's lexer never produces one).
func (e *Engine) handleDirectiveLine(lx *lexer) error {
	line := lx.currentLine()
	body := strings.TrimLeft(line, " \t")
	body = strings.TrimPrefix(body, "#")
	body = strings.TrimLeft(body, " \t")
	name, arg := splitDirectiveName(body)
	file, lineNo := lx.file, lx.line+1
	lx.skipLine()

	dirTok := pptok.Token{Value: name, Kind: pptok.Identifier, Pos: pptok.Pos{File: file, Line: lineNo}}

	switch name {
	case "define", "undef", "include", "error", "warning":
		if e.hooks.FoundDirective(e, dirTok) {
			return nil
		}
		switch name {
		case "define":
			return e.Define(arg)
		case "undef":
			return e.Undef(strings.TrimSpace(arg))
		case "include":
			return e.handleIncludeDirective(arg, file)
		case "error":
			return e.handleDiagnostic(ppengine.Error, arg, file, lineNo)
		case "warning":
			return e.handleDiagnostic(ppengine.Warning, arg, file, lineNo)
		}
		return nil

	case "if", "ifdef", "ifndef":
		return e.handleIf(name, arg, dirTok)

	case "elif":
		return e.handleElif(arg, dirTok)

	case "else":
		e.hooks.FoundDirective(e, dirTok)
		return e.handleElse()

	case "endif":
		e.hooks.FoundDirective(e, dirTok)
		return e.handleEndif()

	default:
		lineToks := tokenizeFragment(body)
		e.hooks.FoundUnknownDirective(e, pptok.TokenSeq{dirTok}, lineToks)
		return nil
	}
}

func splitDirectiveName(body string) (name, arg string) {
	i := 0
	for i < len(body) && (isIdentStart(body[i]) || (i > 0 && body[i] >= '0' && body[i] <= '9')) {
		i++
	}
	return body[:i], strings.TrimSpace(body[i:])
}

func (e *Engine) handleIncludeDirective(arg, fromFile string) error {
	spec := strings.TrimSpace(arg)
	if len(spec) < 2 {
		return fmt.Errorf("malformed #include %q", arg)
	}
	return e.pushInclude(spec, fromFile)
}

func (e *Engine) handleDiagnostic(sev ppengine.Severity, arg, file string, line int) error {
	exc := ppengine.Exception{Description: strings.TrimSpace(arg), FileName: file, LineNo: line, Severity: sev}
	escalate := e.hooks.ThrowException(e, exc)
	if sev == ppengine.Error && (escalate || file == e.mainFile) {
		e.fatal = fmt.Errorf("%s:%d: %s", file, line, exc.Description)
	}
	return nil
}

func (e *Engine) fatalMainError(err error) error {
	e.hooks.ThrowException(e, ppengine.Exception{Description: err.Error(), FileName: e.mainFile, Severity: ppengine.Fatal})
	e.fatal = err
	return nil
}

func (e *Engine) pushCond(taken bool) {
	parent := e.currentlyActive()
	e.condStack = append(e.condStack, condFrame{
		parentActive: parent,
		branchTaken:  taken && parent,
		anyTaken:     taken && parent,
	})
}

func (e *Engine) handleIf(kind, arg string, dirTok pptok.Token) error {
	suppressed := e.hooks.FoundDirective(e, dirTok)
	if suppressed {
		e.pushCond(true)
		return nil
	}
	value, exprToks, err := e.evalConditional(kind, arg)
	if err != nil {
		e.pushCond(false)
		return e.fatalMainError(err)
	}
	e.hooks.EvaluatedConditionalExpression(e, dirTok, exprToks, value)
	e.pushCond(value)
	return nil
}

func (e *Engine) handleElif(arg string, dirTok pptok.Token) error {
	if len(e.condStack) == 0 {
		return e.fatalMainError(fmt.Errorf("#elif without #if"))
	}
	suppressed := e.hooks.FoundDirective(e, dirTok)
	top := &e.condStack[len(e.condStack)-1]
	if top.anyTaken || suppressed {
		top.branchTaken = false
		return nil
	}
	value, exprToks, err := e.evalConditional("if", arg)
	if err != nil {
		return e.fatalMainError(err)
	}
	e.hooks.EvaluatedConditionalExpression(e, dirTok, exprToks, value)
	cond := value && top.parentActive
	top.branchTaken = cond
	if cond {
		top.anyTaken = true
	}
	return nil
}

func (e *Engine) handleElse() error {
	if len(e.condStack) == 0 {
		return e.fatalMainError(fmt.Errorf("#else without #if"))
	}
	top := &e.condStack[len(e.condStack)-1]
	top.branchTaken = !top.anyTaken && top.parentActive
	if top.branchTaken {
		top.anyTaken = true
	}
	return nil
}

func (e *Engine) handleEndif() error {
	if len(e.condStack) == 0 {
		return e.fatalMainError(fmt.Errorf("#endif without #if"))
	}
	e.condStack = e.condStack[:len(e.condStack)-1]
	return nil
}

// evalConditional evaluates the expression of an #if/#elif (kind is
// always "if" for #elif, since the grammar is identical) or the
// single-name test of an #ifdef/#ifndef.
func (e *Engine) evalConditional(kind, arg string) (bool, pptok.TokenSeq, error) {
	switch kind {
	case "ifdef", "ifndef":
		name := strings.TrimSpace(arg)
		defined := e.isDefined(name)
		if kind == "ifndef" {
			defined = !defined
		}
		return defined, pptok.TokenSeq{{Value: name, Kind: pptok.Identifier}}, nil
	default:
		toks := tokenizeFragment(arg)
		toks = e.resolveDefined(toks)
		toks = e.macroExpandTokens(toks)
		n, err := evalConst(toks)
		if err != nil {
			return false, toks, err
		}
		return n != 0, toks, nil
	}
}

func (e *Engine) isDefined(name string) bool {
	if _, ok := e.objMacros[name]; ok {
		return true
	}
	_, ok := e.funcMacros[name]
	return ok
}

// resolveDefined replaces every `defined NAME` / `defined(NAME)` form
// with a literal 1/0, before the remaining tokens are macro-expanded —
// defined's own operand must never itself be expanded.
func (e *Engine) resolveDefined(toks pptok.TokenSeq) pptok.TokenSeq {
	out := make(pptok.TokenSeq, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Value != "defined" {
			out = append(out, t)
			continue
		}
		if i+3 < len(toks) && toks[i+1].Value == "(" && toks[i+3].Value == ")" {
			out = append(out, litBool(e.isDefined(toks[i+2].Value)))
			i += 3
			continue
		}
		if i+1 < len(toks) {
			out = append(out, litBool(e.isDefined(toks[i+1].Value)))
			i++
			continue
		}
		out = append(out, t)
	}
	return out
}

// macroExpandTokens expands object-like macros within an already
// tokenized fragment (a #if expression), independent of the lexer
// stack. Function-like macros are left untouched in this position:
// real preprocessors support them too, but #if expressions invoking
// one are rare enough that this reference engine doesn't bother.
func (e *Engine) macroExpandTokens(toks pptok.TokenSeq) pptok.TokenSeq {
	pending := make([]qtok, len(toks))
	for i, t := range toks {
		pending[i] = qtok{tok: t}
	}
	out := make(pptok.TokenSeq, 0, len(toks))
	for len(pending) > 0 {
		qt := pending[0]
		pending = pending[1:]
		if qt.tok.Kind == pptok.Identifier && !qt.hide.contains(qt.tok.Value) {
			if m, ok := e.objMacros[qt.tok.Value]; ok {
				hs := qt.hide.with(qt.tok.Value)
				ins := make([]qtok, len(m.body))
				for i, t := range m.body {
					ins[i] = qtok{tok: t, hide: hs}
				}
				pending = append(ins, pending...)
				continue
			}
		}
		out = append(out, qt.tok)
	}
	return out
}

func litBool(b bool) pptok.Token {
	if b {
		return pptok.Token{Value: "1", Kind: pptok.Other}
	}
	return pptok.Token{Value: "0", Kind: pptok.Other}
}

// splitDefine parses "NAME", "NAME VALUE", "NAME=VALUE" or
// "NAME(params)=body" / "NAME(params) body" into its parts.
func splitDefine(decl string) (name string, params []string, body string, funclike bool, err error) {
	decl = strings.TrimSpace(decl)
	i := 0
	for i < len(decl) && (isIdentStart(decl[i]) || (i > 0 && decl[i] >= '0' && decl[i] <= '9')) {
		i++
	}
	if i == 0 {
		return "", nil, "", false, fmt.Errorf("malformed macro definition %q", decl)
	}
	name = decl[:i]
	rest := decl[i:]

	if strings.HasPrefix(rest, "(") {
		closeIdx := strings.Index(rest, ")")
		if closeIdx < 0 {
			return "", nil, "", false, fmt.Errorf("malformed macro parameter list in %q", decl)
		}
		paramStr := rest[1:closeIdx]
		if strings.TrimSpace(paramStr) != "" {
			for _, p := range strings.Split(paramStr, ",") {
				params = append(params, strings.TrimSpace(p))
			}
		} else {
			params = []string{}
		}
		rest = rest[closeIdx+1:]
		funclike = true
	}

	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, "=")
	body = strings.TrimSpace(rest)
	return name, params, body, funclike, nil
}

func tokenizeFragment(text string) pptok.TokenSeq {
	lx := newLexer("<fragment>", text)
	var out pptok.TokenSeq
	for {
		t := lx.next()
		if t.Kind == pptok.EOF {
			return out
		}
		if t.Kind == pptok.Whitespace {
			continue
		}
		out = append(out, t)
	}
}
