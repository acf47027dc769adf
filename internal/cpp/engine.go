// Package cpp is a small, self-contained C-preprocessor-like engine
// that drives the ppengine.Hooks contract. It exists to give the
// tracker something concrete to observe end to end; any engine that
// implements the same hook table would do equally well (spec §1/§9).
package cpp

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppstep/ppstep/internal/crashctx"
	"github.com/ppstep/ppstep/internal/ppengine"
	"github.com/ppstep/ppstep/internal/pptok"
)

// qtok is one token sitting in the engine's pushback queue, carrying
// the hide set it was stamped with and whether it originated from a
// macro substitution (rescan) rather than fresh lexing.
type qtok struct {
	tok    pptok.Token
	hide   hideSet
	rescan bool
}

type condFrame struct {
	parentActive bool
	branchTaken  bool
	anyTaken     bool
}

// Engine is one preprocessing session: its own macro tables, its own
// lexer stack (main file plus any open #include files), its own
// pending-token queue. The `expand` command runs a second Engine that
// shares only the session's macro tables and include searcher, with its
// own hooks, lexer stack and queue, per spec §5's re-entrancy
// requirement.
type Engine struct {
	hooks    ppengine.Hooks
	mainFile string
	searcher IncludeSearcher

	lexers  []*lexer
	mainPos pptok.Pos

	objMacros  map[string]*objMacro
	funcMacros map[string]*funcMacro

	queue     []qtok
	condStack []condFrame

	fatal error
}

var _ ppengine.Context = (*Engine)(nil)

// New returns an Engine ready to preprocess text from file under
// hooks. searcher resolves #include operands; it may be nil if the
// input never includes anything.
func New(hooks ppengine.Hooks, file, text string, searcher IncludeSearcher) *Engine {
	return &Engine{
		hooks:      hooks,
		mainFile:   file,
		searcher:   searcher,
		lexers:     []*lexer{newLexer(file, text)},
		objMacros:  make(map[string]*objMacro),
		funcMacros: make(map[string]*funcMacro),
	}
}

// MainPos implements ppengine.Context.
func (e *Engine) MainPos() pptok.Pos { return e.mainPos }

// Define installs a macro from a #define-style declaration: "NAME",
// "NAME VALUE", "NAME=VALUE", "NAME(params) body" or
// "NAME(params)=body" (the forms the `-D` flag, #define lines and the
// `#define` interpreter command use).
func (e *Engine) Define(decl string) error {
	name, paramsPart, body, funclike, err := splitDefine(decl)
	if err != nil {
		return err
	}
	bodyToks := tokenizeFragment(body)
	if funclike {
		fm, err := newFuncMacro(paramsPart, bodyToks)
		if err != nil {
			return err
		}
		e.funcMacros[name] = fm
		delete(e.objMacros, name)
		return nil
	}
	e.objMacros[name] = newObjMacro(bodyToks)
	delete(e.funcMacros, name)
	return nil
}

// Undef removes a macro definition, a no-op if it was never defined.
func (e *Engine) Undef(name string) error {
	delete(e.objMacros, name)
	delete(e.funcMacros, name)
	return nil
}

// Include pushes spec (an angled or quoted header name, brackets
// included) onto the lexer stack, the same path #include takes.
func (e *Engine) Include(spec string) error {
	if len(spec) < 2 {
		return fmt.Errorf("malformed include %q", spec)
	}
	return e.pushInclude(spec, e.mainFile)
}

func (e *Engine) pushInclude(spec, fromFile string) error {
	if e.searcher == nil {
		return fmt.Errorf("no include searcher configured")
	}
	path := spec[1 : len(spec)-1]
	var name string
	var r io.Reader
	var err error
	switch spec[0] {
	case '<':
		name, r, err = e.searcher.IncludeAngled(fromFile, path)
	case '"':
		name, r, err = e.searcher.IncludeQuote(fromFile, path)
	default:
		return fmt.Errorf("malformed include %q", spec)
	}
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	e.lexers = append(e.lexers, newLexer(name, string(data)))
	return nil
}

// MacroSnapshot describes one currently-defined macro.
type MacroSnapshot struct {
	Name   string
	Params []string
	Body   string
}

// Macros returns a snapshot of every currently defined macro, for the
// `macros` command.
func (e *Engine) Macros() []MacroSnapshot {
	out := make([]MacroSnapshot, 0, len(e.objMacros)+len(e.funcMacros))
	for name, m := range e.objMacros {
		out = append(out, MacroSnapshot{Name: name, Body: pptok.Format(m.body)})
	}
	for name, m := range e.funcMacros {
		out = append(out, MacroSnapshot{Name: name, Params: m.params, Body: pptok.Format(m.body)})
	}
	return out
}

// Run drives the full main-file input to completion, firing hooks
// throughout, and writes every non-whitespace output token's text to
// w (nil to discard the rendered output entirely).
func (e *Engine) Run(w io.Writer) error {
	crashctx.Clear()
	e.hooks.Start(e)
	for {
		tok, err := e.nextExpanded()
		if err != nil {
			return err
		}
		if e.fatal != nil {
			break
		}
		if tok.Kind == pptok.EOF {
			break
		}
		if w != nil && tok.Kind != pptok.Whitespace {
			io.WriteString(w, tok.Value)
		}
	}
	e.hooks.Complete(e)
	return e.fatal
}

// ExpandText fully expands text in isolation against the engine's
// current macro tables, without touching the live session's hooks or
// lexer stack — the re-entrant path `expand` uses (spec §5).
func (e *Engine) ExpandText(text string) (pptok.TokenSeq, error) {
	saved := crashctx.Snapshot()
	defer crashctx.Restore(saved)
	crashctx.Clear()

	sub := &Engine{
		hooks:      noopHooks{},
		mainFile:   "<expand>",
		searcher:   e.searcher,
		lexers:     []*lexer{newLexer("<expand>", text)},
		objMacros:  e.objMacros,
		funcMacros: e.funcMacros,
	}
	var out pptok.TokenSeq
	for {
		tok, err := sub.nextExpanded()
		if err != nil {
			return nil, err
		}
		if tok.Kind == pptok.EOF {
			break
		}
		if tok.Kind != pptok.Whitespace {
			out = append(out, tok)
		}
	}
	return out, nil
}

func (e *Engine) currentlyActive() bool {
	if len(e.condStack) == 0 {
		return true
	}
	return e.condStack[len(e.condStack)-1].branchTaken
}

// nextExpanded returns the next fully macro-expanded output token.
func (e *Engine) nextExpanded() (pptok.Token, error) {
	for {
		qt, err := e.nextRaw()
		if err != nil {
			return pptok.Token{}, err
		}
		if qt.tok.Kind != pptok.Identifier {
			return qt.tok, nil
		}
		name := qt.tok.Value
		if qt.hide.contains(name) {
			return qt.tok, nil
		}
		if m, ok := e.objMacros[name]; ok {
			crashctx.SetOperation("expanding object-like macro")
			suppressed := e.hooks.ExpandingObjectLikeMacro(e, pptok.Token{Value: name}, m.body, qt.tok)
			if suppressed {
				return qt.tok, nil
			}
			exit := crashctx.Enter(name, expansionKind(qt.rescan))
			hs := qt.hide.with(name)
			result := m.body.Clone()
			e.enqueue(result, hs, true)
			e.reportExpansion(qt.rescan, result)
			exit()
			continue
		}
		if fm, ok := e.funcMacros[name]; ok {
			handled, err := e.expandFuncCall(name, qt, fm)
			if err != nil {
				return pptok.Token{}, err
			}
			if handled {
				continue
			}
		}
		return qt.tok, nil
	}
}

func (e *Engine) reportExpansion(wasRescan bool, result pptok.TokenSeq) {
	if wasRescan {
		e.hooks.RescannedMacro(e, result)
	} else {
		e.hooks.ExpandedMacro(e, result)
	}
}

// expansionKind names the crash-diagnostics chain entry crashctx.Enter
// records for a substitution, matching whether the engine is reporting
// it as an ExpandedMacro or a RescannedMacro event.
func expansionKind(wasRescan bool) string {
	if wasRescan {
		return "RESCAN"
	}
	return "EXPAND"
}

// expandFuncCall handles a candidate function-like macro call,
// returning handled=false (with the opening token pushed back
// unchanged) if the identifier isn't actually followed by '('.
func (e *Engine) expandFuncCall(name string, qt qtok, fm *funcMacro) (bool, error) {
	opening, err := e.nextRawSkipWhitespace()
	if err != nil {
		return false, err
	}
	if opening.tok.Value != "(" {
		e.pushFront(opening)
		return false, nil
	}

	crashctx.SetOperation("reading macro arguments")
	args, closing, err := e.readArgs()
	if err != nil {
		return false, err
	}
	actualArgs := make([]ppengine.ActualArg, len(args))
	for i, a := range args {
		actualArgs[i] = ppengine.ActualArg{Tokens: a}
	}
	crashctx.SetOperation("expanding function-like macro")
	if e.hooks.ExpandingFunctionLikeMacro(e, pptok.Token{Value: name}, paramTokens(fm.params), fm.body, qt.tok, actualArgs, e.mainPos, e.mainPos) {
		// Suppressed: push the call back verbatim, hiding name from
		// itself so it surfaces as plain text rather than looping.
		hs := qt.hide.with(name)
		literal := make([]qtok, 0, 2+len(args)*2)
		literal = append(literal, qtok{tok: opening.tok, hide: hs})
		for i, a := range args {
			if i > 0 {
				literal = append(literal, qtok{tok: pptok.Token{Value: ","}, hide: hs})
			}
			for _, t := range a {
				literal = append(literal, qtok{tok: t, hide: hs})
			}
		}
		literal = append(literal, qtok{tok: closing.tok, hide: hs})
		e.pushFrontSeq(literal)
		return false, nil
	}
	if len(args) != len(fm.params) {
		return false, fmt.Errorf("macro %s invoked with %d arguments but %d expected", name, len(args), len(fm.params))
	}
	exit := crashctx.Enter(name, expansionKind(qt.rescan))
	hs := qt.hide.intersect(closing.hide).with(name)
	result := fm.substitute(args)
	e.enqueue(result, hs, true)
	e.reportExpansion(qt.rescan, result)
	exit()
	return true, nil
}

func paramTokens(params []string) pptok.TokenSeq {
	out := make(pptok.TokenSeq, len(params))
	for i, p := range params {
		out[i] = pptok.Token{Value: p, Kind: pptok.Identifier}
	}
	return out
}

// readArgs reads the comma-separated, paren-balanced actual arguments
// of a function-like macro call, the opening '(' already consumed. It
// returns each argument's raw (unexpanded) tokens and the closing ')'.
func (e *Engine) readArgs() ([]pptok.TokenSeq, qtok, error) {
	depth := 1
	args := []pptok.TokenSeq{{}}
	for {
		qt, err := e.nextRaw()
		if err != nil {
			return nil, qtok{}, err
		}
		if qt.tok.Kind == pptok.EOF {
			return nil, qtok{}, fmt.Errorf("end of input while reading macro arguments")
		}
		if qt.tok.Kind == pptok.Whitespace {
			continue
		}
		switch qt.tok.Value {
		case "(":
			depth++
			args[len(args)-1] = append(args[len(args)-1], qt.tok)
		case ")":
			depth--
			if depth == 0 {
				return args, qt, nil
			}
			args[len(args)-1] = append(args[len(args)-1], qt.tok)
		case ",":
			if depth == 1 {
				args = append(args, pptok.TokenSeq{})
			} else {
				args[len(args)-1] = append(args[len(args)-1], qt.tok)
			}
		default:
			args[len(args)-1] = append(args[len(args)-1], qt.tok)
		}
	}
}

func (e *Engine) enqueue(seq pptok.TokenSeq, hs hideSet, rescan bool) {
	add := make([]qtok, len(seq))
	for i, t := range seq {
		add[i] = qtok{tok: t, hide: hs, rescan: rescan}
	}
	e.queue = append(add, e.queue...)
}

func (e *Engine) pushFront(qt qtok) {
	e.queue = append([]qtok{qt}, e.queue...)
}

func (e *Engine) pushFrontSeq(qts []qtok) {
	e.queue = append(qts, e.queue...)
}

func (e *Engine) nextRawSkipWhitespace() (qtok, error) {
	for {
		qt, err := e.nextRaw()
		if err != nil {
			return qtok{}, err
		}
		if qt.tok.Kind != pptok.Whitespace {
			return qt, nil
		}
	}
}

// nextRaw returns the next unexpanded token: from the pushback queue
// if non-empty, otherwise freshly lexed, handling directive lines and
// inactive conditional regions along the way.
func (e *Engine) nextRaw() (qtok, error) {
	if len(e.queue) > 0 {
		qt := e.queue[0]
		e.queue = e.queue[1:]
		return qt, nil
	}
	for {
		lx := e.lexers[len(e.lexers)-1]
		if lx.eof() {
			if len(e.lexers) == 1 {
				return qtok{tok: pptok.Token{Kind: pptok.EOF}}, nil
			}
			e.lexers = e.lexers[:len(e.lexers)-1]
			continue
		}
		line := lx.currentLine()
		trimmed := strings.TrimLeft(line, " \t")
		if lx.atLineStart() && strings.HasPrefix(trimmed, "#") {
			if err := e.handleDirectiveLine(lx); err != nil {
				return qtok{}, err
			}
			continue
		}
		if !e.currentlyActive() {
			lx.skipLine()
			continue
		}
		tok := lx.next()
		if len(e.lexers) == 1 && tok.Kind != pptok.EOF {
			e.mainPos = tok.Pos
		}
		if tok.Kind == pptok.EOF {
			if len(e.lexers) == 1 {
				return qtok{tok: tok}, nil
			}
			e.lexers = e.lexers[:len(e.lexers)-1]
			continue
		}
		if tok.Kind != pptok.Whitespace {
			crashctx.SetPosition(tok.Pos.File, tok.Pos.Line, tok.Pos.Col)
			crashctx.SetToken(tok.Value)
			e.hooks.LexedToken(e, tok)
		}
		return qtok{tok: tok}, nil
	}
}
