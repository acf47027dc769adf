package ppengine

import "github.com/ppstep/ppstep/internal/pptok"

// Sink is the set of tracker operations the adapter drives. It is
// satisfied by *tracker.Tracker; the narrow interface keeps ppengine
// from depending on the tracker package's internals.
type Sink interface {
	OnLexed(tok pptok.Token)
	OnCall(callTokens, preserved pptok.TokenSeq, args ...pptok.TokenSeq)
	OnExpanded(initial, result, preservedInitial, preservedResult pptok.TokenSeq)
	OnRescanned(cause, initial, result, preservedCause, preservedInitial, preservedResult pptok.TokenSeq)
}

// FatalHandler is invoked exactly once, when an error is thrown against
// the main input file (spec §7 "Engine error, main file"). After it
// fires, the adapter stops forwarding every further hook.
type FatalHandler func(Exception)

// Adapter implements Hooks (spec §6.1) and forwards sanitized,
// filtered hook calls to a Sink as tracker events (spec §4.2).
type Adapter struct {
	sink     Sink
	mainFile string
	onFatal  FatalHandler

	evaluatingConditional bool
	fatalError            bool

	// expanding is a stack of in-flight calls, one frame per nested
	// macro invocation currently being expanded: pushed by recordCall,
	// popped by ExpandedMacro. A scalar "most recent call" field would
	// get clobbered the moment a macro's own expansion rescans into a
	// second call before the first one's ExpandedMacro fires, which is
	// exactly what happens whenever a macro body calls another macro.
	// Mirrors the std::stack<ContainerT> expanding field in
	// ppstep::server (original_source/src/server.hpp).
	expanding []callFrame

	// rescanning is a stack of pending rescans: pushed by ExpandedMacro
	// with the call that caused the expansion and the expansion's own
	// result, popped by RescannedMacro to recover that pairing as
	// (cause, initial) once the rescan completes. Mirrors the
	// std::stack<std::pair<ContainerT, ContainerT>> rescanning field in
	// ppstep::server.
	rescanning []rescanFrame
}

// callFrame is one pending macro call: the sanitized and preserved
// forms of the tokens that invoked it.
type callFrame struct {
	san, pre pptok.TokenSeq
}

// rescanFrame pairs the call that caused an expansion with that
// expansion's result, so a later RescannedMacro can report them as
// (cause, initial) without losing track of which call they belong to.
type rescanFrame struct {
	causeSan, causePre     pptok.TokenSeq
	initialSan, initialPre pptok.TokenSeq
}

var _ Hooks = (*Adapter)(nil)

// New returns an Adapter that forwards sanitized events to the given
// tracker Sink, treating mainFile as the main input file for
// the error-filtering policy of spec §4.2/§7.
func New(sink Sink, mainFile string, onFatal FatalHandler) *Adapter {
	return &Adapter{sink: sink, mainFile: mainFile, onFatal: onFatal}
}

// suppressed reports whether forwarding is currently disabled: either a
// fatal error has already been seen, or we are inside a conditional
// expression evaluation whose outcome hasn't been reported yet (spec
// §4.2).
func (a *Adapter) suppressed() bool {
	return a.fatalError || a.evaluatingConditional
}

func (a *Adapter) Start(ctx Context) {}

func (a *Adapter) LexedToken(ctx Context, tok pptok.Token) {
	if a.suppressed() {
		return
	}
	san := pptok.Sanitize(pptok.TokenSeq{tok})
	if len(san) == 0 {
		return
	}
	a.sink.OnLexed(san[0])
}

func (a *Adapter) ExpandingFunctionLikeMacro(ctx Context, macroDef pptok.Token, formalArgs, definition pptok.TokenSeq, callToken pptok.Token, actualArgs []ActualArg, callStart, callEnd pptok.Pos) bool {
	if a.suppressed() {
		return false
	}
	call := flattenFunctionLikeCall(callToken, actualArgs)
	a.recordCall(call)
	preservedArgs := make([]pptok.TokenSeq, len(actualArgs))
	for i, arg := range actualArgs {
		preservedArgs[i] = pptok.Preserve(arg.Tokens)
	}
	a.sink.OnCall(pptok.Sanitize(call), pptok.Preserve(call), preservedArgs...)
	return false
}

func (a *Adapter) ExpandingObjectLikeMacro(ctx Context, macroDef pptok.Token, definition pptok.TokenSeq, callToken pptok.Token) bool {
	if a.suppressed() {
		return false
	}
	call := pptok.TokenSeq{callToken}
	a.recordCall(call)
	a.sink.OnCall(pptok.Sanitize(call), pptok.Preserve(call))
	return false
}

func (a *Adapter) recordCall(call pptok.TokenSeq) {
	a.expanding = append(a.expanding, callFrame{san: pptok.Sanitize(call), pre: pptok.Preserve(call)})
}

func (a *Adapter) ExpandedMacro(ctx Context, result pptok.TokenSeq) {
	if a.suppressed() {
		return
	}
	call := a.expanding[len(a.expanding)-1]
	a.expanding = a.expanding[:len(a.expanding)-1]

	sanResult, preResult := pptok.Sanitize(result), pptok.Preserve(result)
	a.sink.OnExpanded(call.san, sanResult, call.pre, preResult)
	a.rescanning = append(a.rescanning, rescanFrame{
		causeSan: call.san, causePre: call.pre,
		initialSan: sanResult, initialPre: preResult,
	})
}

func (a *Adapter) RescannedMacro(ctx Context, result pptok.TokenSeq) {
	if a.suppressed() {
		return
	}
	pending := a.rescanning[len(a.rescanning)-1]
	a.rescanning = a.rescanning[:len(a.rescanning)-1]

	sanResult, preResult := pptok.Sanitize(result), pptok.Preserve(result)
	a.sink.OnRescanned(pending.causeSan, pending.initialSan, sanResult, pending.causePre, pending.initialPre, preResult)
}

func (a *Adapter) FoundDirective(ctx Context, directive pptok.Token) bool {
	switch directive.Value {
	case "if", "elif", "ifdef", "ifndef":
		a.evaluatingConditional = true
	}
	return false
}

func (a *Adapter) EvaluatedConditionalExpression(ctx Context, directive pptok.Token, expr pptok.TokenSeq, value bool) bool {
	a.evaluatingConditional = false
	return false
}

func (a *Adapter) FoundUnknownDirective(ctx Context, line, pending pptok.TokenSeq) bool {
	return false
}

func (a *Adapter) ThrowException(ctx Context, exc Exception) bool {
	if a.fatalError {
		return false
	}
	switch exc.Severity {
	case Remark, Warning:
		return false
	}
	if exc.FileName != "" && exc.FileName != a.mainFile {
		// Error in an included file: suppressed, best-effort continue
		// (spec §7).
		return false
	}
	a.fatalError = true
	if a.onFatal != nil {
		a.onFatal(exc)
	}
	return false
}

func (a *Adapter) Complete(ctx Context) {}

func flattenFunctionLikeCall(callToken pptok.Token, actualArgs []ActualArg) pptok.TokenSeq {
	out := pptok.TokenSeq{callToken, {Value: "("}}
	for i, arg := range actualArgs {
		if i > 0 {
			out = append(out, pptok.Token{Value: ","})
		}
		out = append(out, arg.Tokens...)
	}
	out = append(out, pptok.Token{Value: ")"})
	return out
}
