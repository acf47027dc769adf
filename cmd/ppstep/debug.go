package main

import (
	"fmt"
	"os"

	"github.com/ppstep/ppstep/internal/ppengine"
	"github.com/ppstep/ppstep/internal/pptok"
)

// debugHooks implements ppengine.Hooks by printing one compact line
// per hook call, for the --debug switch (spec §5/§6.2): no tracker, no
// stepper, no prompt, just a flat trace of what the engine is doing.
// Exceptions go to stderr; every other hook line goes to stdout.
type debugHooks struct{}

var _ ppengine.Hooks = (*debugHooks)(nil)

func (h *debugHooks) Start(ppengine.Context) { fmt.Println("start") }

func (h *debugHooks) LexedToken(_ ppengine.Context, tok pptok.Token) {
	if tok.Kind == pptok.Whitespace {
		return
	}
	fmt.Printf("lex\t%s\n", tok.Value)
}

func (h *debugHooks) ExpandingFunctionLikeMacro(_ ppengine.Context, _ pptok.Token, _, _ pptok.TokenSeq, callToken pptok.Token, actualArgs []ppengine.ActualArg, _, _ pptok.Pos) bool {
	fmt.Printf("call\t%s(%d args)\n", callToken.Value, len(actualArgs))
	return false
}

func (h *debugHooks) ExpandingObjectLikeMacro(_ ppengine.Context, _ pptok.Token, _ pptok.TokenSeq, callToken pptok.Token) bool {
	fmt.Printf("call\t%s\n", callToken.Value)
	return false
}

func (h *debugHooks) ExpandedMacro(_ ppengine.Context, result pptok.TokenSeq) {
	fmt.Printf("expanded\t%s\n", pptok.Format(result))
}

func (h *debugHooks) RescannedMacro(_ ppengine.Context, result pptok.TokenSeq) {
	fmt.Printf("rescanned\t%s\n", pptok.Format(result))
}

func (h *debugHooks) FoundDirective(_ ppengine.Context, directive pptok.Token) bool {
	fmt.Printf("directive\t#%s\n", directive.Value)
	return false
}

func (h *debugHooks) EvaluatedConditionalExpression(_ ppengine.Context, directive pptok.Token, expr pptok.TokenSeq, value bool) bool {
	fmt.Printf("evaluated\t#%s %s -> %v\n", directive.Value, pptok.Format(expr), value)
	return false
}

func (h *debugHooks) FoundUnknownDirective(_ ppengine.Context, line pptok.TokenSeq, _ pptok.TokenSeq) bool {
	fmt.Printf("unknown-directive\t%s\n", pptok.Format(line))
	return false
}

func (h *debugHooks) ThrowException(_ ppengine.Context, exc ppengine.Exception) bool {
	fmt.Fprintf(os.Stderr, "exception\t%s:%d: %s\n", exc.FileName, exc.LineNo, exc.Description)
	return false
}

func (h *debugHooks) Complete(ppengine.Context) { fmt.Println("complete") }
