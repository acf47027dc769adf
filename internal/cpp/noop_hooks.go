package cpp

import (
	"github.com/ppstep/ppstep/internal/ppengine"
	"github.com/ppstep/ppstep/internal/pptok"
)

// noopHooks discards every hook call; ExpandText drives a sub-engine
// through it so a re-entrant expansion never touches the live
// session's tracker or recorder.
type noopHooks struct{}

func (noopHooks) Start(ppengine.Context)     {}
func (noopHooks) LexedToken(ppengine.Context, pptok.Token) {}
func (noopHooks) ExpandingFunctionLikeMacro(ppengine.Context, pptok.Token, pptok.TokenSeq, pptok.TokenSeq, pptok.Token, []ppengine.ActualArg, pptok.Pos, pptok.Pos) bool {
	return false
}
func (noopHooks) ExpandingObjectLikeMacro(ppengine.Context, pptok.Token, pptok.TokenSeq, pptok.Token) bool {
	return false
}
func (noopHooks) ExpandedMacro(ppengine.Context, pptok.TokenSeq)   {}
func (noopHooks) RescannedMacro(ppengine.Context, pptok.TokenSeq)  {}
func (noopHooks) FoundDirective(ppengine.Context, pptok.Token) bool { return false }
func (noopHooks) EvaluatedConditionalExpression(ppengine.Context, pptok.Token, pptok.TokenSeq, bool) bool {
	return false
}
func (noopHooks) FoundUnknownDirective(ppengine.Context, pptok.TokenSeq, pptok.TokenSeq) bool {
	return false
}
func (noopHooks) ThrowException(ppengine.Context, ppengine.Exception) bool { return false }
func (noopHooks) Complete(ppengine.Context)                                {}

var _ ppengine.Hooks = noopHooks{}
