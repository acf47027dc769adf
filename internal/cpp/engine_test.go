package cpp

import (
	"io"
	"strings"
	"testing"

	"github.com/ppstep/ppstep/internal/ppengine"
	"github.com/ppstep/ppstep/internal/pptok"
)

// recordingHooks captures every hook call verbatim, for asserting the
// engine drives the ppengine.Hooks contract the way the adapter
// expects (spec §6.1), independent of the adapter/tracker themselves.
type recordingHooks struct {
	lexed      []string
	calls      []string
	expanded   []string
	rescanned  []string
	exceptions []ppengine.Exception
	completed  bool
}

func (h *recordingHooks) Start(ppengine.Context) {}
func (h *recordingHooks) LexedToken(_ ppengine.Context, tok pptok.Token) {
	h.lexed = append(h.lexed, tok.Value)
}
func (h *recordingHooks) ExpandingFunctionLikeMacro(_ ppengine.Context, _ pptok.Token, _ pptok.TokenSeq, _ pptok.TokenSeq, callToken pptok.Token, _ []ppengine.ActualArg, _, _ pptok.Pos) bool {
	h.calls = append(h.calls, callToken.Value)
	return false
}
func (h *recordingHooks) ExpandingObjectLikeMacro(_ ppengine.Context, _ pptok.Token, _ pptok.TokenSeq, callToken pptok.Token) bool {
	h.calls = append(h.calls, callToken.Value)
	return false
}
func (h *recordingHooks) ExpandedMacro(_ ppengine.Context, result pptok.TokenSeq) {
	h.expanded = append(h.expanded, pptok.Format(result))
}
func (h *recordingHooks) RescannedMacro(_ ppengine.Context, result pptok.TokenSeq) {
	h.rescanned = append(h.rescanned, pptok.Format(result))
}
func (h *recordingHooks) FoundDirective(ppengine.Context, pptok.Token) bool { return false }
func (h *recordingHooks) EvaluatedConditionalExpression(ppengine.Context, pptok.Token, pptok.TokenSeq, bool) bool {
	return false
}
func (h *recordingHooks) FoundUnknownDirective(ppengine.Context, pptok.TokenSeq, pptok.TokenSeq) bool {
	return false
}
func (h *recordingHooks) ThrowException(_ ppengine.Context, exc ppengine.Exception) bool {
	h.exceptions = append(h.exceptions, exc)
	return false
}
func (h *recordingHooks) Complete(ppengine.Context) { h.completed = true }

func run(t *testing.T, src string) (*recordingHooks, string) {
	t.Helper()
	h := &recordingHooks{}
	e := New(h, "main.c", src, nil)
	var out strings.Builder
	if err := e.Run(&out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !h.completed {
		t.Fatalf("Complete was never called")
	}
	return h, out.String()
}

func TestObjectLikeMacroExpands(t *testing.T) {
	h, out := run(t, "#define FOO 1\nFOO\n")
	if !strings.Contains(out, "1") {
		t.Fatalf("expected expanded output to contain 1, got %q", out)
	}
	if len(h.calls) != 1 || h.calls[0] != "FOO" {
		t.Fatalf("expected one call to FOO, got %v", h.calls)
	}
	if len(h.expanded) != 1 {
		t.Fatalf("expected one ExpandedMacro, got %v", h.expanded)
	}
}

func TestFunctionLikeMacroSubstitutesArgs(t *testing.T) {
	h, out := run(t, "#define ADD(a,b) a + b\nADD(2,3)\n")
	if !strings.Contains(out, "2+3") && !strings.Contains(out, "2 + 3") {
		t.Fatalf("expected substituted arguments in output, got %q", out)
	}
	if len(h.calls) != 1 {
		t.Fatalf("expected one call, got %v", h.calls)
	}
}

func TestRescanFiresOnNestedExpansion(t *testing.T) {
	h, _ := run(t, "#define A B\n#define B 1\nA\n")
	if len(h.expanded) != 1 {
		t.Fatalf("expected exactly one ExpandedMacro, got %v", h.expanded)
	}
	if len(h.rescanned) != 1 {
		t.Fatalf("expected exactly one RescannedMacro, got %v", h.rescanned)
	}
	if len(h.calls) != 2 {
		t.Fatalf("expected two calls (A then B), got %v", h.calls)
	}
}

func TestUndefRemovesMacro(t *testing.T) {
	_, out := run(t, "#define FOO 1\n#undef FOO\nFOO\n")
	if !strings.Contains(out, "FOO") {
		t.Fatalf("expected FOO to survive undefined, got %q", out)
	}
}

func TestIfdefSkipsFalseBranch(t *testing.T) {
	_, out := run(t, "#ifdef NOPE\nskipped\n#else\nkept\n#endif\n")
	if strings.Contains(out, "skipped") || !strings.Contains(out, "kept") {
		t.Fatalf("expected only the else branch, got %q", out)
	}
}

func TestIfExpressionEvaluatesArithmetic(t *testing.T) {
	_, out := run(t, "#if 1 + 1 == 2\nyes\n#else\nno\n#endif\n")
	if !strings.Contains(out, "yes") || strings.Contains(out, "no") {
		t.Fatalf("expected the true branch, got %q", out)
	}
}

func TestDefinedOperatorInIfExpression(t *testing.T) {
	_, out := run(t, "#define FOO\n#if defined(FOO)\nyes\n#endif\n")
	if !strings.Contains(out, "yes") {
		t.Fatalf("expected defined(FOO) to be true, got %q", out)
	}
}

func TestErrorDirectiveInMainFileIsFatal(t *testing.T) {
	h := &recordingHooks{}
	e := New(h, "main.c", "#error boom\n", nil)
	err := e.Run(io.Discard)
	if err == nil {
		t.Fatalf("expected #error in main file to be fatal")
	}
	if len(h.exceptions) != 1 || h.exceptions[0].Severity != ppengine.Error {
		t.Fatalf("expected one Error exception, got %v", h.exceptions)
	}
}

type fakeSearcher struct{ files map[string]string }

func (f fakeSearcher) IncludeAngled(_, path string) (string, io.Reader, error) {
	return path, strings.NewReader(f.files[path]), nil
}
func (f fakeSearcher) IncludeQuote(_, path string) (string, io.Reader, error) {
	return path, strings.NewReader(f.files[path]), nil
}

func TestIncludePullsInHeaderMacros(t *testing.T) {
	h := &recordingHooks{}
	searcher := fakeSearcher{files: map[string]string{"foo.h": "#define FOO 42\n"}}
	e := New(h, "main.c", "#include \"foo.h\"\nFOO\n", searcher)
	var out strings.Builder
	if err := e.Run(&out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "42") {
		t.Fatalf("expected included macro to expand, got %q", out.String())
	}
}

func TestExpandTextIsIsolatedFromSession(t *testing.T) {
	h := &recordingHooks{}
	e := New(h, "main.c", "#define FOO 1\n", nil)
	if err := e.Run(io.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}
	result, err := e.ExpandText("FOO FOO")
	if err != nil {
		t.Fatalf("ExpandText: %v", err)
	}
	if pptok.Format(result) != "1 1" {
		t.Fatalf("expected %q, got %q", "1 1", pptok.Format(result))
	}
	// The session's own hooks must not have observed the re-entrant
	// expansion's calls.
	if len(h.calls) != 0 {
		t.Fatalf("expected ExpandText to bypass the session hooks, got %v", h.calls)
	}
}

func TestMacrosSnapshotReportsParams(t *testing.T) {
	h := &recordingHooks{}
	e := New(h, "main.c", "#define ADD(a,b) a + b\n", nil)
	if err := e.Run(io.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}
	macros := e.Macros()
	if len(macros) != 1 || macros[0].Name != "ADD" || len(macros[0].Params) != 2 {
		t.Fatalf("unexpected macros snapshot: %+v", macros)
	}
}
