package cpp

import "github.com/ppstep/ppstep/internal/pptok"

// objMacro and funcMacro are the two kinds of macro definition this
// engine tracks, kept immutable once built: replacing a macro means
// installing a fresh value under its name, never mutating one in
// place.

type objMacro struct {
	body pptok.TokenSeq
}

func newObjMacro(body pptok.TokenSeq) *objMacro {
	return &objMacro{body: body.Clone()}
}

type funcMacro struct {
	params []string
	body   pptok.TokenSeq
}

func newFuncMacro(params []string, body pptok.TokenSeq) (*funcMacro, error) {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p] {
			return nil, duplicateParamError(p)
		}
		seen[p] = true
	}
	return &funcMacro{params: params, body: body.Clone()}, nil
}

// paramIndex reports whether name is one of the macro's formal
// parameters and, if so, its zero-based position among the actual
// arguments of an invocation.
func (fm *funcMacro) paramIndex(name string) (int, bool) {
	for i, p := range fm.params {
		if p == name {
			return i, true
		}
	}
	return 0, false
}

// substitute replaces every parameter occurrence in the macro body
// with its corresponding actual argument, leaving every other token
// untouched. The hide set that makes the macro invisible to itself
// during rescan (hideset.go) is applied by the engine when it enqueues
// the result, not here.
func (fm *funcMacro) substitute(args []pptok.TokenSeq) pptok.TokenSeq {
	out := make(pptok.TokenSeq, 0, len(fm.body))
	for _, t := range fm.body {
		if idx, ok := fm.paramIndex(t.Value); ok && idx < len(args) {
			out = append(out, args[idx]...)
			continue
		}
		out = append(out, t)
	}
	return out
}

type duplicateParamError string

func (e duplicateParamError) Error() string {
	return "duplicate macro parameter " + string(e)
}
