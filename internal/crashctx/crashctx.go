// Package crashctx tracks enough live state about the engine's current
// macro expansion to produce a useful diagnostic if the process ever
// panics mid-expansion. It is the Go port of
// original_source/src/crash_handler.hpp's crash_context: that file
// maintains the same fields (source position, the macro being
// expanded, the last token seen, the operation in progress, and a
// bounded expansion chain) behind a thread_local and dumps them from a
// SIGSEGV/SIGABRT/etc. signal handler. Go has no safely-interceptable
// synchronous-fault signal of its own, so the dump here is driven by
// panic/recover instead (see cmd/ppstep's run loop) — the context
// itself is kept exactly the same way.
//
// This tool has no concurrency (spec.md §1 non-goals), so unlike the
// original's thread_local, a single package-level value is enough;
// see DESIGN.md for that as a recorded Open Question.
package crashctx

import (
	"fmt"
	"strings"
)

// maxChain bounds how many expansion-chain frames a dump will print,
// mirroring the original's fixed 32-entry expansion_chain array.
const maxChain = 32

// Frame is one entry in the expansion chain: the macro being expanded
// and what kind of step put it there ("EXPAND" or "RESCAN").
type Frame struct {
	Macro string
	Kind  string
}

// Context mirrors crash_handler.hpp's crash_context struct.
type Context struct {
	File, LastToken, Operation, Macro string
	Line, Col                         int
	Chain                             []Frame
}

var current Context

// SetPosition records the source position the engine is currently at,
// the analog of crash_context_guard::set_file_position.
func SetPosition(file string, line, col int) {
	current.File = file
	current.Line = line
	current.Col = col
}

// SetToken records the last token the engine looked at, the analog of
// crash_context_guard::set_token.
func SetToken(value string) { current.LastToken = value }

// SetOperation records a short description of what the engine is
// about to do ("reading macro arguments", "evaluating #if", ...), the
// analog of crash_context_guard::set_operation.
func SetOperation(op string) { current.Operation = op }

// Enter pushes one frame onto the expansion chain and returns a
// closure that pops it again, the defer-based analog of the original's
// RAII macro_expansion_guard (construct on entry, destroy on exit).
func Enter(macro, kind string) func() {
	current.Chain = append(current.Chain, Frame{Macro: macro, Kind: kind})
	current.Macro = macro
	depth := len(current.Chain)
	return func() {
		if len(current.Chain) != depth {
			return
		}
		current.Chain = current.Chain[:depth-1]
		if depth > 1 {
			current.Macro = current.Chain[depth-2].Macro
		} else {
			current.Macro = ""
		}
	}
}

// Clear resets the context, used between independent top-level runs
// (e.g. the `expand` command's re-entrant sub-engine, spec §5).
func Clear() { current = Context{} }

// Restore replaces the context wholesale, the save/restore half of the
// swap-and-restore pattern Engine.ExpandText uses around its
// re-entrant sub-engine — the same shape as view.hpp's expand_macro,
// which swaps out ctx.get_hooks() for the duration of one expand
// command and restores it afterward.
func Restore(c Context) { current = c }

// Snapshot returns a copy of the current context for a crash dump to
// render without racing a concurrent mutation (there is none in this
// single-threaded tool, but the copy keeps the dump path self
// contained regardless).
func Snapshot() Context {
	cp := current
	cp.Chain = append([]Frame(nil), current.Chain...)
	return cp
}

// Report renders a human-readable dump of c, the direct analog of the
// location/macro/token/operation/depth block crash_handler.hpp's
// signal_handler writes to stderr and to ppstep_crash.log.
func (c Context) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "location:  %s:%d:%d\n", orDash(c.File), c.Line, c.Col)
	fmt.Fprintf(&b, "macro:     %s\n", orDash(c.Macro))
	fmt.Fprintf(&b, "token:     %s\n", orDash(c.LastToken))
	fmt.Fprintf(&b, "operation: %s\n", orDash(c.Operation))
	fmt.Fprintf(&b, "depth:     %d\n", len(c.Chain))
	if len(c.Chain) == 0 {
		return b.String()
	}
	b.WriteString("expansion chain (innermost first):\n")
	start := 0
	if len(c.Chain) > maxChain {
		start = len(c.Chain) - maxChain
	}
	for i := len(c.Chain) - 1; i >= start; i-- {
		fmt.Fprintf(&b, "  #%d  %s %s\n", len(c.Chain)-1-i, c.Chain[i].Kind, c.Chain[i].Macro)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
