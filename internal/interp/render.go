package interp

import (
	"fmt"
	"strings"

	"github.com/ppstep/ppstep/internal/pptok"
	"github.com/ppstep/ppstep/internal/tracker"
)

// highlight wraps the tokens in s[start:end] in reverse-video so the
// affected span stands out against the rest of the rendered line. ANSI
// color choices beyond this are outside this specification's scope
// (spec §1 non-goals); this is the minimum needed to make "where did
// this event land" legible at a terminal.
func highlight(s pptok.TokenSeq, start, end int) string {
	var b strings.Builder
	zeroWidth := end <= start
	for i, t := range s {
		if i == start && !zeroWidth {
			b.WriteString("\x1b[7m")
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == start && zeroWidth {
			// Zero-width span (e.g. an empty result): mark the insertion point.
			b.WriteString("\x1b[7m<>\x1b[0m ")
		}
		b.WriteString(t.Value)
		if i == end-1 {
			b.WriteString("\x1b[0m")
		}
	}
	if zeroWidth && start >= len(s) {
		b.WriteString(" \x1b[7m<>\x1b[0m")
	}
	return b.String()
}

// renderEntry renders one history entry the way `step`/`continue`/
// `what` display the "current state" (spec §4.5 `what`).
func renderEntry(entry tracker.HistoryEntry) string {
	start, end := entry.Event.Span()
	switch ev := entry.Event.(type) {
	case tracker.CallEvent:
		return fmt.Sprintf("CALL %s\n  %s", pptok.Format(ev.Tokens), highlight(entry.Tokens, start, end))
	case tracker.ExpandedEvent:
		return fmt.Sprintf("EXPANDED %s\n  %s", pptok.Format(ev.Initial), highlight(entry.Tokens, start, end))
	case tracker.RescannedEvent:
		return fmt.Sprintf("RESCANNED %s (caused by %s)\n  %s", pptok.Format(ev.Initial), pptok.Format(ev.Cause), highlight(entry.Tokens, start, end))
	case tracker.LexedEvent:
		return fmt.Sprintf("LEXED\n  %s", pptok.Format(entry.Tokens))
	default:
		return "?"
	}
}

// renderFrames renders a frame-stack snapshot as a numbered list, top
// (innermost) first, for `backtrace`. `forward` reverses the order for
// `forwardtrace` (spec §9 "SUPPLEMENTED FEATURES").
func renderFrames(frames []tracker.Frame, forward bool) string {
	if len(frames) == 0 {
		return "(no pending expansions)"
	}
	order := make([]int, len(frames))
	for i := range order {
		order[i] = i
	}
	if !forward {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	var b strings.Builder
	for rank, idx := range order {
		f := frames[idx]
		name := f.Macro
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(&b, "#%d  %s: %s\n", rank, name, pptok.Format(f.Tokens))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMacros(macros []MacroInfo) string {
	if len(macros) == 0 {
		return "(no macros defined)"
	}
	var b strings.Builder
	for _, m := range macros {
		if m.Params == nil {
			fmt.Fprintf(&b, "%s %s\n", m.Name, m.Body)
		} else {
			fmt.Fprintf(&b, "%s(%s) %s\n", m.Name, strings.Join(m.Params, ", "), m.Body)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
