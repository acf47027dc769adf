// Package recorder implements the trace recorder (spec §4.6/§6.3): an
// append-only textual log of every tracker event, flushed after each
// write so the file stays informative even if the process terminates
// abnormally.
package recorder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppstep/ppstep/internal/pptok"
	"github.com/ppstep/ppstep/internal/tracker"
)

const (
	header = "=== PPSTEP TRACE ===\nStarted: %s\n===================\n\n"
	footer = "\n=== END OF TRACE ===\n"
)

// Recorder implements tracker.Observer, writing a textual record of
// every history entry to a file when active (spec §4.6). It is owned
// by the session object that created it; Stop releases the file on
// every exit path, including quit and fatal engine error (spec §5).
type Recorder struct {
	w      io.WriteCloser
	bw     *bufio.Writer
	path   string
	active bool
}

var _ tracker.Observer = (*Recorder)(nil)

// New returns an inactive Recorder; call Start to begin writing.
func New() *Recorder {
	return &Recorder{}
}

// now is overridable in tests; production code always uses the wall clock.
var now = time.Now

// Start opens path for recording, truncating or creating it as needed,
// and writes the trace header. It reports whether the file was
// created fresh (as opposed to an existing file being truncated),
// matching the `record <file>` command's informational message (spec
// §9 "SUPPLEMENTED FEATURES"). On failure it returns ok=false and
// leaves the Recorder's state unchanged (spec §7 "Recorder I/O failure
// at open").
func (r *Recorder) Start(path string) (created bool, ok bool) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.Create(path)
	if err != nil {
		return false, false
	}
	r.w = f
	r.bw = bufio.NewWriter(f)
	r.path = path
	r.active = true
	fmt.Fprintf(r.bw, header, now().Format(time.ANSIC))
	r.bw.Flush()
	return fresh, true
}

// Active reports whether recording is currently on, for the `status`
// command.
func (r *Recorder) Active() bool { return r.active }

// Path returns the currently recorded-to path, or "" if inactive.
func (r *Recorder) Path() string { return r.path }

// Stop writes the footer and closes the file. Safe to call when
// inactive. Best-effort: a close failure is swallowed, matching the
// "never abort the session" policy of spec §7.
func (r *Recorder) Stop() {
	if !r.active {
		return
	}
	fmt.Fprint(r.bw, footer)
	r.bw.Flush()
	r.w.Close()
	r.active = false
	r.w, r.bw, r.path = nil, nil, ""
}

// Observe implements tracker.Observer, writing one trace line (or
// block of lines) per history entry, per spec §4.6's line formats.
// I/O failures mid-stream are swallowed: best-effort, never aborts the
// session (spec §7).
func (r *Recorder) Observe(entry tracker.HistoryEntry) {
	if !r.active {
		return
	}
	switch ev := entry.Event.(type) {
	case tracker.LexedEvent:
		s, e := len(entry.Tokens)-1, len(entry.Tokens)
		if s < 0 {
			s = 0
		}
		fmt.Fprintf(r.bw, "[LEXED] %s\n", pptok.FormatRaw(entry.Tokens[s:e]))
	case tracker.CallEvent:
		fmt.Fprintf(r.bw, "[CALL] %s\n", preservedOrFallback(ev.Preserved, ev.Tokens))
		for i, arg := range ev.Args {
			fmt.Fprintf(r.bw, "  ARG[%d]: %s\n", i, pptok.FormatRaw(arg))
		}
	case tracker.ExpandedEvent:
		fmt.Fprintf(r.bw, "[EXPANDED]\n  FROM: %s\n  TO: %s\n",
			preservedOrFallback(ev.PreservedInitial, ev.Initial),
			preservedOrFallback(ev.PreservedResult, spanTokens(entry)))
	case tracker.RescannedEvent:
		fmt.Fprintf(r.bw, "[RESCANNED]\n  FROM: %s\n  TO: %s\n  CAUSED BY: %s\n",
			preservedOrFallback(ev.PreservedInitial, ev.Initial),
			preservedOrFallback(ev.PreservedResult, spanTokens(entry)),
			preservedOrFallback(ev.PreservedCause, ev.Cause))
	}
	r.bw.Flush()
}

func spanTokens(entry tracker.HistoryEntry) pptok.TokenSeq {
	s, e := entry.Event.Span()
	return entry.Tokens[s:e]
}

func preservedOrFallback(preserved, sanitized pptok.TokenSeq) string {
	if len(preserved) > 0 {
		return pptok.FormatRaw(preserved)
	}
	return pptok.Format(sanitized)
}
