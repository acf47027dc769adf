// Package interp implements the command interpreter (spec §4.5/§6.4,
// C5): the interactive surface that sits between the user and the
// tracker/stepper pair, plus the handful of engine-facing commands
// (expand, #define, #undef, #include, macros) driven through the
// EngineOps capability rather than any global engine state.
package interp

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ppstep/ppstep/internal/pptok"
	"github.com/ppstep/ppstep/internal/recorder"
	"github.com/ppstep/ppstep/internal/stepper"
	"github.com/ppstep/ppstep/internal/tracker"
)

// LineReader is the narrow slice of *readline.Instance the interpreter
// needs: read one line, and update the prompt shown before the next
// one. A real session passes the readline instance itself, which
// satisfies this structurally; tests substitute a scripted fake rather
// than driving an actual terminal.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(string)
}

var _ LineReader = (*readline.Instance)(nil)

// Interpreter owns the interactive session: the tracker it watches,
// the stepper it drives, the recorder it toggles, and the engine
// capability it delegates the `expand`/`#define`/`#undef`/`#include`/
// `macros` commands to.
type Interpreter struct {
	tr   *tracker.Tracker
	ctl  *stepper.Controller
	rec  *recorder.Recorder
	ops  EngineOps
	rl   LineReader
	out  io.Writer

	// lastTrigger/lastHead describe the event that most recently caused
	// Block to be entered, for the dynamic prompt of spec §6.4.
	lastTrigger string
	lastHead    string
	started     bool
	exception   string
}

var _ stepper.Prompter = (*Interpreter)(nil)

// New constructs an Interpreter wired to tr/ctl/rec/ops. rl is the
// readline instance the interactive sub-loop reads commands from, and
// the "pp> " prompt family is handed to it through SetPrompt; out is
// where command output is written (normally rl.Stdout(), passed
// explicitly so tests can substitute a plain buffer).
func New(tr *tracker.Tracker, ctl *stepper.Controller, rec *recorder.Recorder, ops EngineOps, rl LineReader, out io.Writer) *Interpreter {
	return &Interpreter{tr: tr, ctl: ctl, rec: rec, ops: ops, rl: rl, out: out}
}

// Started marks that the engine has begun (the `started` trigger of
// spec §6.4), for use by the host driver before it begins feeding
// tokens.
func (ip *Interpreter) Started() {
	ip.started = true
	ip.lastTrigger = "started"
	ip.lastHead = ""
}

// Exception records that the engine threw exc's description, so the
// next prompt carries the `exception` trigger (spec §6.4). The host
// driver calls this from its ppengine.FatalHandler.
func (ip *Interpreter) Exception(description string) {
	ip.exception = description
	ip.lastTrigger = "exception"
	ip.lastHead = ""
}

// Complete marks engine completion (the `complete` trigger), forcing
// one final prompt even with no further events pending.
func (ip *Interpreter) Complete() {
	ip.lastTrigger = "complete"
	ip.lastHead = ""
	ip.RunLoop()
}

// prompt renders the dynamic prompt of spec §6.4:
// "pp[ [<prefix>]][ (<trigger>)]> ".
func (ip *Interpreter) prompt() string {
	var b strings.Builder
	b.WriteString("pp")
	if prefix := strings.TrimSpace(pptok.Format(ip.tr.LexedPrefix())); prefix != "" {
		if len(prefix) > 24 {
			prefix = prefix[len(prefix)-24:]
		}
		fmt.Fprintf(&b, " [%s]", prefix)
	}
	if ip.lastTrigger != "" {
		fmt.Fprintf(&b, " (%s)", ip.lastTrigger)
	}
	b.WriteString("> ")
	return b.String()
}

// Block implements stepper.Prompter: the tracker's notifier calls this
// when the stepper decides to stop and wait for a command. kind/head
// name the event that tripped the block.
func (ip *Interpreter) Block(kind tracker.Kind, head string) {
	ip.lastTrigger = triggerName(kind)
	ip.lastHead = head
	ip.RunLoop()
}

func triggerName(kind tracker.Kind) string {
	switch kind {
	case tracker.Call:
		return "called"
	case tracker.Expanded:
		return "expanded"
	case tracker.Rescanned:
		return "rescanned"
	case tracker.Lexed:
		return "lexed"
	default:
		return ""
	}
}

// RunLoop reads and dispatches commands until one of them resumes
// execution (step/continue) or the distinguished quit signal unwinds
// past it. It is re-entered on every block, so it returns, rather than
// loops forever, as soon as a resuming command runs.
func (ip *Interpreter) RunLoop() {
	if entry, ok := ip.tr.NewestHistory(); ok && ip.lastTrigger != "" && ip.lastTrigger != "complete" && ip.lastTrigger != "started" {
		fmt.Fprintln(ip.out, renderEntry(entry))
	}
	if ip.exception != "" {
		fmt.Fprintln(ip.out, "exception:", ip.exception)
		ip.exception = ""
	}
	for {
		ip.rl.SetPrompt(ip.prompt())
		line, err := ip.rl.Readline()
		if err == readline.ErrInterrupt {
			panic(QuitSignal{})
		}
		if err == io.EOF {
			panic(QuitSignal{})
		}
		if err != nil {
			panic(QuitSignal{})
		}
		resume, err := ip.dispatch(strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintln(ip.out, "error:", err)
			continue
		}
		if resume {
			return
		}
	}
}

// dispatch parses and runs one command line (spec §4.5), returning
// resume=true if it hands control back to the engine (step/continue),
// false if it was handled entirely within the prompt.
func (ip *Interpreter) dispatch(line string) (resume bool, err error) {
	if line == "" {
		// An empty line redisplays the current state, the same as `what`.
		line = "what"
	}
	fields := strings.Fields(line)
	cmd, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "step", "s":
		n := uint32(1)
		if rest != "" {
			v, perr := strconv.ParseUint(rest, 10, 32)
			if perr != nil {
				return false, fmt.Errorf("step: %w", perr)
			}
			n = uint32(v)
		}
		ip.ctl.SetSteps(n)
		return true, nil

	case "continue", "c":
		ip.ctl.Continue()
		return true, nil

	case "backtrace", "bt":
		fmt.Fprintln(ip.out, renderFrames(ip.tr.Frames(), false))
		return false, nil

	case "forwardtrace", "ft":
		fmt.Fprintln(ip.out, renderFrames(ip.tr.Frames(), true))
		return false, nil

	case "break", "b":
		return false, ip.dispatchBreak(rest, true)

	case "delete", "d":
		return false, ip.dispatchBreak(rest, false)

	case "what", "?":
		entry, ok := ip.tr.NewestHistory()
		if !ok {
			fmt.Fprintln(ip.out, "(nothing has happened yet)")
			return false, nil
		}
		fmt.Fprintln(ip.out, renderEntry(entry))
		return false, nil

	case "macros":
		fmt.Fprintln(ip.out, renderMacros(ip.ops.Macros()))
		return false, nil

	case "expand":
		result, eerr := ip.ops.Expand(rest)
		if eerr != nil {
			return false, eerr
		}
		fmt.Fprintln(ip.out, pptok.Format(result))
		return false, nil

	case "#define":
		return false, ip.ops.Define(rest)

	case "#undef":
		return false, ip.ops.Undef(rest)

	case "#include":
		return false, ip.ops.Include(rest)

	case "record":
		if rest == "" {
			return false, fmt.Errorf("record: missing file")
		}
		fresh, ok := ip.rec.Start(rest)
		if !ok {
			return false, fmt.Errorf("record: could not open %s", rest)
		}
		if fresh {
			fmt.Fprintf(ip.out, "recording to new file %s\n", rest)
		} else {
			fmt.Fprintf(ip.out, "recording to existing file %s (truncated)\n", rest)
		}
		return false, nil

	case "stoprecord":
		ip.rec.Stop()
		return false, nil

	case "status":
		ip.printStatus()
		return false, nil

	case "quit", "q":
		panic(QuitSignal{})

	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
}

func (ip *Interpreter) dispatchBreak(rest string, set bool) error {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return fmt.Errorf("usage: break|delete {call|expand|rescan|lex} <name>")
	}
	category, name := fields[0], fields[1]
	switch category {
	case "call":
		if set {
			ip.ctl.BreakCall(name)
		} else {
			ip.ctl.DeleteBreakCall(name)
		}
	case "expand":
		if set {
			ip.ctl.BreakExpanded(name)
		} else {
			ip.ctl.DeleteBreakExpanded(name)
		}
	case "rescan", "lex":
		// Rescanned and Lexed events never trip a breakpoint (spec §4.4);
		// these categories are accepted for symmetry with `status` but
		// never actually gate execution.
		return nil
	default:
		return fmt.Errorf("unknown breakpoint category %q", category)
	}
	return nil
}

func (ip *Interpreter) printStatus() {
	fmt.Fprintf(ip.out, "recording: %v", ip.rec.Active())
	if ip.rec.Active() {
		fmt.Fprintf(ip.out, " (%s)", ip.rec.Path())
	}
	fmt.Fprintln(ip.out)
	fmt.Fprintf(ip.out, "call breakpoints: %s\n", strings.Join(ip.ctl.CallBreakpoints(), ", "))
	fmt.Fprintf(ip.out, "expand breakpoints: %s\n", strings.Join(ip.ctl.ExpandedBreakpoints(), ", "))
}
