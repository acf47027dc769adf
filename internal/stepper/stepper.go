// Package stepper implements the stepper / breakpoint controller
// (spec §4.4): after every tracker event it decides whether to block
// for user input, and if so drives the command interpreter's blocking
// read loop.
package stepper

import "github.com/ppstep/ppstep/internal/tracker"

// Mode is the stepper's run mode.
type Mode int

const (
	// Free prompts on every event.
	Free Mode = iota
	// UntilBreak prompts only when a breakpoint fires.
	UntilBreak
)

// Prompter drives the interactive read loop when the stepper decides to
// block. It is the command interpreter (C5), reached through this
// narrow interface so the stepper never depends on interpreter
// internals. Block returns when the user has issued a command that
// resumes execution (step, continue, quit's unwind signal aside).
type Prompter interface {
	Block(kind tracker.Kind, headToken string)
}

// Controller is the breakpoint controller described in spec §4.4. It
// implements tracker.Notifier.
type Controller struct {
	mode   Mode
	steps  uint32
	call   map[string]bool
	expand map[string]bool

	prompt Prompter
}

// New returns a Controller in the given initial mode (spec §9
// "Configuration", initial_mode), with empty breakpoint sets.
func New(initial Mode, prompt Prompter) *Controller {
	return &Controller{
		mode:   initial,
		steps:  1,
		call:   map[string]bool{},
		expand: map[string]bool{},
		prompt: prompt,
	}
}

// SetSteps makes the controller block again on the n-th trip-eligible
// event from now (n = 0 counts as 1), implementing the interpreter's
// `step [n]` command.
func (c *Controller) SetSteps(n uint32) {
	if n == 0 {
		n = 1
	}
	c.steps = n
	c.mode = Free
}

// Continue switches to UntilBreak mode, implementing `continue`.
func (c *Controller) Continue() {
	c.mode = UntilBreak
}

// BreakCall adds name to the Call breakpoint set.
func (c *Controller) BreakCall(name string) { c.call[name] = true }

// BreakExpanded adds name to the Expanded breakpoint set.
func (c *Controller) BreakExpanded(name string) { c.expand[name] = true }

// DeleteBreakCall removes name from the Call breakpoint set.
func (c *Controller) DeleteBreakCall(name string) { delete(c.call, name) }

// DeleteBreakExpanded removes name from the Expanded breakpoint set.
func (c *Controller) DeleteBreakExpanded(name string) { delete(c.expand, name) }

// CallBreakpoints returns the current Call breakpoint set's names.
func (c *Controller) CallBreakpoints() []string { return keys(c.call) }

// ExpandedBreakpoints returns the current Expanded breakpoint set's names.
func (c *Controller) ExpandedBreakpoints() []string { return keys(c.expand) }

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// tripped reports whether this event is breakpoint-eligible under the
// current mode, per spec §4.4/§8 invariant 5. Rescanned and Lexed
// events never trip a breakpoint.
func (c *Controller) tripped(kind tracker.Kind, head string) bool {
	switch c.mode {
	case Free:
		return true
	case UntilBreak:
		switch kind {
		case tracker.Call:
			return c.call[head]
		case tracker.Expanded:
			return c.expand[head]
		default:
			return false
		}
	default:
		return false
	}
}

// Notify implements tracker.Notifier: the core per-event decision of
// spec §4.4.
func (c *Controller) Notify(kind tracker.Kind, head string) {
	if !c.tripped(kind, head) {
		return
	}
	if c.steps > 0 {
		c.steps--
	}
	if c.steps > 0 {
		return
	}
	// Blocking fires; re-entry to the prompt resets mode to Free per
	// spec §4.4 "mode becomes Free on re-entry to the prompt after a
	// break fires".
	c.mode = Free
	c.steps = 1
	if c.prompt != nil {
		c.prompt.Block(kind, head)
	}
}
