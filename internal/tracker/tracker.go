// Package tracker implements the expansion tracker (§4.3 of the
// specification): the subsystem that turns a stream of raw engine
// hooks into an authoritative, append-only history of the evolving
// token stream, using a match-and-splice algorithm over a stack of
// pending expansion frames.
package tracker

import "github.com/ppstep/ppstep/internal/pptok"

// Observer receives every HistoryEntry the tracker appends, in order.
// The recorder (C6) is the canonical observer; it watches orthogonally
// and never mutates tracker state.
type Observer interface {
	Observe(entry HistoryEntry)
}

// Notifier is consulted synchronously after every non-catch-up event,
// per spec §4.4. It decides whether to block for user input and, if it
// blocks, drives the command interpreter itself; the tracker neither
// knows nor cares what happens during that call.
type Notifier interface {
	Notify(kind Kind, headToken string)
}

// Tracker owns the stream state described in spec §3: the settled
// prefix, the pending frame stack, the append-only history, and the
// buffer of tokens lexed while frames are outstanding.
type Tracker struct {
	lexedPrefix pptok.TokenSeq
	frames      frameStack
	history     []HistoryEntry
	lexBuffer   pptok.TokenSeq

	observers []Observer
	notifier  Notifier
}

// New returns an empty Tracker: lexedPrefix, frames, history and
// lexBuffer all start empty, per spec §3 "Lifecycles".
func New() *Tracker {
	return &Tracker{}
}

// AddObserver registers o to receive every future history entry.
func (t *Tracker) AddObserver(o Observer) {
	t.observers = append(t.observers, o)
}

// SetNotifier installs the stepper consulted after every event.
func (t *Tracker) SetNotifier(n Notifier) {
	t.notifier = n
}

func (t *Tracker) appendHistory(tokens pptok.TokenSeq, ev Event) HistoryEntry {
	entry := HistoryEntry{Tokens: tokens, Event: ev}
	t.history = append(t.history, entry)
	for _, o := range t.observers {
		o.Observe(entry)
	}
	return entry
}

func (t *Tracker) notify(kind Kind, head string) {
	if t.notifier != nil {
		t.notifier.Notify(kind, head)
	}
}

// settled reports whether the frame stack is empty, per spec §3
// "Settled stream".
func (t *Tracker) settled() bool {
	return t.frames.empty()
}

// OnLexed implements spec §4.3.2.
func (t *Tracker) OnLexed(tok pptok.Token) {
	if t.settled() {
		t.lexedPrefix = t.lexedPrefix.PushBack(tok)
		prevTokens := pptok.TokenSeq(nil)
		if len(t.history) > 0 {
			prevTokens = t.history[len(t.history)-1].Tokens
		}
		tokens := prevTokens.Clone().PushBack(tok)
		t.appendHistory(tokens, LexedEvent{})
		t.notify(Lexed, "")
		return
	}

	// Unsettled: buffer the token and test for catch-up against the
	// tail of the most recently reported history entry.
	t.lexBuffer = t.lexBuffer.PushBack(tok)
	last := t.history[len(t.history)-1].Tokens
	tail := last[len(t.lexedPrefix):]
	if pptok.EqualSeq(tail, t.lexBuffer) {
		t.lexedPrefix = pptok.Concat(t.lexedPrefix, t.lexBuffer)
		t.lexBuffer = nil
		t.frames = nil
	}
	// No history entry, no notification: this is catch-up (spec §4.3.2).
}

// OnCall implements spec §4.3.3. preserved is the whitespace-carrying
// form of callTokens, carried on the resulting event purely for the
// recorder's display (spec §4.2); it plays no role in the algorithm.
// args, if non-nil, is each actual argument's preserved form, for a
// function-like macro's trace "ARG[i]:" lines.
func (t *Tracker) OnCall(callTokens, preserved pptok.TokenSeq, args ...pptok.TokenSeq) {
	if t.frames.empty() {
		t.callFresh(callTokens, preserved, args)
	} else {
		top := t.frames.top()
		s, e, ok := pptok.FindSubseq(top.Tokens, callTokens, top.SearchFrom)
		if !ok {
			t.frames = nil
			t.callFresh(callTokens, preserved, args)
		} else {
			tokens := pptok.Concat(t.lexedPrefix, top.Tokens)
			start, end := len(t.lexedPrefix)+s, len(t.lexedPrefix)+e
			t.appendHistory(tokens, CallEvent{Tokens: callTokens, Start: start, End: end, Preserved: preserved, Args: args})
		}
	}

	head := ""
	if len(callTokens) > 0 {
		head = callTokens[0].Value
	}
	t.notify(Call, head)
}

func (t *Tracker) callFresh(callTokens, preserved pptok.TokenSeq, args []pptok.TokenSeq) {
	head := ""
	if len(callTokens) > 0 {
		head = callTokens[0].Value
	}
	t.frames = t.frames.push(Frame{Tokens: callTokens.Clone(), SearchFrom: 0, Macro: head})
	tokens := pptok.Concat(t.lexedPrefix, callTokens)
	start, end := len(t.lexedPrefix), len(t.lexedPrefix)+len(callTokens)
	t.appendHistory(tokens, CallEvent{Tokens: callTokens, Start: start, End: end, Preserved: preserved, Args: args})
}

// OnExpanded implements spec §4.3.4. preservedInitial/preservedResult
// are carried on the resulting event purely for display.
func (t *Tracker) OnExpanded(initial, result, preservedInitial, preservedResult pptok.TokenSeq) {
	t.spliceAndPush(initial, result, func(start, end int) Event {
		return ExpandedEvent{Initial: initial, Start: start, End: end, PreservedInitial: preservedInitial, PreservedResult: preservedResult}
	})

	head := ""
	if len(initial) > 0 {
		head = initial[0].Value
	}
	t.notify(Expanded, head)
}

// OnRescanned implements spec §4.3.5. An empty initial is a silent
// no-op (open question resolved per spec §9: treated as a no-op, never
// surfaced, never notified).
func (t *Tracker) OnRescanned(cause, initial, result, preservedCause, preservedInitial, preservedResult pptok.TokenSeq) {
	if len(initial) == 0 {
		return
	}
	t.spliceAndPush(initial, result, func(start, end int) Event {
		return RescannedEvent{
			Cause: cause, Initial: initial, Start: start, End: end,
			PreservedCause: preservedCause, PreservedInitial: preservedInitial, PreservedResult: preservedResult,
		}
	})
	t.notify(Rescanned, initial[0].Value)
}

// spliceAndPush implements the shared match-and-splice core of
// OnExpanded/OnRescanned (spec §4.3.4/§4.3.6): find a frame whose
// tokens contain initial, popping greedily on failure; splice result
// into place and push the spliced frame; on total failure, rebase on
// result alone.
func (t *Tracker) spliceAndPush(initial, result pptok.TokenSeq, mk func(start, end int) Event) {
	for !t.frames.empty() {
		top := t.frames.top()
		s, e, ok := pptok.FindSubseq(top.Tokens, initial, top.SearchFrom)
		if ok {
			head := ""
			if len(initial) > 0 {
				head = initial[0].Value
			}
			newTokens := pptok.Concat(top.Tokens[:s].Clone(), result, top.Tokens[e:].Clone())
			t.frames = t.frames.push(Frame{Tokens: newTokens, SearchFrom: s, Macro: head})
			tokens := pptok.Concat(t.lexedPrefix, newTokens)
			start, end := len(t.lexedPrefix)+s, len(t.lexedPrefix)+s+len(result)
			t.appendHistory(tokens, mk(start, end))
			return
		}
		t.frames = t.frames.pop()
	}

	// Recovery path (spec §4.3.4 failure branch / §4.3.6): no frame
	// contained initial. Rebase on result alone rather than aborting.
	head := ""
	if len(initial) > 0 {
		head = initial[0].Value
	}
	t.frames = t.frames.push(Frame{Tokens: result.Clone(), SearchFrom: len(result), Macro: head})
	tokens := pptok.Concat(t.lexedPrefix, result)
	start, end := len(t.lexedPrefix), len(t.lexedPrefix)+len(result)
	t.appendHistory(tokens, mk(start, end))
}

// NewestHistory returns the most recently appended entry, or the zero
// value with ok=false if history is empty.
func (t *Tracker) NewestHistory() (HistoryEntry, bool) {
	if len(t.history) == 0 {
		return HistoryEntry{}, false
	}
	return t.history[len(t.history)-1], true
}

// History returns the full append-only history, oldest first. Callers
// must not mutate the returned slice.
func (t *Tracker) History() []HistoryEntry {
	return t.history
}

// Frames returns a read-only snapshot of the frame stack, bottom
// (outermost) to top (innermost), for backtrace/forwardtrace display
// (spec §4.3.7). The tracker's own stack is never exposed directly.
func (t *Tracker) Frames() []Frame {
	return t.frames.snapshot()
}

// LexedPrefix returns the settled prefix of the stream. Callers must
// not mutate the returned slice.
func (t *Tracker) LexedPrefix() pptok.TokenSeq {
	return t.lexedPrefix
}
