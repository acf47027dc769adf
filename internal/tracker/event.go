package tracker

import "github.com/ppstep/ppstep/internal/pptok"

// Kind tags an Event's variant, per spec §3 "Event kind".
type Kind int

const (
	Call Kind = iota
	Expanded
	Rescanned
	Lexed
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "Call"
	case Expanded:
		return "Expanded"
	case Rescanned:
		return "Rescanned"
	case Lexed:
		return "Lexed"
	default:
		return "Unknown"
	}
}

// Event is the tagged union of tracker event variants. Every non-Lexed
// variant carries an exact [Start,End) span into the owning
// HistoryEntry's Tokens, plus enough of the representative sequence to
// explain itself without consulting anything else (the "print, explain"
// capability set of the design notes).
type Event interface {
	Kind() Kind
	Span() (start, end int)
	// HeadToken is the printable value used as the breakpoint key; the
	// empty string for Lexed, which never participates in breakpoints.
	HeadToken() string
	// Explain renders a human-readable multi-line description of the
	// event, independent of the owning HistoryEntry.
	Explain() string
}

// CallEvent records recognition of a macro invocation before substitution.
type CallEvent struct {
	Tokens     pptok.TokenSeq
	Start, End int
	// Preserved is the whitespace-carrying form of Tokens, for the
	// recorder's "[CALL] <preserved call tokens>" line (spec §4.6). It
	// plays no role in match-and-splice.
	Preserved pptok.TokenSeq
	// Args holds each actual argument's preserved form, for a
	// function-like macro's "  ARG[i]: ..." trace lines; nil for an
	// object-like macro call.
	Args []pptok.TokenSeq
}

func (e CallEvent) Kind() Kind            { return Call }
func (e CallEvent) Span() (int, int)      { return e.Start, e.End }
func (e CallEvent) HeadToken() string {
	if len(e.Tokens) == 0 {
		return ""
	}
	return e.Tokens[0].Value
}
func (e CallEvent) Explain() string {
	return "CALL " + pptok.Format(e.Tokens)
}

// ExpandedEvent records that Initial has been replaced by the result
// now occupying [Start,End) of the owning history entry.
type ExpandedEvent struct {
	Initial    pptok.TokenSeq
	Start, End int
	// PreservedInitial/PreservedResult back the recorder's FROM:/TO:
	// lines (spec §4.6); they play no role in match-and-splice.
	PreservedInitial, PreservedResult pptok.TokenSeq
}

func (e ExpandedEvent) Kind() Kind       { return Expanded }
func (e ExpandedEvent) Span() (int, int) { return e.Start, e.End }
func (e ExpandedEvent) HeadToken() string {
	if len(e.Initial) == 0 {
		return ""
	}
	return e.Initial[0].Value
}
func (e ExpandedEvent) Explain() string {
	return "EXPANDED " + pptok.Format(e.Initial)
}

// RescannedEvent records that Initial (caused by Cause) was rescanned
// and replaced by the result now occupying [Start,End).
type RescannedEvent struct {
	Cause, Initial pptok.TokenSeq
	Start, End     int
	// PreservedCause/PreservedInitial/PreservedResult back the
	// recorder's CAUSED BY:/FROM:/TO: lines (spec §4.6).
	PreservedCause, PreservedInitial, PreservedResult pptok.TokenSeq
}

func (e RescannedEvent) Kind() Kind       { return Rescanned }
func (e RescannedEvent) Span() (int, int) { return e.Start, e.End }
func (e RescannedEvent) HeadToken() string {
	if len(e.Initial) == 0 {
		return ""
	}
	return e.Initial[0].Value
}
func (e RescannedEvent) Explain() string {
	return "RESCANNED " + pptok.Format(e.Initial) + " (caused by " + pptok.Format(e.Cause) + ")"
}

// LexedEvent records that one newly lexed token was appended to the
// emitted prefix. It carries no span: spec §3 only defines Start/End
// for the other three variants.
type LexedEvent struct{}

func (e LexedEvent) Kind() Kind        { return Lexed }
func (e LexedEvent) Span() (int, int)  { return 0, 0 }
func (e LexedEvent) HeadToken() string { return "" }
func (e LexedEvent) Explain() string   { return "LEXED" }

// HistoryEntry is a snapshot of the full logical stream at the moment
// of Event, plus the event itself. Start/End in Event are indices into
// Tokens.
type HistoryEntry struct {
	Tokens pptok.TokenSeq
	Event  Event
}
