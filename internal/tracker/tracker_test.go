package tracker

import (
	"testing"

	"github.com/ppstep/ppstep/internal/pptok"
)

func tok(v string) pptok.Token { return pptok.Token{Value: v, Kind: pptok.Other} }

func seq(vals ...string) pptok.TokenSeq {
	out := make(pptok.TokenSeq, len(vals))
	for i, v := range vals {
		out[i] = tok(v)
	}
	return out
}

func wantSpan(t *testing.T, entry HistoryEntry, wantKind Kind, wantStart, wantEnd int) {
	t.Helper()
	if entry.Event.Kind() != wantKind {
		t.Fatalf("entry kind = %v, want %v", entry.Event.Kind(), wantKind)
	}
	s, e := entry.Event.Span()
	if s != wantStart || e != wantEnd {
		t.Fatalf("entry span = (%d,%d), want (%d,%d)", s, e, wantStart, wantEnd)
	}
}

// spanTokens returns the slice of entry.Tokens covered by the event's span.
func spanTokens(entry HistoryEntry) pptok.TokenSeq {
	s, e := entry.Event.Span()
	return entry.Tokens[s:e]
}

// Scenario A — object-like macro (spec §8).
func TestScenarioA_ObjectLikeMacro(t *testing.T) {
	tr := New()

	tr.OnCall(seq("FOO"), nil)
	entries := tr.History()
	if len(entries) != 1 {
		t.Fatalf("after OnCall: len(history) = %d, want 1", len(entries))
	}
	wantSpan(t, entries[0], Call, 0, 1)

	tr.OnExpanded(seq("FOO"), seq("1"), nil, nil)
	entries = tr.History()
	if len(entries) != 2 {
		t.Fatalf("after OnExpanded: len(history) = %d, want 2", len(entries))
	}
	wantSpan(t, entries[1], Expanded, 0, 1)
	if got := pptok.Format(spanTokens(entries[1])); got != "1" {
		t.Fatalf("expanded span tokens = %q, want %q", got, "1")
	}
	if frames := tr.Frames(); len(frames) != 2 || pptok.Format(frames[0].Tokens) != "FOO" || pptok.Format(frames[1].Tokens) != "1" {
		t.Fatalf("frames after OnExpanded = %+v, want call frame [FOO] under pushed frame [1]", frames)
	}

	tr.OnLexed(tok("1"))
	if len(tr.History()) != 2 {
		t.Fatalf("OnLexed catch-up must not add a history entry, len = %d", len(tr.History()))
	}
	if got := pptok.Format(tr.LexedPrefix()); got != "1" {
		t.Fatalf("lexedPrefix = %q, want %q", got, "1")
	}
	if frames := tr.Frames(); len(frames) != 0 {
		t.Fatalf("frames after catch-up = %+v, want empty", frames)
	}
}

// Scenario B — function-like macro with one call, ADD(2,3) -> 2+3.
func TestScenarioB_FunctionLikeMacro(t *testing.T) {
	tr := New()

	call := seq("ADD", "(", "2", ",", "3", ")")
	tr.OnCall(call, nil)
	entries := tr.History()
	wantSpan(t, entries[0], Call, 0, 6)

	tr.OnExpanded(call, seq("2", "+", "3"), nil, nil)
	entries = tr.History()
	wantSpan(t, entries[1], Expanded, 0, 3)
	if frames := tr.Frames(); len(frames) != 2 || pptok.Format(frames[0].Tokens) != "ADD ( 2 , 3 )" || pptok.Format(frames[1].Tokens) != "2 + 3" {
		t.Fatalf("frames after OnExpanded = %+v, want call frame under pushed frame [2 + 3]", frames)
	}

	for _, v := range []string{"2", "+", "3"} {
		tr.OnLexed(tok(v))
	}
	if got := pptok.Format(tr.LexedPrefix()); got != "2 + 3" {
		t.Fatalf("lexedPrefix = %q, want %q", got, "2 + 3")
	}
	if len(tr.Frames()) != 0 {
		t.Fatalf("frames not drained after full catch-up")
	}
}

// Scenario C — nested expansion: ADD(ONE, 2) where ONE -> 1.
func TestScenarioC_NestedExpansion(t *testing.T) {
	tr := New()

	outerCall := seq("ADD", "(", "ONE", ",", "2", ")")
	tr.OnCall(outerCall, nil)

	innerCall := seq("ONE")
	tr.OnCall(innerCall, nil)
	entries := tr.History()
	wantSpan(t, entries[len(entries)-1], Call, 2, 3) // ONE sits at index 2 in outerCall

	tr.OnExpanded(innerCall, seq("1"), nil, nil)
	entries = tr.History()
	last := entries[len(entries)-1]
	wantSpan(t, last, Expanded, 2, 3)
	if got := pptok.Format(last.Tokens); got != "ADD ( 1 , 2 )" {
		t.Fatalf("spliced outer frame = %q, want %q", got, "ADD ( 1 , 2 )")
	}

	tr.OnExpanded(outerCall, seq("1", "+", "2"), nil, nil)
	entries = tr.History()
	last = entries[len(entries)-1]
	wantSpan(t, last, Expanded, 0, 3)
	if got := pptok.Format(spanTokens(last)); got != "1 + 2" {
		t.Fatalf("final expansion span = %q, want %q", got, "1 + 2")
	}
}

// Scenario D — rescan.
func TestScenarioD_Rescan(t *testing.T) {
	tr := New()
	tr.OnCall(seq("FOO"), nil)
	tr.OnExpanded(seq("FOO"), seq("X"), nil, nil)
	tr.OnRescanned(seq("X"), seq("FOO"), seq("1"), nil, nil, nil)

	entries := tr.History()
	last := entries[len(entries)-1]
	re, ok := last.Event.(RescannedEvent)
	if !ok {
		t.Fatalf("last event = %T, want RescannedEvent", last.Event)
	}
	if pptok.Format(re.Cause) != "X" || pptok.Format(re.Initial) != "FOO" {
		t.Fatalf("RescannedEvent cause/initial not carried verbatim: %+v", re)
	}
	if got := pptok.Format(spanTokens(last)); got != "1" {
		t.Fatalf("rescanned span tokens = %q, want %q", got, "1")
	}
}

func TestRescanEmptyInitialIsNoOp(t *testing.T) {
	tr := New()
	tr.OnCall(seq("FOO"), nil)
	tr.OnExpanded(seq("FOO"), seq("X"), nil, nil)
	before := len(tr.History())
	tr.OnRescanned(seq("X"), nil, seq("1"), nil, nil, nil)
	if len(tr.History()) != before {
		t.Fatalf("empty-initial rescan must be a silent no-op")
	}
}

// Scenario F — recovery: an Expanded event arrives with no matching frame.
func TestScenarioF_Recovery(t *testing.T) {
	tr := New()
	tr.OnExpanded(seq("Q"), seq("q"), nil, nil)

	entries := tr.History()
	if len(entries) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(entries))
	}
	wantSpan(t, entries[0], Expanded, 0, 1)
	frames := tr.Frames()
	if len(frames) != 1 || pptok.Format(frames[0].Tokens) != "q" {
		t.Fatalf("frames = %+v, want single inert frame [q]", frames)
	}
	if !frames[0].Inert() {
		t.Fatalf("recovery frame must be inert")
	}
}

// Call-site-no-match fallback: a Call with no pattern in the top frame
// discards the whole stack and starts fresh (spec §4.3.3).
func TestCallFallbackOnNoMatch(t *testing.T) {
	tr := New()
	tr.OnCall(seq("FOO"), nil)
	tr.OnExpanded(seq("FOO"), seq("1"), nil, nil)
	// BAR never appears anywhere in the current frame.
	tr.OnCall(seq("BAR"), nil)

	entries := tr.History()
	last := entries[len(entries)-1]
	wantSpan(t, last, Call, 0, 1)
	if got := pptok.Format(spanTokens(last)); got != "BAR" {
		t.Fatalf("fallback call span = %q, want %q", got, "BAR")
	}
}

// Invariant: lexedPrefix only ever grows by appending (spec §4.3.1
// invariant 1, "prefix monotonicity" of §8).
func TestLexedPrefixMonotonic(t *testing.T) {
	tr := New()
	snapshots := []pptok.TokenSeq{tr.LexedPrefix().Clone()}

	tr.OnCall(seq("FOO"), nil)
	snapshots = append(snapshots, tr.LexedPrefix().Clone())
	tr.OnExpanded(seq("FOO"), seq("1"), nil, nil)
	snapshots = append(snapshots, tr.LexedPrefix().Clone())
	tr.OnLexed(tok("1"))
	snapshots = append(snapshots, tr.LexedPrefix().Clone())
	tr.OnCall(seq("BAR"), nil)
	snapshots = append(snapshots, tr.LexedPrefix().Clone())

	for i := 1; i < len(snapshots); i++ {
		if !pptok.HasSuffix(snapshots[i], snapshots[i-1]) && len(snapshots[i-1]) > len(snapshots[i]) {
			t.Fatalf("lexedPrefix shrank at step %d: %v -> %v", i, snapshots[i-1], snapshots[i])
		}
		prev, cur := snapshots[i-1], snapshots[i]
		if len(cur) < len(prev) || !pptok.EqualSeq(cur[:len(prev)], prev) {
			t.Fatalf("lexedPrefix not a growing prefix at step %d: %v -> %v", i, prev, cur)
		}
	}
}

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) Notify(kind Kind, head string) {
	r.calls = append(r.calls, kind.String()+":"+head)
}

func TestNotifierCalledOnNonCatchupEvents(t *testing.T) {
	tr := New()
	n := &recordingNotifier{}
	tr.SetNotifier(n)

	tr.OnCall(seq("FOO"), nil)
	tr.OnExpanded(seq("FOO"), seq("1"), nil, nil)
	tr.OnLexed(tok("1")) // unsettled catch-up: no notification
	tr.OnLexed(tok("2")) // settled: notifies Lexed

	want := []string{"Call:FOO", "Expanded:FOO", "Lexed:"}
	if len(n.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", n.calls, want)
	}
	for i := range want {
		if n.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %q, want %q", i, n.calls[i], want[i])
		}
	}
}

func TestCatchupProducesNoNotification(t *testing.T) {
	tr := New()
	n := &recordingNotifier{}
	tr.SetNotifier(n)

	tr.OnCall(seq("FOO"), nil)
	tr.OnExpanded(seq("FOO"), seq("1"), nil, nil)
	n.calls = nil
	tr.OnLexed(tok("1")) // unsettled -> settled catch-up, no notify
	if len(n.calls) != 0 {
		t.Fatalf("catch-up must not notify, got %v", n.calls)
	}
}

type recordingObserver struct {
	entries []HistoryEntry
}

func (r *recordingObserver) Observe(entry HistoryEntry) {
	r.entries = append(r.entries, entry)
}

func TestObserverSeesEveryHistoryEntry(t *testing.T) {
	tr := New()
	obs := &recordingObserver{}
	tr.AddObserver(obs)

	tr.OnCall(seq("FOO"), nil)
	tr.OnExpanded(seq("FOO"), seq("1"), nil, nil)
	tr.OnLexed(tok("1"))

	if len(obs.entries) != len(tr.History()) {
		t.Fatalf("observer saw %d entries, tracker has %d", len(obs.entries), len(tr.History()))
	}
}
