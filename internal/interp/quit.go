package interp

// QuitSignal is the distinguished unwind signal of spec §5: `quit` (or
// a Ctrl-C at the prompt) panics with this value, and the host driver
// recovers it at the top of its loop. Go's defer is the scope-based
// cleanup mechanism that guarantees the recorder file and other
// resources are released on every exit path, including this one.
type QuitSignal struct{}
