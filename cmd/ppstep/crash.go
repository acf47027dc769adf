package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/ppstep/ppstep/internal/crashctx"
)

// crashLogFile is the diagnostic dump's path, the direct counterpart
// of crash_handler.hpp's ppstep_crash.log.
const crashLogFile = "ppstep_crash.log"

// dumpCrash writes a crash report to stderr and to crashLogFile: the
// panic value, the current crashctx.Context (source position, macro,
// last token, operation, expansion chain), and a goroutine stack
// trace. It is the recover()-based analog of crash_handler.hpp's
// signal_handler, which prints the same position/macro/token/
// operation/depth block plus a backtrace() dump before re-raising the
// original signal so the process still dies the way it normally
// would; here the caller re-panics for the same reason.
func dumpCrash(r any) {
	report := fmt.Sprintf(
		"ppstep: fatal: %v\n\n%s\nstack trace:\n%s",
		r, crashctx.Snapshot().Report(), debug.Stack(),
	)

	fmt.Fprintln(os.Stderr, report)

	if f, err := os.Create(crashLogFile); err == nil {
		writeCrashLog(f, report)
	}
}

func writeCrashLog(w io.WriteCloser, report string) {
	defer w.Close()
	fmt.Fprintln(w, report)
}
